// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package relayclient provides a client for the relay server's HTTP surface
// and for establishing relay sessions.
package relayclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/satori/go.uuid"

	"github.com/relayr/relayr/core"
	"github.com/relayr/relayr/lib/tracing"
	"github.com/relayr/relayr/utils/backoff"
	"github.com/relayr/relayr/utils/httputil"
	"github.com/relayr/relayr/utils/log"
)

// Client errors.
var (
	ErrMetadataNotFound = errors.New("file metadata not found")
)

// Client accesses a relay server at a fixed address.
type Client struct {
	addr    string
	backoff *backoff.Backoff

	// Propagates trace context on every HTTP call.
	transport http.RoundTripper
}

// New creates a new Client for a relay server at addr.
func New(addr string) *Client {
	return &Client{
		addr: addr,
		backoff: backoff.New(backoff.Config{
			Min:          100 * time.Millisecond,
			Max:          time.Second,
			RetryTimeout: 15 * time.Second,
		}),
		transport: tracing.NewHTTPTransport(nil),
	}
}

// Ping checks that the relay server is reachable and serving.
func (c *Client) Ping() error {
	resp, err := httputil.Get(
		fmt.Sprintf("http://%s/api/v1/relay/ping", c.addr),
		httputil.SendTransport(c.transport))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// FileMetadata returns the file metadata announced by senderID. Returns
// ErrMetadataNotFound if the sender has not announced a file.
func (c *Client) FileMetadata(senderID string) (*core.FileMetadata, error) {
	resp, err := httputil.Get(
		fmt.Sprintf("http://%s/api/v1/relay/file-meta/%s", c.addr, url.PathEscape(senderID)),
		httputil.SendTransport(c.transport))
	if err != nil {
		if httputil.IsNotFound(err) {
			return nil, ErrMetadataNotFound
		}
		return nil, err
	}
	defer resp.Body.Close()
	var md core.FileMetadata
	if err := json.NewDecoder(resp.Body).Decode(&md); err != nil {
		return nil, fmt.Errorf("decode body: %s", err)
	}
	return &md, nil
}

// Health returns the server's raw health report.
func (c *Client) Health() (string, error) {
	resp, err := httputil.Get(
		fmt.Sprintf("http://%s/health", c.addr),
		httputil.SendTransport(c.transport))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %s", err)
	}
	return string(b), nil
}

// Connect establishes a relay session under peerID, retrying with backoff
// while the server is unavailable. An empty peerID gets a random one.
func (c *Client) Connect(peerID string) (*Session, error) {
	if peerID == "" {
		peerID = uuid.NewV4().String()
	}
	u := url.URL{
		Scheme:   "ws",
		Host:     c.addr,
		Path:     "/api/v1/relay/",
		RawQuery: url.Values{"id": {peerID}}.Encode(),
	}
	var lastErr error
	a := c.backoff.Attempts()
	for a.WaitForNext() {
		ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err == nil {
			return newSession(peerID, ws), nil
		}
		lastErr = err
		log.With("peer", peerID).Infof("Retrying relay dial: %s", err)
	}
	return nil, fmt.Errorf("dial relay: %s: %s", a.Err(), lastErr)
}

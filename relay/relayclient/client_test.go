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
package relayclient

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/relayr/relayr/core"
	"github.com/relayr/relayr/utils/testutil"
)

func TestPing(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/relay/ping", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "pong")
	})
	addr, stop := testutil.StartServer(mux)
	defer stop()

	require.NoError(New(addr).Ping())
}

func TestPingUnreachable(t *testing.T) {
	require := require.New(t)

	require.Error(New("localhost:0").Ping())
}

func TestFileMetadata(t *testing.T) {
	require := require.New(t)

	md := core.FileMetadataFixture()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/relay/file-meta/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"name":"%s","size":%d,"type":"%s"}`, md.Name, md.Size, md.MimeType)
	})
	addr, stop := testutil.StartServer(mux)
	defer stop()

	got, err := New(addr).FileMetadata("some-sender")
	require.NoError(err)
	require.Equal(md, got)
}

func TestFileMetadataNotFound(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/relay/file-meta/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	addr, stop := testutil.StartServer(mux)
	defer stop()

	_, err := New(addr).FileMetadata("some-sender")
	require.Equal(ErrMetadataNotFound, err)
}

func TestHealth(t *testing.T) {
	require := require.New(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok"}`)
	})
	addr, stop := testutil.StartServer(mux)
	defer stop()

	body, err := New(addr).Health()
	require.NoError(err)
	require.Equal(`{"status":"ok"}`, body)
}

func TestConnectRetriesWhileUnavailable(t *testing.T) {
	require := require.New(t)

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	attempts := atomic.NewInt64(0)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/relay/", func(w http.ResponseWriter, r *http.Request) {
		// Fail the first two dials to exercise the retry loop.
		if attempts.Inc() <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- ws
	})
	addr, stop := testutil.StartServer(mux)
	defer stop()

	s, err := New(addr).Connect("some-peer")
	require.NoError(err)
	defer s.Close("test over")

	require.Equal("some-peer", s.PeerID())
	require.Equal(int64(3), attempts.Load())

	(<-serverConns).Close()
}

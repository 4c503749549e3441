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
package httputil

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-chi/chi"
)

// StatusError occurs if an HTTP response has an unexpected status code.
type StatusError struct {
	Method       string
	URL          string
	Status       int
	Header       http.Header
	ResponseDump string
}

// NewStatusError returns a new StatusError.
func NewStatusError(resp *http.Response) StatusError {
	defer resp.Body.Close()
	respBytes, err := ioutil.ReadAll(resp.Body)
	respDump := string(respBytes)
	if err != nil {
		respDump = fmt.Sprintf("failed to dump response: %s", err)
	}
	return StatusError{
		Method:       resp.Request.Method,
		URL:          resp.Request.URL.String(),
		Status:       resp.StatusCode,
		Header:       resp.Header,
		ResponseDump: respDump,
	}
}

func (e StatusError) Error() string {
	if e.ResponseDump == "" {
		return fmt.Sprintf("%s %s %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s %d: %s", e.Method, e.URL, e.Status, e.ResponseDump)
}

// IsStatus returns true if err is a StatusError of the given status.
func IsStatus(err error, status int) bool {
	statusErr, ok := err.(StatusError)
	return ok && statusErr.Status == status
}

// IsNotFound returns true if err is a 404 StatusError.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// IsConflict returns true if err is a 409 StatusError.
func IsConflict(err error) bool {
	return IsStatus(err, http.StatusConflict)
}

// IsAccepted returns true if err is a 202 StatusError.
func IsAccepted(err error) bool {
	return IsStatus(err, http.StatusAccepted)
}

// IsForbidden returns true if err is a 403 StatusError.
func IsForbidden(err error) bool {
	return IsStatus(err, http.StatusForbidden)
}

// NetworkError occurs on any Send error which occurred while attempting to
// send the HTTP request, e.g. the given host is unresponsive.
type NetworkError struct {
	err error
}

// NewNetworkError returns a new NetworkError wrapping err.
func NewNetworkError(err error) NetworkError {
	return NetworkError{err}
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("network error: %s", e.err)
}

// IsNetworkError returns true if err is a NetworkError.
func IsNetworkError(err error) bool {
	_, ok := err.(NetworkError)
	return ok
}

type sendOptions struct {
	body          io.Reader
	timeout       time.Duration
	acceptedCodes map[int]bool
	headers       map[string]string
	redirect      func(req *http.Request, via []*http.Request) error
	retry         retryOptions
	transport     http.RoundTripper
}

// defaultSendOptions must be injected with a url and a method before sending.
func defaultSendOptions() sendOptions {
	return sendOptions{
		body:          nil,
		timeout:       60 * time.Second,
		acceptedCodes: map[int]bool{http.StatusOK: true},
		headers:       map[string]string{},
		retry:         retryOptions{max: 1},
		transport:     nil, // Use HTTP default.
	}
}

// SendOption allows overwriting defaults for the Send function.
type SendOption func(*sendOptions)

// SendNoop returns a no-op option.
func SendNoop() SendOption {
	return func(o *sendOptions) {}
}

// SendBody specifies a body for http request.
func SendBody(body io.Reader) SendOption {
	return func(o *sendOptions) { o.body = body }
}

// SendTimeout specifies timeout for http request.
func SendTimeout(timeout time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = timeout }
}

// SendHeaders specifies headers for http request.
func SendHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) { o.headers = headers }
}

// SendAcceptedCodes specifies accepted codes for http request.
func SendAcceptedCodes(codes ...int) SendOption {
	m := make(map[int]bool)
	for _, c := range codes {
		m[c] = true
	}
	return func(o *sendOptions) { o.acceptedCodes = m }
}

// SendRedirect specifies a redirect policy for http request.
func SendRedirect(redirect func(req *http.Request, via []*http.Request) error) SendOption {
	return func(o *sendOptions) { o.redirect = redirect }
}

// SendTransport specifies transport for http request.
func SendTransport(transport http.RoundTripper) SendOption {
	return func(o *sendOptions) { o.transport = transport }
}

type retryOptions struct {
	max        int
	interval   time.Duration
	backoff    float64
	backoffMax time.Duration
}

// RetryOption allows overwriting defaults for the SendRetry option.
type RetryOption func(*retryOptions)

// RetryMax sets the max number of retries.
func RetryMax(max int) RetryOption {
	return func(o *retryOptions) { o.max = max }
}

// RetryInterval sets the interval between retries.
func RetryInterval(interval time.Duration) RetryOption {
	return func(o *retryOptions) { o.interval = interval }
}

// RetryBackoff sets a backoff multiplier between retries.
func RetryBackoff(backoff float64) RetryOption {
	return func(o *retryOptions) { o.backoff = backoff }
}

// RetryBackoffMax sets the max duration an interval can reach after backoff.
func RetryBackoffMax(backoffMax time.Duration) RetryOption {
	return func(o *retryOptions) { o.backoffMax = backoffMax }
}

// SendRetry will we retry the request on network / 5XX errors.
func SendRetry(options ...RetryOption) SendOption {
	retry := retryOptions{
		max:        3,
		interval:   250 * time.Millisecond,
		backoff:    1,
		backoffMax: 30 * time.Second,
	}
	for _, o := range options {
		o(&retry)
	}
	return func(o *sendOptions) { o.retry = retry }
}

// Send sends an HTTP request. May return NetworkError or StatusError (see above).
func Send(method, rawurl string, options ...SendOption) (resp *http.Response, err error) {
	opts := defaultSendOptions()
	for _, o := range options {
		o(&opts)
	}

	req, err := http.NewRequest(method, rawurl, opts.body)
	if err != nil {
		return nil, fmt.Errorf("new request: %s", err)
	}
	for key, val := range opts.headers {
		req.Header.Set(key, val)
	}

	client := http.Client{
		Timeout:       opts.timeout,
		CheckRedirect: opts.redirect,
		Transport:     opts.transport,
	}

	interval := opts.retry.interval
	for i := 0; i < opts.retry.max; i++ {
		if i > 0 {
			time.Sleep(interval)
			interval = min(
				time.Duration(float64(interval)*opts.retry.backoff),
				opts.retry.backoffMax)
		}
		resp, err = client.Do(req)
		// Retry without tampering the interval on network errors.
		if err != nil {
			err = NewNetworkError(err)
			continue
		}
		// Retry on 5XX errors.
		if resp.StatusCode >= 500 && !opts.acceptedCodes[resp.StatusCode] {
			err = NewStatusError(resp)
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	if !opts.acceptedCodes[resp.StatusCode] {
		return nil, NewStatusError(resp)
	}
	return resp, nil
}

// Get sends a GET http request.
func Get(url string, options ...SendOption) (*http.Response, error) {
	return Send("GET", url, options...)
}

// Head sends a HEAD http request.
func Head(url string, options ...SendOption) (*http.Response, error) {
	return Send("HEAD", url, options...)
}

// Post sends a POST http request.
func Post(url string, options ...SendOption) (*http.Response, error) {
	return Send("POST", url, options...)
}

// Put sends a PUT http request.
func Put(url string, options ...SendOption) (*http.Response, error) {
	return Send("PUT", url, options...)
}

// Delete sends a DELETE http request.
func Delete(url string, options ...SendOption) (*http.Response, error) {
	return Send("DELETE", url, options...)
}

// PollAccepted wraps GET requests for endpoints which require 202-polling.
func PollAccepted(
	url string, b backoff.BackOff, options ...SendOption) (*http.Response, error) {

	b.Reset()
	for {
		resp, err := Get(url, append(options, SendAcceptedCodes(200, 202))...)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusAccepted {
			resp.Body.Close()
			d := b.NextBackOff()
			if d == backoff.Stop {
				break // Backoff timed out.
			}
			time.Sleep(d)
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("backoff timed out on 202 responses")
}

// GetQueryArg gets an argument from http.Request by name.
// When the argument is not specified, return a default value.
func GetQueryArg(r *http.Request, name string, defaultVal string) string {
	v := r.URL.Query().Get(name)
	if v == "" {
		v = defaultVal
	}
	return v
}

// ParseParam parses a parameter from url.
func ParseParam(r *http.Request, name string) (string, error) {
	param := chi.URLParam(r, name)
	if param == "" {
		return "", fmt.Errorf("param %q not found in request", name)
	}
	val, err := url.PathUnescape(param)
	if err != nil {
		return "", fmt.Errorf("path unescape %s: %s", param, err)
	}
	return val, nil
}

// HasQueryArg checks whether a query arg is set in the request.
func HasQueryArg(r *http.Request, name string) bool {
	return strings.TrimSpace(r.URL.Query().Get(name)) != ""
}

func min(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

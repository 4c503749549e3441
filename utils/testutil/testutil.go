// Package testutil provides small helpers shared by tests and fixtures.
package testutil

import (
	"fmt"
	"net"
	"net/http"
	"time"
)

// PollUntilTrue calls f every 100ms until it returns true, giving up after
// timeout.
func PollUntilTrue(timeout time.Duration, f func() bool) error {
	deadline := time.Now().Add(timeout)
	for !f() {
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out after %.2f seconds", timeout.Seconds())
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

// Cleanup collects teardown functions so fixtures can unwind partially built
// state in one call.
type Cleanup struct {
	funcs []func()
}

// Add registers teardown functions, run in registration order.
func (c *Cleanup) Add(f ...func()) {
	c.funcs = append(c.funcs, f...)
}

// Recover tears down registered state if the calling fixture panicked, then
// re-panics.
func (c *Cleanup) Recover() {
	if r := recover(); r != nil {
		c.Run()
		panic(r)
	}
}

// Run invokes every registered teardown function.
func (c *Cleanup) Run() {
	for _, f := range c.funcs {
		f()
	}
}

// StartServer serves h on a random local port. Returns the listen address
// and a closure that stops the server.
func StartServer(h http.Handler) (addr string, stop func()) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		panic(err)
	}
	s := &http.Server{Handler: h}
	go s.Serve(l)
	return l.Addr().String(), func() { s.Close() }
}

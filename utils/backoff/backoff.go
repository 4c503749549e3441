// Package backoff wraps a third-party backoff library with a yaml-friendly
// Config and a bounded retry iterator.
package backoff

import (
	"fmt"
	"time"

	"github.com/jpillora/backoff"
)

// Config defines backoff configuration.
type Config struct {
	Min          time.Duration `yaml:"min"`
	Max          time.Duration `yaml:"max"`
	Factor       float64       `yaml:"factor"`
	RetryTimeout time.Duration `yaml:"retry_timeout"`
	NoJitter     bool          `yaml:"no_jitter"`
}

func (c Config) applyDefaults() Config {
	if c.Min == 0 {
		c.Min = 1 * time.Second
	}
	if c.Max == 0 {
		c.Max = 5 * time.Second
	}
	if c.Factor == 0 {
		c.Factor = 1.3
	}
	if c.RetryTimeout == 0 {
		c.RetryTimeout = 15 * time.Minute
	}
	return c
}

// Backoff computes jittered exponential delays between retries. Safe for
// concurrent use.
type Backoff struct {
	config Config
	source *backoff.Backoff
}

// New creates a new Backoff.
func New(config Config) *Backoff {
	config = config.applyDefaults()
	return &Backoff{
		config: config,
		source: &backoff.Backoff{
			Min:    config.Min,
			Max:    config.Max,
			Factor: config.Factor,
			Jitter: !config.NoJitter,
		},
	}
}

// Duration maps an attempt number, starting at 0, into the delay the caller
// should wait before that attempt.
func (b *Backoff) Duration(attempt int) time.Duration {
	return b.source.ForAttempt(float64(attempt))
}

// Attempts returns an iterator which spaces attempts out by Duration. How
// many attempts fit is fixed up front by playing the schedule against the
// retry timeout.
func (b *Backoff) Attempts() *Attempts {
	n := -1
	for budget := b.config.RetryTimeout; budget > 0; n++ {
		budget -= b.Duration(n)
	}
	return &Attempts{source: b, attempt: -1, limit: n}
}

// Attempts iterates retries of some action with backoff until a timeout
// expires.
type Attempts struct {
	source  *Backoff
	attempt int
	limit   int
	err     error
}

// WaitForNext sleeps until the next attempt is ready to perform. Returns
// false once the retry timeout is exhausted. The first call always returns
// true immediately, so at least one attempt is admitted.
func (a *Attempts) WaitForNext() bool {
	switch {
	case a.attempt < 0:
		a.attempt = 0
		return true
	case a.attempt >= a.limit:
		a.err = fmt.Errorf(
			"timed out after %d attempts in %s", a.limit, a.source.config.RetryTimeout)
		return false
	}
	time.Sleep(a.source.Duration(a.attempt))
	a.attempt++
	return true
}

// Err returns an error if the iterator timed out.
func (a *Attempts) Err() error {
	return a.err
}

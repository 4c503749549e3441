package metrics

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/uber-go/tally"
)

// newDefaultScope reports metrics as plain lines on stdout. Useful when
// eyeballing the relay locally without a statsd or m3 sink around.
func newDefaultScope(Config, string) (tally.Scope, io.Closer, error) {
	s, c := tally.NewRootScope(tally.ScopeOptions{
		Reporter: stdoutReporter{os.Stdout},
	}, time.Second)
	return s, c, nil
}

type stdoutReporter struct {
	w io.Writer
}

func (r stdoutReporter) ReportCounter(name string, _ map[string]string, value int64) {
	fmt.Fprintf(r.w, "count %s %d\n", name, value)
}

func (r stdoutReporter) ReportGauge(name string, _ map[string]string, value float64) {
	fmt.Fprintf(r.w, "gauge %s %f\n", name, value)
}

func (r stdoutReporter) ReportTimer(name string, _ map[string]string, interval time.Duration) {
	fmt.Fprintf(r.w, "timer %s %s\n", name, interval)
}

func (r stdoutReporter) ReportHistogramValueSamples(
	name string, _ map[string]string, _ tally.Buckets, lower, upper float64, samples int64) {

	fmt.Fprintf(r.w, "histogram %s bucket lower %f upper %f samples %d\n",
		name, lower, upper, samples)
}

func (r stdoutReporter) ReportHistogramDurationSamples(
	name string, _ map[string]string, _ tally.Buckets, lower, upper time.Duration, samples int64) {

	fmt.Fprintf(r.w, "histogram %s bucket lower %v upper %v samples %d\n",
		name, lower, upper, samples)
}

func (r stdoutReporter) Capabilities() tally.Capabilities { return r }
func (r stdoutReporter) Reporting() bool                  { return true }
func (r stdoutReporter) Tagging() bool                    { return false }
func (r stdoutReporter) Flush()                           {}

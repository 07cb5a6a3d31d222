package capture

import (
	"errors"
	"time"

	"jordanella.com/screen-mapper/internal/logging"
)

// Report is everything produced by one analysis tick
type Report struct {
	Tick       int
	CapturedAt time.Time
	FramePath  string // empty when frames are not saved
	Results    []RuleResult
}

// Failures counts the rules that failed on this tick
func (r *Report) Failures() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Result looks up a rule's result by name
func (r *Report) Result(name string) (RuleResult, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res, true
		}
	}
	return RuleResult{}, false
}

// Sink receives reports in tick order. It runs on the session goroutine and
// must not call Session.Stop.
type Sink interface {
	Consume(report *Report) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(report *Report) error

// Consume calls f
func (f SinkFunc) Consume(report *Report) error {
	return f(report)
}

// LogSink writes every result to a logger
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink that logs to logger
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Consume logs one line per rule
func (ls *LogSink) Consume(report *Report) error {
	for _, res := range report.Results {
		ctx := map[string]interface{}{
			"tick": report.Tick,
			"rule": res.Name,
			"kind": res.Kind.String(),
		}
		if res.Err != nil {
			ls.logger.ErrorWithContext("Rule failed", res.Err, ctx)
			continue
		}
		ctx["value"] = res.Value.String()
		ls.logger.InfoWithContext("Rule evaluated", ctx)
	}
	return nil
}

// MultiSink fans a report out to several sinks. Every sink sees every report.
type MultiSink []Sink

// Consume passes report to each sink in order and joins their errors
func (ms MultiSink) Consume(report *Report) error {
	var errs []error
	for _, s := range ms {
		if s == nil {
			continue
		}
		if err := s.Consume(report); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

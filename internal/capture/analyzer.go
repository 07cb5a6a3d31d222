package capture

import (
	"context"
	"image"
	"time"

	"jordanella.com/screen-mapper/internal/extract"
	"jordanella.com/screen-mapper/internal/library"
)

// RuleResult is the outcome of one rule on one frame. Exactly one of Value and Err is meaningful.
type RuleResult struct {
	Name     string
	Kind     library.Kind
	Value    extract.Result
	Err      error
	Duration time.Duration
}

// Analyzer evaluates a frame. Per-rule failures are reported in the results, never returned.
type Analyzer interface {
	Analyze(ctx context.Context, frame *image.RGBA) []RuleResult
}

// AnalyzerFunc adapts a function to the Analyzer interface
type AnalyzerFunc func(ctx context.Context, frame *image.RGBA) []RuleResult

// Analyze calls f
func (f AnalyzerFunc) Analyze(ctx context.Context, frame *image.RGBA) []RuleResult {
	return f(ctx, frame)
}

// LibraryAnalyzer evaluates a library's rules in insertion order
type LibraryAnalyzer struct {
	engine extract.Engine
	rules  []library.BoxFunction
}

// NewLibraryAnalyzer creates an analyzer over a copy of rules
func NewLibraryAnalyzer(engine extract.Engine, rules []library.BoxFunction) *LibraryAnalyzer {
	return &LibraryAnalyzer{
		engine: engine,
		rules:  append([]library.BoxFunction(nil), rules...),
	}
}

// Analyze evaluates every rule against frame. A failing rule does not stop the ones after it.
func (la *LibraryAnalyzer) Analyze(ctx context.Context, frame *image.RGBA) []RuleResult {
	results := make([]RuleResult, 0, len(la.rules))
	for _, rule := range la.rules {
		start := time.Now()
		value, err := extract.EvaluateRule(ctx, la.engine, frame, rule)
		results = append(results, RuleResult{
			Name:     rule.Name,
			Kind:     rule.Kind,
			Value:    value,
			Err:      err,
			Duration: time.Since(start),
		})
	}
	return results
}

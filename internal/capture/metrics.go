package capture

import (
	"sync"
	"time"
)

// DefaultUnhealthyThreshold is the number of consecutive failures after which
// a rule is reported unhealthy
const DefaultUnhealthyThreshold = 3

// RuleMetrics tracks evaluation statistics for one rule
type RuleMetrics struct {
	mu sync.RWMutex

	// Evaluation counts
	TotalEvaluations   int64
	SuccessCount       int64
	FailureCount       int64
	LastEvaluationTime time.Time

	// Timing statistics
	TotalDuration   time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration
	AverageDuration time.Duration

	// Error tracking
	LastError         error
	LastErrorTime     time.Time
	ConsecutiveErrors int64
}

// NewRuleMetrics creates a new metrics tracker
func NewRuleMetrics() *RuleMetrics {
	return &RuleMetrics{
		MinDuration: time.Duration(1<<63 - 1),
	}
}

// RecordEvaluation records one evaluation of the rule at time at
func (rm *RuleMetrics) RecordEvaluation(at time.Time, duration time.Duration, err error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.TotalEvaluations++
	rm.LastEvaluationTime = at

	rm.TotalDuration += duration
	if duration < rm.MinDuration {
		rm.MinDuration = duration
	}
	if duration > rm.MaxDuration {
		rm.MaxDuration = duration
	}
	rm.AverageDuration = rm.TotalDuration / time.Duration(rm.TotalEvaluations)

	if err == nil {
		rm.SuccessCount++
		rm.ConsecutiveErrors = 0
	} else {
		rm.FailureCount++
		rm.ConsecutiveErrors++
		rm.LastError = err
		rm.LastErrorTime = at
	}
}

// IsHealthy reports whether the rule has failed fewer than threshold times in a row.
// A non-positive threshold means DefaultUnhealthyThreshold.
func (rm *RuleMetrics) IsHealthy(threshold int64) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if threshold <= 0 {
		threshold = DefaultUnhealthyThreshold
	}
	return rm.ConsecutiveErrors < threshold
}

// Stats returns a snapshot of the current metrics
func (rm *RuleMetrics) Stats() RuleStats {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	stats := RuleStats{
		TotalEvaluations:   rm.TotalEvaluations,
		SuccessCount:       rm.SuccessCount,
		FailureCount:       rm.FailureCount,
		LastEvaluationTime: rm.LastEvaluationTime,
		AverageDuration:    rm.AverageDuration,
		MaxDuration:        rm.MaxDuration,
		ConsecutiveErrors:  rm.ConsecutiveErrors,
		LastError:          rm.LastError,
		LastErrorTime:      rm.LastErrorTime,
	}
	if rm.TotalEvaluations > 0 {
		stats.MinDuration = rm.MinDuration
		stats.ErrorRate = float64(rm.FailureCount) / float64(rm.TotalEvaluations) * 100.0
		stats.SuccessRate = float64(rm.SuccessCount) / float64(rm.TotalEvaluations) * 100.0
	}
	return stats
}

// RuleStats is an immutable snapshot of RuleMetrics
type RuleStats struct {
	TotalEvaluations   int64
	SuccessCount       int64
	FailureCount       int64
	LastEvaluationTime time.Time
	AverageDuration    time.Duration
	MinDuration        time.Duration
	MaxDuration        time.Duration
	ErrorRate          float64 // percent
	SuccessRate        float64 // percent
	ConsecutiveErrors  int64
	LastError          error
	LastErrorTime      time.Time
}

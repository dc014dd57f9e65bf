// Package health runs preflight checks on a lab station before a session:
// data directory, stimulus files and timing resolution.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of a component.
type Status string

const (
	// StatusHealthy indicates the component is ready.
	StatusHealthy Status = "healthy"
	// StatusDegraded indicates the session can run with reduced quality.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy indicates the session must not start.
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a single check.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Critical bool          `json:"critical"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Check is a function that performs a check.
type Check func(ctx context.Context) CheckResult

// Component is a named check.
type Component struct {
	Name string
	// Critical failures make the overall status unhealthy; others degrade it.
	Critical bool
	Check    Check
	Timeout  time.Duration
}

// Report is the outcome of one Run.
type Report struct {
	Status  Status        `json:"status"`
	Results []CheckResult `json:"results"`
}

// Failed returns the results that are not healthy.
func (r Report) Failed() []CheckResult {
	var out []CheckResult
	for _, res := range r.Results {
		if res.Status != StatusHealthy {
			out = append(out, res)
		}
	}
	return out
}

// Checker holds the checks of a station.
type Checker struct {
	mu         sync.Mutex
	components []*Component
}

// NewChecker creates an empty Checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Register adds a component. A zero timeout means five seconds.
func (c *Checker) Register(component *Component) {
	if component.Timeout == 0 {
		component.Timeout = 5 * time.Second
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component)
}

// RegisterFunc registers a check with the default timeout.
func (c *Checker) RegisterFunc(name string, critical bool, check Check) {
	c.Register(&Component{Name: name, Critical: critical, Check: check})
}

// Run executes every check concurrently and aggregates the results. A
// check that panics or outlives its timeout is unhealthy.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.Lock()
	components := append([]*Component(nil), c.components...)
	c.mu.Unlock()

	results := make([]CheckResult, len(components))
	var wg sync.WaitGroup
	for i, comp := range components {
		wg.Add(1)
		go func(i int, comp *Component) {
			defer wg.Done()
			results[i] = runOne(ctx, comp)
		}(i, comp)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return Report{Status: overall(results), Results: results}
}

func runOne(ctx context.Context, comp *Component) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, comp.Timeout)
	defer cancel()

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- CheckResult{Status: StatusUnhealthy, Message: "check panicked", Error: fmt.Sprint(r)}
			}
		}()
		done <- comp.Check(checkCtx)
	}()

	var result CheckResult
	select {
	case result = <-done:
	case <-checkCtx.Done():
		result = CheckResult{Status: StatusUnhealthy, Message: "check timed out", Error: checkCtx.Err().Error()}
	}
	result.Name = comp.Name
	result.Critical = comp.Critical
	result.Duration = time.Since(start)
	if !comp.Critical && result.Status == StatusUnhealthy {
		result.Status = StatusDegraded
	}
	return result
}

func overall(results []CheckResult) Status {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

// healthy and unhealthy build results for the checks below.
func healthy(format string, args ...any) CheckResult {
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf(format, args...)}
}

func unhealthy(err error, format string, args ...any) CheckResult {
	r := CheckResult{Status: StatusUnhealthy, Message: fmt.Sprintf(format, args...)}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Package reporter defines progress-reporting interfaces and terminal/null/
// composite implementations for videocomp batch runs.
package reporter

import (
	"github.com/five82/videocomp/internal/dispatch"
	"github.com/five82/videocomp/internal/progress"
)

// Reporter receives lifecycle events for a batch run. Implementations must
// not block the caller for long; the progress callback contract (§6) is
// "receives a ProgressSnapshot at a rate not exceeding a few updates per
// second per Job."
type Reporter interface {
	BatchStarted(totalFiles int)
	JobClassified(path string, strategy dispatch.Strategy)
	JobSkipped(path, reason string)
	Progress(snap progress.Snapshot)
	JobSucceeded(path, replacedPath string)
	JobFailed(path string, err error)
	BatchFinished(summary dispatch.BatchSummary)
}

// NullReporter discards every event. Used when no reporter is configured.
type NullReporter struct{}

func (NullReporter) BatchStarted(int)                       {}
func (NullReporter) JobClassified(string, dispatch.Strategy) {}
func (NullReporter) JobSkipped(string, string)               {}
func (NullReporter) Progress(progress.Snapshot)               {}
func (NullReporter) JobSucceeded(string, string)              {}
func (NullReporter) JobFailed(string, error)                  {}
func (NullReporter) BatchFinished(dispatch.BatchSummary)      {}

// CompositeReporter fans events out to every member reporter, in order.
type CompositeReporter struct {
	Reporters []Reporter
}

func NewComposite(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{Reporters: reporters}
}

func (c *CompositeReporter) BatchStarted(totalFiles int) {
	for _, r := range c.Reporters {
		r.BatchStarted(totalFiles)
	}
}

func (c *CompositeReporter) JobClassified(path string, strategy dispatch.Strategy) {
	for _, r := range c.Reporters {
		r.JobClassified(path, strategy)
	}
}

func (c *CompositeReporter) JobSkipped(path, reason string) {
	for _, r := range c.Reporters {
		r.JobSkipped(path, reason)
	}
}

func (c *CompositeReporter) Progress(snap progress.Snapshot) {
	for _, r := range c.Reporters {
		r.Progress(snap)
	}
}

func (c *CompositeReporter) JobSucceeded(path, replacedPath string) {
	for _, r := range c.Reporters {
		r.JobSucceeded(path, replacedPath)
	}
}

func (c *CompositeReporter) JobFailed(path string, err error) {
	for _, r := range c.Reporters {
		r.JobFailed(path, err)
	}
}

func (c *CompositeReporter) BatchFinished(summary dispatch.BatchSummary) {
	for _, r := range c.Reporters {
		r.BatchFinished(summary)
	}
}

func strategyLabel(s dispatch.Strategy) string {
	if s == dispatch.StrategyLarge {
		return "large"
	}
	return "small"
}

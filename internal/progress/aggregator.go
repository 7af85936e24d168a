// Package progress implements a thread-safe, weighted progress aggregator
// shared by every worker in a batch run.
package progress

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a Worker Record.
type Status int

const (
	StatusStarting Status = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SegmentInfo describes segment-granular context for a worker record, when
// the worker represents one segment of a larger file.
type SegmentInfo struct {
	Current  int
	Total    int
	Duration float64
}

// Record is a single worker's state inside the aggregator (§3 Worker Record).
type Record struct {
	ID             string
	Label          string
	WeightBytes    int64
	Fraction       float64
	FPS            float64
	ProcessedBytes int64
	StartedAt      time.Time
	UpdatedAt      time.Time
	Status         Status
	FailReason     string
	Segment        *SegmentInfo

	ThroughputMBs float64
	ETASeconds    float64
}

// Snapshot is a read-only, point-in-time view of the aggregator (§3 Progress Snapshot).
type Snapshot struct {
	OverallFraction float64
	ActiveWorkers   int
	TotalWorkers    int
	TotalThroughput float64
	WorstETASeconds float64
	TotalBytes      int64
	ProcessedBytes  int64
	Records         []Record
}

// Callback is notified on every Register/Update/Complete/Fail transition.
type Callback func(Snapshot)

// Aggregator is the thread-safe progress registry (§4.5). All operations
// are serialized by a single mutex; an unregistered id is always a no-op.
type Aggregator struct {
	mu       sync.Mutex
	records  map[string]*Record
	order    []string
	callback Callback
}

// New creates an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{records: make(map[string]*Record)}
}

// SetCallback installs cb, invoked after every state-changing operation.
// Passing nil disables notification.
func (a *Aggregator) SetCallback(cb Callback) {
	a.mu.Lock()
	a.callback = cb
	a.mu.Unlock()
}

// Register inserts a new Worker Record in state starting with zero progress.
func (a *Aggregator) Register(id, label string, weightBytes int64, segment *SegmentInfo) {
	a.mu.Lock()
	now := time.Now()
	if _, exists := a.records[id]; !exists {
		a.order = append(a.order, id)
	}
	a.records[id] = &Record{
		ID:          id,
		Label:       label,
		WeightBytes: weightBytes,
		Status:      StatusStarting,
		StartedAt:   now,
		UpdatedAt:   now,
		Segment:     segment,
	}
	a.notifyLocked()
	a.mu.Unlock()
}

// Update applies a progress update for id. fraction is clamped to [0,1].
// processedBytes, when zero, is estimated as fraction*weightBytes. An
// unregistered id is a no-op.
func (a *Aggregator) Update(id string, fraction, fps float64, processedBytes int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[id]
	if !ok {
		return
	}

	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	rec.Fraction = fraction
	rec.FPS = fps
	if processedBytes > 0 {
		rec.ProcessedBytes = processedBytes
	} else {
		rec.ProcessedBytes = int64(fraction * float64(rec.WeightBytes))
	}
	rec.UpdatedAt = time.Now()

	if fraction >= 1 {
		rec.Status = StatusCompleted
	} else {
		rec.Status = StatusProcessing
	}

	elapsed := rec.UpdatedAt.Sub(rec.StartedAt).Seconds()
	if elapsed > 0 {
		rec.ThroughputMBs = float64(rec.ProcessedBytes) / (1024 * 1024) / elapsed
	}
	if fraction >= 0.01 && elapsed > 0 {
		rec.ETASeconds = elapsed/fraction - elapsed
	} else {
		rec.ETASeconds = 0
	}

	a.notifyLocked()
}

// Complete marks id as completed. A no-op for unregistered ids.
func (a *Aggregator) Complete(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	if !ok {
		return
	}
	rec.Status = StatusCompleted
	rec.Fraction = 1
	rec.UpdatedAt = time.Now()
	a.notifyLocked()
}

// Fail marks id as failed with reason. A no-op for unregistered ids.
func (a *Aggregator) Fail(id, reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.records[id]
	if !ok {
		return
	}
	rec.Status = StatusFailed
	rec.FailReason = reason
	rec.UpdatedAt = time.Now()
	a.notifyLocked()
}

// Snapshot produces a consistent, point-in-time view of all records.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() Snapshot {
	var totalWeight, weightedFraction float64
	var totalThroughput, worstETA float64
	var totalBytes, processedBytes int64
	active := 0

	records := make([]Record, 0, len(a.order))
	for _, id := range a.order {
		rec := a.records[id]
		records = append(records, *rec)

		totalWeight += float64(rec.WeightBytes)
		fraction := rec.Fraction
		if rec.Status == StatusFailed {
			fraction = 1
		}
		weightedFraction += fraction * float64(rec.WeightBytes)
		totalBytes += rec.WeightBytes
		processedBytes += rec.ProcessedBytes
		totalThroughput += rec.ThroughputMBs

		if rec.Status == StatusProcessing || rec.Status == StatusStarting {
			active++
			if rec.ETASeconds > worstETA {
				worstETA = rec.ETASeconds
			}
		}
	}

	overall := 0.0
	if totalWeight > 0 {
		overall = weightedFraction / totalWeight
	}

	return Snapshot{
		OverallFraction: overall,
		ActiveWorkers:   active,
		TotalWorkers:    len(records),
		TotalThroughput: totalThroughput,
		WorstETASeconds: worstETA,
		TotalBytes:      totalBytes,
		ProcessedBytes:  processedBytes,
		Records:         records,
	}
}

func (a *Aggregator) notifyLocked() {
	if a.callback == nil {
		return
	}
	snap := a.snapshotLocked()
	a.callback(snap)
}

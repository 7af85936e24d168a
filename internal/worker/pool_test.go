package worker

import (
	"context"
	"fmt"
	"testing"

	"github.com/five82/videocomp/internal/ffmpeg"
	"github.com/five82/videocomp/internal/progress"
)

func fakeEncoder(fail map[string]bool) Encoder {
	return func(ctx context.Context, argv []string, probeDuration float64, cb ffmpeg.ProgressCallback) ffmpeg.EncodeResult {
		label := ""
		if len(argv) > 0 {
			label = argv[0]
		}
		if cb != nil {
			cb(1.0, 30, 1000)
		}
		if fail[label] {
			return ffmpeg.EncodeResult{Success: false, Err: fmt.Errorf("simulated failure for %s", label)}
		}
		return ffmpeg.EncodeResult{Success: true}
	}
}

func TestPoolSizeBoundedByWorkCount(t *testing.T) {
	agg := progress.New()
	p := New(8, 3, agg, fakeEncoder(nil))
	if p.size != 3 {
		t.Errorf("expected pool size 3 (bounded by work count), got %d", p.size)
	}
}

func TestPoolSizeBoundedByMaxConcurrent(t *testing.T) {
	agg := progress.New()
	p := New(2, 10, agg, fakeEncoder(nil))
	if p.size != 2 {
		t.Errorf("expected pool size 2 (bounded by max concurrent), got %d", p.size)
	}
}

func TestPoolRunAllSucceed(t *testing.T) {
	agg := progress.New()
	p := New(4, 4, agg, fakeEncoder(nil))

	items := []Item{
		{ID: "0", Label: "seg0", Argv: []string{"seg0"}, WeightBytes: 100},
		{ID: "1", Label: "seg1", Argv: []string{"seg1"}, WeightBytes: 100},
	}
	results := p.Run(context.Background(), items)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("expected success, got error %v", r.Err)
		}
	}
}

func TestPoolIsolatesFailures(t *testing.T) {
	agg := progress.New()
	p := New(4, 2, agg, fakeEncoder(map[string]bool{"seg1": true}))

	items := []Item{
		{ID: "0", Label: "seg0", Argv: []string{"seg0"}, WeightBytes: 100},
		{ID: "1", Label: "seg1", Argv: []string{"seg1"}, WeightBytes: 100},
	}
	results := p.Run(context.Background(), items)

	if results[0].Err != nil {
		t.Errorf("expected seg0 to succeed, got %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Error("expected seg1 to fail")
	}

	snap := agg.Snapshot()
	if snap.TotalWorkers != 2 {
		t.Errorf("expected both workers registered despite one failing, got %d", snap.TotalWorkers)
	}
}

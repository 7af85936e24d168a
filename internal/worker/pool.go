// Package worker implements the bounded segment worker pool described in
// §4.6: a fixed-size pool of goroutines that compress segments concurrently
// and report into the progress aggregator.
package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/videocomp/internal/ffmpeg"
	"github.com/five82/videocomp/internal/progress"
)

// perItemTimeout is the hard timeout applied to every work item (§4.6).
const perItemTimeout = time.Hour

// Item is one unit of work: transcode inputPath to outputPath.
type Item struct {
	ID            string
	Label         string
	InputPath     string
	OutputPath    string
	Ordinal       int
	WeightBytes   int64
	Argv          []string
	ProbeDuration float64
}

// Result is the outcome of processing one Item.
type Result struct {
	Item       Item
	OutputPath string
	Err        error
}

// Encoder runs one encode invocation, forwarding progress into cb.
type Encoder func(ctx context.Context, argv []string, probeDuration float64, cb ffmpeg.ProgressCallback) ffmpeg.EncodeResult

// Pool is a bounded concurrent pool that consumes work Items (§4.6).
type Pool struct {
	size       int
	aggregator *progress.Aggregator
	encode     Encoder
}

// New creates a Pool sized min(maxConcurrent, workCount), at least 1.
func New(maxConcurrent, workCount int, aggregator *progress.Aggregator, encode Encoder) *Pool {
	size := maxConcurrent
	if workCount < size {
		size = workCount
	}
	if size < 1 {
		size = 1
	}
	return &Pool{size: size, aggregator: aggregator, encode: encode}
}

// Run processes every item through the pool, returning one Result per item
// in the same order as items. A per-item failure or panic is isolated: it produces a
// failed Result and never aborts the rest of the batch.
func (p *Pool) Run(ctx context.Context, items []Item) []Result {
	results := make([]Result, len(items))
	sem := make(chan struct{}, p.size)

	g, gctx := errgroup.WithContext(context.Background())
	_ = gctx // per-item timeout is independent of ctx cancellation of siblings

	for i, item := range items {
		i, item := i, item
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()
			results[i] = p.runOne(ctx, item)
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (p *Pool) runOne(ctx context.Context, item Item) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic processing %s: %v", item.Label, r)
			p.aggregator.Fail(item.ID, err.Error())
			result = Result{Item: item, Err: err}
		}
	}()

	p.aggregator.Register(item.ID, item.Label, item.WeightBytes, &progress.SegmentInfo{
		Current: item.Ordinal,
	})

	itemCtx, cancel := context.WithTimeout(ctx, perItemTimeout)
	defer cancel()

	cb := func(fraction, fps float64, processedBytes int64) {
		p.aggregator.Update(item.ID, fraction, fps, processedBytes)
	}

	encResult := p.encode(itemCtx, item.Argv, item.ProbeDuration, cb)
	if !encResult.Success {
		p.aggregator.Fail(item.ID, encResult.Err.Error())
		return Result{Item: item, Err: encResult.Err}
	}

	p.aggregator.Complete(item.ID)
	return Result{Item: item, OutputPath: item.OutputPath}
}

// DefaultEncoder adapts ffmpeg.RunEncode to the Encoder signature.
func DefaultEncoder(ffmpegPath string) Encoder {
	return func(ctx context.Context, argv []string, probeDuration float64, cb ffmpeg.ProgressCallback) ffmpeg.EncodeResult {
		return ffmpeg.RunEncode(ctx, ffmpegPath, argv, probeDuration, cb)
	}
}

// Package pipeline implements the Large-File Pipeline (§4.7): a three-stage
// producer-consumer pipeline that segments large inputs, compresses
// segments concurrently across the shared worker pool, and merges results
// per source file.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/five82/videocomp/internal/config"
	"github.com/five82/videocomp/internal/errors"
	"github.com/five82/videocomp/internal/ffmpeg"
	"github.com/five82/videocomp/internal/ffprobe"
	"github.com/five82/videocomp/internal/logging"
	"github.com/five82/videocomp/internal/progress"
	"github.com/five82/videocomp/internal/protocol"
	"github.com/five82/videocomp/internal/segment"
	"github.com/five82/videocomp/internal/util"
	"github.com/five82/videocomp/internal/worker"
)

// channelCapacity bounds the shared segment queue (§5).
const channelCapacity = 50

// jobState is the per-job lifecycle state (§4.7).
type jobState int

const (
	statePending jobState = iota
	stateSegmenting
	stateSegmented
	stateCompressing
	stateMerging
	stateVerifying
	stateReplaced
	stateFailed
)

// Result is the terminal outcome for one source file processed by the
// pipeline.
type Result struct {
	SourcePath   string
	ReplacedPath string
	Err          error
}

// segmentReady is pushed onto the shared channel as a segmenter produces
// each segment (§4.7 stage 1).
type segmentReady struct {
	jobID         string
	sourcePath    string
	ordinal       int
	segmentPath   string
	totalSegments int
	weightBytes   int64
	probeDuration float64
}

// jobRecord tracks one job's progress through the pipeline state machine.
type jobRecord struct {
	mu                 sync.Mutex
	state              jobState
	expectedSegments   int
	producedSegments   int
	compressedSegments map[int]string
	err                error
	segmentsDir        string
	tempDir            string
}

// Run processes multiple large files concurrently through the three-stage
// pipeline. Used iff the caller has already established the parallel-pipeline
// criteria from §4.7.
func Run(ctx context.Context, paths []string, cfg *config.Config, hw *ffmpeg.HWProfile, agg *progress.Aggregator, log *logging.Logger, poolSize int) []Result {
	records := make(map[string]*jobRecord, len(paths))
	var recordsMu sync.Mutex

	queue := make(chan segmentReady, channelCapacity)
	resultsCh := make(chan segmentOutcome, channelCapacity)

	g, gctx := errgroup.WithContext(ctx)

	// Stage 1: one segmenter task per large file.
	for _, path := range paths {
		path := path
		g.Go(func() error {
			return runSegmenter(gctx, path, cfg, queue, records, &recordsMu, log)
		})
	}

	// Stage 2: the shared worker pool, draining the queue until every
	// segmenter has finished and the queue is closed.
	var poolWG sync.WaitGroup
	go func() {
		_ = g.Wait()
		close(queue)
	}()

	for i := 0; i < poolSize; i++ {
		poolWG.Add(1)
		go func() {
			defer poolWG.Done()
			runCompressor(ctx, cfg, hw, agg, queue, resultsCh)
		}()
	}

	go func() {
		poolWG.Wait()
		close(resultsCh)
	}()

	// Stage 3: mergers, one conceptually per job, driven by incoming results.
	finalResults := make(map[string]Result)
	var finalMu sync.Mutex
	var mergeWG sync.WaitGroup

	for outcome := range resultsCh {
		recordsMu.Lock()
		rec := records[outcome.jobID]
		recordsMu.Unlock()
		if rec == nil {
			continue
		}

		rec.mu.Lock()
		if outcome.err != nil {
			rec.state = stateFailed
			rec.err = outcome.err
		} else {
			rec.compressedSegments[outcome.ordinal] = outcome.outputPath
		}
		failed := rec.state == stateFailed
		ready := !failed && rec.expectedSegments > 0 && len(rec.compressedSegments) == rec.expectedSegments
		rec.mu.Unlock()

		if failed {
			mergeWG.Add(1)
			go func(sourcePath string, rec *jobRecord) {
				defer mergeWG.Done()
				cleanupJob(rec)
				finalMu.Lock()
				if _, done := finalResults[sourcePath]; !done {
					finalResults[sourcePath] = Result{SourcePath: sourcePath, Err: rec.err}
				}
				finalMu.Unlock()
			}(outcome.sourcePath, rec)
			continue
		}

		if ready {
			mergeWG.Add(1)
			go func(sourcePath string, rec *jobRecord) {
				defer mergeWG.Done()
				result := mergeJob(ctx, sourcePath, cfg, hw, rec, log)
				finalMu.Lock()
				finalResults[sourcePath] = result
				finalMu.Unlock()
			}(outcome.sourcePath, rec)
		}
	}

	mergeWG.Wait()

	results := make([]Result, 0, len(paths))
	for _, p := range paths {
		if r, ok := finalResults[p]; ok {
			results = append(results, r)
		} else {
			results = append(results, Result{SourcePath: p, Err: errors.New(errors.KindPipelineStage, "job never reached a terminal state")})
		}
	}
	return results
}

type segmentOutcome struct {
	jobID      string
	sourcePath string
	ordinal    int
	outputPath string
	err        error
}

func runSegmenter(ctx context.Context, path string, cfg *config.Config, queue chan<- segmentReady, records map[string]*jobRecord, recordsMu *sync.Mutex, log *logging.Logger) error {
	jobID := path

	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	sizeGB := util.BytesToGB(info.Size())

	rec := &jobRecord{state: stateSegmenting, compressedSegments: make(map[int]string)}
	recordsMu.Lock()
	records[jobID] = rec
	recordsMu.Unlock()

	probe, err := ffprobe.Probe(ctx, cfg.FFprobePath, path, ffprobe.ProbeTimeout(sizeGB, cfg.ExtendedTimeouts))
	if err != nil {
		failJob(rec, err)
		return nil
	}

	segDir := util.SegmentsDirFor(path, cfg.GetTempDir(), cfg.UseSameFilesystem)
	rec.mu.Lock()
	rec.segmentsDir = segDir
	rec.mu.Unlock()

	timeout := segment.Timeout(sizeGB, cfg.MinSegmentationTimeoutMinutes, cfg.SegmentationTimeoutMinPerGB)
	paths, err := segment.Segment(ctx, cfg.FFmpegPath, path, segDir, cfg.SegmentDurationSeconds, timeout)
	if err != nil {
		failJob(rec, err)
		return nil
	}

	sort.Strings(paths)

	var totalSegSize int64
	weightPerSegment := info.Size() / int64(len(paths))

	rec.mu.Lock()
	rec.state = stateSegmented
	rec.expectedSegments = len(paths)
	rec.mu.Unlock()

	for i, segPath := range paths {
		if segInfo, err := os.Stat(segPath); err == nil {
			totalSegSize += segInfo.Size()
		}
		item := segmentReady{
			jobID:         jobID,
			sourcePath:    path,
			ordinal:       i,
			segmentPath:   segPath,
			totalSegments: len(paths),
			weightBytes:   weightPerSegment,
			probeDuration: probe.DurationSecs / float64(len(paths)),
		}
		select {
		case queue <- item:
		case <-ctx.Done():
			return nil
		}
	}

	if warning, isWarning := warnSizeDelta(totalSegSize, info.Size(), cfg.SizeDifferenceWarningPercent); isWarning {
		log.Warn("segment size delta exceeds threshold", "path", path, "warning", warning)
	}

	rec.mu.Lock()
	rec.state = stateCompressing
	rec.mu.Unlock()

	return nil
}

func warnSizeDelta(actual, expected int64, thresholdPercent float64) (string, bool) {
	if expected == 0 {
		return "", false
	}
	delta := float64(actual-expected) / float64(expected) * 100
	if delta < 0 {
		delta = -delta
	}
	if delta > thresholdPercent {
		return fmt.Sprintf("delta %.1f%% exceeds %.1f%%", delta, thresholdPercent), true
	}
	return "", false
}

func failJob(rec *jobRecord, err error) {
	rec.mu.Lock()
	rec.state = stateFailed
	rec.err = err
	rec.mu.Unlock()
}

// runCompressor drains the shared segment queue until it is closed by the
// segmenter group, remaining responsive to cancellation throughout (§5).
func runCompressor(ctx context.Context, cfg *config.Config, hw *ffmpeg.HWProfile, agg *progress.Aggregator, queue <-chan segmentReady, resultsCh chan<- segmentOutcome) {
	encode := worker.DefaultEncoder(cfg.FFmpegPath)

	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-queue:
			if !ok {
				return
			}
			outcome := compressSegment(ctx, item, cfg, hw, agg, encode)
			select {
			case resultsCh <- outcome:
			case <-ctx.Done():
				return
			}
		}
	}
}

func compressSegment(ctx context.Context, item segmentReady, cfg *config.Config, hw *ffmpeg.HWProfile, agg *progress.Aggregator, encode worker.Encoder) segmentOutcome {
	workerID := fmt.Sprintf("%s#%d", item.jobID, item.ordinal)
	agg.Register(workerID, fmt.Sprintf("%s segment %d", util.GetFilename(item.sourcePath), item.ordinal), item.weightBytes, &progress.SegmentInfo{
		Current: item.ordinal, Total: item.totalSegments,
	})

	outputPath := compressedSegmentPath(item.segmentPath)
	probe, err := ffprobe.Probe(ctx, cfg.FFprobePath, item.segmentPath, ffprobe.ProbeTimeout(0, false))
	var argv []string
	if err == nil {
		argv = ffmpeg.BuildEncodeArgs(item.segmentPath, outputPath, probe, cfg, hw)
	} else {
		argv = []string{"-y", "-i", item.segmentPath, "-c:v", cfg.VideoCodec, "-preset", cfg.Preset, "-crf", fmt.Sprintf("%d", cfg.CRF), "-c:a", "copy", outputPath}
	}

	cb := func(fraction, fps float64, processedBytes int64) {
		agg.Update(workerID, fraction, fps, processedBytes)
	}

	result := encode(ctx, argv, item.probeDuration, cb)
	if !result.Success {
		agg.Fail(workerID, result.Err.Error())
		return segmentOutcome{jobID: item.jobID, sourcePath: item.sourcePath, ordinal: item.ordinal, err: result.Err}
	}

	agg.Complete(workerID)
	return segmentOutcome{jobID: item.jobID, sourcePath: item.sourcePath, ordinal: item.ordinal, outputPath: outputPath}
}

func compressedSegmentPath(segPath string) string {
	dir := filepath.Dir(segPath)
	ext := filepath.Ext(segPath)
	stem := util.GetFileStem(segPath)
	if i := strings.LastIndex(stem, "_segment_"); i >= 0 {
		return filepath.Join(dir, stem[:i]+"_compressed"+stem[i:]+ext)
	}
	return filepath.Join(dir, stem+"_compressed"+ext)
}

// mergeJob merges a job's compressed segments, verifies, and replaces the
// source via the Per-File Safety Protocol (§4.7 stage 3, §4.9).
func mergeJob(ctx context.Context, sourcePath string, cfg *config.Config, hw *ffmpeg.HWProfile, rec *jobRecord, log *logging.Logger) Result {
	rec.mu.Lock()
	rec.state = stateMerging
	ordinals := make([]int, 0, len(rec.compressedSegments))
	for ord := range rec.compressedSegments {
		ordinals = append(ordinals, ord)
	}
	sort.Ints(ordinals)
	orderedPaths := make([]string, len(ordinals))
	for i, ord := range ordinals {
		orderedPaths[i] = rec.compressedSegments[ord]
	}
	segDir := rec.segmentsDir
	rec.mu.Unlock()

	info, err := os.Stat(sourcePath)
	if err != nil {
		cleanupJob(rec)
		return Result{SourcePath: sourcePath, Err: errors.Wrap(errors.KindPreflight, "source vanished before merge", err)}
	}
	sizeGB := util.BytesToGB(info.Size())

	mergedPath := filepath.Join(segDir, util.GetFileStem(sourcePath)+"_merged"+filepath.Ext(sourcePath))
	timeout := segment.Timeout(sizeGB, cfg.MinSegmentationTimeoutMinutes, cfg.SegmentationTimeoutMinPerGB)

	if err := segment.Merge(ctx, cfg.FFmpegPath, orderedPaths, mergedPath, timeout); err != nil {
		cleanupJob(rec)
		return Result{SourcePath: sourcePath, Err: err}
	}

	rec.mu.Lock()
	rec.state = stateVerifying
	rec.mu.Unlock()

	produce := protocol.MergedFileProducer(mergedPath)
	protoResult := protocol.RunProtocol(ctx, sourcePath, cfg, produce, log)
	cleanupJob(rec)

	if protoResult.Err != nil {
		rec.mu.Lock()
		rec.state = stateFailed
		rec.mu.Unlock()
		return Result{SourcePath: sourcePath, Err: protoResult.Err}
	}

	rec.mu.Lock()
	rec.state = stateReplaced
	rec.mu.Unlock()
	return Result{SourcePath: sourcePath, ReplacedPath: protoResult.ReplacedPath}
}

func cleanupJob(rec *jobRecord) {
	rec.mu.Lock()
	dir := rec.segmentsDir
	rec.mu.Unlock()
	if dir != "" {
		_ = os.RemoveAll(dir)
	}
}

// RunOne processes a single large file sequentially at segment granularity,
// using the same worker pool abstraction without the three-stage fan-out
// (§4.7 fallback: used when the parallel-pipeline criteria are not met).
func RunOne(ctx context.Context, path string, cfg *config.Config, hw *ffmpeg.HWProfile, agg *progress.Aggregator, log *logging.Logger) Result {
	info, err := os.Stat(path)
	if err != nil {
		return Result{SourcePath: path, Err: errors.Wrap(errors.KindPreflight, "source file missing", err)}
	}
	sizeGB := util.BytesToGB(info.Size())

	probe, err := ffprobe.Probe(ctx, cfg.FFprobePath, path, ffprobe.ProbeTimeout(sizeGB, cfg.ExtendedTimeouts))
	if err != nil {
		return Result{SourcePath: path, Err: err}
	}

	segDir := util.SegmentsDirFor(path, cfg.GetTempDir(), cfg.UseSameFilesystem)
	timeout := segment.Timeout(sizeGB, cfg.MinSegmentationTimeoutMinutes, cfg.SegmentationTimeoutMinPerGB)

	segPaths, err := segment.Segment(ctx, cfg.FFmpegPath, path, segDir, cfg.SegmentDurationSeconds, timeout)
	if err != nil {
		return Result{SourcePath: path, Err: err}
	}
	sort.Strings(segPaths)
	defer os.RemoveAll(segDir)

	var totalSegSize int64
	for _, segPath := range segPaths {
		if segInfo, err := os.Stat(segPath); err == nil {
			totalSegSize += segInfo.Size()
		}
	}
	if warning, isWarning := warnSizeDelta(totalSegSize, info.Size(), cfg.SizeDifferenceWarningPercent); isWarning {
		log.Warn("segment size delta exceeds threshold", "path", path, "warning", warning, "source_duration", probe.DurationSecs)
	}

	items := make([]worker.Item, len(segPaths))
	for i, segPath := range segPaths {
		outputPath := compressedSegmentPath(segPath)
		segProbe, probeErr := ffprobe.Probe(ctx, cfg.FFprobePath, segPath, ffprobe.ProbeTimeout(0, false))
		var argv []string
		var duration float64
		if probeErr == nil {
			argv = ffmpeg.BuildEncodeArgs(segPath, outputPath, segProbe, cfg, hw)
			duration = segProbe.DurationSecs
		}
		items[i] = worker.Item{
			ID:            fmt.Sprintf("%s#%d", path, i),
			Label:         fmt.Sprintf("%s segment %d", util.GetFilename(path), i),
			InputPath:     segPath,
			OutputPath:    outputPath,
			Ordinal:       i,
			WeightBytes:   info.Size() / int64(len(segPaths)),
			Argv:          argv,
			ProbeDuration: duration,
		}
	}

	poolSize := util.RecommendedWorkerCount(util.GetSystemInfo(), cfg.MaxWorkers, cfg.MaxWorkersLimit, 0)
	pool := worker.New(poolSize, len(items), agg, worker.DefaultEncoder(cfg.FFmpegPath))
	results := pool.Run(ctx, items)

	compressedPaths := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			return Result{SourcePath: path, Err: r.Err}
		}
		compressedPaths = append(compressedPaths, r.OutputPath)
	}

	mergedPath := filepath.Join(segDir, util.GetFileStem(path)+"_merged"+filepath.Ext(path))
	if err := segment.Merge(ctx, cfg.FFmpegPath, compressedPaths, mergedPath, timeout); err != nil {
		return Result{SourcePath: path, Err: err}
	}

	produce := protocol.MergedFileProducer(mergedPath)
	protoResult := protocol.RunProtocol(ctx, path, cfg, produce, log)
	if protoResult.Err != nil {
		return Result{SourcePath: path, Err: protoResult.Err}
	}

	return Result{SourcePath: path, ReplacedPath: protoResult.ReplacedPath}
}

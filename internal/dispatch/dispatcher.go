package dispatch

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/five82/videocomp/internal/config"
	"github.com/five82/videocomp/internal/ffmpeg"
	"github.com/five82/videocomp/internal/logging"
	"github.com/five82/videocomp/internal/pipeline"
	"github.com/five82/videocomp/internal/progress"
	"github.com/five82/videocomp/internal/protocol"
	"github.com/five82/videocomp/internal/util"
)

// gbPerWorkerHeadroom is the assumed memory footprint of one concurrent
// encode, used to derive a host-aware worker count (§4.8, §5).
const gbPerWorkerHeadroom = 2.0

// Strategy is the size-based routing tag for a Job (§3).
type Strategy int

const (
	StrategySmall Strategy = iota
	StrategyLarge
)

// Job is an input file plus its derived classification (§3).
type Job struct {
	Path     string
	SizeGB   float64
	Strategy Strategy
}

// JobOutcome is the terminal result for one Job.
type JobOutcome struct {
	Path         string
	ReplacedPath string
	Err          error
	Skipped      bool
	Warning      string
	Analysis     *FileAnalysis
}

// BatchSummary is the result of ProcessBatch.
type BatchSummary struct {
	Outcomes  []JobOutcome
	Processed int
	Failed    int
	Skipped   int
	DryRun    bool
}

// ExitCode returns the process exit code per §6/§7: 0 on full success (or a
// dry-run batch, which by definition skips every file intentionally), 1
// when a live batch processed nothing, 2 on any failure.
func (s BatchSummary) ExitCode() int {
	if s.Failed > 0 {
		return 2
	}
	if s.Processed == 0 && !s.DryRun {
		return 1
	}
	return 0
}

// Classify tags each existing path SMALL or LARGE against cfg.ThresholdGB.
// Non-existent paths are reported as skipped outcomes with a warning, never
// fatal to the batch (§4.8).
func Classify(paths []string, cfg *config.Config) ([]Job, []JobOutcome) {
	var jobs []Job
	var skipped []JobOutcome

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			skipped = append(skipped, JobOutcome{Path: p, Skipped: true, Warning: "path does not exist, skipping"})
			continue
		}
		sizeGB := util.BytesToGB(info.Size())
		strategy := StrategySmall
		if cfg.IsLarge(sizeGB) {
			strategy = StrategyLarge
		}
		jobs = append(jobs, Job{Path: p, SizeGB: sizeGB, Strategy: strategy})
	}

	return jobs, skipped
}

// ProcessBatch is the core's top-level entry point (§6): it classifies
// files, runs Phase A (small files, worker pool) and Phase B (large files,
// Large-File Pipeline or sequential fallback), and returns a summary. Both
// phases feed the same byte-weighted progress aggregator, so overall
// progress reflects actual bytes processed rather than a fixed phase split.
func ProcessBatch(ctx context.Context, paths []string, cfg *config.Config, dryRun bool, agg *progress.Aggregator, log *logging.Logger) BatchSummary {
	jobs, skipped := Classify(paths, cfg)

	var small, large []Job
	for _, j := range jobs {
		if j.Strategy == StrategySmall {
			small = append(small, j)
		} else {
			large = append(large, j)
		}
	}

	summary := BatchSummary{Outcomes: append([]JobOutcome{}, skipped...), DryRun: dryRun}
	summary.Skipped += len(skipped)

	if dryRun {
		for _, j := range append(append([]Job{}, small...), large...) {
			analysis := AnalyzeFile(ctx, j, cfg)
			summary.Outcomes = append(summary.Outcomes, JobOutcome{Path: j.Path, Skipped: true, Warning: analysis.String(), Analysis: &analysis})
			summary.Skipped++
		}
		return summary
	}

	hw := ffmpeg.DetectAcceleration(ctx, cfg.FFmpegPath)

	if len(small) > 0 {
		outcomes := runSmallPhase(ctx, small, cfg, hw, agg, log)
		applyOutcomes(&summary, outcomes)
	}

	if len(large) > 0 {
		outcomes := runLargePhase(ctx, large, cfg, hw, agg, log)
		applyOutcomes(&summary, outcomes)
	}

	return summary
}

func applyOutcomes(summary *BatchSummary, outcomes []JobOutcome) {
	for _, o := range outcomes {
		summary.Outcomes = append(summary.Outcomes, o)
		switch {
		case o.Skipped:
			summary.Skipped++
		case o.Err != nil:
			summary.Failed++
		default:
			summary.Processed++
		}
	}
}

// runSmallPhase processes SMALL jobs with a bounded worker pool, each job
// running the Per-File Safety Protocol directly (§4.8 Phase A).
func runSmallPhase(ctx context.Context, jobs []Job, cfg *config.Config, hw *ffmpeg.HWProfile, agg *progress.Aggregator, log *logging.Logger) []JobOutcome {
	workerCount := util.RecommendedWorkerCount(util.GetSystemInfo(), cfg.MaxWorkers, cfg.MaxWorkersLimit, gbPerWorkerHeadroom)
	if workerCount > len(jobs) {
		workerCount = len(jobs)
	}
	if workerCount < 1 {
		workerCount = 1
	}

	outcomes := make([]JobOutcome, len(jobs))
	sem := make(chan struct{}, workerCount)
	g, _ := errgroup.WithContext(context.Background())

	for i, j := range jobs {
		i, j := i, j
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()

			info, statErr := os.Stat(j.Path)
			var weight int64
			if statErr == nil {
				weight = info.Size()
			}
			workerID := "small:" + j.Path
			agg.Register(workerID, util.GetFilename(j.Path), weight, nil)

			cb := func(fraction, fps float64, processedBytes int64) {
				agg.Update(workerID, fraction, fps, processedBytes)
			}

			produce := protocol.SmallFileProducer(cfg, hw, cb)
			protoResult := protocol.RunProtocol(ctx, j.Path, cfg, produce, log)

			if protoResult.Err != nil {
				agg.Fail(workerID, protoResult.Err.Error())
				log.Error("job failed", "path", j.Path, "error", protoResult.Err)
				outcomes[i] = JobOutcome{Path: j.Path, Err: protoResult.Err}
				return nil
			}

			agg.Complete(workerID)
			log.Info("job succeeded", "path", j.Path, "replaced", protoResult.ReplacedPath)
			outcomes[i] = JobOutcome{Path: j.Path, ReplacedPath: protoResult.ReplacedPath}
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// runLargePhase routes LARGE jobs through the Large-File Pipeline when its
// criteria are met, otherwise processes them sequentially at segment
// granularity using the same worker pool (§4.7, §4.8 Phase B).
func runLargePhase(ctx context.Context, jobs []Job, cfg *config.Config, hw *ffmpeg.HWProfile, agg *progress.Aggregator, log *logging.Logger) []JobOutcome {
	workerCount := util.RecommendedWorkerCount(util.GetSystemInfo(), cfg.MaxWorkers, cfg.MaxWorkersLimit, gbPerWorkerHeadroom)

	useParallelPipeline := len(jobs) > 1 && cfg.SegmentParallel && workerCount > 1

	paths := make([]string, len(jobs))
	for i, j := range jobs {
		paths[i] = j.Path
	}

	if useParallelPipeline {
		results := pipeline.Run(ctx, paths, cfg, hw, agg, log, workerCount)
		outcomes := make([]JobOutcome, len(results))
		for i, r := range results {
			if r.Err != nil {
				outcomes[i] = JobOutcome{Path: r.SourcePath, Err: r.Err}
			} else {
				outcomes[i] = JobOutcome{Path: r.SourcePath, ReplacedPath: r.ReplacedPath}
			}
		}
		return outcomes
	}

	outcomes := make([]JobOutcome, len(jobs))
	for i, j := range jobs {
		r := pipeline.RunOne(ctx, j.Path, cfg, hw, agg, log)
		if r.Err != nil {
			outcomes[i] = JobOutcome{Path: j.Path, Err: r.Err}
		} else {
			outcomes[i] = JobOutcome{Path: j.Path, ReplacedPath: r.ReplacedPath}
		}
	}
	return outcomes
}

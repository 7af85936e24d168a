// Package videocomp provides a Go library for batch video compression.
//
// videocomp classifies input files by size, routes small files through a
// bounded worker pool and large files through a three-stage
// segment/compress/merge pipeline, and wraps every replacement of a source
// file in a Per-File Safety Protocol that verifies free space, hashes the
// original, verifies the compressed artifact's integrity, and only then
// atomically replaces the source.
//
// Basic usage:
//
//	cfg := config.Default()
//	summary := videocomp.ProcessBatch(ctx, []string{"movie.mkv"}, cfg, false, nil, logger)
//	fmt.Printf("processed=%d failed=%d\n", summary.Processed, summary.Failed)
package videocomp

import (
	"context"
	"os"

	"github.com/five82/videocomp/internal/config"
	"github.com/five82/videocomp/internal/dispatch"
	"github.com/five82/videocomp/internal/ffprobe"
	"github.com/five82/videocomp/internal/logging"
	"github.com/five82/videocomp/internal/progress"
	"github.com/five82/videocomp/internal/util"
)

// Re-exported types so callers only need to import the root package.
type (
	Config      = config.Config
	BatchSummary = dispatch.BatchSummary
	JobOutcome  = dispatch.JobOutcome
	MediaProbe  = ffprobe.MediaProbe
)

// ProcessBatch is the core's top-level entry point (§6): it classifies the
// given paths, runs the Phase A small-file worker pool and the Phase B
// large-file pipeline, and returns a summary whose ExitCode reflects the
// process exit code convention (0/1/2).
//
// agg may be nil; if supplied, its Snapshot reflects live progress across
// every in-flight Job and may be polled concurrently from another
// goroutine. log must not be nil.
func ProcessBatch(ctx context.Context, paths []string, cfg *config.Config, dryRun bool, agg *progress.Aggregator, log *logging.Logger) BatchSummary {
	if agg == nil {
		agg = progress.New()
	}
	return dispatch.ProcessBatch(ctx, paths, cfg, dryRun, agg, log)
}

// Probe extracts media information for a single file using ffprobe (§3
// Media Probe). It performs no encoding and makes no changes to path.
func Probe(ctx context.Context, path string, cfg *config.Config) (*MediaProbe, error) {
	var sizeGB float64
	if info, err := os.Stat(path); err == nil {
		sizeGB = util.BytesToGB(info.Size())
	}
	timeout := ffprobe.ProbeTimeout(sizeGB, cfg.ExtendedTimeouts)
	return ffprobe.Probe(ctx, cfg.FFprobePath, path, timeout)
}

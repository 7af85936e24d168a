// Package segment cuts a container into fixed-duration parts by stream
// copy, and concatenates parts back into a single container (§4.4).
package segment

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/five82/videocomp/internal/errors"
	"github.com/five82/videocomp/internal/util"
)

// Segment describes one materialized slice of a Job's media (§3 Segment).
type Segment struct {
	JobID    string
	Ordinal  int
	Path     string
	Size     int64
	Duration float64
}

// Timeout computes the segmentation/merge timeout: the larger of the
// configured floor and a per-gigabyte allowance (§4.4).
func Timeout(sizeGB, minMinutes, minutesPerGB float64) time.Duration {
	minutes := math.Max(minMinutes, sizeGB*minutesPerGB)
	return time.Duration(minutes * float64(time.Minute))
}

// Segment invokes ffmpeg's segment muxer to cut inputPath into
// segmentDuration-second parts under dir, named <stem>_segment_NNN.<ext>.
func Segment(ctx context.Context, ffmpegPath, inputPath, dir string, segmentDuration int, timeout time.Duration) ([]string, error) {
	if err := util.EnsureDirectory(dir); err != nil {
		return nil, errors.Wrap(errors.KindPipelineStage, "create segment directory", err)
	}

	ext := filepath.Ext(inputPath)
	stem := util.GetFileStem(inputPath)
	pattern := filepath.Join(dir, fmt.Sprintf("%s_segment_%%03d%s", stem, ext))

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	args := []string{
		"-y", "-i", inputPath,
		"-c", "copy",
		"-map", "0",
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%d", segmentDuration),
		"-reset_timestamps", "1",
		pattern,
	}

	cmd := exec.CommandContext(cctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		cleanupDir(dir)
		if cctx.Err() != nil {
			return nil, errors.Wrap(errors.KindPipelineStage, "segmentation timed out", errors.NewCommandError("ffmpeg segment", errors.CommandTimeout, err))
		}
		return nil, errors.Wrap(errors.KindPipelineStage, fmt.Sprintf("segmentation failed: %s", lastBytes(output, 500)), err)
	}

	paths, err := filepath.Glob(filepath.Join(dir, fmt.Sprintf("%s_segment_*%s", stem, ext)))
	if err != nil || len(paths) == 0 {
		cleanupDir(dir)
		return nil, errors.New(errors.KindPipelineStage, "segmentation produced no output files")
	}

	return paths, nil
}

// Merge concatenates segments into outputPath using ffmpeg's concat
// demuxer with stream copy, writing and removing a temporary concat-list
// file on every exit path.
func Merge(ctx context.Context, ffmpegPath string, segmentPaths []string, outputPath string, timeout time.Duration) error {
	if len(segmentPaths) == 0 {
		return errors.New(errors.KindPipelineStage, "no segments to merge")
	}

	listPath := outputPath + ".concat.txt"
	if err := writeConcatList(listPath, segmentPaths); err != nil {
		os.Remove(listPath)
		return errors.Wrap(errors.KindPipelineStage, "write concat list", err)
	}
	defer os.Remove(listPath)

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	args := []string{
		"-y", "-f", "concat", "-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}

	cmd := exec.CommandContext(cctx, ffmpegPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		if cctx.Err() != nil {
			return errors.Wrap(errors.KindPipelineStage, "merge timed out", errors.NewCommandError("ffmpeg concat", errors.CommandTimeout, err))
		}
		return errors.Wrap(errors.KindPipelineStage, fmt.Sprintf("merge failed: %s", lastBytes(output, 500)), err)
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		os.Remove(outputPath)
		return errors.New(errors.KindPipelineStage, "merge produced empty output")
	}

	if err := probePlayable(ctx, ffmpegPath, outputPath); err != nil {
		os.Remove(outputPath)
		return errors.Wrap(errors.KindPipelineStage, "merged output failed playability probe", err)
	}

	return nil
}

// probePlayable runs a decode-to-null probe of the merged output's first 5
// seconds (§4.4).
func probePlayable(ctx context.Context, ffmpegPath, path string) error {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	cmd := exec.CommandContext(cctx, ffmpegPath, "-v", "error", "-i", path, "-t", "5", "-f", "null", "-")
	return cmd.Run()
}

// Cleanup removes a segment directory and all of its contents. Safe to
// call on any exit path, including partial failure.
func Cleanup(dir string) {
	cleanupDir(dir)
}

func cleanupDir(dir string) {
	_ = os.RemoveAll(dir)
}

func writeConcatList(listPath string, segmentPaths []string) error {
	f, err := os.Create(listPath)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, p := range segmentPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if _, err := fmt.Fprintf(f, "file '%s'\n", abs); err != nil {
			return err
		}
	}
	return nil
}

func lastBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}

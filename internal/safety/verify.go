package safety

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/five82/videocomp/internal/errors"
	"github.com/five82/videocomp/internal/ffprobe"
)

// VerifyResult carries the outcome of a Verify pass: attributes observed,
// and non-fatal warnings accumulated along the way (§4.3).
type VerifyResult struct {
	Attributes []string
	Warnings   []string
}

// Verify runs the multi-step playability and structural verification
// described in §4.3. original, when non-nil, enables the structural
// comparison step (warnings only). A returned error is always fatal.
func Verify(ctx context.Context, ffprobePath, ffmpegPath, path string, original *ffprobe.MediaProbe) (*VerifyResult, error) {
	result := &VerifyResult{}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindIntegrityFailed, "output file missing", err)
	}
	if info.Size() < 1024 {
		return nil, errors.New(errors.KindIntegrityFailed, fmt.Sprintf("output file too small: %d bytes", info.Size()))
	}
	result.Attributes = append(result.Attributes, fmt.Sprintf("size=%d bytes", info.Size()))

	probe, err := ffprobe.Probe(ctx, ffprobePath, path, ffprobe.ProbeTimeout(float64(info.Size())/(1<<30), true))
	if err != nil {
		return nil, errors.Wrap(errors.KindIntegrityFailed, "probe failed", err)
	}
	if probe.VideoStream() == nil {
		return nil, errors.New(errors.KindIntegrityFailed, "no video stream in output")
	}
	result.Attributes = append(result.Attributes, fmt.Sprintf("duration=%.1fs", probe.DurationSecs))

	if original != nil {
		compareStructure(original, probe, result)
	}

	if err := probeSection(ctx, ffmpegPath, path, 0, 5); err != nil {
		return nil, errors.Wrap(errors.KindIntegrityFailed, "playability probe failed at start", err)
	}
	result.Attributes = append(result.Attributes, "start playable")

	if probe.DurationSecs > 20 {
		mid := probe.DurationSecs/2 - 2.5
		if err := probeSection(ctx, ffmpegPath, path, mid, 5); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("mid-duration playability probe failed: %v", err))
		} else {
			result.Attributes = append(result.Attributes, "mid playable")
		}
	}

	if probe.DurationSecs > 10 {
		final := probe.DurationSecs - 5
		if final < 0 {
			final = 0
		}
		if err := probeSection(ctx, ffmpegPath, path, final, 5); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("final playability probe failed: %v", err))
		} else {
			result.Attributes = append(result.Attributes, "end playable")
		}
	}

	return result, nil
}

func compareStructure(original, replacement *ffprobe.MediaProbe, result *VerifyResult) {
	if len(original.Streams) != len(replacement.Streams) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"stream count differs: original=%d replacement=%d", len(original.Streams), len(replacement.Streams)))
	}

	ov, rv := original.VideoStream(), replacement.VideoStream()
	if ov != nil && rv != nil && (ov.Width != rv.Width || ov.Height != rv.Height) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"resolution differs: original=%dx%d replacement=%dx%d", ov.Width, ov.Height, rv.Width, rv.Height))
	}
}

// probeSection attempts a decode-to-null of a section of the file.
func probeSection(ctx context.Context, ffmpegPath, path string, start, duration float64) error {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	args := []string{"-v", "error"}
	if start > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.2f", start))
	}
	args = append(args, "-i", path, "-t", fmt.Sprintf("%.2f", duration), "-f", "null", "-")

	cmd := exec.CommandContext(cctx, ffmpegPath, args...)
	return cmd.Run()
}

// SizeDeltaWarning reports whether the size delta between actual and
// expected bytes exceeds thresholdPercent, returning a warning string when
// it does.
func SizeDeltaWarning(actual, expected int64, thresholdPercent float64, label string) (string, bool) {
	if expected == 0 {
		return "", false
	}
	delta := float64(actual-expected) / float64(expected) * 100
	if delta < 0 {
		delta = -delta
	}
	if delta > thresholdPercent {
		return fmt.Sprintf("%s size delta %.1f%% exceeds threshold %.1f%%", label, delta, thresholdPercent), true
	}
	return "", false
}

package dispatch

import (
	"context"
	"fmt"

	"github.com/five82/videocomp/internal/config"
	"github.com/five82/videocomp/internal/ffprobe"
	"github.com/five82/videocomp/internal/util"
)

// FileAnalysis is the non-destructive per-file report produced for dry-run
// batches (§4.8, §6): size, duration, and either a bitrate-based
// compression-time estimate or an explicit note that no bitrate data was
// available.
type FileAnalysis struct {
	Path             string
	Strategy         Strategy
	SizeGB           float64
	DurationSecs     float64
	BitrateKbps      int64
	HasBitrateData   bool
	EstimatedMinutes float64
}

// String renders the analysis as a single report line (§8 S2).
func (a FileAnalysis) String() string {
	base := fmt.Sprintf("size=%.2fGB duration=%s strategy=%s",
		a.SizeGB, util.FormatDuration(a.DurationSecs), strategyLabel(a.Strategy))
	if !a.HasBitrateData {
		return base + ", no bitrate data"
	}
	return fmt.Sprintf("%s, bitrate=%dkbps, estimated compression time %s",
		base, a.BitrateKbps, util.FormatDuration(a.EstimatedMinutes*60))
}

func strategyLabel(s Strategy) string {
	if s == StrategyLarge {
		return "large"
	}
	return "small"
}

// minutesPerGBForPreset maps an encoder preset to an expected
// minutes-per-gigabyte compression rate, grounded on the original
// implementation's preset-keyed lookup table.
func minutesPerGBForPreset(preset string) float64 {
	switch preset {
	case "ultrafast", "superfast", "veryfast":
		return 5
	case "faster", "fast":
		return 8
	case "slow", "slower", "veryslow":
		return 25
	default:
		return 15
	}
}

// AnalyzeFile produces a dry-run FileAnalysis for j without creating any
// temp directories or invoking the transcoder. A probe failure yields a
// partial analysis (size and strategy only, no bitrate data) rather than
// failing the batch: dry-run is meant to always produce a report.
func AnalyzeFile(ctx context.Context, j Job, cfg *config.Config) FileAnalysis {
	analysis := FileAnalysis{Path: j.Path, Strategy: j.Strategy, SizeGB: j.SizeGB}

	probeTimeout := ffprobe.ProbeTimeout(j.SizeGB, cfg.ExtendedTimeouts)
	probe, err := ffprobe.Probe(ctx, cfg.FFprobePath, j.Path, probeTimeout)
	if err != nil {
		return analysis
	}

	analysis.DurationSecs = probe.DurationSecs
	if probe.TotalBitRate > 0 {
		analysis.HasBitrateData = true
		analysis.BitrateKbps = probe.TotalBitRate / 1000
		analysis.EstimatedMinutes = j.SizeGB * minutesPerGBForPreset(cfg.Preset)
	}
	return analysis
}

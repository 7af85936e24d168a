package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/five82/videocomp/internal/config"
)

func TestClassifySkipsMissingPaths(t *testing.T) {
	cfg := config.Default()
	jobs, skipped := Classify([]string{"/nonexistent/video.mkv"}, cfg)

	if len(jobs) != 0 {
		t.Fatalf("jobs = %d, want 0", len(jobs))
	}
	if len(skipped) != 1 || !skipped[0].Skipped {
		t.Fatalf("skipped = %+v, want one skipped outcome", skipped)
	}
}

func TestClassifyRoutesBySize(t *testing.T) {
	dir := t.TempDir()

	small := filepath.Join(dir, "small.mkv")
	if err := os.WriteFile(small, make([]byte, 1024), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.ThresholdGB = 10

	jobs, skipped := Classify([]string{small}, cfg)
	if len(skipped) != 0 {
		t.Fatalf("skipped = %+v, want none", skipped)
	}
	if len(jobs) != 1 || jobs[0].Strategy != StrategySmall {
		t.Fatalf("jobs = %+v, want one SMALL job", jobs)
	}
}

func TestAnalyzeFileNoBitrateData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "no_probe.mkv")
	if err := os.WriteFile(path, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.FFprobePath = "/nonexistent/ffprobe"

	j := Job{Path: path, SizeGB: 1, Strategy: StrategySmall}
	analysis := AnalyzeFile(context.Background(), j, cfg)

	if analysis.HasBitrateData {
		t.Fatalf("HasBitrateData = true, want false when ffprobe is unavailable")
	}
	if got := analysis.String(); !strings.Contains(got, "no bitrate data") {
		t.Fatalf("String() = %q, want it to mention no bitrate data", got)
	}
}

func TestBatchSummaryExitCode(t *testing.T) {
	tests := []struct {
		name    string
		summary BatchSummary
		want    int
	}{
		{"all succeeded", BatchSummary{Processed: 2}, 0},
		{"all skipped dry run", BatchSummary{Skipped: 2, DryRun: true}, 0},
		{"nothing processed", BatchSummary{}, 1},
		{"live batch with only missing files", BatchSummary{Skipped: 2}, 1},
		{"partial failure", BatchSummary{Processed: 1, Failed: 1}, 2},
		{"total failure", BatchSummary{Failed: 1}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.summary.ExitCode(); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

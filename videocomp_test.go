package videocomp

import (
	"context"
	"os"
	"testing"

	"github.com/five82/videocomp/internal/config"
	"github.com/five82/videocomp/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Enabled: false})
}

func TestProcessBatchSkipsMissingFiles(t *testing.T) {
	cfg := config.Default()
	summary := ProcessBatch(context.Background(), []string{"/nonexistent/path/video.mkv"}, cfg, false, nil, testLogger())

	if summary.Skipped != 1 {
		t.Fatalf("Skipped = %d, want 1", summary.Skipped)
	}
	if summary.ExitCode() != 1 {
		t.Fatalf("ExitCode() = %d, want 1 (nothing processed)", summary.ExitCode())
	}
}

func TestProcessBatchDryRunSkipsEverything(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()
	path := dir + "/movie.mkv"
	if err := os.WriteFile(path, []byte("not a real video"), 0o644); err != nil {
		t.Fatal(err)
	}

	summary := ProcessBatch(context.Background(), []string{path}, cfg, true, nil, testLogger())
	if summary.Skipped != 1 || summary.Processed != 0 || summary.Failed != 0 {
		t.Fatalf("dry run summary = %+v, want all skipped", summary)
	}
	if summary.ExitCode() != 0 {
		t.Fatalf("ExitCode() = %d, want 0 (dry run)", summary.ExitCode())
	}
	if summary.Outcomes[0].Analysis == nil {
		t.Fatalf("dry run outcome has no analysis attached")
	}
}

package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/five82/videocomp/internal/config"
)

func TestHashDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bin")
	if err := os.WriteFile(path, []byte("hello videocomp"), 0o644); err != nil {
		t.Fatal(err)
	}

	h1, err := Hash(path, 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h2, err := Hash(path, 1, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected deterministic hash, got %s and %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected 64-char hex digest, got %d chars", len(h1))
	}
}

func TestSizeDeltaWarning(t *testing.T) {
	if _, warn := SizeDeltaWarning(1000, 1000, 15, "segment"); warn {
		t.Error("expected no warning for identical sizes")
	}
	if _, warn := SizeDeltaWarning(1100, 1000, 15, "segment"); warn {
		t.Error("expected no warning for 10% delta under 15% threshold")
	}
	msg, warn := SizeDeltaWarning(1200, 1000, 15, "segment")
	if !warn {
		t.Error("expected warning for 20% delta over 15% threshold")
	}
	if msg == "" {
		t.Error("expected non-empty warning message")
	}
}

func TestCheckSpaceRejectsWhenInsufficient(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.mkv")
	if err := os.WriteFile(inputPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.MinFreeSpaceGB = 0
	cfg.UseSameFilesystem = true

	// An absurdly large source size should always exceed available space.
	err := CheckSpace(inputPath, 1e12, cfg)
	if err == nil {
		t.Error("expected CheckSpace to fail for an impossibly large source size")
	}
}

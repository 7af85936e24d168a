package pipeline

import "testing"

func TestWarnSizeDelta(t *testing.T) {
	if _, warn := warnSizeDelta(1000, 1000, 15); warn {
		t.Error("expected no warning for identical sizes")
	}
	if _, warn := warnSizeDelta(1200, 1000, 15); !warn {
		t.Error("expected warning for 20% delta over 15% threshold")
	}
}

func TestCompressedSegmentPath(t *testing.T) {
	got := compressedSegmentPath("/tmp/segs/movie_segment_001.mkv")
	want := "/tmp/segs/movie_compressed_segment_001.mkv"
	if got != want {
		t.Errorf("compressedSegmentPath() = %q, want %q", got, want)
	}
}

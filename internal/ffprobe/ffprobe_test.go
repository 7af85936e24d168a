package ffprobe

import "testing"

func TestProbeTimeout(t *testing.T) {
	if got := ProbeTimeout(100, false); got.Seconds() != 30 {
		t.Errorf("expected 30s when extended timeouts disabled, got %v", got)
	}
	if got := ProbeTimeout(1, true); got.Seconds() != 45 {
		t.Errorf("expected 30+1*15=45s, got %v", got)
	}
	if got := ProbeTimeout(10, true); got.Seconds() != 180 {
		t.Errorf("expected 30+10*15=180s, got %v", got)
	}
}

func TestDetectHDR(t *testing.T) {
	cases := []struct {
		primaries, transfer, matrix string
		want                        bool
	}{
		{"bt709", "bt709", "bt709", false},
		{"bt2020", "bt709", "bt709", true},
		{"bt709", "smpte2084", "bt709", true},
		{"bt709", "arib-std-b67", "bt709", true},
		{"bt709", "bt709", "bt2020nc", true},
	}
	for _, c := range cases {
		if got := detectHDR(c.primaries, c.transfer, c.matrix); got != c.want {
			t.Errorf("detectHDR(%q,%q,%q) = %v, want %v", c.primaries, c.transfer, c.matrix, got, c.want)
		}
	}
}

func TestIsHighBitDepth(t *testing.T) {
	if !isHighBitDepth("yuv420p10le", "") {
		t.Error("expected yuv420p10le to be high bit depth")
	}
	if isHighBitDepth("yuv420p", "") {
		t.Error("expected yuv420p to not be high bit depth")
	}
	if !isHighBitDepth("yuv420p", "10") {
		t.Error("expected bits_per_raw_sample=10 to be high bit depth")
	}
}

func TestIsHighFPS(t *testing.T) {
	if !isHighFPS("60/1") {
		t.Error("expected 60/1 to be high fps")
	}
	if isHighFPS("30000/1001") {
		t.Error("expected 30000/1001 (~29.97) to not be high fps")
	}
	if isHighFPS("invalid") {
		t.Error("expected malformed frame rate to not be high fps")
	}
}

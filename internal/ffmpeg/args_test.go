package ffmpeg

import (
	"strings"
	"testing"

	"github.com/five82/videocomp/internal/config"
	"github.com/five82/videocomp/internal/ffprobe"
)

func TestHWQuality(t *testing.T) {
	if got := hwQuality(18); got != 30 {
		t.Errorf("hwQuality(18) = %d, want 30", got)
	}
	if got := hwQuality(35); got != 62 {
		t.Errorf("hwQuality(35) = %d, want 62", got)
	}
}

func TestBuildEncodeArgsSoftware(t *testing.T) {
	cfg := config.Default()
	probe := &ffprobe.MediaProbe{
		Streams: []ffprobe.StreamInfo{{CodecType: "video", BitRate: 8_000_000}},
	}

	argv := BuildEncodeArgs("in.mkv", "out.mkv", probe, cfg, nil)
	joined := strings.Join(argv, " ")

	if !strings.Contains(joined, "-c:v libx265") {
		t.Errorf("expected software codec in args, got %q", joined)
	}
	if !strings.Contains(joined, "-preset medium") {
		t.Errorf("expected preset in args, got %q", joined)
	}
	if !strings.Contains(joined, "-c:a copy") {
		t.Errorf("expected audio stream copy, got %q", joined)
	}
}

func TestBuildEncodeArgsHardware(t *testing.T) {
	cfg := config.Default()
	cfg.EnableHWAccel = true
	probe := &ffprobe.MediaProbe{
		Streams: []ffprobe.StreamInfo{{CodecType: "video"}},
	}
	hw := &HWProfile{H264Encoder: "h264_videotoolbox", HEVCEncoder: "hevc_videotoolbox", QualityFlag: "-q:v", PixFmt10Bit: "p010le"}

	argv := BuildEncodeArgs("in.mkv", "out.mkv", probe, cfg, hw)
	joined := strings.Join(argv, " ")

	if !strings.Contains(joined, "-c:v hevc_videotoolbox") {
		t.Errorf("expected hardware HEVC encoder, got %q", joined)
	}
	if strings.Contains(joined, "-preset") {
		t.Errorf("hardware path must not set -preset, got %q", joined)
	}
}

func TestParseProgressLine(t *testing.T) {
	line := "frame=  100 fps= 25 q=28.0 size=    2048kB time=00:00:10.00 bitrate= 1677.7kbits/s speed=1.0x"
	fraction, fps, bytes := parseProgressLine(line, 100)

	if fraction != 0.1 {
		t.Errorf("expected fraction 0.1, got %v", fraction)
	}
	if fps != 25 {
		t.Errorf("expected fps 25, got %v", fps)
	}
	if bytes != 2048*1024 {
		t.Errorf("expected 2048KB in bytes, got %v", bytes)
	}
}

// Package ffmpeg builds ffmpeg invocations, probes for hardware encoders,
// and runs encodes with stderr-driven progress callbacks.
package ffmpeg

import (
	"fmt"

	"github.com/five82/videocomp/internal/config"
	"github.com/five82/videocomp/internal/ffprobe"
)

// HWProfile describes an available hardware-accelerated encoder path
// (§4.2 DetectAcceleration).
type HWProfile struct {
	H264Encoder  string
	HEVCEncoder  string
	QualityFlag  string
	PixFmt10Bit  string
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// hwQuality maps a software CRF to the hardware quality scalar q, per
// §4.2: q = clamp(18 + (crf-18)*2.6, 30, 70).
func hwQuality(crf int) int {
	q := clamp(18+(float64(crf)-18)*2.6, 30, 70)
	return int(q)
}

// BuildEncodeArgs constructs the ffmpeg argv for transcoding input to
// output, selecting hardware or software encoders per §4.2.
func BuildEncodeArgs(input, output string, probe *ffprobe.MediaProbe, cfg *config.Config, hw *HWProfile) []string {
	args := []string{"-y", "-i", input}

	vstream := probe.VideoStream()
	is10Bit := probe.Is10Bit

	useHW := cfg.EnableHWAccel && hw != nil
	hwEncoder := ""
	if useHW {
		switch cfg.VideoCodec {
		case config.CodecX265:
			if hw.HEVCEncoder != "" {
				hwEncoder = hw.HEVCEncoder
			} else if hw.H264Encoder != "" {
				hwEncoder = hw.H264Encoder
			}
		case config.CodecX264:
			hwEncoder = hw.H264Encoder
		}
		if hwEncoder == "" {
			useHW = false
		}
	}

	if useHW {
		args = append(args, "-c:v", hwEncoder)
		q := hwQuality(cfg.CRF)
		if hw.QualityFlag != "" {
			args = append(args, hw.QualityFlag, fmt.Sprintf("%d", q))
		}
		if is10Bit && hw.PixFmt10Bit != "" {
			args = append(args, "-pix_fmt", hw.PixFmt10Bit)
		}
	} else {
		args = append(args, "-c:v", cfg.VideoCodec)
		args = append(args, "-preset", cfg.Preset)
		args = append(args, "-crf", fmt.Sprintf("%d", cfg.CRF))
		if is10Bit && cfg.Preserve10Bit {
			args = append(args, "-pix_fmt", "yuv420p10le")
		}
		if cfg.TargetBitrateReduction > 0 && vstream != nil && vstream.BitRate > 0 {
			capKbps := int64(float64(vstream.BitRate) / 1000 * cfg.TargetBitrateReduction)
			if capKbps > 0 {
				args = append(args, "-b:v", fmt.Sprintf("%dk", capKbps))
			}
		}
	}

	args = append(args, "-c:a", "copy")

	if cfg.PreserveMetadata {
		args = append(args, "-map_metadata", "0", "-movflags", "+faststart")
	}

	args = append(args, output)
	return args
}

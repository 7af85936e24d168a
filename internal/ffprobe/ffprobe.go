// Package ffprobe extracts media information from a container by invoking
// the ffprobe binary and parsing its JSON output.
package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/five82/videocomp/internal/errors"
	"github.com/five82/videocomp/internal/util"
)

// StreamInfo describes a single stream within a container.
type StreamInfo struct {
	Index     int
	CodecType string
	CodecName string
	Width     int
	Height    int
	PixFmt    string
	BitRate   int64
	Channels  int
	Profile   string
}

// MediaProbe is the result of probing a media file (§3 Media Probe).
type MediaProbe struct {
	Path         string
	DurationSecs float64
	TotalBitRate int64
	Streams      []StreamInfo

	// Derived size-driver tags.
	Is4KPlus  bool
	Is10Bit   bool
	IsHDR     bool
	IsHighFPS bool
}

// VideoStream returns the first video stream in the probe, if any.
func (p *MediaProbe) VideoStream() *StreamInfo {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

type ffprobeStream struct {
	Index            int    `json:"index"`
	CodecType        string `json:"codec_type"`
	CodecName        string `json:"codec_name"`
	Profile          string `json:"profile"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Channels         int    `json:"channels"`
	PixFmt           string `json:"pix_fmt"`
	BitRate          string `json:"bit_rate"`
	ColorPrimaries   string `json:"color_primaries"`
	ColorTransfer    string `json:"color_transfer"`
	ColorSpace       string `json:"color_space"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
	RFrameRate       string `json:"r_frame_rate"`
}

// ProbeTimeout computes the ffprobe invocation timeout: 30s flat, or
// max(30, 30 + size_gb*15) when extended timeouts are enabled (§4.2).
func ProbeTimeout(sizeGB float64, extended bool) time.Duration {
	if !extended {
		return 30 * time.Second
	}
	secs := 30 + sizeGB*15
	if secs < 30 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

// Probe invokes ffprobe against path and returns a parsed MediaProbe.
func Probe(ctx context.Context, ffprobePath, path string, timeout time.Duration) (*MediaProbe, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	cmd := exec.CommandContext(cctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		if cctx.Err() != nil {
			return nil, errors.Wrap(errors.KindProbeFailed, "ffprobe timed out", errors.NewCommandError("ffprobe", errors.CommandTimeout, err))
		}
		return nil, errors.WrapExecError("ffprobe", err, "")
	}

	var raw ffprobeOutput
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, errors.Wrap(errors.KindProbeFailed, "parse ffprobe output", err)
	}

	probe := &MediaProbe{Path: path}

	if raw.Format.Duration != "" {
		if d, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil {
			probe.DurationSecs = d
		}
	}
	if raw.Format.BitRate != "" {
		if br, err := strconv.ParseInt(raw.Format.BitRate, 10, 64); err == nil {
			probe.TotalBitRate = br
		}
	}

	for _, s := range raw.Streams {
		info := StreamInfo{
			Index:     s.Index,
			CodecType: s.CodecType,
			CodecName: s.CodecName,
			Width:     s.Width,
			Height:    s.Height,
			PixFmt:    s.PixFmt,
			Channels:  s.Channels,
			Profile:   s.Profile,
		}
		if s.BitRate != "" {
			if br, err := strconv.ParseInt(s.BitRate, 10, 64); err == nil {
				info.BitRate = br
			}
		}
		probe.Streams = append(probe.Streams, info)

		if s.CodecType == "video" {
			if s.Width >= 3840 || s.Height >= 2160 {
				probe.Is4KPlus = true
			}
			if isHighBitDepth(s.PixFmt, s.BitsPerRawSample) {
				probe.Is10Bit = true
			}
			if detectHDR(s.ColorPrimaries, s.ColorTransfer, s.ColorSpace) {
				probe.IsHDR = true
			}
			if isHighFPS(s.RFrameRate) {
				probe.IsHighFPS = true
			}
		}
	}

	if probe.VideoStream() == nil {
		return nil, errors.New(errors.KindProbeFailed, fmt.Sprintf("no video stream found in %s", util.GetFilename(path)))
	}

	return probe, nil
}

func isHighBitDepth(pixFmt, bitsPerRawSample string) bool {
	if strings.Contains(pixFmt, "10le") || strings.Contains(pixFmt, "10be") {
		return true
	}
	if bitsPerRawSample != "" {
		if bd, err := strconv.Atoi(bitsPerRawSample); err == nil && bd >= 10 {
			return true
		}
	}
	return false
}

func isHighFPS(rFrameRate string) bool {
	parts := strings.SplitN(rFrameRate, "/", 2)
	if len(parts) != 2 {
		return false
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return false
	}
	return num/den > 30
}

// detectHDR reports whether color metadata indicates HDR content. Folded
// into the probe rather than a separate media-info lookup: ffprobe's
// -show_streams already carries every field this needs.
func detectHDR(primaries, transfer, matrix string) bool {
	if containsCI(primaries, "bt2020") || containsCI(primaries, "bt2100") {
		return true
	}
	if containsCI(transfer, "smpte2084") || containsCI(transfer, "arib-std-b67") || containsCI(transfer, "pq") || containsCI(transfer, "hlg") {
		return true
	}
	if containsCI(matrix, "bt2020") {
		return true
	}
	return false
}

func containsCI(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

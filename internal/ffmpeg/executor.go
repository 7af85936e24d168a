package ffmpeg

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	coreerrors "github.com/five82/videocomp/internal/errors"
	"github.com/five82/videocomp/internal/util"
)

// ProgressCallback receives encode progress: fraction in [0,1], current
// fps, and processed bytes (estimated from reported size=).
type ProgressCallback func(fraction float64, fps float64, processedBytes int64)

// EncodeResult carries the outcome of a RunEncode invocation.
type EncodeResult struct {
	Success   bool
	Err       error
	StderrTail string
}

var timeRegex = regexp.MustCompile(`time=(\d{2}:\d{2}:\d{2}\.?\d*)`)

// stderrTailBytes is the amount of trailing ffmpeg stderr kept for error
// reporting (§4.2, §7).
const stderrTailBytes = 500

// RunEncode spawns ffmpeg with argv, streaming stderr to parse progress
// against probeDuration. callback fires when the fraction advances by at
// least 0.5 percentage points or after a 10-second quiet period (§4.2).
func RunEncode(ctx context.Context, ffmpegPath string, argv []string, probeDuration float64, callback ProgressCallback) EncodeResult {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, argv...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return EncodeResult{Success: false, Err: coreerrors.NewCommandError("ffmpeg", coreerrors.CommandStart, err)}
	}

	if err := cmd.Start(); err != nil {
		return EncodeResult{Success: false, Err: coreerrors.NewCommandError("ffmpeg", coreerrors.CommandStart, err)}
	}

	tail, lastErrorLine := consumeProgress(stderr, probeDuration, callback)

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return EncodeResult{Success: false, Err: coreerrors.NewCancelledError(), StderrTail: tail}
	}
	if waitErr != nil {
		if lastErrorLine != "" {
			return EncodeResult{Success: false, Err: coreerrors.Wrap(coreerrors.KindEncodeFailed, "ffmpeg encode failed", coreerrors.WrapExecError("ffmpeg", waitErr, lastErrorLine)), StderrTail: tail}
		}
		return EncodeResult{Success: false, Err: coreerrors.Wrap(coreerrors.KindEncodeFailed, "ffmpeg encode failed", coreerrors.WrapExecError("ffmpeg", waitErr, tail)), StderrTail: tail}
	}

	return EncodeResult{Success: true, StderrTail: tail}
}

// consumeProgress reads ffmpeg's stderr line by line, invoking callback on
// threshold-crossing progress updates, and returns the trailing output plus
// the last line that looked like an error.
func consumeProgress(stderr io.Reader, duration float64, callback ProgressCallback) (tail string, lastErrorLine string) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var tailBuilder strings.Builder
	lastFraction := -1.0
	lastCallback := time.Now()

	for scanner.Scan() {
		line := scanner.Text()
		tailBuilder.WriteString(line)
		tailBuilder.WriteString("\n")

		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
			lastErrorLine = line
		}

		if !strings.Contains(line, "time=") {
			continue
		}

		fraction, fps, size := parseProgressLine(line, duration)

		crossedThreshold := lastFraction < 0 || fraction-lastFraction >= 0.005
		quietPeriodElapsed := time.Since(lastCallback) >= 10*time.Second
		if callback != nil && (crossedThreshold || quietPeriodElapsed) {
			callback(fraction, fps, size)
			lastFraction = fraction
			lastCallback = time.Now()
		}
	}

	full := tailBuilder.String()
	if len(full) > stderrTailBytes {
		full = full[len(full)-stderrTailBytes:]
	}
	return full, lastErrorLine
}

func parseProgressLine(line string, duration float64) (fraction, fps float64, processedBytes int64) {
	var elapsed float64
	if m := timeRegex.FindStringSubmatch(line); len(m) >= 2 {
		if secs, ok := util.ParseFFmpegTime(m[1]); ok {
			elapsed = secs
		}
	}

	if duration > 0 {
		fraction = elapsed / duration
		if fraction > 1 {
			fraction = 1
		}
		if fraction < 0 {
			fraction = 0
		}
	}

	if idx := strings.Index(line, "fps="); idx >= 0 {
		remaining := strings.TrimLeft(line[idx+4:], " ")
		if spaceIdx := strings.IndexAny(remaining, " \t"); spaceIdx > 0 {
			if f, err := strconv.ParseFloat(remaining[:spaceIdx], 64); err == nil {
				fps = f
			}
		}
	}

	if idx := strings.Index(line, "size="); idx >= 0 {
		remaining := strings.TrimLeft(line[idx+5:], " ")
		end := strings.IndexAny(remaining, " \t")
		if end > 0 {
			token := strings.TrimSuffix(remaining[:end], "kB")
			if kb, err := strconv.ParseInt(token, 10, 64); err == nil {
				processedBytes = kb * 1024
			}
		}
	}

	return fraction, fps, processedBytes
}

// DetectAcceleration probes for Apple Silicon hardware encoders. It returns
// nil when the host is not Apple Silicon or the probe encode fails (§4.2).
func DetectAcceleration(ctx context.Context, ffmpegPath string) *HWProfile {
	if runtime.GOOS != "darwin" || runtime.GOARCH != "arm64" {
		return nil
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	if !probeEncoder(ctx, ffmpegPath, "h264_videotoolbox") {
		return nil
	}

	profile := &HWProfile{
		H264Encoder: "h264_videotoolbox",
		QualityFlag: "-q:v",
		PixFmt10Bit: "p010le",
	}
	if probeEncoder(ctx, ffmpegPath, "hevc_videotoolbox") {
		profile.HEVCEncoder = "hevc_videotoolbox"
	}
	return profile
}

// probeEncoder attempts a 1-second synthetic encode with the named encoder.
func probeEncoder(ctx context.Context, ffmpegPath, encoder string) bool {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cctx, ffmpegPath,
		"-f", "lavfi", "-i", "color=c=black:s=64x64:d=1",
		"-c:v", encoder,
		"-frames:v", "1",
		"-f", "null", "-",
	)
	return cmd.Run() == nil
}

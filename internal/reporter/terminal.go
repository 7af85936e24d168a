package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/five82/videocomp/internal/dispatch"
	"github.com/five82/videocomp/internal/progress"
	"github.com/five82/videocomp/internal/util"
)

// TerminalReporter renders batch progress to the terminal for human
// operators, using a single rolling progress bar driven by the aggregator's
// overall weighted fraction.
type TerminalReporter struct {
	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	cyan   *color.Color
	green  *color.Color
	yellow *color.Color
	red    *color.Color
	bold   *color.Color
}

// NewTerminalReporter creates a terminal reporter with the standard palette.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{
		cyan:   color.New(color.FgCyan, color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		bold:   color.New(color.Bold),
	}
}

func (r *TerminalReporter) BatchStarted(totalFiles int) {
	fmt.Println()
	_, _ = r.cyan.Printf("BATCH: %d file(s)\n", totalFiles)

	r.mu.Lock()
	r.bar = progressbar.NewOptions64(100,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "compressing [",
			BarEnd:        "]",
		}),
	)
	r.mu.Unlock()
}

func (r *TerminalReporter) JobClassified(path string, strategy dispatch.Strategy) {
	_, _ = r.bold.Printf("  %s %s (%s)\n", "›", util.GetFilename(path), strategyLabel(strategy))
}

func (r *TerminalReporter) JobSkipped(path, reason string) {
	_, _ = r.yellow.Printf("  skipped %s: %s\n", util.GetFilename(path), reason)
}

func (r *TerminalReporter) Progress(snap progress.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar == nil {
		return
	}
	_ = r.bar.Set64(int64(snap.OverallFraction * 100))
	desc := fmt.Sprintf("%.1f MB/s, eta %s, %d/%d workers active",
		snap.TotalThroughput, util.FormatDuration(snap.WorstETASeconds), snap.ActiveWorkers, snap.TotalWorkers)
	r.bar.Describe(desc)
}

func (r *TerminalReporter) JobSucceeded(path, replacedPath string) {
	_, _ = r.green.Printf("  done %s -> %s\n", util.GetFilename(path), util.GetFilename(replacedPath))
}

func (r *TerminalReporter) JobFailed(path string, err error) {
	_, _ = r.red.Printf("  failed %s: %v\n", util.GetFilename(path), err)
}

func (r *TerminalReporter) BatchFinished(summary dispatch.BatchSummary) {
	r.mu.Lock()
	if r.bar != nil {
		_ = r.bar.Finish()
		r.bar = nil
	}
	r.mu.Unlock()

	fmt.Println()
	_, _ = r.cyan.Println("SUMMARY")
	_, _ = r.bold.Printf("  processed: %d, failed: %d, skipped: %d\n", summary.Processed, summary.Failed, summary.Skipped)
}

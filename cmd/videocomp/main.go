// Package main provides the CLI entry point for videocomp.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	videocomp "github.com/five82/videocomp"
	"github.com/five82/videocomp/internal/config"
	"github.com/five82/videocomp/internal/dispatch"
	"github.com/five82/videocomp/internal/ffmpeg"
	"github.com/five82/videocomp/internal/logging"
	"github.com/five82/videocomp/internal/progress"
	"github.com/five82/videocomp/internal/reporter"
)

const appName = "videocomp"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Batch video compression with a size-aware dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newBatchCommand())
	root.AddCommand(newProbeCommand())
	root.AddCommand(newConfigCommand())

	return root
}

func newBatchCommand() *cobra.Command {
	var configPath string
	var fileList string
	var dryRun bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "batch <files...>",
		Short: "Classify and compress a batch of video files",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if fileList != "" {
				listed, err := readFileList(fileList)
				if err != nil {
					return fmt.Errorf("failed to read file list %s: %w", fileList, err)
				}
				paths = append(paths, listed...)
			}
			if len(paths) == 0 {
				return fmt.Errorf("no input files given (pass paths or --file-list)")
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			level := logging.LevelInfo
			if verbose {
				level = logging.LevelDebug
			}
			log := logging.New(logging.Config{Level: level, Output: os.Stderr, Enabled: true})

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				log.Warn("received interrupt, cancelling batch")
				cancel()
			}()

			agg := progress.New()
			rep := reporter.NewComposite(reporter.NewTerminalReporter())
			agg.SetCallback(rep.Progress)

			rep.BatchStarted(len(paths))
			jobs, skipped := dispatch.Classify(paths, cfg)
			for _, j := range jobs {
				rep.JobClassified(j.Path, j.Strategy)
			}
			for _, s := range skipped {
				rep.JobSkipped(s.Path, s.Warning)
			}

			summary := dispatch.ProcessBatch(ctx, paths, cfg, dryRun, agg, log)
			for _, o := range summary.Outcomes {
				switch {
				case o.Analysis != nil:
					rep.JobSkipped(o.Path, o.Warning)
				case o.Skipped:
				case o.Err != nil:
					rep.JobFailed(o.Path, o.Err)
				default:
					rep.JobSucceeded(o.Path, o.ReplacedPath)
				}
			}
			rep.BatchFinished(summary)

			os.Exit(summary.ExitCode())
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", config.DefaultPath(), "path to the JSON config document")
	cmd.Flags().StringVar(&fileList, "file-list", "", "path to a newline-delimited file list")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify files and report the plan without compressing")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")

	return cmd
}

func newProbeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Print media information for a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			hw := ffmpeg.DetectAcceleration(cmd.Context(), cfg.FFmpegPath)

			probe, err := videocomp.Probe(cmd.Context(), args[0], cfg)
			if err != nil {
				return fmt.Errorf("probe failed: %w", err)
			}

			fmt.Printf("path:        %s\n", args[0])
			fmt.Printf("duration:    %.1fs\n", probe.DurationSecs)
			fmt.Printf("bitrate:     %d bps\n", probe.TotalBitRate)
			fmt.Printf("hdr:         %t\n", probe.IsHDR)
			fmt.Printf("10-bit:      %t\n", probe.Is10Bit)
			fmt.Printf("4k+:         %t\n", probe.Is4KPlus)
			fmt.Printf("high fps:    %t\n", probe.IsHighFPS)
			fmt.Printf("hw accel:    %t\n", hw != nil)
			if v := probe.VideoStream(); v != nil {
				fmt.Printf("codec:       %s\n", v.CodecName)
				fmt.Printf("resolution:  %dx%d\n", v.Width, v.Height)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", config.DefaultPath(), "path to the JSON config document")
	return cmd
}

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage the videocomp configuration document"}
	cmd.AddCommand(newConfigInitCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a defaulted config document if one does not already exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil {
				fmt.Printf("config already exists at %s\n", configPath)
				return nil
			}
			cfg := config.Default()
			if err := config.Save(cfg, configPath); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Printf("wrote default config to %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", config.DefaultPath(), "path to write the JSON config document")
	return cmd
}

func readFileList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, scanner.Err()
}

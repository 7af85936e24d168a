// Package protocol implements the Per-File Safety Protocol (§4.9): the
// linear nine-step sequence that wraps compress-and-replace for any single
// file, whether reached via the small-file path or a large-file merge.
package protocol

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/five82/videocomp/internal/config"
	"github.com/five82/videocomp/internal/errors"
	"github.com/five82/videocomp/internal/ffmpeg"
	"github.com/five82/videocomp/internal/ffprobe"
	"github.com/five82/videocomp/internal/logging"
	"github.com/five82/videocomp/internal/safety"
	"github.com/five82/videocomp/internal/util"
)

// Producer materializes the compressed artifact at artifactPath, either by
// running a single transcode (small files) or by being a no-op because the
// merged file is already present (large files, §4.9 step 5).
type Producer func(ctx context.Context, sourcePath, artifactPath string, probe *ffprobe.MediaProbe) error

// ProtocolResult carries the outcome of running the Per-File Safety
// Protocol against one file.
type ProtocolResult struct {
	SourcePath    string
	ReplacedPath  string
	SourceHash    string
	VerifyResult  *safety.VerifyResult
	Err           error
}

// RunProtocol executes the nine-step Per-File Safety Protocol (§4.9)
// against sourcePath, using produce to materialize the compressed
// artifact. No source data is destroyed until step 8, and only after step
// 7 (atomic replace + re-verify) has succeeded.
func RunProtocol(ctx context.Context, sourcePath string, cfg *config.Config, produce Producer, log *logging.Logger) ProtocolResult {
	result := ProtocolResult{SourcePath: sourcePath}

	info, err := os.Stat(sourcePath)
	if err != nil {
		result.Err = errors.Wrap(errors.KindPreflight, "source file missing", err)
		return result
	}
	sizeGB := util.BytesToGB(info.Size())

	// Step 1: space check.
	if err := safety.CheckSpace(sourcePath, sizeGB, cfg); err != nil {
		result.Err = err
		return result
	}

	// Step 2: per-file temp directory.
	tempDir := util.TempDirFor(sourcePath, cfg.GetTempDir(), cfg.UseSameFilesystem)
	if err := util.EnsureDirectory(tempDir); err != nil {
		result.Err = errors.Wrap(errors.KindPreflight, "create temp directory", err)
		return result
	}
	defer os.RemoveAll(tempDir)

	// Step 3: optional backup hash.
	if cfg.CreateBackupHash {
		hash, err := safety.Hash(sourcePath, cfg.HashChunkSizeMB, log)
		if err != nil {
			result.Err = err
			return result
		}
		result.SourceHash = hash
		log.Debug("computed source hash", "path", sourcePath, "sha256", hash)
	}

	// Step 4: probe source.
	probeTimeout := ffprobe.ProbeTimeout(sizeGB, cfg.ExtendedTimeouts)
	sourceProbe, err := ffprobe.Probe(ctx, cfg.FFprobePath, sourcePath, probeTimeout)
	if err != nil {
		result.Err = err
		return result
	}

	// Step 5: produce the compressed artifact.
	artifactPath := filepath.Join(tempDir, util.GetFileStem(sourcePath)+"_compressed"+filepath.Ext(sourcePath))
	if err := produce(ctx, sourcePath, artifactPath, sourceProbe); err != nil {
		result.Err = err
		return result
	}

	// Step 6: verify.
	verifyResult, err := safety.Verify(ctx, cfg.FFprobePath, cfg.FFmpegPath, artifactPath, sourceProbe)
	if err != nil {
		os.Remove(artifactPath)
		result.Err = err
		return result
	}
	for _, w := range verifyResult.Warnings {
		log.Warn("verification warning", "path", sourcePath, "warning", w)
	}
	result.VerifyResult = verifyResult

	// Step 7: atomic replace, then re-verify.
	destPath := util.CompressedOutputPath(sourcePath)
	if err := atomicReplace(artifactPath, destPath); err != nil {
		result.Err = errors.Wrap(errors.KindIntegrityFailed, "atomic replace failed", err)
		return result
	}

	if _, err := safety.Verify(ctx, cfg.FFprobePath, cfg.FFmpegPath, destPath, sourceProbe); err != nil {
		result.Err = errors.Wrap(errors.KindIntegrityFailed, "post-replace verification failed; original and replacement both left in place", err)
		return result
	}
	result.ReplacedPath = destPath

	// Step 8: delete source iff configured.
	if cfg.DeleteOriginalAfterCompression {
		if err := os.Remove(sourcePath); err != nil {
			log.Warn("failed to delete source after successful replacement", "path", sourcePath, "error", err)
		}
	}

	// Step 9: cleanup handled by deferred os.RemoveAll(tempDir).
	return result
}

// atomicReplace moves src to dst via unix.Rename, which is atomic within a
// single filesystem on Linux/Darwin. With use_same_filesystem the temp
// directory is a sibling of the destination; otherwise it lives under the
// configured temp dir, and if that is on another filesystem the rename
// fails (EXDEV) and the error is returned.
func atomicReplace(src, dst string) error {
	if err := unix.Rename(src, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", src, dst, err)
	}
	return nil
}

// SmallFileProducer returns a Producer that runs one Transcoder Adapter
// invocation to compress sourcePath into artifactPath (§4.9 step 5, small
// files).
func SmallFileProducer(cfg *config.Config, hw *ffmpeg.HWProfile, cb ffmpeg.ProgressCallback) Producer {
	return func(ctx context.Context, sourcePath, artifactPath string, probe *ffprobe.MediaProbe) error {
		argv := ffmpeg.BuildEncodeArgs(sourcePath, artifactPath, probe, cfg, hw)
		encResult := ffmpeg.RunEncode(ctx, cfg.FFmpegPath, argv, probe.DurationSecs, cb)
		if !encResult.Success {
			return encResult.Err
		}
		info, err := os.Stat(artifactPath)
		if err != nil {
			return errors.Wrap(errors.KindEncodeFailed, "encode produced no output", err)
		}
		if info.Size() == 0 {
			return errors.New(errors.KindEncodeFailed, "empty output")
		}
		return nil
	}
}

// MergedFileProducer returns a Producer for large-file jobs where the
// merged artifact is already present at mergedPath; it simply relocates it
// into the expected artifact path if needed.
func MergedFileProducer(mergedPath string) Producer {
	return func(ctx context.Context, sourcePath, artifactPath string, probe *ffprobe.MediaProbe) error {
		if mergedPath == artifactPath {
			return nil
		}
		return os.Rename(mergedPath, artifactPath)
	}
}

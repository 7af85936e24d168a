// Package util provides small filesystem and formatting helpers shared
// across videocomp's components.
package util

import (
	"os"
	"path/filepath"
	"strings"
)

// VideoExtensions is the list of supported video file extensions.
var VideoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".m4v": true, ".mov": true,
	".avi": true, ".wmv": true, ".ts": true, ".m2ts": true,
	".mpg": true, ".mpeg": true, ".webm": true, ".flv": true,
}

// IsVideoFile reports whether path names a regular file with a recognized
// video extension.
func IsVideoFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return VideoExtensions[strings.ToLower(filepath.Ext(path))]
}

// GetFilename returns the base filename of path.
func GetFilename(path string) string {
	return filepath.Base(path)
}

// GetFileStem returns the filename without its extension.
func GetFileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// GetFileSize returns the size of the file at path, in bytes.
func GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// EnsureDirectory creates path (and any missing parents) if it does not
// already exist.
func EnsureDirectory(path string) error {
	return os.MkdirAll(path, 0o755)
}

// CompressedOutputPath returns the atomic-replace destination for inputPath,
// per §6: "<stem>_compressed<ext>" in the same directory as the source.
func CompressedOutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	ext := filepath.Ext(inputPath)
	stem := GetFileStem(inputPath)
	return filepath.Join(dir, stem+"_compressed"+ext)
}

// TempDirFor returns the per-file temp directory for inputPath, named
// ".video_compression_temp" (§6). When useSameFilesystem is true it is
// placed next to the input; otherwise it is placed under baseDir.
func TempDirFor(inputPath, baseDir string, useSameFilesystem bool) string {
	const name = ".video_compression_temp"
	if useSameFilesystem {
		return filepath.Join(filepath.Dir(inputPath), name)
	}
	return filepath.Join(baseDir, GetFileStem(inputPath)+"_"+name)
}

// SegmentsDirFor returns the segments directory for inputPath, named
// ".video_segments_temp" (§6).
func SegmentsDirFor(inputPath, baseDir string, useSameFilesystem bool) string {
	const name = ".video_segments_temp"
	if useSameFilesystem {
		return filepath.Join(filepath.Dir(inputPath), name)
	}
	return filepath.Join(baseDir, GetFileStem(inputPath)+"_"+name)
}

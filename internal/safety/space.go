// Package safety implements the disk-space check, content hash, and
// multi-step verification gate that every destructive operation passes
// through (§4.3 Safety Gate).
package safety

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/five82/videocomp/internal/config"
	"github.com/five82/videocomp/internal/errors"
	"github.com/five82/videocomp/internal/util"
	"golang.org/x/sys/unix"
)

// freeSpaceGB returns the free space available on the filesystem containing
// path, in gigabytes.
func freeSpaceGB(path string) (float64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	freeBytes := stat.Bavail * uint64(stat.Bsize)
	return util.BytesToGB(int64(freeBytes)), nil
}

// CheckSpace verifies both the temp filesystem and the destination
// filesystem have sufficient free space to safely process a file of size
// sizeGB located at inputPath (§4.3).
func CheckSpace(inputPath string, sizeGB float64, cfg *config.Config) error {
	tempDir := util.TempDirFor(inputPath, cfg.GetTempDir(), cfg.UseSameFilesystem)
	destDir := inputPath

	tempFree, err := freeSpaceGB(parentOrSelf(tempDir))
	if err != nil {
		return errors.Wrap(errors.KindPreflight, "failed to check temp space", err)
	}
	requiredTemp := config.TempSpaceSafetyMultiplier*sizeGB + cfg.MinFreeSpaceGB
	if tempFree < requiredTemp {
		return errors.New(errors.KindPreflight,
			fmt.Sprintf("insufficient temp space: need %.1f GB, have %.1f GB", requiredTemp, tempFree))
	}

	destFree, err := freeSpaceGB(parentOrSelf(destDir))
	if err != nil {
		return errors.Wrap(errors.KindPreflight, "failed to check destination space", err)
	}
	requiredDest := sizeGB + cfg.MinFreeSpaceGB
	if destFree < requiredDest {
		return errors.New(errors.KindPreflight,
			fmt.Sprintf("insufficient destination space: need %.1f GB, have %.1f GB", requiredDest, destFree))
	}

	return nil
}

// parentOrSelf walks up from path until it finds a directory that exists,
// since the temp/destination directory itself may not be created yet.
func parentOrSelf(path string) string {
	dir := path
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/five82/videocomp/internal/errors"
	"github.com/five82/videocomp/internal/logging"
)

// Hash computes the SHA-256 digest of the file at path, streamed in
// chunkSizeMB-sized chunks. Sources larger than 1GB emit a debug log every
// 10% of bytes processed (§4.3).
func Hash(path string, chunkSizeMB int, log *logging.Logger) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(errors.KindPreflight, "open file for hashing", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", errors.Wrap(errors.KindPreflight, "stat file for hashing", err)
	}
	totalSize := info.Size()

	if chunkSizeMB <= 0 {
		chunkSizeMB = 8
	}
	buf := make([]byte, chunkSizeMB*1024*1024)

	h := sha256.New()
	var processed int64
	lastReportedDecile := -1
	emitProgress := totalSize > 1<<30 && log != nil

	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			processed += int64(n)

			if emitProgress && totalSize > 0 {
				decile := int(processed * 10 / totalSize)
				if decile > lastReportedDecile {
					lastReportedDecile = decile
					log.Debug("hashing progress", "path", path, "percent", decile*10)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", errors.Wrap(errors.KindPreflight, "read file for hashing", readErr)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

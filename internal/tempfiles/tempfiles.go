// Package tempfiles owns the on-disk lifecycle of preview candidates.
// Removal is best effort: failures are logged and counted, never returned.
package tempfiles

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsplitmerge/internal/metrics"
)

// PreviewPrefix starts the name of every preview candidate file.
const PreviewPrefix = "merge_preview_"

// RemoveAttempts bounds retries for files held open by a viewer or scanner.
var RemoveAttempts uint64 = 4

// RemoveInterval is the pause between removal attempts.
var RemoveInterval = 50 * time.Millisecond

// Create makes a new, empty, uniquely named file in dir (os.TempDir when
// empty) and returns its path.
func Create(dir, pattern string) (string, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		Remove(name)
		return "", err
	}
	return name, nil
}

// CreatePreview creates a candidate file named merge_preview_*.pdf.
func CreatePreview(dir string) (string, error) {
	return Create(dir, PreviewPrefix+"*.pdf")
}

// Remove deletes path, retrying briefly. A missing file counts as removed.
// It reports whether the file is gone.
func Remove(path string) bool {
	if path == "" {
		return true
	}
	op := func() error {
		err := os.Remove(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(RemoveInterval), RemoveAttempts-1)
	if err := backoff.Retry(op, b); err != nil {
		metrics.IncTempCleanupFailure()
		log.Warn().Err(err).Str("file", path).Msg("temp file cleanup failed")
		return false
	}
	return true
}

// Sweep removes files in dir whose name starts with prefix and that are older
// than maxAge. It returns how many were removed. Leftovers come from crashed
// sessions; live sessions keep their candidate younger than maxAge.
func Sweep(dir, prefix string, maxAge time.Duration) int {
	if dir == "" {
		dir = os.TempDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Debug().Err(err).Str("dir", dir).Msg("temp sweep skipped")
		return 0
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if Remove(filepath.Join(dir, e.Name())) {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Str("dir", dir).Msg("swept stale preview files")
	}
	return removed
}

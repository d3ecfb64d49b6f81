// Package walker finds the audio files under a scan root.
package walker

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// File is one audio file found under the root.
type File struct {
	Path            string // absolute path
	RelPath         string // relative to the scan root
	NeedsConversion bool   // true for WAV, false for files already FLAC
}

// Walk returns every .wav and .flac file under root, sorted by relative
// path for deterministic processing order.
func Walk(root string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".wav" && ext != ".flac" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, File{
			Path:            path,
			RelPath:         rel,
			NeedsConversion: ext == ".wav",
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// Package scanner walks the media library and computes cheap change
// fingerprints, so the ingestion pipeline can skip unchanged files
// without reading them fully.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/media-curator/media-curator/internal/config"
	"github.com/media-curator/media-curator/internal/store"
)

// Candidate is one file found during a walk.
type Candidate struct {
	Path       string
	Type       store.MediaType
	Size       int64
	ModifiedAt time.Time
}

// Scanner discovers media files under a root directory.
type Scanner struct {
	formats  *config.FormatsConfig
	excluded []string // directory names to skip, at any depth
}

func New(formats *config.FormatsConfig, excluded []string) *Scanner {
	return &Scanner{formats: formats, excluded: excluded}
}

// Walk traverses root recursively and calls fn for every recognized media
// file. Hidden directories and excluded directory names are skipped at
// any depth; unreadable entries are skipped silently so one bad
// directory cannot abort a scan. The root itself is never excluded.
func (s *Scanner) Walk(root string, fn func(Candidate) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root {
				if strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				for _, name := range s.excluded {
					if d.Name() == name {
						return filepath.SkipDir
					}
				}
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		var mediaType store.MediaType
		switch {
		case s.formats.IsImage(ext):
			mediaType = store.MediaTypeImage
		case s.formats.IsVideo(ext):
			mediaType = store.MediaTypeVideo
		default:
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		return fn(Candidate{
			Path:       path,
			Type:       mediaType,
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	})
}

// Collect runs a full walk and returns all candidates. The pipeline uses
// it as the pre-scan pass that fixes the progress total.
func (s *Scanner) Collect(root string) ([]Candidate, error) {
	var candidates []Candidate
	err := s.Walk(root, func(c Candidate) error {
		candidates = append(candidates, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return candidates, nil
}

// Stat returns a Candidate for a single path, for single-item ingestion.
func (s *Scanner) Stat(path string) (Candidate, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Candidate{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return Candidate{}, fmt.Errorf("%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var mediaType store.MediaType
	switch {
	case s.formats.IsImage(ext):
		mediaType = store.MediaTypeImage
	case s.formats.IsVideo(ext):
		mediaType = store.MediaTypeVideo
	default:
		return Candidate{}, fmt.Errorf("unsupported file extension %q", ext)
	}

	return Candidate{
		Path:       path,
		Type:       mediaType,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// Package store persists accepted documents into the session output directory.
package store

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/docfetch/docfetch/internal/doctype"
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._ -]+`)

// IDGenerator produces fallback names for URLs with no usable path stem.
type IDGenerator interface {
	NewID() (string, error)
}

// Store owns temp-file creation and final filename claims for one session.
// Final names are claimed under a single mutex so two concurrent jobs can
// never commit to the same path.
type Store struct {
	dir    string
	idGen  IDGenerator
	logger *zap.Logger

	mu      sync.Mutex
	claimed map[string]struct{}
}

// New opens a store over an existing output directory. The directory is
// created by the caller before the session runs.
func New(dir string, idGen IDGenerator, logger *zap.Logger) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat output dir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("output path %s is not a directory", dir)
	}
	return &Store{
		dir:     dir,
		idGen:   idGen,
		logger:  logger,
		claimed: make(map[string]struct{}),
	}, nil
}

// Dir returns the output directory root.
func (s *Store) Dir() string {
	return s.dir
}

// Temp creates a uniquely named partial-download file inside the output
// directory. Each job owns its temp file exclusively.
func (s *Store) Temp() (*os.File, error) {
	f, err := os.CreateTemp(s.dir, ".docfetch-*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return f, nil
}

// Commit claims a unique final name derived from rawURL and the detected
// type's canonical extension, then renames the temp file into place. On name
// collision a numeric suffix is appended.
func (s *Store) Commit(tmpPath, rawURL string, t doctype.Type) (string, error) {
	base := sanitizeStem(rawURL)
	if base == "" {
		id, err := s.idGen.NewID()
		if err != nil {
			return "", fmt.Errorf("generate fallback name: %w", err)
		}
		base = strings.ReplaceAll(id, "-", "")
	}

	name := s.claim(base, t.Extension())
	final := filepath.Join(s.dir, name)
	if err := os.Rename(tmpPath, final); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	s.logger.Info("document saved",
		zap.String("url", rawURL),
		zap.String("path", final),
		zap.String("type", string(t)),
	)
	return final, nil
}

// Discard removes a temp file, best effort.
func (s *Store) Discard(tmpPath string) {
	if tmpPath == "" {
		return
	}
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove temp file", zap.String("path", tmpPath), zap.Error(err))
	}
}

func (s *Store) claim(base, ext string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := base + ext
	for i := 1; s.taken(name); i++ {
		name = fmt.Sprintf("%s-%d%s", base, i, ext)
	}
	s.claimed[name] = struct{}{}
	return name
}

// taken checks both in-session claims and files already on disk.
func (s *Store) taken(name string) bool {
	if _, ok := s.claimed[name]; ok {
		return true
	}
	_, err := os.Stat(filepath.Join(s.dir, name))
	return err == nil
}

// sanitizeStem turns the URL path stem into a filesystem-safe base name.
// An empty result means the URL has no usable stem and the caller should
// fall back to a generated name.
func sanitizeStem(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSuffix(p, "/")
	stem := path.Base(p)
	if stem == "." || stem == ".." || stem == "/" {
		return ""
	}
	stem = strings.TrimSuffix(stem, path.Ext(stem))
	stem = invalidFilenameChars.ReplaceAllString(stem, "_")
	return strings.Trim(stem, "._ ")
}

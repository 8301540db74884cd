// Package store manages the artifact directory tree shared by all workflows.
//
// Every workflow writes its inputs and outputs through the store so that
// paths are collision-free and grouped by artifact kind under one root.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

// Kind identifies a category of stored artifact. Each kind maps to a
// fixed subdirectory under the store root.
type Kind string

const (
	KindUploads          Kind = "uploads"
	KindPosterOutput     Kind = "poster_output"
	KindImageTransOutput Kind = "image_translation_output"
	KindWebTransOutput   Kind = "web_translation_output"
	KindDownloads        Kind = "downloads"
	KindJobs             Kind = "jobs"
)

// kindDirs enumerates all kinds so Open can pre-create the tree.
var kindDirs = []Kind{
	KindUploads,
	KindPosterOutput,
	KindImageTransOutput,
	KindWebTransOutput,
	KindDownloads,
	KindJobs,
}

// maxNameRunes bounds the sanitized base-name length in a generated path.
const maxNameRunes = 50

// Store is a filesystem-backed artifact store rooted at a single directory.
type Store struct {
	root string
}

// Open creates (if needed) the store root and every kind subdirectory.
func Open(root string) (*Store, error) {
	if root == "" {
		return nil, types.NewAppError(types.ErrInvalidInput, "store root must not be empty", nil)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, types.NewAppError(types.ErrStorageUnavailable, "failed to resolve store root", err)
	}

	for _, kind := range kindDirs {
		dir := filepath.Join(abs, string(kind))
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create artifact directory", err, logger.String("dir", dir))
			return nil, types.NewAppErrorWithDetails(types.ErrStorageUnavailable,
				"failed to create artifact directory", dir, err)
		}
	}

	logger.Info("artifact store opened", logger.String("root", abs))
	return &Store{root: abs}, nil
}

// Root returns the absolute store root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the absolute directory for the given artifact kind.
func (s *Store) Dir(kind Kind) string {
	return filepath.Join(s.root, string(kind))
}

// AllocatePath reserves a unique path for a new artifact of the given kind.
// The path is {kind_dir}/{timestamp}_{sanitized_name}{ext}; when a second
// artifact is allocated for the same name within one second, a numeric
// suffix (_2, _3, ...) keeps paths distinct. The file itself is not created.
func (s *Store) AllocatePath(kind Kind, name string) string {
	ext := filepath.Ext(name)
	base := sanitizeName(strings.TrimSuffix(filepath.Base(name), ext))
	stamp := time.Now().Format("20060102_150405")

	dir := s.Dir(kind)
	candidate := filepath.Join(dir, fmt.Sprintf("%s_%s%s", stamp, base, ext))
	for n := 2; pathExists(candidate); n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%s_%d%s", stamp, base, n, ext))
	}
	return candidate
}

// Subdir creates (if needed) and returns a named subdirectory under the
// given kind. The name is sanitized the same way artifact names are, so a
// URL-derived name is safe to use directly.
func (s *Store) Subdir(kind Kind, name string) (string, error) {
	dir := filepath.Join(s.Dir(kind), sanitizeName(name))
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create artifact subdirectory", err, logger.String("dir", dir))
		return "", types.NewAppErrorWithDetails(types.ErrStorageUnavailable,
			"failed to create artifact subdirectory", dir, err)
	}
	return dir, nil
}

// sanitizeName replaces path separators and shell-hostile characters with
// underscores and truncates to a bounded rune length. An empty result
// becomes "artifact".
func sanitizeName(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}

	out := sb.String()
	runes := []rune(out)
	if len(runes) > maxNameRunes {
		out = string(runes[:maxNameRunes])
	}
	out = strings.Trim(out, "._")
	if out == "" {
		out = "artifact"
	}
	return out
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Exists reports whether the given artifact path exists.
func (s *Store) Exists(path string) bool {
	return pathExists(path)
}

// WriteBytes writes data to path, creating parent directories as needed.
func (s *Store) WriteBytes(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.NewAppErrorWithDetails(types.ErrStorageUnavailable,
			"failed to create artifact directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Error("failed to write artifact", err, logger.String("path", path))
		return types.NewAppErrorWithDetails(types.ErrStorageUnavailable,
			"failed to write artifact", path, err)
	}
	logger.Debug("artifact written", logger.String("path", path), logger.Int("bytes", len(data)))
	return nil
}

// ReadBytes reads the artifact at path. A missing artifact yields NOT_FOUND.
func (s *Store) ReadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrNotFound, "artifact not found", path, err)
		}
		return nil, types.NewAppErrorWithDetails(types.ErrStorageUnavailable, "failed to read artifact", path, err)
	}
	return data, nil
}

// Remove deletes the artifact at path. Cleanup is advisory: a failed removal
// is logged and swallowed, and removing a missing artifact is not an error.
func (s *Store) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove artifact", logger.String("path", path), logger.Err(err))
	}
}

// Package files manages artifact storage on the local filesystem.
//
// Uploaded images and generated 3D models live under a single uploads
// directory, split into images/ and models/ subdirectories. Paths handed
// out by the store are URL paths ("/uploads/images/abc-plan.png") so they
// can be persisted and served directly.
package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kaira-dev/kaira/internal/metrics"
	"github.com/kaira-dev/kaira/internal/models"
)

// URLPrefix is the public path prefix under which stored files are served.
const URLPrefix = "/uploads/"

// Store writes and removes artifact files under a root directory.
type Store struct {
	root string
}

// NewStore creates the uploads directory tree and returns a store rooted at it.
func NewStore(root string) (*Store, error) {
	for _, sub := range []string{subdir(models.ArtifactImage), subdir(models.ArtifactModel)} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create uploads dir: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the store's root directory on disk.
func (s *Store) Root() string {
	return s.root
}

// Save writes the reader's contents to a new uniquely named file and returns
// its URL path and size in bytes.
func (s *Store) Save(kind models.ArtifactKind, originalName string, r io.Reader) (string, int64, error) {
	name := fmt.Sprintf("%s-%s", uuid.NewString()[:8], sanitizeName(originalName))
	diskPath := filepath.Join(s.root, subdir(kind), name)

	f, err := os.Create(diskPath)
	if err != nil {
		metrics.UploadErrors.Inc()
		return "", 0, fmt.Errorf("create artifact file: %w", err)
	}

	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		metrics.UploadErrors.Inc()
		os.Remove(diskPath)
		return "", 0, fmt.Errorf("write artifact file: %w", err)
	}

	metrics.UploadBytesTotal.WithLabelValues(string(kind)).Add(float64(size))
	return path.Join(URLPrefix, subdir(kind), name), size, nil
}

// Adopt moves an existing file on disk into the store and returns its URL
// path and size. Used for conversion outputs written outside the store.
func (s *Store) Adopt(kind models.ArtifactKind, srcPath string) (string, int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", 0, fmt.Errorf("open conversion output: %w", err)
	}
	defer src.Close()

	urlPath, size, err := s.Save(kind, filepath.Base(srcPath), src)
	if err != nil {
		return "", 0, err
	}
	os.Remove(srcPath)
	return urlPath, size, nil
}

// Remove deletes the file behind a URL path previously returned by Save.
// Remote URLs and empty paths are left alone, and a file that is already
// gone is not an error.
func (s *Store) Remove(urlPath string) error {
	if urlPath == "" {
		return nil
	}
	if (&models.Artifact{Path: urlPath}).IsRemote() {
		return nil
	}

	diskPath, err := s.DiskPath(urlPath)
	if err != nil {
		return err
	}
	if err := os.Remove(diskPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact file: %w", err)
	}
	return nil
}

// DiskPath resolves a URL path to its location on disk, rejecting anything
// that would escape the store's root.
func (s *Store) DiskPath(urlPath string) (string, error) {
	rel, ok := strings.CutPrefix(urlPath, URLPrefix)
	if !ok {
		return "", fmt.Errorf("not a stored file path: %s", urlPath)
	}
	rel = filepath.FromSlash(path.Clean("/" + rel))[1:]
	if rel == "" || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("invalid file path: %s", urlPath)
	}
	return filepath.Join(s.root, rel), nil
}

func subdir(kind models.ArtifactKind) string {
	if kind == models.ArtifactModel {
		return "models"
	}
	return "images"
}

// sanitizeName strips directory components and characters that are unsafe
// in a filename, keeping the extension intact.
func sanitizeName(name string) string {
	name = path.Base(filepath.ToSlash(name))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

package heatmap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AssetStore is the stable storage behind the heatmap cache. Writes are
// keyed by deterministic filename, so last-writer-wins is acceptable for the
// rare race the per-key generation guard doesn't cover.
type AssetStore interface {
	Exists(key string) bool
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
	Invalidate(key string) error
	URL(key string) string
}

// Filename computes the canonical asset key for a (species, date) pair.
// Clients probe /static/<key> directly, so the slug + ISO date scheme must
// stay stable.
func Filename(scientificName string, date time.Time) string {
	return fmt.Sprintf("%s_%s.png", Slug(scientificName), date.Format("2006-01-02"))
}

// Slug replaces spaces in a scientific name with underscores.
func Slug(scientificName string) string {
	return strings.ReplaceAll(strings.TrimSpace(scientificName), " ", "_")
}

// DirStore is a directory-backed AssetStore serving under a static URL
// prefix. There is no implicit expiry: assets persist until Invalidate is
// called or the data is re-imported.
type DirStore struct {
	dir       string
	urlPrefix string
}

func NewDirStore(dir, urlPrefix string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}
	return &DirStore{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Dir returns the backing directory, for mounting a file server.
func (s *DirStore) Dir() string {
	return s.dir
}

func (s *DirStore) path(key string) string {
	return filepath.Join(s.dir, filepath.Base(key))
}

func (s *DirStore) Exists(key string) bool {
	info, err := os.Stat(s.path(key))
	return err == nil && !info.IsDir() && info.Size() > 0
}

func (s *DirStore) Read(key string) ([]byte, error) {
	return os.ReadFile(s.path(key))
}

// Write persists atomically via a temp file rename so a partially written
// asset is never observable as a hit.
func (s *DirStore) Write(key string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path(key))
}

func (s *DirStore) Invalidate(key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *DirStore) URL(key string) string {
	return s.urlPrefix + "/" + filepath.Base(key)
}

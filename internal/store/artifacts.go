// Package store persists trained model artifacts. Everything a prediction
// needs is written as one versioned, gzip-compressed msgpack bundle: the
// fitted vectorizer, the three heads and the confidence threshold travel
// together, so a load can never mix artifacts from different training passes.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/rakhimov-me/smax-ai/internal/model"
)

// ErrNoBundle means no artifacts have been saved yet. A normal outcome for
// a fresh deployment, not an error condition for callers.
var ErrNoBundle = errors.New("no saved model bundle")

const (
	bundleVersion = 1
	bundleName    = "model.bundle"
	bundleMode    = 0o644
	dirMode       = 0o755
)

type bundle struct {
	Version  int             `msgpack:"version"`
	SavedAt  time.Time       `msgpack:"saved_at"`
	Snapshot *model.Snapshot `msgpack:"snapshot"`
}

// ArtifactStore reads and writes model bundles under one directory.
type ArtifactStore struct {
	dir string
}

// New creates a store rooted at dir. The directory is created on first Save.
func New(dir string) *ArtifactStore {
	return &ArtifactStore{dir: dir}
}

// Save writes the snapshot as a new bundle. The write goes through a temp
// file and a rename, so a crash mid-write never corrupts the previous
// bundle.
func (s *ArtifactStore) Save(snap *model.Snapshot) error {
	if snap == nil {
		return errors.New("nothing to save: snapshot is nil")
	}
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, bundleName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	defer os.Remove(tmp.Name())

	gz := gzip.NewWriter(tmp)
	if err := msgpack.NewEncoder(gz).Encode(bundle{
		Version:  bundleVersion,
		SavedAt:  time.Now(),
		Snapshot: snap,
	}); err != nil {
		tmp.Close()
		return fmt.Errorf("encode bundle: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp bundle: %w", err)
	}
	if err := os.Chmod(tmp.Name(), bundleMode); err != nil {
		return fmt.Errorf("chmod bundle: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, bundleName)); err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}
	return nil
}

// Load reads the current bundle. Returns ErrNoBundle when none exists.
func (s *ArtifactStore) Load() (*model.Snapshot, error) {
	f, err := os.Open(filepath.Join(s.dir, bundleName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoBundle
		}
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("decompress bundle: %w", err)
	}
	defer gz.Close()

	var b bundle
	if err := msgpack.NewDecoder(gz).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Version != bundleVersion {
		return nil, fmt.Errorf("unsupported bundle version %d", b.Version)
	}
	if b.Snapshot == nil {
		return nil, errors.New("bundle holds no snapshot")
	}
	return b.Snapshot, nil
}

// Clear deletes the stored bundle. Clearing an empty store succeeds.
func (s *ArtifactStore) Clear() error {
	err := os.Remove(filepath.Join(s.dir, bundleName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove bundle: %w", err)
	}
	return nil
}

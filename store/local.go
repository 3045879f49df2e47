package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vshn/guildsnap/snapshot"
)

var _ Store = &Local{}

// Local keeps archives in a single directory.
type Local struct {
	Dir string
}

// NewLocal creates dir if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("cannot create backup directory: %w", err)
	}
	return &Local{Dir: dir}, nil
}

func (l *Local) path(id string) string {
	return filepath.Join(l.Dir, filepath.Base(id)+ArchiveSuffix)
}

// Save writes to a temporary file first so a partial archive never appears under its ID.
func (l *Local) Save(_ context.Context, snap *snapshot.Snapshot) (Info, error) {
	id := IDOf(snap)
	tmp, err := os.CreateTemp(l.Dir, ".snapshot-*")
	if err != nil {
		return Info{}, err
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, snap); err != nil {
		_ = tmp.Close()
		return Info{}, err
	}
	if err := tmp.Close(); err != nil {
		return Info{}, err
	}
	if err := os.Rename(tmp.Name(), l.path(id)); err != nil {
		return Info{}, err
	}
	st, err := os.Stat(l.path(id))
	if err != nil {
		return Info{}, err
	}
	info, _ := infoFromName(st.Name(), st.Size())
	return info, nil
}

func (l *Local) Load(_ context.Context, id string) (*snapshot.Snapshot, error) {
	f, err := os.Open(l.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func (l *Local) List(_ context.Context, guildID string) ([]Info, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, err
	}
	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		st, err := e.Info()
		if err != nil {
			continue
		}
		if info, ok := infoFromName(e.Name(), st.Size()); ok {
			infos = append(infos, info)
		}
	}
	return filterAndSort(infos, guildID), nil
}

func (l *Local) Delete(_ context.Context, id string) error {
	err := os.Remove(l.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// ReadFile loads a snapshot from an arbitrary archive or JSON document on disk.
func ReadFile(path string) (*snapshot.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

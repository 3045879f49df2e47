// Package store persists snapshots as tar.gz archives, on local disk or in an S3 bucket.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vshn/guildsnap/snapshot"
)

// ArchiveSuffix is appended to snapshot IDs to form object and file names.
const ArchiveSuffix = ".tar.gz"

// ErrNotFound is returned when a snapshot ID does not exist.
var ErrNotFound = errors.New("snapshot not found")

// Info describes a stored snapshot.
type Info struct {
	ID      string
	GuildID string
	Created time.Time
	Size    int64
}

// Store is implemented by the storage backends.
type Store interface {
	Save(ctx context.Context, snap *snapshot.Snapshot) (Info, error)
	Load(ctx context.Context, id string) (*snapshot.Snapshot, error)
	// List returns the snapshots of a guild, newest first. An empty guildID lists all.
	List(ctx context.Context, guildID string) ([]Info, error)
	Delete(ctx context.Context, id string) error
}

// NewID returns the identifier of a snapshot of guildID taken at t.
func NewID(guildID string, t time.Time) string {
	return fmt.Sprintf("%s_%d", guildID, t.UnixMilli())
}

// ParseID splits an identifier created by NewID.
func ParseID(id string) (guildID string, created time.Time, err error) {
	idx := strings.LastIndex(id, "_")
	if idx <= 0 || idx == len(id)-1 {
		return "", time.Time{}, fmt.Errorf("invalid snapshot id %q", id)
	}
	millis, err := strconv.ParseInt(id[idx+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("invalid snapshot id %q: %w", id, err)
	}
	return id[:idx], time.UnixMilli(millis).UTC(), nil
}

// IDOf returns the identifier under which snap is saved.
func IDOf(snap *snapshot.Snapshot) string {
	return NewID(snap.Metadata.GuildID, snap.Metadata.Timestamp)
}

// infoFromName parses "<id>.tar.gz". ok is false for foreign names.
func infoFromName(name string, size int64) (Info, bool) {
	if !strings.HasSuffix(name, ArchiveSuffix) {
		return Info{}, false
	}
	id := strings.TrimSuffix(name, ArchiveSuffix)
	guildID, created, err := ParseID(id)
	if err != nil {
		return Info{}, false
	}
	return Info{ID: id, GuildID: guildID, Created: created, Size: size}, true
}

func filterAndSort(infos []Info, guildID string) []Info {
	out := make([]Info, 0, len(infos))
	for _, i := range infos {
		if guildID == "" || i.GuildID == guildID {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.After(out[j].Created) })
	return out
}

// Prune deletes all but the keepLast newest snapshots of a guild and returns the
// deleted ones. keepLast values below one keep everything.
func Prune(ctx context.Context, s Store, guildID string, keepLast int) ([]Info, error) {
	if keepLast < 1 {
		return nil, nil
	}
	infos, err := s.List(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if len(infos) <= keepLast {
		return nil, nil
	}
	var deleted []Info
	for _, i := range infos[keepLast:] {
		if err := s.Delete(ctx, i.ID); err != nil {
			return deleted, fmt.Errorf("cannot prune %s: %w", i.ID, err)
		}
		deleted = append(deleted, i)
	}
	return deleted, nil
}

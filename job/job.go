// Package job contains the unit of work run by the capture and schedule commands:
// capture a guild, store the snapshot, report and prune.
package job

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/vshn/guildsnap/capture"
	"github.com/vshn/guildsnap/platform"
	"github.com/vshn/guildsnap/stats"
	"github.com/vshn/guildsnap/store"
)

// StatsSender delivers reports. *stats.Handler implements it.
type StatsSender interface {
	Send(ctx context.Context, report stats.Report)
}

// Config represents the whole context for running capture jobs.
type Config struct {
	Reader   platform.Reader
	Store    store.Store
	Capturer *capture.Capturer
	Stats    StatsSender
	Log      logr.Logger
	// KeepLast prunes older snapshots of the guild after a successful capture. Zero keeps all.
	KeepLast int
}

// NewConfig returns a new configuration.
func NewConfig(reader platform.Reader, st store.Store, capturer *capture.Capturer, sender StatsSender, log logr.Logger, keepLast int) Config {
	return Config{
		Reader:   reader,
		Store:    st,
		Capturer: capturer,
		Stats:    sender,
		Log:      log,
		KeepLast: keepLast,
	}
}

// CaptureGuild captures one guild and saves the snapshot. Pruning failures are
// logged but do not fail the job.
func (c Config) CaptureGuild(ctx context.Context, guildID string) (capture.Summary, error) {
	log := c.Log.WithValues("guild", guildID)

	snap, err := c.Capturer.Capture(ctx, c.Reader, guildID)
	if err != nil {
		return capture.Summary{}, err
	}
	info, err := c.Store.Save(ctx, snap)
	if err != nil {
		return capture.Summary{}, fmt.Errorf("cannot save snapshot of guild %s: %w", guildID, err)
	}
	log.Info("snapshot saved", "id", info.ID, "size", info.Size)

	summary := capture.NewSummary(snap, info.ID, info.Size)
	if c.Stats != nil {
		c.Stats.Send(ctx, summary)
	}

	if c.KeepLast > 0 {
		deleted, err := store.Prune(ctx, c.Store, guildID, c.KeepLast)
		if err != nil {
			log.Error(err, "could not prune old snapshots")
		}
		for _, d := range deleted {
			log.Info("pruned snapshot", "id", d.ID)
		}
	}
	return summary, nil
}

// CaptureAll runs CaptureGuild for each guild in order and returns the number of
// guilds without a new snapshot.
func (c Config) CaptureAll(ctx context.Context, guildIDs []string) int {
	failed := 0
	for i, guildID := range guildIDs {
		if ctx.Err() != nil {
			return failed + len(guildIDs) - i
		}
		if _, err := c.CaptureGuild(ctx, guildID); err != nil {
			c.Log.Error(err, "capture failed", "guild", guildID)
			failed++
		}
	}
	return failed
}

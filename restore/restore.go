// Package restore destructively recreates the structure of a guild from a snapshot.
//
// A restore is a fixed sequence of phases: teardown of channels and roles, guild
// settings, roles, channels, emoji. Each write call is attempted once through a
// paced queue; a failing call is recorded and logged and the phase continues with
// the next entity. Only failures to read the target during teardown, an invalid
// snapshot or a cancelled context abort the run.
package restore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/vshn/guildsnap/platform"
	"github.com/vshn/guildsnap/queue"
	"github.com/vshn/guildsnap/snapshot"
)

// AuditReason is attached to every write call where the platform supports it.
const AuditReason = "Restoring guild snapshot"

var errImageUnavailable = errors.New("image not available")

// AssetFetcher downloads an image, returning nil when it is unavailable.
type AssetFetcher interface {
	Fetch(ctx context.Context, url string) []byte
}

// Options configure a Restorer.
type Options struct {
	Log       logr.Logger
	Fetcher   AssetFetcher
	Intervals queue.Intervals
	// Clock drives the pacing delays. Defaults to the wall clock.
	Clock clock.Clock
}

// Restorer holds no state between runs.
type Restorer struct {
	log       logr.Logger
	fetcher   AssetFetcher
	intervals queue.Intervals
	clock     clock.Clock
}

// New returns a Restorer.
func New(opts Options) *Restorer {
	if opts.Intervals == nil {
		opts.Intervals = queue.DefaultIntervals()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Restorer{
		log:       opts.Log.WithName("restore"),
		fetcher:   opts.Fetcher,
		intervals: opts.Intervals,
		clock:     opts.Clock,
	}
}

// run is the state of a single restore invocation.
type run struct {
	api     platform.API
	guildID string
	snap    *snapshot.Snapshot
	fetcher AssetFetcher
	log     logr.Logger
	queue   *queue.ExecutionQueue
	remap   *Remapper
	report  *Report
}

// Restore deletes the target's channels and roles and recreates the snapshot's
// structure on it. The returned report is never nil.
func (r *Restorer) Restore(ctx context.Context, api platform.API, guildID string, snap *snapshot.Snapshot) (*Report, error) {
	report := &Report{
		RunID:   uuid.NewString(),
		GuildID: guildID,
		Started: r.clock.Now(),
	}
	if err := snap.Validate(); err != nil {
		report.Finished = r.clock.Now()
		return report, fmt.Errorf("cannot restore snapshot: %w", err)
	}

	log := r.log.WithValues("guild", guildID, "run", report.RunID, "source", snap.Metadata.GuildID)
	q := queue.NewExecutionQueue(r.clock, r.intervals, log)
	defer q.Close()

	rn := &run{
		api:     api,
		guildID: guildID,
		snap:    snap,
		fetcher: r.fetcher,
		log:     log,
		queue:   q,
		remap:   NewRemapper(guildID),
		report:  report,
	}
	log.Info("starting restore", "snapshot", snap.Metadata.Timestamp)

	err := rn.execute(ctx)
	report.RoleMap = rn.remap.Roles()
	report.CategoryMap = rn.remap.Categories()
	report.Finished = r.clock.Now()
	if err != nil {
		log.Error(err, "restore aborted", "phase", report.Reached)
		return report, err
	}
	log.Info("restore completed", "failures", len(report.Failures()))
	return report, nil
}

func (rn *run) execute(ctx context.Context) error {
	steps := map[Phase]func(context.Context) error{
		TeardownChannels: rn.teardownChannels,
		TeardownRoles:    rn.teardownRoles,
		RestoreSettings:  rn.restoreSettings,
		RestoreRoles:     rn.restoreRoles,
		RestoreChannels:  rn.restoreChannels,
		RestoreEmoji:     rn.restoreEmoji,
	}
	for _, phase := range Phases {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("restore interrupted before %s: %w", phase, err)
		}
		rn.report.Reached = phase
		if phase == Done {
			return nil
		}
		rn.log.Info("entering phase", "phase", phase)
		if err := steps[phase](ctx); err != nil {
			return err
		}
	}
	return nil
}

// attempt runs one write call through the queue and records its outcome.
func (rn *run) attempt(ctx context.Context, phase Phase, kind, name string, category queue.Category, call queue.Task) bool {
	err := rn.queue.Do(ctx, category, call)
	rn.report.record(phase, kind, name, err)
	if err != nil {
		rn.log.Error(err, "call failed, continuing", "phase", phase, "kind", kind, "name", name)
		return false
	}
	return true
}

func (rn *run) teardownChannels(ctx context.Context) error {
	channels, err := rn.api.Channels(ctx, rn.guildID)
	if err != nil {
		return fmt.Errorf("cannot list channels of target guild: %w", err)
	}
	for _, ch := range channels {
		id := ch.ID
		rn.attempt(ctx, TeardownChannels, KindChannel, ch.Name, queue.Deletion, func(ctx context.Context) error {
			return rn.api.DeleteChannel(ctx, id)
		})
	}
	return nil
}

// teardownRoles deletes from the highest position down, so that as many roles as
// possible are removed before reaching the principal's own ceiling.
func (rn *run) teardownRoles(ctx context.Context) error {
	roles, err := rn.api.Roles(ctx, rn.guildID)
	if err != nil {
		return fmt.Errorf("cannot list roles of target guild: %w", err)
	}
	deletable := make([]platform.Role, 0, len(roles))
	for _, role := range roles {
		if role.ID == rn.guildID || role.Managed {
			continue
		}
		deletable = append(deletable, role)
	}
	sort.SliceStable(deletable, func(i, j int) bool { return deletable[i].Position > deletable[j].Position })

	for _, role := range deletable {
		id := role.ID
		rn.attempt(ctx, TeardownRoles, KindRole, role.Name, queue.Deletion, func(ctx context.Context) error {
			return rn.api.DeleteRole(ctx, rn.guildID, id)
		})
	}
	return nil
}

func (rn *run) restoreSettings(ctx context.Context) error {
	settings := rn.snap.GuildSettings
	update := platform.GuildUpdate{
		Name:                        settings.Name,
		Description:                 settings.Description,
		VerificationLevel:           settings.VerificationLevel,
		DefaultMessageNotifications: settings.DefaultMessageNotifications,
		ExplicitContentFilter:       settings.ExplicitContentFilter,
		AFKTimeout:                  settings.AFKTimeout,
		PreferredLocale:             settings.PreferredLocale,
		Icon:                        rn.fetchImage(ctx, "icon", settings.Icon),
		Banner:                      rn.fetchImage(ctx, "banner", settings.Banner),
		Splash:                      rn.fetchImage(ctx, "splash", settings.Splash),
	}
	rn.attempt(ctx, RestoreSettings, KindSettings, settings.Name, queue.Unpaced, func(ctx context.Context) error {
		return rn.api.UpdateGuild(ctx, rn.guildID, update)
	})
	return nil
}

// fetchImage returns nil for absent or unreachable images, which omits the field.
func (rn *run) fetchImage(ctx context.Context, field, url string) []byte {
	if url == "" || rn.fetcher == nil {
		return nil
	}
	data := rn.fetcher.Fetch(ctx, url)
	if data == nil {
		rn.log.Info("skipping unavailable image", "field", field, "url", url)
	}
	return data
}

func (rn *run) restoreRoles(ctx context.Context) error {
	created := make([]*platform.Role, len(rn.snap.Roles))
	for i, entry := range rn.snap.Roles {
		i, entry := i, entry
		rn.attempt(ctx, RestoreRoles, KindRole, entry.Name, queue.Creation, func(ctx context.Context) error {
			permissions, err := entry.Permissions.Int64()
			if err != nil {
				return err
			}
			role, err := rn.api.CreateRole(ctx, rn.guildID, platform.RoleCreate{
				Name:         entry.Name,
				Color:        entry.Color,
				Hoist:        entry.Hoist,
				Permissions:  permissions,
				Mentionable:  entry.Mentionable,
				UnicodeEmoji: entry.UnicodeEmoji,
			})
			if err != nil {
				return err
			}
			created[i] = &role
			if !rn.remap.MapRole(entry.Name, role.ID) {
				rn.log.Info("duplicate role name, keeping the first mapping", "name", entry.Name)
			}
			return nil
		})
	}
	rn.log.Info("roles created", "count", len(rn.remap.Roles())-1)

	rn.repositionRoles(ctx, created)
	return nil
}

// repositionRoles requests the snapshot positions in one batch. A failure leaves
// the hierarchy as created.
func (rn *run) repositionRoles(ctx context.Context, created []*platform.Role) {
	ceiling, err := rn.api.SelfHighestRolePosition(ctx, rn.guildID)
	if err != nil {
		rn.log.Info("cannot determine own highest role, attempting to move all roles", "error", err.Error())
		ceiling = -1
	}

	positions := make([]platform.RolePosition, 0, len(created))
	for i, role := range created {
		if role == nil {
			continue
		}
		if ceiling >= 0 && role.Position >= ceiling {
			continue
		}
		positions = append(positions, platform.RolePosition{ID: role.ID, Position: rn.snap.Roles[i].Position})
	}
	if len(positions) == 0 {
		return
	}

	ok := rn.attempt(ctx, RestoreRoles, KindPositions, "role positions", queue.Unpaced, func(ctx context.Context) error {
		return rn.api.ReorderRoles(ctx, rn.guildID, positions)
	})
	if !ok {
		rn.report.PositionsDegraded = true
		rn.log.Info("role hierarchy may differ from the snapshot due to permission limitations")
	}
}

func (rn *run) restoreChannels(ctx context.Context) error {
	for _, entry := range rn.snap.Categories() {
		entry := entry
		rn.attempt(ctx, RestoreChannels, KindChannel, entry.Name, queue.Creation, func(ctx context.Context) error {
			ch, err := rn.api.CreateChannel(ctx, rn.guildID, platform.ChannelCreate{
				Name:       entry.Name,
				Type:       platform.ChannelTypeCategory,
				Position:   entry.Position,
				Overwrites: rn.remap.TranslateOverwrites(entry.PermissionOverwrites),
			})
			if err != nil {
				return err
			}
			if !rn.remap.MapCategory(entry.Name, ch.ID) {
				rn.log.Info("duplicate category name, keeping the first mapping", "name", entry.Name)
			}
			return nil
		})
	}

	for _, entry := range rn.snap.Leaves() {
		data := rn.leafChannel(entry)
		rn.attempt(ctx, RestoreChannels, KindChannel, entry.Name, queue.Creation, func(ctx context.Context) error {
			_, err := rn.api.CreateChannel(ctx, rn.guildID, data)
			return err
		})
	}
	return nil
}

// leafChannel builds the creation request for a non-category channel. Optional
// fields are only sent when the snapshot carries them and the created kind
// supports them.
func (rn *run) leafChannel(entry snapshot.Channel) platform.ChannelCreate {
	kind := CreatedKind(entry.Type)
	data := platform.ChannelCreate{
		Name:       entry.Name,
		Type:       kind,
		Position:   entry.Position,
		Overwrites: rn.remap.TranslateOverwrites(entry.PermissionOverwrites),
	}
	if parent := entry.ParentName(); parent != "" {
		if id, ok := rn.remap.Category(parent); ok {
			data.ParentID = id
		} else {
			rn.log.V(1).Info("parent category not restored, creating without parent", "name", entry.Name, "parent", parent)
		}
	}

	switch kind {
	case platform.ChannelTypeText, platform.ChannelTypeForum:
		data.Topic = nonEmpty(entry.Topic)
		data.NSFW = entry.NSFW
		data.RateLimitPerUser = positive(entry.RateLimitPerUser)
		data.DefaultAutoArchiveDuration = positive(entry.DefaultAutoArchiveDuration)
	case platform.ChannelTypeVoice, platform.ChannelTypeStage:
		data.Bitrate = positive(entry.Bitrate)
		data.UserLimit = positive(entry.UserLimit)
		data.RTCRegion = nonEmpty(entry.RTCRegion)
	}
	return data
}

// CreatedKind returns the kind a captured channel is recreated as. Announcement
// channels are created as text channels.
func CreatedKind(t platform.ChannelType) platform.ChannelType {
	if t == platform.ChannelTypeAnnouncement {
		return platform.ChannelTypeText
	}
	return t
}

func (rn *run) restoreEmoji(ctx context.Context) error {
	for _, entry := range rn.snap.Emojis {
		entry := entry
		rn.attempt(ctx, RestoreEmoji, KindEmoji, entry.Name, queue.Emoji, func(ctx context.Context) error {
			var image []byte
			if rn.fetcher != nil {
				image = rn.fetcher.Fetch(ctx, entry.URL)
			}
			if image == nil {
				return fmt.Errorf("%w: %s", errImageUnavailable, entry.URL)
			}
			_, err := rn.api.CreateEmoji(ctx, rn.guildID, platform.EmojiCreate{Name: entry.Name, Image: image})
			return err
		})
	}
	ok, total := rn.report.CountKind(RestoreEmoji, KindEmoji)
	rn.log.Info(fmt.Sprintf("restored %d/%d emoji", ok, total))
	return nil
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func positive(i *int) *int {
	if i == nil || *i <= 0 {
		return nil
	}
	return i
}

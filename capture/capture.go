// Package capture reads the live structure of a guild into a snapshot document.
package capture

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/vshn/guildsnap/platform"
	"github.com/vshn/guildsnap/snapshot"
)

// Capturer produces snapshots. It never mutates the source guild.
type Capturer struct {
	log   logr.Logger
	clock clock.PassiveClock
}

// New returns a Capturer. A nil clock falls back to the wall clock.
func New(log logr.Logger, clk clock.PassiveClock) *Capturer {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Capturer{log: log.WithName("capture"), clock: clk}
}

// Capture reads settings, roles, channels and emoji of the guild. Any failed read
// aborts the capture; no partial snapshot is returned.
func (c *Capturer) Capture(ctx context.Context, r platform.Reader, guildID string) (*snapshot.Snapshot, error) {
	log := c.log.WithValues("guild", guildID)
	log.Info("creating snapshot")

	guild, err := r.Guild(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("cannot read guild %s: %w", guildID, err)
	}
	roles, err := r.Roles(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("cannot list roles: %w", err)
	}
	channels, err := r.Channels(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("cannot list channels: %w", err)
	}
	emojis, err := r.Emojis(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("cannot list emojis: %w", err)
	}

	roleNames := make(map[string]string, len(roles))
	for _, role := range roles {
		roleNames[role.ID] = role.Name
	}

	s := &snapshot.Snapshot{
		Metadata: snapshot.Metadata{
			BackupVersion: snapshot.Version,
			GuildID:       guild.ID,
			GuildName:     guild.Name,
			Timestamp:     c.clock.Now().UTC(),
			MemberCount:   guild.MemberCount,
		},
		GuildSettings: settingsFrom(guild),
		Roles:         rolesFrom(guildID, roles),
		Channels:      channelsFrom(channels, roleNames),
		Emojis:        emojisFrom(emojis, roleNames),
	}

	if dupRoles, dupChannels := s.DuplicateNames(); len(dupRoles) > 0 || len(dupChannels) > 0 {
		log.Info("snapshot contains duplicate names, restore will only remap the first entry of each",
			"roles", dupRoles, "channels", dupChannels)
	}
	log.Info("snapshot created", "roles", len(s.Roles), "channels", len(s.Channels), "emojis", len(s.Emojis))
	return s, nil
}

func settingsFrom(g platform.Guild) snapshot.GuildSettings {
	return snapshot.GuildSettings{
		Name:                        g.Name,
		Description:                 g.Description,
		Icon:                        g.IconURL,
		Banner:                      g.BannerURL,
		Splash:                      g.SplashURL,
		VerificationLevel:           g.VerificationLevel,
		DefaultMessageNotifications: g.DefaultMessageNotifications,
		ExplicitContentFilter:       g.ExplicitContentFilter,
		AFKTimeout:                  g.AFKTimeout,
		SystemChannelFlags:          g.SystemChannelFlags,
		PreferredLocale:             g.PreferredLocale,
		Features:                    g.Features,
	}
}

// rolesFrom sorts ascending by position and drops the everyone role, whose ID
// equals the guild ID.
func rolesFrom(guildID string, roles []platform.Role) []snapshot.Role {
	sorted := append([]platform.Role(nil), roles...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	out := make([]snapshot.Role, 0, len(sorted))
	for _, role := range sorted {
		if role.ID == guildID {
			continue
		}
		out = append(out, snapshot.Role{
			Name:         role.Name,
			Color:        role.Color,
			Hoist:        role.Hoist,
			Position:     role.Position,
			Permissions:  snapshot.NewPermissions(role.Permissions),
			Mentionable:  role.Mentionable,
			Icon:         role.IconURL,
			UnicodeEmoji: role.UnicodeEmoji,
		})
	}
	return out
}

func channelsFrom(channels []platform.Channel, roleNames map[string]string) []snapshot.Channel {
	sorted := append([]platform.Channel(nil), channels...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	categoryNames := make(map[string]string)
	for _, ch := range sorted {
		if ch.Type == platform.ChannelTypeCategory {
			categoryNames[ch.ID] = ch.Name
		}
	}

	out := make([]snapshot.Channel, 0, len(sorted))
	for _, ch := range sorted {
		out = append(out, channelFrom(ch, roleNames, categoryNames))
	}
	return out
}

func channelFrom(ch platform.Channel, roleNames, categoryNames map[string]string) snapshot.Channel {
	entry := snapshot.Channel{
		Name:                 ch.Name,
		Type:                 ch.Type,
		Position:             ch.Position,
		PermissionOverwrites: overwritesFrom(ch.Overwrites, roleNames),
	}
	if ch.Type == platform.ChannelTypeCategory {
		entry.Category = true
		return entry
	}
	if name, ok := categoryNames[ch.ParentID]; ok {
		entry.Parent = &name
	}

	switch ch.Type {
	case platform.ChannelTypeText, platform.ChannelTypeForum:
		entry.Topic = optionalString(ch.Topic)
		entry.NSFW = &ch.NSFW
		entry.RateLimitPerUser = &ch.RateLimitPerUser
		entry.DefaultAutoArchiveDuration = optionalInt(ch.DefaultAutoArchiveDuration)
	case platform.ChannelTypeAnnouncement:
		entry.Topic = optionalString(ch.Topic)
		entry.NSFW = &ch.NSFW
		entry.DefaultAutoArchiveDuration = optionalInt(ch.DefaultAutoArchiveDuration)
	case platform.ChannelTypeVoice, platform.ChannelTypeStage:
		entry.Bitrate = &ch.Bitrate
		entry.UserLimit = &ch.UserLimit
		entry.RTCRegion = optionalString(ch.RTCRegion)
	}
	return entry
}

func overwritesFrom(overwrites []platform.Overwrite, roleNames map[string]string) []snapshot.Overwrite {
	out := make([]snapshot.Overwrite, 0, len(overwrites))
	for _, o := range overwrites {
		entry := snapshot.Overwrite{
			ID:    o.ID,
			Type:  o.Type,
			Allow: snapshot.NewPermissions(o.Allow),
			Deny:  snapshot.NewPermissions(o.Deny),
		}
		switch o.Type {
		case platform.OverwriteTypeRole:
			// An unresolvable role keeps an empty name and is dropped on restore.
			entry.RoleName = roleNames[o.ID]
		case platform.OverwriteTypeMember:
			entry.UserID = o.ID
		}
		out = append(out, entry)
	}
	return out
}

func emojisFrom(emojis []platform.Emoji, roleNames map[string]string) []snapshot.Emoji {
	out := make([]snapshot.Emoji, 0, len(emojis))
	for _, e := range emojis {
		var roles []string
		for _, id := range e.RoleIDs {
			if name, ok := roleNames[id]; ok {
				roles = append(roles, name)
			}
		}
		out = append(out, snapshot.Emoji{
			Name:     e.Name,
			URL:      e.URL,
			Animated: e.Animated,
			Roles:    roles,
		})
	}
	return out
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}

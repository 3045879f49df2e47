// Package snapshot contains the versioned document shared by capture and restore.
package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vshn/guildsnap/platform"
)

const (
	// Version is the schema version written by capture.
	Version = "1.0.0"

	// EveryoneRoleName is the name under which the implicit baseline role is known.
	EveryoneRoleName = "@everyone"
)

// ErrUnsupportedVersion is returned by Validate for documents of an unknown major version.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Snapshot is the root document.
type Snapshot struct {
	Metadata      Metadata      `json:"metadata"`
	GuildSettings GuildSettings `json:"guild"`
	Roles         []Role        `json:"roles"`
	Channels      []Channel     `json:"channels"`
	Emojis        []Emoji       `json:"emojis"`
}

type Metadata struct {
	BackupVersion string    `json:"backupVersion"`
	GuildID       string    `json:"guildId"`
	GuildName     string    `json:"guildName"`
	Timestamp     time.Time `json:"timestamp"`
	// MemberCount is informational, it is never restored.
	MemberCount int `json:"memberCount"`
}

type GuildSettings struct {
	Name                        string   `json:"name"`
	Description                 string   `json:"description,omitempty"`
	Icon                        string   `json:"icon,omitempty"`
	Banner                      string   `json:"banner,omitempty"`
	Splash                      string   `json:"splash,omitempty"`
	VerificationLevel           int      `json:"verificationLevel"`
	DefaultMessageNotifications int      `json:"defaultMessageNotifications"`
	ExplicitContentFilter       int      `json:"explicitContentFilter"`
	AFKTimeout                  int      `json:"afkTimeout"`
	SystemChannelFlags          int      `json:"systemChannelFlags,omitempty"`
	PreferredLocale             string   `json:"preferredLocale"`
	Features                    []string `json:"features,omitempty"`
}

// Role is identified by its Name across capture and restore.
type Role struct {
	Name         string      `json:"name"`
	Color        int         `json:"color"`
	Hoist        bool        `json:"hoist"`
	Position     int         `json:"position"`
	Permissions  Permissions `json:"permissions"`
	Mentionable  bool        `json:"mentionable"`
	Icon         string      `json:"icon,omitempty"`
	UnicodeEmoji string      `json:"unicodeEmoji,omitempty"`
}

// Channel is identified by its Name. Parent references a category by name.
type Channel struct {
	Name                       string               `json:"name"`
	Type                       platform.ChannelType `json:"type"`
	Position                   int                  `json:"position"`
	PermissionOverwrites       []Overwrite          `json:"permissionOverwrites"`
	Category                   bool                 `json:"category,omitempty"`
	Parent                     *string              `json:"parent,omitempty"`
	Topic                      *string              `json:"topic,omitempty"`
	NSFW                       *bool                `json:"nsfw,omitempty"`
	RateLimitPerUser           *int                 `json:"rateLimitPerUser,omitempty"`
	Bitrate                    *int                 `json:"bitrate,omitempty"`
	UserLimit                  *int                 `json:"userLimit,omitempty"`
	RTCRegion                  *string              `json:"rtcRegion,omitempty"`
	DefaultAutoArchiveDuration *int                 `json:"defaultAutoArchiveDuration,omitempty"`
}

// ParentName returns the referenced category name or the empty string.
func (c Channel) ParentName() string {
	if c.Parent == nil {
		return ""
	}
	return *c.Parent
}

// Overwrite is a captured permission overwrite. Role overwrites carry RoleName for
// remapping, ID keeps the original identifier for reference.
type Overwrite struct {
	ID       string                 `json:"id"`
	Type     platform.OverwriteType `json:"type"`
	Allow    Permissions            `json:"allow"`
	Deny     Permissions            `json:"deny"`
	RoleName string                 `json:"roleName,omitempty"`
	UserID   string                 `json:"userId,omitempty"`
}

type Emoji struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Animated bool   `json:"animated"`
	// Roles lists the names of roles allowed to use the emoji. Informational only.
	Roles []string `json:"roles,omitempty"`
}

// Validate checks that the document can be restored before anything destructive happens.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("snapshot is nil")
	}
	major := strings.SplitN(s.Metadata.BackupVersion, ".", 2)[0]
	if major != strings.SplitN(Version, ".", 2)[0] {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, s.Metadata.BackupVersion)
	}
	for _, r := range s.Roles {
		if _, err := r.Permissions.Int64(); err != nil {
			return fmt.Errorf("role %q: %w", r.Name, err)
		}
	}
	for _, c := range s.Channels {
		for _, o := range c.PermissionOverwrites {
			if _, err := o.Allow.Int64(); err != nil {
				return fmt.Errorf("channel %q: allow: %w", c.Name, err)
			}
			if _, err := o.Deny.Int64(); err != nil {
				return fmt.Errorf("channel %q: deny: %w", c.Name, err)
			}
		}
	}
	return nil
}

// Categories returns the channel entries flagged as category, in stored order.
func (s *Snapshot) Categories() []Channel {
	var out []Channel
	for _, c := range s.Channels {
		if c.Category {
			out = append(out, c)
		}
	}
	return out
}

// Leaves returns the non-category channel entries, in stored order.
func (s *Snapshot) Leaves() []Channel {
	var out []Channel
	for _, c := range s.Channels {
		if !c.Category {
			out = append(out, c)
		}
	}
	return out
}

// DuplicateNames reports role names and channel names that occur more than once.
// Such names cannot be remapped unambiguously.
func (s *Snapshot) DuplicateNames() (roles, channels []string) {
	return duplicates(len(s.Roles), func(i int) string { return s.Roles[i].Name }),
		duplicates(len(s.Channels), func(i int) string { return s.Channels[i].Name })
}

func duplicates(n int, name func(int) string) []string {
	seen := make(map[string]int, n)
	var dups []string
	for i := 0; i < n; i++ {
		seen[name(i)]++
		if seen[name(i)] == 2 {
			dups = append(dups, name(i))
		}
	}
	return dups
}

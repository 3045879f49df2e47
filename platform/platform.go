// Package platform describes the capabilities the snapshot engine needs from the
// community platform. Implementations live elsewhere, see package discord.
package platform

import "context"

// ChannelType is the platform's numeric channel kind.
type ChannelType int

const (
	ChannelTypeText         ChannelType = 0
	ChannelTypeVoice        ChannelType = 2
	ChannelTypeCategory     ChannelType = 4
	ChannelTypeAnnouncement ChannelType = 5
	ChannelTypeStage        ChannelType = 13
	ChannelTypeForum        ChannelType = 15
)

func (t ChannelType) String() string {
	switch t {
	case ChannelTypeText:
		return "text"
	case ChannelTypeVoice:
		return "voice"
	case ChannelTypeCategory:
		return "category"
	case ChannelTypeAnnouncement:
		return "announcement"
	case ChannelTypeStage:
		return "stage-voice"
	case ChannelTypeForum:
		return "forum"
	}
	return "other"
}

// OverwriteType tells whether a permission overwrite targets a role or a member.
type OverwriteType int

const (
	OverwriteTypeRole   OverwriteType = 0
	OverwriteTypeMember OverwriteType = 1
)

// Guild holds the server-level settings.
type Guild struct {
	ID                          string
	Name                        string
	Description                 string
	IconURL                     string
	BannerURL                   string
	SplashURL                   string
	VerificationLevel           int
	DefaultMessageNotifications int
	ExplicitContentFilter       int
	AFKTimeout                  int
	SystemChannelFlags          int
	PreferredLocale             string
	Features                    []string
	MemberCount                 int
}

type Role struct {
	ID           string
	Name         string
	Color        int
	Hoist        bool
	Managed      bool
	Mentionable  bool
	Position     int
	Permissions  int64
	IconURL      string
	UnicodeEmoji string
}

type Overwrite struct {
	ID    string
	Type  OverwriteType
	Allow int64
	Deny  int64
}

// Channel is a live channel. Kind-specific fields are zero when the kind does not carry them.
type Channel struct {
	ID                         string
	Name                       string
	Type                       ChannelType
	Position                   int
	ParentID                   string
	Overwrites                 []Overwrite
	Topic                      string
	NSFW                       bool
	RateLimitPerUser           int
	Bitrate                    int
	UserLimit                  int
	RTCRegion                  string
	DefaultAutoArchiveDuration int
}

type Emoji struct {
	ID       string
	Name     string
	URL      string
	Animated bool
	RoleIDs  []string
}

// GuildUpdate carries the settings applied in one update call. Nil images leave the
// current image untouched.
type GuildUpdate struct {
	Name                        string
	Description                 string
	VerificationLevel           int
	DefaultMessageNotifications int
	ExplicitContentFilter       int
	AFKTimeout                  int
	PreferredLocale             string
	Icon                        []byte
	Banner                      []byte
	Splash                      []byte
}

type RoleCreate struct {
	Name         string
	Color        int
	Hoist        bool
	Permissions  int64
	Mentionable  bool
	UnicodeEmoji string
}

type RolePosition struct {
	ID       string
	Position int
}

// ChannelCreate describes a channel to create. Nil optional fields are not sent.
type ChannelCreate struct {
	Name                       string
	Type                       ChannelType
	Position                   int
	ParentID                   string
	Overwrites                 []Overwrite
	Topic                      *string
	NSFW                       *bool
	RateLimitPerUser           *int
	Bitrate                    *int
	UserLimit                  *int
	RTCRegion                  *string
	DefaultAutoArchiveDuration *int
}

type EmojiCreate struct {
	Name  string
	Image []byte
}

// Reader lists the live state of a guild.
type Reader interface {
	Guild(ctx context.Context, guildID string) (Guild, error)
	Roles(ctx context.Context, guildID string) ([]Role, error)
	Channels(ctx context.Context, guildID string) ([]Channel, error)
	Emojis(ctx context.Context, guildID string) ([]Emoji, error)
}

// Writer mutates a guild. Every call may fail with a permission, not-found or
// rate-limit error; callers treat them alike.
type Writer interface {
	DeleteChannel(ctx context.Context, channelID string) error
	DeleteRole(ctx context.Context, guildID, roleID string) error
	UpdateGuild(ctx context.Context, guildID string, update GuildUpdate) error
	CreateRole(ctx context.Context, guildID string, role RoleCreate) (Role, error)
	ReorderRoles(ctx context.Context, guildID string, positions []RolePosition) error
	CreateChannel(ctx context.Context, guildID string, channel ChannelCreate) (Channel, error)
	CreateEmoji(ctx context.Context, guildID string, emoji EmojiCreate) (Emoji, error)
	// SelfHighestRolePosition returns the position of the acting principal's highest role.
	SelfHighestRolePosition(ctx context.Context, guildID string) (int, error)
}

type API interface {
	Reader
	Writer
}

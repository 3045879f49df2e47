// Package discord implements platform.API on the Discord REST API.
package discord

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/go-logr/logr"

	"github.com/vshn/guildsnap/platform"
)

var _ platform.API = &Client{}

// Client talks to Discord with a bot token. It never opens a gateway connection.
type Client struct {
	session *discordgo.Session
	reason  string
	log     logr.Logger
}

// New creates a client for the given bot token. Audit log entries of write calls
// carry reason.
func New(token, reason string, log logr.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("cannot create discord session: %w", err)
	}
	return NewWithSession(session, reason, log), nil
}

// NewWithSession wraps an existing session.
func NewWithSession(session *discordgo.Session, reason string, log logr.Logger) *Client {
	return &Client{session: session, reason: reason, log: log.WithName("discord")}
}

func (c *Client) read(ctx context.Context) []discordgo.RequestOption {
	return []discordgo.RequestOption{discordgo.WithContext(ctx)}
}

func (c *Client) write(ctx context.Context) []discordgo.RequestOption {
	opts := c.read(ctx)
	if c.reason != "" {
		opts = append(opts, discordgo.WithAuditLogReason(c.reason))
	}
	return opts
}

func (c *Client) Guild(ctx context.Context, guildID string) (platform.Guild, error) {
	g, err := c.session.GuildWithCounts(guildID, c.read(ctx)...)
	if err != nil {
		return platform.Guild{}, fmt.Errorf("cannot get guild %s: %w", guildID, err)
	}
	return guildFrom(g), nil
}

func (c *Client) Roles(ctx context.Context, guildID string) ([]platform.Role, error) {
	roles, err := c.session.GuildRoles(guildID, c.read(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("cannot list roles of guild %s: %w", guildID, err)
	}
	out := make([]platform.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleFrom(r))
	}
	return out, nil
}

func (c *Client) Channels(ctx context.Context, guildID string) ([]platform.Channel, error) {
	endpoint := discordgo.EndpointGuildChannels(guildID)
	body, err := c.session.RequestWithBucketID(http.MethodGet, endpoint, nil, endpoint, c.read(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("cannot list channels of guild %s: %w", guildID, err)
	}
	var raw []rawChannel
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("cannot decode channels of guild %s: %w", guildID, err)
	}
	out := make([]platform.Channel, 0, len(raw))
	for _, ch := range raw {
		converted, err := ch.toPlatform()
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", ch.ID, err)
		}
		out = append(out, converted)
	}
	c.log.V(1).Info("listed channels", "guild", guildID, "count", len(out))
	return out, nil
}

func (c *Client) Emojis(ctx context.Context, guildID string) ([]platform.Emoji, error) {
	emojis, err := c.session.GuildEmojis(guildID, c.read(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("cannot list emojis of guild %s: %w", guildID, err)
	}
	out := make([]platform.Emoji, 0, len(emojis))
	for _, e := range emojis {
		out = append(out, emojiFrom(e))
	}
	return out, nil
}

func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := c.session.ChannelDelete(channelID, c.write(ctx)...)
	return err
}

func (c *Client) DeleteRole(ctx context.Context, guildID, roleID string) error {
	return c.session.GuildRoleDelete(guildID, roleID, c.write(ctx)...)
}

func (c *Client) UpdateGuild(ctx context.Context, guildID string, update platform.GuildUpdate) error {
	endpoint := discordgo.EndpointGuild(guildID)
	_, err := c.session.RequestWithBucketID(http.MethodPatch, endpoint, guildEditFrom(update), endpoint, c.write(ctx)...)
	return err
}

func (c *Client) CreateRole(ctx context.Context, guildID string, role platform.RoleCreate) (platform.Role, error) {
	params := &discordgo.RoleParams{
		Name:        role.Name,
		Color:       &role.Color,
		Hoist:       &role.Hoist,
		Permissions: &role.Permissions,
		Mentionable: &role.Mentionable,
	}
	if role.UnicodeEmoji != "" {
		params.UnicodeEmoji = &role.UnicodeEmoji
	}
	created, err := c.session.GuildRoleCreate(guildID, params, c.write(ctx)...)
	if err != nil {
		return platform.Role{}, err
	}
	return roleFrom(created), nil
}

func (c *Client) ReorderRoles(ctx context.Context, guildID string, positions []platform.RolePosition) error {
	roles := make([]*discordgo.Role, 0, len(positions))
	for _, p := range positions {
		roles = append(roles, &discordgo.Role{ID: p.ID, Position: p.Position})
	}
	_, err := c.session.GuildRoleReorder(guildID, roles, c.write(ctx)...)
	return err
}

func (c *Client) CreateChannel(ctx context.Context, guildID string, channel platform.ChannelCreate) (platform.Channel, error) {
	endpoint := discordgo.EndpointGuildChannels(guildID)
	body, err := c.session.RequestWithBucketID(http.MethodPost, endpoint, channelCreateFrom(channel), endpoint, c.write(ctx)...)
	if err != nil {
		return platform.Channel{}, err
	}
	var raw rawChannel
	if err := json.Unmarshal(body, &raw); err != nil {
		return platform.Channel{}, fmt.Errorf("cannot decode created channel: %w", err)
	}
	return raw.toPlatform()
}

func (c *Client) CreateEmoji(ctx context.Context, guildID string, emoji platform.EmojiCreate) (platform.Emoji, error) {
	created, err := c.session.GuildEmojiCreate(guildID, &discordgo.EmojiParams{
		Name:  emoji.Name,
		Image: dataURI(emoji.Image),
	}, c.write(ctx)...)
	if err != nil {
		return platform.Emoji{}, err
	}
	return emojiFrom(created), nil
}

// SelfHighestRolePosition looks up the bot's own member and returns the highest
// position among its roles.
func (c *Client) SelfHighestRolePosition(ctx context.Context, guildID string) (int, error) {
	self, err := c.session.User("@me", c.read(ctx)...)
	if err != nil {
		return 0, fmt.Errorf("cannot get own user: %w", err)
	}
	member, err := c.session.GuildMember(guildID, self.ID, c.read(ctx)...)
	if err != nil {
		return 0, fmt.Errorf("cannot get own member: %w", err)
	}
	roles, err := c.session.GuildRoles(guildID, c.read(ctx)...)
	if err != nil {
		return 0, fmt.Errorf("cannot list roles of guild %s: %w", guildID, err)
	}
	return highestPosition(roles, member.Roles), nil
}

func highestPosition(roles []*discordgo.Role, memberRoleIDs []string) int {
	held := make(map[string]bool, len(memberRoleIDs))
	for _, id := range memberRoleIDs {
		held[id] = true
	}
	highest := 0
	for _, r := range roles {
		if held[r.ID] && r.Position > highest {
			highest = r.Position
		}
	}
	return highest
}

func guildFrom(g *discordgo.Guild) platform.Guild {
	out := platform.Guild{
		ID:                          g.ID,
		Name:                        g.Name,
		Description:                 g.Description,
		VerificationLevel:           int(g.VerificationLevel),
		DefaultMessageNotifications: int(g.DefaultMessageNotifications),
		ExplicitContentFilter:       int(g.ExplicitContentFilter),
		AFKTimeout:                  g.AfkTimeout,
		SystemChannelFlags:          int(g.SystemChannelFlags),
		PreferredLocale:             g.PreferredLocale,
		MemberCount:                 g.ApproximateMemberCount,
	}
	if out.MemberCount == 0 {
		out.MemberCount = g.MemberCount
	}
	if g.Icon != "" {
		out.IconURL = discordgo.EndpointGuildIcon(g.ID, g.Icon)
	}
	if g.Banner != "" {
		out.BannerURL = discordgo.EndpointGuildBanner(g.ID, g.Banner)
	}
	if g.Splash != "" {
		out.SplashURL = discordgo.EndpointGuildSplash(g.ID, g.Splash)
	}
	for _, f := range g.Features {
		out.Features = append(out.Features, string(f))
	}
	return out
}

func roleFrom(r *discordgo.Role) platform.Role {
	out := platform.Role{
		ID:           r.ID,
		Name:         r.Name,
		Color:        r.Color,
		Hoist:        r.Hoist,
		Managed:      r.Managed,
		Mentionable:  r.Mentionable,
		Position:     r.Position,
		Permissions:  r.Permissions,
		UnicodeEmoji: r.UnicodeEmoji,
	}
	if r.Icon != "" {
		out.IconURL = discordgo.EndpointRoleIcon(r.ID, r.Icon)
	}
	return out
}

func emojiFrom(e *discordgo.Emoji) platform.Emoji {
	url := discordgo.EndpointEmoji(e.ID)
	if e.Animated {
		url = discordgo.EndpointEmojiAnimated(e.ID)
	}
	return platform.Emoji{
		ID:       e.ID,
		Name:     e.Name,
		URL:      url,
		Animated: e.Animated,
		RoleIDs:  e.Roles,
	}
}

// dataURI encodes an image the way Discord expects it in JSON bodies.
// Empty images yield the empty string.
func dataURI(image []byte) string {
	if len(image) == 0 {
		return ""
	}
	return fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(image), base64.StdEncoding.EncodeToString(image))
}

// rawChannel decodes channel payloads directly, discordgo.Channel does not carry
// every field a snapshot needs.
type rawChannel struct {
	ID                         string         `json:"id"`
	Name                       string         `json:"name"`
	Type                       int            `json:"type"`
	Position                   int            `json:"position"`
	ParentID                   *string        `json:"parent_id"`
	PermissionOverwrites       []rawOverwrite `json:"permission_overwrites"`
	Topic                      *string        `json:"topic"`
	NSFW                       bool           `json:"nsfw"`
	RateLimitPerUser           int            `json:"rate_limit_per_user"`
	Bitrate                    int            `json:"bitrate"`
	UserLimit                  int            `json:"user_limit"`
	RTCRegion                  *string        `json:"rtc_region"`
	DefaultAutoArchiveDuration int            `json:"default_auto_archive_duration"`
}

type rawOverwrite struct {
	ID    string      `json:"id"`
	Type  int         `json:"type"`
	Allow json.Number `json:"allow"`
	Deny  json.Number `json:"deny"`
}

func (ch rawChannel) toPlatform() (platform.Channel, error) {
	out := platform.Channel{
		ID:                         ch.ID,
		Name:                       ch.Name,
		Type:                       platform.ChannelType(ch.Type),
		Position:                   ch.Position,
		NSFW:                       ch.NSFW,
		RateLimitPerUser:           ch.RateLimitPerUser,
		Bitrate:                    ch.Bitrate,
		UserLimit:                  ch.UserLimit,
		DefaultAutoArchiveDuration: ch.DefaultAutoArchiveDuration,
		Overwrites:                 make([]platform.Overwrite, 0, len(ch.PermissionOverwrites)),
	}
	if ch.ParentID != nil {
		out.ParentID = *ch.ParentID
	}
	if ch.Topic != nil {
		out.Topic = *ch.Topic
	}
	if ch.RTCRegion != nil {
		out.RTCRegion = *ch.RTCRegion
	}
	for _, o := range ch.PermissionOverwrites {
		allow, err := parseBits(o.Allow)
		if err != nil {
			return platform.Channel{}, fmt.Errorf("overwrite %s: allow: %w", o.ID, err)
		}
		deny, err := parseBits(o.Deny)
		if err != nil {
			return platform.Channel{}, fmt.Errorf("overwrite %s: deny: %w", o.ID, err)
		}
		out.Overwrites = append(out.Overwrites, platform.Overwrite{
			ID:    o.ID,
			Type:  platform.OverwriteType(o.Type),
			Allow: allow,
			Deny:  deny,
		})
	}
	return out, nil
}

func parseBits(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	return strconv.ParseInt(n.String(), 10, 64)
}

type overwriteBody struct {
	ID    string `json:"id"`
	Type  int    `json:"type"`
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

type channelCreateBody struct {
	Name                       string          `json:"name"`
	Type                       int             `json:"type"`
	Position                   int             `json:"position"`
	ParentID                   string          `json:"parent_id,omitempty"`
	PermissionOverwrites       []overwriteBody `json:"permission_overwrites"`
	Topic                      *string         `json:"topic,omitempty"`
	NSFW                       *bool           `json:"nsfw,omitempty"`
	RateLimitPerUser           *int            `json:"rate_limit_per_user,omitempty"`
	Bitrate                    *int            `json:"bitrate,omitempty"`
	UserLimit                  *int            `json:"user_limit,omitempty"`
	RTCRegion                  *string         `json:"rtc_region,omitempty"`
	DefaultAutoArchiveDuration *int            `json:"default_auto_archive_duration,omitempty"`
}

func channelCreateFrom(ch platform.ChannelCreate) channelCreateBody {
	body := channelCreateBody{
		Name:                       ch.Name,
		Type:                       int(ch.Type),
		Position:                   ch.Position,
		ParentID:                   ch.ParentID,
		PermissionOverwrites:       make([]overwriteBody, 0, len(ch.Overwrites)),
		Topic:                      ch.Topic,
		NSFW:                       ch.NSFW,
		RateLimitPerUser:           ch.RateLimitPerUser,
		Bitrate:                    ch.Bitrate,
		UserLimit:                  ch.UserLimit,
		RTCRegion:                  ch.RTCRegion,
		DefaultAutoArchiveDuration: ch.DefaultAutoArchiveDuration,
	}
	for _, o := range ch.Overwrites {
		body.PermissionOverwrites = append(body.PermissionOverwrites, overwriteBody{
			ID:    o.ID,
			Type:  int(o.Type),
			Allow: strconv.FormatInt(o.Allow, 10),
			Deny:  strconv.FormatInt(o.Deny, 10),
		})
	}
	return body
}

type guildEditBody struct {
	Name                        string  `json:"name"`
	Description                 *string `json:"description,omitempty"`
	VerificationLevel           int     `json:"verification_level"`
	DefaultMessageNotifications int     `json:"default_message_notifications"`
	ExplicitContentFilter       int     `json:"explicit_content_filter"`
	AFKTimeout                  int     `json:"afk_timeout"`
	PreferredLocale             string  `json:"preferred_locale,omitempty"`
	Icon                        string  `json:"icon,omitempty"`
	Banner                      string  `json:"banner,omitempty"`
	Splash                      string  `json:"splash,omitempty"`
}

// guildEditFrom omits the description when it is empty and images that are not
// available, so the current values stay in place.
func guildEditFrom(u platform.GuildUpdate) guildEditBody {
	body := guildEditBody{
		Name:                        u.Name,
		VerificationLevel:           u.VerificationLevel,
		DefaultMessageNotifications: u.DefaultMessageNotifications,
		ExplicitContentFilter:       u.ExplicitContentFilter,
		AFKTimeout:                  u.AFKTimeout,
		PreferredLocale:             u.PreferredLocale,
		Icon:                        dataURI(u.Icon),
		Banner:                      dataURI(u.Banner),
		Splash:                      dataURI(u.Splash),
	}
	if u.Description != "" {
		body.Description = &u.Description
	}
	return body
}

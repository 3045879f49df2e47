package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/zapr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/vshn/guildsnap/platform"
	"github.com/vshn/guildsnap/platform/fake"
)

const guildID = "100"

func newSourceGuild() *fake.Platform {
	p := fake.New(guildID, "Source")
	p.GuildData.Description = "a test guild"
	p.GuildData.IconURL = "https://cdn.example/icons/100/abc.png"
	p.GuildData.AFKTimeout = 300
	p.GuildData.PreferredLocale = "en-US"
	p.GuildData.Features = []string{"COMMUNITY"}
	p.GuildData.MemberCount = 42
	p.RoleData = []platform.Role{
		{ID: "r-mod", Name: "Mod", Position: 2, Permissions: 8, Color: 0xff0000, Hoist: true},
		{ID: guildID, Name: "@everyone", Position: 0, Permissions: 1024},
		{ID: "r-member", Name: "Member", Position: 1, Permissions: 9223372036854775807},
	}
	p.ChannelData = []platform.Channel{
		{ID: "c-modchat", Name: "mod-chat", Type: platform.ChannelTypeText, Position: 1, ParentID: "c-staff", Topic: "secret",
			Overwrites: []platform.Overwrite{
				{ID: guildID, Type: platform.OverwriteTypeRole, Deny: 1024},
				{ID: "r-mod", Type: platform.OverwriteTypeRole, Allow: 1024},
				{ID: "u-alice", Type: platform.OverwriteTypeMember, Allow: 2048},
				{ID: "r-deleted", Type: platform.OverwriteTypeRole, Allow: 1},
			}},
		{ID: "c-staff", Name: "Staff", Type: platform.ChannelTypeCategory, Position: 0},
		{ID: "c-general", Name: "General", Type: platform.ChannelTypeText, Position: 0},
		{ID: "c-voice", Name: "Lounge", Type: platform.ChannelTypeVoice, Position: 2, Bitrate: 64000, UserLimit: 5},
		{ID: "c-news", Name: "news", Type: platform.ChannelTypeAnnouncement, Position: 3, DefaultAutoArchiveDuration: 1440},
	}
	p.EmojiData = []platform.Emoji{
		{ID: "e1", Name: "pog", URL: "https://cdn.example/emojis/e1.png", RoleIDs: []string{"r-mod", "r-gone"}},
		{ID: "e2", Name: "dance", URL: "https://cdn.example/emojis/e2.gif", Animated: true},
	}
	return p
}

func newCapturer(t *testing.T) *Capturer {
	clk := testingclock.NewFakePassiveClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return New(zapr.NewLogger(zaptest.NewLogger(t)), clk)
}

func TestCapture_Shape(t *testing.T) {
	source := newSourceGuild()
	s, err := newCapturer(t).Capture(context.Background(), source, guildID)
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", s.Metadata.BackupVersion)
	assert.Equal(t, guildID, s.Metadata.GuildID)
	assert.Equal(t, 42, s.Metadata.MemberCount)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), s.Metadata.Timestamp)
	assert.Equal(t, "a test guild", s.GuildSettings.Description)
	assert.Equal(t, 300, s.GuildSettings.AFKTimeout)

	require.Len(t, s.Roles, 2, "the everyone role must be excluded")
	require.Len(t, s.Channels, 5)
	for i := 1; i < len(s.Roles); i++ {
		assert.LessOrEqual(t, s.Roles[i-1].Position, s.Roles[i].Position)
	}
	for i := 1; i < len(s.Channels); i++ {
		assert.LessOrEqual(t, s.Channels[i-1].Position, s.Channels[i].Position)
	}
	for _, r := range s.Roles {
		assert.NotEqual(t, "@everyone", r.Name)
	}
}

func TestCapture_Roles(t *testing.T) {
	s, err := newCapturer(t).Capture(context.Background(), newSourceGuild(), guildID)
	require.NoError(t, err)

	assert.Equal(t, "Member", s.Roles[0].Name)
	assert.Equal(t, "9223372036854775807", string(s.Roles[0].Permissions))
	assert.Equal(t, "Mod", s.Roles[1].Name)
	assert.Equal(t, 0xff0000, s.Roles[1].Color)
	assert.True(t, s.Roles[1].Hoist)
}

func TestCapture_Channels(t *testing.T) {
	s, err := newCapturer(t).Capture(context.Background(), newSourceGuild(), guildID)
	require.NoError(t, err)

	byName := map[string]int{}
	for i, c := range s.Channels {
		byName[c.Name] = i
	}

	staff := s.Channels[byName["Staff"]]
	assert.True(t, staff.Category)
	assert.Nil(t, staff.Parent)

	modChat := s.Channels[byName["mod-chat"]]
	assert.Equal(t, "Staff", modChat.ParentName())
	require.NotNil(t, modChat.Topic)
	assert.Equal(t, "secret", *modChat.Topic)
	require.NotNil(t, modChat.NSFW)
	assert.Nil(t, modChat.Bitrate)

	require.Len(t, modChat.PermissionOverwrites, 4)
	assert.Equal(t, "@everyone", modChat.PermissionOverwrites[0].RoleName)
	assert.Equal(t, "1024", string(modChat.PermissionOverwrites[0].Deny))
	assert.Equal(t, "Mod", modChat.PermissionOverwrites[1].RoleName)
	assert.Equal(t, "r-mod", modChat.PermissionOverwrites[1].ID)
	assert.Equal(t, "u-alice", modChat.PermissionOverwrites[2].UserID)
	assert.Empty(t, modChat.PermissionOverwrites[2].RoleName)
	assert.Empty(t, modChat.PermissionOverwrites[3].RoleName)

	general := s.Channels[byName["General"]]
	assert.Nil(t, general.Parent)
	assert.Nil(t, general.Topic)

	voice := s.Channels[byName["Lounge"]]
	require.NotNil(t, voice.Bitrate)
	assert.Equal(t, 64000, *voice.Bitrate)
	require.NotNil(t, voice.UserLimit)
	assert.Equal(t, 5, *voice.UserLimit)
	assert.Nil(t, voice.RTCRegion)
	assert.Nil(t, voice.Topic)

	news := s.Channels[byName["news"]]
	assert.Equal(t, platform.ChannelTypeAnnouncement, news.Type)
	require.NotNil(t, news.DefaultAutoArchiveDuration)
	assert.Equal(t, 1440, *news.DefaultAutoArchiveDuration)
	assert.Nil(t, news.RateLimitPerUser)
}

func TestCapture_Emojis(t *testing.T) {
	s, err := newCapturer(t).Capture(context.Background(), newSourceGuild(), guildID)
	require.NoError(t, err)

	require.Len(t, s.Emojis, 2)
	assert.Equal(t, []string{"Mod"}, s.Emojis[0].Roles)
	assert.True(t, s.Emojis[1].Animated)
	assert.Equal(t, "https://cdn.example/emojis/e2.gif", s.Emojis[1].URL)
}

func TestCapture_DoesNotMutateSource(t *testing.T) {
	source := newSourceGuild()
	_, err := newCapturer(t).Capture(context.Background(), source, guildID)
	require.NoError(t, err)

	for _, c := range source.Calls {
		assert.Contains(t, []string{"Guild", "Roles", "Channels", "Emojis"}, c.Method)
	}
	assert.Equal(t, "mod-chat", source.ChannelData[0].Name, "source order must stay untouched")
}

func TestCapture_FailedReadIsFatal(t *testing.T) {
	for _, collection := range []string{"guild", "roles", "channels", "emojis"} {
		t.Run(collection, func(t *testing.T) {
			source := newSourceGuild()
			source.FailRead[collection] = errors.New("missing access")

			s, err := newCapturer(t).Capture(context.Background(), source, guildID)
			assert.Nil(t, s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "missing access")
		})
	}
}

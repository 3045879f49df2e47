package capture

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vshn/guildsnap/platform"
	"github.com/vshn/guildsnap/snapshot"
)

func TestNewSummary(t *testing.T) {
	snap := &snapshot.Snapshot{
		Metadata: snapshot.Metadata{GuildID: "42", GuildName: "Test", Timestamp: time.Unix(1704164645, 0).UTC()},
		Roles:    []snapshot.Role{{Name: "Mod"}, {Name: "Member"}},
		Channels: []snapshot.Channel{
			{Name: "Staff", Type: platform.ChannelTypeCategory, Category: true},
			{Name: "general"},
			{Name: "mod-chat"},
		},
		Emojis: []snapshot.Emoji{{Name: "pog"}},
	}

	s := NewSummary(snap, "42_1704164645000", 512)
	assert.Equal(t, 2, s.Roles)
	assert.Equal(t, 1, s.Categories)
	assert.Equal(t, 2, s.Channels)
	assert.Equal(t, 1, s.Emojis)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(s.ToJSON(), &decoded))
	assert.Equal(t, "42_1704164645000", decoded["snapshotId"])

	collectors := s.ToProm()
	require.Len(t, collectors, 3)
	assert.Equal(t, 4, testutil.CollectAndCount(collectors[0]))
	assert.Equal(t, float64(512), testutil.ToFloat64(collectors[1]))
	assert.Equal(t, float64(1704164645), testutil.ToFloat64(collectors[2]))
}

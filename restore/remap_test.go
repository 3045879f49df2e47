package restore

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vshn/guildsnap/platform"
	"github.com/vshn/guildsnap/snapshot"
)

func TestRemapper_SeededWithEveryone(t *testing.T) {
	m := NewRemapper("guild-1")
	id, ok := m.Role("@everyone")
	assert.True(t, ok)
	assert.Equal(t, "guild-1", id)
	assert.Equal(t, map[string]string{"@everyone": "guild-1"}, m.Roles())
	assert.Empty(t, m.Categories())
}

func TestRemapper_FirstMatchWins(t *testing.T) {
	m := NewRemapper("g")
	assert.True(t, m.MapRole("Mod", "1"))
	assert.False(t, m.MapRole("Mod", "2"))
	id, _ := m.Role("Mod")
	assert.Equal(t, "1", id)

	assert.True(t, m.MapCategory("Staff", "10"))
	assert.False(t, m.MapCategory("Staff", "11"))
	id, _ = m.Category("Staff")
	assert.Equal(t, "10", id)

	assert.False(t, m.MapRole("@everyone", "3"), "the seed must never be replaced")
}

func TestRemapper_TranslateOverwrites(t *testing.T) {
	m := NewRemapper("g")
	m.MapRole("Mod", "new-mod")

	tests := map[string]struct {
		given    []snapshot.Overwrite
		expected []platform.Overwrite
	}{
		"GivenRemappedRole_ThenUseNewID": {
			given: []snapshot.Overwrite{
				{ID: "old-mod", Type: platform.OverwriteTypeRole, RoleName: "Mod", Allow: "1024", Deny: "2048"},
			},
			expected: []platform.Overwrite{
				{ID: "new-mod", Type: platform.OverwriteTypeRole, Allow: 1024, Deny: 2048},
			},
		},
		"GivenEveryoneRole_ThenUseTargetGuildID": {
			given: []snapshot.Overwrite{
				{ID: "old-guild", Type: platform.OverwriteTypeRole, RoleName: "@everyone", Deny: "1024"},
			},
			expected: []platform.Overwrite{
				{ID: "g", Type: platform.OverwriteTypeRole, Deny: 1024},
			},
		},
		"GivenMissingRole_ThenDropOverwrite": {
			given: []snapshot.Overwrite{
				{ID: "old-admin", Type: platform.OverwriteTypeRole, RoleName: "Admin", Allow: "8"},
			},
			expected: []platform.Overwrite{},
		},
		"GivenUnresolvedRoleName_ThenDropOverwrite": {
			given: []snapshot.Overwrite{
				{ID: "old", Type: platform.OverwriteTypeRole, Allow: "8"},
			},
			expected: []platform.Overwrite{},
		},
		"GivenMember_ThenKeepOriginalID": {
			given: []snapshot.Overwrite{
				{ID: "u-1", UserID: "u-1", Type: platform.OverwriteTypeMember, Allow: "9223372036854775807"},
			},
			expected: []platform.Overwrite{
				{ID: "u-1", Type: platform.OverwriteTypeMember, Allow: 9223372036854775807},
			},
		},
		"GivenMixed_ThenKeepOrderAndDropOnlyMissing": {
			given: []snapshot.Overwrite{
				{ID: "x", Type: platform.OverwriteTypeRole, RoleName: "Gone", Allow: "1"},
				{ID: "u-2", Type: platform.OverwriteTypeMember, Allow: "2"},
				{ID: "old-mod", Type: platform.OverwriteTypeRole, RoleName: "Mod", Allow: "3"},
			},
			expected: []platform.Overwrite{
				{ID: "u-2", Type: platform.OverwriteTypeMember, Allow: 2},
				{ID: "new-mod", Type: platform.OverwriteTypeRole, Allow: 3},
			},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.TranslateOverwrites(tt.given))
		})
	}
}

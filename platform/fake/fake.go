// Package fake provides an in-memory platform.API for tests.
package fake

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/vshn/guildsnap/platform"
)

var _ platform.API = &Platform{}

// Call records a single API invocation.
type Call struct {
	Method string
	Name   string
	At     time.Time
}

// Platform keeps one guild in memory. Fail* maps inject errors keyed by entity name
// (or ID for deletions).
type Platform struct {
	mu sync.Mutex

	GuildData    platform.Guild
	RoleData     []platform.Role
	ChannelData  []platform.Channel
	EmojiData    []platform.Emoji
	HighestRole  int
	LastUpdate   *platform.GuildUpdate
	LastReorder  []platform.RolePosition
	CreatedChans []platform.ChannelCreate

	FailRead          map[string]error
	FailDelete        map[string]error
	FailCreate        map[string]error
	FailUpdate        error
	FailReorder       error
	FailHighestLookup error

	Calls []Call
	Clock clock.PassiveClock

	nextID int
}

// New returns a guild with only the everyone role.
func New(guildID, name string) *Platform {
	return &Platform{
		GuildData:   platform.Guild{ID: guildID, Name: name},
		RoleData:    []platform.Role{{ID: guildID, Name: "@everyone", Position: 0}},
		HighestRole: 1 << 20,
		FailRead:    map[string]error{},
		FailDelete:  map[string]error{},
		FailCreate:  map[string]error{},
		nextID:      1000,
	}
}

func (p *Platform) record(method, name string) {
	c := Call{Method: method, Name: name}
	if p.Clock != nil {
		c.At = p.Clock.Now()
	}
	p.Calls = append(p.Calls, c)
}

func (p *Platform) newID() string {
	p.nextID++
	return strconv.Itoa(p.nextID)
}

// CallsTo returns the recorded calls of one method in order.
func (p *Platform) CallsTo(method string) []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Call
	for _, c := range p.Calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// RoleByName returns the first live role with the name.
func (p *Platform) RoleByName(name string) (platform.Role, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.RoleData {
		if r.Name == name {
			return r, true
		}
	}
	return platform.Role{}, false
}

// ChannelByName returns the first live channel with the name.
func (p *Platform) ChannelByName(name string) (platform.Channel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.ChannelData {
		if c.Name == name {
			return c, true
		}
	}
	return platform.Channel{}, false
}

func (p *Platform) Guild(_ context.Context, guildID string) (platform.Guild, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("Guild", guildID)
	if err := p.FailRead["guild"]; err != nil {
		return platform.Guild{}, err
	}
	return p.GuildData, nil
}

func (p *Platform) Roles(_ context.Context, _ string) ([]platform.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("Roles", "")
	if err := p.FailRead["roles"]; err != nil {
		return nil, err
	}
	return append([]platform.Role(nil), p.RoleData...), nil
}

func (p *Platform) Channels(_ context.Context, _ string) ([]platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("Channels", "")
	if err := p.FailRead["channels"]; err != nil {
		return nil, err
	}
	return append([]platform.Channel(nil), p.ChannelData...), nil
}

func (p *Platform) Emojis(_ context.Context, _ string) ([]platform.Emoji, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("Emojis", "")
	if err := p.FailRead["emojis"]; err != nil {
		return nil, err
	}
	return append([]platform.Emoji(nil), p.EmojiData...), nil
}

func (p *Platform) DeleteChannel(_ context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("DeleteChannel", channelID)
	if err := p.FailDelete[channelID]; err != nil {
		return err
	}
	for i, c := range p.ChannelData {
		if c.ID == channelID {
			p.ChannelData = append(p.ChannelData[:i], p.ChannelData[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("unknown channel %s", channelID)
}

func (p *Platform) DeleteRole(_ context.Context, _, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("DeleteRole", roleID)
	if err := p.FailDelete[roleID]; err != nil {
		return err
	}
	for i, r := range p.RoleData {
		if r.ID == roleID {
			p.RoleData = append(p.RoleData[:i], p.RoleData[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("unknown role %s", roleID)
}

func (p *Platform) UpdateGuild(_ context.Context, _ string, update platform.GuildUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("UpdateGuild", update.Name)
	if p.FailUpdate != nil {
		return p.FailUpdate
	}
	p.LastUpdate = &update
	p.GuildData.Name = update.Name
	p.GuildData.Description = update.Description
	return nil
}

func (p *Platform) CreateRole(_ context.Context, _ string, role platform.RoleCreate) (platform.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("CreateRole", role.Name)
	if err := p.FailCreate[role.Name]; err != nil {
		return platform.Role{}, err
	}
	created := platform.Role{
		ID:           p.newID(),
		Name:         role.Name,
		Color:        role.Color,
		Hoist:        role.Hoist,
		Mentionable:  role.Mentionable,
		Permissions:  role.Permissions,
		UnicodeEmoji: role.UnicodeEmoji,
		Position:     1,
	}
	p.RoleData = append(p.RoleData, created)
	return created, nil
}

func (p *Platform) ReorderRoles(_ context.Context, _ string, positions []platform.RolePosition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("ReorderRoles", "")
	if p.FailReorder != nil {
		return p.FailReorder
	}
	p.LastReorder = append([]platform.RolePosition(nil), positions...)
	for _, pos := range positions {
		for i := range p.RoleData {
			if p.RoleData[i].ID == pos.ID {
				p.RoleData[i].Position = pos.Position
			}
		}
	}
	sort.SliceStable(p.RoleData, func(i, j int) bool { return p.RoleData[i].Position < p.RoleData[j].Position })
	return nil
}

func (p *Platform) CreateChannel(_ context.Context, _ string, ch platform.ChannelCreate) (platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("CreateChannel", ch.Name)
	if err := p.FailCreate[ch.Name]; err != nil {
		return platform.Channel{}, err
	}
	p.CreatedChans = append(p.CreatedChans, ch)
	created := platform.Channel{
		ID:         p.newID(),
		Name:       ch.Name,
		Type:       ch.Type,
		Position:   ch.Position,
		ParentID:   ch.ParentID,
		Overwrites: ch.Overwrites,
	}
	if ch.Topic != nil {
		created.Topic = *ch.Topic
	}
	p.ChannelData = append(p.ChannelData, created)
	return created, nil
}

func (p *Platform) CreateEmoji(_ context.Context, _ string, emoji platform.EmojiCreate) (platform.Emoji, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("CreateEmoji", emoji.Name)
	if err := p.FailCreate[emoji.Name]; err != nil {
		return platform.Emoji{}, err
	}
	created := platform.Emoji{ID: p.newID(), Name: emoji.Name}
	p.EmojiData = append(p.EmojiData, created)
	return created, nil
}

func (p *Platform) SelfHighestRolePosition(_ context.Context, _ string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("SelfHighestRolePosition", "")
	if p.FailHighestLookup != nil {
		return 0, p.FailHighestLookup
	}
	return p.HighestRole, nil
}

package restore

import (
	"github.com/vshn/guildsnap/platform"
	"github.com/vshn/guildsnap/snapshot"
)

// Remapper maps snapshot-time names to the IDs of entities created during one
// restore run. The first entity recorded under a name wins; later entities with
// the same name are created but never remapped.
type Remapper struct {
	roles      map[string]string
	categories map[string]string
}

// NewRemapper returns a Remapper seeded with the target's everyone role.
func NewRemapper(everyoneRoleID string) *Remapper {
	return &Remapper{
		roles:      map[string]string{snapshot.EveryoneRoleName: everyoneRoleID},
		categories: map[string]string{},
	}
}

// MapRole records the role and reports whether the name was still free.
func (m *Remapper) MapRole(name, id string) bool {
	return put(m.roles, name, id)
}

// Role returns the new ID for the role name.
func (m *Remapper) Role(name string) (string, bool) {
	id, ok := m.roles[name]
	return id, ok
}

// MapCategory records the category and reports whether the name was still free.
func (m *Remapper) MapCategory(name, id string) bool {
	return put(m.categories, name, id)
}

// Category returns the new ID for the category name.
func (m *Remapper) Category(name string) (string, bool) {
	id, ok := m.categories[name]
	return id, ok
}

// Roles returns a copy of the role mapping.
func (m *Remapper) Roles() map[string]string {
	return copyMap(m.roles)
}

// Categories returns a copy of the category mapping.
func (m *Remapper) Categories() map[string]string {
	return copyMap(m.categories)
}

// TranslateOverwrites converts captured overwrites into creation-time overwrites.
// Role overwrites whose role name is not remapped are dropped; member overwrites
// keep their original ID.
func (m *Remapper) TranslateOverwrites(overwrites []snapshot.Overwrite) []platform.Overwrite {
	out := make([]platform.Overwrite, 0, len(overwrites))
	for _, o := range overwrites {
		allow, err := o.Allow.Int64()
		if err != nil {
			continue
		}
		deny, err := o.Deny.Int64()
		if err != nil {
			continue
		}
		switch o.Type {
		case platform.OverwriteTypeRole:
			if o.RoleName == "" {
				continue
			}
			id, ok := m.Role(o.RoleName)
			if !ok {
				continue
			}
			out = append(out, platform.Overwrite{ID: id, Type: platform.OverwriteTypeRole, Allow: allow, Deny: deny})
		case platform.OverwriteTypeMember:
			id := o.UserID
			if id == "" {
				id = o.ID
			}
			out = append(out, platform.Overwrite{ID: id, Type: platform.OverwriteTypeMember, Allow: allow, Deny: deny})
		}
	}
	return out
}

func put(m map[string]string, name, id string) bool {
	if _, exists := m[name]; exists {
		return false
	}
	m[name] = id
	return true
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

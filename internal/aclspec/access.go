package aclspec

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/aclstore/internal/acl"
	"gopkg.in/yaml.v3"
)

var empty = []string{}

// Access is a shorthand for granting entries. Each set holds sids in ParseSid
// syntax.
type Access struct {
	Admin mapset.Set[string] `yaml:"admin"`
	Read  mapset.Set[string] `yaml:"read"`
	Write mapset.Set[string] `yaml:"write"`
}

// NewAccess creates a new Access object with the specified admin, write, and read sids.
func NewAccess(admin []string, write []string, read []string) *Access {
	return &Access{
		Admin: mapset.NewSet(admin...),
		Write: mapset.NewSet(write...),
		Read:  mapset.NewSet(read...),
	}
}

// PrivateAccess returns an Access object with no sids.
func PrivateAccess() *Access {
	return NewAccess(empty, empty, empty)
}

// SharedReadAccess returns an Access object with read access for the specified sids.
func SharedReadAccess(sids ...string) *Access {
	return NewAccess(empty, empty, sids)
}

// SharedReadWriteAccess returns an Access object with write access for the specified sids.
func SharedReadWriteAccess(sids ...string) *Access {
	return NewAccess(empty, sids, empty)
}

// Entries expands the sets into granting entries: administer first, then write,
// then read, each ordered by sid.
func (a *Access) Entries() ([]acl.Ace, error) {
	var entries []acl.Ace
	for _, group := range []struct {
		sids mapset.Set[string]
		perm acl.Permission
	}{
		{a.Admin, acl.PermissionAdminister},
		{a.Write, acl.PermissionWrite},
		{a.Read, acl.PermissionRead},
	} {
		if group.sids == nil {
			continue
		}
		names := group.sids.ToSlice()
		slices.Sort(names)
		for _, name := range names {
			sid, err := ParseSid(name)
			if err != nil {
				return nil, err
			}
			entries = append(entries, acl.NewAce(sid, group.perm, true))
		}
	}
	return entries, nil
}

func (a *Access) UnmarshalYAML(value *yaml.Node) error {
	var m map[string][]string
	if err := value.Decode(&m); err != nil {
		return err
	}

	a.Admin = mapset.NewSet[string]()
	a.Read = mapset.NewSet[string]()
	a.Write = mapset.NewSet[string]()

	if admin, ok := m["admin"]; ok {
		a.Admin.Append(admin...)
	}
	if read, ok := m["read"]; ok {
		a.Read.Append(read...)
	}
	if write, ok := m["write"]; ok {
		a.Write.Append(write...)
	}

	return nil
}

func (a Access) MarshalYAML() (interface{}, error) {
	m := make(map[string][]string)
	for key, set := range map[string]mapset.Set[string]{"admin": a.Admin, "read": a.Read, "write": a.Write} {
		if set == nil || set.Cardinality() == 0 {
			continue
		}
		names := set.ToSlice()
		slices.Sort(names)
		m[key] = names
	}
	return m, nil
}

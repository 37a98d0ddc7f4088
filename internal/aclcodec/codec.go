// Package aclcodec maps Acl records onto store rows.
//
// A record is one row keyed by the encoded object identifier. The header family
// holds the identifier's type name, the secured type and the owner; the entries
// family holds one cell per entry, qualified by the entry's zero-padded position.
package aclcodec

import (
	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/idcodec"
	"github.com/openmined/aclstore/internal/store"
)

const (
	// FamilyHeader holds the record header.
	FamilyHeader = "acl"
	// FamilyEntries holds one cell per entry.
	FamilyEntries = "aces"

	QualifierIDType = "idType"
	QualifierType   = "type"
	QualifierOwner  = "owner"

	// separator between the fields of the owner and entry values
	separator = ":"
)

// Families lists the column families a record occupies.
var Families = []string{FamilyHeader, FamilyEntries}

// Codec encodes and decodes records. It is safe for concurrent use as long as
// its registry and permission factory are.
type Codec struct {
	registry *idcodec.Registry
	perms    acl.PermissionFactory
}

// New returns a codec. Nil arguments are replaced by a registry with only the
// built-in identifier codecs and the default permission factory.
func New(registry *idcodec.Registry, perms acl.PermissionFactory) *Codec {
	if registry == nil {
		registry = idcodec.NewRegistry()
	}
	if perms == nil {
		perms = acl.NewPermissionFactory()
	}
	return &Codec{registry: registry, perms: perms}
}

// Registry returns the identifier codec registry.
func (c *Codec) Registry() *idcodec.Registry {
	return c.registry
}

// EncodeRow returns the row key and every cell of a record.
func (c *Codec) EncodeRow(a *acl.Acl) ([]byte, []store.Cell, error) {
	key, err := c.EncodeKey(a.Identity().ID)
	if err != nil {
		return nil, nil, err
	}

	header, err := c.EncodeHeader(a)
	if err != nil {
		return nil, nil, err
	}

	entries, err := c.EncodeEntries(a.Entries())
	if err != nil {
		return nil, nil, err
	}

	return key, append(header, entries...), nil
}

// DecodeRow rebuilds a record from a stored row. The record is scoped to sids; no
// sids means it is fully loaded.
func (c *Codec) DecodeRow(row store.Row, sids []acl.Sid) (*acl.Acl, error) {
	identity, owner, err := c.DecodeHeader(row.Key, row.Family(FamilyHeader))
	if err != nil {
		return nil, err
	}

	entries, err := c.DecodeEntries(row.Family(FamilyEntries))
	if err != nil {
		return nil, err
	}

	return acl.New(identity, owner, entries, sids), nil
}

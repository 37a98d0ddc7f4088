package aclcodec

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/store"
)

// EncodeKey converts an identifier to its row key. Byte sequences are used as is.
func (c *Codec) EncodeKey(id any) ([]byte, error) {
	if id == nil {
		return nil, fmt.Errorf("%w: nil identifier", acl.ErrNullIdentifier)
	}
	if b, ok := id.([]byte); ok {
		id = acl.Bytes(b)
	}
	if !reflect.TypeOf(id).Comparable() {
		return nil, fmt.Errorf("%w: %T", acl.ErrNotSerializable, id)
	}

	entry, err := c.registry.ResolveValue(id)
	if err != nil {
		return nil, err
	}

	key, err := entry.Encode(id)
	if err != nil {
		return nil, fmt.Errorf("encode %T identifier: %w", id, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: %T %v", acl.ErrNullIdentifier, id, id)
	}
	return key, nil
}

// EncodeHeader returns the header cells of a record.
func (c *Codec) EncodeHeader(a *acl.Acl) ([]store.Cell, error) {
	identity := a.Identity()
	if identity.ID == nil {
		return nil, fmt.Errorf("%w: nil identifier", acl.ErrNullIdentifier)
	}

	entry, err := c.registry.ResolveValue(identity.ID)
	if err != nil {
		return nil, err
	}

	owner, err := encodeSid(a.Owner())
	if err != nil {
		return nil, fmt.Errorf("owner of %s: %w", identity, err)
	}

	return []store.Cell{
		{Family: FamilyHeader, Qualifier: []byte(QualifierIDType), Value: []byte(entry.Name)},
		{Family: FamilyHeader, Qualifier: []byte(QualifierType), Value: []byte(identity.Type)},
		{Family: FamilyHeader, Qualifier: []byte(QualifierOwner), Value: []byte(owner)},
	}, nil
}

// DecodeHeader rebuilds the identity and owner of the record stored at key.
func (c *Codec) DecodeHeader(key []byte, cells []store.Cell) (acl.ObjectIdentity, acl.Sid, error) {
	row := store.NewRow(key, cells)

	idType, ok := row.Value(FamilyHeader, []byte(QualifierIDType))
	if !ok {
		return acl.ObjectIdentity{}, acl.Sid{}, fmt.Errorf("%w: row %q has no %s", acl.ErrMalformedEntry, key, QualifierIDType)
	}
	typ, ok := row.Value(FamilyHeader, []byte(QualifierType))
	if !ok {
		return acl.ObjectIdentity{}, acl.Sid{}, fmt.Errorf("%w: row %q has no %s", acl.ErrMalformedEntry, key, QualifierType)
	}
	ownerValue, ok := row.Value(FamilyHeader, []byte(QualifierOwner))
	if !ok {
		return acl.ObjectIdentity{}, acl.Sid{}, fmt.Errorf("%w: row %q has no %s", acl.ErrMalformedEntry, key, QualifierOwner)
	}

	entry, err := c.registry.ResolveName(string(idType))
	if err != nil {
		return acl.ObjectIdentity{}, acl.Sid{}, err
	}

	var id any
	if entry.IsRaw() {
		id = acl.Bytes(key)
	} else {
		id, err = entry.Decode(key)
		if err != nil {
			return acl.ObjectIdentity{}, acl.Sid{}, fmt.Errorf("decode %s identifier: %w", entry.Name, err)
		}
		if isNil(id) {
			return acl.ObjectIdentity{}, acl.Sid{}, fmt.Errorf("%w: codec %s decoded %q to nil", acl.ErrNullIdentifier, entry.Name, key)
		}
		if !reflect.TypeOf(id).Comparable() {
			return acl.ObjectIdentity{}, acl.Sid{}, fmt.Errorf("%w: codec %s decoded %T", acl.ErrNotSerializable, entry.Name, id)
		}
	}

	owner, err := decodeSid(string(ownerValue))
	if err != nil {
		return acl.ObjectIdentity{}, acl.Sid{}, fmt.Errorf("owner of row %q: %w", key, err)
	}

	return acl.NewObjectIdentity(string(typ), id), owner, nil
}

// encodeSid formats a sid as "authority:isPrincipal".
func encodeSid(sid acl.Sid) (string, error) {
	if strings.Contains(sid.Authority, separator) {
		return "", fmt.Errorf("%w: authority %q contains %q", acl.ErrMalformedEntry, sid.Authority, separator)
	}
	return sid.Authority + separator + strconv.FormatBool(sid.Principal), nil
}

func decodeSid(s string) (acl.Sid, error) {
	parts := strings.Split(s, separator)
	if len(parts) != 2 {
		return acl.Sid{}, fmt.Errorf("%w: sid %q", acl.ErrMalformedEntry, s)
	}
	return parseSid(parts[0], parts[1])
}

func parseSid(authority, principal string) (acl.Sid, error) {
	isPrincipal, err := strconv.ParseBool(principal)
	if err != nil {
		return acl.Sid{}, fmt.Errorf("%w: principal flag %q", acl.ErrMalformedEntry, principal)
	}
	return acl.Sid{Authority: authority, Principal: isPrincipal}, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

package acl

import (
	"fmt"
	"reflect"
)

// Bytes is a raw byte-sequence identifier. It is used verbatim as the row key and
// needs no identifier codec. Unlike []byte it is comparable, so identities holding
// raw identifiers can still be used as map keys.
type Bytes string

// ObjectIdentity names a secured domain object: the name of its type plus an
// identifier value. The identifier value alone must be globally unique, because
// only the identifier is used to address the stored record.
type ObjectIdentity struct {
	Type string
	ID   any
}

// NewObjectIdentity returns the identity of an object of the given type. A []byte
// identifier is copied into Bytes.
func NewObjectIdentity(typ string, id any) ObjectIdentity {
	return ObjectIdentity{Type: typ, ID: normalizeID(id)}
}

// Normalize returns the identity with a []byte identifier converted to Bytes.
func (o ObjectIdentity) Normalize() ObjectIdentity {
	o.ID = normalizeID(o.ID)
	return o
}

// Comparable reports whether the identity can be used as a map key.
func (o ObjectIdentity) Comparable() bool {
	if o.ID == nil {
		return false
	}
	return reflect.TypeOf(o.ID).Comparable()
}

func (o ObjectIdentity) String() string {
	return fmt.Sprintf("%s[%v]", o.Type, o.ID)
}

func normalizeID(id any) any {
	if b, ok := id.([]byte); ok {
		return Bytes(b)
	}
	return id
}

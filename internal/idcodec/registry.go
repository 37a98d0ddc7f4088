// Package idcodec converts object identifiers to and from the bytes used as row keys.
//
// Codecs are registered explicitly per Go type on a Registry, which is created once
// and handed to whoever encodes or decodes records. Resolution is by exact runtime
// type: a codec registered for a named type does not serve its underlying type and
// vice versa. Raw byte sequences (acl.Bytes and []byte) never need a codec.
package idcodec

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/openmined/aclstore/internal/acl"
)

// RawTypeName is the persisted type name of raw byte-sequence identifiers.
const RawTypeName = "bytes"

var (
	bytesType    = reflect.TypeOf([]byte(nil))
	rawBytesType = reflect.TypeOf(acl.Bytes(""))
)

// Codec converts identifiers of type T to bytes and back. ToBytes must be lossless:
// FromBytes(ToBytes(v)) == v for every v.
type Codec[T comparable] interface {
	ToBytes(id T) ([]byte, error)
	FromBytes(b []byte) (T, error)
}

// Entry is a registered codec with its type erased.
type Entry struct {
	Name   string
	Type   reflect.Type
	encode func(any) ([]byte, error)
	decode func([]byte) (any, error)
}

// Encode converts id to bytes. id must be of the entry's exact type.
func (e *Entry) Encode(id any) ([]byte, error) {
	return e.encode(id)
}

// Decode converts b back to an identifier of the entry's type.
func (e *Entry) Decode(b []byte) (any, error) {
	return e.decode(b)
}

// IsRaw reports whether the entry is the passthrough for raw byte sequences.
func (e *Entry) IsRaw() bool {
	return e.Name == RawTypeName
}

var rawEntry = &Entry{
	Name: RawTypeName,
	Type: rawBytesType,
	encode: func(id any) ([]byte, error) {
		switch v := id.(type) {
		case acl.Bytes:
			return []byte(v), nil
		case []byte:
			return v, nil
		}
		return nil, fmt.Errorf("%T is not a byte sequence", id)
	},
	decode: func(b []byte) (any, error) {
		return acl.Bytes(b), nil
	},
}

// Registry maps identifier types to codecs.
type Registry struct {
	byType map[reflect.Type]*Entry
	byName map[string]*Entry
	mu     sync.RWMutex
}

// NewRegistry returns a registry holding the built-in codecs for string, int32 and
// int64 identifiers.
func NewRegistry() *Registry {
	r := &Registry{
		byType: make(map[reflect.Type]*Entry),
		byName: make(map[string]*Entry),
	}
	registerBuiltins(r)
	return r
}

// Register binds codec to the identifier type T under name, which is persisted with
// every record and must therefore stay stable. An empty name defaults to TypeName.
// Registering a type again replaces its codec, including a built-in one.
func Register[T comparable](r *Registry, name string, codec Codec[T]) error {
	t := reflect.TypeFor[T]()
	if isRawType(t) {
		return fmt.Errorf("%s is a raw byte sequence and needs no codec", t)
	}
	if name == "" {
		name = TypeName(t)
	}
	if name == RawTypeName {
		return fmt.Errorf("type name %q is reserved", RawTypeName)
	}

	entry := &Entry{
		Name: name,
		Type: t,
		encode: func(id any) ([]byte, error) {
			v, ok := id.(T)
			if !ok {
				return nil, fmt.Errorf("codec %q handles %s, got %T", name, t, id)
			}
			return codec.ToBytes(v)
		},
		decode: func(b []byte) (any, error) {
			return codec.FromBytes(b)
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if other, ok := r.byName[name]; ok && other.Type != t {
		return fmt.Errorf("type name %q already registered for %s", name, other.Type)
	}
	if old, ok := r.byType[t]; ok {
		delete(r.byName, old.Name)
	}
	r.byType[t] = entry
	r.byName[name] = entry
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister[T comparable](r *Registry, name string, codec Codec[T]) {
	if err := Register(r, name, codec); err != nil {
		panic(err)
	}
}

// Resolve returns the codec for the exact type t. Raw byte sequences resolve to a
// passthrough entry.
func (r *Registry) Resolve(t reflect.Type) (*Entry, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil type", acl.ErrConverterNotFound)
	}
	if isRawType(t) {
		return rawEntry, nil
	}

	r.mu.RLock()
	entry, ok := r.byType[t]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", acl.ErrConverterNotFound, t)
	}
	return entry, nil
}

// ResolveValue returns the codec for the dynamic type of id.
func (r *Registry) ResolveValue(id any) (*Entry, error) {
	return r.Resolve(reflect.TypeOf(id))
}

// ResolveName returns the codec registered under a persisted type name.
func (r *Registry) ResolveName(name string) (*Entry, error) {
	if name == RawTypeName {
		return rawEntry, nil
	}

	r.mu.RLock()
	entry, ok := r.byName[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: type name %q", acl.ErrConverterNotFound, name)
	}
	return entry, nil
}

// TypeName is the default persisted name of t: "pkgpath.Name" for named types and
// the type literal otherwise.
func TypeName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func isRawType(t reflect.Type) bool {
	return t == bytesType || t == rawBytesType
}

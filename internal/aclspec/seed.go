package aclspec

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/idcodec"
	"gopkg.in/yaml.v3"
)

// PermissionParser resolves permission names such as "read+write".
type PermissionParser interface {
	ParsePermission(s string) (acl.Permission, error)
}

// Entry is an explicit entry, kept in file order after the Access entries.
type Entry struct {
	Sid        string `yaml:"sid"`
	Permission string `yaml:"permission"`
	Granting   *bool  `yaml:"granting,omitempty"` // defaults to true
}

// Seed declares one record. ID is parsed according to IDType, which is one of
// "string" (the default), "int32", "int64" or "bytes" (hex encoded).
type Seed struct {
	Type    string   `yaml:"type"`
	ID      string   `yaml:"id"`
	IDType  string   `yaml:"idType,omitempty"`
	Owner   string   `yaml:"owner"`
	Access  *Access  `yaml:"access,omitempty"`
	Entries []*Entry `yaml:"entries,omitempty"`
}

// SeedFile is a list of records. Path is where it was loaded from.
type SeedFile struct {
	ACLs []*Seed `yaml:"acls"`
	Path string  `yaml:"-"`
}

// Identity returns the object identity the seed declares.
func (s *Seed) Identity() (acl.ObjectIdentity, error) {
	var id any
	switch s.IDType {
	case "", "string":
		id = s.ID
	case "int32":
		v, err := strconv.ParseInt(s.ID, 10, 32)
		if err != nil {
			return acl.ObjectIdentity{}, fmt.Errorf("id %q is not an int32", s.ID)
		}
		id = int32(v)
	case "int64":
		v, err := strconv.ParseInt(s.ID, 10, 64)
		if err != nil {
			return acl.ObjectIdentity{}, fmt.Errorf("id %q is not an int64", s.ID)
		}
		id = v
	case idcodec.RawTypeName:
		v, err := hex.DecodeString(s.ID)
		if err != nil {
			return acl.ObjectIdentity{}, fmt.Errorf("id %q is not hex", s.ID)
		}
		id = v
	default:
		return acl.ObjectIdentity{}, fmt.Errorf("unsupported id type %q", s.IDType)
	}
	return acl.NewObjectIdentity(s.Type, id), nil
}

// Record builds the fully loaded record the seed declares.
func (s *Seed) Record(perms PermissionParser) (*acl.Acl, error) {
	oid, err := s.Identity()
	if err != nil {
		return nil, err
	}

	owner, err := ParseSid(s.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}

	var entries []acl.Ace
	if s.Access != nil {
		if entries, err = s.Access.Entries(); err != nil {
			return nil, fmt.Errorf("access: %w", err)
		}
	}

	for i, e := range s.Entries {
		sid, err := ParseSid(e.Sid)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		perm, err := perms.ParsePermission(e.Permission)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		granting := e.Granting == nil || *e.Granting
		entries = append(entries, acl.NewAce(sid, perm, granting))
	}

	return acl.New(oid, owner, entries, nil), nil
}

// NewSeed describes an existing record.
func NewSeed(a *acl.Acl) (*Seed, error) {
	oid := a.Identity()
	seed := &Seed{Type: oid.Type, Owner: FormatSid(a.Owner())}

	switch id := oid.ID.(type) {
	case string:
		seed.ID = id
	case int32:
		seed.ID, seed.IDType = strconv.FormatInt(int64(id), 10), "int32"
	case int64:
		seed.ID, seed.IDType = strconv.FormatInt(id, 10), "int64"
	case acl.Bytes:
		seed.ID, seed.IDType = hex.EncodeToString([]byte(id)), idcodec.RawTypeName
	default:
		return nil, fmt.Errorf("identifier %T cannot be written to a seed file", oid.ID)
	}

	for _, ace := range a.Entries() {
		granting := ace.Granting
		seed.Entries = append(seed.Entries, &Entry{
			Sid:        FormatSid(ace.Sid),
			Permission: strconv.FormatUint(uint64(ace.Permission.Mask()), 10),
			Granting:   &granting,
		})
	}
	return seed, nil
}

// LoadFromFile loads a SeedFile from the specified file path
func LoadFromFile(path string) (*SeedFile, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	return LoadFromReader(path, fd)
}

// LoadFromReader parses a SeedFile from reader. path is only recorded.
func LoadFromReader(path string, reader io.Reader) (*SeedFile, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var file SeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	file.Path = path
	return validate(&file)
}

func (f *SeedFile) Save() error {
	file, err := os.Create(f.Path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", f.Path, err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)

	if err := encoder.Encode(f); err != nil {
		return fmt.Errorf("failed to marshal SeedFile to YAML: %w", err)
	}

	return encoder.Close()
}

func validate(file *SeedFile) (*SeedFile, error) {
	seen := make(map[any]int)
	for i, seed := range file.ACLs {
		if seed == nil {
			return nil, fmt.Errorf("acl %d is empty", i)
		}
		if seed.Type == "" {
			return nil, fmt.Errorf("acl %d: type cannot be empty", i)
		}
		if seed.ID == "" {
			return nil, fmt.Errorf("acl %d: id cannot be empty", i)
		}
		if seed.Owner == "" {
			return nil, fmt.Errorf("acl %d: owner cannot be empty", i)
		}
		oid, err := seed.Identity()
		if err != nil {
			return nil, fmt.Errorf("acl %d: %w", i, err)
		}

		// records are addressed by the parsed identifier alone, so "01" and
		// "1" collide as int32 ids and "0a" and "0A" collide as bytes ids
		if prev, ok := seen[oid.ID]; ok {
			return nil, fmt.Errorf("acl %d: id %q already declared by acl %d", i, seed.ID, prev)
		}
		seen[oid.ID] = i

		for j, e := range seed.Entries {
			if e == nil || e.Sid == "" || e.Permission == "" {
				return nil, fmt.Errorf("acl %d: entry %d needs a sid and a permission", i, j)
			}
		}
	}
	return file, nil
}

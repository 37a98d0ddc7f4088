package acl

import (
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

// Acl is the access control list of one secured object: an owner plus an ordered
// list of entries.
//
// An Acl may be loaded for a subset of Sids only. Entries are always complete, but
// permission checks against Sids that were not loaded must fail fast; use
// IsSidLoaded before evaluating entries. Inheritance is not supported.
//
// An Acl returned by the repository may be shared with the cache, so all access is
// synchronized.
type Acl struct {
	identity ObjectIdentity
	owner    Sid
	entries  []Ace
	loaded   mapset.Set[Sid] // nil means all sids were loaded
	mu       sync.RWMutex
}

// New creates an Acl. A nil or empty loaded list marks the Acl as fully loaded.
func New(identity ObjectIdentity, owner Sid, entries []Ace, loaded []Sid) *Acl {
	a := &Acl{
		identity: identity.Normalize(),
		owner:    owner,
		entries:  append([]Ace(nil), entries...),
	}
	if len(loaded) > 0 {
		a.loaded = mapset.NewThreadUnsafeSet(loaded...)
	}
	return a
}

// Identity returns the identity of the secured object. It never changes.
func (a *Acl) Identity() ObjectIdentity {
	return a.identity
}

// Owner returns the current owner.
func (a *Acl) Owner() Sid {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.owner
}

// SetOwner changes the owner.
func (a *Acl) SetOwner(owner Sid) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.owner = owner
}

// Entries returns a copy of the entries in order.
func (a *Acl) Entries() []Ace {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return append([]Ace(nil), a.entries...)
}

// Len returns the number of entries.
func (a *Acl) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.entries)
}

// InsertAce inserts a new entry at index, shifting later entries down. index may
// be equal to Len() to append.
func (a *Acl) InsertAce(index int, perm Permission, sid Sid, granting bool) error {
	return a.InsertAceWithID(uuid.New(), index, perm, sid, granting)
}

// InsertAceWithID is InsertAce with a caller supplied entry id.
func (a *Acl) InsertAceWithID(id uuid.UUID, index int, perm Permission, sid Sid, granting bool) error {
	if perm == nil {
		return fmt.Errorf("permission required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if index < 0 || index > len(a.entries) {
		return fmt.Errorf("%w: insert at %d, list size is %d", ErrInvalidIndex, index, len(a.entries))
	}

	ace := Ace{ID: id, Sid: sid, Permission: perm, Granting: granting}
	a.entries = append(a.entries, Ace{})
	copy(a.entries[index+1:], a.entries[index:])
	a.entries[index] = ace
	return nil
}

// UpdateAce replaces the permission of the entry at index.
func (a *Acl) UpdateAce(index int, perm Permission) error {
	if perm == nil {
		return fmt.Errorf("permission required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.verifyIndexExists(index); err != nil {
		return err
	}
	a.entries[index].Permission = perm
	return nil
}

// DeleteAce removes the entry at index.
func (a *Acl) DeleteAce(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.verifyIndexExists(index); err != nil {
		return err
	}
	a.entries = append(a.entries[:index], a.entries[index+1:]...)
	return nil
}

// IsSidLoaded reports whether every given sid was loaded. An Acl loaded for all sids,
// or a call without sids, always reports true.
func (a *Acl) IsSidLoaded(sids ...Sid) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.loaded == nil || len(sids) == 0 {
		return true
	}
	return a.loaded.Contains(sids...)
}

// RequireSids fails with ErrSidUnloaded unless every sid was loaded.
func (a *Acl) RequireSids(sids ...Sid) error {
	if !a.IsSidLoaded(sids...) {
		return fmt.Errorf("%w: acl for %s loaded for %v", ErrSidUnloaded, a.identity, a.LoadedSids())
	}
	return nil
}

// IsFullyLoaded reports whether the Acl was loaded for every sid.
func (a *Acl) IsFullyLoaded() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.loaded == nil
}

// LoadedSids returns the sids the Acl was loaded for, or nil if it is fully loaded.
func (a *Acl) LoadedSids() []Sid {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.loaded == nil {
		return nil
	}
	return a.loaded.ToSlice()
}

// Covers reports whether the Acl can answer a read scoped to sids. Unlike
// IsSidLoaded, an unscoped read is only covered by a fully loaded Acl.
func (a *Acl) Covers(sids []Sid) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.loaded == nil {
		return true
	}
	if len(sids) == 0 {
		return false
	}
	return a.loaded.Contains(sids...)
}

func (a *Acl) String() string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return fmt.Sprintf("Acl[identity: %s; owner: %s; entries: %d]", a.identity, a.owner, len(a.entries))
}

func (a *Acl) verifyIndexExists(index int) error {
	if index < 0 || index >= len(a.entries) {
		return fmt.Errorf("%w: index %d, list size is %d", ErrInvalidIndex, index, len(a.entries))
	}
	return nil
}

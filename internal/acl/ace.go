package acl

import (
	"fmt"

	"github.com/google/uuid"
)

// Ace is an individual grant or denial of a permission to a Sid. Its position is
// its index within the owning Acl.
type Ace struct {
	ID         uuid.UUID
	Sid        Sid
	Permission Permission
	Granting   bool
}

// NewAce returns an entry with a fresh random id.
func NewAce(sid Sid, perm Permission, granting bool) Ace {
	return Ace{
		ID:         uuid.New(),
		Sid:        sid,
		Permission: perm,
		Granting:   granting,
	}
}

func (a Ace) String() string {
	return fmt.Sprintf("Ace[id: %s; granting: %t; sid: %s; permission: %s]", a.ID, a.Granting, a.Sid, a.Permission)
}

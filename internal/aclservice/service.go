// Package aclservice is the caller-facing ACL API on top of the repository. Unlike
// the repository it treats a missing record as an error.
package aclservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/repository"
)

var ErrNoPrincipal = errors.New("no principal in context")

type principalKey struct{}

// WithPrincipal returns a context carrying the calling principal.
func WithPrincipal(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, principalKey{}, acl.PrincipalSid(name))
}

// PrincipalFrom returns the calling principal carried by ctx.
func PrincipalFrom(ctx context.Context) (acl.Sid, bool) {
	sid, ok := ctx.Value(principalKey{}).(acl.Sid)
	return sid, ok
}

type Service struct {
	repo *repository.Repository
}

func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// ReadAclByID returns the record of oid scoped to sids.
func (s *Service) ReadAclByID(ctx context.Context, oid acl.ObjectIdentity, sids ...acl.Sid) (*acl.Acl, error) {
	records, err := s.ReadAclsByID(ctx, []acl.ObjectIdentity{oid}, sids)
	if err != nil {
		return nil, err
	}
	return records[oid.Normalize()], nil
}

// ReadAclsByID returns the records of oids. It fails with acl.ErrNotFound naming
// every identity without a record.
func (s *Service) ReadAclsByID(ctx context.Context, oids []acl.ObjectIdentity, sids []acl.Sid) (map[acl.ObjectIdentity]*acl.Acl, error) {
	records, err := s.repo.GetByIDs(ctx, oids, sids)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, oid := range oids {
		if _, ok := records[oid.Normalize()]; !ok {
			missing = append(missing, oid.String())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", acl.ErrNotFound, strings.Join(missing, ", "))
	}
	return records, nil
}

// CreateAcl creates an empty record owned by the principal in ctx.
func (s *Service) CreateAcl(ctx context.Context, oid acl.ObjectIdentity) (*acl.Acl, error) {
	owner, ok := PrincipalFrom(ctx)
	if !ok {
		return nil, ErrNoPrincipal
	}
	return s.repo.Create(ctx, oid, owner)
}

func (s *Service) UpdateAcl(ctx context.Context, a *acl.Acl) (*acl.Acl, error) {
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAcl removes the record of oid. Records have no children, so
// deleteChildren has no effect.
func (s *Service) DeleteAcl(ctx context.Context, oid acl.ObjectIdentity, deleteChildren bool) error {
	return s.repo.Delete(ctx, oid)
}

// FindChildren always returns nothing: records form no hierarchy.
func (s *Service) FindChildren(ctx context.Context, parent acl.ObjectIdentity) ([]acl.ObjectIdentity, error) {
	return nil, nil
}

// Grant appends an entry for sid and stores the record.
func (s *Service) Grant(ctx context.Context, oid acl.ObjectIdentity, sid acl.Sid, perm acl.Permission, granting bool) (*acl.Acl, error) {
	record, err := s.editable(ctx, oid)
	if err != nil {
		return nil, err
	}

	if err := record.InsertAce(record.Len(), perm, sid, granting); err != nil {
		return nil, err
	}

	slog.Debug("acl grant", "identity", oid, "sid", sid, "permission", perm, "granting", granting)
	return s.UpdateAcl(ctx, record)
}

// Revoke deletes every entry of sid carrying perm, or every entry of sid when
// perm is nil. It returns the number of entries removed.
func (s *Service) Revoke(ctx context.Context, oid acl.ObjectIdentity, sid acl.Sid, perm acl.Permission) (int, error) {
	record, err := s.editable(ctx, oid)
	if err != nil {
		return 0, err
	}

	removed := 0
	entries := record.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		ace := entries[i]
		if ace.Sid != sid || (perm != nil && ace.Permission.Mask() != perm.Mask()) {
			continue
		}
		if err := record.DeleteAce(i); err != nil {
			return removed, err
		}
		removed++
	}

	if removed == 0 {
		return 0, nil
	}

	slog.Debug("acl revoke", "identity", oid, "sid", sid, "removed", removed)
	if _, err := s.UpdateAcl(ctx, record); err != nil {
		return 0, err
	}
	return removed, nil
}

// editable returns a private, fully loaded copy of the stored record, so a
// failed write leaves cached records untouched.
func (s *Service) editable(ctx context.Context, oid acl.ObjectIdentity) (*acl.Acl, error) {
	record, err := s.ReadAclByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	return acl.New(record.Identity(), record.Owner(), record.Entries(), nil), nil
}

// Exists reports whether a record is stored for oid.
func (s *Service) Exists(ctx context.Context, oid acl.ObjectIdentity) (bool, error) {
	return s.repo.Exists(ctx, oid)
}

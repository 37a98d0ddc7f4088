package aclspec

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openmined/aclstore/internal/aclservice"
)

// ApplyResult counts what Apply did.
type ApplyResult struct {
	Created int
	Updated int
}

// Apply stores every record of file, creating missing ones and replacing
// existing ones. It stops at the first failure.
func Apply(ctx context.Context, svc *aclservice.Service, file *SeedFile, perms PermissionParser) (ApplyResult, error) {
	var result ApplyResult

	for i, seed := range file.ACLs {
		record, err := seed.Record(perms)
		if err != nil {
			return result, fmt.Errorf("%s: acl %d: %w", file.Path, i, err)
		}
		oid := record.Identity()

		exists, err := svc.Exists(ctx, oid)
		if err != nil {
			return result, err
		}

		if !exists {
			// created under the owner; the update below sets the owner exactly
			if _, err := svc.CreateAcl(aclservice.WithPrincipal(ctx, record.Owner().Authority), oid); err != nil {
				return result, err
			}
			result.Created++
		} else {
			result.Updated++
		}

		if _, err := svc.UpdateAcl(ctx, record); err != nil {
			return result, err
		}
		slog.Debug("seed applied", "file", file.Path, "identity", oid, "entries", record.Len(), "created", !exists)
	}

	slog.Info("seed file applied", "file", file.Path, "created", result.Created, "updated", result.Updated)
	return result, nil
}

// Package aclspec reads and writes seed files: YAML documents declaring ACL
// records to be created or replaced in the store.
package aclspec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmined/aclstore/internal/acl"
)

const (
	SeedFileExt     = ".acl.yaml"
	AuthorityPrefix = "authority:"
	PrincipalPrefix = "principal:"
)

// IsSeedFile checks if the path is a seed file
func IsSeedFile(path string) bool {
	return strings.HasSuffix(path, SeedFileExt)
}

// FindSeedFiles returns the seed files under dir in lexical order.
// For security reasons, symlinks are skipped.
func FindSeedFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if !d.IsDir() && IsSeedFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find seed files in %s: %w", dir, err)
	}
	return files, nil
}

// ParseSid reads "authority:NAME" as an authority and "principal:NAME" or a bare
// NAME as a principal.
func ParseSid(s string) (acl.Sid, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, AuthorityPrefix):
		s = strings.TrimPrefix(s, AuthorityPrefix)
		if s == "" {
			return acl.Sid{}, fmt.Errorf("empty authority")
		}
		return acl.AuthoritySid(s), nil
	case strings.HasPrefix(s, PrincipalPrefix):
		s = strings.TrimPrefix(s, PrincipalPrefix)
	}
	if s == "" {
		return acl.Sid{}, fmt.Errorf("empty principal")
	}
	return acl.PrincipalSid(s), nil
}

// FormatSid is the inverse of ParseSid.
func FormatSid(sid acl.Sid) string {
	if sid.Principal {
		return sid.Authority
	}
	return AuthorityPrefix + sid.Authority
}

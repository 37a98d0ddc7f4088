package aclcodec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/openmined/aclstore/internal/acl"
	"github.com/openmined/aclstore/internal/store"
)

// Qualifier returns the cell qualifier of the entry at position. Positions are
// zero-padded so qualifier byte order matches numeric order.
func Qualifier(position int) []byte {
	return []byte(fmt.Sprintf("%010d", position))
}

// EncodeEntries returns one cell per entry, in order.
func (c *Codec) EncodeEntries(entries []acl.Ace) ([]store.Cell, error) {
	cells := make([]store.Cell, 0, len(entries))
	for i, ace := range entries {
		value, err := encodeAce(ace)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		cells = append(cells, store.Cell{Family: FamilyEntries, Qualifier: Qualifier(i), Value: []byte(value)})
	}
	return cells, nil
}

// DecodeEntries rebuilds entries ordered by qualifier, whatever order the cells
// arrive in.
func (c *Codec) DecodeEntries(cells []store.Cell) ([]acl.Ace, error) {
	sorted := append([]store.Cell(nil), cells...)
	store.SortCells(sorted)

	entries := make([]acl.Ace, 0, len(sorted))
	for _, cell := range sorted {
		if _, err := strconv.ParseUint(string(cell.Qualifier), 10, 32); err != nil {
			return nil, fmt.Errorf("%w: qualifier %q", acl.ErrMalformedEntry, cell.Qualifier)
		}

		ace, err := c.decodeAce(string(cell.Value))
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", cell.Qualifier, err)
		}
		entries = append(entries, ace)
	}
	return entries, nil
}

// encodeAce formats "id:authority:isPrincipal:mask:granting".
func encodeAce(ace acl.Ace) (string, error) {
	if ace.Permission == nil {
		return "", fmt.Errorf("%w: no permission", acl.ErrMalformedEntry)
	}

	sid, err := encodeSid(ace.Sid)
	if err != nil {
		return "", err
	}

	return strings.Join([]string{
		ace.ID.String(),
		sid,
		strconv.FormatUint(uint64(ace.Permission.Mask()), 10),
		strconv.FormatBool(ace.Granting),
	}, separator), nil
}

func (c *Codec) decodeAce(value string) (acl.Ace, error) {
	fields := strings.Split(value, separator)
	if len(fields) != 5 {
		return acl.Ace{}, fmt.Errorf("%w: %q has %d fields", acl.ErrMalformedEntry, value, len(fields))
	}

	id, err := uuid.Parse(fields[0])
	if err != nil {
		return acl.Ace{}, fmt.Errorf("%w: entry id %q", acl.ErrMalformedEntry, fields[0])
	}

	sid, err := parseSid(fields[1], fields[2])
	if err != nil {
		return acl.Ace{}, err
	}

	mask, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return acl.Ace{}, fmt.Errorf("%w: mask %q", acl.ErrMalformedEntry, fields[3])
	}
	perm, err := c.perms.BuildFromMask(uint32(mask))
	if err != nil {
		return acl.Ace{}, fmt.Errorf("%w: mask %d: %v", acl.ErrMalformedEntry, mask, err)
	}

	granting, err := strconv.ParseBool(fields[4])
	if err != nil {
		return acl.Ace{}, fmt.Errorf("%w: granting flag %q", acl.ErrMalformedEntry, fields[4])
	}

	return acl.Ace{ID: id, Sid: sid, Permission: perm, Granting: granting}, nil
}

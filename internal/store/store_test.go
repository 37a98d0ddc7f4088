package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRowGroupsAndSorts(t *testing.T) {
	row := NewRow([]byte("k"), []Cell{
		{Family: "aces", Qualifier: []byte("0000000010"), Value: []byte("b")},
		{Family: "acl", Qualifier: []byte("type"), Value: []byte("Document")},
		{Family: "aces", Qualifier: []byte("0000000002"), Value: []byte("a")},
	})

	assert.False(t, row.Empty())
	aces := row.Family("aces")
	assert.Len(t, aces, 2)
	assert.Equal(t, []byte("0000000002"), aces[0].Qualifier)
	assert.Equal(t, []byte("0000000010"), aces[1].Qualifier)

	v, ok := row.Value("acl", []byte("type"))
	assert.True(t, ok)
	assert.Equal(t, []byte("Document"), v)

	_, ok = row.Value("acl", []byte("owner"))
	assert.False(t, ok)
}

func TestRowEmpty(t *testing.T) {
	var nilRow *Row
	assert.True(t, nilRow.Empty())
	assert.Nil(t, nilRow.Family("acl"))

	row := NewRow([]byte("k"), nil)
	assert.True(t, row.Empty())
}

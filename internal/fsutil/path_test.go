package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: ErrEmptyPath},
		{name: "home", input: "~", want: home},
		{name: "under home", input: "~/.aclstore/acls.db", want: filepath.Join(home, ".aclstore", "acls.db")},
		{name: "absolute", input: "/tmp/x/../acls", want: filepath.Clean("/tmp/acls")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolvePath(tc.input)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveRelativePath(t *testing.T) {
	got, err := ResolvePath("data/acls.db")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "acls.db", filepath.Base(got))
}

func TestEnsureDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "b")

	require.NoError(t, EnsureDir(dir))
	assert.DirExists(t, dir)
	require.NoError(t, EnsureDir(dir))

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, EnsureDir(file))
}

func TestEnsureParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "acls.db")
	require.NoError(t, EnsureParent(path))
	assert.DirExists(t, filepath.Dir(path))
	assert.NoFileExists(t, path)
}

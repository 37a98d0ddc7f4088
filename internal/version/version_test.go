package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStrings(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Revision)
	assert.Equal(t, "aclstore", AppName)

	short := Short()
	assert.Contains(t, short, Version)
	assert.Contains(t, short, Revision)

	detailed := Detailed()
	assert.Contains(t, detailed, Version)
	assert.Contains(t, detailed, "/") // GOOS/GOARCH

	assert.True(t, strings.HasPrefix(DetailedWithApp(), AppName+" "))
}

func TestGet(t *testing.T) {
	info := Get("ncruces/go-sqlite3")
	assert.Equal(t, AppName, info.App)
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, "ncruces/go-sqlite3", info.Driver)
	assert.True(t, strings.HasPrefix(info.Go, "go"))
}

func TestApplyBuildInfo(t *testing.T) {
	origVersion, origRevision, origBuildDate := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = origVersion, origRevision, origBuildDate
	})

	testCases := []struct {
		desc                         string
		version, revision, buildDate string
		main                         string
		settings                     map[string]string
		wantVersion, wantRevision    string
		wantBuildDate                string
	}{
		{
			desc:    "defaults filled from build info",
			version: devVersion, revision: "HEAD",
			main: "v9.9.9",
			settings: map[string]string{
				"vcs.revision": "abcdef1234567890",
				"vcs.modified": "true",
				"vcs.time":     "2025-12-12T01:00:00Z",
			},
			wantVersion: "9.9.9", wantRevision: "abcdef1234567890-dirty", wantBuildDate: "2025-12-12T01:00:00Z",
		},
		{
			desc:    "ldflags win",
			version: "1.2.3", revision: "deadbeef", buildDate: "from-ldflags",
			main:        "v9.9.9",
			settings:    map[string]string{"vcs.revision": "abcdef", "vcs.time": "2025-12-12T01:00:00Z"},
			wantVersion: "1.2.3", wantRevision: "deadbeef", wantBuildDate: "from-ldflags",
		},
		{
			desc:    "devel build keeps dev version",
			version: devVersion, revision: "HEAD",
			main:        "(devel)",
			settings:    map[string]string{},
			wantVersion: devVersion, wantRevision: "HEAD", wantBuildDate: "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			Version, Revision, BuildDate = tc.version, tc.revision, tc.buildDate
			applyBuildInfo(tc.main, tc.settings)
			assert.Equal(t, tc.wantVersion, Version)
			assert.Equal(t, tc.wantRevision, Revision)
			assert.Equal(t, tc.wantBuildDate, BuildDate)
		})
	}
}

package pathmeta

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsGeneric(t *testing.T) {
	tests := []struct {
		name    string
		generic bool
	}{
		{"Track 01", true},
		{"track 5", true},
		{"05. Track05", true},
		{"01", true},
		{"07.", true},
		{"01 01", true},
		{"Track-03", true},
		{"Pista 03", true},
		{"Audio 12", true},
		{"untitled", true},
		{"Untitled 2", true},
		{"Cancion 02", true},
		{"Song 9", true},
		{"  Track 04  ", true},
		{"Bohemian Rhapsody", false},
		{"04 Bohemian Rhapsody", false},
		{"Trackless", false},
		{"99 Luftballons", false},
		{"Songbird", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.generic, IsGeneric(tt.name))
		})
	}
}

func TestParseFullPath(t *testing.T) {
	root := filepath.Join("music")
	path := filepath.Join(root, "Queen", "A Night at the Opera (1975)", "04 Bohemian Rhapsody.wav")

	pm, err := Parse(path, root)
	require.NoError(t, err)

	assert.Equal(t, "Bohemian Rhapsody", pm.Title)
	assert.Equal(t, "Queen", pm.Artist)
	assert.Equal(t, "A Night at the Opera", pm.Album)
	assert.Equal(t, "1975", pm.Year)
	assert.Equal(t, "04", pm.TrackNumber)
	assert.Equal(t, 4, pm.TrackNo())
	assert.False(t, pm.Generic)
}

func TestParseGenericFilename(t *testing.T) {
	root := "rips"
	path := filepath.Join(root, "Queen", "A Night at the Opera", "Track 04.wav")

	pm, err := Parse(path, root)
	require.NoError(t, err)

	assert.True(t, pm.Generic)
	assert.Equal(t, "04", pm.TrackNumber)
	// Nothing real survives stripping the numbering, so the stem stays.
	assert.Equal(t, "Track 04", pm.Title)
	assert.Equal(t, "Queen", pm.Artist)
	assert.Equal(t, "A Night at the Opera", pm.Album)
	assert.Empty(t, pm.Year)
}

func TestParseVariousArtistsAlias(t *testing.T) {
	for _, alias := range []string{"Various Artists", "various", "VA", "Compilation"} {
		path := filepath.Join("lib", alias, "Now 50 [2001]", "12 Some Song.wav")
		pm, err := Parse(path, "lib")
		require.NoError(t, err)
		assert.Equal(t, VariousArtists, pm.Artist, "alias %q", alias)
		assert.Equal(t, "Now 50", pm.Album)
		assert.Equal(t, "2001", pm.Year)
	}
}

func TestParseShallowPaths(t *testing.T) {
	// File directly under the root: no album or artist directories.
	pm, err := Parse(filepath.Join("root", "Yesterday.wav"), "root")
	require.NoError(t, err)
	assert.Equal(t, "Yesterday", pm.Title)
	assert.Empty(t, pm.Artist)
	assert.Empty(t, pm.Album)

	// One directory deep: it is treated as the album, not the artist.
	pm, err = Parse(filepath.Join("root", "Abbey Road", "Come Together.wav"), "root")
	require.NoError(t, err)
	assert.Equal(t, "Abbey Road", pm.Album)
	assert.Empty(t, pm.Artist)
}

func TestParseLeadingNumberStripped(t *testing.T) {
	pm, err := Parse(filepath.Join("r", "Artist", "Album", "03 - Landslide.wav"), "r")
	require.NoError(t, err)
	assert.Equal(t, "03", pm.TrackNumber)
	assert.False(t, pm.Generic)
	assert.Equal(t, "Landslide", pm.Title)
}

func TestSplitAlbumYearVariants(t *testing.T) {
	tests := []struct {
		segment string
		album   string
		year    string
	}{
		{"A Night at the Opera (1975)", "A Night at the Opera", "1975"},
		{"1989", "", "1989"},
		{"Album [2003]", "Album", "2003"},
		{"Greatest Hits", "Greatest Hits", ""},
		{"2001 - A Space Odyssey OST", "A Space Odyssey OST", "2001"},
	}
	for _, tt := range tests {
		album, year := splitAlbumYear(tt.segment)
		assert.Equal(t, tt.album, album, tt.segment)
		assert.Equal(t, tt.year, year, tt.segment)
	}
}

package tagstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.senan.xyz/taglib"

	"flacify/internal/metadata"
)

func TestRecordFromTags(t *testing.T) {
	rec := recordFromTags(map[string][]string{
		taglib.Title:         {"Bohemian Rhapsody"},
		taglib.Artist:        {"Queen"},
		taglib.Album:         {"A Night at the Opera"},
		taglib.TrackNumber:   {"11"},
		taglib.Date:          {"1975-11-21"},
		"MUSICBRAINZ_TRACKID": {"rec-1"},
		"SOME_UNKNOWN_TAG":   {"ignored"},
		taglib.Genre:         {},
	})

	assert.Equal(t, "Bohemian Rhapsody", rec.Get(metadata.FieldTitle))
	assert.Equal(t, "Queen", rec.Get(metadata.FieldArtist))
	assert.Equal(t, "11", rec.Get(metadata.FieldTrackNumber))
	assert.Equal(t, "rec-1", rec.Get(metadata.FieldRecordingID))
	assert.False(t, rec.Has(metadata.FieldGenre), "empty tag list yields no field")
	assert.Len(t, rec, 5)
}

func TestTagsFromRecord(t *testing.T) {
	rec := metadata.Record{
		metadata.FieldTitle:       "Bohemian Rhapsody",
		metadata.FieldArtist:      "Queen",
		metadata.FieldAlbum:       "A Night at the Opera",
		metadata.FieldTrackNumber: "11",
		metadata.FieldRecordingID: "rec-1",
		metadata.FieldAlbumID:     "rel-1",
		// Resolver-internal fields have no tag mapping and must not leak.
		metadata.FieldAcoustIDScore: "0.97",
		metadata.FieldPlaycount:     "123",
	}

	tags := tagsFromRecord(rec)
	assert.Equal(t, []string{"Bohemian Rhapsody"}, tags[taglib.Title])
	assert.Equal(t, []string{"11"}, tags[taglib.TrackNumber])
	assert.Equal(t, []string{"rec-1"}, tags["MUSICBRAINZ_TRACKID"])
	assert.Equal(t, []string{"rel-1"}, tags["MUSICBRAINZ_ALBUMID"])
	assert.Len(t, tags, 6)
}

func TestTagsFromRecord_YearFallsBackToDate(t *testing.T) {
	rec := metadata.Record{
		metadata.FieldTitle: "Bohemian Rhapsody",
		metadata.FieldYear:  "1975",
	}
	tags := tagsFromRecord(rec)
	assert.Equal(t, []string{"1975"}, tags[taglib.Date])

	// A full date wins over the bare year.
	rec.Set(metadata.FieldDate, "1975-11-21")
	tags = tagsFromRecord(rec)
	assert.Equal(t, []string{"1975-11-21"}, tags[taglib.Date])
}

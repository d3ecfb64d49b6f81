// Package metadata defines the record type shared by every identification
// source and the resolution strategy.
package metadata

import (
	"fmt"
	"strings"
)

// Field keys used in a Record. A key that is not present in the map means
// the field is unknown, which is different from a field set to "".
const (
	FieldTitle       = "title"
	FieldArtist      = "artist"
	FieldAlbum       = "album"
	FieldAlbumArtist = "album_artist"
	FieldComposer    = "composer"
	FieldGenre       = "genre"
	FieldDate        = "date"
	FieldYear        = "year"
	FieldTrackNumber = "track_number"
	FieldDuration    = "duration"

	FieldRecordingID = "musicbrainz_recordingid"
	FieldAlbumID     = "musicbrainz_albumid"
	FieldArtistID    = "musicbrainz_artistid"

	FieldAcoustIDScore    = "acoustid_score"
	FieldLastfmConfidence = "lastfm_confidence"
	FieldLastfmURL        = "lastfm_url"
	FieldPlaycount        = "playcount"
	FieldListeners        = "listeners"
)

// Record maps semantic field names to string values. Every field is
// optional; completeness is a judgement made by the resolver, not a
// structural constraint of the type.
type Record map[string]string

// Get returns the value for field, or "" when the field is absent.
func (r Record) Get(field string) string {
	return r[field]
}

// Has reports whether field is present with a non-empty value.
func (r Record) Has(field string) bool {
	return r[field] != ""
}

// Set stores a trimmed value. Empty values are dropped so that "absent"
// and "empty" stay the same thing.
func (r Record) Set(field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		delete(r, field)
		return
	}
	r[field] = value
}

// Mergeable reports whether the record carries enough identity to be
// worth merging. A record with neither title nor artist is a no-match,
// not a record of empty fields.
func (r Record) Mergeable() bool {
	return r.Has(FieldTitle) || r.Has(FieldArtist)
}

// HasCatalogID reports whether the record carries any MusicBrainz
// identifier.
func (r Record) HasCatalogID() bool {
	return r.Has(FieldRecordingID) || r.Has(FieldAlbumID) || r.Has(FieldArtistID)
}

// Clone returns an independent copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Overlay copies fields from other into r, but only where r has no value
// yet. Existing values always win over the overlay.
func (r Record) Overlay(other Record) {
	for k, v := range other {
		if v != "" && !r.Has(k) {
			r[k] = v
		}
	}
}

// PadTrackNumber renders a track number the way it is stored in tags,
// zero-padded to two digits.
func PadTrackNumber(n int) string {
	return fmt.Sprintf("%02d", n)
}

// Package tagstore reads and writes audio file tags, translating
// between taglib's property map and the resolver's metadata records.
package tagstore

import (
	"fmt"

	"go.senan.xyz/taglib"

	"flacify/internal/metadata"
)

// MusicBrainz identifiers travel as free-form properties; taglib has no
// named constants for them.
const (
	tagRecordingID = "MUSICBRAINZ_TRACKID"
	tagAlbumID     = "MUSICBRAINZ_ALBUMID"
	tagArtistID    = "MUSICBRAINZ_ARTISTID"
)

var tagToField = map[string]string{
	taglib.Title:       metadata.FieldTitle,
	taglib.Artist:      metadata.FieldArtist,
	taglib.Album:       metadata.FieldAlbum,
	taglib.AlbumArtist: metadata.FieldAlbumArtist,
	taglib.Composer:    metadata.FieldComposer,
	taglib.Genre:       metadata.FieldGenre,
	taglib.Date:        metadata.FieldDate,
	taglib.TrackNumber: metadata.FieldTrackNumber,
	tagRecordingID:     metadata.FieldRecordingID,
	tagAlbumID:         metadata.FieldAlbumID,
	tagArtistID:        metadata.FieldArtistID,
}

var fieldToTag = map[string]string{
	metadata.FieldTitle:       taglib.Title,
	metadata.FieldArtist:      taglib.Artist,
	metadata.FieldAlbum:       taglib.Album,
	metadata.FieldAlbumArtist: taglib.AlbumArtist,
	metadata.FieldComposer:    taglib.Composer,
	metadata.FieldGenre:       taglib.Genre,
	metadata.FieldDate:        taglib.Date,
	metadata.FieldTrackNumber: taglib.TrackNumber,
	metadata.FieldRecordingID: tagRecordingID,
	metadata.FieldAlbumID:     tagAlbumID,
	metadata.FieldArtistID:    tagArtistID,
}

// Read extracts a file's existing tags as a metadata record. Unknown
// properties are ignored; multi-valued tags keep their first value.
func Read(path string) (metadata.Record, error) {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}
	return recordFromTags(tags), nil
}

// Write replaces the file's tags with the record. Prior tags are
// cleared first so stale fields never survive an update.
func Write(path string, rec metadata.Record) error {
	if err := taglib.WriteTags(path, tagsFromRecord(rec), taglib.Clear); err != nil {
		return fmt.Errorf("failed to write tags to %s: %w", path, err)
	}
	return nil
}

func recordFromTags(tags map[string][]string) metadata.Record {
	rec := metadata.Record{}
	for tag, values := range tags {
		field, ok := tagToField[tag]
		if !ok || len(values) == 0 {
			continue
		}
		rec.Set(field, values[0])
	}
	return rec
}

func tagsFromRecord(rec metadata.Record) map[string][]string {
	tags := make(map[string][]string)
	for field, tag := range fieldToTag {
		if rec.Has(field) {
			tags[tag] = []string{rec.Get(field)}
		}
	}

	// A bare year serves as the date when no full date is known.
	if _, ok := tags[taglib.Date]; !ok && rec.Has(metadata.FieldYear) {
		tags[taglib.Date] = []string{rec.Get(metadata.FieldYear)}
	}

	return tags
}

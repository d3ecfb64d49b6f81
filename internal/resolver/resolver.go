// Package resolver orchestrates metadata lookup for one file at a time.
// It walks a fixed decision tree over the available sources and always
// produces a usable record, in the worst case built from the file's
// path alone.
package resolver

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"flacify/internal/logger"
	"flacify/internal/metadata"
	"flacify/internal/pathmeta"
	"flacify/internal/source"
)

// Provenance labels attributing where a file's final metadata came from.
const (
	ProvenanceExisting = "existing"
	ProvenanceCatalog  = "catalog"
	ProvenanceAcoustic = "acoustic"
	ProvenanceText     = "text-search"
	ProvenanceFallback = "fallback"
)

// Request carries one file's path-derived identity plus whatever tags
// it already has.
type Request struct {
	Artist      string
	Album       string
	Title       string
	TrackNumber int // 0 when unknown
	Generic     bool
	FilePath    string
	Existing    metadata.Record
}

// Resolver decides which sources to consult for a file and in what
// order. One Resolver drives one conversion run.
type Resolver struct {
	album    source.Source
	track    source.Source
	acoustic source.Source
	text     source.Source
	log      *logger.Logger

	mu     sync.Mutex
	counts map[string]int
}

// New creates a Resolver over the four sources. Any source may be nil,
// which simply skips its branch of the tree.
func New(album, track, acoustic, text source.Source, log *logger.Logger) *Resolver {
	return &Resolver{
		album:    album,
		track:    track,
		acoustic: acoustic,
		text:     text,
		log:      log,
		counts:   make(map[string]int),
	}
}

// Resolve returns the best metadata record for the request and a
// provenance label saying where it came from. It never fails: when
// every source comes up empty, the path-derived fallback is returned.
func (r *Resolver) Resolve(ctx context.Context, req Request) (metadata.Record, string) {
	r.log.Debug("resolving: %s - %s - %s (track %d, generic %t)",
		req.Artist, req.Album, req.Title, req.TrackNumber, req.Generic)

	// Complete existing tags short-circuit everything: no external
	// calls, the record is returned untouched.
	if isComplete(req.Existing) {
		r.log.Debug("existing tags are complete, skipping lookup")
		return req.Existing, r.count(ProvenanceExisting)
	}

	// A generic filename carries no searchable text, so identify the
	// audio itself first. An accepted fingerprint match is trusted as
	// complete and ends the lookup.
	if req.Generic && req.FilePath != "" {
		if rec, ok := r.consult(ctx, r.acoustic, source.Query{Path: req.FilePath}); ok {
			r.backfillTrackNumber(rec, req.TrackNumber)
			return rec, r.count(ProvenanceAcoustic)
		}
	}

	// Still generic: locate the track by its position on the album.
	if req.Generic && req.TrackNumber > 0 && req.Artist != "" && req.Album != "" {
		q := source.Query{Artist: req.Artist, Album: req.Album, TrackNumber: req.TrackNumber}
		if rec, ok := r.consult(ctx, r.album, q); ok {
			padTrackNumber(rec)
			r.backfillTrackNumber(rec, req.TrackNumber)
			return rec, r.count(ProvenanceCatalog)
		}
	}

	// A real title is worth searching for: catalog first, then the
	// audio itself, then text search as the last resort.
	if !req.Generic {
		q := source.Query{Artist: req.Artist, Album: req.Album, Title: req.Title}
		if rec, ok := r.consult(ctx, r.track, q); ok {
			r.backfillTrackNumber(rec, req.TrackNumber)
			return rec, r.count(ProvenanceCatalog)
		}

		if req.FilePath != "" {
			if rec, ok := r.consult(ctx, r.acoustic, source.Query{Path: req.FilePath}); ok {
				r.backfillTrackNumber(rec, req.TrackNumber)
				return rec, r.count(ProvenanceAcoustic)
			}
		}

		if rec, ok := r.consult(ctx, r.text, q); ok {
			r.backfillTrackNumber(rec, req.TrackNumber)
			return rec, r.count(ProvenanceText)
		}
	} else {
		// Generic labels like "Track 01" are never used as text search
		// queries: a bare track number matches everything and nothing.
		r.log.Debug("skipping text search for generic title %q", req.Title)
	}

	// Fallback: the path told us this much. Existing tags fill the
	// gaps but never override an accepted source result.
	fallback := metadata.Record{}
	fallback.Set(metadata.FieldTitle, req.Title)
	fallback.Set(metadata.FieldArtist, req.Artist)
	fallback.Set(metadata.FieldAlbum, req.Album)
	if req.TrackNumber > 0 {
		fallback.Set(metadata.FieldTrackNumber, metadata.PadTrackNumber(req.TrackNumber))
	}
	if req.Existing != nil {
		fallback.Overlay(req.Existing)
	}

	r.log.Debug("using path-derived fallback: %s - %s", fallback.Get(metadata.FieldArtist), fallback.Get(metadata.FieldTitle))
	return fallback, r.count(ProvenanceFallback)
}

// Counts returns how many resolutions each provenance accounted for.
func (r *Resolver) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

func (r *Resolver) count(provenance string) string {
	r.mu.Lock()
	r.counts[provenance]++
	r.mu.Unlock()
	return provenance
}

// consult calls a source and flattens every failure mode to "no". A
// source error never aborts resolution.
func (r *Resolver) consult(ctx context.Context, s source.Source, q source.Query) (metadata.Record, bool) {
	if s == nil {
		return nil, false
	}
	rec, err := s.Resolve(ctx, q)
	if err != nil {
		switch {
		case errors.Is(err, source.ErrNoMatch):
		case errors.Is(err, source.ErrUnavailable):
		default:
			r.log.Warn("%s lookup failed: %v", s.Name(), err)
		}
		return nil, false
	}
	if rec == nil || !rec.Mergeable() {
		return nil, false
	}
	r.log.Debug("%s matched: %s - %s", s.Name(), rec.Get(metadata.FieldArtist), rec.Get(metadata.FieldTitle))
	return rec, true
}

func (r *Resolver) backfillTrackNumber(rec metadata.Record, trackNumber int) {
	if trackNumber > 0 && !rec.Has(metadata.FieldTrackNumber) {
		rec.Set(metadata.FieldTrackNumber, metadata.PadTrackNumber(trackNumber))
	}
}

// padTrackNumber normalizes a record's existing track number to the
// zero-padded form used everywhere else. Non-positive or unparsable
// positions (zero-based tracklists exist) are dropped so the caller can
// backfill from the path-derived number.
func padTrackNumber(rec metadata.Record) {
	if !rec.Has(metadata.FieldTrackNumber) {
		return
	}
	n, err := strconv.Atoi(rec.Get(metadata.FieldTrackNumber))
	if err != nil || n <= 0 {
		rec.Set(metadata.FieldTrackNumber, "")
		return
	}
	rec.Set(metadata.FieldTrackNumber, metadata.PadTrackNumber(n))
}

// isComplete reports whether existing tags are good enough to keep
// as-is. Clean title/artist/album alone is not enough: without a
// catalog identifier the record is treated as partial and lookup
// continues.
func isComplete(rec metadata.Record) bool {
	if len(rec) == 0 {
		return false
	}
	for _, field := range []string{metadata.FieldTitle, metadata.FieldArtist, metadata.FieldAlbum} {
		if !rec.Has(field) {
			return false
		}
	}
	if pathmeta.IsGeneric(rec.Get(metadata.FieldTitle)) {
		return false
	}
	return rec.HasCatalogID()
}

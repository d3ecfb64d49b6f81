// Package pathmeta derives candidate metadata for an audio file purely
// from its position in the directory tree, and classifies display names
// as generic placeholders versus real song titles.
package pathmeta

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Generic placeholder patterns, checked in order against the lower-cased
// candidate name. The first match wins.
var genericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^track\s*\d+`),                            // "Track 01", "track 5"
	regexp.MustCompile(`^\d+[\s\-_.]*track\d*`),                   // "01 Track", "05. Track05"
	regexp.MustCompile(`^\d+[\s\-_.]*$`),                          // "01", "05."
	regexp.MustCompile(`^\d+[\s\-_.]+\d+$`),                       // "01 01", "05. 05"
	regexp.MustCompile(`^track[\s\-_.]*\d+`),                      // "Track.01", "Track-05"
	regexp.MustCompile(`^\d+[\s\-_.]*(track|titulo|cancion|song)`), // numbered multi-language
	regexp.MustCompile(`^(track|titulo|cancion|song)[\s\-_.]*\d+`), // "Song 01", "Cancion 02"
	regexp.MustCompile(`untitled[\s\-_]*\d*`),
	regexp.MustCompile(`^audio[\s\-_]*\d+`), // "Audio 01"
	regexp.MustCompile(`^pista[\s\-_]*\d+`), // Spanish: "Pista 01"
}

// Track number extraction patterns, tried in order.
var trackNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(\d+)[\s\-_.]*`),    // leading number
	regexp.MustCompile(`track[\s\-_]*(\d+)`), // "Track NN"
	regexp.MustCompile(`(\d+)[\s\-_]*track`), // "NN Track"
}

// genericPrefix strips the numbering and "track" noise off a generic
// title candidate.
var genericPrefix = regexp.MustCompile(`(?i)^(\d+[\s\-_.]*)|(track[\s\-_]*\d*[\s\-_]*)`)

// Year detection patterns for album directory names, tried in order.
var yearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(19|20)\d{2}\b`), // bare 4-digit year
	regexp.MustCompile(`\((\d{4})\)`),      // year in parentheses
	regexp.MustCompile(`\[(\d{4})\]`),      // year in brackets
}

// residualSeparators collapses what a removed year leaves behind.
var residualSeparators = regexp.MustCompile(`\s*[-_()\[\]]\s*`)

// variousArtistAliases are directory names that all mean the same
// canonical compilation artist.
var variousArtistAliases = map[string]bool{
	"various artists": true,
	"various":         true,
	"compilation":     true,
	"va":              true,
}

// VariousArtists is the canonical label the aliases normalize to.
const VariousArtists = "Various Artists"

// IsGeneric reports whether a track display name encodes no real song
// information ("Track 03", "Pista 01", a bare number, ...).
func IsGeneric(name string) bool {
	candidate := strings.ToLower(strings.TrimSpace(name))
	for _, p := range genericPatterns {
		if p.MatchString(candidate) {
			return true
		}
	}
	return false
}

// PathMetadata is a read-only view of what a file's location suggests
// about its identity. It is computed once per file and never mutated.
type PathMetadata struct {
	Title       string
	Artist      string
	Album       string
	Year        string
	TrackNumber string // zero-padded, "" when no number was found
	Generic     bool
}

// TrackNo returns the numeric track number, or 0 when none was found.
func (pm PathMetadata) TrackNo() int {
	n, err := strconv.Atoi(pm.TrackNumber)
	if err != nil {
		return 0
	}
	return n
}

// Parse derives PathMetadata for filePath relative to scanRoot. The
// derivation is purely textual: nothing on disk is read.
func Parse(filePath, scanRoot string) (PathMetadata, error) {
	rel, err := filepath.Rel(scanRoot, filePath)
	if err != nil {
		return PathMetadata{}, fmt.Errorf("file %s is not under scan root %s: %w", filePath, scanRoot, err)
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	filename := segments[len(segments)-1]
	segments = segments[:len(segments)-1]

	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	pm := PathMetadata{
		Title:   stem,
		Generic: IsGeneric(stem),
	}

	if n := extractTrackNumber(stem); n > 0 {
		pm.TrackNumber = fmt.Sprintf("%02d", n)
		// The numbering prefix is noise once captured as a track number;
		// keep whatever real words remain, or the full stem when nothing
		// does ("Track 04" stays "Track 04").
		clean := strings.TrimSpace(genericPrefix.ReplaceAllString(stem, ""))
		if clean != "" {
			pm.Title = clean
		}
	}

	if len(segments) >= 1 {
		pm.Album, pm.Year = splitAlbumYear(segments[len(segments)-1])
	}

	if len(segments) >= 2 {
		artist := segments[len(segments)-2]
		if variousArtistAliases[strings.ToLower(strings.TrimSpace(artist))] {
			artist = VariousArtists
		}
		pm.Artist = artist
	}

	pm.Title = strings.TrimSpace(pm.Title)
	pm.Artist = strings.TrimSpace(pm.Artist)
	pm.Album = strings.TrimSpace(pm.Album)
	pm.Year = strings.TrimSpace(pm.Year)

	return pm, nil
}

func extractTrackNumber(name string) int {
	lower := strings.ToLower(name)
	for _, p := range trackNumberPatterns {
		m := p.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			return n
		}
	}
	return 0
}

// splitAlbumYear pulls a 4-digit year out of an album directory name.
// The matched year is removed and leftover separators collapsed; when no
// pattern matches, the raw segment is the album name unmodified.
func splitAlbumYear(segment string) (album, year string) {
	for i, p := range yearPatterns {
		m := p.FindStringSubmatch(segment)
		if m == nil {
			continue
		}
		if i == 0 {
			year = m[0]
		} else {
			year = m[1]
		}
		album = p.ReplaceAllString(segment, "")
		album = residualSeparators.ReplaceAllString(album, " ")
		return strings.TrimSpace(album), year
	}
	return segment, ""
}

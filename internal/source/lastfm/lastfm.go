// Package lastfm resolves tracks through Last.fm's text search API.
// It is the last lookup tried: cheap, fuzzy, and only trusted when the
// returned track closely matches what was asked for.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flacify/internal/logger"
	"flacify/internal/metadata"
	"flacify/internal/similarity"
	"flacify/internal/source"
)

// confidenceThreshold is the minimum average of title and artist
// similarity between the query and the returned track.
const confidenceThreshold = 0.8

// requestInterval spaces Last.fm calls apart.
const requestInterval = 300 * time.Millisecond

// maxGenreTags caps how many top tags are joined into the genre field.
const maxGenreTags = 3

// Source is a Last.fm Web API client implementing source.Source.
type Source struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	limiter    *source.Limiter
	cache      *source.Cache
	log        *logger.Logger
}

// New creates a Last.fm source. An empty apiKey yields a source that
// reports ErrUnavailable for every lookup.
func New(apiKey string, log *logger.Logger) *Source {
	return &Source{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://ws.audioscrobbler.com/2.0/",
		apiKey:     apiKey,
		limiter:    source.NewLimiter(requestInterval),
		cache:      source.NewCache(),
		log:        log,
	}
}

func (s *Source) Name() string { return "lastfm" }

// Resolve looks up (q.Artist, q.Title) by exact match, then once more
// with Last.fm's artist spelling correction if the direct hit failed.
// Tag and popularity lookups are best-effort and never fail the call.
func (s *Source) Resolve(ctx context.Context, q source.Query) (metadata.Record, error) {
	if s.apiKey == "" {
		return nil, source.ErrUnavailable
	}
	if q.Artist == "" || q.Title == "" {
		return nil, source.ErrNoMatch
	}

	key := source.Key("lastfm", q.Artist, q.Title, q.Album)
	if rec, ok := s.cache.Lookup(key); ok {
		if rec == nil {
			return nil, source.ErrNoMatch
		}
		return rec.Clone(), nil
	}

	rec := s.search(ctx, q.Artist, q.Title, q.Album)
	if rec == nil {
		if corrected := s.correctedArtist(ctx, q.Artist); corrected != "" {
			s.log.Debug("retrying last.fm with corrected artist: %s", corrected)
			rec = s.search(ctx, corrected, q.Title, q.Album)
		}
	}

	if rec == nil {
		s.cache.StoreMiss(key)
		return nil, source.ErrNoMatch
	}
	s.cache.Store(key, rec)
	return rec.Clone(), nil
}

// search does one track.getInfo round trip and applies the confidence
// gate. It returns nil on any failure or low-confidence hit.
func (s *Source) search(ctx context.Context, artist, title, album string) metadata.Record {
	var resp trackInfoResponse
	err := s.call(ctx, url.Values{
		"method": {"track.getInfo"},
		"artist": {artist},
		"track":  {title},
	}, &resp)
	if err != nil {
		s.log.Debug("last.fm search failed for %s - %s: %v", artist, title, err)
		return nil
	}
	if resp.Error != 0 || resp.Track.Name == "" {
		return nil
	}

	track := resp.Track
	rec := metadata.Record{}
	rec.Set(metadata.FieldTitle, track.Name)
	rec.Set(metadata.FieldArtist, track.Artist.Name)
	if rec.Get(metadata.FieldArtist) == "" {
		rec.Set(metadata.FieldArtist, artist)
	}
	rec.Set(metadata.FieldLastfmURL, track.URL)
	rec.Set(metadata.FieldPlaycount, track.Playcount)
	rec.Set(metadata.FieldListeners, track.Listeners)

	rec.Set(metadata.FieldAlbum, track.Album.Title)
	if rec.Get(metadata.FieldAlbum) == "" {
		rec.Set(metadata.FieldAlbum, album)
	}

	confidence := (similarity.Ratio(title, rec.Get(metadata.FieldTitle)) +
		similarity.Ratio(artist, rec.Get(metadata.FieldArtist))) / 2
	rec.Set(metadata.FieldLastfmConfidence, fmt.Sprintf("%.2f", confidence))

	if confidence <= confidenceThreshold {
		s.log.Debug("last.fm match below confidence threshold (%.2f): %s - %s", confidence, artist, title)
		return nil
	}

	if genre := s.topTags(ctx, artist, title); genre != "" {
		rec.Set(metadata.FieldGenre, genre)
	}

	s.log.Info("last.fm found: %s - %s (confidence %.2f)",
		rec.Get(metadata.FieldArtist), rec.Get(metadata.FieldTitle), confidence)
	return rec
}

// correctedArtist asks Last.fm for a "did you mean" spelling of the
// artist. Empty means no usable correction.
func (s *Source) correctedArtist(ctx context.Context, artist string) string {
	var resp correctionResponse
	err := s.call(ctx, url.Values{
		"method": {"artist.getCorrection"},
		"artist": {artist},
	}, &resp)
	if err != nil {
		return ""
	}
	corrected := resp.Corrections.Correction.Artist.Name
	if corrected == "" || strings.EqualFold(corrected, artist) {
		return ""
	}
	return corrected
}

// topTags fetches up to maxGenreTags tags as a genre string. Failures
// are swallowed: genre is decoration, not identification.
func (s *Source) topTags(ctx context.Context, artist, title string) string {
	var resp topTagsResponse
	err := s.call(ctx, url.Values{
		"method": {"track.getTopTags"},
		"artist": {artist},
		"track":  {title},
	}, &resp)
	if err != nil {
		s.log.Debug("last.fm tags lookup failed for %s - %s: %v", artist, title, err)
		return ""
	}

	var names []string
	for _, tag := range resp.TopTags.Tags {
		if tag.Name == "" {
			continue
		}
		names = append(names, tag.Name)
		if len(names) == maxGenreTags {
			break
		}
	}
	return strings.Join(names, ", ")
}

func (s *Source) call(ctx context.Context, params url.Values, out interface{}) error {
	s.limiter.Wait()

	params.Set("api_key", s.apiKey)
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create last.fm request: %w", err)
	}
	req.Header.Set("User-Agent", "flacify/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("last.fm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("last.fm returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode last.fm response: %w", err)
	}
	return nil
}

// Last.fm API response types

type trackInfoResponse struct {
	Error int       `json:"error"`
	Track trackInfo `json:"track"`
}

type trackInfo struct {
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	Playcount string     `json:"playcount"`
	Listeners string     `json:"listeners"`
	Artist    artistInfo `json:"artist"`
	Album     albumInfo  `json:"album"`
}

type artistInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type albumInfo struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type correctionResponse struct {
	Corrections struct {
		Correction struct {
			Artist artistInfo `json:"artist"`
		} `json:"correction"`
	} `json:"corrections"`
}

type topTagsResponse struct {
	TopTags struct {
		Tags []struct {
			Name string `json:"name"`
		} `json:"tag"`
	} `json:"toptags"`
}

// Package catalog resolves tracks against the MusicBrainz catalog, by
// album tracklist position or by individual recording search.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"flacify/internal/logger"
	"flacify/internal/metadata"
	"flacify/internal/similarity"
	"flacify/internal/source"
)

const (
	// albumScoreThreshold is the minimum (album+artist)/2 similarity a
	// release must reach to be trusted as the queried album.
	albumScoreThreshold = 0.7

	// trackScoreStrict applies to the quoted exact-match formulation,
	// trackScoreRelaxed to the looser ones.
	trackScoreStrict  = 0.8
	trackScoreRelaxed = 0.6
)

// Candidate score weights for recording searches.
const (
	titleWeight  = 0.5
	artistWeight = 0.3
	albumWeight  = 0.2
)

// requestInterval honors MusicBrainz's rate limit with headroom.
const requestInterval = 1100 * time.Millisecond

// Client is a MusicBrainz Web API client shared by both catalog sources.
type Client struct {
	httpClient *http.Client
	apiURL     string
	limiter    *source.Limiter
	log        *logger.Logger
}

// NewClient creates a MusicBrainz client.
func NewClient(log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiURL:     "https://musicbrainz.org/ws/2",
		limiter:    source.NewLimiter(requestInterval),
		log:        log,
	}
}

// getJSON performs a rate-limited GET against the API and decodes the
// JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	c.limiter.Wait()

	params.Set("fmt", "json")
	reqURL := c.apiURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create musicbrainz request: %w", err)
	}
	req.Header.Set("User-Agent", "flacify/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.doWithRetry(ctx, req)
	if err != nil {
		return fmt.Errorf("musicbrainz request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("musicbrainz returned %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode musicbrainz response: %w", err)
	}
	return nil
}

// doWithRetry executes the request, retrying once on 429/503 with backoff.
func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		retryAfter := 2
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if parsed, err := strconv.Atoi(ra); err == nil {
				retryAfter = parsed
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(retryAfter) * time.Second):
		}

		c.limiter.Reset()
		retry := req.Clone(ctx)
		return c.httpClient.Do(retry)
	}

	return resp, nil
}

// AlbumSource identifies a track by its position in an album's
// tracklist. It is the source of choice for generic filenames, where
// the title is useless but the directory names the album.
type AlbumSource struct {
	client *Client
	albums *albumCache
}

// NewAlbumSource creates an AlbumSource on the given client.
func NewAlbumSource(client *Client) *AlbumSource {
	return &AlbumSource{client: client, albums: newAlbumCache()}
}

func (s *AlbumSource) Name() string { return "musicbrainz-album" }

// Resolve finds the track at q.TrackNumber on the album (q.Artist,
// q.Album). An exact tracklist position wins; when no position matches,
// the 1-indexed list entry is used instead.
func (s *AlbumSource) Resolve(ctx context.Context, q source.Query) (metadata.Record, error) {
	if q.Artist == "" || q.Album == "" || q.TrackNumber <= 0 {
		return nil, source.ErrNoMatch
	}

	key := source.Key("album", q.Artist, q.Album)
	tracks, ok := s.albums.lookup(key)
	if !ok {
		var err error
		tracks, err = s.fetchTracks(ctx, q.Artist, q.Album)
		if err != nil {
			s.client.log.Warn("album search failed for %s - %s: %v", q.Artist, q.Album, err)
			tracks = nil
		}
		s.albums.store(key, tracks)
	}
	if len(tracks) == 0 {
		return nil, source.ErrNoMatch
	}

	for _, track := range tracks {
		if pos, err := strconv.Atoi(track.Get(metadata.FieldTrackNumber)); err == nil && pos == q.TrackNumber {
			s.client.log.Debug("album position %d matched: %s", q.TrackNumber, track.Get(metadata.FieldTitle))
			return track.Clone(), nil
		}
	}

	// Some tracklists number from zero or skip positions; fall back to
	// plain 1-indexed list access.
	if idx := q.TrackNumber - 1; idx >= 0 && idx < len(tracks) {
		track := tracks[idx]
		s.client.log.Debug("album index %d matched: %s", q.TrackNumber, track.Get(metadata.FieldTitle))
		return track.Clone(), nil
	}

	return nil, source.ErrNoMatch
}

// fetchTracks searches for the release and pulls its full tracklist.
// A nil slice with nil error means the album was not found.
func (s *AlbumSource) fetchTracks(ctx context.Context, artist, album string) ([]metadata.Record, error) {
	queries := []string{
		fmt.Sprintf("artist:%q AND release:%q", artist, album),
		fmt.Sprintf("artist:%s AND release:%s", artist, album),
	}

	var releases []release
	for _, q := range queries {
		var sr releaseSearchResponse
		params := url.Values{"query": {q}, "limit": {"10"}}
		if err := s.client.getJSON(ctx, "/release", params, &sr); err != nil {
			return nil, err
		}
		if len(sr.Releases) > 0 {
			releases = sr.Releases
			break
		}
	}
	if len(releases) == 0 {
		return nil, nil
	}

	best, score := bestRelease(releases, artist, album)
	if score <= albumScoreThreshold {
		s.client.log.Debug("no release scored above %.1f for %s - %s", albumScoreThreshold, artist, album)
		return nil, nil
	}

	var detail releaseDetail
	params := url.Values{"inc": {"recordings+artist-credits+media"}}
	if err := s.client.getJSON(ctx, "/release/"+best.ID, params, &detail); err != nil {
		return nil, err
	}

	var tracks []metadata.Record
	for _, medium := range detail.Media {
		for _, t := range medium.Tracks {
			title := t.Title
			if t.Recording.Title != "" {
				title = t.Recording.Title
			}
			rec := metadata.Record{}
			rec.Set(metadata.FieldTitle, title)
			rec.Set(metadata.FieldArtist, artist)
			rec.Set(metadata.FieldAlbum, best.Title)
			rec.Set(metadata.FieldDate, best.Date)
			rec.Set(metadata.FieldAlbumID, best.ID)
			rec.Set(metadata.FieldRecordingID, t.Recording.ID)
			rec.Set(metadata.FieldTrackNumber, strconv.Itoa(t.Position))
			tracks = append(tracks, rec)
		}
	}

	s.client.log.Debug("found %d tracks for album %s - %s", len(tracks), artist, album)
	return tracks, nil
}

func bestRelease(releases []release, artist, album string) (release, float64) {
	var best release
	var bestScore float64
	for _, rel := range releases {
		albumScore := similarity.Ratio(album, rel.Title)
		var artistScore float64
		if len(rel.ArtistCredit) > 0 {
			artistScore = similarity.Ratio(artist, rel.ArtistCredit[0].Artist.Name)
		}
		if score := (albumScore + artistScore) / 2; score > bestScore {
			bestScore = score
			best = rel
		}
	}
	return best, bestScore
}

// albumCache remembers fetched tracklists, including albums that turned
// out not to exist (stored as a nil slice).
type albumCache struct {
	mu    sync.Mutex
	lists map[string][]metadata.Record
}

func newAlbumCache() *albumCache {
	return &albumCache{lists: make(map[string][]metadata.Record)}
}

func (a *albumCache) lookup(key string) ([]metadata.Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tracks, ok := a.lists[key]
	return tracks, ok
}

func (a *albumCache) store(key string, tracks []metadata.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lists[key] = tracks
}

// TrackSource searches for individual recordings, trying progressively
// looser query formulations until one clears its threshold.
type TrackSource struct {
	client *Client
	cache  *source.Cache
}

// NewTrackSource creates a TrackSource on the given client.
func NewTrackSource(client *Client) *TrackSource {
	return &TrackSource{client: client, cache: source.NewCache()}
}

func (s *TrackSource) Name() string { return "musicbrainz-track" }

// Resolve searches for the recording (q.Artist, q.Title), optionally
// scoped by q.Album. Outcomes, including misses and failed searches,
// are cached for the life of the process.
func (s *TrackSource) Resolve(ctx context.Context, q source.Query) (metadata.Record, error) {
	if q.Artist == "" || q.Title == "" {
		return nil, source.ErrNoMatch
	}

	key := source.Key("track", q.Artist, q.Album, q.Title)
	if rec, ok := s.cache.Lookup(key); ok {
		if rec == nil {
			return nil, source.ErrNoMatch
		}
		return rec.Clone(), nil
	}

	for i, formulation := range trackQueries(q.Artist, q.Album, q.Title) {
		var sr recordingSearchResponse
		params := url.Values{"query": {formulation}, "limit": {"10"}}
		if err := s.client.getJSON(ctx, "/recording", params, &sr); err != nil {
			s.client.log.Warn("track search %d failed for %s - %s: %v", i+1, q.Artist, q.Title, err)
			continue
		}

		best, score := bestRecording(sr.Recordings, q)
		threshold := trackScoreRelaxed
		if i == 0 {
			threshold = trackScoreStrict
		}
		if score >= threshold {
			rec := recordingRecord(best, q)
			s.cache.Store(key, rec)
			s.client.log.Debug("track found with formulation %d, score %.2f: %s", i+1, score, rec.Get(metadata.FieldTitle))
			return rec.Clone(), nil
		}
	}

	s.cache.StoreMiss(key)
	return nil, source.ErrNoMatch
}

// trackQueries builds the four search formulations in decreasing strictness.
func trackQueries(artist, album, title string) []string {
	quoted := fmt.Sprintf("artist:%q AND recording:%q", artist, title)
	loose := fmt.Sprintf("artist:%s AND recording:%s", artist, title)
	if album != "" {
		quoted += fmt.Sprintf(" AND release:%q", album)
		loose += fmt.Sprintf(" AND release:%s", album)
	}
	return []string{
		quoted,
		loose,
		fmt.Sprintf("artist:%s AND recording:%s", artist, title),
		fmt.Sprintf("%s %s", artist, title),
	}
}

func bestRecording(recordings []recording, q source.Query) (recording, float64) {
	var best recording
	var bestScore float64
	for _, rec := range recordings {
		titleScore := similarity.Ratio(q.Title, rec.Title)

		var artistScore float64
		if len(rec.ArtistCredit) > 0 {
			artistScore = similarity.Ratio(q.Artist, rec.ArtistCredit[0].Artist.Name)
		}

		var albumScore float64
		if q.Album != "" {
			for _, rel := range rec.Releases {
				if s := similarity.Ratio(q.Album, rel.Title); s > albumScore {
					albumScore = s
				}
			}
		}

		score := titleScore*titleWeight + artistScore*artistWeight + albumScore*albumWeight
		if score > bestScore {
			bestScore = score
			best = rec
		}
	}
	return best, bestScore
}

// recordingRecord maps a recording search hit onto a metadata record,
// falling back to the query's own values where the hit is silent.
func recordingRecord(rec recording, q source.Query) metadata.Record {
	out := metadata.Record{}
	out.Set(metadata.FieldRecordingID, rec.ID)
	out.Set(metadata.FieldTitle, rec.Title)
	if out.Get(metadata.FieldTitle) == "" {
		out.Set(metadata.FieldTitle, q.Title)
	}
	out.Set(metadata.FieldArtist, q.Artist)
	out.Set(metadata.FieldAlbum, q.Album)

	if len(rec.ArtistCredit) > 0 {
		out.Set(metadata.FieldArtistID, rec.ArtistCredit[0].Artist.ID)
		if name := rec.ArtistCredit[0].Artist.Name; name != "" {
			out.Set(metadata.FieldArtist, name)
		}
	}

	if len(rec.Releases) > 0 {
		rel := rec.Releases[0]
		out.Set(metadata.FieldAlbumID, rel.ID)
		if rel.Title != "" {
			out.Set(metadata.FieldAlbum, rel.Title)
		}
		out.Set(metadata.FieldDate, rel.Date)
	}

	return out
}

// MusicBrainz API response types

type releaseSearchResponse struct {
	Releases []release `json:"releases"`
}

type release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       string         `json:"status"`
	Date         string         `json:"date"`
	ArtistCredit []artistCredit `json:"artist-credit"`
}

type releaseDetail struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Date  string   `json:"date"`
	Media []medium `json:"media"`
}

type medium struct {
	Tracks []trackEntry `json:"tracks"`
}

type trackEntry struct {
	Position  int           `json:"position"`
	Title     string        `json:"title"`
	Recording recordingInfo `json:"recording"`
}

type recordingInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type recordingSearchResponse struct {
	Recordings []recording `json:"recordings"`
}

type recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	Releases     []release      `json:"releases"`
}

type artistCredit struct {
	Artist artistInfo `json:"artist"`
}

type artistInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

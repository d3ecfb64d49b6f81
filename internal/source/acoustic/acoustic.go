// Package acoustic identifies tracks by their audio content, using a
// Chromaprint fingerprint (fpcalc) looked up against the AcoustID
// database. It needs no usable filename at all, which makes it the
// first choice for generic names like "Track 01".
package acoustic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"flacify/internal/logger"
	"flacify/internal/metadata"
	"flacify/internal/source"
)

// scoreThreshold is the minimum AcoustID match confidence.
const scoreThreshold = 0.8

// Test seams for the external fpcalc binary.
var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// Source resolves tracks through fingerprint lookups. If the fpcalc
// binary turns out to be missing or broken, the source disables itself
// for the rest of the process.
type Source struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	cache      *source.Cache
	log        *logger.Logger

	probe    sync.Once
	mu       sync.Mutex
	disabled bool
}

// New creates an AcoustID source. An empty apiKey yields a source that
// reports ErrUnavailable for every lookup.
func New(apiKey string, log *logger.Logger) *Source {
	return &Source{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		apiURL:     "https://api.acoustid.org/v2/lookup",
		apiKey:     apiKey,
		cache:      source.NewCache(),
		log:        log,
	}
}

func (s *Source) Name() string { return "acoustid" }

func (s *Source) disable() {
	s.mu.Lock()
	s.disabled = true
	s.mu.Unlock()
}

func (s *Source) isDisabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

// Resolve fingerprints the file at q.Path and looks the print up on
// AcoustID. Outcomes are cached by file name and size.
func (s *Source) Resolve(ctx context.Context, q source.Query) (metadata.Record, error) {
	if s.apiKey == "" || q.Path == "" {
		return nil, source.ErrUnavailable
	}

	s.probe.Do(func() {
		if _, err := lookPath("fpcalc"); err != nil {
			s.log.Warn("fpcalc not found, audio fingerprinting disabled: %v", err)
			s.disable()
		}
	})
	if s.isDisabled() {
		return nil, source.ErrUnavailable
	}

	info, err := os.Stat(q.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", q.Path, err)
	}

	key := source.Key("fingerprint", filepath.Base(q.Path), strconv.FormatInt(info.Size(), 10))
	if rec, ok := s.cache.Lookup(key); ok {
		if rec == nil {
			return nil, source.ErrNoMatch
		}
		return rec.Clone(), nil
	}

	rec, err := s.identify(ctx, q.Path)
	if err != nil {
		s.log.Warn("fingerprint lookup failed for %s: %v", filepath.Base(q.Path), err)
		s.cache.StoreMiss(key)
		return nil, source.ErrNoMatch
	}
	if rec == nil {
		s.log.Debug("no high-confidence fingerprint match for %s", filepath.Base(q.Path))
		s.cache.StoreMiss(key)
		return nil, source.ErrNoMatch
	}

	s.cache.Store(key, rec)
	return rec.Clone(), nil
}

// identify runs fpcalc and queries AcoustID. A nil record with nil
// error means no result cleared the confidence threshold.
func (s *Source) identify(ctx context.Context, path string) (metadata.Record, error) {
	duration, fingerprint, err := s.fingerprint(ctx, path)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"client":      {s.apiKey},
		"duration":    {strconv.Itoa(int(duration))},
		"fingerprint": {fingerprint},
		"meta":        {"recordings releases"},
		"format":      {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create acoustid request: %w", err)
	}
	req.Header.Set("User-Agent", "flacify/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("acoustid request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("acoustid returned %d", resp.StatusCode)
	}

	var lr lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return nil, fmt.Errorf("failed to decode acoustid response: %w", err)
	}
	if lr.Status != "ok" {
		return nil, fmt.Errorf("acoustid status %q", lr.Status)
	}

	for _, result := range lr.Results {
		if result.Score <= scoreThreshold || len(result.Recordings) == 0 {
			continue
		}
		rec := recordingRecord(result.Recordings[0], result.Score, duration)
		s.log.Info("fingerprint identified: %s - %s (score %.2f)",
			rec.Get(metadata.FieldArtist), rec.Get(metadata.FieldTitle), result.Score)
		return rec, nil
	}
	return nil, nil
}

// fingerprint shells out to fpcalc for the file's Chromaprint and
// duration. A failure is local to the file: the caller caches it as a
// miss and the source stays live for the rest of the run.
func (s *Source) fingerprint(ctx context.Context, path string) (float64, string, error) {
	cmd := commandContext(ctx, "fpcalc", "-json", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return 0, "", fmt.Errorf("fpcalc failed: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	var fp struct {
		Duration    float64 `json:"duration"`
		Fingerprint string  `json:"fingerprint"`
	}
	if err := json.Unmarshal(output, &fp); err != nil {
		return 0, "", fmt.Errorf("failed to parse fpcalc output: %w", err)
	}
	if fp.Fingerprint == "" {
		return 0, "", fmt.Errorf("fpcalc produced an empty fingerprint")
	}
	return fp.Duration, fp.Fingerprint, nil
}

func recordingRecord(rec acoustidRecording, score, duration float64) metadata.Record {
	out := metadata.Record{}
	out.Set(metadata.FieldTitle, rec.Title)
	out.Set(metadata.FieldRecordingID, rec.ID)
	out.Set(metadata.FieldDuration, strconv.Itoa(int(duration)))
	out.Set(metadata.FieldAcoustIDScore, fmt.Sprintf("%.2f", score))

	if len(rec.Artists) > 0 {
		out.Set(metadata.FieldArtist, rec.Artists[0].Name)
		out.Set(metadata.FieldArtistID, rec.Artists[0].ID)
	}

	if len(rec.Releases) > 0 {
		rel := rec.Releases[0]
		out.Set(metadata.FieldAlbum, rel.Title)
		out.Set(metadata.FieldAlbumID, rel.ID)
		if rel.Date.Year > 0 {
			out.Set(metadata.FieldDate, rel.Date.String())
		}

		for _, medium := range rel.Mediums {
			for _, track := range medium.Tracks {
				if track.ID == rec.ID && track.Position > 0 {
					out.Set(metadata.FieldTrackNumber, strconv.Itoa(track.Position))
				}
			}
		}
	}

	return out
}

// AcoustID API response types

type lookupResponse struct {
	Status  string         `json:"status"`
	Results []lookupResult `json:"results"`
}

type lookupResult struct {
	Score      float64             `json:"score"`
	Recordings []acoustidRecording `json:"recordings"`
}

type acoustidRecording struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Artists  []acoustidArtist  `json:"artists"`
	Releases []acoustidRelease `json:"releases"`
}

type acoustidArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type acoustidRelease struct {
	ID      string           `json:"id"`
	Title   string           `json:"title"`
	Date    acoustidDate     `json:"date"`
	Mediums []acoustidMedium `json:"mediums"`
}

type acoustidDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

func (d acoustidDate) String() string {
	switch {
	case d.Month == 0:
		return strconv.Itoa(d.Year)
	case d.Day == 0:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}

type acoustidMedium struct {
	Tracks []acoustidTrack `json:"tracks"`
}

type acoustidTrack struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

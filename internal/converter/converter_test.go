package converter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flacify/internal/config"
	"flacify/internal/logger"
	"flacify/internal/resolver"
)

// fakeEncoder writes a marker file instead of running ffmpeg.
type fakeEncoder struct {
	err   error
	calls []string
}

func (f *fakeEncoder) Encode(ctx context.Context, input, output string) error {
	f.calls = append(f.calls, input)
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return err
	}
	return os.WriteFile(output, []byte("flac"), 0644)
}

func testConfig(outputDir string) config.Config {
	cfg := config.DefaultConfig()
	cfg.OutputDir = outputDir
	cfg.EnableMetadata = false
	cfg.EnableFingerprinting = false
	return cfg
}

func newTestConverter(t *testing.T, root string, cfg config.Config) (*Converter, *fakeEncoder) {
	t.Helper()
	cfg.DryRun = true // skip the ffmpeg dependency check in New
	c, err := New(root, cfg, logger.New(false))
	require.NoError(t, err)
	c.cfg.DryRun = false
	enc := &fakeEncoder{}
	c.enc = enc
	return c, enc
}

func seedTree(t *testing.T) string {
	root := t.TempDir()
	for _, rel := range []string{
		"Queen/A Night at the Opera (1975)/04 Bohemian Rhapsody.wav",
		"Queen/Greatest Hits/01 We Will Rock You.flac",
	} {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0644))
	}
	return root
}

func TestRun_ConvertsAndCopies(t *testing.T) {
	root := seedTree(t)
	out := filepath.Join(t.TempDir(), "flac")
	c, enc := newTestConverter(t, root, testConfig(out))

	var progress int
	stats, err := c.Run(context.Background(), Hooks{OnProgress: func() { progress++ }})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Converted)
	assert.Equal(t, 1, stats.CopiedFLAC)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 2, progress)
	assert.Len(t, enc.calls, 1)

	// WAV output gets a .flac extension and mirrors the tree layout.
	assert.FileExists(t, filepath.Join(out, "Queen", "A Night at the Opera (1975)", "04 Bohemian Rhapsody.flac"))
	// Existing FLAC is copied through untouched.
	assert.FileExists(t, filepath.Join(out, "Queen", "Greatest Hits", "01 We Will Rock You.flac"))
}

func TestRun_EncoderFailureCountsFileAsFailed(t *testing.T) {
	root := seedTree(t)
	c, enc := newTestConverter(t, root, testConfig(filepath.Join(t.TempDir(), "flac")))
	enc.err = errors.New("encode exploded")

	var warnings []string
	stats, err := c.Run(context.Background(), Hooks{OnWarning: func(msg string) { warnings = append(warnings, msg) }})
	require.NoError(t, err, "per-file failures never abort the run")

	assert.Equal(t, 1, stats.Failed, "only the WAV goes through the encoder")
	assert.Equal(t, 1, stats.CopiedFLAC)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "encode exploded")
}

func TestRun_DryRunTouchesNothing(t *testing.T) {
	root := seedTree(t)
	out := filepath.Join(t.TempDir(), "flac")
	cfg := testConfig(out)
	cfg.DryRun = true

	c, err := New(root, cfg, logger.New(false))
	require.NoError(t, err)

	stats, err := c.Run(context.Background(), Hooks{})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Total)
	assert.Zero(t, stats.Converted)
	assert.Zero(t, stats.Failed)
	assert.NoDirExists(t, out)
}

func TestRun_ContextCancellationStopsBetweenFiles(t *testing.T) {
	root := seedTree(t)
	c, _ := newTestConverter(t, root, testConfig(filepath.Join(t.TempDir(), "flac")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := c.Run(ctx, Hooks{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Converted)
}

func TestRun_TagFailureIsNotFatal(t *testing.T) {
	root := seedTree(t)
	cfg := testConfig(filepath.Join(t.TempDir(), "flac"))
	cfg.EnableMetadata = true
	c, _ := newTestConverter(t, root, cfg)
	// No sources wired: resolution falls straight through to the
	// path-derived fallback without touching the network.
	c.res = resolver.New(nil, nil, nil, nil, logger.New(false))

	stats, err := c.Run(context.Background(), Hooks{})
	require.NoError(t, err)

	// The fake files are not real audio, so tag writes fail, but the
	// conversions themselves still count as successes.
	assert.Equal(t, 1, stats.Converted)
	assert.Equal(t, 1, stats.CopiedFLAC)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 2, stats.TagsFailed)
}

func TestNew_RejectsMissingRoot(t *testing.T) {
	cfg := testConfig("out")
	cfg.DryRun = true
	_, err := New(filepath.Join(t.TempDir(), "nope"), cfg, logger.New(false))
	assert.ErrorContains(t, err, "does not exist")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, Stats{
		Total: 3, Converted: 2, CopiedFLAC: 1,
		TagsWritten: 3,
		Provenance:  map[string]int{"catalog": 2, "fallback": 1},
		Elapsed:     6 * time.Second,
	})

	out := buf.String()
	assert.Contains(t, out, "Conversion Summary")
	assert.Contains(t, out, "Metadata from catalog")
	assert.Contains(t, out, "Metadata from path fallback")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "Avg per file")
	assert.Contains(t, out, "2s", "6s over 3 files")
	assert.NotContains(t, out, "failed to convert")
}

// Package converter drives a conversion run: walking the source tree,
// encoding WAV files to FLAC, and resolving and writing metadata.
package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flacify/internal/config"
	"flacify/internal/encoder"
	"flacify/internal/logger"
	"flacify/internal/metadata"
	"flacify/internal/pathmeta"
	"flacify/internal/resolver"
	"flacify/internal/source"
	"flacify/internal/source/acoustic"
	"flacify/internal/source/catalog"
	"flacify/internal/source/lastfm"
	"flacify/internal/tagstore"
	"flacify/internal/walker"
	"flacify/pkg/utils"
)

// Hooks lets callers observe a run, for progress bars and web job
// streaming. All hooks are optional.
type Hooks struct {
	OnFilesFound func(total int)
	OnFile       func(relPath string)
	OnProgress   func()
	OnWarning    func(msg string)
}

// Stats summarizes one conversion run.
type Stats struct {
	Total       int
	Converted   int
	CopiedFLAC  int
	Failed      int
	TagsWritten int
	TagsFailed  int
	Provenance  map[string]int
	Elapsed     time.Duration
}

// fileEncoder abstracts the encoding step so tests can stub it.
type fileEncoder interface {
	Encode(ctx context.Context, input, output string) error
}

// Converter converts one source tree. It owns one resolver instance,
// and with it all source caches and rate-limiter state, for the run.
type Converter struct {
	cfg       config.Config
	log       *logger.Logger
	enc       fileEncoder
	res       *resolver.Resolver
	root      string
	outputDir string
}

// New creates a Converter for the tree rooted at root.
func New(root string, cfg config.Config, log *logger.Logger) (*Converter, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", root)
	}

	if !cfg.DryRun {
		if err := utils.CheckDependencies(); err != nil {
			return nil, err
		}
	}

	profile := encoder.ProfileHigh
	if cfg.CompatibilityMode {
		profile = encoder.ProfileCompatibility
	}

	client := catalog.NewClient(log)
	var acousticSrc source.Source
	if cfg.EnableFingerprinting {
		acousticSrc = acoustic.New(cfg.AcoustIDAPIKey, log)
	}

	outputDir := cfg.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(filepath.Dir(root), outputDir)
	}

	return &Converter{
		cfg: cfg,
		log: log,
		enc: encoder.New(profile, log),
		res: resolver.New(
			catalog.NewAlbumSource(client),
			catalog.NewTrackSource(client),
			acousticSrc,
			lastfm.New(cfg.LastfmAPIKey, log),
			log,
		),
		root:      root,
		outputDir: outputDir,
	}, nil
}

// OutputDir returns where converted files are written.
func (c *Converter) OutputDir() string { return c.outputDir }

// Run processes every audio file under the root, sequentially. A
// canceled context stops between files; already-converted files stay.
func (c *Converter) Run(ctx context.Context, hooks Hooks) (Stats, error) {
	start := time.Now()

	files, err := walker.Walk(c.root)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Total: len(files)}
	c.log.Info("found %d audio files under %s", len(files), c.root)
	if hooks.OnFilesFound != nil {
		hooks.OnFilesFound(len(files))
	}

	for _, f := range files {
		select {
		case <-ctx.Done():
			stats.Provenance = c.res.Counts()
			stats.Elapsed = time.Since(start)
			return stats, ctx.Err()
		default:
		}

		if hooks.OnFile != nil {
			hooks.OnFile(f.RelPath)
		}
		if err := c.processFile(ctx, f, &stats); err != nil {
			c.log.Error("failed: %s: %v", f.RelPath, err)
			stats.Failed++
			if hooks.OnWarning != nil {
				hooks.OnWarning(fmt.Sprintf("%s: %v", f.RelPath, err))
			}
		}
		if hooks.OnProgress != nil {
			hooks.OnProgress()
		}
	}

	stats.Provenance = c.res.Counts()
	stats.Elapsed = time.Since(start)
	return stats, nil
}

func (c *Converter) processFile(ctx context.Context, f walker.File, stats *Stats) error {
	outPath := c.outputPath(f)

	if c.cfg.DryRun {
		action := "copy"
		if f.NeedsConversion {
			action = "convert"
		}
		c.log.Info("[dry-run] would %s %s -> %s", action, f.RelPath, outPath)
		return nil
	}

	if f.NeedsConversion {
		c.log.Info("converting %s", f.RelPath)
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := c.enc.Encode(ctx, f.Path, outPath); err != nil {
			return err
		}
		stats.Converted++
	} else {
		c.log.Info("already FLAC, copying %s", f.RelPath)
		if _, err := os.Stat(outPath); os.IsNotExist(err) {
			if err := utils.CopyFile(f.Path, outPath); err != nil {
				return err
			}
		}
		stats.CopiedFLAC++
	}

	if c.cfg.EnableMetadata {
		c.applyMetadata(ctx, f, outPath, stats)
	}
	return nil
}

// applyMetadata resolves and writes tags for one converted file. Tag
// trouble is never fatal to the file: the audio is already converted.
func (c *Converter) applyMetadata(ctx context.Context, f walker.File, outPath string, stats *Stats) {
	pm, err := pathmeta.Parse(f.Path, c.root)
	if err != nil {
		c.log.Warn("could not derive path metadata for %s: %v", f.RelPath, err)
		stats.TagsFailed++
		return
	}

	existing, err := tagstore.Read(f.Path)
	if err != nil {
		c.log.Debug("no readable tags in %s: %v", f.RelPath, err)
		existing = nil
	}

	rec, provenance := c.res.Resolve(ctx, resolver.Request{
		Artist:      pm.Artist,
		Album:       pm.Album,
		Title:       pm.Title,
		TrackNumber: pm.TrackNo(),
		Generic:     pm.Generic,
		FilePath:    f.Path,
		Existing:    existing,
	})

	// The directory year fills in when no source supplied a date.
	if pm.Year != "" && !rec.Has(metadata.FieldDate) && !rec.Has(metadata.FieldYear) {
		rec.Set(metadata.FieldYear, pm.Year)
	}

	if err := tagstore.Write(outPath, rec); err != nil {
		c.log.Warn("could not write tags to %s: %v", outPath, err)
		stats.TagsFailed++
		return
	}

	c.log.Debug("tagged %s (%s): %s - %s", f.RelPath, provenance,
		rec.Get(metadata.FieldArtist), rec.Get(metadata.FieldTitle))
	stats.TagsWritten++
}

func (c *Converter) outputPath(f walker.File) string {
	rel := f.RelPath
	if f.NeedsConversion {
		rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".flac"
	}
	return filepath.Join(c.outputDir, rel)
}

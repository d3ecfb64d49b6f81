// Package encoder converts WAV audio to FLAC by shelling out to ffmpeg.
package encoder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"flacify/internal/logger"
)

// Profile selects the encoding quality trade-off.
type Profile string

const (
	// ProfileHigh keeps the full bit depth at maximum compression effort.
	ProfileHigh Profile = "high"
	// ProfileCompatibility reduces to 16-bit at moderate compression,
	// for players that choke on 24/32-bit FLAC.
	ProfileCompatibility Profile = "compatibility"
)

// Test seam for the external ffmpeg binary.
var commandContext = exec.CommandContext

// Encoder runs ffmpeg with a fixed quality profile.
type Encoder struct {
	profile Profile
	log     *logger.Logger
}

// New creates an encoder for the given profile.
func New(profile Profile, log *logger.Logger) *Encoder {
	return &Encoder{profile: profile, log: log}
}

// Encode converts input to a FLAC file at output and verifies the
// result is non-empty.
func (e *Encoder) Encode(ctx context.Context, input, output string) error {
	cmd := commandContext(ctx, "ffmpeg", encodeArgs(input, output, e.profile)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed for %s: %w (%s)", input, err, bytes.TrimSpace(stderr.Bytes()))
	}

	outInfo, err := os.Stat(output)
	if err != nil || outInfo.Size() == 0 {
		return fmt.Errorf("ffmpeg produced no output for %s", input)
	}

	if inInfo, err := os.Stat(input); err == nil && inInfo.Size() > 0 {
		ratio := (1 - float64(outInfo.Size())/float64(inInfo.Size())) * 100
		e.log.Debug("encoded %s (compression %.1f%%)", output, ratio)
	}
	return nil
}

func encodeArgs(input, output string, profile Profile) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-nostdin", "-i", input}
	if profile == ProfileCompatibility {
		args = append(args, "-compression_level", "8", "-sample_fmt", "s16")
	} else {
		args = append(args, "-compression_level", "12", "-sample_fmt", "s32")
	}
	return append(args, output)
}

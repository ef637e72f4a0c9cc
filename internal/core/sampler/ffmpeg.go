// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sampler extracts representative frames from uploaded media with
// FFmpeg. This file defines the command runner abstraction around the
// ffmpeg and ffprobe binaries so frame extraction stays testable without
// the binaries installed.
package sampler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes an external binary and returns its stdout. Production
// code uses ExecRunner; tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, bin string, args ...string) ([]byte, error)
}

// ExecRunner runs binaries through os/exec.
type ExecRunner struct{}

// Run executes the binary and returns stdout. On failure the error carries
// the trailing stderr output, which is where FFmpeg reports its problems.
func (ExecRunner) Run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// probeDuration asks ffprobe for the container duration in seconds.
func (s *Sampler) probeDuration(ctx context.Context, inputPath string) (float64, error) {
	out, err := s.runner.Run(ctx, s.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(out))
	// ffprobe prints "N/A" for streams it cannot time.
	if raw == "" || raw == "N/A" {
		return 0, nil
	}
	duration, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable ffprobe duration %q: %w", raw, err)
	}
	return duration, nil
}

// extractFrameArgs builds the ffmpeg invocation that grabs a single frame
// at the given offset, scaled to the configured width with an even height.
func (s *Sampler) extractFrameArgs(inputPath string, timestamp float64, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(timestamp, 'f', 3, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", s.cfg.ScaleWidth),
		"-f", "image2",
		"-y",
		outputPath,
	}
}

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
// FFmpeg. Videos are probed for duration, then a worker pool extracts one
// frame per evenly spaced timestamp. Still images pass through as a single
// frame without invoking FFmpeg. All temporary files are removed on every
// exit path.
package sampler

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/vizprompts/vizprompts/internal/cloud"
	"github.com/vizprompts/vizprompts/internal/core/model"
)

// UnsupportedMediaError reports an upload whose container is neither a
// supported video nor a supported image, or one FFmpeg cannot decode.
type UnsupportedMediaError struct {
	MIMEType string
	Err      error
}

func (e *UnsupportedMediaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unsupported media type %q: %v", e.MIMEType, e.Err)
	}
	return fmt.Sprintf("unsupported media type %q", e.MIMEType)
}

func (e *UnsupportedMediaError) Unwrap() error {
	return e.Err
}

// EmptyMediaError reports an upload that decodes to no usable content,
// such as a zero-byte file or a video with no playable duration.
type EmptyMediaError struct {
	Reason string
}

func (e *EmptyMediaError) Error() string {
	return fmt.Sprintf("empty media: %s", e.Reason)
}

// Sampler turns a validated media asset into an ordered list of frames.
type Sampler struct {
	runner  Runner
	cfg     cloud.FFmpeg
	workers int
}

// New constructs a Sampler that shells out to the configured FFmpeg
// binaries with the given worker pool size.
func New(cfg cloud.FFmpeg, workers int) *Sampler {
	return NewWithRunner(cfg, workers, ExecRunner{})
}

// NewWithRunner constructs a Sampler with a caller-supplied Runner. Used
// by tests to stub the FFmpeg binaries.
func NewWithRunner(cfg cloud.FFmpeg, workers int, runner Runner) *Sampler {
	if workers < 1 {
		workers = 1
	}
	return &Sampler{runner: runner, cfg: cfg, workers: workers}
}

// Timestamps computes the frame sampling offsets for a video of the given
// duration: strictly increasing offsets, evenly spaced from zero, at
// least minSpacing apart. Seeking to the exact container duration lands
// past the last frame's presentation timestamp and decodes nothing, so
// the final offset stops short of the end.
func Timestamps(duration float64, target int, minSpacing float64) []float64 {
	if target < 1 {
		target = 1
	}
	end := duration - minSpacing/2
	if minSpacing <= 0 {
		end = duration * 0.95
	}
	if end < 0 {
		end = 0
	}
	count := target
	if minSpacing > 0 {
		maxBySpacing := int(end/minSpacing) + 1
		if maxBySpacing < count {
			count = maxBySpacing
		}
	}
	if count < 1 {
		count = 1
	}
	out := make([]float64, count)
	if count == 1 {
		return out
	}
	step := end / float64(count-1)
	for i := range out {
		out[i] = step * float64(i)
	}
	return out
}

// Sample extracts frames from the asset. Images yield exactly one frame
// containing the original bytes. Videos yield up to the configured target
// count, fewer for clips too short to honor the minimum spacing.
func (s *Sampler) Sample(ctx context.Context, asset *model.MediaAsset) ([]*model.Frame, error) {
	if asset == nil || len(asset.Data) == 0 {
		return nil, &EmptyMediaError{Reason: "upload contains no data"}
	}

	kind, _ := filetype.Match(asset.Data)
	mime := asset.MIMEType
	if kind != types.Unknown {
		mime = kind.MIME.Value
	}

	switch {
	case strings.HasPrefix(mime, "image/"):
		return []*model.Frame{{
			Index:            0,
			TimestampSeconds: 0,
			MIMEType:         mime,
			Data:             asset.Data,
		}}, nil
	case strings.HasPrefix(mime, "video/"):
		return s.sampleVideo(ctx, asset, kind, mime)
	default:
		return nil, &UnsupportedMediaError{MIMEType: mime}
	}
}

// sampleVideo writes the asset to a temp file, probes its duration, and
// extracts one frame per computed timestamp through the worker pool.
// FFmpeg decode failures surface as UnsupportedMediaError.
func (s *Sampler) sampleVideo(ctx context.Context, asset *model.MediaAsset, kind types.Type, mime string) ([]*model.Frame, error) {
	ext := ".mp4"
	if kind != types.Unknown {
		ext = "." + kind.Extension
	}

	// FFmpeg keys some demuxing decisions off the file extension, so the
	// temp input keeps the sniffed one.
	input, err := os.CreateTemp("", "frame-sample-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp input: %w", err)
	}
	defer func() { _ = os.Remove(input.Name()) }()

	if _, err := input.Write(asset.Data); err != nil {
		_ = input.Close()
		return nil, fmt.Errorf("failed to write temp input: %w", err)
	}
	if err := input.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp input: %w", err)
	}

	duration, err := s.probeDuration(ctx, input.Name())
	if err != nil {
		return nil, &UnsupportedMediaError{MIMEType: mime, Err: err}
	}
	if duration <= 0 {
		return nil, &EmptyMediaError{Reason: "video has no playable duration"}
	}

	timestamps := Timestamps(duration, s.cfg.TargetFrameCount, s.cfg.MinSpacingSeconds)
	return s.extractFrames(ctx, input.Name(), timestamps, mime)
}

// frameJob and frameResult carry work in and out of the extraction pool.
type frameJob struct {
	index     int
	timestamp float64
}

type frameResult struct {
	frame *model.Frame
	err   error
}

// extractFrames runs the extraction worker pool and returns the frames in
// timestamp order.
func (s *Sampler) extractFrames(ctx context.Context, inputPath string, timestamps []float64, mime string) ([]*model.Frame, error) {
	var wg sync.WaitGroup
	jobs := make(chan frameJob, len(timestamps))
	results := make(chan frameResult, len(timestamps))

	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				frame, err := s.extractFrame(ctx, inputPath, j.index, j.timestamp, mime)
				results <- frameResult{frame: frame, err: err}
			}
		}()
	}

	for i, ts := range timestamps {
		jobs <- frameJob{index: i, timestamp: ts}
	}
	close(jobs)

	wg.Wait()
	close(results)

	frames := make([]*model.Frame, 0, len(timestamps))
	for r := range results {
		if r.err != nil {
			return nil, r.err
		}
		frames = append(frames, r.frame)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Index < frames[j].Index })
	return frames, nil
}

// extractFrame grabs a single JPEG frame at the given offset.
func (s *Sampler) extractFrame(ctx context.Context, inputPath string, index int, timestamp float64, mime string) (*model.Frame, error) {
	output, err := os.CreateTemp("", "frame-out-*.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp output: %w", err)
	}
	outputPath := output.Name()
	_ = output.Close()
	defer func() { _ = os.Remove(outputPath) }()

	if _, err := s.runner.Run(ctx, s.cfg.FFmpegPath, s.extractFrameArgs(inputPath, timestamp, outputPath)...); err != nil {
		return nil, &UnsupportedMediaError{
			MIMEType: mime,
			Err:      fmt.Errorf("frame extraction at %.3fs failed: %w", timestamp, err),
		}
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted frame: %w", err)
	}
	if len(data) == 0 {
		return nil, &EmptyMediaError{Reason: fmt.Sprintf("no frame decoded at %.3fs", timestamp)}
	}

	return &model.Frame{
		Index:            index,
		TimestampSeconds: timestamp,
		MIMEType:         "image/jpeg",
		Data:             data,
	}, nil
}

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

package sampler

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizprompts/vizprompts/internal/cloud"
	"github.com/vizprompts/vizprompts/internal/core/model"
)

// stubRunner fakes the ffprobe and ffmpeg binaries. The probe returns a
// canned duration; the extract call writes canned bytes to the output path
// ffmpeg would have produced.
type stubRunner struct {
	duration   string
	frameData  []byte
	probeErr   error
	extractErr error
	runCalls   int
}

func (r *stubRunner) Run(_ context.Context, bin string, args ...string) ([]byte, error) {
	r.runCalls++
	if strings.Contains(bin, "ffprobe") {
		if r.probeErr != nil {
			return nil, r.probeErr
		}
		return []byte(r.duration + "\n"), nil
	}
	if r.extractErr != nil {
		return nil, r.extractErr
	}
	outputPath := args[len(args)-1]
	if err := os.WriteFile(outputPath, r.frameData, 0o600); err != nil {
		return nil, err
	}
	return nil, nil
}

func testFFmpegConfig() cloud.FFmpeg {
	return cloud.FFmpeg{
		FFmpegPath:        "ffmpeg",
		FFprobePath:       "ffprobe",
		TargetFrameCount:  10,
		MinSpacingSeconds: 1.0,
		ScaleWidth:        640,
	}
}

func TestTimestampsEvenlySpaced(t *testing.T) {
	cases := []struct {
		name       string
		duration   float64
		target     int
		minSpacing float64
		wantCount  int
	}{
		{"long video caps at target", 120.0, 10, 1.0, 10},
		{"short clip honors spacing", 2.5, 10, 1.0, 3},
		{"sub-second clip yields one frame", 0.4, 10, 1.0, 1},
		{"near-exact fit", 9.0, 10, 1.0, 9},
		{"no spacing floor", 5.0, 4, 0, 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := Timestamps(tc.duration, tc.target, tc.minSpacing)
			require.Len(t, ts, tc.wantCount)
			assert.Equal(t, 0.0, ts[0])
			for i := 1; i < len(ts); i++ {
				assert.Greater(t, ts[i], ts[i-1], "timestamps must be strictly increasing")
				if tc.minSpacing > 0 {
					assert.GreaterOrEqual(t, ts[i]-ts[i-1], tc.minSpacing)
				}
			}
		})
	}
}

func TestTimestampsStopShortOfDuration(t *testing.T) {
	// A seek to the exact container duration decodes no frame, so the last
	// offset must land before the end of the clip.
	cases := []struct {
		duration   float64
		target     int
		minSpacing float64
	}{
		{120.0, 10, 1.0},
		{10.0, 10, 1.0},
		{2.5, 10, 1.0},
		{5.0, 4, 0},
	}
	for _, tc := range cases {
		ts := Timestamps(tc.duration, tc.target, tc.minSpacing)
		assert.Less(t, ts[len(ts)-1], tc.duration)
	}
}

func TestSampleImagePassesThrough(t *testing.T) {
	s := NewWithRunner(testFFmpegConfig(), 2, &stubRunner{})
	asset := &model.MediaAsset{
		Name:     "photo.png",
		MIMEType: "image/png",
		Category: model.MediaCategoryImage,
		Data:     []byte("not-really-a-png"),
	}

	frames, err := s.Sample(context.Background(), asset)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, 0, frames[0].Index)
	assert.Equal(t, "image/png", frames[0].MIMEType)
	assert.Equal(t, asset.Data, frames[0].Data)
}

func TestSampleVideoExtractsOrderedFrames(t *testing.T) {
	runner := &stubRunner{duration: "20.0", frameData: []byte("jpeg-bytes")}
	s := NewWithRunner(testFFmpegConfig(), 4, runner)
	asset := &model.MediaAsset{
		Name:     "clip.mp4",
		MIMEType: "video/mp4",
		Category: model.MediaCategoryVideo,
		Data:     []byte("fake-video-payload"),
	}

	frames, err := s.Sample(context.Background(), asset)
	require.NoError(t, err)
	require.Len(t, frames, 10)
	for i, frame := range frames {
		assert.Equal(t, i, frame.Index)
		assert.Equal(t, "image/jpeg", frame.MIMEType)
		assert.Equal(t, []byte("jpeg-bytes"), frame.Data)
	}
	assert.Equal(t, 0.0, frames[0].TimestampSeconds)
	assert.Less(t, frames[9].TimestampSeconds, 20.0)
}

func TestSampleShortVideoYieldsFewerFrames(t *testing.T) {
	runner := &stubRunner{duration: "2.5", frameData: []byte("jpeg-bytes")}
	s := NewWithRunner(testFFmpegConfig(), 2, runner)
	asset := &model.MediaAsset{MIMEType: "video/mp4", Data: []byte("fake-video-payload")}

	frames, err := s.Sample(context.Background(), asset)
	require.NoError(t, err)
	assert.Len(t, frames, 3)
}

func TestSampleEmptyUpload(t *testing.T) {
	s := NewWithRunner(testFFmpegConfig(), 2, &stubRunner{})

	_, err := s.Sample(context.Background(), &model.MediaAsset{MIMEType: "video/mp4"})
	var emptyErr *EmptyMediaError
	require.ErrorAs(t, err, &emptyErr)
}

func TestSampleUnsupportedContainer(t *testing.T) {
	s := NewWithRunner(testFFmpegConfig(), 2, &stubRunner{})
	asset := &model.MediaAsset{MIMEType: "application/pdf", Data: []byte("%PDF-fake")}

	_, err := s.Sample(context.Background(), asset)
	var unsupportedErr *UnsupportedMediaError
	require.ErrorAs(t, err, &unsupportedErr)
}

func TestSampleVideoWithoutDuration(t *testing.T) {
	runner := &stubRunner{duration: "N/A"}
	s := NewWithRunner(testFFmpegConfig(), 2, runner)
	asset := &model.MediaAsset{MIMEType: "video/mp4", Data: []byte("fake-video-payload")}

	_, err := s.Sample(context.Background(), asset)
	var emptyErr *EmptyMediaError
	require.ErrorAs(t, err, &emptyErr)
}

func TestSampleProbeFailureIsUnsupportedMedia(t *testing.T) {
	runner := &stubRunner{probeErr: errors.New("moov atom not found")}
	s := NewWithRunner(testFFmpegConfig(), 2, runner)
	asset := &model.MediaAsset{MIMEType: "video/mp4", Data: []byte("fake-video-payload")}

	_, err := s.Sample(context.Background(), asset)

	// A video container ffprobe cannot decode carries the same typed error
	// as an unrecognized MIME type.
	var unsupportedErr *UnsupportedMediaError
	require.ErrorAs(t, err, &unsupportedErr)
	assert.Equal(t, "video/mp4", unsupportedErr.MIMEType)
	assert.Contains(t, err.Error(), "moov atom not found")
}

func TestSampleExtractFailureIsUnsupportedMedia(t *testing.T) {
	runner := &stubRunner{duration: "20.0", extractErr: errors.New("invalid data found when processing input")}
	s := NewWithRunner(testFFmpegConfig(), 2, runner)
	asset := &model.MediaAsset{MIMEType: "video/mp4", Data: []byte("fake-video-payload")}

	_, err := s.Sample(context.Background(), asset)

	var unsupportedErr *UnsupportedMediaError
	require.ErrorAs(t, err, &unsupportedErr)
	assert.Contains(t, err.Error(), "invalid data found")
}

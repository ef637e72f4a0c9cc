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

// Package model defines the core data structures for the application.
// This file contains the types that describe the media entering the
// pipeline: the validated upload, the frames sampled from it, and the
// request shape sent to the inference gateway.
package model

import "google.golang.org/genai"

// MediaCategory identifies the broad class of an uploaded media asset.
type MediaCategory string

const (
	MediaCategoryVideo MediaCategory = "video"
	MediaCategoryImage MediaCategory = "image"
)

// MediaAsset is a validated upload held in memory for the duration of a
// run. The raw bytes are never mutated after validation.
type MediaAsset struct {
	Name     string        // The original file name of the upload.
	MIMEType string        // The declared MIME type (e.g., "video/mp4").
	Category MediaCategory // Whether the asset is a video or a still image.
	Data     []byte        // The raw bytes of the upload.
}

// Size returns the byte length of the asset.
func (a *MediaAsset) Size() int64 {
	return int64(len(a.Data))
}

// Frame is a single still image sampled from a media asset. Frames are
// immutable once produced and keep their sampling order via Index.
type Frame struct {
	Index            int     // Zero-based position within the sampled sequence.
	TimestampSeconds float64 // Offset into the source video; zero for images.
	MIMEType         string  // The image MIME type of the frame data.
	Data             []byte  // The encoded image bytes.
}

// AnalysisRequest carries everything the inference gateway needs for one
// model call: the instruction text, the ordered frames to attach as inline
// image parts, an optional output-shape hint, and an optional temperature
// override. A request with no frames is a text-only call.
type AnalysisRequest struct {
	Instruction string
	Frames      []*Frame
	Shape       *genai.Schema
	Temperature *float32
}

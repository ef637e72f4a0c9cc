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
// This file contains the analysis output types: the per-scene breakdown
// returned by the model, the immutable result a run produces, the views
// projected from it, and the record written to the history sink.
package model

import (
	"time"

	"google.golang.org/genai"
)

// SceneAnalysis is one scene of the model's breakdown of the media. Every
// field is required; the normalizer rejects responses with missing or
// empty values.
type SceneAnalysis struct {
	SceneNumber     int    `json:"scene_number"`
	Description     string `json:"description"`
	CameraDetails   string `json:"camera_details"`
	Lighting        string `json:"lighting"`
	ColorPalette    string `json:"color_palette"`
	TexturesDetails string `json:"textures_details"`
	Atmosphere      string `json:"atmosphere"`
	SoundDesign     string `json:"sound_design"`
}

// PromptResult is the finished product of a run: the narrative master
// prompt the model synthesizes from the scene descriptions, plus the
// ordered scene analyses themselves. The JSON tags mirror the analysis
// response schema, so the normalizer decodes model output straight into
// this struct. Results are immutable; an edit or refinement produces a
// new result that supersedes the old one.
type PromptResult struct {
	MasterPrompt string           `json:"master_prompt"`
	Scenes       []*SceneAnalysis `json:"scene_analysis"`
}

// ProjectedViews holds the three serialized renderings of a PromptResult.
// Views are recomputed from the result on demand and never stored.
type ProjectedViews struct {
	MasterPrompt    string `json:"masterPrompt"`
	Detailed        string `json:"detailed"`
	Structured      string `json:"structured"`
	SuperStructured string `json:"superStructured"`
}

// HistoryItem is the record appended to the history sink after a
// successful run. The sink is write-only from the pipeline's perspective.
type HistoryItem struct {
	ID            string           `json:"id"`
	Prompt        string           `json:"prompt"`
	Scenes        []*SceneAnalysis `json:"scenes"`
	Thumbnail     []byte           `json:"-"`
	ThumbnailMIME string           `json:"thumbnail_mime,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// sceneSchema is the shape of a single scene object in every model
// response, with all eight fields required.
func sceneSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"scene_number":     {Type: genai.TypeInteger},
			"description":      {Type: genai.TypeString},
			"camera_details":   {Type: genai.TypeString},
			"lighting":         {Type: genai.TypeString},
			"color_palette":    {Type: genai.TypeString},
			"textures_details": {Type: genai.TypeString},
			"atmosphere":       {Type: genai.TypeString},
			"sound_design":     {Type: genai.TypeString},
		},
		Required: []string{
			"scene_number",
			"description",
			"camera_details",
			"lighting",
			"color_palette",
			"textures_details",
			"atmosphere",
			"sound_design",
		},
	}
}

// ResultSchema returns the output-shape hint for the analysis call: an
// object carrying the synthesized master_prompt narrative and the
// scene_analysis array, both required. Constraining the decode keeps the
// responses parsable without fence stripping in the common case.
func ResultSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"master_prompt":  {Type: genai.TypeString},
			"scene_analysis": {Type: genai.TypeArray, Items: sceneSchema()},
		},
		Required: []string{"master_prompt", "scene_analysis"},
	}
}

// SceneListSchema returns the output-shape hint for the restructure call:
// a bare array of scene objects. The master prompt is the user's edited
// text and is not part of the response.
func SceneListSchema() *genai.Schema {
	return &genai.Schema{
		Type:  genai.TypeArray,
		Items: sceneSchema(),
	}
}

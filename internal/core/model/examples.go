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

// Package model defines the data structures for the application. This file
// provides factory functions for hardcoded example instances used for
// few-shot prompting. Embedding a concrete example of the expected JSON in
// the prompt keeps the model's output consistent and parsable.
package model

// GetExampleScene creates a sample SceneAnalysis used as a few-shot
// example in the restructure prompt. It shows the model the expected JSON
// structure and the level of cinematographic detail wanted in every field.
func GetExampleScene() *SceneAnalysis {
	return &SceneAnalysis{
		SceneNumber:     1,
		Description:     "A Formula 1 car tears through the streets of Nairobi at golden hour, weaving between matatus as market crowds scatter in slow motion.",
		CameraDetails:   "Low-mounted chase rig at 24mm, whip-panning to a drone pull-back that reveals the full length of Moi Avenue.",
		Lighting:        "Hard, low sun raking across the asphalt with deep shadows from the storefront awnings; practical neon signs starting to glow.",
		ColorPalette:    "Saturated reds and golds against dusty ochre buildings, with cool teal accents in the shadows.",
		TexturesDetails: "Heat shimmer off the tarmac, gritty dust kicked into the air, carbon-fibre weave visible on the car's rear wing.",
		Atmosphere:      "Electric and chaotic, a festival-day energy colliding with raw speed.",
		SoundDesign:     "A screaming V6 hybrid engine doppler-shifting past, layered over street vendors, drumming, and a low cinematic pulse.",
	}
}

// GetExampleResult creates a sample PromptResult wrapping the example
// scene. The analysis prompt embeds it to demonstrate the full response
// shape, master prompt narrative included.
func GetExampleResult() *PromptResult {
	return &PromptResult{
		MasterPrompt: "A hyper-kinetic street race through Nairobi at golden hour, shot like a prestige sports documentary.",
		Scenes:       []*SceneAnalysis{GetExampleScene()},
	}
}

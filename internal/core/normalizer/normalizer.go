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

// Package normalizer converts raw model output into validated domain
// objects. Models wrap JSON in markdown fences more often than not, so the
// normalizer strips the fence, parses the body, and validates that every
// scene carries the full required field set. Failures are reported as a
// typed *Error carrying both a diagnostic and the raw text; the normalizer
// never panics on malformed input.
package normalizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vizprompts/vizprompts/internal/core/model"
)

// fencePattern matches a full markdown code fence with an optional
// language tag, capturing the body.
var fencePattern = regexp.MustCompile("(?s)^```(?:[a-zA-Z0-9]+)?[ \t]*\r?\n?(.*?)\r?\n?[ \t]*```$")

// Error is the typed failure result for all normalization operations. Raw
// preserves the original model output for diagnostics.
type Error struct {
	Reason string
	Raw    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalization failed: %s", e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StripFence removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace. Unfenced input is returned trimmed.
func StripFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// Scenes parses raw model output into a validated scene list. The body
// may be a bare JSON array or an object wrapping the array under a
// "scene_analysis" or "scenes" key.
func Scenes(raw string) ([]*model.SceneAnalysis, error) {
	body := StripFence(raw)
	if body == "" {
		return nil, &Error{Reason: "empty response", Raw: raw}
	}

	var scenes []*model.SceneAnalysis
	if err := json.Unmarshal([]byte(body), &scenes); err != nil {
		var wrapper struct {
			SceneAnalysis []*model.SceneAnalysis `json:"scene_analysis"`
			Scenes        []*model.SceneAnalysis `json:"scenes"`
		}
		if wrapErr := json.Unmarshal([]byte(body), &wrapper); wrapErr != nil {
			return nil, &Error{Reason: "response is not a JSON scene list", Raw: raw, Err: err}
		}
		scenes = wrapper.SceneAnalysis
		if scenes == nil {
			scenes = wrapper.Scenes
		}
		if scenes == nil {
			return nil, &Error{Reason: "response is not a JSON scene list", Raw: raw, Err: err}
		}
	}

	if err := validateScenes(scenes, raw); err != nil {
		return nil, err
	}
	return scenes, nil
}

// Result parses raw analysis output into a PromptResult: an object
// carrying the master_prompt narrative the model synthesized from the
// scene descriptions and the scene_analysis array. Both are required.
func Result(raw string) (*model.PromptResult, error) {
	body := StripFence(raw)
	if body == "" {
		return nil, &Error{Reason: "empty response", Raw: raw}
	}

	var result model.PromptResult
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		return nil, &Error{Reason: "response is not a JSON analysis object", Raw: raw, Err: err}
	}
	if strings.TrimSpace(result.MasterPrompt) == "" {
		return nil, &Error{Reason: "response is missing the master_prompt narrative", Raw: raw}
	}
	if err := validateScenes(result.Scenes, raw); err != nil {
		return nil, err
	}
	return &result, nil
}

// validateScenes checks a decoded scene list for emptiness, null entries,
// and missing fields.
func validateScenes(scenes []*model.SceneAnalysis, raw string) error {
	if len(scenes) == 0 {
		return &Error{Reason: "response contains no scenes", Raw: raw}
	}
	for i, scene := range scenes {
		if scene == nil {
			return &Error{Reason: fmt.Sprintf("scene at position %d is null", i), Raw: raw}
		}
		if reason := validateScene(scene); reason != "" {
			return &Error{Reason: fmt.Sprintf("scene at position %d: %s", i, reason), Raw: raw}
		}
	}
	return nil
}

// Text normalizes a text-only response, such as a refinement rewrite. The
// only requirements are fence stripping and non-emptiness; no JSON
// validation applies.
func Text(raw string) (string, error) {
	body := StripFence(raw)
	if body == "" {
		return "", &Error{Reason: "empty text response", Raw: raw}
	}
	return body, nil
}

// validateScene reports the first missing requirement of a scene, or an
// empty string when the scene is complete.
func validateScene(scene *model.SceneAnalysis) string {
	if scene.SceneNumber < 1 {
		return "missing or invalid scene_number"
	}
	fields := map[string]string{
		"description":      scene.Description,
		"camera_details":   scene.CameraDetails,
		"lighting":         scene.Lighting,
		"color_palette":    scene.ColorPalette,
		"textures_details": scene.TexturesDetails,
		"atmosphere":       scene.Atmosphere,
		"sound_design":     scene.SoundDesign,
	}
	for _, name := range []string{"description", "camera_details", "lighting", "color_palette", "textures_details", "atmosphere", "sound_design"} {
		if strings.TrimSpace(fields[name]) == "" {
			return fmt.Sprintf("missing required field %q", name)
		}
	}
	return ""
}

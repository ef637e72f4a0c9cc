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

// Package projector renders a PromptResult into its three serialized
// views. Projection is pure: the same result always yields byte-identical
// views, and the input is never mutated. Views are recomputed on demand
// rather than stored.
package projector

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vizprompts/vizprompts/internal/core/model"
)

// sceneDetail is a scene as it appears inside the superStructured view:
// the full field set minus the scene_number, which becomes the map key.
type sceneDetail struct {
	Description     string `json:"description"`
	CameraDetails   string `json:"camera_details"`
	Lighting        string `json:"lighting"`
	ColorPalette    string `json:"color_palette"`
	TexturesDetails string `json:"textures_details"`
	Atmosphere      string `json:"atmosphere"`
	SoundDesign     string `json:"sound_design"`
}

// superStructured is the top-level shape of the superStructured view.
type superStructured struct {
	MasterPrompt string                 `json:"master_prompt"`
	Scenes       map[string]sceneDetail `json:"scenes"`
}

// Project renders the three views of a result:
//
//   - detailed: the full scene list as a JSON array.
//   - structured: the first scene as a single JSON object, or an empty
//     object when the result has no scenes.
//   - superStructured: the master prompt plus a map of scene_<n> keys to
//     scene bodies. When scene numbers collide, the later scene wins.
func Project(result *model.PromptResult) (*model.ProjectedViews, error) {
	if result == nil {
		return nil, errors.New("cannot project a nil result")
	}

	scenes := result.Scenes
	if scenes == nil {
		scenes = []*model.SceneAnalysis{}
	}

	detailed, err := json.MarshalIndent(scenes, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render detailed view: %w", err)
	}

	structured := []byte("{}")
	if len(result.Scenes) > 0 {
		structured, err = json.MarshalIndent(result.Scenes[0], "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to render structured view: %w", err)
		}
	}

	keyed := superStructured{
		MasterPrompt: result.MasterPrompt,
		Scenes:       make(map[string]sceneDetail, len(result.Scenes)),
	}
	for _, scene := range result.Scenes {
		keyed.Scenes[fmt.Sprintf("scene_%d", scene.SceneNumber)] = sceneDetail{
			Description:     scene.Description,
			CameraDetails:   scene.CameraDetails,
			Lighting:        scene.Lighting,
			ColorPalette:    scene.ColorPalette,
			TexturesDetails: scene.TexturesDetails,
			Atmosphere:      scene.Atmosphere,
			SoundDesign:     scene.SoundDesign,
		}
	}
	// encoding/json sorts map keys, so the rendering is deterministic.
	super, err := json.MarshalIndent(keyed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render superStructured view: %w", err)
	}

	return &model.ProjectedViews{
		MasterPrompt:    result.MasterPrompt,
		Detailed:        string(detailed),
		Structured:      string(structured),
		SuperStructured: string(super),
	}, nil
}

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

package normalizer

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizprompts/vizprompts/internal/core/model"
)

func sceneJSON(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal([]*model.SceneAnalysis{model.GetExampleScene()})
	require.NoError(t, err)
	return string(raw)
}

func TestStripFenceVariants(t *testing.T) {
	body := `{"scene_number": 1}`
	cases := []struct {
		name string
		in   string
	}{
		{"no fence", body},
		{"plain fence", "```\n" + body + "\n```"},
		{"json tag", "```json\n" + body + "\n```"},
		{"tag no newline", "```json " + body + "```"},
		{"surrounding whitespace", "  \n```json\n" + body + "\n```  \n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, body, StripFence(tc.in))
		})
	}
}

func TestStripFenceKeepsInnerBackticks(t *testing.T) {
	body := "use `code` sparingly"
	assert.Equal(t, body, StripFence("```\n"+body+"\n```"))
}

func TestScenesParsesFencedAndBareEqually(t *testing.T) {
	raw := sceneJSON(t)

	bare, err := Scenes(raw)
	require.NoError(t, err)
	fenced, err := Scenes("```json\n" + raw + "\n```")
	require.NoError(t, err)

	assert.Equal(t, bare, fenced)
	require.Len(t, bare, 1)
	assert.Equal(t, 1, bare[0].SceneNumber)
}

func TestScenesAcceptsWrapperObject(t *testing.T) {
	for _, key := range []string{"scenes", "scene_analysis"} {
		t.Run(key, func(t *testing.T) {
			raw := fmt.Sprintf(`{%q: %s}`, key, sceneJSON(t))

			scenes, err := Scenes(raw)
			require.NoError(t, err)
			assert.Len(t, scenes, 1)
		})
	}
}

func TestScenesRejectsInvalidJSON(t *testing.T) {
	_, err := Scenes("the model wrote prose instead")
	var normErr *Error
	require.ErrorAs(t, err, &normErr)
	assert.Equal(t, "the model wrote prose instead", normErr.Raw)
}

func TestScenesRejectsEmptyList(t *testing.T) {
	_, err := Scenes("[]")
	var normErr *Error
	require.ErrorAs(t, err, &normErr)
	assert.Contains(t, normErr.Reason, "no scenes")
}

func TestScenesRejectsMissingField(t *testing.T) {
	scene := model.GetExampleScene()
	scene.Lighting = "  "
	raw, err := json.Marshal([]*model.SceneAnalysis{scene})
	require.NoError(t, err)

	_, err = Scenes(string(raw))
	var normErr *Error
	require.ErrorAs(t, err, &normErr)
	assert.Contains(t, normErr.Reason, "lighting")
}

func TestScenesRejectsInvalidSceneNumber(t *testing.T) {
	scene := model.GetExampleScene()
	scene.SceneNumber = 0
	raw, err := json.Marshal([]*model.SceneAnalysis{scene})
	require.NoError(t, err)

	_, err = Scenes(string(raw))
	var normErr *Error
	require.ErrorAs(t, err, &normErr)
	assert.Contains(t, normErr.Reason, "scene_number")
}

func TestResultParsesAnalysisObject(t *testing.T) {
	example := model.GetExampleResult()
	raw, err := json.Marshal(example)
	require.NoError(t, err)

	result, err := Result(string(raw))
	require.NoError(t, err)

	// The master prompt is the model's synthesized narrative, not a fixed
	// string.
	assert.Equal(t, example.MasterPrompt, result.MasterPrompt)
	require.Len(t, result.Scenes, 1)
	assert.Equal(t, example.Scenes[0].Description, result.Scenes[0].Description)
}

func TestResultParsesFencedObject(t *testing.T) {
	raw, err := json.Marshal(model.GetExampleResult())
	require.NoError(t, err)

	result, err := Result("```json\n" + string(raw) + "\n```")
	require.NoError(t, err)
	assert.NotEmpty(t, result.MasterPrompt)
}

func TestResultRejectsMissingMasterPrompt(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"absent key", fmt.Sprintf(`{"scene_analysis": %s}`, sceneJSON(t))},
		{"blank narrative", fmt.Sprintf(`{"master_prompt": "  ", "scene_analysis": %s}`, sceneJSON(t))},
		{"bare scene array", sceneJSON(t)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Result(tc.raw)
			var normErr *Error
			require.ErrorAs(t, err, &normErr)
		})
	}
}

func TestResultRejectsMissingScenes(t *testing.T) {
	_, err := Result(`{"master_prompt": "a narrative", "scene_analysis": []}`)
	var normErr *Error
	require.ErrorAs(t, err, &normErr)
	assert.Contains(t, normErr.Reason, "no scenes")
}

func TestTextStripsFenceOnly(t *testing.T) {
	out, err := Text("```\nA rewritten master prompt.\n```")
	require.NoError(t, err)
	assert.Equal(t, "A rewritten master prompt.", out)

	// Text-only normalization never requires JSON.
	out, err = Text("plain prose, not JSON")
	require.NoError(t, err)
	assert.Equal(t, "plain prose, not JSON", out)
}

func TestTextRejectsEmpty(t *testing.T) {
	_, err := Text("```json\n\n```")
	var normErr *Error
	require.ErrorAs(t, err, &normErr)
}

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

package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/vizprompts/vizprompts/internal/cloud"
	"github.com/vizprompts/vizprompts/internal/core/model"
)

// fakeCaller records the requests the gateway sends and plays back canned
// responses.
type fakeCaller struct {
	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
	response     *genai.GenerateContentResponse
	err          error
}

func (f *fakeCaller) GenerateContent(_ context.Context, modelName string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.lastModel = modelName
	f.lastContents = contents
	f.lastConfig = config
	return f.response, f.err
}

func textResponse(texts ...string) *genai.GenerateContentResponse {
	parts := make([]*genai.Part, 0, len(texts))
	for _, text := range texts {
		parts = append(parts, &genai.Part{Text: text})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: parts}},
		},
	}
}

func newTestGateway(caller *fakeCaller) *Gateway {
	base := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.4),
		ResponseMIMEType: "text/plain",
	}
	return New(cloud.NewQuotaAwareModel(base, "test-model", caller, 100))
}

func TestGenerateAttachesFramesInOrder(t *testing.T) {
	caller := &fakeCaller{response: textResponse("a scene breakdown")}
	g := newTestGateway(caller)

	frames := []*model.Frame{
		{Index: 0, MIMEType: "image/jpeg", Data: []byte("frame-0")},
		{Index: 1, MIMEType: "image/jpeg", Data: []byte("frame-1")},
		{Index: 2, MIMEType: "image/jpeg", Data: []byte("frame-2")},
	}
	out, err := g.Generate(context.Background(), &model.AnalysisRequest{
		Instruction: "describe the scenes",
		Frames:      frames,
	})
	require.NoError(t, err)
	assert.Equal(t, "a scene breakdown", out)

	require.Len(t, caller.lastContents, 1)
	parts := caller.lastContents[0].Parts
	require.Len(t, parts, 4)
	assert.Equal(t, "describe the scenes", parts[0].Text)
	for i, frame := range frames {
		require.NotNil(t, parts[i+1].InlineData)
		assert.Equal(t, frame.Data, parts[i+1].InlineData.Data)
	}
	assert.Equal(t, "test-model", caller.lastModel)
}

func TestGenerateAppliesShapeAndTemperature(t *testing.T) {
	caller := &fakeCaller{response: textResponse("[]")}
	g := newTestGateway(caller)

	_, err := g.Generate(context.Background(), &model.AnalysisRequest{
		Instruction: "structure this",
		Shape:       model.SceneListSchema(),
		Temperature: genai.Ptr[float32](0.9),
	})
	require.NoError(t, err)

	require.NotNil(t, caller.lastConfig)
	assert.Equal(t, "application/json", caller.lastConfig.ResponseMIMEType)
	require.NotNil(t, caller.lastConfig.ResponseSchema)
	assert.Equal(t, genai.TypeArray, caller.lastConfig.ResponseSchema.Type)
	assert.Equal(t, float32(0.9), *caller.lastConfig.Temperature)
}

func TestGenerateLeavesBaseConfigAlone(t *testing.T) {
	caller := &fakeCaller{response: textResponse("ok")}
	g := newTestGateway(caller)

	_, err := g.Generate(context.Background(), &model.AnalysisRequest{
		Instruction: "plain text call",
		Shape:       model.SceneListSchema(),
	})
	require.NoError(t, err)

	// The per-request copy must not leak the schema into the base config.
	assert.Nil(t, g.model.GenerativeContentConfig.ResponseSchema)
	assert.Equal(t, "text/plain", g.model.GenerativeContentConfig.ResponseMIMEType)
}

func TestGenerateConcatenatesCandidateParts(t *testing.T) {
	caller := &fakeCaller{response: textResponse("part one, ", "part two")}
	g := newTestGateway(caller)

	out, err := g.Generate(context.Background(), &model.AnalysisRequest{Instruction: "go"})
	require.NoError(t, err)
	assert.Equal(t, "part one, part two", out)
}

func TestGenerateBackendUnavailable(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection reset")}
	g := newTestGateway(caller)

	_, err := g.Generate(context.Background(), &model.AnalysisRequest{Instruction: "go"})
	var unavailable *BackendUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, unavailable.Error(), "connection reset")
}

func TestGenerateBackendRefusal(t *testing.T) {
	caller := &fakeCaller{response: &genai.GenerateContentResponse{}}
	g := newTestGateway(caller)

	_, err := g.Generate(context.Background(), &model.AnalysisRequest{Instruction: "go"})
	var refusal *BackendRefusalError
	require.ErrorAs(t, err, &refusal)
}

func TestGenerateEmptyTextIsRefusal(t *testing.T) {
	caller := &fakeCaller{response: textResponse("   \n")}
	g := newTestGateway(caller)

	_, err := g.Generate(context.Background(), &model.AnalysisRequest{Instruction: "go"})
	var refusal *BackendRefusalError
	require.ErrorAs(t, err, &refusal)
}

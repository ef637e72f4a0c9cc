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

package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vizprompts/vizprompts/internal/cloud"
	"github.com/vizprompts/vizprompts/internal/core/commands"
	"github.com/vizprompts/vizprompts/internal/core/cor"
	"github.com/vizprompts/vizprompts/internal/core/model"
	test "github.com/vizprompts/vizprompts/internal/testutil"
)

type chainSampler struct {
	frames []*model.Frame
	err    error
}

func (s *chainSampler) Sample(_ context.Context, _ *model.MediaAsset) ([]*model.Frame, error) {
	return s.frames, s.err
}

type chainGenerator struct {
	response string
	err      error
	request  *model.AnalysisRequest
}

func (g *chainGenerator) Generate(_ context.Context, req *model.AnalysisRequest) (string, error) {
	g.request = req
	return g.response, g.err
}

func workflowConfig() *cloud.Config {
	cfg := cloud.NewConfig()
	cfg.PromptTemplates.Analysis = "Describe the {{.FRAME_COUNT}} frames shaped like {{.EXAMPLE_JSON}}"
	return cfg
}

func executePipeline(t *testing.T, sampler commands.Sampler, generator commands.Generator) cor.Context {
	t.Helper()
	pipeline := NewPromptExtractionPipeline(workflowConfig(), sampler, generator, nil)

	chainCtx := cor.NewBaseContext()
	t.Cleanup(chainCtx.Close)
	chainCtx.SetContext(context.Background())
	chainCtx.Add(cor.CtxIn, &model.MediaAsset{
		Name:     "clip.mp4",
		MIMEType: "video/mp4",
		Data:     []byte("bytes"),
	})

	pipeline.Execute(chainCtx)
	return chainCtx
}

func TestPipelinePublishesResultAndViews(t *testing.T) {
	sampler := &chainSampler{frames: []*model.Frame{{Index: 0, MIMEType: "image/jpeg", Data: []byte("jpg")}}}
	generator := &chainGenerator{response: test.GetTestAnalysisResponseText()}

	chainCtx := executePipeline(t, sampler, generator)
	require.False(t, chainCtx.HasErrors())

	result, ok := chainCtx.Get(commands.GetResultParameterName()).(*model.PromptResult)
	require.True(t, ok)
	// The master prompt comes from the model's response, not configuration.
	assert.Equal(t, model.GetExampleResult().MasterPrompt, result.MasterPrompt)
	require.Len(t, result.Scenes, 1)

	views, ok := chainCtx.Get(commands.GetViewsParameterName()).(*model.ProjectedViews)
	require.True(t, ok)
	assert.Contains(t, views.SuperStructured, `"scene_1"`)

	frames, ok := chainCtx.Get(commands.GetFramesParameterName()).([]*model.Frame)
	require.True(t, ok)
	assert.Len(t, frames, 1)

	// The analysis prompt carries the rendered frame count.
	assert.Contains(t, generator.request.Instruction, "1 frames")
	assert.NotNil(t, generator.request.Shape)
}

func TestPipelineAcceptsFencedResponse(t *testing.T) {
	sampler := &chainSampler{frames: []*model.Frame{{MIMEType: "image/jpeg", Data: []byte("jpg")}}}
	generator := &chainGenerator{response: test.GetTestFencedResponseText()}

	chainCtx := executePipeline(t, sampler, generator)

	require.False(t, chainCtx.HasErrors())
	result, ok := chainCtx.Get(commands.GetResultParameterName()).(*model.PromptResult)
	require.True(t, ok)
	assert.Len(t, result.Scenes, 1)
}

func TestPipelineStopsOnSamplerError(t *testing.T) {
	samplerErr := errors.New("probe failed")
	sampler := &chainSampler{err: samplerErr}
	generator := &chainGenerator{}

	chainCtx := executePipeline(t, sampler, generator)

	require.True(t, chainCtx.HasErrors())
	assert.ErrorIs(t, chainCtx.GetErrors()["sample-frames"], samplerErr)
	assert.Nil(t, generator.request)
	assert.Nil(t, chainCtx.Get(commands.GetViewsParameterName()))
}

func TestPipelineRecordsNormalizationError(t *testing.T) {
	sampler := &chainSampler{frames: []*model.Frame{{MIMEType: "image/jpeg", Data: []byte("jpg")}}}
	generator := &chainGenerator{response: "I cannot describe this video."}

	chainCtx := executePipeline(t, sampler, generator)

	require.True(t, chainCtx.HasErrors())
	assert.Error(t, chainCtx.GetErrors()["normalize-response"])
	assert.Nil(t, chainCtx.Get(commands.GetResultParameterName()))
}

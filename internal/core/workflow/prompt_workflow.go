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

// Package workflow defines the high-level business logic orchestrations,
// combining pipeline commands into coherent chains. This file implements
// the prompt extraction workflow: the path from a validated upload to a
// projected set of prompt views.
package workflow

import (
	"text/template"

	"github.com/vizprompts/vizprompts/internal/cloud"
	"github.com/vizprompts/vizprompts/internal/core/commands"
	"github.com/vizprompts/vizprompts/internal/core/cor"
)

// PromptExtractionWorkflow orchestrates the analysis of one uploaded
// media asset. It is structured as a Chain of Responsibility (cor.Chain)
// whose commands archive the upload, sample it into frames, generate the
// scene analysis, normalize the response, and project the result into its
// serialized views.
//
// The workflow is stateless; all per-run state travels in the cor.Context
// the orchestrator passes to Execute.
type PromptExtractionWorkflow struct {
	cor.BaseCommand
	config           *cloud.Config
	sampler          commands.Sampler
	generator        commands.Generator
	archive          commands.Archiver
	analysisTemplate *template.Template
	chain            cor.Chain
}

// Execute runs the extraction pipeline by invoking the underlying chain.
func (w *PromptExtractionWorkflow) Execute(context cor.Context) {
	w.chain.Execute(context)
}

// initializeChain builds the sequence of commands that make up the
// workflow. The output of each command pipes into the next; the frames,
// result, and views are additionally published under well-known parameter
// names so the orchestrator can read them after the chain completes.
func (w *PromptExtractionWorkflow) initializeChain() {
	out := cor.NewBaseChain(w.GetName())

	// Step 1: Archive the raw upload when an archive bucket is configured.
	// Archive failures never stop the pipeline.
	out.AddCommand(commands.NewUploadArchiver("archive-upload", w.archive))

	// Step 2: Sample the media into an ordered set of frames. Images pass
	// through as a single frame; videos are probed and sampled with FFmpeg.
	out.AddCommand(commands.NewFrameSampler("sample-frames", w.sampler))

	// Step 3: Send the frames to the generative model with the analysis
	// prompt, constrained to the result schema so the response carries the
	// synthesized master prompt alongside the scene breakdown.
	out.AddCommand(commands.NewPromptGenerator("analyze-frames", w.generator, w.analysisTemplate))

	// Step 4: Strip fences, decode, and validate the response into a
	// PromptResult.
	out.AddCommand(commands.NewPromptNormalizer("normalize-response"))

	// Step 5: Render the result into its detailed, structured, and
	// superStructured views.
	out.AddCommand(commands.NewPromptProjector("project-views"))

	w.chain = out
}

// NewPromptExtractionPipeline is the constructor for the
// PromptExtractionWorkflow. It compiles the analysis prompt template and
// initializes the command chain. The archive may be nil.
func NewPromptExtractionPipeline(
	config *cloud.Config,
	sampler commands.Sampler,
	generator commands.Generator,
	archive commands.Archiver) *PromptExtractionWorkflow {

	analysisTemplate, err := template.New("analysis-template").Parse(config.PromptTemplates.Analysis)
	if err != nil {
		panic(err)
	}

	pipeline := &PromptExtractionWorkflow{
		BaseCommand:      *cor.NewBaseCommand("prompt-extraction-pipeline"),
		config:           config,
		sampler:          sampler,
		generator:        generator,
		archive:          archive,
		analysisTemplate: analysisTemplate,
	}
	pipeline.initializeChain()
	return pipeline
}

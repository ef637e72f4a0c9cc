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

// Package commands provides the concrete implementations of the Chain of
// Responsibility (COR) pattern's Command interface. This file defines the
// command that sends the sampled frames to the generative model and pipes
// the raw response text down the chain.
package commands

import (
	"bytes"
	goctx "context"
	"encoding/json"
	"text/template"

	"github.com/vizprompts/vizprompts/internal/core/cor"
	"github.com/vizprompts/vizprompts/internal/core/model"
)

// Generator performs one model call. The inference gateway satisfies it.
type Generator interface {
	Generate(ctx goctx.Context, req *model.AnalysisRequest) (string, error)
}

// PromptGenerator renders the analysis prompt from its template, attaches
// the frames, and requests an analysis constrained to the result schema:
// the scene breakdown plus the master prompt narrative the model
// synthesizes from it.
type PromptGenerator struct {
	cor.BaseCommand
	generator      Generator
	promptTemplate *template.Template
}

// NewPromptGenerator is the constructor for the PromptGenerator command.
func NewPromptGenerator(name string, generator Generator, prompt *template.Template) *PromptGenerator {
	return &PromptGenerator{
		BaseCommand:    *cor.NewBaseCommand(name),
		generator:      generator,
		promptTemplate: prompt,
	}
}

// Execute generates the scene analysis for the piped frames.
func (p *PromptGenerator) Execute(context cor.Context) {
	frames := context.Get(p.GetInputParam()).([]*model.Frame)
	EmitProgress(context, "analyzing", 30)

	exampleJson, _ := json.Marshal(model.GetExampleResult())
	vocabulary := map[string]interface{}{
		"FRAME_COUNT":  len(frames),
		"EXAMPLE_JSON": string(exampleJson),
	}

	var doc bytes.Buffer
	if err := p.promptTemplate.Execute(&doc, vocabulary); err != nil {
		p.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(p.GetName(), err)
		return
	}

	raw, err := p.generator.Generate(context.GetContext(), &model.AnalysisRequest{
		Instruction: doc.String(),
		Frames:      frames,
		Shape:       model.ResultSchema(),
	})
	if err != nil {
		p.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(p.GetName(), err)
		return
	}

	p.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(p.GetOutputParam(), raw)
}

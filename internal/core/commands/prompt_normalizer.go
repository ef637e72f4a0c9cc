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
// command that turns the model's raw response text into a validated
// PromptResult.
package commands

import (
	"github.com/vizprompts/vizprompts/internal/core/cor"
	"github.com/vizprompts/vizprompts/internal/core/normalizer"
)

// PromptNormalizer strips fences, decodes, and validates the raw model
// response into a PromptResult carrying the synthesized master prompt and
// the scene list. The result is also published under
// GetResultParameterName.
type PromptNormalizer struct {
	cor.BaseCommand
}

// NewPromptNormalizer is the constructor for the PromptNormalizer command.
func NewPromptNormalizer(name string) *PromptNormalizer {
	return &PromptNormalizer{
		BaseCommand: *cor.NewBaseCommand(name),
	}
}

// Execute normalizes the piped raw response text.
func (n *PromptNormalizer) Execute(context cor.Context) {
	raw := context.Get(n.GetInputParam()).(string)
	EmitProgress(context, "structuring", 90)

	result, err := normalizer.Result(raw)
	if err != nil {
		n.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(n.GetName(), err)
		return
	}

	n.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(GetResultParameterName(), result)
	context.Add(n.GetOutputParam(), result)
}

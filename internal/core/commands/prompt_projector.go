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
// final pipeline command, which renders the normalized result into its
// serialized views.
package commands

import (
	"github.com/vizprompts/vizprompts/internal/core/cor"
	"github.com/vizprompts/vizprompts/internal/core/model"
	"github.com/vizprompts/vizprompts/internal/core/projector"
)

// PromptProjector renders the piped PromptResult into its three views and
// publishes them under GetViewsParameterName.
type PromptProjector struct {
	cor.BaseCommand
}

// NewPromptProjector is the constructor for the PromptProjector command.
func NewPromptProjector(name string) *PromptProjector {
	return &PromptProjector{BaseCommand: *cor.NewBaseCommand(name)}
}

// Execute projects the piped result.
func (p *PromptProjector) Execute(context cor.Context) {
	result := context.Get(p.GetInputParam()).(*model.PromptResult)

	views, err := projector.Project(result)
	if err != nil {
		p.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(p.GetName(), err)
		return
	}

	p.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(GetViewsParameterName(), views)
	context.Add(p.GetOutputParam(), views)
}

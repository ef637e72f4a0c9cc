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
// command that turns the uploaded media into the ordered set of frames
// the model analyzes.
package commands

import (
	goctx "context"

	"github.com/vizprompts/vizprompts/internal/core/cor"
	"github.com/vizprompts/vizprompts/internal/core/model"
)

// Sampler produces ordered frames from a media asset. The FFmpeg-backed
// frame sampler satisfies it.
type Sampler interface {
	Sample(ctx goctx.Context, asset *model.MediaAsset) ([]*model.Frame, error)
}

// FrameSampler runs the sampler against the incoming asset and pipes the
// resulting frames down the chain. The frames are also published under
// GetFramesParameterName so they remain addressable after the piped value
// moves on.
type FrameSampler struct {
	cor.BaseCommand
	sampler Sampler
}

// NewFrameSampler is the constructor for the FrameSampler command.
func NewFrameSampler(name string, sampler Sampler) *FrameSampler {
	return &FrameSampler{
		BaseCommand: *cor.NewBaseCommand(name),
		sampler:     sampler,
	}
}

// Execute samples the asset into frames.
func (f *FrameSampler) Execute(context cor.Context) {
	asset := context.Get(f.GetInputParam()).(*model.MediaAsset)
	EmitProgress(context, "sampling", 20)

	frames, err := f.sampler.Sample(context.GetContext(), asset)
	if err != nil {
		f.GetErrorCounter().Add(context.GetContext(), 1)
		context.AddError(f.GetName(), err)
		return
	}

	f.GetSuccessCounter().Add(context.GetContext(), 1)
	context.Add(GetFramesParameterName(), frames)
	context.Add(f.GetOutputParam(), frames)
}

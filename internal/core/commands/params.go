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
// well-known context parameter names the pipeline commands use to share
// state beyond the default input/output piping, plus the progress callback
// commands report through.
package commands

import "github.com/vizprompts/vizprompts/internal/core/cor"

// ProgressFunc receives stage updates as the pipeline advances. The run
// orchestrator stores one in the context; commands report through it.
type ProgressFunc func(stage string, percent int)

// GetProgressFuncParameterName returns the context key holding the
// optional ProgressFunc for the execution.
func GetProgressFuncParameterName() string {
	return "__progress_func__"
}

// GetFramesParameterName returns the context key holding the sampled
// frames, kept available after the piped value moves on so the
// orchestrator can thumbnail the run.
func GetFramesParameterName() string {
	return "__sampled_frames__"
}

// GetResultParameterName returns the context key holding the normalized
// prompt result.
func GetResultParameterName() string {
	return "__prompt_result__"
}

// GetViewsParameterName returns the context key holding the projected
// views of the result.
func GetViewsParameterName() string {
	return "__projected_views__"
}

// EmitProgress reports a stage update through the context's ProgressFunc
// when one is present.
func EmitProgress(context cor.Context, stage string, percent int) {
	if fn, ok := context.Get(GetProgressFuncParameterName()).(ProgressFunc); ok && fn != nil {
		fn(stage, percent)
	}
}

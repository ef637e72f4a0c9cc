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
// command that archives the raw upload bytes before analysis begins.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vizprompts/vizprompts/internal/core/cor"
	"github.com/vizprompts/vizprompts/internal/core/model"
)

// Archiver stores raw upload bytes. The GCS-backed upload archive
// satisfies it.
type Archiver interface {
	Enabled() bool
	Store(ctx context.Context, name string, contentType string, data []byte) error
}

// UploadArchiver writes the incoming media asset to the archive when one
// is configured. Archive failures are logged and never fail the run; the
// asset always passes through to the next command.
type UploadArchiver struct {
	cor.BaseCommand
	archive Archiver
}

// NewUploadArchiver is the constructor for the UploadArchiver command.
// The archive may be nil, in which case the command is a pass-through.
func NewUploadArchiver(name string, archive Archiver) *UploadArchiver {
	return &UploadArchiver{
		BaseCommand: *cor.NewBaseCommand(name),
		archive:     archive,
	}
}

// Execute archives the asset and pipes it to the next command unchanged.
func (u *UploadArchiver) Execute(context cor.Context) {
	asset := context.Get(u.GetInputParam()).(*model.MediaAsset)

	if u.archive != nil && u.archive.Enabled() {
		objectName := fmt.Sprintf("%s-%s", uuid.NewString(), asset.Name)
		if err := u.archive.Store(context.GetContext(), objectName, asset.MIMEType, asset.Data); err != nil {
			u.GetErrorCounter().Add(context.GetContext(), 1)
			slog.Warn("failed to archive upload", "name", asset.Name, "error", err)
		} else {
			u.GetSuccessCounter().Add(context.GetContext(), 1)
		}
	}

	context.Add(u.GetOutputParam(), asset)
}

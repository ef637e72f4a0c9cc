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

// Package cloud provides components for interacting with Google Cloud
// services. This file implements the optional raw upload archive: when an
// archive bucket is configured, the original bytes of each accepted upload
// are written to GCS before analysis begins. Archive failures never fail a
// run.
package cloud

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// UploadArchive writes raw upload bytes to a configured GCS bucket.
type UploadArchive struct {
	client *storage.Client
	bucket string
}

// NewUploadArchive constructs an archive for the given bucket. An empty
// bucket name yields a disabled archive.
func NewUploadArchive(client *storage.Client, bucket string) *UploadArchive {
	return &UploadArchive{client: client, bucket: bucket}
}

// Enabled reports whether an archive bucket is configured.
func (a *UploadArchive) Enabled() bool {
	return a != nil && a.client != nil && len(a.bucket) > 0
}

// Store writes the object to the archive bucket under the given name with
// the given content type.
func (a *UploadArchive) Store(ctx context.Context, name string, contentType string, data []byte) error {
	if !a.Enabled() {
		return nil
	}
	wc := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write archive object %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive object %s: %w", name, err)
	}
	return nil
}

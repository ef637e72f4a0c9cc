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
// services. This file initializes and holds the client objects the
// application needs: the GCS client for the optional upload archive and
// the generative AI client with its configured, rate-limited agent models.
// The resulting ServiceClients struct is the dependency container passed
// through the application.
package cloud

import (
	"context"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/genai"
)

// ServiceClients is the container for all clients that talk to external
// Google Cloud services, shared across the application.
type ServiceClients struct {
	StorageClient *storage.Client                         // Client for Google Cloud Storage, used by the upload archive.
	GenAIClient   *genai.Client                           // Client for Google's Generative AI services (Vertex AI).
	AgentModels   map[string]*QuotaAwareGenerativeAIModel // Configured, rate-limited agent models keyed by logical name.
}

// Close releases the client connections. The genai client has no close
// function in the current library.
func (c *ServiceClients) Close() {
	_ = c.StorageClient.Close()
}

// NewCloudServiceClients initializes all required Google Cloud service
// clients from the loaded configuration.
func NewCloudServiceClients(ctx context.Context, config *Config) (cloud *ServiceClients, err error) {
	sc, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  config.Application.GoogleProjectId,
		Location: config.Application.GoogleLocation,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		slog.Error("error creating genai client", "error", err)
		return nil, err
	}

	// Build a generation config for each agent model from its TOML
	// settings and wrap the handle with the rate limiter.
	agentModels := make(map[string]*QuotaAwareGenerativeAIModel)
	for amKey := range config.AgentModels {
		values := config.AgentModels[amKey]

		model := &genai.GenerateContentConfig{
			Temperature:       genai.Ptr[float32](values.Temperature),
			TopP:              genai.Ptr[float32](values.TopP),
			TopK:              genai.Ptr[float32](values.TopK),
			MaxOutputTokens:   values.MaxTokens,
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: values.SystemInstructions}}},
			SafetySettings:    DefaultSafetySettings,
			ResponseMIMEType:  values.OutputFormat,
			Tools:             []*genai.Tool{},
		}
		agentModels[amKey] = NewQuotaAwareModel(model, values.Model, gc.Models, values.RateLimit)
	}

	cloud = &ServiceClients{
		StorageClient: sc,
		GenAIClient:   gc,
		AgentModels:   agentModels,
	}

	return cloud, err
}

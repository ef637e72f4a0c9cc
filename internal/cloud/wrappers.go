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
// services. This file wraps the generative model handle with a rate
// limiter (Decorator pattern). Vertex AI enforces per-minute quotas, so
// every call waits for a limiter token before it goes out. Retry policy is
// deliberately not implemented here; the caller owns it.
package cloud

import (
	"context"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GenerativeCaller is the slice of the genai model surface the application
// uses. *genai.Models satisfies it; tests substitute a fake.
type GenerativeCaller interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// QuotaAwareGenerativeAIModel decorates a generative model handle with a
// rate limiter. It carries the base request configuration derived from the
// model's TOML settings; callers may copy and adjust that configuration
// per request.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig // Base request configuration from the model's TOML settings.
	ModelName               string
	ModelHandle             GenerativeCaller
	RateLimit               *rate.Limiter
}

// NewQuotaAwareModel wraps a model handle with a limiter refilling at
// requestsPerSecond with an equal burst.
func NewQuotaAwareModel(wrapped *genai.GenerateContentConfig, name string, handle GenerativeCaller, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	if requestsPerSecond < 1 {
		requestsPerSecond = 1
	}
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: wrapped,
		ModelName:               name,
		ModelHandle:             handle,
		RateLimit:               rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
	}
}

// GenerateContent blocks until the limiter grants a token, then forwards
// the call to the wrapped model with the base configuration.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, content []*genai.Content) (*genai.GenerateContentResponse, error) {
	return q.GenerateContentWithConfig(ctx, content, q.GenerativeContentConfig)
}

// GenerateContentWithConfig blocks until the limiter grants a token, then
// forwards the call with a caller-supplied configuration. Used when a
// request needs a schema or temperature different from the base config.
func (q *QuotaAwareGenerativeAIModel) GenerateContentWithConfig(ctx context.Context, content []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if err := q.RateLimit.Wait(ctx); err != nil {
		return nil, err
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, content, config)
}

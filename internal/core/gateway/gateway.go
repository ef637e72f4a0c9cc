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

// Package gateway is the single component that performs network I/O to
// the generative model. It assembles the multi-modal request (instruction
// text plus ordered inline image frames), applies the optional output
// shape and temperature, and maps transport and refusal failures to typed
// errors. Retry policy belongs to the caller; the gateway only rate limits.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"google.golang.org/genai"

	"github.com/vizprompts/vizprompts/internal/cloud"
	"github.com/vizprompts/vizprompts/internal/core/model"
)

// BackendUnavailableError reports a transport-level failure reaching the
// model backend.
type BackendUnavailableError struct {
	Err error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("inference backend unavailable: %v", e.Err)
}

func (e *BackendUnavailableError) Unwrap() error {
	return e.Err
}

// BackendRefusalError reports a call that reached the backend but produced
// no usable content, such as a safety block or an empty candidate list.
type BackendRefusalError struct {
	Reason string
}

func (e *BackendRefusalError) Error() string {
	return fmt.Sprintf("inference backend refused request: %s", e.Reason)
}

// Gateway sends analysis requests to a rate-limited generative model.
type Gateway struct {
	model              *cloud.QuotaAwareGenerativeAIModel
	inputTokenCounter  metric.Int64Counter
	outputTokenCounter metric.Int64Counter
}

// New constructs a Gateway around the given rate-limited model with its
// token usage counters wired up.
func New(m *cloud.QuotaAwareGenerativeAIModel) *Gateway {
	meter := otel.Meter("github.com/vizprompts/vizprompts")
	out := &Gateway{model: m}
	out.inputTokenCounter, _ = meter.Int64Counter("gateway.gemini.token.input")
	out.outputTokenCounter, _ = meter.Int64Counter("gateway.gemini.token.output")
	return out
}

// Generate performs one model call for the request and returns the
// concatenated candidate text. The frames are attached as inline image
// parts in sampling order, after the instruction text.
func (g *Gateway) Generate(ctx context.Context, req *model.AnalysisRequest) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Frames)+1)
	parts = append(parts, &genai.Part{Text: req.Instruction})
	for _, frame := range req.Frames {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: frame.MIMEType,
				Data:     frame.Data,
			},
		})
	}
	contents := []*genai.Content{{Parts: parts, Role: "user"}}

	resp, err := g.model.GenerateContentWithConfig(ctx, contents, g.requestConfig(req))
	if err != nil {
		return "", &BackendUnavailableError{Err: err}
	}

	if resp.UsageMetadata != nil {
		g.inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		g.outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	if len(resp.Candidates) == 0 {
		return "", &BackendRefusalError{Reason: "no candidates returned"}
	}

	var value strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			value.WriteString(part.Text)
		}
	}
	if len(strings.TrimSpace(value.String())) == 0 {
		return "", &BackendRefusalError{Reason: "model returned no content"}
	}
	return value.String(), nil
}

// requestConfig returns the base model configuration, copied and adjusted
// when the request carries a shape hint or temperature override.
func (g *Gateway) requestConfig(req *model.AnalysisRequest) *genai.GenerateContentConfig {
	config := g.model.GenerativeContentConfig
	if req.Shape == nil && req.Temperature == nil {
		return config
	}
	adjusted := *config
	if req.Shape != nil {
		adjusted.ResponseSchema = req.Shape
		adjusted.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		adjusted.Temperature = req.Temperature
	}
	return &adjusted
}

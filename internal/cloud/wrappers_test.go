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

package cloud

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

type recordingCaller struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (r *recordingCaller) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	r.model = model
	r.contents = contents
	r.config = config
	return &genai.GenerateContentResponse{}, nil
}

func TestNewQuotaAwareModelLimiterMatchesConfig(t *testing.T) {
	q := NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-2.0-flash", &recordingCaller{}, 5)

	// The configured requests-per-second is both the refill rate and the burst.
	assert.Equal(t, rate.Limit(5), q.RateLimit.Limit())
	assert.Equal(t, 5, q.RateLimit.Burst())
}

func TestNewQuotaAwareModelFloorsRateAtOne(t *testing.T) {
	q := NewQuotaAwareModel(&genai.GenerateContentConfig{}, "gemini-2.0-flash", &recordingCaller{}, 0)

	assert.Equal(t, rate.Limit(1), q.RateLimit.Limit())
	assert.Equal(t, 1, q.RateLimit.Burst())
}

func TestGenerateContentWithConfigForwardsOverride(t *testing.T) {
	caller := &recordingCaller{}
	base := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](1.0)}
	q := NewQuotaAwareModel(base, "gemini-2.0-flash", caller, 2)

	override := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0.2)}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: "hello"}}}}

	_, err := q.GenerateContentWithConfig(context.Background(), contents, override)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", caller.model)
	assert.Same(t, override, caller.config)
	assert.Equal(t, contents, caller.contents)
}

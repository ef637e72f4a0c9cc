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

// Package cloud defines the data structures for application configuration,
// loaded from TOML files. It centralizes the configurable parameters of
// every component: upload limits, FFmpeg sampling, AI model settings,
// prompt templates, the history store, and the optional upload archive.
//
// Structs:
//   - Upload: Size cap and MIME allow-list enforced at the upload boundary.
//   - FFmpeg: Binary paths and frame sampling parameters.
//   - Pipeline: Run orchestration settings such as the edit quiet period.
//   - History: Location of the local history database.
//   - Storage: Optional GCS bucket for archiving raw uploads.
//   - PromptTemplates: Text templates for the prompts sent to the model.
//   - VertexAiLLMModel: Settings for a single generative model.
//   - Config: The top-level struct aggregating all of the above.
package cloud

import "google.golang.org/genai"

// DefaultSafetySettings defines the content safety thresholds applied to
// every generative model call. They are non-restrictive since the input
// media is provided by the operator, not untrusted third parties.
var DefaultSafetySettings = []*genai.SafetySetting{
	{
		Category:  genai.HarmCategoryDangerousContent,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHarassment,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategoryHateSpeech,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
	{
		Category:  genai.HarmCategorySexuallyExplicit,
		Threshold: genai.HarmBlockThresholdBlockNone,
	},
}

// Upload holds the validation limits enforced before any media enters the
// pipeline.
type Upload struct {
	MaxUploadBytes int64    `toml:"max_upload_bytes"` // Hard cap on upload size. Oversized uploads are rejected before any processing.
	AllowedTypes   []string `toml:"allowed_types"`    // MIME types accepted at the upload boundary.
}

// FFmpeg holds the paths to the FFmpeg binaries and the frame sampling
// parameters.
type FFmpeg struct {
	FFmpegPath        string  `toml:"ffmpeg_path"`         // Path to the ffmpeg executable.
	FFprobePath       string  `toml:"ffprobe_path"`        // Path to the ffprobe executable.
	TargetFrameCount  int     `toml:"target_frame_count"`  // Number of frames to sample from a video.
	MinSpacingSeconds float64 `toml:"min_spacing_seconds"` // Minimum spacing between sampled frames; short clips yield fewer frames.
	ScaleWidth        int     `toml:"scale_width"`         // Width extracted frames are scaled to, preserving aspect ratio.
}

// Pipeline holds run orchestration settings.
type Pipeline struct {
	QuietPeriodMillis int `toml:"quiet_period_ms"` // Trailing-edge debounce window for master prompt edits.
}

// History holds the configuration for the local history sink.
type History struct {
	DatabasePath string `toml:"database_path"` // Path to the SQLite database file.
}

// Storage holds the configuration for the optional raw upload archive.
type Storage struct {
	ArchiveBucket string `toml:"archive_bucket"` // GCS bucket name; empty disables archiving.
}

// PromptTemplates holds the Go text templates for each prompt the
// pipeline sends to the model.
type PromptTemplates struct {
	Analysis  string `toml:"analysis"`  // Template for the initial frame analysis prompt.
	Structure string `toml:"structure"` // Template for restructuring a master prompt into scenes.
	Refine    string `toml:"refine"`    // Template for text-only prompt refinement.
}

// VertexAiLLMModel represents the configuration for a Vertex AI large
// language model (LLM).
type VertexAiLLMModel struct {
	Model              string  `toml:"model"`               // The name of the Vertex AI LLM.
	SystemInstructions string  `toml:"system_instructions"` // The system instructions for the LLM.
	Temperature        float32 `toml:"temperature"`         // The temperature parameter for the LLM.
	TopP               float32 `toml:"top_p"`               // The top_p parameter for the LLM.
	TopK               float32 `toml:"top_k"`               // The top_k parameter for the LLM.
	MaxTokens          int32   `toml:"max_tokens"`          // The maximum number of tokens for the LLM output.
	OutputFormat       string  `toml:"output_format"`       // The desired output MIME type for the LLM.
	RateLimit          int     `toml:"rate_limit"`          // The rate limit for the LLM in requests per second.
}

// Config represents the overall configuration for the application, loaded
// from TOML files. It acts as the root container for all other
// configuration structs.
type Config struct {
	// Application holds general application settings.
	Application struct {
		Name            string `toml:"name"`              // The name of the application.
		GoogleProjectId string `toml:"google_project_id"` // The Google Cloud project ID.
		GoogleLocation  string `toml:"location"`          // The Google Cloud location.
		ThreadPoolSize  int    `toml:"thread_pool_size"`  // Worker pool size for parallel frame extraction.
	} `toml:"application"`
	Upload          Upload                      `toml:"upload"`           // Upload validation limits.
	FFmpeg          FFmpeg                      `toml:"ffmpeg"`           // FFmpeg paths and sampling parameters.
	Pipeline        Pipeline                    `toml:"pipeline"`         // Run orchestration settings.
	History         History                     `toml:"history"`          // History sink configuration.
	Storage         Storage                     `toml:"storage"`          // Optional upload archive configuration.
	PromptTemplates PromptTemplates             `toml:"prompt_templates"` // Prompt templates configuration.
	AgentModels     map[string]VertexAiLLMModel `toml:"agent_models"`     // Vertex AI LLM models, keyed by a logical name (e.g., "creative-flash").
}

// NewConfig creates a new, initialized Config instance. The maps must be
// initialized before the configuration loader populates them.
func NewConfig() *Config {
	return &Config{
		AgentModels: make(map[string]VertexAiLLMModel),
	}
}

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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfigDoc = `
[application]
name = "vizprompts"
google_project_id = "base-project"
thread_pool_size = 4

[upload]
max_upload_bytes = 209715200
allowed_types = ["video/mp4", "image/png"]

[pipeline]
quiet_period_ms = 1000

[prompt_templates]
refine = "Rewrite the prompt."

[agent_models]
[agent_models.creative-flash]
model = "gemini-2.0-flash"
system_instructions = "You are a film director."
temperature = 1.0
rate_limit = 1
`

const testOverrideDoc = `
[application]
google_project_id = "test-project"

[pipeline]
quiet_period_ms = 30
`

func writeConfigFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(baseConfigDoc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test.toml"), []byte(testOverrideDoc), 0o644))
	return dir
}

func TestLoadConfigAppliesRuntimeOverrides(t *testing.T) {
	dir := writeConfigFiles(t)
	t.Setenv(EnvConfigFilePrefix, dir)
	t.Setenv(EnvConfigRuntime, "test")

	config := NewConfig()
	LoadConfig(&config)

	// Overridden by the runtime file.
	assert.Equal(t, "test-project", config.Application.GoogleProjectId)
	assert.Equal(t, 30, config.Pipeline.QuietPeriodMillis)

	// Inherited from the base file.
	assert.Equal(t, "vizprompts", config.Application.Name)
	assert.Equal(t, int64(209715200), config.Upload.MaxUploadBytes)
	assert.Equal(t, []string{"video/mp4", "image/png"}, config.Upload.AllowedTypes)
	assert.Equal(t, "Rewrite the prompt.", config.PromptTemplates.Refine)

	model, ok := config.AgentModels["creative-flash"]
	require.True(t, ok)
	assert.Equal(t, "gemini-2.0-flash", model.Model)
	assert.Equal(t, "You are a film director.", model.SystemInstructions)
	assert.Equal(t, 1, model.RateLimit)
}

func TestLoadConfigDefaultsToTestRuntime(t *testing.T) {
	dir := writeConfigFiles(t)
	t.Setenv(EnvConfigFilePrefix, dir)
	t.Setenv(EnvConfigRuntime, "")

	config := NewConfig()
	LoadConfig(&config)

	assert.Equal(t, "test-project", config.Application.GoogleProjectId)
}

func TestLoadConfigSkipsMissingOverrideFile(t *testing.T) {
	dir := writeConfigFiles(t)
	t.Setenv(EnvConfigFilePrefix, dir)
	t.Setenv(EnvConfigRuntime, "staging")

	config := NewConfig()
	LoadConfig(&config)

	assert.Equal(t, "base-project", config.Application.GoogleProjectId)
	assert.Equal(t, 1000, config.Pipeline.QuietPeriodMillis)
}

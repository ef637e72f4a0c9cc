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

// Package test provides utility functions and sample data to support the
// application's test suite: a singleton test configuration loader and
// canned model responses for pipeline tests.
package test

import (
	"encoding/json"
	"log"
	"os"
	"testing"

	"github.com/vizprompts/vizprompts/internal/cloud"
	"github.com/vizprompts/vizprompts/internal/core/model"
)

// StateManager caches the test configuration so it is loaded from the
// TOML files only once per test run.
type StateManager struct {
	config *cloud.Config
}

var state = &StateManager{}

// HandleErr fails the test when err is non-nil. Convenience to reduce
// boilerplate error checking in tests.
func HandleErr(err error, t *testing.T) {
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// GetTestAnalysisResponseText returns a canned analysis response: a JSON
// object carrying a synthesized master prompt and a single fully
// populated scene. Tests use it wherever a valid analysis response is
// needed.
func GetTestAnalysisResponseText() string {
	out, err := json.Marshal(model.GetExampleResult())
	if err != nil {
		panic(err)
	}
	return string(out)
}

// GetTestFencedResponseText returns the same canned response wrapped in a
// markdown code fence, the way models return JSON when the output schema
// is not honored.
func GetTestFencedResponseText() string {
	return "```json\n" + GetTestAnalysisResponseText() + "\n```"
}

// SetupOS configures the environment variables the configuration loader
// depends on, pointing it at the test override file (.env.test.toml).
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "test")
	return err
}

// GetConfig is the singleton accessor for the test configuration.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup environment for test: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}

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

package main

import (
	"context"
	"log"
	"os"

	"github.com/vizprompts/vizprompts/internal/cloud"
	"github.com/vizprompts/vizprompts/internal/core/gateway"
	"github.com/vizprompts/vizprompts/internal/core/sampler"
	"github.com/vizprompts/vizprompts/internal/core/services"
	"github.com/vizprompts/vizprompts/internal/storage/history"
)

// StateManager holds the shared components for the application.
type StateManager struct {
	config  *cloud.Config
	cloud   *cloud.ServiceClients
	runner  *services.PromptRunner
	history *history.Store
}

var state = &StateManager{}

// SetupOS points the configuration loader at the local configs directory.
func SetupOS() (err error) {
	err = os.Setenv(cloud.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	err = os.Setenv(cloud.EnvConfigRuntime, "local")
	return err
}

// GetConfig loads the application configuration once and caches it.
func GetConfig() *cloud.Config {
	if state.config == nil {
		err := SetupOS()
		if err != nil {
			log.Fatalf("failed to setup os environment: %v\n", err)
		}
		config := cloud.NewConfig()
		cloud.LoadConfig(&config)
		state.config = config
	}
	return state.config
}

// InitState initializes the application state and dependencies: the GCP
// service clients, the history store, and the prompt runner with its
// extraction pipeline.
func InitState(ctx context.Context) {
	config := GetConfig()

	cloudClients, err := cloud.NewCloudServiceClients(ctx, config)
	if err != nil {
		panic(err)
	}
	state.cloud = cloudClients

	store, err := history.Open(config.History.DatabasePath)
	if err != nil {
		panic(err)
	}
	state.history = store

	frameSampler := sampler.New(config.FFmpeg, config.Application.ThreadPoolSize)
	generator := gateway.New(cloudClients.AgentModels["creative-flash"])
	archive := cloud.NewUploadArchive(cloudClients.StorageClient, config.Storage.ArchiveBucket)

	runner, err := services.NewPromptRunner(config, frameSampler, generator, store, archive)
	if err != nil {
		panic(err)
	}
	state.runner = runner
}

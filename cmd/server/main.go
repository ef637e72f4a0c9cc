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
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/vizprompts/vizprompts/internal/core/model"
	"github.com/vizprompts/vizprompts/internal/core/services"
	"github.com/vizprompts/vizprompts/internal/storage/history"
	"github.com/vizprompts/vizprompts/internal/telemetry"
)

func main() {
	telemetry.SetupLogging()
	slog.Info("Logging initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config := GetConfig()

	_, err := telemetry.SetupOpenTelemetry(ctx, config)
	if err != nil {
		slog.Error("Failed to setup OpenTelemetry", "error", err)
		log.Fatal(err)
	}
	slog.Info("Tracing initialized")

	InitState(ctx)
	slog.Info("Initialized State")

	r := gin.Default()

	// Add OpenTelemetry middleware
	r.Use(otelgin.Middleware("vizprompts-server"))

	// Allow all origins, methods, and headers, which is safe for local dev
	// and keeps the frontend and backend talking without extra setup.
	r.Use(cors.Default())

	// Create the "/api/v1" group
	apiV1 := r.Group("/api/v1")
	{
		FileUpload(apiV1)
		PromptRouter(apiV1)
		HistoryRouter(apiV1)
		Dashboard(apiV1)
	}

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	// Start the server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen: ", "error", err)
		}
	}()
	slog.Info("Server Ready on port 8080")

	// Wait for an interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutdown Server ...")

	// The context informs the server it has 5 seconds to finish the
	// requests it is currently handling.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server Shutdown Failed:", "error", err)
	}
	if err := state.history.Close(); err != nil {
		slog.Error("failed to close history store", "error", err)
	}

	log.Println("Server exiting")
}

// FileUpload sets up the route that accepts a media upload and starts a
// new prompt extraction run with it.
func FileUpload(r *gin.RouterGroup) {
	upload := r.Group("/uploads")
	{
		upload.POST("", func(c *gin.Context) {
			form, err := c.MultipartForm()
			if err != nil {
				c.String(http.StatusBadRequest, "get form err: %s", err.Error())
				return
			}
			files := form.File["files"]
			if len(files) != 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "expected exactly one file"})
				return
			}
			file := files[0]

			// Reject oversized uploads before buffering them into memory.
			if max := state.config.Upload.MaxUploadBytes; max > 0 && file.Size > max {
				c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds the upload size limit"})
				return
			}

			src, err := file.Open()
			if err != nil {
				c.String(http.StatusBadRequest, "upload file err: %s", err.Error())
				return
			}
			defer func() { _ = src.Close() }()
			data, err := io.ReadAll(src)
			if err != nil {
				slog.Error("failed to read upload", "name", file.Filename, "error", err)
				c.Status(http.StatusInternalServerError)
				return
			}

			mimeType := file.Header.Get("Content-Type")
			category := model.MediaCategoryVideo
			if strings.HasPrefix(mimeType, "image/") {
				category = model.MediaCategoryImage
			}

			views, err := state.runner.StartRun(c, &model.MediaAsset{
				Name:     file.Filename,
				MIMEType: mimeType,
				Category: category,
				Data:     data,
			})
			if err != nil {
				var validationErr *services.ValidationError
				switch {
				case errors.As(err, &validationErr):
					c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
				case errors.Is(err, services.ErrRunSuperseded):
					c.JSON(http.StatusConflict, gin.H{"error": "a newer run superseded this upload"})
				default:
					slog.Error("run failed", "name", file.Filename, "error", err)
					c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				}
				return
			}
			c.JSON(http.StatusOK, views)
		})
	}
}

// PromptRouter sets up the routes for working with the current run's
// prompt: editing, refining, reading views and state, and resetting.
func PromptRouter(r *gin.RouterGroup) {
	prompts := r.Group("/prompts")
	{
		prompts.POST("/structure", func(c *gin.Context) {
			var body struct {
				MasterPrompt string `json:"masterPrompt"`
			}
			if err := c.ShouldBindJSON(&body); err != nil || len(strings.TrimSpace(body.MasterPrompt)) == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "masterPrompt is required"})
				return
			}
			if err := state.runner.EditMasterPrompt(body.MasterPrompt); err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			runState, updating := state.runner.State()
			c.JSON(http.StatusAccepted, gin.H{"state": runState, "updating": updating})
		})

		prompts.POST("/refine", func(c *gin.Context) {
			var opts services.RefineOptions
			if err := c.ShouldBindJSON(&opts); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			refined, err := state.runner.Refine(c, opts)
			if err != nil {
				if errors.Is(err, services.ErrNoResult) {
					c.JSON(http.StatusConflict, gin.H{"error": "no completed run to refine"})
					return
				}
				slog.Error("refine failed", "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"masterPrompt": refined})
		})

		prompts.GET("/views", func(c *gin.Context) {
			views, err := state.runner.Views()
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "no completed run"})
				return
			}
			c.JSON(http.StatusOK, views)
		})

		prompts.GET("/state", func(c *gin.Context) {
			runState, updating := state.runner.State()
			out := gin.H{"state": runState, "updating": updating}
			if err := state.runner.LastError(); err != nil {
				out["error"] = err.Error()
			}
			c.JSON(http.StatusOK, out)
		})

		prompts.POST("/reset", func(c *gin.Context) {
			state.runner.Reset()
			c.Status(http.StatusOK)
		})
	}
}

// HistoryRouter sets up the read-only routes over past runs.
func HistoryRouter(r *gin.RouterGroup) {
	hist := r.Group("/history")
	{
		hist.GET("", func(c *gin.Context) {
			count, err := strconv.Atoi(c.DefaultQuery("count", "20"))
			if err != nil {
				count = 20
			}
			items, err := state.history.List(c, count)
			if err != nil {
				slog.Error("failed to list history", "error", err)
				c.Status(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, items)
		})

		hist.GET("/:id", func(c *gin.Context) {
			item, err := state.history.Get(c, c.Param("id"))
			if err != nil {
				if errors.Is(err, history.ErrNotFound) {
					c.Status(http.StatusNotFound)
					return
				}
				c.Status(http.StatusInternalServerError)
				return
			}
			c.JSON(http.StatusOK, item)
		})

		hist.GET("/:id/thumbnail", func(c *gin.Context) {
			item, err := state.history.Get(c, c.Param("id"))
			if err != nil || len(item.Thumbnail) == 0 {
				c.Status(http.StatusNotFound)
				return
			}
			mimeType := item.ThumbnailMIME
			if mimeType == "" {
				mimeType = "image/jpeg"
			}
			c.Data(http.StatusOK, mimeType, item.Thumbnail)
		})
	}
}

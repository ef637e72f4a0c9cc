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

// Package services contains the run orchestration layer. The PromptRunner
// owns the lifecycle of a media-to-prompt run: upload validation, the
// sample/infer/normalize/project pipeline, the debounced restructure of
// edited master prompts, text-only refinement, and the stale-result
// discard that keeps a superseded run from overwriting a newer one.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"

	"github.com/vizprompts/vizprompts/internal/cloud"
	"github.com/vizprompts/vizprompts/internal/core/commands"
	"github.com/vizprompts/vizprompts/internal/core/cor"
	"github.com/vizprompts/vizprompts/internal/core/model"
	"github.com/vizprompts/vizprompts/internal/core/normalizer"
	"github.com/vizprompts/vizprompts/internal/core/projector"
	"github.com/vizprompts/vizprompts/internal/core/workflow"
)

// RunState is the lifecycle state of the current run.
type RunState string

const (
	RunStateIdle       RunState = "idle"
	RunStatePreviewing RunState = "previewing"
	RunStateProcessing RunState = "processing"
	RunStateSuccess    RunState = "success"
	RunStateFailed     RunState = "failed"
)

// ProgressEvent is one step of a run's progress stream.
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
}

// Sentinel errors for run lifecycle conditions.
var (
	// ErrRunSuperseded marks a run whose results were discarded because a
	// newer run started before it finished.
	ErrRunSuperseded = errors.New("run superseded by a newer run")
	// ErrNoResult marks an operation that requires a completed run.
	ErrNoResult = errors.New("no completed run available")
)

// ValidationError reports an upload rejected at the boundary, before any
// pipeline stage or network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid upload: %s", e.Reason)
}

// ValidateUpload enforces the size cap and MIME allow-list on an upload.
func ValidateUpload(cfg cloud.Upload, asset *model.MediaAsset) error {
	if asset == nil {
		return &ValidationError{Reason: "no file provided"}
	}
	if cfg.MaxUploadBytes > 0 && asset.Size() > cfg.MaxUploadBytes {
		return &ValidationError{Reason: fmt.Sprintf("file exceeds the %d byte limit", cfg.MaxUploadBytes)}
	}
	for _, allowed := range cfg.AllowedTypes {
		if strings.EqualFold(allowed, asset.MIMEType) {
			return nil
		}
	}
	return &ValidationError{Reason: fmt.Sprintf("media type %q is not supported", asset.MIMEType)}
}

// FrameSampler produces ordered frames from a validated upload.
type FrameSampler interface {
	Sample(ctx context.Context, asset *model.MediaAsset) ([]*model.Frame, error)
}

// Generator performs one model call. The inference gateway satisfies it;
// tests substitute a fake.
type Generator interface {
	Generate(ctx context.Context, req *model.AnalysisRequest) (string, error)
}

// HistorySink receives one record per successful run.
type HistorySink interface {
	Save(ctx context.Context, item *model.HistoryItem) error
}

// Archiver optionally stores raw upload bytes before analysis.
type Archiver interface {
	Enabled() bool
	Store(ctx context.Context, name string, contentType string, data []byte) error
}

// RefineOptions describes a text-only refinement request. All fields are
// optional; empty options ask for a general quality pass.
type RefineOptions struct {
	Tone           string `json:"tone"`
	Style          string `json:"style"`
	Camera         string `json:"camera"`
	Lighting       string `json:"lighting"`
	Custom         string `json:"custom"`
	NegativePrompt string `json:"negativePrompt"`
}

// ComposeRefineInstruction builds the single instruction sentence set from
// the selector fields and the free-form custom instruction.
func ComposeRefineInstruction(opts RefineOptions) string {
	parts := make([]string, 0, 5)
	if opts.Tone != "" {
		parts = append(parts, fmt.Sprintf("Make the tone %s.", opts.Tone))
	}
	if opts.Style != "" {
		parts = append(parts, fmt.Sprintf("Render it in the style of %s.", opts.Style))
	}
	if opts.Camera != "" {
		parts = append(parts, fmt.Sprintf("Use %s camera work.", opts.Camera))
	}
	if opts.Lighting != "" {
		parts = append(parts, fmt.Sprintf("Light it with %s.", opts.Lighting))
	}
	if opts.Custom != "" {
		parts = append(parts, opts.Custom)
	}
	if len(parts) == 0 {
		return "Improve the clarity and cinematic detail of the prompt."
	}
	return strings.Join(parts, " ")
}

// PromptRunner owns the state of the current run. All mutation happens
// under one mutex; slow work (sampling, inference) runs outside it and is
// re-validated against the generation counter before results are applied.
type PromptRunner struct {
	cfg       *cloud.Config
	generator Generator
	history   HistorySink
	pipeline  *workflow.PromptExtractionWorkflow

	structureTmpl *template.Template
	refineTmpl    *template.Template
	quiet         time.Duration

	mu            sync.Mutex
	state         RunState
	updating      bool
	generation    uint64
	result        *model.PromptResult
	lastErr       error
	pendingMaster string
	debounce      *time.Timer

	progress chan ProgressEvent
}

// NewPromptRunner parses the prompt templates, assembles the extraction
// pipeline, and constructs an idle runner. The archiver may be nil.
func NewPromptRunner(cfg *cloud.Config, sampler FrameSampler, generator Generator, history HistorySink, archive Archiver) (*PromptRunner, error) {
	if _, err := template.New("analysis-template").Parse(cfg.PromptTemplates.Analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis template: %w", err)
	}
	structureTmpl, err := template.New("structure-template").Parse(cfg.PromptTemplates.Structure)
	if err != nil {
		return nil, fmt.Errorf("failed to parse structure template: %w", err)
	}
	refineTmpl, err := template.New("refine-template").Parse(cfg.PromptTemplates.Refine)
	if err != nil {
		return nil, fmt.Errorf("failed to parse refine template: %w", err)
	}

	quiet := time.Duration(cfg.Pipeline.QuietPeriodMillis) * time.Millisecond
	if quiet <= 0 {
		quiet = time.Second
	}

	return &PromptRunner{
		cfg:           cfg,
		generator:     generator,
		history:       history,
		pipeline:      workflow.NewPromptExtractionPipeline(cfg, sampler, generator, archive),
		structureTmpl: structureTmpl,
		refineTmpl:    refineTmpl,
		quiet:         quiet,
		state:         RunStateIdle,
		progress:      make(chan ProgressEvent, 32),
	}, nil
}

// Progress returns the run's progress event stream. Events are dropped
// rather than blocking the pipeline when no consumer is reading.
func (r *PromptRunner) Progress() <-chan ProgressEvent {
	return r.progress
}

func (r *PromptRunner) emit(stage string, percent int) {
	select {
	case r.progress <- ProgressEvent{Stage: stage, Percent: percent}:
	default:
	}
}

// State returns the current run state and whether a debounced restructure
// is pending or in flight.
func (r *PromptRunner) State() (RunState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.updating
}

// LastError returns the most recent run or restructure failure.
func (r *PromptRunner) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Views projects the current result into its three serialized views.
func (r *PromptRunner) Views() (*model.ProjectedViews, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return nil, ErrNoResult
	}
	return projector.Project(r.result)
}

// Reset abandons the current run and returns the runner to idle. Any
// in-flight work is discarded when it completes.
func (r *PromptRunner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.state = RunStateIdle
	r.updating = false
	r.result = nil
	r.lastErr = nil
	if r.debounce != nil {
		r.debounce.Stop()
		r.debounce = nil
	}
}

// StartRun executes the extraction pipeline for an upload: validate,
// archive, sample, infer, normalize, project, and record history. It
// returns the projected views, or ErrRunSuperseded when a newer run
// started before this one finished.
func (r *PromptRunner) StartRun(ctx context.Context, asset *model.MediaAsset) (*model.ProjectedViews, error) {
	if err := ValidateUpload(r.cfg.Upload, asset); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.generation++
	gen := r.generation
	r.state = RunStatePreviewing
	r.updating = false
	// The previous asset's result is gone the moment a new run starts, so
	// views and edits cannot act on stale content while this run is in
	// flight.
	r.result = nil
	r.lastErr = nil
	if r.debounce != nil {
		r.debounce.Stop()
		r.debounce = nil
	}
	r.mu.Unlock()
	r.emit("validating", 10)

	// Forward pipeline progress to the run's event stream, advancing the
	// run to processing once frames are on their way to the model.
	progress := commands.ProgressFunc(func(stage string, percent int) {
		r.emit(stage, percent)
		if stage == "analyzing" {
			r.mu.Lock()
			if gen == r.generation {
				r.state = RunStateProcessing
			}
			r.mu.Unlock()
		}
	})

	chainCtx := cor.NewBaseContext()
	defer chainCtx.Close()
	chainCtx.SetContext(ctx)
	chainCtx.Add(cor.CtxIn, asset)
	chainCtx.Add(commands.GetProgressFuncParameterName(), progress)

	r.pipeline.Execute(chainCtx)

	if chainCtx.HasErrors() {
		for _, err := range chainCtx.GetErrors() {
			return nil, r.failRun(gen, err)
		}
	}

	result, _ := chainCtx.Get(commands.GetResultParameterName()).(*model.PromptResult)
	views, _ := chainCtx.Get(commands.GetViewsParameterName()).(*model.ProjectedViews)
	if result == nil || views == nil {
		return nil, r.failRun(gen, errors.New("pipeline completed without producing a result"))
	}
	frames, _ := chainCtx.Get(commands.GetFramesParameterName()).([]*model.Frame)

	r.mu.Lock()
	if gen != r.generation {
		r.mu.Unlock()
		return nil, ErrRunSuperseded
	}
	r.result = result
	r.state = RunStateSuccess
	r.lastErr = nil
	r.mu.Unlock()
	r.emit("complete", 100)

	r.recordHistory(ctx, result, frames)
	return views, nil
}

// failRun marks the run failed unless a newer run has already taken over.
func (r *PromptRunner) failRun(gen uint64, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return ErrRunSuperseded
	}
	r.state = RunStateFailed
	r.lastErr = err
	return err
}

// recordHistory appends the run to the history sink. The thumbnail is the
// first sampled frame. Sink failures are logged, not surfaced.
func (r *PromptRunner) recordHistory(ctx context.Context, result *model.PromptResult, frames []*model.Frame) {
	item := &model.HistoryItem{
		ID:        uuid.NewString(),
		Prompt:    result.MasterPrompt,
		Scenes:    result.Scenes,
		CreatedAt: time.Now(),
	}
	if len(frames) > 0 {
		item.Thumbnail = frames[0].Data
		item.ThumbnailMIME = frames[0].MIMEType
	}
	if err := r.history.Save(ctx, item); err != nil {
		slog.Warn("failed to record history item", "id", item.ID, "error", err)
	}
}

// EditMasterPrompt records an edited master prompt and schedules a
// trailing-edge debounced restructure. A burst of edits within the quiet
// period collapses into one model call carrying the final text.
func (r *PromptRunner) EditMasterPrompt(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return ErrNoResult
	}
	r.pendingMaster = text
	r.updating = true
	r.generation++
	if r.debounce != nil {
		r.debounce.Stop()
	}
	r.debounce = time.AfterFunc(r.quiet, r.fireRestructure)
	return nil
}

// fireRestructure runs when the quiet period elapses. It restructures the
// pending master prompt into scenes, keeping the user's text as the
// master; on failure the last-good result is kept and the error surfaced
// through LastError.
func (r *PromptRunner) fireRestructure() {
	r.mu.Lock()
	gen := r.generation
	master := r.pendingMaster
	r.mu.Unlock()

	ctx := context.Background()
	var result *model.PromptResult
	instruction, err := r.renderStructure(master)
	if err == nil {
		var raw string
		raw, err = r.generator.Generate(ctx, &model.AnalysisRequest{
			Instruction: instruction,
			Shape:       model.SceneListSchema(),
		})
		if err == nil {
			var scenes []*model.SceneAnalysis
			scenes, err = normalizer.Scenes(raw)
			if err == nil {
				result = &model.PromptResult{MasterPrompt: master, Scenes: scenes}
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		// A newer edit or run took over while this call was in flight.
		return
	}
	r.updating = false
	if err != nil {
		r.lastErr = err
		slog.Warn("restructure failed, keeping last good result", "error", err)
		return
	}
	r.result = result
	r.lastErr = nil
}

// Refine rewrites the current master prompt as a text-only model call and
// feeds the rewritten prompt into the debounced restructure path. It
// returns the refined prompt text.
func (r *PromptRunner) Refine(ctx context.Context, opts RefineOptions) (string, error) {
	r.mu.Lock()
	if r.result == nil {
		r.mu.Unlock()
		return "", ErrNoResult
	}
	current := r.result.MasterPrompt
	r.mu.Unlock()

	prompt, err := r.renderRefine(current, opts)
	if err != nil {
		return "", err
	}
	raw, err := r.generator.Generate(ctx, &model.AnalysisRequest{Instruction: prompt})
	if err != nil {
		return "", err
	}
	refined, err := normalizer.Text(raw)
	if err != nil {
		return "", err
	}
	if err := r.EditMasterPrompt(refined); err != nil {
		return "", err
	}
	return refined, nil
}

func (r *PromptRunner) renderStructure(masterPrompt string) (string, error) {
	exampleJSON, _ := json.Marshal(model.GetExampleScene())
	vocabulary := map[string]interface{}{
		"MASTER_PROMPT": masterPrompt,
		"EXAMPLE_JSON":  string(exampleJSON),
	}
	var doc bytes.Buffer
	if err := r.structureTmpl.Execute(&doc, vocabulary); err != nil {
		return "", fmt.Errorf("failed to execute structure template: %w", err)
	}
	return doc.String(), nil
}

func (r *PromptRunner) renderRefine(currentPrompt string, opts RefineOptions) (string, error) {
	exclusions := ""
	if opts.NegativePrompt != "" {
		exclusions = fmt.Sprintf("Strictly avoid mentioning any of the following: %s.", opts.NegativePrompt)
	}
	vocabulary := map[string]interface{}{
		"CURRENT_PROMPT": currentPrompt,
		"INSTRUCTION":    ComposeRefineInstruction(opts),
		"EXCLUSIONS":     exclusions,
	}
	var doc bytes.Buffer
	if err := r.refineTmpl.Execute(&doc, vocabulary); err != nil {
		return "", fmt.Errorf("failed to execute refine template: %w", err)
	}
	return doc.String(), nil
}

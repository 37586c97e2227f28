// Package pipeline orchestrates the full analysis flow: fetch or accept
// raw logs, flatten them, reconstruct disambiguation events, score them,
// and hand the results to the optional persistence and messaging layers.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/watson-developer-cloud/assistant-effort/internal/conversation"
	"github.com/watson-developer-cloud/assistant-effort/internal/effort"
	"github.com/watson-developer-cloud/assistant-effort/internal/events"
	"github.com/watson-developer-cloud/assistant-effort/internal/fetch"
	"github.com/watson-developer-cloud/assistant-effort/internal/flatten"
	"github.com/watson-developer-cloud/assistant-effort/internal/store"
)

// LogFetcher pulls raw log records, optionally through a local cache.
type LogFetcher interface {
	FetchOrLoad(ctx context.Context, p fetch.Params, cache *fetch.Cache, overwrite bool) ([]any, bool, error)
}

// Processor runs analyses. The store, bus, fetcher and exporter are all
// optional: with none of them the processor still scores records handed to
// Analyze directly.
type Processor struct {
	store    *store.Store
	bus      *events.Client
	fetcher  LogFetcher
	cache    *fetch.Cache
	exporter *Exporter
	logger   *slog.Logger
}

func New(s *store.Store, bus *events.Client, fetcher LogFetcher, cache *fetch.Cache, exporter *Exporter, logger *slog.Logger) *Processor {
	return &Processor{
		store:    s,
		bus:      bus,
		fetcher:  fetcher,
		cache:    cache,
		exporter: exporter,
		logger:   logger,
	}
}

// Report summarises one analysis.
type Report struct {
	RunID             uuid.UUID            `json:"run_id"`
	Source            string               `json:"source"`
	FromCache         bool                 `json:"from_cache,omitempty"`
	Processed         int                  `json:"processed"`
	Skipped           int                  `json:"skipped"`
	Stats             conversation.Stats   `json:"stats"`
	Events            []effort.ScoredEvent `json:"events"`
	MeanEffort        float64              `json:"mean_effort"`
	MeanPreviewEffort float64              `json:"mean_preview_effort"`
	Warnings          []string             `json:"warnings,omitempty"`

	// Artifact locations, set when an exporter is configured.
	WorkbookPath   string `json:"workbook_path,omitempty"`
	UtterancesPath string `json:"utterances_path,omitempty"`
	WorkbookURL    string `json:"workbook_url,omitempty"`
}

// Analyze scores a batch of raw log records already in hand.
func (p *Processor) Analyze(records []any, source string) Report {
	turns, flatReport := flatten.Flatten(records, p.logger)
	evs, stats := conversation.Reconstruct(turns, p.logger)
	scored, scoreWarnings := effort.ScoreAll(evs, p.logger)

	warnings := append([]string{}, flatReport.Warnings...)
	warnings = append(warnings, stats.Errors...)
	warnings = append(warnings, scoreWarnings...)

	meanEffort, meanPreview := means(scored)

	return Report{
		RunID:             uuid.New(),
		Source:            source,
		Processed:         flatReport.Processed,
		Skipped:           flatReport.Skipped,
		Stats:             stats,
		Events:            scored,
		MeanEffort:        meanEffort,
		MeanPreviewEffort: meanPreview,
		Warnings:          warnings,
	}
}

// Run fetches logs for the given parameters, analyses them, and persists
// and publishes the outcome where those collaborators are configured.
func (p *Processor) Run(ctx context.Context, params fetch.Params, overwrite bool) (Report, error) {
	if p.fetcher == nil {
		return Report{}, fmt.Errorf("no log fetcher configured")
	}
	if err := params.Validate(); err != nil {
		return Report{}, fmt.Errorf("invalid fetch parameters: %w", err)
	}

	source := sourceLabel(params)

	var runID uuid.UUID
	if p.store != nil {
		id, err := p.store.CreateRun(ctx, source)
		if err != nil {
			return Report{}, err
		}
		runID = id
	}

	records, fromCache, err := p.fetcher.FetchOrLoad(ctx, params, p.cache, overwrite)
	if err != nil {
		p.fail(ctx, runID, err)
		return Report{}, fmt.Errorf("fetch logs: %w", err)
	}

	report := p.Analyze(records, source)
	report.FromCache = fromCache
	if runID != uuid.Nil {
		report.RunID = runID
	}

	// Artifacts are best effort: an export failure degrades to a warning
	// rather than failing the analysis that produced the data.
	if p.exporter != nil {
		if err := p.exporter.export(&report, p.logger); err != nil {
			p.logger.Error("run export failed", "run_id", report.RunID, "error", err)
			report.Warnings = append(report.Warnings, fmt.Sprintf("export: %v", err))
		}
	}

	if p.store != nil {
		if err := p.store.InsertEvents(ctx, report.RunID, report.Events); err != nil {
			p.fail(ctx, report.RunID, err)
			return Report{}, err
		}
		if err := p.store.FinishRun(ctx, report.RunID, report.Processed, report.Skipped,
			len(report.Events), report.MeanEffort, report.MeanPreviewEffort, ""); err != nil {
			return Report{}, err
		}
	}

	if p.bus != nil {
		completed := events.RunCompleted{
			RunID:             report.RunID.String(),
			Status:            "completed",
			Events:            len(report.Events),
			MeanEffort:        report.MeanEffort,
			MeanPreviewEffort: report.MeanPreviewEffort,
		}
		if err := p.bus.Publish(events.SubjectRunCompleted, completed); err != nil {
			p.logger.Warn("publish run completed", "error", err)
		}
	}

	p.logger.Info("run finished",
		"run_id", report.RunID,
		"source", source,
		"processed", report.Processed,
		"events", len(report.Events),
		"mean_effort", report.MeanEffort,
	)
	return report, nil
}

// HandleRunRequested is the NATS handler for run requests.
func (p *Processor) HandleRunRequested(subject string, data []byte) {
	var req events.RunRequested
	if err := json.Unmarshal(data, &req); err != nil {
		p.logger.Error("failed to parse run request", "error", err)
		return
	}

	params := fetch.Params{
		WorkspaceID: req.WorkspaceID,
		SkillID:     req.SkillID,
		AssistantID: req.AssistantID,
		Count:       req.Count,
	}

	if _, err := p.Run(context.Background(), params, req.Overwrite); err != nil {
		p.logger.Error("requested run failed", "error", err)
	}
}

func (p *Processor) fail(ctx context.Context, runID uuid.UUID, cause error) {
	if p.store != nil && runID != uuid.Nil {
		if err := p.store.FinishRun(ctx, runID, 0, 0, 0, 0, 0, cause.Error()); err != nil {
			p.logger.Error("record run failure", "error", err)
		}
	}
	if p.bus != nil {
		completed := events.RunCompleted{RunID: runID.String(), Status: "failed", Error: cause.Error()}
		if err := p.bus.Publish(events.SubjectRunCompleted, completed); err != nil {
			p.logger.Warn("publish run failure", "error", err)
		}
	}
}

func sourceLabel(p fetch.Params) string {
	switch {
	case p.WorkspaceID != "":
		return "workspace:" + p.WorkspaceID
	case p.SkillID != "":
		return "skill:" + p.SkillID
	default:
		return "assistant:" + p.AssistantID
	}
}

func means(scored []effort.ScoredEvent) (float64, float64) {
	if len(scored) == 0 {
		return 0, 0
	}
	var effortSum, previewSum float64
	for _, ev := range scored {
		effortSum += ev.EffortScore
		previewSum += ev.PreviewEffortScore
	}
	n := float64(len(scored))
	return effortSum / n, previewSum / n
}

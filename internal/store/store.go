// Package store persists analysis runs and their scored disambiguation
// events in Postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/watson-developer-cloud/assistant-effort/internal/effort"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Run is one row of analysis_runs.
type Run struct {
	ID                uuid.UUID
	Source            string
	Status            string
	Processed         int
	Skipped           int
	Events            int
	MeanEffort        float64
	MeanPreviewEffort float64
	Error             string
	CreatedAt         time.Time
	FinishedAt        *time.Time
}

// CreateRun inserts a pending run and returns its id.
func (s *Store) CreateRun(ctx context.Context, source string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_runs (id, source, status, created_at)
		VALUES ($1, $2, 'running', now())`,
		id, source,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun records the outcome of a run. A non-empty errMsg marks the
// run as failed.
func (s *Store) FinishRun(ctx context.Context, id uuid.UUID, processed, skipped, events int, meanEffort, meanPreview float64, errMsg string) error {
	status := "completed"
	if errMsg != "" {
		status = "failed"
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE analysis_runs
		SET status = $1, processed = $2, skipped = $3, events = $4,
		    mean_effort = $5, mean_preview_effort = $6, error = $7, finished_at = now()
		WHERE id = $8`,
		status, processed, skipped, events, meanEffort, meanPreview, errMsg, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun fetches a single run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	var r Run
	err := s.pool.QueryRow(ctx, `
		SELECT id, source, status, processed, skipped, events,
		       mean_effort, mean_preview_effort, error, created_at, finished_at
		FROM analysis_runs WHERE id = $1`, id,
	).Scan(&r.ID, &r.Source, &r.Status, &r.Processed, &r.Skipped, &r.Events,
		&r.MeanEffort, &r.MeanPreviewEffort, &r.Error, &r.CreatedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// InsertEvents writes the scored events of a run in one transaction.
func (s *Store) InsertEvents(ctx context.Context, runID uuid.UUID, events []effort.ScoredEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, ev := range events {
		_, err = tx.Exec(ctx, `
			INSERT INTO disambiguation_events (
				id, run_id, log_id, conversation_id, ts, input_text,
				selected_suggestion_id, selected_dialog_node, none_of_the_above,
				suggestion_rank, more_option_rank, effort_score, preview_effort_score
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			uuid.New(), runID, ev.LogID, ev.ConversationID, ev.Timestamp, ev.InputText,
			ev.SelectedSuggestionID, ev.SelectedDialogNode, ev.NoneOfTheAbove,
			ev.SuggestionRank, ev.MoreOptionRank, ev.EffortScore, ev.PreviewEffortScore,
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", ev.LogID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// EventScore is the slim per-event view served by the API.
type EventScore struct {
	LogID              string
	ConversationID     string
	Timestamp          time.Time
	SelectedDialogNode string
	NoneOfTheAbove     bool
	EffortScore        float64
	PreviewEffortScore float64
}

// ListEventScores returns the scored events of a run ordered by timestamp.
func (s *Store) ListEventScores(ctx context.Context, runID uuid.UUID) ([]EventScore, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT log_id, conversation_id, ts, selected_dialog_node,
		       none_of_the_above, effort_score, preview_effort_score
		FROM disambiguation_events
		WHERE run_id = $1
		ORDER BY ts`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var scores []EventScore
	for rows.Next() {
		var e EventScore
		if err := rows.Scan(&e.LogID, &e.ConversationID, &e.Timestamp, &e.SelectedDialogNode,
			&e.NoneOfTheAbove, &e.EffortScore, &e.PreviewEffortScore); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		scores = append(scores, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return scores, nil
}

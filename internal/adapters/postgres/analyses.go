package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"prospector/internal/domain"
)

// AnalysisRepository

func (db *DB) Create(ctx context.Context, url, registrable string) (string, error) {
	var analysisID string
	err := db.Pool.QueryRow(ctx, `
        INSERT INTO analyses (url, domain, status)
        VALUES ($1, $2, 'queued')
        RETURNING id
    `, url, strings.ToLower(registrable)).Scan(&analysisID)
	if err != nil {
		return "", err
	}
	// create job row
	_, err = db.Pool.Exec(ctx, `INSERT INTO analysis_jobs (analysis_id) VALUES ($1)`, analysisID)
	return analysisID, err
}

func (db *DB) Get(ctx context.Context, analysisID string) (domain.Analysis, error) {
	var a domain.Analysis
	err := db.Pool.QueryRow(ctx, `
        SELECT id, url, domain, status, COALESCE(stage, ''), lead_id, error, created_at, started_at, finished_at
        FROM analyses WHERE id = $1
    `, analysisID).Scan(&a.ID, &a.URL, &a.Domain, &a.Status, &a.Stage, &a.LeadID, &a.Error, &a.CreatedAt, &a.StartedAt, &a.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

func (db *DB) SetStage(ctx context.Context, analysisID string, stage string) error {
	_, err := db.Pool.Exec(ctx, `UPDATE analyses SET stage=$2 WHERE id=$1`, analysisID, stage)
	return err
}

func (db *DB) SetLead(ctx context.Context, analysisID string, leadID string) error {
	_, err := db.Pool.Exec(ctx, `UPDATE analyses SET lead_id=$2 WHERE id=$1`, analysisID, leadID)
	return err
}

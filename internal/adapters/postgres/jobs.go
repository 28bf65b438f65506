package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"prospector/internal/ports"
)

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.AnalysisJob, found bool, err error) {
	// Use explicit transaction to safely lock and transition state
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	// Lock the next queued job
	err = tx.QueryRow(ctx, `
        SELECT id, analysis_id FROM analysis_jobs
        WHERE status = 'queued'
        ORDER BY queued_at
        FOR UPDATE SKIP LOCKED
        LIMIT 1
    `).Scan(&job.ID, &job.AnalysisID)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	// Mark job running and bump attempts
	if _, err = tx.Exec(ctx, `
        UPDATE analysis_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
    `, job.ID); err != nil {
		return job, false, err
	}
	// Ensure the analysis reflects running
	if _, err = tx.Exec(ctx, `
        UPDATE analyses SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1
    `, job.AnalysisID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string) error {
	// complete job and analysis atomically
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	var analysisID string
	if err = tx.QueryRow(ctx, `SELECT analysis_id FROM analysis_jobs WHERE id=$1`, jobID).Scan(&analysisID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE analysis_jobs SET status='completed', finished_at=now() WHERE id=$1`, jobID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE analyses SET status='completed', finished_at=now() WHERE id=$1`, analysisID); err != nil {
		return err
	}
	return nil
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()
	var analysisID string
	if err = tx.QueryRow(ctx, `SELECT analysis_id FROM analysis_jobs WHERE id=$1`, jobID).Scan(&analysisID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE analysis_jobs SET status='failed', finished_at=now() WHERE id=$1`, jobID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE analyses SET status='failed', error=$2, finished_at=now() WHERE id=$1`, analysisID, reason); err != nil {
		return err
	}
	return nil
}

// StartJobForAnalysis marks the job for a specific analysis as running and returns the job id.
func (db *DB) StartJobForAnalysis(ctx context.Context, analysisID string) (string, error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	var jobID string
	// lock specific job row if queued
	err = tx.QueryRow(ctx, `
        SELECT id FROM analysis_jobs
        WHERE analysis_id = $1 AND status = 'queued'
        FOR UPDATE SKIP LOCKED
    `, analysisID).Scan(&jobID)
	if err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE analysis_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1`, jobID); err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE analyses SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1`, analysisID); err != nil {
		return "", err
	}
	return jobID, nil
}

// Package analysisrunner claims queued analysis jobs and drives each one
// through the full pipeline: page snapshot, audit, scoring submission.
package analysisrunner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"prospector/internal/audit"
	"prospector/internal/bridge"
	"prospector/internal/domain"
	"prospector/internal/metrics"
	"prospector/internal/pipeline"
	"prospector/internal/ports"
)

// Processor performs the analysis work for a job's analysis id.
type Processor interface {
	Process(ctx context.Context, analysisID string) error
}

// Run starts worker goroutines that claim jobs and process them.
func Run(ctx context.Context, repo ports.JobRepository, processor Processor, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.AnalysisJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(jobsCh)
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						slog.Error("job claim failed", "error", err)
						break
					}
					if !found {
						break
					}
					jobsCh <- job
				}
			}
		}
	}()

	// workers
	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				if err := processor.Process(ctx, job.AnalysisID); err != nil {
					_ = repo.MarkFailed(ctx, job.ID, err.Error())
					metrics.AnalysesProcessed.WithLabelValues("failed").Inc()
					slog.Error("analysis failed", "worker", idx, "job_id", job.ID, "error", err)
					continue
				}
				if err := repo.MarkCompleted(ctx, job.ID); err != nil {
					slog.Error("marking job completed failed", "worker", idx, "job_id", job.ID, "error", err)
					continue
				}
				metrics.AnalysesProcessed.WithLabelValues("completed").Inc()
			}
		}(i)
	}
}

// ProcessInline starts and processes one analysis synchronously with the
// same logic as the background workers, for callers that want to wait.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor Processor, analysisID string) error {
	jobID, err := repo.StartJobForAnalysis(ctx, analysisID)
	if err != nil {
		return err
	}
	if err := processor.Process(ctx, analysisID); err != nil {
		_ = repo.MarkFailed(ctx, jobID, err.Error())
		metrics.AnalysesProcessed.WithLabelValues("failed").Inc()
		return err
	}
	if err := repo.MarkCompleted(ctx, jobID); err != nil {
		return err
	}
	metrics.AnalysesProcessed.WithLabelValues("completed").Inc()
	return nil
}

// PipelineProcessor runs the real pipeline for one analysis: a detection
// snapshot requested from the page context and an audit run concurrently,
// then one scoring submission composed from both.
type PipelineProcessor struct {
	Analyses ports.AnalysisRepository
	Hub      *bridge.Hub
	Audits   *audit.Orchestrator
	Pipeline *pipeline.Service
}

func (p *PipelineProcessor) Process(ctx context.Context, analysisID string) error {
	analysis, err := p.Analyses.Get(ctx, analysisID)
	if err != nil {
		return err
	}

	p.stage(ctx, analysisID, "detecting")
	var snap domain.PageSnapshot
	var auditJob domain.AuditJob

	// The snapshot and the audit depend only on the URL, so they run in
	// parallel; the audit never fails the group, only detection can.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		req := bridge.PageRequest{URL: analysis.URL}
		return p.Hub.Request(gctx, bridge.PageContext, bridge.ActionGetPageData, req, &snap)
	})
	if p.Audits != nil {
		g.Go(func() error {
			p.stage(gctx, analysisID, "auditing")
			auditJob = p.Audits.Run(gctx, analysis.URL)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.stage(ctx, analysisID, "submitting")
	lead, err := p.Pipeline.Submit(ctx, snap, auditJob)
	if err != nil {
		return err
	}
	if err := p.Analyses.SetLead(ctx, analysisID, lead.ID); err != nil {
		slog.Warn("linking lead to analysis failed", "analysis_id", analysisID, "lead_id", lead.ID, "error", err)
	}
	// A lead submitted before its audit finished gets the id attached now.
	if lead.LinkedAuditID == "" && auditJob.ID != "" && auditJob.Status == domain.AuditCompleted {
		if err := p.Pipeline.LinkAudit(ctx, lead.ID, auditJob.ID); err != nil {
			slog.Warn("linking audit to lead failed", "lead_id", lead.ID, "audit_id", auditJob.ID, "error", err)
		}
	}
	return nil
}

func (p *PipelineProcessor) stage(ctx context.Context, analysisID, stage string) {
	if err := p.Analyses.SetStage(ctx, analysisID, stage); err != nil {
		slog.Warn("stage update failed", "analysis_id", analysisID, "stage", stage, "error", err)
	}
}

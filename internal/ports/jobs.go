package ports

import "context"

type AnalysisJob struct {
	ID         string
	AnalysisID string
}

// JobRepository supports claiming and updating analysis jobs.
type JobRepository interface {
	ClaimNext(ctx context.Context) (job AnalysisJob, found bool, err error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	StartJobForAnalysis(ctx context.Context, analysisID string) (jobID string, err error)
}

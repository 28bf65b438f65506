package ports

import (
	"context"

	"prospector/internal/domain"
)

// AnalysisRepository manages analysis records and their job tracking.
type AnalysisRepository interface {
	Create(ctx context.Context, url, registrable string) (analysisID string, err error)
	Get(ctx context.Context, analysisID string) (domain.Analysis, error)
	SetStage(ctx context.Context, analysisID string, stage string) error
	SetLead(ctx context.Context, analysisID string, leadID string) error
}

// LeadRepository is the local ledger of submitted lead records. Rows mirror
// what the CRM returned; LinkAudit attaches an audit id after the fact.
type LeadRepository interface {
	Upsert(ctx context.Context, lead domain.LeadRecord) error
	GetByDomain(ctx context.Context, registrable string) (lead domain.LeadRecord, found bool, err error)
	LinkAudit(ctx context.Context, leadID, auditID string) error
}

package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"prospector/internal/domain"
)

// LeadRepository: the local ledger mirroring what the CRM returned.

func (db *DB) Upsert(ctx context.Context, lead domain.LeadRecord) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO leads (id, domain, score, tier, factors, pitch_angles, linked_audit_id)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
        ON CONFLICT (id) DO UPDATE SET
            domain = EXCLUDED.domain,
            score = EXCLUDED.score,
            tier = EXCLUDED.tier,
            factors = EXCLUDED.factors,
            pitch_angles = EXCLUDED.pitch_angles,
            linked_audit_id = COALESCE(EXCLUDED.linked_audit_id, leads.linked_audit_id),
            updated_at = now()
    `, lead.ID, strings.ToLower(lead.Domain), lead.Score, string(lead.Tier), lead.Factors, lead.PitchAngles, lead.LinkedAuditID)
	return err
}

func (db *DB) GetByDomain(ctx context.Context, registrable string) (domain.LeadRecord, bool, error) {
	var lead domain.LeadRecord
	var auditID *string
	err := db.Pool.QueryRow(ctx, `
        SELECT id, domain, score, tier, COALESCE(factors, '{}'), COALESCE(pitch_angles, '{}'), linked_audit_id
        FROM leads
        WHERE domain = $1
        ORDER BY updated_at DESC
        LIMIT 1
    `, strings.ToLower(registrable)).Scan(&lead.ID, &lead.Domain, &lead.Score, &lead.Tier, &lead.Factors, &lead.PitchAngles, &auditID)
	if errors.Is(err, pgx.ErrNoRows) {
		return lead, false, nil
	}
	if err != nil {
		return lead, false, err
	}
	if auditID != nil {
		lead.LinkedAuditID = *auditID
	}
	return lead, true, nil
}

func (db *DB) LinkAudit(ctx context.Context, leadID, auditID string) error {
	_, err := db.Pool.Exec(ctx, `UPDATE leads SET linked_audit_id=$2, updated_at=now() WHERE id=$1`, leadID, auditID)
	return err
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage"
)

// ReferenceJournal implements storage.ReferenceJournal using PostgreSQL.
type ReferenceJournal struct {
	pool *Pool
}

// NewReferenceJournal creates a new ReferenceJournal.
func NewReferenceJournal(pool *Pool) *ReferenceJournal {
	return &ReferenceJournal{pool: pool}
}

// Compile-time interface check.
var _ storage.ReferenceJournal = (*ReferenceJournal)(nil)

// Insert records a dispatched reference. Returns ErrDuplicateKey if the
// commitment or the reference was already journaled.
func (j *ReferenceJournal) Insert(ctx context.Context, ref *domain.ExternalReference) error {
	if ref == nil || ref.Reference == "" || ref.CommitmentID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO reference_journal (
			reference, commitment_id, project_id, channel, amount, currency, investor_addr, dispatched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := j.pool.Exec(ctx, query,
		ref.Reference,
		ref.CommitmentID,
		ref.ProjectID,
		string(ref.Channel),
		ref.Amount,
		ref.Currency,
		ref.InvestorAddr,
		ref.DispatchedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert reference: %w", err)
	}
	return nil
}

// GetByReference retrieves a journal entry by external reference.
func (j *ReferenceJournal) GetByReference(ctx context.Context, reference string) (*domain.ExternalReference, error) {
	query := `
		SELECT reference, commitment_id, project_id, channel, amount, currency, investor_addr, dispatched_at
		FROM reference_journal
		WHERE reference = $1
	`

	row := j.pool.QueryRow(ctx, query, reference)
	ref, err := scanReference(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get reference: %w", err)
	}
	return ref, nil
}

// GetByCommitment retrieves the journal entry for a commitment.
func (j *ReferenceJournal) GetByCommitment(ctx context.Context, commitmentID string) (*domain.ExternalReference, error) {
	query := `
		SELECT reference, commitment_id, project_id, channel, amount, currency, investor_addr, dispatched_at
		FROM reference_journal
		WHERE commitment_id = $1
	`

	row := j.pool.QueryRow(ctx, query, commitmentID)
	ref, err := scanReference(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get reference by commitment: %w", err)
	}
	return ref, nil
}

// GetByProject retrieves all journaled references for a project, ordered
// by dispatch time ASC.
func (j *ReferenceJournal) GetByProject(ctx context.Context, projectID string) ([]*domain.ExternalReference, error) {
	query := `
		SELECT reference, commitment_id, project_id, channel, amount, currency, investor_addr, dispatched_at
		FROM reference_journal
		WHERE project_id = $1
		ORDER BY dispatched_at ASC, reference ASC
	`

	rows, err := j.pool.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query references by project: %w", err)
	}
	defer rows.Close()

	var result []*domain.ExternalReference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		result = append(result, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return result, nil
}

// scanReference scans one reference_journal row.
func scanReference(row pgx.Row) (*domain.ExternalReference, error) {
	var ref domain.ExternalReference
	var channel string
	err := row.Scan(
		&ref.Reference,
		&ref.CommitmentID,
		&ref.ProjectID,
		&channel,
		&ref.Amount,
		&ref.Currency,
		&ref.InvestorAddr,
		&ref.DispatchedAt,
	)
	if err != nil {
		return nil, err
	}
	ref.Channel = domain.Channel(channel)
	return &ref, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage"
)

// ReconcileQueue implements storage.ReconcileQueue using PostgreSQL.
type ReconcileQueue struct {
	pool *Pool
}

// NewReconcileQueue creates a new ReconcileQueue.
func NewReconcileQueue(pool *Pool) *ReconcileQueue {
	return &ReconcileQueue{pool: pool}
}

// Compile-time interface check.
var _ storage.ReconcileQueue = (*ReconcileQueue)(nil)

// Enqueue adds a pending reconciliation. Returns ErrDuplicateKey if the
// reference is already queued.
func (q *ReconcileQueue) Enqueue(ctx context.Context, p *domain.PendingReconciliation) error {
	if p == nil || p.Reference == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO reconcile_queue (
			reference, commitment_id, project_id, channel, amount, currency,
			investor_addr, attempts, last_error, enqueued_at, done
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := q.pool.Exec(ctx, query,
		p.Reference,
		p.CommitmentID,
		p.ProjectID,
		string(p.Channel),
		p.Amount,
		p.Currency,
		p.InvestorAddr,
		p.Attempts,
		p.LastError,
		p.EnqueuedAt,
		p.Done,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("enqueue reconciliation: %w", err)
	}
	return nil
}

// ListPending retrieves undone entries ordered by enqueue time ASC.
func (q *ReconcileQueue) ListPending(ctx context.Context, limit int) ([]*domain.PendingReconciliation, error) {
	query := `
		SELECT reference, commitment_id, project_id, channel, amount, currency,
		       investor_addr, attempts, last_error, enqueued_at, done
		FROM reconcile_queue
		WHERE NOT done
		ORDER BY enqueued_at ASC, reference ASC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := q.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending reconciliations: %w", err)
	}
	defer rows.Close()

	var result []*domain.PendingReconciliation
	for rows.Next() {
		p, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending reconciliation: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending reconciliations: %w", err)
	}
	return result, nil
}

// MarkAttempt records a failed retry attempt for the reference.
func (q *ReconcileQueue) MarkAttempt(ctx context.Context, reference string, lastError string) error {
	tag, err := q.pool.Exec(ctx, `
		UPDATE reconcile_queue
		SET attempts = attempts + 1, last_error = $2
		WHERE reference = $1
	`, reference, lastError)
	if err != nil {
		return fmt.Errorf("mark attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// MarkDone marks the reference reconciled. Idempotent.
func (q *ReconcileQueue) MarkDone(ctx context.Context, reference string) error {
	tag, err := q.pool.Exec(ctx, `
		UPDATE reconcile_queue
		SET done = TRUE
		WHERE reference = $1
	`, reference)
	if err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanPending scans one reconcile_queue row.
func scanPending(row pgx.Row) (*domain.PendingReconciliation, error) {
	var p domain.PendingReconciliation
	var channel string
	err := row.Scan(
		&p.Reference,
		&p.CommitmentID,
		&p.ProjectID,
		&channel,
		&p.Amount,
		&p.Currency,
		&p.InvestorAddr,
		&p.Attempts,
		&p.LastError,
		&p.EnqueuedAt,
		&p.Done,
	)
	if err != nil {
		return nil, err
	}
	p.Channel = domain.Channel(channel)
	return &p, nil
}

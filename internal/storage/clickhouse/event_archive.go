package clickhouse

import (
	"context"
	"fmt"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage"
)

// EventArchive implements storage.EventArchive using ClickHouse.
type EventArchive struct {
	conn *Conn
}

// NewEventArchive creates a new EventArchive.
func NewEventArchive(conn *Conn) *EventArchive {
	return &EventArchive{conn: conn}
}

// Compile-time interface check.
var _ storage.EventArchive = (*EventArchive)(nil)

// Insert appends one observed event. Duplicate observations of the same
// (tx_hash, kind, project_id) are rejected with ErrDuplicateKey.
func (a *EventArchive) Insert(ctx context.Context, e *domain.ChainEvent) error {
	if e == nil || e.TxHash == "" || e.ProjectID == "" || !e.Kind.IsValid() {
		return storage.ErrInvalidInput
	}

	// MergeTree does not enforce uniqueness at insert time, so the
	// duplicate check happens before the insert.
	exists, err := a.exists(ctx, e.TxHash, e.Kind, e.ProjectID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO event_archive (
			tx_hash, kind, project_id, investor, amount, status,
			milestone_id, block_number, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.TxHash, string(e.Kind), e.ProjectID, e.Investor, e.Amount,
		string(e.Status), e.MilestoneID, uint64(e.BlockNumber), uint64(e.ObservedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByProject retrieves archived events for a project, ordered by block number ASC.
func (a *EventArchive) GetByProject(ctx context.Context, projectID string) ([]*domain.ChainEvent, error) {
	query := `
		SELECT tx_hash, kind, project_id, investor, amount, status,
		       milestone_id, block_number, observed_at
		FROM event_archive
		WHERE project_id = ?
		ORDER BY block_number ASC, tx_hash ASC
	`

	rows, err := a.conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query by project id: %w", err)
	}
	defer rows.Close()

	return scanChainEvents(rows)
}

// LastBlock returns the highest archived block number for a project, or 0
// when nothing is archived.
func (a *EventArchive) LastBlock(ctx context.Context, projectID string) (int64, error) {
	query := `
		SELECT max(block_number) FROM event_archive
		WHERE project_id = ?
	`

	var last uint64
	err := a.conn.QueryRow(ctx, query, projectID).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("query last block: %w", err)
	}
	return int64(last), nil
}

// exists checks if an observation with the given key exists.
func (a *EventArchive) exists(ctx context.Context, txHash string, kind domain.EventKind, projectID string) (bool, error) {
	query := `
		SELECT count(*) FROM event_archive
		WHERE tx_hash = ? AND kind = ? AND project_id = ?
	`

	var count uint64
	err := a.conn.QueryRow(ctx, query, txHash, string(kind), projectID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows abstracts driver.Rows for scanning.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanChainEvents scans multiple rows.
func scanChainEvents(rows chRows) ([]*domain.ChainEvent, error) {
	var events []*domain.ChainEvent

	for rows.Next() {
		var e domain.ChainEvent
		var kind, status string
		var blockNumber, observedAt uint64

		err := rows.Scan(
			&e.TxHash, &kind, &e.ProjectID, &e.Investor, &e.Amount, &status,
			&e.MilestoneID, &blockNumber, &observedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event archive row: %w", err)
		}

		e.Kind = domain.EventKind(kind)
		e.Status = domain.ProjectStatus(status)
		e.BlockNumber = int64(blockNumber)
		e.ObservedAt = int64(observedAt)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event archive rows: %w", err)
	}

	return events, nil
}

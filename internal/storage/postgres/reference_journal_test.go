package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage"
)

func testReference(ref, commitmentID string) *domain.ExternalReference {
	return &domain.ExternalReference{
		Reference:    ref,
		CommitmentID: commitmentID,
		ProjectID:    "proj-1",
		Channel:      domain.ChannelGateway,
		Amount:       50000,
		Currency:     "UGX",
		DispatchedAt: 1704067200000,
	}
}

func TestReferenceJournal_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewReferenceJournal(pool)
	ctx := context.Background()

	ref := testReference("INV-proj-1-1704067200000", "c-1")
	ref.InvestorAddr = "0xabc"
	require.NoError(t, journal.Insert(ctx, ref))

	got, err := journal.GetByReference(ctx, ref.Reference)
	require.NoError(t, err)
	assert.Equal(t, ref.CommitmentID, got.CommitmentID)
	assert.Equal(t, domain.ChannelGateway, got.Channel)
	assert.Equal(t, 50000.0, got.Amount)
	assert.Equal(t, "UGX", got.Currency)
	assert.Equal(t, "0xabc", got.InvestorAddr)
	assert.Equal(t, int64(1704067200000), got.DispatchedAt)

	got, err = journal.GetByCommitment(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, ref.Reference, got.Reference)
}

func TestReferenceJournal_DuplicateReference(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewReferenceJournal(pool)
	ctx := context.Background()

	require.NoError(t, journal.Insert(ctx, testReference("r-1", "c-1")))

	// Same reference, different commitment
	err := journal.Insert(ctx, testReference("r-1", "c-2"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Same commitment, different reference
	err = journal.Insert(ctx, testReference("r-2", "c-1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestReferenceJournal_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewReferenceJournal(pool)
	ctx := context.Background()

	_, err := journal.GetByReference(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = journal.GetByCommitment(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReferenceJournal_GetByProject(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewReferenceJournal(pool)
	ctx := context.Background()

	first := testReference("r-1", "c-1")
	first.DispatchedAt = 1000
	second := testReference("r-2", "c-2")
	second.DispatchedAt = 2000
	other := testReference("r-3", "c-3")
	other.ProjectID = "proj-2"

	for _, ref := range []*domain.ExternalReference{second, first, other} {
		require.NoError(t, journal.Insert(ctx, ref))
	}

	got, err := journal.GetByProject(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r-1", got[0].Reference)
	assert.Equal(t, "r-2", got[1].Reference)
}

func TestReferenceJournal_InvalidInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	journal := NewReferenceJournal(pool)
	ctx := context.Background()

	assert.ErrorIs(t, journal.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, journal.Insert(ctx, testReference("", "c-1")), storage.ErrInvalidInput)
	assert.ErrorIs(t, journal.Insert(ctx, testReference("r-1", "")), storage.ErrInvalidInput)
}

package memory

import (
	"context"
	"errors"
	"testing"

	"crowdfund-settlement/internal/domain"
	"crowdfund-settlement/internal/storage"
)

func sampleRef() *domain.ExternalReference {
	return &domain.ExternalReference{
		CommitmentID: "c-1",
		ProjectID:    "proj-1",
		Channel:      domain.ChannelOnChain,
		Reference:    "0xabc",
		Amount:       1.5,
		Currency:     "ETH",
		InvestorAddr: "0xinvestor",
		DispatchedAt: 1704067200000,
	}
}

func TestReferenceJournal_InsertAndGet(t *testing.T) {
	j := NewReferenceJournal()
	ctx := context.Background()

	if err := j.Insert(ctx, sampleRef()); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := j.GetByReference(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetByReference failed: %v", err)
	}
	if got.CommitmentID != "c-1" || got.Amount != 1.5 {
		t.Errorf("entry mismatch: %+v", got)
	}

	got, err = j.GetByCommitment(ctx, "c-1")
	if err != nil {
		t.Fatalf("GetByCommitment failed: %v", err)
	}
	if got.Reference != "0xabc" {
		t.Errorf("Reference mismatch: got %s", got.Reference)
	}
}

func TestReferenceJournal_DuplicateReference(t *testing.T) {
	j := NewReferenceJournal()
	ctx := context.Background()

	if err := j.Insert(ctx, sampleRef()); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	// Same reference, different commitment
	dup := sampleRef()
	dup.CommitmentID = "c-2"
	if err := j.Insert(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same commitment, different reference
	dup = sampleRef()
	dup.Reference = "0xdef"
	if err := j.Insert(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestReferenceJournal_NotFound(t *testing.T) {
	j := NewReferenceJournal()
	ctx := context.Background()

	if _, err := j.GetByReference(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := j.GetByCommitment(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestReferenceJournal_GetByProjectOrdered(t *testing.T) {
	j := NewReferenceJournal()
	ctx := context.Background()

	refs := []*domain.ExternalReference{
		{CommitmentID: "c-3", ProjectID: "proj-1", Reference: "r3", DispatchedAt: 3000},
		{CommitmentID: "c-1", ProjectID: "proj-1", Reference: "r1", DispatchedAt: 1000},
		{CommitmentID: "c-2", ProjectID: "proj-2", Reference: "r2", DispatchedAt: 2000},
	}
	for _, r := range refs {
		if err := j.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := j.GetByProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("GetByProject failed: %v", err)
	}
	if len(got) != 2 || got[0].Reference != "r1" || got[1].Reference != "r3" {
		t.Errorf("ordering mismatch: %+v", got)
	}
}

func TestReferenceJournal_InvalidInput(t *testing.T) {
	j := NewReferenceJournal()
	ctx := context.Background()

	if err := j.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}
	if err := j.Insert(ctx, &domain.ExternalReference{CommitmentID: "c-1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty reference, got %v", err)
	}
}

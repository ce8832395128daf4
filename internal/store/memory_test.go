package store

import (
	"context"
	"errors"
	"testing"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

func sampleDeal(id string, status model.DealStatus) model.Deal {
	return model.Deal{
		DealID: id,
		Status: status,
		Policy: model.NegotiationPolicy{BudgetCeiling: "100", MaxRounds: 5},
	}
}

func TestMemoryStoreSaveGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDealStore()

	if err := s.Save(ctx, sampleDeal("deal_1", model.StatusRFQOpen)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, sampleDeal("deal_1", model.StatusRFQOpen)); !errors.Is(err, ErrDealExists) {
		t.Errorf("duplicate Save() error = %v, want ErrDealExists", err)
	}

	got, err := s.Get(ctx, "deal_1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == nil || got.DealID != "deal_1" {
		t.Fatalf("Get() = %+v", got)
	}

	missing, err := s.Get(ctx, "deal_nope")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDealStore()

	if err := s.Update(ctx, sampleDeal("deal_1", model.StatusNegotiating)); !errors.Is(err, ErrDealNotFound) {
		t.Errorf("Update(unknown) error = %v, want ErrDealNotFound", err)
	}

	if err := s.Save(ctx, sampleDeal("deal_1", model.StatusRFQOpen)); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, sampleDeal("deal_1", model.StatusNegotiating)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ := s.Get(ctx, "deal_1")
	if got.Status != model.StatusNegotiating {
		t.Errorf("status after update = %s", got.Status)
	}
}

func TestMemoryStoreArchive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDealStore()

	if err := s.Save(ctx, sampleDeal("deal_1", model.StatusFinalized)); err != nil {
		t.Fatal(err)
	}
	if err := s.Archive(ctx, sampleDeal("deal_1", model.StatusArchived)); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	// gone from live, readable from the archive
	if live, _ := s.Get(ctx, "deal_1"); live != nil {
		t.Error("archived deal still in live store")
	}
	archived, err := s.GetArchived(ctx, "deal_1")
	if err != nil || archived == nil {
		t.Fatalf("GetArchived() = (%v, %v)", archived, err)
	}
	if archived.Status != model.StatusArchived {
		t.Errorf("archived status = %s", archived.Status)
	}

	if err := s.Update(ctx, sampleDeal("deal_1", model.StatusNegotiating)); !errors.Is(err, ErrDealArchived) {
		t.Errorf("Update(archived) error = %v, want ErrDealArchived", err)
	}
	if err := s.Save(ctx, sampleDeal("deal_1", model.StatusRFQOpen)); !errors.Is(err, ErrDealExists) {
		t.Errorf("Save over archived id error = %v, want ErrDealExists", err)
	}
	if err := s.Archive(ctx, sampleDeal("deal_1", model.StatusArchived)); !errors.Is(err, ErrDealArchived) {
		t.Errorf("double Archive() error = %v, want ErrDealArchived", err)
	}
}

func TestMemoryStoreListOpen(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDealStore()

	for _, d := range []model.Deal{
		sampleDeal("deal_open_1", model.StatusRFQOpen),
		sampleDeal("deal_open_2", model.StatusNegotiating),
		sampleDeal("deal_done", model.StatusFinalized),
	} {
		if err := s.Save(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	open, err := s.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen() error = %v", err)
	}
	if len(open) != 2 {
		t.Errorf("ListOpen() returned %d deals, want 2", len(open))
	}
	for _, d := range open {
		if !d.Status.Active() {
			t.Errorf("ListOpen() returned inactive deal %s (%s)", d.DealID, d.Status)
		}
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDealStore()

	deal := sampleDeal("deal_1", model.StatusRFQOpen)
	deal.Participants = []model.Participant{{ID: "buyer_x", Role: model.RoleBuyer}}
	if err := s.Save(ctx, deal); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Get(ctx, "deal_1")
	got.Participants[0].ID = "intruder"

	again, _ := s.Get(ctx, "deal_1")
	if again.Participants[0].ID != "buyer_x" {
		t.Error("mutating a Get() result changed stored state")
	}
}

package store

import (
	"context"

	"github.com/Ryz3nPlayZ/B2B-Procurement/internal/model"
)

// DealStore is the persistence boundary for deal records. Get returns
// (nil, nil) when the deal is unknown. Archive moves the record to the
// read-only archive store; records are never physically deleted.
type DealStore interface {
	Save(ctx context.Context, deal model.Deal) error
	Get(ctx context.Context, dealID string) (*model.Deal, error)
	Update(ctx context.Context, deal model.Deal) error
	Archive(ctx context.Context, deal model.Deal) error
	GetArchived(ctx context.Context, dealID string) (*model.Deal, error)
	ListOpen(ctx context.Context) ([]model.Deal, error)
}

// Package cogs computes cost of goods sold for a period two ways: from
// inventory valuation (periodic) and bottom-up from sales and recipes
// (theoretical).
package cogs

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/recipe"
	"cafecogs/backend/internal/store"
)

// Source is everything the calculators read.
type Source interface {
	recipe.Source

	ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error)
	CaptureSnapshot(ctx context.Context, snapshot domain.InventorySnapshot) (*domain.InventorySnapshot, error)
	LatestSnapshotAtOrBefore(ctx context.Context, at time.Time) (*domain.InventorySnapshot, error)
	LatestSnapshotWithin(ctx context.Context, after time.Time, upTo time.Time) (*domain.InventorySnapshot, error)
	ListPurchaseOrders(ctx context.Context, filter store.PurchaseOrderFilter) ([]domain.PurchaseOrder, error)
	ListStockMovements(ctx context.Context, filter store.MovementFilter) ([]domain.StockMovement, error)
	ListSalesLines(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SalesLine, error)
	GetSellableByExternalID(ctx context.Context, externalVariationID string) (*domain.Sellable, error)
	GetModifierOptionByExternalID(ctx context.Context, externalModifierID string) (*domain.ModifierOption, error)
}

type Calculator struct {
	source   Source
	resolver *recipe.Resolver
	now      func() time.Time
	newID    func(prefix string) string
}

func NewCalculator(source Source, resolver *recipe.Resolver, newID func(prefix string) string) *Calculator {
	return &Calculator{
		source:   source,
		resolver: resolver,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    newID,
	}
}

// EndValuation picks how the closing inventory value is obtained.
type EndValuation int

const (
	// EndLive values current stock. Used for previews.
	EndLive EndValuation = iota
	// EndSnapshot uses a snapshot taken at the period end, capturing one
	// when none exists. Used when a period is closed.
	EndSnapshot
)

// Compute returns the periodic figures and, when asked, the theoretical
// figures with variance against the periodic total.
func (c *Calculator) Compute(ctx context.Context, start, end time.Time, mode EndValuation, includeTheoretical bool) (domain.PeriodicResult, *domain.TheoreticalResult, error) {
	periodic, err := c.Periodic(ctx, start, end, mode)
	if err != nil {
		return domain.PeriodicResult{}, nil, err
	}
	if !includeTheoretical {
		return periodic, nil, nil
	}
	theoretical, err := c.Theoretical(ctx, start, end, periodic.PeriodicCogsValue)
	if err != nil {
		return domain.PeriodicResult{}, nil, err
	}
	return periodic, &theoretical, nil
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

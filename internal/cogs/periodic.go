package cogs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
)

// PeriodicCOGS is begin + purchases - end.
func PeriodicCOGS(begin, purchases, end decimal.Decimal) decimal.Decimal {
	return begin.Add(purchases).Sub(end)
}

func (c *Calculator) Periodic(ctx context.Context, start, end time.Time, mode EndValuation) (domain.PeriodicResult, error) {
	begin, beginSource, err := c.beginValue(ctx, start)
	if err != nil {
		return domain.PeriodicResult{}, err
	}
	purchases, err := c.purchasesValue(ctx, start, end)
	if err != nil {
		return domain.PeriodicResult{}, err
	}

	var (
		endValue  decimal.Decimal
		endSource string
	)
	switch mode {
	case EndSnapshot:
		endValue, endSource, err = c.closingSnapshotValue(ctx, start, end)
	default:
		endValue, err = c.liveValue(ctx)
		endSource = domain.ValuationSourceLive
	}
	if err != nil {
		return domain.PeriodicResult{}, err
	}

	return domain.PeriodicResult{
		BeginInventoryValue: roundMoney(begin),
		PurchasesValue:      roundMoney(purchases),
		EndInventoryValue:   roundMoney(endValue),
		PeriodicCogsValue:   roundMoney(PeriodicCOGS(begin, purchases, endValue)),
		BeginSource:         beginSource,
		EndSource:           endSource,
	}, nil
}

func (c *Calculator) beginValue(ctx context.Context, start time.Time) (decimal.Decimal, string, error) {
	snap, err := c.source.LatestSnapshotAtOrBefore(ctx, start)
	if err == nil {
		return snap.TotalValue, snapshotSource(snap.ID), nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, "", err
	}
	live, err := c.liveValue(ctx)
	return live, domain.ValuationSourceLive, err
}

func (c *Calculator) closingSnapshotValue(ctx context.Context, start, end time.Time) (decimal.Decimal, string, error) {
	snap, err := c.source.LatestSnapshotWithin(ctx, start, end)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, "", err
	}
	// Only a count stamped exactly at end can stand in for closing stock.
	if err == nil && snap.TakenAt.Equal(end) {
		return snap.TotalValue, snapshotSource(snap.ID), nil
	}

	// Stamped no later than end so the next period opens from it.
	takenAt := c.now()
	if takenAt.After(end) {
		takenAt = end
	}
	snap, err = c.source.CaptureSnapshot(ctx, domain.InventorySnapshot{
		ID:      c.newID("snp"),
		TakenAt: takenAt,
		Source:  domain.SnapshotSourcePeriodClose,
		Notes:   fmt.Sprintf("captured on close of period ending %s", end.Format(time.RFC3339)),
	})
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("capture closing snapshot: %w", err)
	}
	return snap.TotalValue, snapshotSource(snap.ID), nil
}

func (c *Calculator) liveValue(ctx context.Context) (decimal.Decimal, error) {
	items, err := c.source.ListInventoryItems(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return LiveValuation(items), nil
}

// LiveValuation sums unit_cost * current_stock over active items.
func LiveValuation(items []domain.InventoryItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if !item.Active {
			continue
		}
		total = total.Add(item.Value())
	}
	return total
}

func (c *Calculator) purchasesValue(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	orders, err := c.source.ListPurchaseOrders(ctx, store.PurchaseOrderFilter{
		Status:       domain.POStatusReceived,
		ReceivedFrom: &start,
		ReceivedTo:   &end,
	})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, po := range orders {
		for _, line := range po.Lines {
			total = total.Add(line.Value())
		}
	}
	return total, nil
}

func snapshotSource(id string) string {
	return "snapshot:" + id
}

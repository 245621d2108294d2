package cogs

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/recipe"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/units"
)

type usage struct {
	quantity float64
	cost     decimal.Decimal
}

type costing struct {
	items    map[string]domain.InventoryItem
	usage    map[string]*usage
	total    decimal.Decimal
	coverage domain.Coverage
}

// add prices resolved lines consumed multiplier times. Lines that cannot be
// priced are counted and left out of the total.
func (c *costing) add(lines []domain.ResolvedLine, multiplier float64) {
	for _, line := range lines {
		item, ok := c.items[line.InventoryItemID]
		if !ok {
			c.coverage.MissingInventoryItem++
			continue
		}
		qty, err := units.Convert(line.Quantity, line.Unit, item.Unit)
		if err != nil {
			c.coverage.UnitConversionIssues++
			continue
		}
		consumed := qty * (1 + line.LossPct/100) * multiplier
		cost := decimal.NewFromFloat(consumed).Mul(item.UnitCost)

		u, ok := c.usage[item.ID]
		if !ok {
			u = &usage{}
			c.usage[item.ID] = u
		}
		u.quantity += consumed
		u.cost = u.cost.Add(cost)
		c.total = c.total.Add(cost)
	}
}

// Theoretical costs every sales line sold within [start, end] and reports
// variance against periodicCOGS.
func (c *Calculator) Theoretical(ctx context.Context, start, end time.Time, periodicCOGS decimal.Decimal) (domain.TheoreticalResult, error) {
	items, err := c.source.ListInventoryItems(ctx)
	if err != nil {
		return domain.TheoreticalResult{}, err
	}
	sales, err := c.source.ListSalesLines(ctx, start, end, 0)
	if err != nil {
		return domain.TheoreticalResult{}, err
	}

	acc := &costing{
		items: make(map[string]domain.InventoryItem, len(items)),
		usage: make(map[string]*usage),
		total: decimal.Zero,
	}
	for _, item := range items {
		acc.items[item.ID] = item
	}

	for _, sale := range sales {
		if err := c.costSale(ctx, acc, sale); err != nil {
			return domain.TheoreticalResult{}, err
		}
	}

	waste, err := c.wasteValue(ctx, start, end)
	if err != nil {
		return domain.TheoreticalResult{}, err
	}

	return domain.TheoreticalResult{
		TheoreticalCogsValue: roundMoney(acc.total),
		WasteCostValue:       roundMoney(waste),
		VarianceValue:        roundMoney(periodicCOGS.Sub(acc.total)),
		Coverage:             acc.coverage,
		Lines:                usageLines(acc),
	}, nil
}

func (c *Calculator) costSale(ctx context.Context, acc *costing, sale domain.SalesLine) error {
	acc.coverage.SalesLines++

	sellable, err := c.source.GetSellableByExternalID(ctx, sale.ExternalVariationID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		acc.coverage.MissingCostLines++
	case err != nil:
		return err
	default:
		acc.coverage.MappedSalesLines++
		res, err := c.resolver.ResolveSellable(ctx, sellable.ID, sale.SoldAt)
		switch {
		case errors.Is(err, recipe.ErrNoRecipe):
			acc.coverage.MissingCostLines++
		case err != nil:
			return err
		default:
			acc.coverage.SalesLinesWithRecipe++
			acc.add(res.Lines, sale.Quantity)
		}
	}

	// Modifiers are costed on their own, whatever happened to the base line.
	for _, mod := range sale.Modifiers {
		acc.coverage.ModifiersSeen++
		option, err := c.source.GetModifierOptionByExternalID(ctx, mod.ExternalModifierID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		acc.coverage.MappedModifiers++

		res, err := c.resolver.ResolveModifier(ctx, option.ID, sale.SoldAt)
		if errors.Is(err, recipe.ErrNoRecipe) {
			continue
		}
		if err != nil {
			return err
		}
		acc.coverage.ModifiersWithRecipe++
		qty := mod.Quantity
		if qty <= 0 {
			qty = 1
		}
		acc.add(res.Lines, sale.Quantity*qty)
	}
	return nil
}

func (c *Calculator) wasteValue(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	movements, err := c.source.ListStockMovements(ctx, store.MovementFilter{
		Type: domain.MovementWaste,
		From: &start,
		To:   &end,
	})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Value())
	}
	return total, nil
}

func usageLines(acc *costing) []domain.TheoreticalUsageLine {
	out := make([]domain.TheoreticalUsageLine, 0, len(acc.usage))
	for id, u := range acc.usage {
		item := acc.items[id]
		out = append(out, domain.TheoreticalUsageLine{
			InventoryItemID: id,
			Name:            item.Name,
			Unit:            item.Unit,
			Quantity:        u.quantity,
			CostValue:       roundMoney(u.cost),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].InventoryItemID < out[j].InventoryItemID
	})
	return out
}

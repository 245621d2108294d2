package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

func TestCreateRecipeSupersedesOpenVersion(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	created, err := s.CreateRecipe(ctx, domain.Recipe{
		ProductID:     "prd-latte",
		EffectiveFrom: &from,
		Lines:         []domain.RecipeLine{{InventoryItemID: "inv-espresso", Quantity: 20, Unit: "g"}},
	}, "rcp-latte")
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}

	old, err := s.GetRecipe(ctx, "rcp-latte")
	if err != nil {
		t.Fatalf("get old recipe: %v", err)
	}
	if old.EffectiveTo == nil || !old.EffectiveTo.Equal(from) {
		t.Fatalf("expected old version closed at %s, got %v", from, old.EffectiveTo)
	}
	if created.EffectiveTo != nil {
		t.Fatalf("new version should be open-ended")
	}
}

func TestCreateRecipeRejectsSecondOpenVersion(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	from := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	_, err := s.CreateRecipe(ctx, domain.Recipe{
		ProductID:     "prd-latte",
		EffectiveFrom: &from,
		Lines:         []domain.RecipeLine{{InventoryItemID: "inv-espresso", Quantity: 20, Unit: "g"}},
	}, "")
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	recipes, _ := s.ListRecipes(ctx, "prd-latte")
	if len(recipes) != 1 {
		t.Fatalf("rejected version must not be stored, got %d versions", len(recipes))
	}
}

func TestReceivePurchaseOrderBlendsUnitCost(t *testing.T) {
	ctx := context.Background()
	s := New()
	item, _ := s.CreateInventoryItem(ctx, domain.InventoryItem{Name: "Beans", Unit: "lb", UnitCost: decimal.NewFromInt(10), CurrentStock: 10, Active: true})
	sup, _ := s.CreateSupplier(ctx, domain.Supplier{Name: "Roaster"})
	po, err := s.CreatePurchaseOrder(ctx, domain.PurchaseOrder{
		SupplierID: sup.ID,
		Lines:      []domain.PurchaseOrderLine{{InventoryItemID: item.ID, Quantity: 10, UnitCost: decimal.NewFromInt(14)}},
	})
	if err != nil {
		t.Fatalf("create po: %v", err)
	}

	if _, err := s.ReceivePurchaseOrder(ctx, po.ID, "owner", time.Time{}); err != nil {
		t.Fatalf("receive: %v", err)
	}
	got, _ := s.GetInventoryItem(ctx, item.ID)
	if got.CurrentStock != 20 || !got.UnitCost.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("expected 20 on hand at 12.00, got %v at %s", got.CurrentStock, got.UnitCost)
	}
	if _, err := s.ReceivePurchaseOrder(ctx, po.ID, "owner", time.Time{}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected second receive to conflict, got %v", err)
	}
	receipts, _ := s.ListStockMovements(ctx, store.MovementFilter{Type: domain.MovementReceipt})
	if len(receipts) != 1 {
		t.Fatalf("expected one receipt movement, got %d", len(receipts))
	}
}

func TestWasteCannotDriveStockNegative(t *testing.T) {
	ctx := context.Background()
	s := NewSeeded()
	_, err := s.CreateStockMovement(ctx, domain.StockMovement{
		InventoryItemID: "inv-vanilla",
		Type:            domain.MovementWaste,
		Direction:       domain.DirectionOut,
		Quantity:        5,
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestClosePeriodIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := New()
	period, err := s.CreatePeriod(ctx, domain.COGSPeriod{
		PeriodType: domain.PeriodMonthly,
		StartAt:    time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create period: %v", err)
	}

	first := domain.COGSReport{PeriodID: period.ID, Periodic: domain.PeriodicResult{PeriodicCogsValue: decimal.NewFromInt(120)}}
	if _, err := s.ClosePeriod(ctx, first, time.Now().UTC()); err != nil {
		t.Fatalf("first close: %v", err)
	}
	second := domain.COGSReport{PeriodID: period.ID, Periodic: domain.PeriodicResult{PeriodicCogsValue: decimal.NewFromInt(999)}}
	if _, err := s.ClosePeriod(ctx, second, time.Now().UTC()); !errors.Is(err, store.ErrPeriodClosed) {
		t.Fatalf("expected ErrPeriodClosed, got %v", err)
	}
	report, _ := s.GetReport(ctx, period.ID)
	if !report.Periodic.PeriodicCogsValue.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("report was overwritten: %s", report.Periodic.PeriodicCogsValue)
	}
}

func TestStoredReportIsIsolatedFromCallers(t *testing.T) {
	ctx := context.Background()
	s := New()
	period, err := s.CreatePeriod(ctx, domain.COGSPeriod{
		PeriodType: domain.PeriodMonthly,
		StartAt:    time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndAt:      time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create period: %v", err)
	}

	theo := &domain.TheoreticalResult{
		TheoreticalCogsValue: decimal.NewFromInt(80),
		Lines:                []domain.TheoreticalUsageLine{{InventoryItemID: "inv_milk", CostValue: decimal.NewFromInt(80)}},
	}
	if _, err := s.ClosePeriod(ctx, domain.COGSReport{PeriodID: period.ID, Theoretical: theo}, time.Now().UTC()); err != nil {
		t.Fatalf("close: %v", err)
	}
	theo.TheoreticalCogsValue = decimal.NewFromInt(999999)
	theo.Lines[0].CostValue = decimal.NewFromInt(999999)

	got, err := s.GetReport(ctx, period.ID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if !got.Theoretical.TheoreticalCogsValue.Equal(decimal.NewFromInt(80)) || !got.Theoretical.Lines[0].CostValue.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("stored report changed through caller pointer: %+v", got.Theoretical)
	}

	got.Theoretical.TheoreticalCogsValue = decimal.NewFromInt(1)
	got.Theoretical.Lines[0].CostValue = decimal.NewFromInt(1)
	again, _ := s.GetReport(ctx, period.ID)
	if !again.Theoretical.TheoreticalCogsValue.Equal(decimal.NewFromInt(80)) || !again.Theoretical.Lines[0].CostValue.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("stored report changed through returned copy: %+v", again.Theoretical)
	}
}

func TestCheckoutIdempotencyKeyIsUnique(t *testing.T) {
	ctx := context.Background()
	s := New()
	line := domain.SalesLine{OrderID: "ord-1", ExternalVariationID: "VAR_LATTE_12", Quantity: 1, SoldAt: time.Now().UTC()}
	record := domain.CheckoutRecord{IdempotencyKey: "key-1", OrderID: "ord-1"}
	if err := s.CreateCheckout(ctx, record, []domain.SalesLine{line}); err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	if err := s.CreateCheckout(ctx, record, []domain.SalesLine{line}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	ok, _ := s.HasSalesForOrder(ctx, "ord-1")
	if !ok {
		t.Fatalf("expected sales lines for ord-1")
	}
}

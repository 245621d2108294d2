package cogs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/recipe"
	"cafecogs/backend/internal/store/memory"
	"cafecogs/backend/internal/xid"
)

var (
	periodStart = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2025, time.January, 31, 23, 59, 59, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newCalculator(repo *memory.Store) *Calculator {
	return NewCalculator(repo, recipe.NewResolver(repo), xid.New)
}

func mustItem(t *testing.T, repo *memory.Store, name, unit, cost string, stock float64) domain.InventoryItem {
	t.Helper()
	item, err := repo.CreateInventoryItem(context.Background(), domain.InventoryItem{
		Name: name, Unit: unit, UnitCost: dec(cost), CurrentStock: stock, Active: true,
	})
	if err != nil {
		t.Fatalf("create item %s: %v", name, err)
	}
	return *item
}

func TestPeriodicCOGSFormula(t *testing.T) {
	got := PeriodicCOGS(dec("100.00"), dec("50.00"), dec("30.00"))
	if !got.Equal(dec("120.00")) {
		t.Fatalf("expected 120.00, got %s", got)
	}
}

func TestPeriodicUsesSnapshotPurchasesAndLiveStock(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	item := mustItem(t, repo, "Cups", "each", "1.00", 100)

	if _, err := repo.CaptureSnapshot(ctx, domain.InventorySnapshot{TakenAt: periodStart.Add(-time.Hour)}); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	sup, _ := repo.CreateSupplier(ctx, domain.Supplier{Name: "Paper Co"})
	po, err := repo.CreatePurchaseOrder(ctx, domain.PurchaseOrder{
		SupplierID: sup.ID,
		Lines:      []domain.PurchaseOrderLine{{InventoryItemID: item.ID, Quantity: 50, UnitCost: dec("1.00")}},
	})
	if err != nil {
		t.Fatalf("po: %v", err)
	}
	if _, err := repo.ReceivePurchaseOrder(ctx, po.ID, "owner", periodStart.Add(48*time.Hour)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := repo.CreateStockMovement(ctx, domain.StockMovement{
		InventoryItemID: item.ID, Type: domain.MovementAdjustment, Direction: domain.DirectionOut,
		Quantity: 120, OccurredAt: periodStart.Add(72 * time.Hour),
	}); err != nil {
		t.Fatalf("movement: %v", err)
	}

	res, err := newCalculator(repo).Periodic(ctx, periodStart, periodEnd, EndLive)
	if err != nil {
		t.Fatalf("periodic: %v", err)
	}
	if !res.BeginInventoryValue.Equal(dec("100")) || !res.PurchasesValue.Equal(dec("50")) || !res.EndInventoryValue.Equal(dec("30")) {
		t.Fatalf("unexpected inputs: %+v", res)
	}
	if !res.PeriodicCogsValue.Equal(dec("120")) {
		t.Fatalf("expected 120, got %s", res.PeriodicCogsValue)
	}
	if !strings.HasPrefix(res.BeginSource, "snapshot:") || res.EndSource != domain.ValuationSourceLive {
		t.Fatalf("unexpected sources: %s / %s", res.BeginSource, res.EndSource)
	}
}

func TestPeriodicFallsBackToLiveBegin(t *testing.T) {
	repo := memory.New()
	mustItem(t, repo, "Beans", "lb", "10.00", 3)

	res, err := newCalculator(repo).Periodic(context.Background(), periodStart, periodEnd, EndLive)
	if err != nil {
		t.Fatalf("periodic: %v", err)
	}
	if res.BeginSource != domain.ValuationSourceLive || !res.BeginInventoryValue.Equal(dec("30")) {
		t.Fatalf("expected live begin of 30, got %+v", res)
	}
	if !res.PeriodicCogsValue.IsZero() {
		t.Fatalf("expected zero cogs, got %s", res.PeriodicCogsValue)
	}
}

func TestClosingValuationCapturesSnapshotAtPeriodEnd(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	mustItem(t, repo, "Beans", "lb", "10.00", 3)

	res, err := newCalculator(repo).Periodic(ctx, periodStart, periodEnd, EndSnapshot)
	if err != nil {
		t.Fatalf("periodic: %v", err)
	}
	if !strings.HasPrefix(res.EndSource, "snapshot:") {
		t.Fatalf("expected snapshot end source, got %s", res.EndSource)
	}
	snap, err := repo.LatestSnapshotAtOrBefore(ctx, periodEnd)
	if err != nil {
		t.Fatalf("captured snapshot not found: %v", err)
	}
	if snap.Source != domain.SnapshotSourcePeriodClose || !snap.TakenAt.Equal(periodEnd) {
		t.Fatalf("unexpected captured snapshot: %+v", snap)
	}
	if res.EndSource != "snapshot:"+snap.ID {
		t.Fatalf("end source %s does not name snapshot %s", res.EndSource, snap.ID)
	}
}

func TestClosingValuationIgnoresMidPeriodCount(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	item := mustItem(t, repo, "Cups", "each", "1.00", 100)

	if _, err := repo.CaptureSnapshot(ctx, domain.InventorySnapshot{TakenAt: periodStart}); err != nil {
		t.Fatalf("begin snapshot: %v", err)
	}
	spot, err := repo.CaptureSnapshot(ctx, domain.InventorySnapshot{TakenAt: periodStart.Add(4 * 24 * time.Hour)})
	if err != nil {
		t.Fatalf("spot count: %v", err)
	}
	sup, _ := repo.CreateSupplier(ctx, domain.Supplier{Name: "Paper Co"})
	po, err := repo.CreatePurchaseOrder(ctx, domain.PurchaseOrder{
		SupplierID: sup.ID,
		Lines:      []domain.PurchaseOrderLine{{InventoryItemID: item.ID, Quantity: 50, UnitCost: dec("1.00")}},
	})
	if err != nil {
		t.Fatalf("po: %v", err)
	}
	if _, err := repo.ReceivePurchaseOrder(ctx, po.ID, "owner", periodStart.Add(20*24*time.Hour)); err != nil {
		t.Fatalf("receive: %v", err)
	}

	calc := newCalculator(repo)
	res, err := calc.Periodic(ctx, periodStart, periodEnd, EndSnapshot)
	if err != nil {
		t.Fatalf("periodic: %v", err)
	}
	if res.EndSource == "snapshot:"+spot.ID {
		t.Fatalf("mid-period count used as closing stock")
	}
	if !res.EndInventoryValue.Equal(dec("150")) || !res.PeriodicCogsValue.IsZero() {
		t.Fatalf("expected end 150 and zero cogs, got end=%s cogs=%s", res.EndInventoryValue, res.PeriodicCogsValue)
	}

	again, err := calc.Periodic(ctx, periodStart, periodEnd, EndSnapshot)
	if err != nil {
		t.Fatalf("second periodic: %v", err)
	}
	if again.EndSource != res.EndSource {
		t.Fatalf("expected snapshot at period end reused, got %s then %s", res.EndSource, again.EndSource)
	}
}

// theoreticalFixture builds a store where one latte costs 2.10 and an extra
// shot costs 1.00, plus sales that exercise every coverage counter.
func theoreticalFixture(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	beans := mustItem(t, repo, "Beans", "lb", "16.00", 10)
	milk := mustItem(t, repo, "Milk", "l", "2.00", 10)
	cup := mustItem(t, repo, "Cup", "each", "0.10", 100)

	mkProduct := func(ext, variation string, lines []domain.RecipeLine) {
		p, err := repo.CreateProduct(ctx, domain.Product{ExternalItemID: ext, Name: ext, Active: true})
		if err != nil {
			t.Fatalf("product %s: %v", ext, err)
		}
		if _, err := repo.CreateSellable(ctx, domain.Sellable{ProductID: p.ID, ExternalVariationID: variation, Name: variation, Active: true}); err != nil {
			t.Fatalf("sellable %s: %v", variation, err)
		}
		if lines == nil {
			return
		}
		if _, err := repo.CreateRecipe(ctx, domain.Recipe{ProductID: p.ID, Lines: lines}, ""); err != nil {
			t.Fatalf("recipe %s: %v", ext, err)
		}
	}
	mkProduct("LATTE", "VAR_LATTE", []domain.RecipeLine{
		{InventoryItemID: beans.ID, Quantity: 1, Unit: "oz"},
		{InventoryItemID: milk.ID, Quantity: 500, Unit: "ml"},
		{InventoryItemID: cup.ID, Quantity: 1, Unit: "each"},
	})
	mkProduct("BROKEN", "VAR_BROKEN", []domain.RecipeLine{
		{InventoryItemID: beans.ID, Quantity: 1, Unit: "each"},
		{InventoryItemID: "inv-ghost", Quantity: 1, Unit: "each"},
	})
	mkProduct("NEW_ITEM", "VAR_NO_RECIPE", nil)

	set, _ := repo.CreateModifierSet(ctx, domain.ModifierSet{ExternalModifierListID: "EXTRAS", Name: "Extras", Active: true})
	shot, _ := repo.CreateModifierOption(ctx, domain.ModifierOption{ModifierSetID: set.ID, ExternalModifierID: "MOD_SHOT", Name: "Shot", Active: true})
	if _, err := repo.CreateModifierOption(ctx, domain.ModifierOption{ModifierSetID: set.ID, ExternalModifierID: "MOD_NO_RECIPE", Name: "Sprinkles", Active: true}); err != nil {
		t.Fatalf("modifier option: %v", err)
	}
	if _, err := repo.CreateModifierRecipe(ctx, domain.ModifierOptionRecipe{
		ModifierOptionID: shot.ID,
		Lines:            []domain.RecipeLine{{InventoryItemID: beans.ID, Quantity: 1, Unit: "oz"}},
	}, ""); err != nil {
		t.Fatalf("modifier recipe: %v", err)
	}

	soldAt := periodStart.Add(10 * 24 * time.Hour)
	if err := repo.CreateSalesLines(ctx, []domain.SalesLine{
		{OrderID: "o1", ExternalVariationID: "VAR_LATTE", Quantity: 2, SoldAt: soldAt,
			Modifiers: []domain.SalesLineModifier{{ExternalModifierID: "MOD_SHOT", Quantity: 1}}},
		{OrderID: "o2", ExternalVariationID: "VAR_BROKEN", Quantity: 1, SoldAt: soldAt},
		{OrderID: "o3", ExternalVariationID: "VAR_UNMAPPED", Quantity: 1, SoldAt: soldAt,
			Modifiers: []domain.SalesLineModifier{{ExternalModifierID: "MOD_UNMAPPED", Quantity: 1}, {ExternalModifierID: "MOD_NO_RECIPE", Quantity: 1}}},
		{OrderID: "o4", ExternalVariationID: "VAR_NO_RECIPE", Quantity: 1, SoldAt: soldAt},
		{OrderID: "o5", ExternalVariationID: "VAR_LATTE", Quantity: 5, SoldAt: periodEnd.Add(time.Hour)},
	}); err != nil {
		t.Fatalf("sales: %v", err)
	}

	if _, err := repo.CreateStockMovement(ctx, domain.StockMovement{
		InventoryItemID: cup.ID, Type: domain.MovementWaste, Direction: domain.DirectionOut,
		Quantity: 10, OccurredAt: soldAt,
	}); err != nil {
		t.Fatalf("waste: %v", err)
	}
	return repo
}

func TestTheoreticalCostsAndCoverage(t *testing.T) {
	repo := theoreticalFixture(t)
	res, err := newCalculator(repo).Theoretical(context.Background(), periodStart, periodEnd, dec("5.00"))
	if err != nil {
		t.Fatalf("theoretical: %v", err)
	}

	if !res.TheoreticalCogsValue.Equal(dec("6.20")) {
		t.Fatalf("expected theoretical 6.20, got %s", res.TheoreticalCogsValue)
	}
	if !res.WasteCostValue.Equal(dec("1.00")) {
		t.Fatalf("expected waste 1.00, got %s", res.WasteCostValue)
	}
	if !res.VarianceValue.Equal(dec("-1.20")) {
		t.Fatalf("expected variance -1.20, got %s", res.VarianceValue)
	}

	want := domain.Coverage{
		SalesLines:           4,
		MappedSalesLines:     3,
		SalesLinesWithRecipe: 2,
		MissingCostLines:     2,
		MissingInventoryItem: 1,
		UnitConversionIssues: 1,
		ModifiersSeen:        3,
		MappedModifiers:      2,
		ModifiersWithRecipe:  1,
	}
	if res.Coverage != want {
		t.Fatalf("coverage mismatch:\n got %+v\nwant %+v", res.Coverage, want)
	}
	if res.Coverage.MappedSalesLines > res.Coverage.SalesLines || res.Coverage.SalesLinesWithRecipe > res.Coverage.MappedSalesLines {
		t.Fatalf("coverage ordering broken: %+v", res.Coverage)
	}
	if len(res.Lines) != 3 || res.Lines[0].Name != "Beans" || !res.Lines[0].CostValue.Equal(dec("4.00")) {
		t.Fatalf("unexpected usage lines: %+v", res.Lines)
	}
}

func TestComputeSkipsTheoreticalWhenNotRequested(t *testing.T) {
	repo := theoreticalFixture(t)
	_, theoretical, err := newCalculator(repo).Compute(context.Background(), periodStart, periodEnd, EndLive, false)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if theoretical != nil {
		t.Fatalf("expected nil theoretical, got %+v", theoretical)
	}
}

func TestComputeVarianceUsesPeriodicTotal(t *testing.T) {
	repo := theoreticalFixture(t)
	periodic, theoretical, err := newCalculator(repo).Compute(context.Background(), periodStart, periodEnd, EndLive, true)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	want := periodic.PeriodicCogsValue.Sub(theoretical.TheoreticalCogsValue)
	if !theoretical.VarianceValue.Equal(want) {
		t.Fatalf("variance %s != periodic %s - theoretical %s", theoretical.VarianceValue, periodic.PeriodicCogsValue, theoretical.TheoreticalCogsValue)
	}
}

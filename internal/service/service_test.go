package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/catalog"
	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/lock"
	"cafecogs/backend/internal/recipe"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/store/memory"
)

func newTestService() (*Service, *memory.Store, *catalog.Static) {
	repo := memory.NewSeeded()
	provider := catalog.NewStatic(catalog.DemoCatalog())
	return New(repo, Options{Provider: provider}), repo, provider
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func staffCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "barista", Role: domain.RoleStaff})
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateProductRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.CreateProduct(staffCtx(), domain.ProductCreateRequest{ExternalItemID: "ITEM_TEA", Name: "Tea"})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for staff, got %v", err)
	}

	created, err := svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{ExternalItemID: " ITEM_TEA ", Name: "Tea", Category: "tea"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if created.ExternalItemID != "ITEM_TEA" || !created.Active {
		t.Fatalf("unexpected product: %+v", created)
	}

	_, err = svc.CreateProduct(adminCtx(), domain.ProductCreateRequest{ExternalItemID: "ITEM_TEA", Name: "Tea again"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict on duplicate external id, got %v", err)
	}
}

func TestSyncCatalogUpsertsByExternalID(t *testing.T) {
	repo := memory.NewSeeded()
	remote := catalog.DemoCatalog()
	remote.Items[0].Variations[0].PriceCents = 475
	remote.Items = append(remote.Items, catalog.Item{
		ID:       "ITEM_MOCHA",
		Name:     "Mocha",
		Category: "coffee",
		Variations: []catalog.Variation{
			{ID: "VAR_MOCHA_12", ItemID: "ITEM_MOCHA", Name: "Mocha 12oz", PriceCents: 500},
		},
	})
	svc := New(repo, Options{Provider: catalog.NewStatic(remote)})
	ctx := adminCtx()

	resp, err := svc.SyncCatalog(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if resp.Products != 4 || resp.Sellables != 5 || resp.ModifierSets != 2 || resp.ModifierOptions != 3 {
		t.Fatalf("unexpected sync counts: %+v", resp)
	}

	latte, err := repo.GetSellableByExternalID(ctx, "VAR_LATTE_12")
	if err != nil {
		t.Fatalf("latte lookup: %v", err)
	}
	if latte.ID != "sel-latte-12" || latte.PriceCents != 475 {
		t.Fatalf("expected seeded sellable updated in place, got %+v", latte)
	}
	if _, err := repo.GetSellableByExternalID(ctx, "VAR_MOCHA_12"); err != nil {
		t.Fatalf("expected mocha variation created: %v", err)
	}

	if _, err := svc.SyncCatalog(ctx); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	products, _ := repo.ListProducts(ctx)
	if len(products) != 4 {
		t.Fatalf("expected sync to be idempotent, got %d products", len(products))
	}
}

func TestCreateRecipeSupersedesOpenVersion(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := adminCtx()
	from := date(2025, time.March, 1)

	created, err := svc.CreateRecipe(ctx, domain.RecipeCreateRequest{
		ProductID:     "prd-americano",
		EffectiveFrom: &from,
		Lines: []domain.RecipeLine{
			{InventoryItemID: "inv-espresso", Quantity: 20, Unit: "grams"},
			{InventoryItemID: "inv-cup-12", Quantity: 1, Unit: "ea"},
		},
	})
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	if created.Lines[0].Unit != "g" || created.Lines[1].Unit != "each" {
		t.Fatalf("expected normalized units, got %+v", created.Lines)
	}

	old, err := repo.GetRecipe(ctx, "rcp-americano")
	if err != nil {
		t.Fatalf("get old recipe: %v", err)
	}
	if old.EffectiveTo == nil || !old.EffectiveTo.Equal(from) {
		t.Fatalf("expected old version closed at %s, got %v", from, old.EffectiveTo)
	}

	before, err := svc.Resolve(ctx, "sel-americano-12", from.Add(-time.Hour))
	if err != nil {
		t.Fatalf("resolve before: %v", err)
	}
	after, err := svc.Resolve(ctx, "sel-americano-12", from)
	if err != nil {
		t.Fatalf("resolve after: %v", err)
	}
	if before.RecipeID != "rcp-americano" || after.RecipeID != created.ID {
		t.Fatalf("expected version switch at %s, got %s then %s", from, before.RecipeID, after.RecipeID)
	}
	if after.Lines[0].Quantity != 20 {
		t.Fatalf("expected new quantity, got %+v", after.Lines)
	}
}

func TestCreateRecipeRejectsOverlapAndBadLines(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := adminCtx()
	from, to := date(2025, time.January, 1), date(2025, time.February, 1)

	_, err := svc.CreateRecipe(ctx, domain.RecipeCreateRequest{
		ProductID:     "prd-americano",
		EffectiveFrom: &from,
		EffectiveTo:   &to,
		Lines:         []domain.RecipeLine{{InventoryItemID: "inv-espresso", Quantity: 18, Unit: "g"}},
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected overlap conflict, got %v", err)
	}

	_, err = svc.CreateRecipe(ctx, domain.RecipeCreateRequest{
		ProductID: "prd-americano",
		Lines:     []domain.RecipeLine{{InventoryItemID: "inv-espresso", Quantity: 18, Unit: "ml"}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected incompatible unit rejected, got %v", err)
	}

	_, err = svc.CreateRecipe(ctx, domain.RecipeCreateRequest{
		ProductID: "prd-americano",
		Lines:     []domain.RecipeLine{{InventoryItemID: "inv-missing", Quantity: 1, Unit: "each"}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected unknown item rejected, got %v", err)
	}

	_, err = svc.CreateRecipe(ctx, domain.RecipeCreateRequest{
		ProductID:     "prd-americano",
		EffectiveFrom: &to,
		EffectiveTo:   &from,
		Lines:         []domain.RecipeLine{{InventoryItemID: "inv-espresso", Quantity: 18, Unit: "g"}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected reversed window rejected, got %v", err)
	}
}

func TestCreateOverrideValidatesOps(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := adminCtx()

	_, err := svc.CreateOverride(ctx, domain.OverrideCreateRequest{
		SellableID: "sel-americano-12",
		Ops:        []domain.OverrideOp{{Op: domain.OpRemove}},
	})
	if !errors.Is(err, store.ErrInvalidInput) || !strings.Contains(err.Error(), "ops[0]") {
		t.Fatalf("expected ops[0] rejected, got %v", err)
	}

	cup := "inv-cup-12"
	bigCup, qty, unit := "inv-cup-16", 1.0, "each"
	created, err := svc.CreateOverride(ctx, domain.OverrideCreateRequest{
		SellableID: "sel-americano-12",
		Ops: []domain.OverrideOp{
			{Op: domain.OpReplace, TargetInventoryItemID: &cup, InventoryItemID: &bigCup, Quantity: &qty, Unit: &unit},
		},
	})
	if err != nil {
		t.Fatalf("create override: %v", err)
	}

	resolved, err := svc.Resolve(ctx, "sel-americano-12", time.Now())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.OverrideID != created.ID || resolved.Lines[1].InventoryItemID != "inv-cup-16" {
		t.Fatalf("expected override applied, got %+v", resolved)
	}
}

func TestResolveWithoutRecipe(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := adminCtx()

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{ExternalItemID: "ITEM_TEA", Name: "Tea"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	sellable, err := svc.CreateSellable(ctx, domain.SellableCreateRequest{ProductID: product.ID, ExternalVariationID: "VAR_TEA", Name: "Tea", PriceCents: 300})
	if err != nil {
		t.Fatalf("create sellable: %v", err)
	}
	if _, err := svc.Resolve(ctx, sellable.ID, time.Now()); !errors.Is(err, recipe.ErrNoRecipe) {
		t.Fatalf("expected no recipe, got %v", err)
	}
}

func TestStockMovementRules(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := staffCtx()

	m, err := svc.CreateStockMovement(ctx, domain.StockMovementCreateRequest{InventoryItemID: "inv-croissant", Type: "waste", Quantity: 2, Reason: "dropped"})
	if err != nil {
		t.Fatalf("waste: %v", err)
	}
	if m.Direction != domain.DirectionOut || m.RecordedBy != "barista" || !m.UnitCost.Equal(mustItem(t, repo, "inv-croissant").UnitCost) {
		t.Fatalf("unexpected movement: %+v", m)
	}
	if stock := mustItem(t, repo, "inv-croissant").CurrentStock; stock != 78 {
		t.Fatalf("expected stock 78, got %v", stock)
	}

	if _, err := svc.CreateStockMovement(ctx, domain.StockMovementCreateRequest{InventoryItemID: "inv-croissant", Type: "waste", Direction: "in", Quantity: 1}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected inbound waste rejected, got %v", err)
	}
	if _, err := svc.CreateStockMovement(ctx, domain.StockMovementCreateRequest{InventoryItemID: "inv-croissant", Type: "adjustment", Quantity: 1}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected adjustment without direction rejected, got %v", err)
	}
	if _, err := svc.CreateStockMovement(ctx, domain.StockMovementCreateRequest{InventoryItemID: "inv-vanilla", Type: "waste", Quantity: 5}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected negative stock rejected, got %v", err)
	}
	if _, err := svc.CreateStockMovement(context.Background(), domain.StockMovementCreateRequest{InventoryItemID: "inv-croissant", Type: "waste", Quantity: 1}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected anonymous movement rejected, got %v", err)
	}

	if _, err := svc.CreateStockMovement(ctx, domain.StockMovementCreateRequest{InventoryItemID: "inv-croissant", Type: "adjustment", Direction: "in", Quantity: 4}); err != nil {
		t.Fatalf("adjustment in: %v", err)
	}
	if stock := mustItem(t, repo, "inv-croissant").CurrentStock; stock != 82 {
		t.Fatalf("expected stock 82, got %v", stock)
	}
}

func mustItem(t *testing.T, repo *memory.Store, id string) domain.InventoryItem {
	t.Helper()
	item, err := repo.GetInventoryItem(context.Background(), id)
	if err != nil {
		t.Fatalf("get item %s: %v", id, err)
	}
	return *item
}

func TestReceivePurchaseOrderOnce(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := adminCtx()

	po, err := svc.CreatePurchaseOrder(ctx, domain.PurchaseOrderCreateRequest{
		SupplierID: "sup-roaster",
		Lines:      []domain.PurchaseOrderLine{{InventoryItemID: "inv-espresso", Quantity: 20, UnitCost: mustItem(t, repo, "inv-espresso").UnitCost.Add(mustItem(t, repo, "inv-espresso").UnitCost)}},
	})
	if err != nil {
		t.Fatalf("create po: %v", err)
	}
	received, err := svc.ReceivePurchaseOrder(ctx, po.ID, domain.PurchaseOrderReceiveRequest{})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if received.Status != domain.POStatusReceived || received.ReceivedBy != "admin" {
		t.Fatalf("unexpected received po: %+v", received)
	}

	item := mustItem(t, repo, "inv-espresso")
	// 20 lb at 12.00 plus 20 lb at 24.00 averages to 18.00.
	if item.CurrentStock != 40 || item.UnitCost.StringFixed(2) != "18.00" {
		t.Fatalf("expected weighted cost 18.00 over 40 lb, got %s over %v", item.UnitCost.StringFixed(2), item.CurrentStock)
	}

	if _, err := svc.ReceivePurchaseOrder(ctx, po.ID, domain.PurchaseOrderReceiveRequest{}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected second receive to conflict, got %v", err)
	}
	if _, err := svc.CreatePurchaseOrder(ctx, domain.PurchaseOrderCreateRequest{
		SupplierID: "sup-unknown",
		Lines:      []domain.PurchaseOrderLine{{InventoryItemID: "inv-espresso", Quantity: 1}},
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected unknown supplier rejected, got %v", err)
	}
}

func TestImportOrderIsIdempotent(t *testing.T) {
	svc, repo, provider := newTestService()
	ctx := adminCtx()
	soldAt := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	provider.AddOrder(catalog.Order{
		ID:        "ORD-100",
		State:     "COMPLETED",
		CreatedAt: soldAt,
		Lines: []catalog.OrderLine{
			{CatalogObjectID: "VAR_LATTE_12", Name: "Latte 12oz", Quantity: 2, GrossCents: 1050, Modifiers: []catalog.OrderLineModifier{{CatalogObjectID: "MOD_OAT", Name: "Oat milk", Quantity: 1}}},
			{Name: "Custom amount", Quantity: 1, GrossCents: 200},
		},
	})

	first, err := svc.ImportOrder(ctx, domain.ImportOrderRequest{OrderID: "ORD-100"})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if first.Imported != 1 || first.Skipped {
		t.Fatalf("expected one imported line, got %+v", first)
	}

	second, err := svc.ImportOrder(ctx, domain.ImportOrderRequest{OrderID: "ORD-100"})
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if !second.Skipped || second.Imported != 0 {
		t.Fatalf("expected second import skipped, got %+v", second)
	}

	lines, _ := repo.ListSalesLines(ctx, soldAt, soldAt, 0)
	if len(lines) != 1 || lines[0].Source != domain.SalesSourceImport || lines[0].Modifiers[0].ExternalModifierID != "MOD_OAT" {
		t.Fatalf("unexpected stored lines: %+v", lines)
	}

	if _, err := svc.ImportOrder(ctx, domain.ImportOrderRequest{OrderID: "ORD-404"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected missing order to be not found, got %v", err)
	}
}

func TestCheckoutIsIdempotentAndRecordsSales(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	req := domain.CheckoutRequest{
		IdempotencyKey: "idem-1",
		CustomerName:   "Sam",
		PaymentToken:   "cnon:card-nonce-ok",
		CartItems: []domain.CartItem{
			{SellableID: "sel-latte-16", Qty: 2, Modifiers: []domain.CartModifier{{ModifierOptionID: "mod-vanilla", Qty: 1}}},
		},
	}

	first, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if first.TotalCents != 1170 || first.ItemCount != 2 || first.Duplicate {
		t.Fatalf("unexpected checkout: %+v", first)
	}

	second, err := svc.Checkout(ctx, req)
	if err != nil {
		t.Fatalf("repeat checkout: %v", err)
	}
	if !second.Duplicate || second.OrderID != first.OrderID {
		t.Fatalf("expected duplicate of %s, got %+v", first.OrderID, second)
	}

	now := time.Now().UTC()
	lines, _ := repo.ListSalesLines(ctx, now.Add(-time.Hour), now.Add(time.Hour), 0)
	if len(lines) != 1 {
		t.Fatalf("expected one recorded line, got %d", len(lines))
	}
	line := lines[0]
	if line.ExternalVariationID != "VAR_LATTE_16" || line.Quantity != 2 || line.Source != domain.SalesSourceCheckout {
		t.Fatalf("unexpected sales line: %+v", line)
	}
	if len(line.Modifiers) != 1 || line.Modifiers[0].ExternalModifierID != "MOD_VANILLA" || line.Modifiers[0].Quantity != 1 {
		t.Fatalf("unexpected modifiers: %+v", line.Modifiers)
	}
}

func TestCheckoutRejections(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-declined",
		PaymentToken:   catalog.DeclinedToken,
		CartItems:      []domain.CartItem{{SellableID: "sel-croissant", Qty: 1}},
	})
	if !errors.Is(err, catalog.ErrProvider) {
		t.Fatalf("expected provider error for declined card, got %v", err)
	}

	if _, err := svc.UpdateSellable(adminCtx(), "sel-croissant", domain.SellableUpdateRequest{Active: boolPtr(false)}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = svc.Checkout(ctx, domain.CheckoutRequest{
		IdempotencyKey: "idem-inactive",
		PaymentToken:   "cnon:ok",
		CartItems:      []domain.CartItem{{SellableID: "sel-croissant", Qty: 1}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected inactive sellable rejected, got %v", err)
	}

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{IdempotencyKey: "idem-empty", PaymentToken: "cnon:ok"})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected empty cart rejected, got %v", err)
	}
}

func boolPtr(v bool) *bool { return &v }

func TestMenuGroupsActiveSellables(t *testing.T) {
	svc, _, _ := newTestService()

	menu, err := svc.Menu(context.Background())
	if err != nil {
		t.Fatalf("menu: %v", err)
	}
	if len(menu.Categories) != 2 || menu.Categories[0].Category != "coffee" || len(menu.Categories[0].Items) != 3 {
		t.Fatalf("unexpected menu: %+v", menu.Categories)
	}
	if len(menu.Modifiers) != 3 {
		t.Fatalf("expected 3 modifiers, got %d", len(menu.Modifiers))
	}

	if _, err := svc.UpdateProduct(adminCtx(), "prd-croissant", domain.ProductUpdateRequest{Active: boolPtr(false)}); err != nil {
		t.Fatalf("deactivate product: %v", err)
	}
	menu, _ = svc.Menu(context.Background())
	if len(menu.Categories) != 1 {
		t.Fatalf("expected pastry hidden, got %+v", menu.Categories)
	}
}

type mapCache struct {
	entries map[string]domain.COGSPreview
	sets    int
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.COGSPreview, bool, error) {
	v, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (c *mapCache) Set(_ context.Context, key string, value *domain.COGSPreview, _ time.Duration) error {
	c.entries[key] = *value
	c.sets++
	return nil
}

func TestPreviewIsCached(t *testing.T) {
	repo := memory.NewSeeded()
	rc := &mapCache{entries: map[string]domain.COGSPreview{}}
	svc := New(repo, Options{Cache: rc})
	ctx := adminCtx()
	end := time.Now().UTC()
	start := end.Add(-7 * 24 * time.Hour)

	first, err := svc.Preview(ctx, start, end, true)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if first.Theoretical == nil || first.Periodic.EndSource != domain.ValuationSourceLive {
		t.Fatalf("unexpected preview: %+v", first)
	}

	if _, err := svc.CreateStockMovement(ctx, domain.StockMovementCreateRequest{InventoryItemID: "inv-croissant", Type: "waste", Quantity: 10}); err != nil {
		t.Fatalf("waste: %v", err)
	}
	second, err := svc.Preview(ctx, start, end, true)
	if err != nil {
		t.Fatalf("second preview: %v", err)
	}
	if rc.sets != 1 || !second.GeneratedAt.Equal(first.GeneratedAt) {
		t.Fatalf("expected cached preview, sets=%d", rc.sets)
	}

	periodicOnly, err := svc.Preview(ctx, start, end, false)
	if err != nil {
		t.Fatalf("periodic preview: %v", err)
	}
	if periodicOnly.Theoretical != nil || rc.sets != 2 {
		t.Fatalf("expected separate periodic-only entry, got %+v", periodicOnly)
	}

	if _, err := svc.Preview(ctx, end, start, true); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected reversed window rejected, got %v", err)
	}
}

func createPeriod(t *testing.T, svc *Service) domain.COGSPeriod {
	t.Helper()
	end := time.Now().UTC().Add(-time.Hour)
	period, err := svc.CreatePeriod(adminCtx(), domain.PeriodCreateRequest{
		PeriodType: "weekly",
		StartAt:    end.Add(-7 * 24 * time.Hour),
		EndAt:      end,
	})
	if err != nil {
		t.Fatalf("create period: %v", err)
	}
	return period
}

func TestClosePeriodOnce(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := adminCtx()
	period := createPeriod(t, svc)

	closed, err := svc.ClosePeriod(ctx, period.ID, true)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Period.Status != domain.PeriodStatusClosed || closed.Period.ClosedAt == nil {
		t.Fatalf("expected closed period, got %+v", closed.Period)
	}
	if closed.Report == nil || closed.Report.Theoretical == nil || closed.Report.ClosedBy != "admin" {
		t.Fatalf("unexpected report: %+v", closed.Report)
	}
	if !strings.HasPrefix(closed.Report.Periodic.EndSource, "snapshot:") {
		t.Fatalf("expected closing snapshot, got %s", closed.Report.Periodic.EndSource)
	}

	_, err = svc.ClosePeriod(ctx, period.ID, true)
	if !errors.Is(err, store.ErrPeriodClosed) {
		t.Fatalf("expected second close rejected, got %v", err)
	}

	notes, err := svc.UpdatePeriodNotes(ctx, period.ID, domain.PeriodUpdateRequest{Notes: "counted by Jo"})
	if err != nil || notes.Notes != "counted by Jo" {
		t.Fatalf("expected notes editable after close: %v", err)
	}

	fetched, err := svc.GetPeriod(ctx, period.ID)
	if err != nil {
		t.Fatalf("get period: %v", err)
	}
	if fetched.Report == nil || fetched.Report.ID != closed.Report.ID {
		t.Fatalf("expected stored report returned, got %+v", fetched.Report)
	}

	want := fetched.Report.Theoretical.TheoreticalCogsValue
	closed.Report.Theoretical.TheoreticalCogsValue = decimal.NewFromInt(999999)
	refetched, err := svc.GetPeriod(ctx, period.ID)
	if err != nil {
		t.Fatalf("get period: %v", err)
	}
	if !refetched.Report.Theoretical.TheoreticalCogsValue.Equal(want) {
		t.Fatalf("closed report changed after close: %s", refetched.Report.Theoretical.TheoreticalCogsValue)
	}
}

func TestClosePeriodWhileLockedLeavesItOpen(t *testing.T) {
	repo := memory.NewSeeded()
	locker := lock.NewLocalLocker()
	svc := New(repo, Options{Locker: locker})
	ctx := adminCtx()
	period := createPeriod(t, svc)

	release, err := locker.Acquire(ctx, lock.PeriodCloseKey(period.ID), time.Minute)
	if err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}

	if _, err := svc.ClosePeriod(ctx, period.ID, false); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict while locked, got %v", err)
	}
	stored, _ := repo.GetPeriod(ctx, period.ID)
	if stored.Status != domain.PeriodStatusOpen {
		t.Fatalf("expected period to stay open, got %s", stored.Status)
	}

	release(ctx)
	closed, err := svc.ClosePeriod(ctx, period.ID, false)
	if err != nil {
		t.Fatalf("close after release: %v", err)
	}
	if closed.Report.Theoretical != nil {
		t.Fatalf("expected periodic-only report")
	}
}

func TestExportPeriod(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := adminCtx()
	period := createPeriod(t, svc)

	if _, err := svc.ExportPeriod(ctx, period.ID, "csv"); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected open period export rejected, got %v", err)
	}
	if _, err := svc.ClosePeriod(ctx, period.ID, true); err != nil {
		t.Fatalf("close: %v", err)
	}

	csvFile, err := svc.ExportPeriod(ctx, period.ID, "")
	if err != nil {
		t.Fatalf("csv export: %v", err)
	}
	if !strings.HasPrefix(csvFile.ContentType, "text/csv") || !strings.HasPrefix(string(csvFile.Body), "section,key,value") {
		t.Fatalf("unexpected csv export: %s", csvFile.ContentType)
	}
	if !strings.HasSuffix(csvFile.Filename, ".csv") {
		t.Fatalf("unexpected filename %s", csvFile.Filename)
	}

	xlsxFile, err := svc.ExportPeriod(ctx, period.ID, "XLSX")
	if err != nil {
		t.Fatalf("xlsx export: %v", err)
	}
	if len(xlsxFile.Body) == 0 || !strings.HasSuffix(xlsxFile.Filename, ".xlsx") {
		t.Fatalf("unexpected xlsx export: %+v", xlsxFile.Filename)
	}

	if _, err := svc.ExportPeriod(ctx, period.ID, "pdf"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected unknown format rejected, got %v", err)
	}
}

func TestAuditTrailRecordsActor(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := adminCtx()

	if _, err := svc.CreateSupplier(ctx, domain.SupplierCreateRequest{Name: "Bakehouse"}); err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	logs, err := svc.ListAuditLogs(ctx, time.Time{}, time.Now().UTC().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("audit logs: %v", err)
	}
	if len(logs) == 0 || logs[0].Action != "supplier_create" || logs[0].ActorUsername != "admin" {
		t.Fatalf("unexpected audit logs: %+v", logs)
	}
}

package store

import (
	"context"
	"errors"
	"time"

	"cafecogs/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrPeriodClosed = errors.New("period already closed")
)

type MovementFilter struct {
	Type  string
	From  *time.Time
	To    *time.Time
	Limit int
}

// PurchaseOrderFilter bounds are inclusive on both ends and apply to
// received_at, so they only ever match received orders.
type PurchaseOrderFilter struct {
	Status       string
	ReceivedFrom *time.Time
	ReceivedTo   *time.Time
	Limit        int
}

// Versioned create calls take a supersedeID. When it is set the named open
// version gets effective_to = new.effective_from in the same write.
type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByExternalID(ctx context.Context, externalItemID string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	ListSellables(ctx context.Context, productID string) ([]domain.Sellable, error)
	GetSellable(ctx context.Context, id string) (*domain.Sellable, error)
	GetSellableByExternalID(ctx context.Context, externalVariationID string) (*domain.Sellable, error)
	CreateSellable(ctx context.Context, sellable domain.Sellable) (*domain.Sellable, error)
	UpdateSellable(ctx context.Context, sellable domain.Sellable) (*domain.Sellable, error)

	ListModifierSets(ctx context.Context) ([]domain.ModifierSet, error)
	GetModifierSetByExternalID(ctx context.Context, externalListID string) (*domain.ModifierSet, error)
	CreateModifierSet(ctx context.Context, set domain.ModifierSet) (*domain.ModifierSet, error)
	UpdateModifierSet(ctx context.Context, set domain.ModifierSet) (*domain.ModifierSet, error)

	ListModifierOptions(ctx context.Context, modifierSetID string) ([]domain.ModifierOption, error)
	GetModifierOption(ctx context.Context, id string) (*domain.ModifierOption, error)
	GetModifierOptionByExternalID(ctx context.Context, externalModifierID string) (*domain.ModifierOption, error)
	CreateModifierOption(ctx context.Context, option domain.ModifierOption) (*domain.ModifierOption, error)
	UpdateModifierOption(ctx context.Context, option domain.ModifierOption) (*domain.ModifierOption, error)

	ListRecipes(ctx context.Context, productID string) ([]domain.Recipe, error)
	GetRecipe(ctx context.Context, id string) (*domain.Recipe, error)
	CreateRecipe(ctx context.Context, recipe domain.Recipe, supersedeID string) (*domain.Recipe, error)
	UpdateRecipe(ctx context.Context, recipe domain.Recipe) (*domain.Recipe, error)

	ListOverrides(ctx context.Context, sellableID string) ([]domain.SellableOverride, error)
	GetOverride(ctx context.Context, id string) (*domain.SellableOverride, error)
	CreateOverride(ctx context.Context, override domain.SellableOverride, supersedeID string) (*domain.SellableOverride, error)
	UpdateOverride(ctx context.Context, override domain.SellableOverride) (*domain.SellableOverride, error)

	ListModifierRecipes(ctx context.Context, modifierOptionID string) ([]domain.ModifierOptionRecipe, error)
	GetModifierRecipe(ctx context.Context, id string) (*domain.ModifierOptionRecipe, error)
	CreateModifierRecipe(ctx context.Context, recipe domain.ModifierOptionRecipe, supersedeID string) (*domain.ModifierOptionRecipe, error)
	UpdateModifierRecipe(ctx context.Context, recipe domain.ModifierOptionRecipe) (*domain.ModifierOptionRecipe, error)

	ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error)
	GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)

	// CaptureSnapshot copies live stock and unit cost of every active item
	// into snapshot lines. Lines and TotalValue on the argument are ignored.
	CaptureSnapshot(ctx context.Context, snapshot domain.InventorySnapshot) (*domain.InventorySnapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]domain.InventorySnapshot, error)
	LatestSnapshotAtOrBefore(ctx context.Context, at time.Time) (*domain.InventorySnapshot, error)
	// LatestSnapshotWithin matches after < taken_at <= upTo.
	LatestSnapshotWithin(ctx context.Context, after time.Time, upTo time.Time) (*domain.InventorySnapshot, error)

	// CreateStockMovement applies the movement to current_stock.
	CreateStockMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error)
	ListStockMovements(ctx context.Context, filter MovementFilter) ([]domain.StockMovement, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error)
	GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, filter PurchaseOrderFilter) ([]domain.PurchaseOrder, error)
	ReceivePurchaseOrder(ctx context.Context, id string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error)

	CreateSalesLines(ctx context.Context, lines []domain.SalesLine) error
	ListSalesLines(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SalesLine, error)
	HasSalesForOrder(ctx context.Context, orderID string) (bool, error)
	FindCheckoutByIdempotency(ctx context.Context, key string) (*domain.CheckoutRecord, error)
	// CreateCheckout stores the record and its sales lines together.
	CreateCheckout(ctx context.Context, record domain.CheckoutRecord, lines []domain.SalesLine) error

	CreatePeriod(ctx context.Context, period domain.COGSPeriod) (*domain.COGSPeriod, error)
	GetPeriod(ctx context.Context, id string) (*domain.COGSPeriod, error)
	ListPeriods(ctx context.Context, status string, limit int) ([]domain.COGSPeriod, error)
	UpdatePeriodNotes(ctx context.Context, id string, notes string) (*domain.COGSPeriod, error)
	// ClosePeriod stores the report and flips the period to closed as one
	// unit. A period that is no longer open yields ErrPeriodClosed and
	// nothing is written.
	ClosePeriod(ctx context.Context, report domain.COGSReport, closedAt time.Time) (*domain.COGSPeriod, error)
	GetReport(ctx context.Context, periodID string) (*domain.COGSReport, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

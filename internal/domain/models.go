package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money leaves the API as a JSON number, not a quoted string.
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID             string    `json:"id"`
	ExternalItemID string    `json:"external_item_id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Active         bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

type ProductCreateRequest struct {
	ExternalItemID string `json:"external_item_id" validate:"required,max=128"`
	Name           string `json:"name" validate:"required,max=200"`
	Category       string `json:"category" validate:"max=100"`
}

type ProductUpdateRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Category *string `json:"category,omitempty" validate:"omitempty,max=100"`
	Active   *bool   `json:"is_active,omitempty"`
}

type Sellable struct {
	ID                  string    `json:"id"`
	ProductID           string    `json:"product_id"`
	ExternalVariationID string    `json:"external_variation_id"`
	Name                string    `json:"name"`
	PriceCents          int64     `json:"price_cents"`
	Active              bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
}

type SellableCreateRequest struct {
	ProductID           string `json:"product_id" validate:"required"`
	ExternalVariationID string `json:"external_variation_id" validate:"required,max=128"`
	Name                string `json:"name" validate:"required,max=200"`
	PriceCents          int64  `json:"price_cents" validate:"gte=0"`
}

type SellableUpdateRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	PriceCents *int64  `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	Active     *bool   `json:"is_active,omitempty"`
}

type ModifierSet struct {
	ID                     string    `json:"id"`
	ExternalModifierListID string    `json:"external_modifier_list_id"`
	Name                   string    `json:"name"`
	Active                 bool      `json:"is_active"`
	CreatedAt              time.Time `json:"created_at"`
}

type ModifierSetCreateRequest struct {
	ExternalModifierListID string `json:"external_modifier_list_id" validate:"required,max=128"`
	Name                   string `json:"name" validate:"required,max=200"`
}

type ModifierOption struct {
	ID                 string    `json:"id"`
	ModifierSetID      string    `json:"modifier_set_id"`
	ExternalModifierID string    `json:"external_modifier_id"`
	Name               string    `json:"name"`
	PriceCents         int64     `json:"price_cents"`
	Active             bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
}

type ModifierOptionCreateRequest struct {
	ModifierSetID      string `json:"modifier_set_id" validate:"required"`
	ExternalModifierID string `json:"external_modifier_id" validate:"required,max=128"`
	Name               string `json:"name" validate:"required,max=200"`
	PriceCents         int64  `json:"price_cents" validate:"gte=0"`
}

type ModifierOptionUpdateRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	PriceCents *int64  `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	Active     *bool   `json:"is_active,omitempty"`
}

// RecipeLine is one ingredient of a recipe. LossPct inflates consumption:
// a 10% loss means 1.1x the listed quantity leaves inventory.
type RecipeLine struct {
	InventoryItemID string  `json:"inventory_item_id" validate:"required"`
	Quantity        float64 `json:"quantity" validate:"gt=0"`
	Unit            string  `json:"unit" validate:"required,max=20"`
	LossPct         float64 `json:"loss_pct" validate:"gte=0,lte=100"`
}

type Recipe struct {
	ID            string       `json:"id"`
	ProductID     string       `json:"product_id"`
	EffectiveFrom *time.Time   `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time   `json:"effective_to,omitempty"`
	YieldQty      float64      `json:"yield_qty"`
	YieldUnit     string       `json:"yield_unit"`
	Notes         string       `json:"notes,omitempty"`
	Lines         []RecipeLine `json:"lines"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (r Recipe) Window() (*time.Time, *time.Time) { return r.EffectiveFrom, r.EffectiveTo }

type RecipeCreateRequest struct {
	ProductID     string       `json:"product_id" validate:"required"`
	EffectiveFrom *time.Time   `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time   `json:"effective_to,omitempty"`
	YieldQty      float64      `json:"yield_qty" validate:"gte=0"`
	YieldUnit     string       `json:"yield_unit" validate:"max=20"`
	Notes         string       `json:"notes" validate:"max=1000"`
	Lines         []RecipeLine `json:"lines" validate:"required,min=1,dive"`
}

// RecipeUpdateRequest replaces the lines of an existing version in place.
// The effective window of a version is fixed once created.
type RecipeUpdateRequest struct {
	YieldQty  *float64     `json:"yield_qty,omitempty" validate:"omitempty,gte=0"`
	YieldUnit *string      `json:"yield_unit,omitempty" validate:"omitempty,max=20"`
	Notes     *string      `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Lines     []RecipeLine `json:"lines" validate:"required,min=1,dive"`
}

type OverrideOp struct {
	Op                    string   `json:"op" validate:"oneof=add remove replace multiplier"`
	TargetInventoryItemID *string  `json:"target_inventory_item_id,omitempty"`
	InventoryItemID       *string  `json:"inventory_item_id,omitempty"`
	Quantity              *float64 `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	Unit                  *string  `json:"unit,omitempty" validate:"omitempty,max=20"`
	LossPct               *float64 `json:"loss_pct,omitempty" validate:"omitempty,gte=0,lte=100"`
	Multiplier            *float64 `json:"multiplier,omitempty" validate:"omitempty,gte=0"`
}

type SellableOverride struct {
	ID            string       `json:"id"`
	SellableID    string       `json:"sellable_id"`
	EffectiveFrom *time.Time   `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time   `json:"effective_to,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	Ops           []OverrideOp `json:"ops"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (o SellableOverride) Window() (*time.Time, *time.Time) { return o.EffectiveFrom, o.EffectiveTo }

type OverrideCreateRequest struct {
	SellableID    string       `json:"sellable_id" validate:"required"`
	EffectiveFrom *time.Time   `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time   `json:"effective_to,omitempty"`
	Notes         string       `json:"notes" validate:"max=1000"`
	Ops           []OverrideOp `json:"ops" validate:"dive"`
}

type OverrideUpdateRequest struct {
	Notes *string      `json:"notes,omitempty" validate:"omitempty,max=1000"`
	Ops   []OverrideOp `json:"ops" validate:"dive"`
}

type ModifierOptionRecipe struct {
	ID               string       `json:"id"`
	ModifierOptionID string       `json:"modifier_option_id"`
	EffectiveFrom    *time.Time   `json:"effective_from,omitempty"`
	EffectiveTo      *time.Time   `json:"effective_to,omitempty"`
	Lines            []RecipeLine `json:"lines"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func (m ModifierOptionRecipe) Window() (*time.Time, *time.Time) {
	return m.EffectiveFrom, m.EffectiveTo
}

type ModifierRecipeCreateRequest struct {
	ModifierOptionID string       `json:"modifier_option_id" validate:"required"`
	EffectiveFrom    *time.Time   `json:"effective_from,omitempty"`
	EffectiveTo      *time.Time   `json:"effective_to,omitempty"`
	Lines            []RecipeLine `json:"lines" validate:"required,min=1,dive"`
}

type ModifierRecipeUpdateRequest struct {
	Lines []RecipeLine `json:"lines" validate:"required,min=1,dive"`
}

// ResolvedLine is one ingredient of the effective recipe for a sale.
type ResolvedLine struct {
	InventoryItemID string  `json:"inventory_item_id"`
	Quantity        float64 `json:"quantity"`
	Unit            string  `json:"unit"`
	LossPct         float64 `json:"loss_pct"`
}

// EffectiveQuantity is the quantity that actually leaves inventory once prep
// loss is accounted for.
func (l ResolvedLine) EffectiveQuantity() float64 {
	return l.Quantity * (1 + l.LossPct/100)
}

type ResolveResponse struct {
	SellableID string         `json:"sellable_id"`
	At         time.Time      `json:"at"`
	RecipeID   string         `json:"recipe_id"`
	OverrideID string         `json:"override_id,omitempty"`
	Lines      []ResolvedLine `json:"lines"`
}

type InventoryItem struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	CurrentStock float64         `json:"current_stock"`
	Active       bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Value is the on-hand valuation of the item at its current unit cost.
func (i InventoryItem) Value() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromFloat(i.CurrentStock))
}

type InventoryItemCreateRequest struct {
	Name         string          `json:"name" validate:"required,max=200"`
	Unit         string          `json:"unit" validate:"required,max=20"`
	UnitCost     decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	CurrentStock float64         `json:"current_stock" validate:"gte=0"`
}

type InventoryItemUpdateRequest struct {
	Name         *string          `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Unit         *string          `json:"unit,omitempty" validate:"omitempty,min=1,max=20"`
	UnitCost     *decimal.Decimal `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	CurrentStock *float64         `json:"current_stock,omitempty" validate:"omitempty,gte=0"`
	Active       *bool            `json:"is_active,omitempty"`
}

type InventorySnapshotLine struct {
	InventoryItemID string          `json:"inventory_item_id"`
	Quantity        float64         `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
}

type InventorySnapshot struct {
	ID         string                  `json:"id"`
	TakenAt    time.Time               `json:"taken_at"`
	Source     string                  `json:"source"`
	Notes      string                  `json:"notes,omitempty"`
	TotalValue decimal.Decimal         `json:"total_value"`
	Lines      []InventorySnapshotLine `json:"lines"`
}

type SnapshotCreateRequest struct {
	Notes string `json:"notes" validate:"max=500"`
}

type StockMovement struct {
	ID              string          `json:"id"`
	InventoryItemID string          `json:"inventory_item_id"`
	Type            string          `json:"type"`
	Direction       string          `json:"direction"`
	Quantity        float64         `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	Reason          string          `json:"reason,omitempty"`
	OccurredAt      time.Time       `json:"occurred_at"`
	RecordedBy      string          `json:"recorded_by"`
}

func (m StockMovement) Value() decimal.Decimal {
	return m.UnitCost.Mul(decimal.NewFromFloat(m.Quantity))
}

type StockMovementCreateRequest struct {
	InventoryItemID string     `json:"inventory_item_id" validate:"required"`
	Type            string     `json:"type" validate:"oneof=waste adjustment"`
	// Direction only matters for adjustments; waste always goes out.
	Direction       string     `json:"direction" validate:"omitempty,oneof=in out"`
	Quantity        float64    `json:"quantity" validate:"gt=0"`
	Reason          string     `json:"reason" validate:"max=500"`
	OccurredAt      *time.Time `json:"occurred_at,omitempty"`
}

type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierCreateRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Phone string `json:"phone" validate:"max=50"`
}

type PurchaseOrderLine struct {
	InventoryItemID string          `json:"inventory_item_id" validate:"required"`
	Quantity        float64         `json:"quantity" validate:"gt=0"`
	UnitCost        decimal.Decimal `json:"unit_cost" validate:"gte=0"`
}

func (l PurchaseOrderLine) Value() decimal.Decimal {
	return l.UnitCost.Mul(decimal.NewFromFloat(l.Quantity))
}

type PurchaseOrder struct {
	ID         string              `json:"id"`
	SupplierID string              `json:"supplier_id"`
	Status     string              `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	ReceivedAt *time.Time          `json:"received_at,omitempty"`
	ReceivedBy string              `json:"received_by,omitempty"`
	Lines      []PurchaseOrderLine `json:"lines"`
}

type PurchaseOrderCreateRequest struct {
	SupplierID string              `json:"supplier_id" validate:"required"`
	Lines      []PurchaseOrderLine `json:"lines" validate:"required,min=1,dive"`
}

type PurchaseOrderReceiveRequest struct {
	ReceivedBy string     `json:"received_by" validate:"max=100"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

type SalesLineModifier struct {
	ExternalModifierID string  `json:"external_modifier_id" validate:"required"`
	Name               string  `json:"name"`
	Quantity           float64 `json:"quantity" validate:"gt=0"`
}

type SalesLine struct {
	ID                  string              `json:"id"`
	OrderID             string              `json:"order_id"`
	ExternalVariationID string              `json:"external_variation_id"`
	Name                string              `json:"name"`
	Quantity            float64             `json:"quantity"`
	GrossCents          int64               `json:"gross_cents"`
	SoldAt              time.Time           `json:"sold_at"`
	Source              string              `json:"source"`
	Modifiers           []SalesLineModifier `json:"modifiers"`
}

type SalesLineInput struct {
	OrderID             string              `json:"order_id" validate:"required,max=128"`
	ExternalVariationID string              `json:"external_variation_id" validate:"required,max=128"`
	Name                string              `json:"name" validate:"max=200"`
	Quantity            float64             `json:"quantity" validate:"gt=0"`
	GrossCents          int64               `json:"gross_cents" validate:"gte=0"`
	SoldAt              time.Time           `json:"sold_at" validate:"required"`
	Modifiers           []SalesLineModifier `json:"modifiers" validate:"dive"`
}

type SalesLinesCreateRequest struct {
	Lines []SalesLineInput `json:"lines" validate:"required,min=1,max=1000,dive"`
}

type ImportOrderRequest struct {
	OrderID string `json:"order_id" validate:"required,max=128"`
}

type ImportOrderResponse struct {
	OrderID  string      `json:"order_id"`
	Imported int         `json:"imported"`
	Skipped  bool        `json:"skipped"`
	Lines    []SalesLine `json:"lines"`
}

type CatalogSyncResponse struct {
	Products        int    `json:"products"`
	Sellables       int    `json:"sellables"`
	ModifierSets    int    `json:"modifier_sets"`
	ModifierOptions int    `json:"modifier_options"`
	SyncedAt        string `json:"synced_at"`
}

type MenuModifier struct {
	ModifierOptionID   string `json:"modifier_option_id"`
	ExternalModifierID string `json:"external_modifier_id"`
	Name               string `json:"name"`
	PriceCents         int64  `json:"price_cents"`
}

type MenuItem struct {
	SellableID          string `json:"sellable_id"`
	ExternalVariationID string `json:"external_variation_id"`
	ProductName         string `json:"product_name"`
	Name                string `json:"name"`
	PriceCents          int64  `json:"price_cents"`
}

type MenuCategory struct {
	Category string     `json:"category"`
	Items    []MenuItem `json:"items"`
}

type MenuResponse struct {
	Categories []MenuCategory `json:"categories"`
	Modifiers  []MenuModifier `json:"modifiers"`
}

type CartModifier struct {
	ModifierOptionID string `json:"modifier_option_id" validate:"required"`
	Qty              int    `json:"qty" validate:"gte=1,lte=20"`
}

type CartItem struct {
	SellableID string         `json:"sellable_id" validate:"required"`
	Qty        int            `json:"qty" validate:"gte=1,lte=100"`
	Modifiers  []CartModifier `json:"modifiers" validate:"dive"`
}

type CheckoutRequest struct {
	IdempotencyKey string     `json:"idempotency_key" validate:"required,max=128"`
	CustomerName   string     `json:"customer_name" validate:"max=100"`
	PaymentToken   string     `json:"payment_token" validate:"required"`
	CartItems      []CartItem `json:"cart_items" validate:"required,min=1,max=50,dive"`
}

type CheckoutResponse struct {
	OrderID    string `json:"order_id"`
	PaymentID  string `json:"payment_id"`
	Status     string `json:"status"`
	TotalCents int64  `json:"total_cents"`
	ItemCount  int    `json:"item_count"`
	Duplicate  bool   `json:"duplicate"`
	CreatedAt  string `json:"created_at"`
}

// CheckoutRecord ties an idempotency key to the provider order it produced.
type CheckoutRecord struct {
	IdempotencyKey string
	OrderID        string
	PaymentID      string
	Status         string
	TotalCents     int64
	ItemCount      int
	CreatedAt      time.Time
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type StaffCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type StaffUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

const (
	OpAdd        = "add"
	OpRemove     = "remove"
	OpReplace    = "replace"
	OpMultiplier = "multiplier"
)

const (
	MovementWaste      = "waste"
	MovementAdjustment = "adjustment"
	MovementReceipt    = "receipt"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

const (
	SnapshotSourceManual      = "manual"
	SnapshotSourcePeriodClose = "period_close"
)

const (
	POStatusDraft    = "draft"
	POStatusReceived = "received"
)

const (
	SalesSourceCheckout = "checkout"
	SalesSourceImport   = "import"
	SalesSourceManual   = "manual"
)

// WeightedUnitCost blends the cost of stock on hand with an incoming receipt.
// Empty or negative stock takes the incoming cost as is.
func WeightedUnitCost(oldCost decimal.Decimal, oldQty float64, incomingCost decimal.Decimal, incomingQty float64) decimal.Decimal {
	if incomingQty <= 0 {
		return oldCost
	}
	if oldQty <= 0 || !oldCost.IsPositive() {
		return incomingCost
	}
	oq, iq := decimal.NewFromFloat(oldQty), decimal.NewFromFloat(incomingQty)
	total := oldCost.Mul(oq).Add(incomingCost.Mul(iq))
	return total.DivRound(oq.Add(iq), 4)
}

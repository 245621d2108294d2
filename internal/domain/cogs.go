package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type COGSPeriod struct {
	ID         string     `json:"id"`
	PeriodType string     `json:"period_type"`
	StartAt    time.Time  `json:"start_at"`
	EndAt      time.Time  `json:"end_at"`
	Status     string     `json:"status"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	Notes      string     `json:"notes"`
	CreatedAt  time.Time  `json:"created_at"`
}

type PeriodCreateRequest struct {
	PeriodType string    `json:"period_type" validate:"oneof=weekly monthly annual custom"`
	StartAt    time.Time `json:"start_at" validate:"required"`
	EndAt      time.Time `json:"end_at" validate:"required"`
	Notes      string    `json:"notes" validate:"max=2000"`
}

type PeriodUpdateRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type PeriodCloseRequest struct {
	ManagerPIN string `json:"manager_pin"`
	// IncludeTheoretical defaults to true when omitted.
	IncludeTheoretical *bool `json:"include_theoretical,omitempty"`
}

type PeriodicResult struct {
	BeginInventoryValue decimal.Decimal `json:"begin_inventory_value"`
	PurchasesValue      decimal.Decimal `json:"purchases_value"`
	EndInventoryValue   decimal.Decimal `json:"end_inventory_value"`
	PeriodicCogsValue   decimal.Decimal `json:"periodic_cogs_value"`
	BeginSource         string          `json:"begin_source"`
	EndSource           string          `json:"end_source"`
}

// Coverage counts how much of the period's sales could be traced to costed
// ingredients.
type Coverage struct {
	SalesLines           int `json:"sales_lines"`
	MappedSalesLines     int `json:"mapped_sales_lines"`
	SalesLinesWithRecipe int `json:"sales_lines_with_recipe"`
	MissingCostLines     int `json:"missing_cost_lines"`
	MissingInventoryItem int `json:"missing_inventory_items"`
	UnitConversionIssues int `json:"unit_conversion_issues"`
	ModifiersSeen        int `json:"modifiers_seen"`
	MappedModifiers      int `json:"mapped_modifiers"`
	ModifiersWithRecipe  int `json:"modifiers_with_recipe"`
}

type TheoreticalUsageLine struct {
	InventoryItemID string          `json:"inventory_item_id"`
	Name            string          `json:"name"`
	Unit            string          `json:"unit"`
	Quantity        float64         `json:"quantity"`
	CostValue       decimal.Decimal `json:"cost_value"`
}

type TheoreticalResult struct {
	TheoreticalCogsValue decimal.Decimal        `json:"theoretical_cogs_value"`
	WasteCostValue       decimal.Decimal        `json:"waste_cost_value"`
	VarianceValue        decimal.Decimal        `json:"variance_value"`
	Coverage             Coverage               `json:"coverage"`
	Lines                []TheoreticalUsageLine `json:"lines"`
}

type COGSPreview struct {
	StartAt     time.Time          `json:"start_at"`
	EndAt       time.Time          `json:"end_at"`
	Periodic    PeriodicResult     `json:"periodic"`
	Theoretical *TheoreticalResult `json:"theoretical"`
	GeneratedAt time.Time          `json:"generated_at"`
}

type COGSReport struct {
	ID          string             `json:"id"`
	PeriodID    string             `json:"period_id"`
	Periodic    PeriodicResult     `json:"periodic"`
	Theoretical *TheoreticalResult `json:"theoretical"`
	ClosedBy    string             `json:"closed_by"`
	CreatedAt   time.Time          `json:"created_at"`
}

type PeriodResponse struct {
	Period COGSPeriod  `json:"period"`
	Report *COGSReport `json:"report,omitempty"`
}

type PeriodListResponse struct {
	Periods []COGSPeriod `json:"periods"`
}

const (
	PeriodStatusOpen   = "open"
	PeriodStatusClosed = "closed"
)

const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodAnnual  = "annual"
	PeriodCustom  = "custom"
)

const ValuationSourceLive = "live"

package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
)

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(domain.RecipeCreateRequest{
		ProductID: "prd-latte",
		Lines:     []domain.RecipeLine{{InventoryItemID: "inv-milk", Quantity: -1, Unit: "ml"}},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "lines[0].quantity") {
		t.Fatalf("expected field path in message, got %q", err.Error())
	}
}

func TestStructAcceptsValidRequest(t *testing.T) {
	err := Struct(domain.PurchaseOrderCreateRequest{
		SupplierID: "sup-roaster",
		Lines:      []domain.PurchaseOrderLine{{InventoryItemID: "inv-espresso", Quantity: 5, UnitCost: decimal.RequireFromString("11.50")}},
	})
	if err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestStructRejectsNegativeMoney(t *testing.T) {
	err := Struct(domain.InventoryItemCreateRequest{
		Name:     "Beans",
		Unit:     "lb",
		UnitCost: decimal.RequireFromString("-1"),
	})
	if err == nil || !strings.Contains(err.Error(), "unit_cost") {
		t.Fatalf("expected unit_cost failure, got %v", err)
	}
}

func TestStructRejectsUnknownOverrideOp(t *testing.T) {
	fields := Fields(domain.OverrideCreateRequest{
		SellableID: "sel-latte-16",
		Ops:        []domain.OverrideOp{{Op: "merge"}},
	})
	if len(fields) != 1 || fields[0].Field != "ops[0].op" || fields[0].Tag != "oneof" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}

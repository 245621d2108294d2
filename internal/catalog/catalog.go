// Package catalog is the boundary to the point-of-sale platform: its
// catalog, its orders and its payments.
package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProvider      = errors.New("catalog provider error")
	ErrOrderNotFound = errors.New("order not found at provider")
)

type Variation struct {
	ID         string
	ItemID     string
	Name       string
	PriceCents int64
}

type Item struct {
	ID              string
	Name            string
	Category        string
	Variations      []Variation
	ModifierListIDs []string
}

type Modifier struct {
	ID         string
	ListID     string
	Name       string
	PriceCents int64
}

type ModifierList struct {
	ID        string
	Name      string
	Modifiers []Modifier
}

type Catalog struct {
	Items         []Item
	ModifierLists []ModifierList
}

type OrderLineModifier struct {
	CatalogObjectID string
	Name            string
	Quantity        float64
}

type OrderLine struct {
	// CatalogObjectID is the variation id.
	CatalogObjectID string
	Name            string
	Quantity        float64
	GrossCents      int64
	Modifiers       []OrderLineModifier
}

type OrderRequest struct {
	IdempotencyKey string
	CustomerName   string
	Lines          []OrderLine
}

type Order struct {
	ID         string
	State      string
	CreatedAt  time.Time
	TotalCents int64
	Lines      []OrderLine
}

type PaymentRequest struct {
	IdempotencyKey string
	OrderID        string
	SourceToken    string
	AmountCents    int64
}

type Payment struct {
	ID          string
	OrderID     string
	Status      string
	AmountCents int64
}

type Provider interface {
	ListCatalog(ctx context.Context) (*Catalog, error)
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
}

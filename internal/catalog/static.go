package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cafecogs/backend/internal/xid"
)

// DeclinedToken makes Static refuse a payment.
const DeclinedToken = "cnon:card-declined"

// Static serves a fixed catalog and keeps orders in memory. It stands in
// for the POS platform when no access token is configured.
type Static struct {
	mu       sync.Mutex
	catalog  Catalog
	orders   map[string]Order
	payments map[string]Payment
}

func NewStatic(c Catalog) *Static {
	return &Static{
		catalog:  c,
		orders:   make(map[string]Order),
		payments: make(map[string]Payment),
	}
}

// DemoCatalog mirrors the seeded memory store.
func DemoCatalog() Catalog {
	return Catalog{
		Items: []Item{
			{ID: "ITEM_LATTE", Name: "Latte", Category: "coffee", ModifierListIDs: []string{"MODLIST_MILK", "MODLIST_EXTRAS"}, Variations: []Variation{
				{ID: "VAR_LATTE_12", ItemID: "ITEM_LATTE", Name: "Latte 12oz", PriceCents: 450},
				{ID: "VAR_LATTE_16", ItemID: "ITEM_LATTE", Name: "Latte 16oz", PriceCents: 525},
			}},
			{ID: "ITEM_AMERICANO", Name: "Americano", Category: "coffee", ModifierListIDs: []string{"MODLIST_EXTRAS"}, Variations: []Variation{
				{ID: "VAR_AMERICANO_12", ItemID: "ITEM_AMERICANO", Name: "Americano 12oz", PriceCents: 350},
			}},
			{ID: "ITEM_CROISSANT", Name: "Butter croissant", Category: "pastry", Variations: []Variation{
				{ID: "VAR_CROISSANT", ItemID: "ITEM_CROISSANT", Name: "Butter croissant", PriceCents: 375},
			}},
		},
		ModifierLists: []ModifierList{
			{ID: "MODLIST_MILK", Name: "Milk", Modifiers: []Modifier{
				{ID: "MOD_OAT", ListID: "MODLIST_MILK", Name: "Oat milk", PriceCents: 75},
			}},
			{ID: "MODLIST_EXTRAS", Name: "Extras", Modifiers: []Modifier{
				{ID: "MOD_VANILLA", ListID: "MODLIST_EXTRAS", Name: "Vanilla", PriceCents: 60},
				{ID: "MOD_EXTRA_SHOT", ListID: "MODLIST_EXTRAS", Name: "Extra shot", PriceCents: 100},
			}},
		},
	}
}

func (s *Static) ListCatalog(_ context.Context) (*Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Catalog{
		Items:         append([]Item(nil), s.catalog.Items...),
		ModifierLists: append([]ModifierList(nil), s.catalog.ModifierLists...),
	}
	return &out, nil
}

func (s *Static) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	if len(req.Lines) == 0 {
		return nil, fmt.Errorf("%w: order has no lines", ErrProvider)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, line := range req.Lines {
		total += line.GrossCents
	}
	order := Order{
		ID:         xid.New("ord"),
		State:      "OPEN",
		CreatedAt:  time.Now().UTC(),
		TotalCents: total,
		Lines:      append([]OrderLine(nil), req.Lines...),
	}
	s.orders[order.ID] = order
	return &order, nil
}

// AddOrder registers an order placed elsewhere, as if rung up at the till.
func (s *Static) AddOrder(order Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
}

func (s *Static) CreatePayment(_ context.Context, req PaymentRequest) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[req.OrderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s not found", ErrProvider, req.OrderID)
	}
	if req.SourceToken == DeclinedToken {
		return nil, fmt.Errorf("%w: card declined", ErrProvider)
	}
	if existing, ok := s.payments[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return &existing, nil
	}
	payment := Payment{
		ID:          xid.New("pay"),
		OrderID:     order.ID,
		Status:      "COMPLETED",
		AmountCents: req.AmountCents,
	}
	order.State = "COMPLETED"
	s.orders[order.ID] = order
	if req.IdempotencyKey != "" {
		s.payments[req.IdempotencyKey] = payment
	}
	return &payment, nil
}

func (s *Static) GetOrder(_ context.Context, orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return &order, nil
}

package square

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cafecogs/backend/internal/catalog"
)

var _ catalog.Provider = (*Client)(nil)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, AccessToken: "sq-token", LocationID: "LOC1", Version: "2024-10-17"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestListCatalogFollowsCursorAndMapsObjects(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer sq-token" || r.Header.Get("Square-Version") != "2024-10-17" {
			t.Errorf("missing auth headers: %v", r.Header)
		}
		if r.URL.Query().Get("cursor") == "" {
			_, _ = w.Write([]byte(`{"objects":[
				{"type":"CATEGORY","id":"CAT1","category_data":{"name":"coffee"}},
				{"type":"ITEM","id":"ITEM_LATTE","item_data":{"name":"Latte","category_id":"CAT1",
					"modifier_list_info":[{"modifier_list_id":"ML1"}],
					"variations":[{"type":"ITEM_VARIATION","id":"VAR_12","item_variation_data":{"item_id":"ITEM_LATTE","name":"12oz","price_money":{"amount":450,"currency":"USD"}}},
					              {"type":"ITEM_VARIATION","id":"VAR_OLD","is_deleted":true,"item_variation_data":{"name":"old"}}]}}
			],"cursor":"next"}`))
			return
		}
		_, _ = w.Write([]byte(`{"objects":[
			{"type":"MODIFIER_LIST","id":"ML1","modifier_list_data":{"name":"Milk","modifiers":[
				{"type":"MODIFIER","id":"MOD_OAT","modifier_data":{"name":"Oat","price_money":{"amount":75,"currency":"USD"}}}]}}
		]}`))
	})

	cat, err := c.ListCatalog(context.Background())
	if err != nil {
		t.Fatalf("list catalog: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 pages, got %d", calls)
	}
	if len(cat.Items) != 1 || cat.Items[0].Category != "coffee" || len(cat.Items[0].Variations) != 1 {
		t.Fatalf("unexpected items: %+v", cat.Items)
	}
	if cat.Items[0].Variations[0].PriceCents != 450 || cat.Items[0].ModifierListIDs[0] != "ML1" {
		t.Fatalf("unexpected variation mapping: %+v", cat.Items[0])
	}
	if len(cat.ModifierLists) != 1 || cat.ModifierLists[0].Modifiers[0].ID != "MOD_OAT" || cat.ModifierLists[0].Modifiers[0].ListID != "ML1" {
		t.Fatalf("unexpected modifier lists: %+v", cat.ModifierLists)
	}
}

func TestCreateOrderSendsLocationAndQuantities(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body createOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Order.LocationID != "LOC1" || body.IdempotencyKey != "idem-1" || body.Order.LineItems[0].Quantity != "2" {
			t.Errorf("unexpected body: %+v", body)
		}
		_, _ = w.Write([]byte(`{"order":{"id":"ORD1","state":"OPEN","created_at":"2025-01-05T10:00:00Z","total_money":{"amount":900,"currency":"USD"},
			"line_items":[{"catalog_object_id":"VAR_12","name":"Latte","quantity":"2","total_money":{"amount":900,"currency":"USD"}}]}}`))
	})

	order, err := c.CreateOrder(context.Background(), catalog.OrderRequest{
		IdempotencyKey: "idem-1",
		Lines:          []catalog.OrderLine{{CatalogObjectID: "VAR_12", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.ID != "ORD1" || order.TotalCents != 900 || order.Lines[0].Quantity != 2 || order.CreatedAt.IsZero() {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"category":"INVALID_REQUEST_ERROR","code":"NOT_FOUND","detail":"Order not found"}]}`))
	})
	_, err := c.GetOrder(context.Background(), "missing")
	if !errors.Is(err, catalog.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestPaymentFailureIsProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED","detail":"declined"}]}`))
	})
	_, err := c.CreatePayment(context.Background(), catalog.PaymentRequest{OrderID: "ORD1", SourceToken: "cnon:x", AmountCents: 900})
	if !errors.Is(err, catalog.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	var status *StatusError
	if !errors.As(err, &status) || status.StatusCode != http.StatusPaymentRequired || status.Detail != "CARD_DECLINED: declined" {
		t.Fatalf("unexpected status error: %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(Config{LocationID: "LOC1"}); err == nil {
		t.Fatalf("expected error without token")
	}
	if _, err := New(Config{AccessToken: "t"}); err == nil {
		t.Fatalf("expected error without location")
	}
}

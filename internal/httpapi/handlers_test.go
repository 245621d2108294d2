package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cafecogs/backend/internal/catalog"
	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/service"
	"cafecogs/backend/internal/store/memory"
)

// newTestAPI wires the real service and auth manager over the seeded
// in-memory store so handler tests cover the full request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{Provider: catalog.NewStatic(catalog.DemoCatalog())})
	auth := NewAuthManager(context.Background(), "test-secret-key", time.Hour, "123456", repo)

	return New(svc, auth, "*")
}

// call sends a request through the full handler. Empty token or csrf leave
// the header unset.
func call(t *testing.T, api *API, method, path, token, csrf string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dest); err != nil {
		t.Fatalf("decode body: %v (raw: %s)", err, rec.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := call(t, api, http.MethodGet, "/healthz", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)

	rec := call(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Username: "Admin", Password: "admin123"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body domain.LoginResponse
	decodeBody(t, rec, &body)
	if body.AccessToken == "" || body.Role != domain.RoleAdmin {
		t.Fatalf("unexpected login response: %+v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	rec := call(t, api, http.MethodPost, "/api/v1/auth/login", "", "", domain.LoginRequest{Username: "admin", Password: "wrongpassword"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestCatalogRequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := call(t, api, http.MethodGet, "/api/v1/catalog/products", "", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	rec = call(t, api, http.MethodGet, "/api/v1/catalog/products", "not-a-jwt", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestStaffReadsCatalogButCannotEditIt(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := call(t, api, http.MethodGet, "/api/v1/catalog/products", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Products []domain.Product `json:"products"`
	}
	decodeBody(t, rec, &body)
	if len(body.Products) != 3 {
		t.Fatalf("expected 3 seeded products, got %d", len(body.Products))
	}

	rec = call(t, api, http.MethodPatch, "/api/v1/catalog/products/prd-latte", token, csrf, map[string]any{"name": "Flat white"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff edit, got %d", rec.Code)
	}

	rec = call(t, api, http.MethodPost, "/api/v1/catalog/products", token, csrf, domain.ProductCreateRequest{ExternalItemID: "ITEM_TEA", Name: "Tea"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 from service role check, got %d", rec.Code)
	}
}

func TestAdminCreatesProductAndRejectsDuplicate(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	req := domain.ProductCreateRequest{ExternalItemID: "ITEM_TEA", Name: "Tea", Category: "tea"}
	rec := call(t, api, http.MethodPost, "/api/v1/catalog/products", token, csrf, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = call(t, api, http.MethodPost, "/api/v1/catalog/products", token, csrf, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate external id, got %d", rec.Code)
	}

	rec = call(t, api, http.MethodPost, "/api/v1/catalog/products", token, csrf, map[string]any{"name": "Tea", "colour": "green"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestMenuIsPublic(t *testing.T) {
	api := newTestAPI(t)

	rec := call(t, api, http.MethodGet, "/api/v1/menu", "", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var menu domain.MenuResponse
	decodeBody(t, rec, &menu)
	if len(menu.Categories) == 0 || len(menu.Modifiers) == 0 {
		t.Fatalf("expected categories and modifiers, got %+v", menu)
	}
}

func TestCheckoutFlow(t *testing.T) {
	api := newTestAPI(t)
	req := domain.CheckoutRequest{
		IdempotencyKey: "web-1",
		PaymentToken:   "cnon:card-nonce-ok",
		CartItems:      []domain.CartItem{{SellableID: "sel-croissant", Qty: 2}},
	}

	rec := call(t, api, http.MethodPost, "/api/v1/checkout", "", "", req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf token, got %d", rec.Code)
	}

	csrf := fetchCSRFToken(t, api)
	rec = call(t, api, http.MethodPost, "/api/v1/checkout", "", csrf, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var first domain.CheckoutResponse
	decodeBody(t, rec, &first)
	if first.TotalCents != 750 || first.Duplicate {
		t.Fatalf("unexpected checkout: %+v", first)
	}

	rec = call(t, api, http.MethodPost, "/api/v1/checkout", "", csrf, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rec.Code)
	}
	var second domain.CheckoutResponse
	decodeBody(t, rec, &second)
	if !second.Duplicate || second.OrderID != first.OrderID {
		t.Fatalf("expected replay of %s, got %+v", first.OrderID, second)
	}
}

func TestDeclinedCheckoutReturns502(t *testing.T) {
	api := newTestAPI(t)
	csrf := fetchCSRFToken(t, api)

	rec := call(t, api, http.MethodPost, "/api/v1/checkout", "", csrf, domain.CheckoutRequest{
		IdempotencyKey: "web-declined",
		PaymentToken:   catalog.DeclinedToken,
		CartItems:      []domain.CartItem{{SellableID: "sel-croissant", Qty: 1}},
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), catalog.DeclinedToken) {
		t.Fatalf("provider detail leaked: %s", rec.Body.String())
	}
}

func TestResolveEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")

	rec := call(t, api, http.MethodGet, "/api/v1/recipes/resolve?sellable_id=sel-latte-16", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resolved domain.ResolveResponse
	decodeBody(t, rec, &resolved)
	if resolved.RecipeID != "rcp-latte" || resolved.OverrideID != "ovr-latte-16" {
		t.Fatalf("unexpected resolution: %+v", resolved)
	}
	hasBigCup := false
	for _, line := range resolved.Lines {
		if line.InventoryItemID == "inv-cup-12" {
			t.Fatalf("expected 12oz cup replaced, got %+v", resolved.Lines)
		}
		hasBigCup = hasBigCup || line.InventoryItemID == "inv-cup-16"
	}
	if !hasBigCup {
		t.Fatalf("expected 16oz cup in lines, got %+v", resolved.Lines)
	}

	rec = call(t, api, http.MethodGet, "/api/v1/recipes/resolve", token, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without sellable_id, got %d", rec.Code)
	}

	rec = call(t, api, http.MethodGet, "/api/v1/recipes/resolve?sellable_id=sel-missing", token, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sellable, got %d", rec.Code)
	}

	rec = call(t, api, http.MethodGet, "/api/v1/recipes/resolve?sellable_id=sel-latte-12&at=yesterday", token, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timestamp, got %d", rec.Code)
	}
}

func TestWasteMovementCannotDriveStockNegative(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, "staff", "staff123")
	csrf := fetchCSRFToken(t, api)

	rec := call(t, api, http.MethodPost, "/api/v1/inventory/movements", token, csrf, map[string]any{
		"inventory_item_id": "inv-vanilla",
		"type":              domain.MovementWaste,
		"quantity":          1,
		"reason":            "spilled",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = call(t, api, http.MethodPost, "/api/v1/inventory/movements", token, csrf, map[string]any{
		"inventory_item_id": "inv-vanilla",
		"type":              domain.MovementWaste,
		"quantity":          100,
		"reason":            "spilled",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 when waste exceeds stock, got %d", rec.Code)
	}

	rec = call(t, api, http.MethodGet, "/api/v1/inventory/movements?type=waste", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Movements []domain.StockMovement `json:"movements"`
	}
	decodeBody(t, rec, &body)
	if len(body.Movements) != 1 {
		t.Fatalf("expected one waste movement, got %d", len(body.Movements))
	}
}

func TestPeriodCloseAndExport(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	end := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	rec := call(t, api, http.MethodPost, "/api/v1/cogs/periods", token, csrf, domain.PeriodCreateRequest{
		PeriodType: domain.PeriodWeekly,
		StartAt:    end.Add(-7 * 24 * time.Hour),
		EndAt:      end,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Period domain.COGSPeriod `json:"period"`
	}
	decodeBody(t, rec, &created)
	base := "/api/v1/cogs/periods/" + created.Period.ID

	rec = call(t, api, http.MethodGet, base+"/export?format=csv", token, "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 exporting an open period, got %d", rec.Code)
	}

	rec = call(t, api, http.MethodPost, base+"/close", token, csrf, domain.PeriodCloseRequest{ManagerPIN: "000000"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong pin, got %d", rec.Code)
	}

	rec = call(t, api, http.MethodPost, base+"/close", token, csrf, domain.PeriodCloseRequest{ManagerPIN: "123456"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var closed domain.PeriodResponse
	decodeBody(t, rec, &closed)
	if closed.Period.Status != domain.PeriodStatusClosed || closed.Report == nil || closed.Report.Theoretical == nil {
		t.Fatalf("unexpected close response: %+v", closed)
	}

	rec = call(t, api, http.MethodPost, base+"/close", token, csrf, domain.PeriodCloseRequest{ManagerPIN: "123456"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second close, got %d", rec.Code)
	}

	rec = call(t, api, http.MethodGet, base+"/export?format=csv", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(got, "attachment;") || !strings.Contains(got, ".csv") {
		t.Fatalf("unexpected Content-Disposition %q", got)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected Content-Type %q", rec.Header().Get("Content-Type"))
	}

	rec = call(t, api, http.MethodGet, "/api/v1/cogs/periods?status=closed", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listed domain.PeriodListResponse
	decodeBody(t, rec, &listed)
	if len(listed.Periods) != 1 || listed.Periods[0].ID != created.Period.ID {
		t.Fatalf("expected the closed period listed, got %+v", listed)
	}
}

func TestPreviewRequiresWindow(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := call(t, api, http.MethodGet, "/api/v1/cogs/preview", token, "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without window, got %d", rec.Code)
	}

	rec = call(t, api, http.MethodGet, "/api/v1/cogs/preview?start_at=2026-01-01&end_at=2026-02-01&include_theoretical=false", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var preview domain.COGSPreview
	decodeBody(t, rec, &preview)
	if preview.Theoretical != nil {
		t.Fatalf("expected theoretical figures omitted")
	}

	staff := login(t, api, "staff", "staff123")
	rec = call(t, api, http.MethodGet, "/api/v1/cogs/preview?start_at=2026-01-01&end_at=2026-02-01", staff, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}
}

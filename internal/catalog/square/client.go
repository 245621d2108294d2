// Package square talks to the Square REST API.
package square

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cafecogs/backend/internal/catalog"
)

type Config struct {
	BaseURL     string
	AccessToken string
	LocationID  string
	Version     string
	Currency    string
	HTTPClient  *http.Client
}

type Client struct {
	baseURL    string
	token      string
	locationID string
	version    string
	currency   string
	http       *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, errors.New("square access token is empty")
	}
	if strings.TrimSpace(cfg.LocationID) == "" {
		return nil, errors.New("square location id is empty")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://connect.squareup.com"
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      cfg.AccessToken,
		locationID: cfg.LocationID,
		version:    cfg.Version,
		currency:   currency,
		http:       httpClient,
	}, nil
}

type apiError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

func (c *Client) do(ctx context.Context, method string, path string, params url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if c.version != "" {
		req.Header.Set("Square-Version", c.version)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", catalog.ErrProvider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", catalog.ErrProvider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope errorEnvelope
		detail := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &envelope) == nil && len(envelope.Errors) > 0 {
			detail = envelope.Errors[0].Code + ": " + envelope.Errors[0].Detail
		}
		return &StatusError{StatusCode: resp.StatusCode, Detail: detail}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", catalog.ErrProvider, err)
	}
	return nil
}

// StatusError is a non-2xx answer from Square.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("square api error %d: %s", e.StatusCode, e.Detail)
}

func (e *StatusError) Unwrap() error { return catalog.ErrProvider }

type money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type catalogObject struct {
	Type         string `json:"type"`
	ID           string `json:"id"`
	IsDeleted    bool   `json:"is_deleted"`
	CategoryData *struct {
		Name string `json:"name"`
	} `json:"category_data,omitempty"`
	ItemData *struct {
		Name       string `json:"name"`
		CategoryID string `json:"category_id"`
		Categories []struct {
			ID string `json:"id"`
		} `json:"categories"`
		Variations       []catalogObject `json:"variations"`
		ModifierListInfo []struct {
			ModifierListID string `json:"modifier_list_id"`
		} `json:"modifier_list_info"`
	} `json:"item_data,omitempty"`
	ItemVariationData *struct {
		ItemID     string `json:"item_id"`
		Name       string `json:"name"`
		PriceMoney *money `json:"price_money"`
	} `json:"item_variation_data,omitempty"`
	ModifierListData *struct {
		Name      string          `json:"name"`
		Modifiers []catalogObject `json:"modifiers"`
	} `json:"modifier_list_data,omitempty"`
	ModifierData *struct {
		Name           string `json:"name"`
		PriceMoney     *money `json:"price_money"`
		ModifierListID string `json:"modifier_list_id"`
	} `json:"modifier_data,omitempty"`
}

type listCatalogResponse struct {
	Objects []catalogObject `json:"objects"`
	Cursor  string          `json:"cursor"`
}

func (c *Client) ListCatalog(ctx context.Context) (*catalog.Catalog, error) {
	var objects []catalogObject
	cursor := ""
	for {
		params := url.Values{"types": {"ITEM,MODIFIER_LIST,CATEGORY"}}
		if cursor != "" {
			params.Set("cursor", cursor)
		}
		var page listCatalogResponse
		if err := c.do(ctx, http.MethodGet, "/v2/catalog/list", params, nil, &page); err != nil {
			return nil, err
		}
		objects = append(objects, page.Objects...)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}
	return toCatalog(objects), nil
}

func toCatalog(objects []catalogObject) *catalog.Catalog {
	categories := map[string]string{}
	for _, obj := range objects {
		if obj.Type == "CATEGORY" && obj.CategoryData != nil {
			categories[obj.ID] = obj.CategoryData.Name
		}
	}

	out := &catalog.Catalog{}
	for _, obj := range objects {
		if obj.IsDeleted {
			continue
		}
		switch {
		case obj.Type == "ITEM" && obj.ItemData != nil:
			item := catalog.Item{ID: obj.ID, Name: obj.ItemData.Name}
			categoryID := obj.ItemData.CategoryID
			if categoryID == "" && len(obj.ItemData.Categories) > 0 {
				categoryID = obj.ItemData.Categories[0].ID
			}
			item.Category = categories[categoryID]
			for _, v := range obj.ItemData.Variations {
				if v.IsDeleted || v.ItemVariationData == nil {
					continue
				}
				variation := catalog.Variation{ID: v.ID, ItemID: obj.ID, Name: v.ItemVariationData.Name}
				if v.ItemVariationData.PriceMoney != nil {
					variation.PriceCents = v.ItemVariationData.PriceMoney.Amount
				}
				item.Variations = append(item.Variations, variation)
			}
			for _, info := range obj.ItemData.ModifierListInfo {
				item.ModifierListIDs = append(item.ModifierListIDs, info.ModifierListID)
			}
			out.Items = append(out.Items, item)
		case obj.Type == "MODIFIER_LIST" && obj.ModifierListData != nil:
			list := catalog.ModifierList{ID: obj.ID, Name: obj.ModifierListData.Name}
			for _, m := range obj.ModifierListData.Modifiers {
				if m.IsDeleted || m.ModifierData == nil {
					continue
				}
				mod := catalog.Modifier{ID: m.ID, ListID: obj.ID, Name: m.ModifierData.Name}
				if m.ModifierData.PriceMoney != nil {
					mod.PriceCents = m.ModifierData.PriceMoney.Amount
				}
				list.Modifiers = append(list.Modifiers, mod)
			}
			out.ModifierLists = append(out.ModifierLists, list)
		}
	}
	return out
}

type orderModifier struct {
	CatalogObjectID string `json:"catalog_object_id,omitempty"`
	Name            string `json:"name,omitempty"`
	Quantity        string `json:"quantity,omitempty"`
}

type orderLineItem struct {
	CatalogObjectID string          `json:"catalog_object_id,omitempty"`
	Name            string          `json:"name,omitempty"`
	Quantity        string          `json:"quantity"`
	Modifiers       []orderModifier `json:"modifiers,omitempty"`
	TotalMoney      *money          `json:"total_money,omitempty"`
}

type order struct {
	ID          string          `json:"id,omitempty"`
	LocationID  string          `json:"location_id"`
	State       string          `json:"state,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"`
	ReferenceID string          `json:"reference_id,omitempty"`
	LineItems   []orderLineItem `json:"line_items"`
	TotalMoney  *money          `json:"total_money,omitempty"`
}

type orderEnvelope struct {
	Order order `json:"order"`
}

type createOrderRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	Order          order  `json:"order"`
}

func (c *Client) CreateOrder(ctx context.Context, req catalog.OrderRequest) (*catalog.Order, error) {
	body := createOrderRequest{
		IdempotencyKey: req.IdempotencyKey,
		Order:          order{LocationID: c.locationID, ReferenceID: req.CustomerName},
	}
	for _, line := range req.Lines {
		item := orderLineItem{CatalogObjectID: line.CatalogObjectID, Quantity: formatQuantity(line.Quantity)}
		for _, m := range line.Modifiers {
			item.Modifiers = append(item.Modifiers, orderModifier{CatalogObjectID: m.CatalogObjectID, Quantity: formatQuantity(m.Quantity)})
		}
		body.Order.LineItems = append(body.Order.LineItems, item)
	}

	var resp orderEnvelope
	if err := c.do(ctx, http.MethodPost, "/v2/orders", nil, body, &resp); err != nil {
		return nil, err
	}
	return fromOrder(resp.Order), nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*catalog.Order, error) {
	var resp orderEnvelope
	err := c.do(ctx, http.MethodGet, "/v2/orders/"+url.PathEscape(orderID), nil, nil, &resp)
	var status *StatusError
	if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", catalog.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	return fromOrder(resp.Order), nil
}

type createPaymentRequest struct {
	SourceID       string `json:"source_id"`
	IdempotencyKey string `json:"idempotency_key"`
	AmountMoney    money  `json:"amount_money"`
	OrderID        string `json:"order_id"`
	LocationID     string `json:"location_id"`
	Autocomplete   bool   `json:"autocomplete"`
}

type paymentEnvelope struct {
	Payment struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		OrderID     string `json:"order_id"`
		AmountMoney money  `json:"amount_money"`
	} `json:"payment"`
}

func (c *Client) CreatePayment(ctx context.Context, req catalog.PaymentRequest) (*catalog.Payment, error) {
	body := createPaymentRequest{
		SourceID:       req.SourceToken,
		IdempotencyKey: req.IdempotencyKey,
		AmountMoney:    money{Amount: req.AmountCents, Currency: c.currency},
		OrderID:        req.OrderID,
		LocationID:     c.locationID,
		Autocomplete:   true,
	}
	var resp paymentEnvelope
	if err := c.do(ctx, http.MethodPost, "/v2/payments", nil, body, &resp); err != nil {
		return nil, err
	}
	return &catalog.Payment{
		ID:          resp.Payment.ID,
		OrderID:     resp.Payment.OrderID,
		Status:      resp.Payment.Status,
		AmountCents: resp.Payment.AmountMoney.Amount,
	}, nil
}

func fromOrder(o order) *catalog.Order {
	out := &catalog.Order{ID: o.ID, State: o.State}
	if t, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil {
		out.CreatedAt = t.UTC()
	}
	if o.TotalMoney != nil {
		out.TotalCents = o.TotalMoney.Amount
	}
	for _, li := range o.LineItems {
		line := catalog.OrderLine{
			CatalogObjectID: li.CatalogObjectID,
			Name:            li.Name,
			Quantity:        parseQuantity(li.Quantity),
		}
		if li.TotalMoney != nil {
			line.GrossCents = li.TotalMoney.Amount
		}
		for _, m := range li.Modifiers {
			line.Modifiers = append(line.Modifiers, catalog.OrderLineModifier{
				CatalogObjectID: m.CatalogObjectID,
				Name:            m.Name,
				Quantity:        parseQuantity(m.Quantity),
			})
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

// Square sends quantities as decimal strings.
func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func parseQuantity(s string) float64 {
	if s == "" {
		return 1
	}
	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return q
}

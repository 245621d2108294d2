package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cafecogs/backend/internal/catalog"
	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/validate"
	"cafecogs/backend/internal/xid"
)

func (s *Service) ListSalesLines(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SalesLine, error) {
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if from.After(to) {
		return nil, invalid("from must not be after to")
	}
	if limit < 1 || limit > 1000 {
		limit = 500
	}
	return s.repo.ListSalesLines(ctx, from, to, limit)
}

// CreateSalesLines records sales entered by hand, for example from a paper
// tally on a day the POS was down.
func (s *Service) CreateSalesLines(ctx context.Context, req domain.SalesLinesCreateRequest) ([]domain.SalesLine, error) {
	if _, err := requireStaff(ctx); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	lines := make([]domain.SalesLine, 0, len(req.Lines))
	for _, in := range req.Lines {
		lines = append(lines, domain.SalesLine{
			ID:                  xid.New("sl"),
			OrderID:             strings.TrimSpace(in.OrderID),
			ExternalVariationID: strings.TrimSpace(in.ExternalVariationID),
			Name:                strings.TrimSpace(in.Name),
			Quantity:            in.Quantity,
			GrossCents:          in.GrossCents,
			SoldAt:              in.SoldAt.UTC(),
			Source:              domain.SalesSourceManual,
			Modifiers:           normalizeModifiers(in.Modifiers),
		})
	}
	if err := s.repo.CreateSalesLines(ctx, lines); err != nil {
		return nil, err
	}
	s.logAudit(ctx, "sales_lines_create", "sales_line", lines[0].OrderID, fmt.Sprintf("lines=%d", len(lines)))
	return lines, nil
}

func normalizeModifiers(mods []domain.SalesLineModifier) []domain.SalesLineModifier {
	out := make([]domain.SalesLineModifier, 0, len(mods))
	for _, m := range mods {
		m.ExternalModifierID = strings.TrimSpace(m.ExternalModifierID)
		if m.Quantity <= 0 {
			m.Quantity = 1
		}
		out = append(out, m)
	}
	return out
}

// ImportOrder pulls one POS order and stores its line items as sales lines.
// An order already on file is skipped, so repeated imports are harmless.
func (s *Service) ImportOrder(ctx context.Context, req domain.ImportOrderRequest) (domain.ImportOrderResponse, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.ImportOrderResponse{}, err
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	if err := validate.Struct(req); err != nil {
		return domain.ImportOrderResponse{}, err
	}

	seen, err := s.repo.HasSalesForOrder(ctx, req.OrderID)
	if err != nil {
		return domain.ImportOrderResponse{}, err
	}
	if seen {
		return domain.ImportOrderResponse{OrderID: req.OrderID, Skipped: true, Lines: []domain.SalesLine{}}, nil
	}

	order, err := s.provider.GetOrder(ctx, req.OrderID)
	if errors.Is(err, catalog.ErrOrderNotFound) {
		return domain.ImportOrderResponse{}, fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	if err != nil {
		return domain.ImportOrderResponse{}, err
	}

	soldAt := order.CreatedAt.UTC()
	if soldAt.IsZero() {
		soldAt = s.now()
	}
	lines := make([]domain.SalesLine, 0, len(order.Lines))
	for _, ol := range order.Lines {
		if ol.CatalogObjectID == "" || ol.Quantity <= 0 {
			// Ad hoc amounts rung up without a catalog item carry no recipe.
			continue
		}
		lines = append(lines, salesLineFromOrder(order.ID, ol, soldAt, domain.SalesSourceImport))
	}
	if len(lines) > 0 {
		if err := s.repo.CreateSalesLines(ctx, lines); err != nil {
			return domain.ImportOrderResponse{}, err
		}
	}

	s.logAudit(ctx, "order_import", "order", order.ID, fmt.Sprintf("lines=%d", len(lines)))
	return domain.ImportOrderResponse{OrderID: order.ID, Imported: len(lines), Lines: lines}, nil
}

func salesLineFromOrder(orderID string, ol catalog.OrderLine, soldAt time.Time, source string) domain.SalesLine {
	mods := make([]domain.SalesLineModifier, 0, len(ol.Modifiers))
	for _, m := range ol.Modifiers {
		qty := m.Quantity
		if qty <= 0 {
			qty = 1
		}
		mods = append(mods, domain.SalesLineModifier{ExternalModifierID: m.CatalogObjectID, Name: m.Name, Quantity: qty})
	}
	return domain.SalesLine{
		ID:                  xid.New("sl"),
		OrderID:             orderID,
		ExternalVariationID: ol.CatalogObjectID,
		Name:                ol.Name,
		Quantity:            ol.Quantity,
		GrossCents:          ol.GrossCents,
		SoldAt:              soldAt,
		Source:              source,
		Modifiers:           mods,
	}
}

// Checkout places a public order with the POS, takes payment and records the
// sold lines. A repeated idempotency key returns the first result.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error) {
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.PaymentToken = strings.TrimSpace(req.PaymentToken)
	if err := validate.Struct(req); err != nil {
		return domain.CheckoutResponse{}, err
	}

	if existing, err := s.repo.FindCheckoutByIdempotency(ctx, req.IdempotencyKey); err == nil {
		return toCheckoutResponse(*existing, true), nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.CheckoutResponse{}, err
	}

	orderLines, itemCount, err := s.priceCart(ctx, req.CartItems)
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	order, err := s.provider.CreateOrder(ctx, catalog.OrderRequest{
		IdempotencyKey: req.IdempotencyKey,
		CustomerName:   req.CustomerName,
		Lines:          orderLines,
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}
	payment, err := s.provider.CreatePayment(ctx, catalog.PaymentRequest{
		IdempotencyKey: req.IdempotencyKey,
		OrderID:        order.ID,
		SourceToken:    req.PaymentToken,
		AmountCents:    order.TotalCents,
	})
	if err != nil {
		return domain.CheckoutResponse{}, err
	}

	now := s.now()
	lines := make([]domain.SalesLine, 0, len(orderLines))
	for _, ol := range orderLines {
		lines = append(lines, salesLineFromOrder(order.ID, ol, now, domain.SalesSourceCheckout))
	}
	record := domain.CheckoutRecord{
		IdempotencyKey: req.IdempotencyKey,
		OrderID:        order.ID,
		PaymentID:      payment.ID,
		Status:         payment.Status,
		TotalCents:     order.TotalCents,
		ItemCount:      itemCount,
		CreatedAt:      now,
	}
	if err := s.repo.CreateCheckout(ctx, record, lines); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Lost a race with the same key; the provider calls were idempotent.
			if existing, findErr := s.repo.FindCheckoutByIdempotency(ctx, req.IdempotencyKey); findErr == nil {
				return toCheckoutResponse(*existing, true), nil
			}
		}
		return domain.CheckoutResponse{}, err
	}

	s.logAudit(ctx, "checkout", "order", order.ID, fmt.Sprintf("total=%d,items=%d,payment=%s", record.TotalCents, itemCount, payment.ID))
	return toCheckoutResponse(record, false), nil
}

// priceCart checks every cart entry against active catalog records and turns
// it into an order line priced from the mapping store.
func (s *Service) priceCart(ctx context.Context, cart []domain.CartItem) ([]catalog.OrderLine, int, error) {
	lines := make([]catalog.OrderLine, 0, len(cart))
	itemCount := 0
	for i, item := range cart {
		sellable, err := s.repo.GetSellable(ctx, strings.TrimSpace(item.SellableID))
		if errors.Is(err, store.ErrNotFound) || (err == nil && !sellable.Active) {
			return nil, 0, invalid("cart_items[%d]: %s is not on the menu", i, item.SellableID)
		}
		if err != nil {
			return nil, 0, err
		}

		unitCents := sellable.PriceCents
		mods := make([]catalog.OrderLineModifier, 0, len(item.Modifiers))
		for j, m := range item.Modifiers {
			option, err := s.repo.GetModifierOption(ctx, strings.TrimSpace(m.ModifierOptionID))
			if errors.Is(err, store.ErrNotFound) || (err == nil && !option.Active) {
				return nil, 0, invalid("cart_items[%d].modifiers[%d]: %s is not available", i, j, m.ModifierOptionID)
			}
			if err != nil {
				return nil, 0, err
			}
			unitCents += option.PriceCents * int64(m.Qty)
			mods = append(mods, catalog.OrderLineModifier{
				CatalogObjectID: option.ExternalModifierID,
				Name:            option.Name,
				Quantity:        float64(m.Qty),
			})
		}

		lines = append(lines, catalog.OrderLine{
			CatalogObjectID: sellable.ExternalVariationID,
			Name:            sellable.Name,
			Quantity:        float64(item.Qty),
			GrossCents:      unitCents * int64(item.Qty),
			Modifiers:       mods,
		})
		itemCount += item.Qty
	}
	return lines, itemCount, nil
}

func toCheckoutResponse(record domain.CheckoutRecord, duplicate bool) domain.CheckoutResponse {
	return domain.CheckoutResponse{
		OrderID:    record.OrderID,
		PaymentID:  record.PaymentID,
		Status:     record.Status,
		TotalCents: record.TotalCents,
		ItemCount:  record.ItemCount,
		Duplicate:  duplicate,
		CreatedAt:  record.CreatedAt.Format(time.RFC3339),
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/units"
	"cafecogs/backend/internal/validate"
	"cafecogs/backend/internal/xid"
)

func (s *Service) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	return s.repo.ListInventoryItems(ctx)
}

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryItemCreateRequest) (domain.InventoryItem, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.InventoryItem{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return domain.InventoryItem{}, err
	}
	if !units.Known(req.Unit) {
		return domain.InventoryItem{}, invalid("unit: unknown unit %q", req.Unit)
	}

	now := s.now()
	created, err := s.repo.CreateInventoryItem(ctx, domain.InventoryItem{
		ID:           xid.New("inv"),
		Name:         req.Name,
		Unit:         units.Normalize(req.Unit),
		UnitCost:     req.UnitCost,
		CurrentStock: req.CurrentStock,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return domain.InventoryItem{}, err
	}
	s.logAudit(ctx, "inventory_item_create", "inventory_item", created.ID, fmt.Sprintf("name=%s,unit=%s,unit_cost=%s", created.Name, created.Unit, created.UnitCost.String()))
	return *created, nil
}

// UpdateInventoryItem edits an item in place. Setting current_stock here is a
// correction with no movement trail; counted differences belong in an
// adjustment movement instead.
func (s *Service) UpdateInventoryItem(ctx context.Context, id string, req domain.InventoryItemUpdateRequest) (domain.InventoryItem, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.InventoryItem{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.InventoryItem{}, err
	}

	existing, err := s.repo.GetInventoryItem(ctx, id)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.InventoryItem{}, invalid("name must not be blank")
		}
		updated.Name = name
	}
	if req.Unit != nil {
		if !units.Known(*req.Unit) {
			return domain.InventoryItem{}, invalid("unit: unknown unit %q", *req.Unit)
		}
		updated.Unit = units.Normalize(*req.Unit)
	}
	if req.UnitCost != nil {
		updated.UnitCost = *req.UnitCost
	}
	if req.CurrentStock != nil {
		updated.CurrentStock = *req.CurrentStock
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	updated.UpdatedAt = s.now()

	saved, err := s.repo.UpdateInventoryItem(ctx, updated)
	if err != nil {
		return domain.InventoryItem{}, err
	}
	s.logAudit(ctx, "inventory_item_update", "inventory_item", saved.ID, fmt.Sprintf("unit_cost=%s,stock=%.4f,active=%t", saved.UnitCost.String(), saved.CurrentStock, saved.Active))
	return *saved, nil
}

func (s *Service) ListSnapshots(ctx context.Context, limit int) ([]domain.InventorySnapshot, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return s.repo.ListSnapshots(ctx, limit)
}

// CreateSnapshot freezes current stock and unit cost of every active item.
func (s *Service) CreateSnapshot(ctx context.Context, req domain.SnapshotCreateRequest) (domain.InventorySnapshot, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.InventorySnapshot{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.InventorySnapshot{}, err
	}

	snap, err := s.repo.CaptureSnapshot(ctx, domain.InventorySnapshot{
		ID:      xid.New("snp"),
		TakenAt: s.now(),
		Source:  domain.SnapshotSourceManual,
		Notes:   strings.TrimSpace(req.Notes),
	})
	if err != nil {
		return domain.InventorySnapshot{}, err
	}
	s.logAudit(ctx, "snapshot_create", "inventory_snapshot", snap.ID, fmt.Sprintf("lines=%d,total=%s", len(snap.Lines), snap.TotalValue.StringFixed(2)))
	return *snap, nil
}

func (s *Service) ListStockMovements(ctx context.Context, movementType string, from *time.Time, to *time.Time, limit int) ([]domain.StockMovement, error) {
	movementType = strings.ToLower(strings.TrimSpace(movementType))
	switch movementType {
	case "", domain.MovementWaste, domain.MovementAdjustment, domain.MovementReceipt:
	default:
		return nil, invalid("type must be waste, adjustment or receipt")
	}
	if limit < 1 || limit > 500 {
		limit = 200
	}
	return s.repo.ListStockMovements(ctx, store.MovementFilter{Type: movementType, From: from, To: to, Limit: limit})
}

// CreateStockMovement records waste or a manual adjustment and applies it to
// stock. Waste always leaves inventory; adjustments say which way they go.
func (s *Service) CreateStockMovement(ctx context.Context, req domain.StockMovementCreateRequest) (domain.StockMovement, error) {
	actor, err := requireStaff(ctx)
	if err != nil {
		return domain.StockMovement{}, err
	}
	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	req.Direction = strings.ToLower(strings.TrimSpace(req.Direction))
	req.Reason = strings.TrimSpace(req.Reason)
	if err := validate.Struct(req); err != nil {
		return domain.StockMovement{}, err
	}

	direction := domain.DirectionOut
	if req.Type == domain.MovementAdjustment {
		if req.Direction == "" {
			return domain.StockMovement{}, invalid("direction is required for adjustments")
		}
		direction = req.Direction
	} else if req.Direction == domain.DirectionIn {
		return domain.StockMovement{}, invalid("waste cannot add stock")
	}

	item, err := s.repo.GetInventoryItem(ctx, req.InventoryItemID)
	if err != nil {
		return domain.StockMovement{}, err
	}

	occurredAt := s.now()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}
	created, err := s.repo.CreateStockMovement(ctx, domain.StockMovement{
		ID:              xid.New("mov"),
		InventoryItemID: item.ID,
		Type:            req.Type,
		Direction:       direction,
		Quantity:        req.Quantity,
		UnitCost:        item.UnitCost,
		Reason:          req.Reason,
		OccurredAt:      occurredAt,
		RecordedBy:      actor.Username,
	})
	if errors.Is(err, store.ErrInvalidInput) {
		return domain.StockMovement{}, invalid("movement would take %s below zero stock", item.Name)
	}
	if err != nil {
		return domain.StockMovement{}, err
	}
	s.logAudit(ctx, "stock_movement_create", "stock_movement", created.ID, fmt.Sprintf("item=%s,type=%s,direction=%s,qty=%.4f", created.InventoryItemID, created.Type, created.Direction, created.Quantity))
	return *created, nil
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Supplier{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validate.Struct(req); err != nil {
		return domain.Supplier{}, err
	}

	saved, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		ID:        xid.New("sup"),
		Name:      req.Name,
		Phone:     req.Phone,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.Supplier{}, err
	}
	s.logAudit(ctx, "supplier_create", "supplier", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) CreatePurchaseOrder(ctx context.Context, req domain.PurchaseOrderCreateRequest) (domain.PurchaseOrder, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.PurchaseOrder{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.PurchaseOrder{}, err
	}
	if _, err := s.repo.GetSupplier(ctx, req.SupplierID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PurchaseOrder{}, invalid("unknown supplier %s", req.SupplierID)
		}
		return domain.PurchaseOrder{}, err
	}
	for i, line := range req.Lines {
		if _, err := s.repo.GetInventoryItem(ctx, line.InventoryItemID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return domain.PurchaseOrder{}, invalid("lines[%d]: unknown inventory item %s", i, line.InventoryItemID)
			}
			return domain.PurchaseOrder{}, err
		}
	}

	saved, err := s.repo.CreatePurchaseOrder(ctx, domain.PurchaseOrder{
		ID:         xid.New("po"),
		SupplierID: req.SupplierID,
		Status:     domain.POStatusDraft,
		CreatedAt:  s.now(),
		Lines:      req.Lines,
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	s.logAudit(ctx, "purchase_order_create", "purchase_order", saved.ID, fmt.Sprintf("supplier=%s,lines=%d", saved.SupplierID, len(saved.Lines)))
	return *saved, nil
}

func (s *Service) ListPurchaseOrders(ctx context.Context, status string) ([]domain.PurchaseOrder, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", domain.POStatusDraft, domain.POStatusReceived:
	default:
		return nil, invalid("status must be draft or received")
	}
	return s.repo.ListPurchaseOrders(ctx, store.PurchaseOrderFilter{Status: status, Limit: 200})
}

// ReceivePurchaseOrder books the order into stock. Each line raises stock and
// moves the item's unit cost to the weighted average of old and incoming.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, id string, req domain.PurchaseOrderReceiveRequest) (domain.PurchaseOrder, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.PurchaseOrder{}, err
	}
	receivedBy := defaultString(strings.TrimSpace(req.ReceivedBy), actor.Username)
	receivedAt := s.now()
	if req.ReceivedAt != nil {
		receivedAt = req.ReceivedAt.UTC()
	}

	po, err := s.repo.GetPurchaseOrder(ctx, id)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if po.Status == domain.POStatusReceived {
		return domain.PurchaseOrder{}, fmt.Errorf("%w: purchase order %s already received", store.ErrConflict, po.ID)
	}

	received, err := s.repo.ReceivePurchaseOrder(ctx, po.ID, receivedBy, receivedAt)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	s.logAudit(ctx, "purchase_order_receive", "purchase_order", received.ID, fmt.Sprintf("received_by=%s,lines=%d", receivedBy, len(received.Lines)))
	return *received, nil
}

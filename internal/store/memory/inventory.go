package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/xid"
)

func (s *Store) ListInventoryItems(_ context.Context) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.InventoryItem) int {
		if a.Name == b.Name {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return items, nil
}

func (s *Store) GetInventoryItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) CreateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Name == "" || item.Unit == "" || item.UnitCost.IsNegative() || item.CurrentStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("inv")
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	s.items[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) UpdateInventoryItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[item.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if item.Name == "" || item.Unit == "" || item.UnitCost.IsNegative() || item.CurrentStock < 0 {
		return nil, store.ErrInvalidInput
	}
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = time.Now().UTC()
	s.items[item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) CaptureSnapshot(_ context.Context, snapshot domain.InventorySnapshot) (*domain.InventorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot.ID == "" {
		snapshot.ID = xid.New("snp")
	}
	if snapshot.TakenAt.IsZero() {
		snapshot.TakenAt = time.Now().UTC()
	}
	if snapshot.Source == "" {
		snapshot.Source = domain.SnapshotSourceManual
	}
	snapshot.Lines = make([]domain.InventorySnapshotLine, 0, len(s.items))
	snapshot.TotalValue = decimal.Zero
	for _, item := range s.items {
		if !item.Active {
			continue
		}
		snapshot.Lines = append(snapshot.Lines, domain.InventorySnapshotLine{
			InventoryItemID: item.ID,
			Quantity:        item.CurrentStock,
			UnitCost:        item.UnitCost,
		})
		snapshot.TotalValue = snapshot.TotalValue.Add(item.Value())
	}
	slices.SortFunc(snapshot.Lines, func(a, b domain.InventorySnapshotLine) int {
		return strings.Compare(a.InventoryItemID, b.InventoryItemID)
	})

	s.snapshots = append(s.snapshots, cloneSnapshot(snapshot))
	out := cloneSnapshot(snapshot)
	return &out, nil
}

func (s *Store) ListSnapshots(_ context.Context, limit int) ([]domain.InventorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventorySnapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		result = append(result, cloneSnapshot(snap))
	}
	slices.SortFunc(result, func(a, b domain.InventorySnapshot) int {
		return b.TakenAt.Compare(a.TakenAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) LatestSnapshotAtOrBefore(_ context.Context, at time.Time) (*domain.InventorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestSnapshot(func(taken time.Time) bool { return !taken.After(at) })
}

func (s *Store) LatestSnapshotWithin(_ context.Context, after time.Time, upTo time.Time) (*domain.InventorySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestSnapshot(func(taken time.Time) bool { return taken.After(after) && !taken.After(upTo) })
}

func (s *Store) latestSnapshot(match func(time.Time) bool) (*domain.InventorySnapshot, error) {
	var best *domain.InventorySnapshot
	for i := range s.snapshots {
		snap := &s.snapshots[i]
		if !match(snap.TakenAt) {
			continue
		}
		// Later entries win ties; they were captured later.
		if best == nil || !snap.TakenAt.Before(best.TakenAt) {
			best = snap
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	out := cloneSnapshot(*best)
	return &out, nil
}

func (s *Store) CreateStockMovement(_ context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if movement.Quantity <= 0 {
		return nil, store.ErrInvalidInput
	}
	item, ok := s.items[movement.InventoryItemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	delta := movement.Quantity
	if movement.Direction == domain.DirectionOut {
		delta = -delta
	}
	if item.CurrentStock+delta < 0 {
		return nil, store.ErrInvalidInput
	}
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.OccurredAt.IsZero() {
		movement.OccurredAt = time.Now().UTC()
	}
	if movement.UnitCost.IsZero() {
		movement.UnitCost = item.UnitCost
	}

	item.CurrentStock += delta
	item.UpdatedAt = time.Now().UTC()
	s.items[item.ID] = item
	s.movements = append(s.movements, movement)
	created := movement
	return &created, nil
}

func (s *Store) ListStockMovements(_ context.Context, filter store.MovementFilter) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockMovement, 0, len(s.movements))
	for _, m := range s.movements {
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		if filter.From != nil && m.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.OccurredAt.After(*filter.To) {
			continue
		}
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.StockMovement) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	supplier.Name = strings.TrimSpace(supplier.Name)
	if supplier.Name == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliers[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliers))
	for _, supplier := range s.suppliers {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(a.Name, b.Name)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(_ context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if po.SupplierID == "" || len(po.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, ok := s.suppliers[po.SupplierID]; !ok {
		return nil, store.ErrNotFound
	}
	for _, line := range po.Lines {
		if line.Quantity <= 0 || line.UnitCost.IsNegative() {
			return nil, store.ErrInvalidInput
		}
		if _, ok := s.items[line.InventoryItemID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	if po.ID == "" {
		po.ID = xid.New("po")
	}
	if po.CreatedAt.IsZero() {
		po.CreatedAt = time.Now().UTC()
	}
	po.Status = domain.POStatusDraft
	po.ReceivedAt = nil
	po.ReceivedBy = ""

	s.purchaseOrders[po.ID] = clonePurchaseOrder(po)
	saved := clonePurchaseOrder(po)
	return &saved, nil
}

func (s *Store) GetPurchaseOrder(_ context.Context, id string) (*domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	po, ok := s.purchaseOrders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := clonePurchaseOrder(po)
	return &out, nil
}

func (s *Store) ListPurchaseOrders(_ context.Context, filter store.PurchaseOrderFilter) ([]domain.PurchaseOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := strings.ToLower(strings.TrimSpace(filter.Status))
	byReceipt := filter.ReceivedFrom != nil || filter.ReceivedTo != nil
	result := make([]domain.PurchaseOrder, 0, len(s.purchaseOrders))
	for _, po := range s.purchaseOrders {
		if status != "" && po.Status != status {
			continue
		}
		if byReceipt {
			if po.ReceivedAt == nil {
				continue
			}
			if filter.ReceivedFrom != nil && po.ReceivedAt.Before(*filter.ReceivedFrom) {
				continue
			}
			if filter.ReceivedTo != nil && po.ReceivedAt.After(*filter.ReceivedTo) {
				continue
			}
		}
		result = append(result, clonePurchaseOrder(po))
	}
	slices.SortFunc(result, func(a, b domain.PurchaseOrder) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) ReceivePurchaseOrder(_ context.Context, id string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	po, ok := s.purchaseOrders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if po.Status != domain.POStatusDraft {
		return nil, store.ErrConflict
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	receivedBy = strings.TrimSpace(receivedBy)
	if receivedBy == "" {
		receivedBy = "system"
	}

	// Validate every line before touching stock so a bad line changes nothing.
	for _, line := range po.Lines {
		if _, ok := s.items[line.InventoryItemID]; !ok {
			return nil, store.ErrNotFound
		}
	}
	for _, line := range po.Lines {
		item := s.items[line.InventoryItemID]
		item.UnitCost = domain.WeightedUnitCost(item.UnitCost, item.CurrentStock, line.UnitCost, line.Quantity)
		item.CurrentStock += line.Quantity
		item.UpdatedAt = receivedAt
		s.items[item.ID] = item
		s.movements = append(s.movements, domain.StockMovement{
			ID:              xid.New("mov"),
			InventoryItemID: item.ID,
			Type:            domain.MovementReceipt,
			Direction:       domain.DirectionIn,
			Quantity:        line.Quantity,
			UnitCost:        line.UnitCost,
			Reason:          "purchase order " + po.ID,
			OccurredAt:      receivedAt,
			RecordedBy:      receivedBy,
		})
	}

	po.Status = domain.POStatusReceived
	po.ReceivedBy = receivedBy
	po.ReceivedAt = &receivedAt
	s.purchaseOrders[id] = po
	updated := clonePurchaseOrder(po)
	return &updated, nil
}

func cloneSnapshot(src domain.InventorySnapshot) domain.InventorySnapshot {
	out := src
	out.Lines = append([]domain.InventorySnapshotLine(nil), src.Lines...)
	return out
}

func clonePurchaseOrder(src domain.PurchaseOrder) domain.PurchaseOrder {
	out := src
	out.ReceivedAt = cloneTime(src.ReceivedAt)
	out.Lines = append([]domain.PurchaseOrderLine(nil), src.Lines...)
	return out
}

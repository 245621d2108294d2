package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/xid"
)

const itemColumns = `id, name, unit, unit_cost, current_stock, active, created_at, updated_at`

func scanItem(row rowScanner) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	if err := row.Scan(&item.ID, &item.Name, &item.Unit, &item.UnitCost, &item.CurrentStock, &item.Active, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.CreatedAt, item.UpdatedAt = item.CreatedAt.UTC(), item.UpdatedAt.UTC()
	return &item, nil
}

func (s *Store) ListInventoryItems(ctx context.Context) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM inventory_items
		ORDER BY name, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id))
	return item, notFound(err)
}

func (s *Store) CreateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_items (id, name, unit, unit_cost, current_stock, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, item.ID, item.Name, item.Unit, item.UnitCost, item.CurrentStock, item.Active, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &item, nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if item.Name == "" || item.Unit == "" || item.UnitCost.IsNegative() || item.CurrentStock < 0 {
		return nil, store.ErrInvalidInput
	}
	updated, err := scanItem(s.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET name = $2, unit = $3, unit_cost = $4, current_stock = $5, active = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.Name, item.Unit, item.UnitCost, item.CurrentStock, item.Active))
	return updated, notFound(mapWriteErr(err))
}

func (s *Store) CaptureSnapshot(ctx context.Context, snapshot domain.InventorySnapshot) (*domain.InventorySnapshot, error) {
	if snapshot.ID == "" {
		snapshot.ID = xid.New("snp")
	}
	if snapshot.TakenAt.IsZero() {
		snapshot.TakenAt = time.Now().UTC()
	}
	if snapshot.Source == "" {
		snapshot.Source = domain.SnapshotSourceManual
	}

	// Repeatable read gives every line the same view of stock.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, current_stock, unit_cost
		FROM inventory_items
		WHERE active = true
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	snapshot.Lines = make([]domain.InventorySnapshotLine, 0, 64)
	snapshot.TotalValue = decimal.Zero
	for rows.Next() {
		var line domain.InventorySnapshotLine
		if err := rows.Scan(&line.InventoryItemID, &line.Quantity, &line.UnitCost); err != nil {
			rows.Close()
			return nil, err
		}
		snapshot.Lines = append(snapshot.Lines, line)
		snapshot.TotalValue = snapshot.TotalValue.Add(line.UnitCost.Mul(decimal.NewFromFloat(line.Quantity)))
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_snapshots (id, taken_at, source, notes, total_value)
		VALUES ($1,$2,$3,$4,$5)
	`, snapshot.ID, snapshot.TakenAt.UTC(), snapshot.Source, snapshot.Notes, snapshot.TotalValue); err != nil {
		return nil, mapWriteErr(err)
	}
	for _, line := range snapshot.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_snapshot_lines (snapshot_id, inventory_item_id, quantity, unit_cost)
			VALUES ($1,$2,$3,$4)
		`, snapshot.ID, line.InventoryItemID, line.Quantity, line.UnitCost); err != nil {
			return nil, mapWriteErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]domain.InventorySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, taken_at, source, notes, total_value
		FROM inventory_snapshots
		ORDER BY taken_at DESC, id DESC
		LIMIT NULLIF($1::int, 0)
	`, max(limit, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]domain.InventorySnapshot, 0, 16)
	ids := make([]string, 0, 16)
	for rows.Next() {
		var snap domain.InventorySnapshot
		if err := rows.Scan(&snap.ID, &snap.TakenAt, &snap.Source, &snap.Notes, &snap.TotalValue); err != nil {
			return nil, err
		}
		snap.TakenAt = snap.TakenAt.UTC()
		snap.Lines = []domain.InventorySnapshotLine{}
		snapshots = append(snapshots, snap)
		ids = append(ids, snap.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return snapshots, nil
	}

	lines, err := s.snapshotLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range snapshots {
		if found := lines[snapshots[i].ID]; found != nil {
			snapshots[i].Lines = found
		}
	}
	return snapshots, nil
}

func (s *Store) snapshotLines(ctx context.Context, snapshotIDs []string) (map[string][]domain.InventorySnapshotLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, inventory_item_id, quantity, unit_cost
		FROM inventory_snapshot_lines
		WHERE snapshot_id = ANY($1)
		ORDER BY snapshot_id, inventory_item_id
	`, snapshotIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.InventorySnapshotLine, len(snapshotIDs))
	for rows.Next() {
		var (
			snapshotID string
			line       domain.InventorySnapshotLine
		)
		if err := rows.Scan(&snapshotID, &line.InventoryItemID, &line.Quantity, &line.UnitCost); err != nil {
			return nil, err
		}
		out[snapshotID] = append(out[snapshotID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) LatestSnapshotAtOrBefore(ctx context.Context, at time.Time) (*domain.InventorySnapshot, error) {
	return s.latestSnapshot(ctx, `taken_at <= $1`, at.UTC())
}

func (s *Store) LatestSnapshotWithin(ctx context.Context, after time.Time, upTo time.Time) (*domain.InventorySnapshot, error) {
	return s.latestSnapshot(ctx, `taken_at > $1 AND taken_at <= $2`, after.UTC(), upTo.UTC())
}

func (s *Store) latestSnapshot(ctx context.Context, where string, args ...any) (*domain.InventorySnapshot, error) {
	var snap domain.InventorySnapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, taken_at, source, notes, total_value
		FROM inventory_snapshots
		WHERE `+where+`
		ORDER BY taken_at DESC, id DESC
		LIMIT 1
	`, args...).Scan(&snap.ID, &snap.TakenAt, &snap.Source, &snap.Notes, &snap.TotalValue)
	if err != nil {
		return nil, notFound(err)
	}
	snap.TakenAt = snap.TakenAt.UTC()

	lines, err := s.snapshotLines(ctx, []string{snap.ID})
	if err != nil {
		return nil, err
	}
	snap.Lines = lines[snap.ID]
	if snap.Lines == nil {
		snap.Lines = []domain.InventorySnapshotLine{}
	}
	return &snap, nil
}

func (s *Store) CreateStockMovement(ctx context.Context, movement domain.StockMovement) (*domain.StockMovement, error) {
	if movement.Quantity <= 0 {
		return nil, store.ErrInvalidInput
	}
	if movement.ID == "" {
		movement.ID = xid.New("mov")
	}
	if movement.OccurredAt.IsZero() {
		movement.OccurredAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var (
		stock    float64
		unitCost decimal.Decimal
	)
	err = tx.QueryRowContext(ctx, `
		SELECT current_stock, unit_cost
		FROM inventory_items
		WHERE id = $1
		FOR UPDATE
	`, movement.InventoryItemID).Scan(&stock, &unitCost)
	if err != nil {
		return nil, notFound(err)
	}
	delta := movement.Quantity
	if movement.Direction == domain.DirectionOut {
		delta = -delta
	}
	if stock+delta < 0 {
		return nil, store.ErrInvalidInput
	}
	if movement.UnitCost.IsZero() {
		movement.UnitCost = unitCost
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE inventory_items
		SET current_stock = current_stock + $2, updated_at = now()
		WHERE id = $1
	`, movement.InventoryItemID, delta); err != nil {
		return nil, mapWriteErr(err)
	}
	if err := insertMovement(ctx, tx, movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &movement, nil
}

func insertMovement(ctx context.Context, tx *sql.Tx, m domain.StockMovement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (
			id, inventory_item_id, type, direction, quantity, unit_cost, reason, occurred_at, recorded_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, m.ID, m.InventoryItemID, m.Type, m.Direction, m.Quantity, m.UnitCost, m.Reason, m.OccurredAt.UTC(), m.RecordedBy)
	return mapWriteErr(err)
}

func (s *Store) ListStockMovements(ctx context.Context, filter store.MovementFilter) ([]domain.StockMovement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inventory_item_id, type, direction, quantity, unit_cost, reason, occurred_at, recorded_by
		FROM stock_movements
		WHERE ($1 = '' OR type = $1)
			AND ($2::timestamptz IS NULL OR occurred_at >= $2)
			AND ($3::timestamptz IS NULL OR occurred_at <= $3)
		ORDER BY occurred_at DESC, id DESC
		LIMIT NULLIF($4::int, 0)
	`, filter.Type, nullTime(filter.From), nullTime(filter.To), max(filter.Limit, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, 64)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.InventoryItemID, &m.Type, &m.Direction, &m.Quantity, &m.UnitCost, &m.Reason, &m.OccurredAt, &m.RecordedBy); err != nil {
			return nil, err
		}
		m.OccurredAt = m.OccurredAt.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, created_at)
		VALUES ($1,$2,$3,$4)
	`, supplier.ID, supplier.Name, supplier.Phone, supplier.CreatedAt)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &supplier, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone, created_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&supplier.ID, &supplier.Name, &supplier.Phone, &supplier.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	supplier.CreatedAt = supplier.CreatedAt.UTC()
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, phone, created_at
		FROM suppliers
		ORDER BY created_at, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.Name, &supplier.Phone, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		supplier.CreatedAt = supplier.CreatedAt.UTC()
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreatePurchaseOrder(ctx context.Context, po domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	if po.SupplierID == "" || len(po.Lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	for _, line := range po.Lines {
		if line.Quantity <= 0 || line.UnitCost.IsNegative() {
			return nil, store.ErrInvalidInput
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, supplier_id, status, created_at)
		VALUES ($1,$2,$3,$4)
	`, po.ID, po.SupplierID, po.Status, po.CreatedAt); err != nil {
		return nil, mapWriteErr(err)
	}
	for _, line := range po.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO purchase_order_lines (purchase_order_id, inventory_item_id, quantity, unit_cost)
			VALUES ($1,$2,$3,$4)
		`, po.ID, line.InventoryItemID, line.Quantity, line.UnitCost); err != nil {
			return nil, mapWriteErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &po, nil
}

const purchaseOrderColumns = `id, supplier_id, status, created_at, received_at, COALESCE(received_by, '')`

func scanPurchaseOrder(row rowScanner) (*domain.PurchaseOrder, error) {
	var (
		po         domain.PurchaseOrder
		receivedAt sql.NullTime
	)
	if err := row.Scan(&po.ID, &po.SupplierID, &po.Status, &po.CreatedAt, &receivedAt, &po.ReceivedBy); err != nil {
		return nil, err
	}
	po.CreatedAt = po.CreatedAt.UTC()
	po.ReceivedAt = timePtr(receivedAt)
	po.Lines = []domain.PurchaseOrderLine{}
	return &po, nil
}

func (s *Store) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	po, err := scanPurchaseOrder(s.db.QueryRowContext(ctx, `SELECT `+purchaseOrderColumns+` FROM purchase_orders WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	lines, err := s.purchaseOrderLines(ctx, []string{po.ID})
	if err != nil {
		return nil, err
	}
	if found := lines[po.ID]; found != nil {
		po.Lines = found
	}
	return po, nil
}

func (s *Store) ListPurchaseOrders(ctx context.Context, filter store.PurchaseOrderFilter) ([]domain.PurchaseOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+purchaseOrderColumns+`
		FROM purchase_orders
		WHERE ($1 = '' OR status = $1)
			AND ($2::timestamptz IS NULL OR received_at >= $2)
			AND ($3::timestamptz IS NULL OR received_at <= $3)
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($4::int, 0)
	`, strings.ToLower(strings.TrimSpace(filter.Status)), nullTime(filter.ReceivedFrom), nullTime(filter.ReceivedTo), max(filter.Limit, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.PurchaseOrder, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *po)
		ids = append(ids, po.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return orders, nil
	}

	lines, err := s.purchaseOrderLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if found := lines[orders[i].ID]; found != nil {
			orders[i].Lines = found
		}
	}
	return orders, nil
}

func (s *Store) purchaseOrderLines(ctx context.Context, ids []string) (map[string][]domain.PurchaseOrderLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT purchase_order_id, inventory_item_id, quantity, unit_cost
		FROM purchase_order_lines
		WHERE purchase_order_id = ANY($1)
		ORDER BY id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.PurchaseOrderLine, len(ids))
	for rows.Next() {
		var (
			poID string
			line domain.PurchaseOrderLine
		)
		if err := rows.Scan(&poID, &line.InventoryItemID, &line.Quantity, &line.UnitCost); err != nil {
			return nil, err
		}
		out[poID] = append(out[poID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) ReceivePurchaseOrder(ctx context.Context, id string, receivedBy string, receivedAt time.Time) (*domain.PurchaseOrder, error) {
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	receivedAt = receivedAt.UTC()
	receivedBy = strings.TrimSpace(receivedBy)
	if receivedBy == "" {
		receivedBy = "system"
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	po, err := scanPurchaseOrder(tx.QueryRowContext(ctx, `SELECT `+purchaseOrderColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err)
	}
	if po.Status != domain.POStatusDraft {
		return nil, fmt.Errorf("%w: purchase order %s is %s", store.ErrConflict, po.ID, po.Status)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT inventory_item_id, quantity, unit_cost
		FROM purchase_order_lines
		WHERE purchase_order_id = $1
		ORDER BY id
	`, po.ID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var line domain.PurchaseOrderLine
		if err := rows.Scan(&line.InventoryItemID, &line.Quantity, &line.UnitCost); err != nil {
			rows.Close()
			return nil, err
		}
		po.Lines = append(po.Lines, line)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, line := range po.Lines {
		var (
			stock    float64
			unitCost decimal.Decimal
		)
		err := tx.QueryRowContext(ctx, `
			SELECT current_stock, unit_cost
			FROM inventory_items
			WHERE id = $1
			FOR UPDATE
		`, line.InventoryItemID).Scan(&stock, &unitCost)
		if err != nil {
			return nil, notFound(err)
		}

		newCost := domain.WeightedUnitCost(unitCost, stock, line.UnitCost, line.Quantity)
		if _, err := tx.ExecContext(ctx, `
			UPDATE inventory_items
			SET current_stock = current_stock + $2, unit_cost = $3, updated_at = $4
			WHERE id = $1
		`, line.InventoryItemID, line.Quantity, newCost, receivedAt); err != nil {
			return nil, err
		}
		if err := insertMovement(ctx, tx, domain.StockMovement{
			ID:              xid.New("mov"),
			InventoryItemID: line.InventoryItemID,
			Type:            domain.MovementReceipt,
			Direction:       domain.DirectionIn,
			Quantity:        line.Quantity,
			UnitCost:        line.UnitCost,
			Reason:          "purchase order " + po.ID,
			OccurredAt:      receivedAt,
			RecordedBy:      receivedBy,
		}); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = $2, received_at = $3, received_by = $4
		WHERE id = $1
	`, po.ID, domain.POStatusReceived, receivedAt, nullIfEmpty(receivedBy)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	po.Status = domain.POStatusReceived
	po.ReceivedAt = &receivedAt
	po.ReceivedBy = receivedBy
	return po, nil
}

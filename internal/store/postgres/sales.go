package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/xid"
)

func (s *Store) CreateSalesLines(ctx context.Context, lines []domain.SalesLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := insertSalesLines(ctx, tx, lines); err != nil {
		return err
	}
	return tx.Commit()
}

func insertSalesLines(ctx context.Context, tx *sql.Tx, lines []domain.SalesLine) error {
	for _, line := range lines {
		if line.OrderID == "" || line.ExternalVariationID == "" || line.Quantity <= 0 || line.SoldAt.IsZero() {
			return store.ErrInvalidInput
		}
		if line.ID == "" {
			line.ID = xid.New("sl")
		}
		if line.Modifiers == nil {
			line.Modifiers = []domain.SalesLineModifier{}
		}
		modifiers, err := marshalJSON(line.Modifiers)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sales_lines (
				id, order_id, external_variation_id, name, quantity, gross_cents, sold_at, source, modifiers
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, line.ID, line.OrderID, line.ExternalVariationID, line.Name, line.Quantity, line.GrossCents,
			line.SoldAt.UTC(), line.Source, modifiers); err != nil {
			return mapWriteErr(err)
		}
	}
	return nil
}

func (s *Store) ListSalesLines(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.SalesLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, external_variation_id, name, quantity, gross_cents, sold_at, source, modifiers
		FROM sales_lines
		WHERE sold_at >= $1 AND sold_at <= $2
		ORDER BY sold_at, order_id, id
		LIMIT NULLIF($3::int, 0)
	`, from.UTC(), to.UTC(), max(limit, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.SalesLine, 0, 256)
	for rows.Next() {
		var (
			line      domain.SalesLine
			modifiers []byte
		)
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ExternalVariationID, &line.Name, &line.Quantity,
			&line.GrossCents, &line.SoldAt, &line.Source, &modifiers); err != nil {
			return nil, err
		}
		line.SoldAt = line.SoldAt.UTC()
		if err := unmarshalJSON(modifiers, &line.Modifiers); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) HasSalesForOrder(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM sales_lines WHERE order_id = $1)`, orderID).Scan(&exists)
	return exists, err
}

func (s *Store) FindCheckoutByIdempotency(ctx context.Context, key string) (*domain.CheckoutRecord, error) {
	var record domain.CheckoutRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT idempotency_key, order_id, payment_id, status, total_cents, item_count, created_at
		FROM checkouts
		WHERE idempotency_key = $1
	`, key).Scan(&record.IdempotencyKey, &record.OrderID, &record.PaymentID, &record.Status,
		&record.TotalCents, &record.ItemCount, &record.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return &record, nil
}

func (s *Store) CreateCheckout(ctx context.Context, record domain.CheckoutRecord, lines []domain.SalesLine) error {
	if record.IdempotencyKey == "" || record.OrderID == "" {
		return store.ErrInvalidInput
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkouts (idempotency_key, order_id, payment_id, status, total_cents, item_count, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, record.IdempotencyKey, record.OrderID, record.PaymentID, record.Status, record.TotalCents, record.ItemCount, record.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	if err := insertSalesLines(ctx, tx, lines); err != nil {
		return err
	}
	return tx.Commit()
}

const periodColumns = `id, period_type, start_at, end_at, status, closed_at, notes, created_at`

func scanPeriod(row rowScanner) (*domain.COGSPeriod, error) {
	var (
		p        domain.COGSPeriod
		closedAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.PeriodType, &p.StartAt, &p.EndAt, &p.Status, &closedAt, &p.Notes, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.StartAt, p.EndAt, p.CreatedAt = p.StartAt.UTC(), p.EndAt.UTC(), p.CreatedAt.UTC()
	p.ClosedAt = timePtr(closedAt)
	return &p, nil
}

func (s *Store) CreatePeriod(ctx context.Context, period domain.COGSPeriod) (*domain.COGSPeriod, error) {
	if !period.StartAt.Before(period.EndAt) {
		return nil, store.ErrInvalidInput
	}
	if period.ID == "" {
		period.ID = xid.New("per")
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = time.Now().UTC()
	}

	p, err := scanPeriod(s.db.QueryRowContext(ctx, `
		INSERT INTO cogs_periods (id, period_type, start_at, end_at, status, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+periodColumns,
		period.ID, period.PeriodType, period.StartAt.UTC(), period.EndAt.UTC(), domain.PeriodStatusOpen, period.Notes, period.CreatedAt))
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return p, nil
}

func (s *Store) GetPeriod(ctx context.Context, id string) (*domain.COGSPeriod, error) {
	p, err := scanPeriod(s.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM cogs_periods WHERE id = $1`, id))
	return p, notFound(err)
}

func (s *Store) ListPeriods(ctx context.Context, status string, limit int) ([]domain.COGSPeriod, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+periodColumns+`
		FROM cogs_periods
		WHERE ($1 = '' OR status = $1)
		ORDER BY start_at DESC, id
		LIMIT NULLIF($2::int, 0)
	`, status, max(limit, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	periods := make([]domain.COGSPeriod, 0, 32)
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		periods = append(periods, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return periods, nil
}

func (s *Store) UpdatePeriodNotes(ctx context.Context, id string, notes string) (*domain.COGSPeriod, error) {
	p, err := scanPeriod(s.db.QueryRowContext(ctx, `
		UPDATE cogs_periods
		SET notes = $2
		WHERE id = $1
		RETURNING `+periodColumns,
		id, notes))
	return p, notFound(err)
}

func (s *Store) ClosePeriod(ctx context.Context, report domain.COGSReport, closedAt time.Time) (*domain.COGSPeriod, error) {
	if report.ID == "" {
		report.ID = xid.New("rpt")
	}
	closedAt = closedAt.UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = closedAt
	}
	periodic, err := marshalJSON(report.Periodic)
	if err != nil {
		return nil, err
	}
	var theoretical any
	if report.Theoretical != nil {
		raw, err := marshalJSON(report.Theoretical)
		if err != nil {
			return nil, err
		}
		theoretical = raw
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// The status guard makes the close a compare-and-set: a second closer
	// updates nothing.
	period, err := scanPeriod(tx.QueryRowContext(ctx, `
		UPDATE cogs_periods
		SET status = $2, closed_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+periodColumns,
		report.PeriodID, domain.PeriodStatusClosed, closedAt, domain.PeriodStatusOpen))
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM cogs_periods WHERE id = $1)`, report.PeriodID).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrPeriodClosed
	}
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO cogs_reports (id, period_id, periodic, theoretical, closed_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, report.ID, report.PeriodID, periodic, theoretical, report.ClosedBy, report.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrPeriodClosed
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return period, nil
}

func (s *Store) GetReport(ctx context.Context, periodID string) (*domain.COGSReport, error) {
	var (
		report      domain.COGSReport
		periodic    []byte
		theoretical []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, period_id, periodic, theoretical, closed_by, created_at
		FROM cogs_reports
		WHERE period_id = $1
	`, periodID).Scan(&report.ID, &report.PeriodID, &periodic, &theoretical, &report.ClosedBy, &report.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	report.CreatedAt = report.CreatedAt.UTC()
	if err := unmarshalJSON(periodic, &report.Periodic); err != nil {
		return nil, err
	}
	if len(theoretical) > 0 {
		report.Theoretical = &domain.TheoreticalResult{}
		if err := unmarshalJSON(theoretical, report.Theoretical); err != nil {
			return nil, err
		}
	}
	return &report, nil
}

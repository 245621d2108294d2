package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/xid"
)

func (s *Store) CreateSalesLines(_ context.Context, lines []domain.SalesLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prepared, err := prepareSalesLines(lines)
	if err != nil {
		return err
	}
	s.salesLines = append(s.salesLines, prepared...)
	return nil
}

func prepareSalesLines(lines []domain.SalesLine) ([]domain.SalesLine, error) {
	out := make([]domain.SalesLine, 0, len(lines))
	for _, line := range lines {
		if line.OrderID == "" || line.ExternalVariationID == "" || line.Quantity <= 0 || line.SoldAt.IsZero() {
			return nil, store.ErrInvalidInput
		}
		if line.ID == "" {
			line.ID = xid.New("sl")
		}
		line.Modifiers = append([]domain.SalesLineModifier(nil), line.Modifiers...)
		out = append(out, line)
	}
	return out, nil
}

func (s *Store) ListSalesLines(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.SalesLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SalesLine, 0, len(s.salesLines))
	for _, line := range s.salesLines {
		if line.SoldAt.Before(from) || line.SoldAt.After(to) {
			continue
		}
		line.Modifiers = append([]domain.SalesLineModifier(nil), line.Modifiers...)
		result = append(result, line)
	}
	slices.SortStableFunc(result, func(a, b domain.SalesLine) int {
		if c := a.SoldAt.Compare(b.SoldAt); c != 0 {
			return c
		}
		return strings.Compare(a.OrderID, b.OrderID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) HasSalesForOrder(_ context.Context, orderID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, line := range s.salesLines {
		if line.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) FindCheckoutByIdempotency(_ context.Context, key string) (*domain.CheckoutRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.checkoutsByKey[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &record, nil
}

func (s *Store) CreateCheckout(_ context.Context, record domain.CheckoutRecord, lines []domain.SalesLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record.IdempotencyKey == "" || record.OrderID == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.checkoutsByKey[record.IdempotencyKey]; exists {
		return store.ErrConflict
	}
	prepared, err := prepareSalesLines(lines)
	if err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.checkoutsByKey[record.IdempotencyKey] = record
	s.salesLines = append(s.salesLines, prepared...)
	return nil
}

func (s *Store) CreatePeriod(_ context.Context, period domain.COGSPeriod) (*domain.COGSPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !period.StartAt.Before(period.EndAt) {
		return nil, store.ErrInvalidInput
	}
	if period.ID == "" {
		period.ID = xid.New("per")
	}
	if period.CreatedAt.IsZero() {
		period.CreatedAt = time.Now().UTC()
	}
	period.Status = domain.PeriodStatusOpen
	period.ClosedAt = nil
	s.periods[period.ID] = period
	created := period
	return &created, nil
}

func (s *Store) GetPeriod(_ context.Context, id string) (*domain.COGSPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	period, ok := s.periods[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	period.ClosedAt = cloneTime(period.ClosedAt)
	return &period, nil
}

func (s *Store) ListPeriods(_ context.Context, status string, limit int) ([]domain.COGSPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.COGSPeriod, 0, len(s.periods))
	for _, period := range s.periods {
		if status != "" && period.Status != status {
			continue
		}
		period.ClosedAt = cloneTime(period.ClosedAt)
		result = append(result, period)
	}
	slices.SortFunc(result, func(a, b domain.COGSPeriod) int {
		if c := b.StartAt.Compare(a.StartAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpdatePeriodNotes(_ context.Context, id string, notes string) (*domain.COGSPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	period, ok := s.periods[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	period.Notes = notes
	s.periods[id] = period
	period.ClosedAt = cloneTime(period.ClosedAt)
	return &period, nil
}

func (s *Store) ClosePeriod(_ context.Context, report domain.COGSReport, closedAt time.Time) (*domain.COGSPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	period, ok := s.periods[report.PeriodID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if period.Status != domain.PeriodStatusOpen {
		return nil, store.ErrPeriodClosed
	}
	if _, exists := s.reports[report.PeriodID]; exists {
		return nil, store.ErrPeriodClosed
	}
	if report.ID == "" {
		report.ID = xid.New("rpt")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = closedAt
	}

	s.reports[report.PeriodID] = cloneReport(report)
	period.Status = domain.PeriodStatusClosed
	period.ClosedAt = &closedAt
	s.periods[period.ID] = period
	out := period
	out.ClosedAt = cloneTime(period.ClosedAt)
	return &out, nil
}

func (s *Store) GetReport(_ context.Context, periodID string) (*domain.COGSReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[periodID]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneReport(report)
	return &out, nil
}

func cloneReport(src domain.COGSReport) domain.COGSReport {
	out := src
	if src.Theoretical != nil {
		theo := *src.Theoretical
		theo.Lines = append([]domain.TheoreticalUsageLine(nil), src.Theoretical.Lines...)
		out.Theoretical = &theo
	}
	return out
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"cafecogs/backend/internal/cache"
	"cafecogs/backend/internal/cogs"
	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/export"
	"cafecogs/backend/internal/lock"
	"cafecogs/backend/internal/logger"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/validate"
	"cafecogs/backend/internal/xid"
)

type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Preview computes COGS for an arbitrary window against live inventory.
// Nothing is persisted; results are cached for a short while.
func (s *Service) Preview(ctx context.Context, start time.Time, end time.Time, includeTheoretical bool) (domain.COGSPreview, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.COGSPreview{}, err
	}
	if start.IsZero() || end.IsZero() {
		return domain.COGSPreview{}, invalid("start_at and end_at are required")
	}
	start, end = start.UTC(), end.UTC()
	if !start.Before(end) {
		return domain.COGSPreview{}, invalid("start_at must be before end_at")
	}

	log := logger.WithModule("service").WithField("funcName", "Preview")
	key := cache.PreviewKey(start, end, includeTheoretical)
	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		log.WithError(err).Warn("preview cache read failed")
	} else if ok {
		return *cached, nil
	}

	periodic, theoretical, err := s.calculator.Compute(ctx, start, end, cogs.EndLive, includeTheoretical)
	if err != nil {
		return domain.COGSPreview{}, err
	}
	preview := domain.COGSPreview{
		StartAt:     start,
		EndAt:       end,
		Periodic:    periodic,
		Theoretical: theoretical,
		GeneratedAt: s.now(),
	}
	if err := s.cache.Set(ctx, key, &preview, s.cacheTTL); err != nil {
		log.WithError(err).Warn("preview cache write failed")
	}
	return preview, nil
}

func (s *Service) CreatePeriod(ctx context.Context, req domain.PeriodCreateRequest) (domain.COGSPeriod, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.COGSPeriod{}, err
	}
	req.PeriodType = strings.ToLower(strings.TrimSpace(req.PeriodType))
	if err := validate.Struct(req); err != nil {
		return domain.COGSPeriod{}, err
	}
	start, end := req.StartAt.UTC(), req.EndAt.UTC()
	if !start.Before(end) {
		return domain.COGSPeriod{}, invalid("start_at must be before end_at")
	}

	created, err := s.repo.CreatePeriod(ctx, domain.COGSPeriod{
		ID:         xid.New("per"),
		PeriodType: req.PeriodType,
		StartAt:    start,
		EndAt:      end,
		Status:     domain.PeriodStatusOpen,
		Notes:      strings.TrimSpace(req.Notes),
		CreatedAt:  s.now(),
	})
	if err != nil {
		return domain.COGSPeriod{}, err
	}
	s.logAudit(ctx, "period_create", "cogs_period", created.ID, fmt.Sprintf("type=%s,start=%s,end=%s", created.PeriodType, created.StartAt.Format(time.RFC3339), created.EndAt.Format(time.RFC3339)))
	return *created, nil
}

func (s *Service) ListPeriods(ctx context.Context, status string, limit int) (domain.PeriodListResponse, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", domain.PeriodStatusOpen, domain.PeriodStatusClosed:
	default:
		return domain.PeriodListResponse{}, invalid("status must be open or closed")
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	periods, err := s.repo.ListPeriods(ctx, status, limit)
	if err != nil {
		return domain.PeriodListResponse{}, err
	}
	return domain.PeriodListResponse{Periods: periods}, nil
}

// GetPeriod returns the period and, once closed, its stored report.
func (s *Service) GetPeriod(ctx context.Context, id string) (domain.PeriodResponse, error) {
	period, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return domain.PeriodResponse{}, err
	}
	resp := domain.PeriodResponse{Period: *period}
	if period.Status != domain.PeriodStatusClosed {
		return resp, nil
	}
	report, err := s.repo.GetReport(ctx, period.ID)
	if err != nil {
		return domain.PeriodResponse{}, err
	}
	resp.Report = report
	return resp, nil
}

// UpdatePeriodNotes is the only edit a period allows, before or after close.
func (s *Service) UpdatePeriodNotes(ctx context.Context, id string, req domain.PeriodUpdateRequest) (domain.COGSPeriod, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.COGSPeriod{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.COGSPeriod{}, err
	}
	updated, err := s.repo.UpdatePeriodNotes(ctx, id, strings.TrimSpace(req.Notes))
	if err != nil {
		return domain.COGSPeriod{}, err
	}
	s.logAudit(ctx, "period_notes_update", "cogs_period", updated.ID, fmt.Sprintf("length=%d", len(updated.Notes)))
	return *updated, nil
}

// ClosePeriod computes the final figures for an open period and stores them
// with the status change. The caller has already confirmed the manager PIN.
// Any failure leaves the period open and the close can be retried.
func (s *Service) ClosePeriod(ctx context.Context, id string, includeTheoretical bool) (domain.PeriodResponse, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.PeriodResponse{}, err
	}

	period, err := s.repo.GetPeriod(ctx, id)
	if err != nil {
		return domain.PeriodResponse{}, err
	}
	if period.Status != domain.PeriodStatusOpen {
		return domain.PeriodResponse{}, fmt.Errorf("%w: %s", store.ErrPeriodClosed, period.ID)
	}

	release, err := s.locker.Acquire(ctx, lock.PeriodCloseKey(period.ID), s.lockTTL)
	if err != nil {
		return domain.PeriodResponse{}, err
	}
	defer release(context.WithoutCancel(ctx))

	// Someone may have closed it between the read above and taking the lock.
	period, err = s.repo.GetPeriod(ctx, id)
	if err != nil {
		return domain.PeriodResponse{}, err
	}
	if period.Status != domain.PeriodStatusOpen {
		return domain.PeriodResponse{}, fmt.Errorf("%w: %s", store.ErrPeriodClosed, period.ID)
	}

	periodic, theoretical, err := s.calculator.Compute(ctx, period.StartAt, period.EndAt, cogs.EndSnapshot, includeTheoretical)
	if err != nil {
		logger.LogError("service", "ClosePeriod", "Error computing period figures", period.ID, err)
		return domain.PeriodResponse{}, err
	}

	now := s.now()
	report := domain.COGSReport{
		ID:          xid.New("rpt"),
		PeriodID:    period.ID,
		Periodic:    periodic,
		Theoretical: theoretical,
		ClosedBy:    actor.Username,
		CreatedAt:   now,
	}
	closed, err := s.repo.ClosePeriod(ctx, report, now)
	if err != nil {
		return domain.PeriodResponse{}, err
	}

	s.logAudit(ctx, "period_close", "cogs_period", closed.ID, fmt.Sprintf("periodic=%s,theoretical=%t,end_source=%s", periodic.PeriodicCogsValue.StringFixed(2), theoretical != nil, periodic.EndSource))
	return domain.PeriodResponse{Period: *closed, Report: &report}, nil
}

// ExportPeriod renders a closed period's report. Open periods have no fixed
// figures to export.
func (s *Service) ExportPeriod(ctx context.Context, id string, format string) (ExportFile, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return ExportFile{}, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatXLSX {
		return ExportFile{}, invalid("format must be csv or xlsx")
	}

	resp, err := s.GetPeriod(ctx, id)
	if err != nil {
		return ExportFile{}, err
	}
	if resp.Report == nil {
		return ExportFile{}, fmt.Errorf("%w: period %s is still open", store.ErrConflict, id)
	}

	var buf bytes.Buffer
	file := ExportFile{Filename: export.Filename(resp.Period, format)}
	switch format {
	case export.FormatXLSX:
		file.ContentType = export.ContentTypeXLSX
		err = export.XLSX(&buf, resp.Period, *resp.Report)
	default:
		file.ContentType = export.ContentTypeCSV
		err = export.CSV(&buf, resp.Period, *resp.Report)
	}
	if err != nil {
		return ExportFile{}, err
	}
	file.Body = buf.Bytes()
	return file, nil
}


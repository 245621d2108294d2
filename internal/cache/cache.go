package cache

import (
	"context"
	"time"

	"cafecogs/backend/internal/domain"
)

// ReportCache holds recently computed COGS previews.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.COGSPreview, bool, error)
	Set(ctx context.Context, key string, value *domain.COGSPreview, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.COGSPreview, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.COGSPreview, _ time.Duration) error {
	return nil
}

// PreviewKey identifies a preview by its window and whether theoretical
// figures were included.
func PreviewKey(start, end time.Time, includeTheoretical bool) string {
	mode := "periodic"
	if includeTheoretical {
		mode = "full"
	}
	return "cogs:preview:" + start.UTC().Format(time.RFC3339Nano) + ":" + end.UTC().Format(time.RFC3339Nano) + ":" + mode
}

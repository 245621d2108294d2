package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cafecogs/backend/internal/domain"
)

func TestPreviewKeyDistinguishesMode(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	if PreviewKey(start, end, true) == PreviewKey(start, end, false) {
		t.Fatalf("periodic-only and full previews must not share a key")
	}
	local := start.In(time.FixedZone("UTC+7", 7*3600))
	if PreviewKey(local, end, true) != PreviewKey(start, end, true) {
		t.Fatalf("same instant in another zone should map to the same key")
	}
	if PreviewKey(start, end.Add(-time.Millisecond), true) == PreviewKey(start, end.Add(-999*time.Millisecond), true) {
		t.Fatalf("windows differing below one second must not share a key")
	}
}

func TestNoopCacheAlwaysMisses(t *testing.T) {
	var c ReportCache = NoopReportCache{}
	if err := c.Set(context.Background(), "k", &domain.COGSPreview{}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := c.Get(context.Background(), "k"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestRedisReportCacheRoundTrip(t *testing.T) {
	addr := os.Getenv("CAFECOGS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CAFECOGS_TEST_REDIS_ADDR is not set")
	}
	client := NewRedisClient(addr, "", 0)
	defer client.Close()
	c := NewRedisReportCache(client)
	ctx := context.Background()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := "cogs:preview:test:" + time.Now().Format(time.RFC3339Nano)
	want := &domain.COGSPreview{Periodic: domain.PeriodicResult{PeriodicCogsValue: decimal.RequireFromString("120.50")}}
	if err := c.Set(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if !got.Periodic.PeriodicCogsValue.Equal(want.Periodic.PeriodicCogsValue) {
		t.Fatalf("expected %s, got %s", want.Periodic.PeriodicCogsValue, got.Periodic.PeriodicCogsValue)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"cafecogs/backend/internal/cache"
	"cafecogs/backend/internal/catalog"
	"cafecogs/backend/internal/cogs"
	"cafecogs/backend/internal/domain"
	"cafecogs/backend/internal/lock"
	"cafecogs/backend/internal/logger"
	"cafecogs/backend/internal/recipe"
	"cafecogs/backend/internal/store"
	"cafecogs/backend/internal/xid"
)

var ErrForbidden = errors.New("admin role required")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Provider catalog.Provider
	Cache    cache.ReportCache
	Locker   lock.Locker
	// CacheTTL bounds how long a preview is served from cache.
	CacheTTL time.Duration
	LockTTL  time.Duration
}

type Service struct {
	repo       store.Repository
	provider   catalog.Provider
	resolver   *recipe.Resolver
	calculator *cogs.Calculator
	cache      cache.ReportCache
	locker     lock.Locker
	cacheTTL   time.Duration
	lockTTL    time.Duration
	now        func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Provider == nil {
		opts.Provider = catalog.NewStatic(catalog.DemoCatalog())
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopReportCache{}
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLocker()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 60 * time.Second
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}

	resolver := recipe.NewResolver(repo)
	return &Service{
		repo:       repo,
		provider:   opts.Provider,
		resolver:   resolver,
		calculator: cogs.NewCalculator(repo, resolver, xid.New),
		cache:      opts.Cache,
		locker:     opts.Locker,
		cacheTTL:   opts.CacheTTL,
		lockTTL:    opts.LockTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

// requireStaff admits any signed-in role.
func requireStaff(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || (actor.Role != domain.RoleAdmin && actor.Role != domain.RoleStaff) {
		return domain.Actor{}, ErrForbidden
	}
	return actor, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("%w: from must be before to", store.ErrInvalidInput)
	}
	if limit < 1 || limit > 500 {
		limit = 200
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		logger.WithModule("audit").WithError(err).WithFields(logrus.Fields{
			"action": action,
			"entity": entityType + "/" + entityID,
		}).Warn("failed to write audit log")
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enersystems/es-inventory-hub/internal/clients/redis"
	"github.com/enersystems/es-inventory-hub/internal/data/repos"
	types "github.com/enersystems/es-inventory-hub/internal/domain"
	"github.com/enersystems/es-inventory-hub/internal/observability"
	"github.com/enersystems/es-inventory-hub/internal/platform/ctxutil"
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
	"github.com/enersystems/es-inventory-hub/internal/recon"
)

const (
	summaryCachePrefix = "summary"
	summaryCacheTTL    = 5 * time.Minute
)

// ExceptionService is the dashboard-facing surface over the exception
// ledger: querying, status rollups, and the manual-fix workflow.
type ExceptionService interface {
	Query(ctx context.Context, tx *gorm.DB, filter repos.ExceptionQueryFilter) ([]*types.Exception, int64, error)
	Get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exception, error)
	StatusSummary(ctx context.Context, tx *gorm.DB) ([]repos.ExceptionStatusCount, error)
	RecentManualUpdates(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Exception, error)
	Resolve(ctx context.Context, tx *gorm.DB, id uuid.UUID, actor string) (repos.MarkFixedOutcome, error)
	MarkManuallyFixedByID(ctx context.Context, tx *gorm.DB, id uuid.UUID, actor, updateType, oldValue, newValue string) (repos.MarkFixedOutcome, error)
	MarkManuallyFixedByHostname(ctx context.Context, tx *gorm.DB, excType, hostname string, date time.Time, actor, updateType, oldValue, newValue string) (repos.MarkFixedOutcome, error)
	BulkUpdate(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, action, actor string) (int64, error)
	InvalidateCaches(ctx context.Context)
}

type exceptionService struct {
	db     *gorm.DB
	log    *logger.Logger
	policy recon.Policy
	ledger repos.ExceptionRepo
	cache  redis.SummaryCache
}

// NewExceptionService wires the ledger repo with an optional summary cache;
// cache may be nil when Redis is not configured.
func NewExceptionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	policy recon.Policy,
	ledger repos.ExceptionRepo,
	cache redis.SummaryCache,
) ExceptionService {
	return &exceptionService{
		db:     db,
		log:    baseLog.With("service", "ExceptionService"),
		policy: policy,
		ledger: ledger,
		cache:  cache,
	}
}

func (es *exceptionService) Query(ctx context.Context, tx *gorm.DB, filter repos.ExceptionQueryFilter) ([]*types.Exception, int64, error) {
	return es.ledger.Query(ctx, tx, filter)
}

func (es *exceptionService) Get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exception, error) {
	rows, err := es.ledger.GetByIDs(ctx, tx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (es *exceptionService) StatusSummary(ctx context.Context, tx *gorm.DB) ([]repos.ExceptionStatusCount, error) {
	cacheKey := summaryCachePrefix + ":status"
	if es.cache != nil {
		var cached []repos.ExceptionStatusCount
		hit, err := es.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			es.log.Warn("summary cache read failed", "error", err)
		} else if hit {
			return cached, nil
		}
	}

	since := types.DateOnly(time.Now().AddDate(0, 0, -es.policy.SummaryWindowDays))
	counts, err := es.ledger.StatusSummary(ctx, tx, since)
	if err != nil {
		return nil, fmt.Errorf("status summary: %w", err)
	}
	if es.cache != nil {
		if err := es.cache.Set(ctx, cacheKey, counts, summaryCacheTTL); err != nil {
			es.log.Warn("summary cache write failed", "error", err)
		}
	}
	return counts, nil
}

func (es *exceptionService) RecentManualUpdates(ctx context.Context, tx *gorm.DB, limit int) ([]*types.Exception, error) {
	if limit <= 0 {
		limit = 50
	}
	return es.ledger.RecentManualUpdates(ctx, tx, limit)
}

func (es *exceptionService) Resolve(ctx context.Context, tx *gorm.DB, id uuid.UUID, actor string) (repos.MarkFixedOutcome, error) {
	actor = es.resolveActor(ctx, actor)
	outcome, err := es.ledger.Resolve(ctx, tx, id, actor)
	if err != nil {
		return outcome, err
	}
	es.logOutcome("Resolve", outcome, "id", id, "actor", actor)
	es.InvalidateCaches(ctx)
	return outcome, nil
}

func (es *exceptionService) MarkManuallyFixedByID(ctx context.Context, tx *gorm.DB, id uuid.UUID, actor, updateType, oldValue, newValue string) (repos.MarkFixedOutcome, error) {
	actor = es.resolveActor(ctx, actor)
	outcome, err := es.ledger.MarkManuallyFixedByID(ctx, tx, id, actor, updateType, oldValue, newValue)
	if err != nil {
		return outcome, err
	}
	es.logOutcome("MarkManuallyFixed", outcome, "id", id, "actor", actor, "update_type", updateType)
	es.InvalidateCaches(ctx)
	return outcome, nil
}

func (es *exceptionService) MarkManuallyFixedByHostname(ctx context.Context, tx *gorm.DB, excType, hostname string, date time.Time, actor, updateType, oldValue, newValue string) (repos.MarkFixedOutcome, error) {
	actor = es.resolveActor(ctx, actor)
	outcome, err := es.ledger.MarkManuallyFixedByHostname(ctx, tx, excType, hostname, date, actor, updateType, oldValue, newValue)
	if err != nil {
		return outcome, err
	}
	es.logOutcome("MarkManuallyFixed", outcome, "type", excType, "hostname", hostname, "actor", actor)
	es.InvalidateCaches(ctx)
	return outcome, nil
}

func (es *exceptionService) BulkUpdate(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, action, actor string) (int64, error) {
	switch action {
	case repos.BulkMarkManuallyFixed, repos.BulkResolve, repos.BulkResetStatus:
	default:
		return 0, fmt.Errorf("unknown bulk action %q", action)
	}
	actor = es.resolveActor(ctx, actor)
	n, err := es.ledger.BulkUpdate(ctx, tx, ids, action, actor)
	if err != nil {
		return 0, err
	}
	es.log.Info("Bulk exception update", "action", action, "actor", actor, "requested", len(ids), "updated", n)
	es.InvalidateCaches(ctx)
	return n, nil
}

func (es *exceptionService) InvalidateCaches(ctx context.Context) {
	if es.cache == nil {
		return
	}
	if err := es.cache.InvalidatePrefix(ctx, summaryCachePrefix); err != nil {
		es.log.Warn("summary cache invalidation failed", "error", err)
	}
}

// resolveActor prefers the explicit actor, falling back to the authenticated
// operator on the request context.
func (es *exceptionService) resolveActor(ctx context.Context, actor string) string {
	if actor != "" {
		return actor
	}
	if op := ctxutil.GetOperator(ctx); op != "" {
		return op
	}
	return "unknown"
}

func (es *exceptionService) logOutcome(op string, outcome repos.MarkFixedOutcome, kvs ...any) {
	switch outcome {
	case repos.OutcomeUpdated:
		es.log.Info(op+" applied", kvs...)
		observability.Current().IncManualFixOutcome(string(outcome))
	case repos.OutcomeAlreadyResolved:
		es.log.Info(op+" skipped (already resolved)", kvs...)
	case repos.OutcomeNotFound:
		es.log.Warn(op+" target not found", kvs...)
	}
}

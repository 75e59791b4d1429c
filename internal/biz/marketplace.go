package biz

import (
	"context"
	"time"

	"CrateScout/internal/conf"
	"CrateScout/internal/model"
	pkgerrors "CrateScout/pkg/errors"
	"CrateScout/pkg/metrics"
	"CrateScout/pkg/resilience"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultPriceCacheSize is used when features.price_cache_size is unset
	DefaultPriceCacheSize = 1024
	// DefaultPriceCacheTTL is used when features.price_cache_ttl is unset
	DefaultPriceCacheTTL = 5 * time.Minute

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

var (
	// ErrHistoryUnavailable is returned when price snapshots are not persisted.
	ErrHistoryUnavailable = errors.ServiceUnavailable("HISTORY_UNAVAILABLE", "price history persistence is disabled")
	// ErrInvalidReleaseID rejects non-positive release ids.
	ErrInvalidReleaseID = errors.BadRequest("INVALID_RELEASE_ID", "release id must be positive")
)

// MarketplaceRepo fetches marketplace stats for a single release.
type MarketplaceRepo interface {
	GetPriceStats(ctx context.Context, releaseID int64) (*model.PriceStats, error)
}

// SnapshotRepo persists price stats over time.
type SnapshotRepo interface {
	SaveSnapshots(ctx context.Context, stats []*model.PriceStats) error
	ListSnapshots(ctx context.Context, releaseID int64, limit int) ([]*model.PriceStats, error)
	PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error)
}

// MarketplaceUsecase aggregates pricing and availability for batches of releases.
type MarketplaceUsecase struct {
	repo       MarketplaceRepo
	snapshots  SnapshotRepo
	guard      *resilience.Guard
	aggregator *resilience.FutureAggregator
	cache      *expirable.LRU[int64, *model.PriceStats]
	metrics    *metrics.Metrics
	logger     *log.Helper
	now        func() time.Time
}

// NewMarketplaceUsecase creates a new marketplace usecase.
func NewMarketplaceUsecase(
	repo MarketplaceRepo,
	snapshots SnapshotRepo,
	guard *resilience.Guard,
	aggregator *resilience.FutureAggregator,
	features *conf.Features,
	m *metrics.Metrics,
	logger log.Logger,
) *MarketplaceUsecase {
	size, ttl := DefaultPriceCacheSize, DefaultPriceCacheTTL
	if features != nil {
		if features.PriceCacheSize > 0 {
			size = features.PriceCacheSize
		}
		if features.PriceCacheTTL > 0 {
			ttl = features.PriceCacheTTL
		}
	}

	return &MarketplaceUsecase{
		repo:       repo,
		snapshots:  snapshots,
		guard:      guard,
		aggregator: aggregator,
		cache:      expirable.NewLRU[int64, *model.PriceStats](size, nil, ttl),
		metrics:    m,
		logger:     log.NewHelper(log.With(logger, "module", "biz/marketplace")),
		now:        time.Now,
	}
}

// ReleasePrices returns marketplace stats for the given releases in request order,
// duplicates removed. Releases whose lookup fails or times out are left out.
func (uc *MarketplaceUsecase) ReleasePrices(ctx context.Context, releaseIDs []int64) []*model.PriceStats {
	ids := dedupeIDs(releaseIDs)
	if len(ids) == 0 {
		return []*model.PriceStats{}
	}

	found := make(map[int64]*model.PriceStats, len(ids))
	misses := make([]int64, 0, len(ids))
	for _, id := range ids {
		if stats, ok := uc.cache.Get(id); ok {
			uc.metrics.PriceCacheLookup(true)
			found[id] = stats
			continue
		}
		uc.metrics.PriceCacheLookup(false)
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		futures := make([]*resilience.Future[*model.PriceStats], 0, len(misses))
		for _, id := range misses {
			releaseID := id
			futures = append(futures, resilience.Submit(ctx, func(taskCtx context.Context) (*model.PriceStats, error) {
				stats, err := resilience.Call(uc.guard, func() (*model.PriceStats, error) {
					return uc.repo.GetPriceStats(taskCtx, releaseID)
				})
				if err != nil {
					// Collect drops failures silently, so they are logged here
					uc.logger.Warnw("msg", "marketplace stats lookup failed",
						"release_id", releaseID,
						"reason", failureReason(resilience.OutcomeFailed, err),
						"error", err)
				}
				return stats, err
			}))
		}

		fetched := resilience.Collect(ctx, uc.aggregator, futures)
		for _, stats := range fetched {
			if stats == nil {
				continue
			}
			uc.cache.Add(stats.ReleaseID, stats)
			found[stats.ReleaseID] = stats
		}

		uc.logger.Infow("msg", "marketplace stats fetched",
			"requested", len(misses),
			"fetched", len(fetched))

		uc.recordSnapshots(ctx, fetched)
	}

	out := make([]*model.PriceStats, 0, len(found))
	for _, id := range ids {
		if stats, ok := found[id]; ok {
			out = append(out, clonePriceStats(stats))
		}
	}

	return out
}

// History returns the latest persisted snapshots of a release, newest first.
func (uc *MarketplaceUsecase) History(ctx context.Context, releaseID int64, limit int) ([]*model.PriceStats, error) {
	if releaseID <= 0 {
		return nil, ErrInvalidReleaseID
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	snapshots, err := uc.snapshots.ListSnapshots(ctx, releaseID, limit)
	if err != nil {
		if pkgerrors.IsDisabledError(err) {
			return nil, ErrHistoryUnavailable
		}
		return nil, err
	}

	return snapshots, nil
}

// PruneSnapshots deletes snapshots older than olderThan. Disabled persistence prunes nothing.
func (uc *MarketplaceUsecase) PruneSnapshots(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := uc.now().Add(-olderThan)

	removed, err := uc.snapshots.PruneSnapshots(ctx, cutoff)
	if err != nil {
		if pkgerrors.IsDisabledError(err) {
			return 0, nil
		}
		return 0, err
	}

	return removed, nil
}

// recordSnapshots persists freshly fetched stats. Failures never reach the caller.
func (uc *MarketplaceUsecase) recordSnapshots(ctx context.Context, stats []*model.PriceStats) {
	if len(stats) == 0 {
		return
	}

	if err := uc.snapshots.SaveSnapshots(ctx, stats); err != nil {
		switch {
		case pkgerrors.IsDisabledError(err):
		case pkgerrors.IsTransientError(err):
			// the next fetch of these releases writes a fresh snapshot
			uc.logger.Debugw("msg", "price snapshots skipped, database busy",
				"count", len(stats),
				"error", err)
		default:
			uc.logger.Warnw("msg", "failed to persist price snapshots",
				"count", len(stats),
				"error", err)
		}
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func clonePriceStats(s *model.PriceStats) *model.PriceStats {
	c := *s
	if s.LowestPrice != nil {
		v := *s.LowestPrice
		c.LowestPrice = &v
	}
	return &c
}

package biz

import (
	"context"

	"CrateScout/internal/conf"
	"CrateScout/internal/model"
	"CrateScout/pkg/metrics"
	"CrateScout/pkg/resilience"

	"github.com/go-kratos/kratos/v2/log"
)

// CollectionRepo looks up a release in a user's Discogs collection.
type CollectionRepo interface {
	GetCollectionReleases(ctx context.Context, q model.OwnershipQuery) (*model.CollectionReleases, error)
}

// OwnershipCache remembers ownership verdicts between searches.
type OwnershipCache interface {
	// LookupOwnership returns the cached verdicts; releases without one are absent.
	LookupOwnership(ctx context.Context, username string, releaseIDs []int64) (map[int64]bool, error)
	SetOwnership(ctx context.Context, q model.OwnershipQuery, owned bool) error
}

// ownershipVerdict is the result of one collection lookup
type ownershipVerdict struct {
	releaseID int64
	owned     bool
}

// OwnershipUsecase removes releases the user already owns from search results.
type OwnershipUsecase struct {
	repo       CollectionRepo
	cache      OwnershipCache
	guard      *resilience.Guard
	aggregator *resilience.FutureAggregator
	enabled    bool
	metrics    *metrics.Metrics
	logger     *log.Helper
}

// NewOwnershipUsecase creates a new ownership usecase.
func NewOwnershipUsecase(
	repo CollectionRepo,
	cache OwnershipCache,
	guard *resilience.Guard,
	aggregator *resilience.FutureAggregator,
	features *conf.Features,
	m *metrics.Metrics,
	logger log.Logger,
) *OwnershipUsecase {
	return &OwnershipUsecase{
		repo:       repo,
		cache:      cache,
		guard:      guard,
		aggregator: aggregator,
		enabled:    features != nil && features.SearchCollectionEnabled,
		metrics:    m,
		logger:     log.NewHelper(log.With(logger, "module", "biz/ownership")),
	}
}

// Enabled reports whether collection filtering is switched on.
func (uc *OwnershipUsecase) Enabled() bool {
	return uc.enabled
}

// FilterOwnedReleases returns results with every release owned by username removed.
//
// Lookups for all distinct release ids are started up front and joined through the
// aggregator. A lookup that fails or times out counts as not owned, so the release
// stays in the output. Result entries whose releases are all owned are kept with an
// empty list. The input is never mutated; when filtering is disabled or there is
// nothing to filter the input slice itself is returned.
func (uc *OwnershipUsecase) FilterOwnedReleases(ctx context.Context, username string, results []*model.SearchResult) []*model.SearchResult {
	if !uc.enabled || len(results) == 0 {
		return results
	}

	releaseIDs := distinctReleaseIDs(results)
	if len(releaseIDs) == 0 {
		return results
	}

	// lookups outlive a disconnected caller; the aggregator timeout bounds them
	scanCtx := context.WithoutCancel(ctx)

	owned := make(map[int64]bool, len(releaseIDs))
	cached := uc.cachedVerdicts(scanCtx, username, releaseIDs)
	for id, isOwned := range cached {
		uc.recordVerdict(owned, id, isOwned)
	}

	pending := make([]int64, 0, len(releaseIDs))
	futures := make([]*resilience.Future[ownershipVerdict], 0, cap(pending))
	for _, id := range releaseIDs {
		if _, ok := cached[id]; ok {
			continue
		}
		q := model.OwnershipQuery{Username: username, ReleaseID: id}
		pending = append(pending, id)
		futures = append(futures, resilience.Submit(scanCtx, func(taskCtx context.Context) (ownershipVerdict, error) {
			isOwned, err := uc.checkOwnership(taskCtx, q)
			return ownershipVerdict{releaseID: q.ReleaseID, owned: isOwned}, err
		}))
	}

	for i, outcome := range resilience.CollectResults(scanCtx, uc.aggregator, futures) {
		if outcome.Kind != resilience.OutcomeCompleted {
			uc.metrics.OwnershipChecked(metrics.OwnershipError)
			uc.logger.Warnw("msg", "ownership check failed, keeping release",
				"username", username,
				"release_id", pending[i],
				"outcome", outcome.Kind.String(),
				"reason", failureReason(outcome.Kind, outcome.Err),
				"error", outcome.Err)
			continue
		}
		uc.recordVerdict(owned, outcome.Value.releaseID, outcome.Value.owned)
	}

	uc.logger.Infow("msg", "ownership filter applied",
		"username", username,
		"checked", len(releaseIDs),
		"cached", len(cached),
		"owned", len(owned))

	return excludeOwned(results, owned)
}

// cachedVerdicts fetches every known verdict in one cache round trip. A cache failure means no hits.
func (uc *OwnershipUsecase) cachedVerdicts(ctx context.Context, username string, releaseIDs []int64) map[int64]bool {
	if uc.cache == nil {
		return nil
	}

	verdicts, err := uc.cache.LookupOwnership(ctx, username, releaseIDs)
	if err != nil {
		uc.logger.Debugw("msg", "ownership cache read failed", "releases", len(releaseIDs), "error", err)
		return nil
	}
	return verdicts
}

func (uc *OwnershipUsecase) recordVerdict(owned map[int64]bool, releaseID int64, isOwned bool) {
	if isOwned {
		uc.metrics.OwnershipChecked(metrics.OwnershipOwned)
		owned[releaseID] = true
		return
	}
	uc.metrics.OwnershipChecked(metrics.OwnershipNotOwned)
}

// checkOwnership runs one guarded Discogs lookup and caches the verdict.
func (uc *OwnershipUsecase) checkOwnership(ctx context.Context, q model.OwnershipQuery) (bool, error) {
	resp, err := resilience.Call(uc.guard, func() (*model.CollectionReleases, error) {
		return uc.repo.GetCollectionReleases(ctx, q)
	})
	if err != nil {
		return false, err
	}

	owned := resp.Contains(q.ReleaseID)

	if uc.cache != nil {
		if err := uc.cache.SetOwnership(ctx, q, owned); err != nil {
			uc.logger.Debugw("msg", "ownership cache write failed", "release_id", q.ReleaseID, "error", err)
		}
	}

	return owned, nil
}

// distinctReleaseIDs lists release ids in first-seen order
func distinctReleaseIDs(results []*model.SearchResult) []int64 {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)

	for _, r := range results {
		if r == nil {
			continue
		}
		for _, rel := range r.Releases {
			if rel == nil {
				continue
			}
			if _, ok := seen[rel.ID]; ok {
				continue
			}
			seen[rel.ID] = struct{}{}
			ids = append(ids, rel.ID)
		}
	}

	return ids
}

func excludeOwned(results []*model.SearchResult, owned map[int64]bool) []*model.SearchResult {
	filtered := make([]*model.SearchResult, 0, len(results))

	for _, r := range results {
		if r == nil {
			filtered = append(filtered, nil)
			continue
		}

		kept := make([]*model.ReleaseEntry, 0, len(r.Releases))
		for _, rel := range r.Releases {
			if rel == nil || owned[rel.ID] {
				continue
			}
			kept = append(kept, rel)
		}

		filtered = append(filtered, &model.SearchResult{
			Query:    r.Query,
			Releases: kept,
		})
	}

	return filtered
}

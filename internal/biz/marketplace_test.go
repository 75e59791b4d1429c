package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"CrateScout/internal/conf"
	"CrateScout/internal/model"
	pkgerrors "CrateScout/pkg/errors"
	"CrateScout/pkg/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMarketplaceRepo is a mock implementation of MarketplaceRepo for testing.
type MockMarketplaceRepo struct {
	mock.Mock
}

func (m *MockMarketplaceRepo) GetPriceStats(ctx context.Context, releaseID int64) (*model.PriceStats, error) {
	args := m.Called(ctx, releaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PriceStats), args.Error(1)
}

// MockSnapshotRepo is a mock implementation of SnapshotRepo for testing.
type MockSnapshotRepo struct {
	mock.Mock
}

func (m *MockSnapshotRepo) SaveSnapshots(ctx context.Context, stats []*model.PriceStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func (m *MockSnapshotRepo) ListSnapshots(ctx context.Context, releaseID int64, limit int) ([]*model.PriceStats, error) {
	args := m.Called(ctx, releaseID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.PriceStats), args.Error(1)
}

func (m *MockSnapshotRepo) PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func newTestMarketplaceUsecase(t *testing.T, repo *MockMarketplaceRepo, snapshots *MockSnapshotRepo, m *metrics.Metrics) *MarketplaceUsecase {
	t.Helper()

	if m == nil {
		m = metrics.NewMetrics(nil, nil)
	}
	guard, _, _ := newTestGuard(t, 1000)
	return NewMarketplaceUsecase(repo, snapshots, guard, newTestAggregator(time.Second),
		&conf.Features{PriceCacheSize: 16, PriceCacheTTL: time.Minute}, m, log.DefaultLogger)
}

func priceStats(id int64, price float64) *model.PriceStats {
	return &model.PriceStats{
		ReleaseID:   id,
		LowestPrice: &price,
		Currency:    "USD",
		NumForSale:  int(id),
		FetchedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func statsIDs(stats []*model.PriceStats) []int64 {
	ids := make([]int64, 0, len(stats))
	for _, s := range stats {
		ids = append(ids, s.ReleaseID)
	}
	return ids
}

// Test ReleasePrices - request order, dedup, and the in-process cache
func TestReleasePrices_OrderAndCache(t *testing.T) {
	repo := new(MockMarketplaceRepo)
	for _, id := range []int64{1, 2, 3} {
		repo.On("GetPriceStats", mock.Anything, id).Return(priceStats(id, float64(id)*10), nil)
	}
	snapshots := new(MockSnapshotRepo)
	snapshots.On("SaveSnapshots", mock.Anything, mock.MatchedBy(func(s []*model.PriceStats) bool {
		return len(s) == 3
	})).Return(nil).Once()

	registry := prometheus.NewRegistry()
	uc := newTestMarketplaceUsecase(t, repo, snapshots, metrics.NewMetrics(registry, nil))

	out := uc.ReleasePrices(context.Background(), []int64{3, 1, 3, 0, 2})
	assert.Equal(t, []int64{3, 1, 2}, statsIDs(out))

	// second call is served from the cache without persisting again
	out = uc.ReleasePrices(context.Background(), []int64{2, 1})
	assert.Equal(t, []int64{2, 1}, statsIDs(out))
	require.NotNil(t, out[0].LowestPrice)
	assert.Equal(t, 20.0, *out[0].LowestPrice)

	repo.AssertNumberOfCalls(t, "GetPriceStats", 3)
	snapshots.AssertExpectations(t)

	expected := `
# HELP cratescout_price_cache_lookups_total Total number of price cache lookups by result
# TYPE cratescout_price_cache_lookups_total counter
cratescout_price_cache_lookups_total{result="hit"} 2
cratescout_price_cache_lookups_total{result="miss"} 3
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "cratescout_price_cache_lookups_total"))
}

// Test ReleasePrices - failed lookups are dropped from the batch
func TestReleasePrices_FailuresOmitted(t *testing.T) {
	repo := new(MockMarketplaceRepo)
	repo.On("GetPriceStats", mock.Anything, int64(1)).Return(priceStats(1, 5), nil)
	repo.On("GetPriceStats", mock.Anything, int64(2)).Return(nil, errors.New("discogs api error: status=500"))
	repo.On("GetPriceStats", mock.Anything, int64(3)).Return(priceStats(3, 7), nil)

	snapshots := new(MockSnapshotRepo)
	snapshots.On("SaveSnapshots", mock.Anything, mock.Anything).Return(nil)

	uc := newTestMarketplaceUsecase(t, repo, snapshots, nil)

	out := uc.ReleasePrices(context.Background(), []int64{1, 2, 3})
	assert.Equal(t, []int64{1, 3}, statsIDs(out))

	// the failed id is retried on the next call
	uc.ReleasePrices(context.Background(), []int64{2})
	repo.AssertNumberOfCalls(t, "GetPriceStats", 4)
}

// Test ReleasePrices - persistence failures never reach the caller
func TestReleasePrices_PersistenceFailures(t *testing.T) {
	tests := []struct {
		name    string
		saveErr error
	}{
		{name: "database_error", saveErr: errors.New("failed to save price snapshots: connection refused")},
		{name: "persistence_disabled", saveErr: fmt.Errorf("wrapped: %w", pkgerrors.ErrPersistenceDisabled)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockMarketplaceRepo)
			repo.On("GetPriceStats", mock.Anything, int64(9)).Return(priceStats(9, 1.5), nil)
			snapshots := new(MockSnapshotRepo)
			snapshots.On("SaveSnapshots", mock.Anything, mock.Anything).Return(tt.saveErr)

			uc := newTestMarketplaceUsecase(t, repo, snapshots, nil)

			out := uc.ReleasePrices(context.Background(), []int64{9})
			assert.Equal(t, []int64{9}, statsIDs(out))
			snapshots.AssertExpectations(t)
		})
	}
}

// Test ReleasePrices - callers get copies of cached values
func TestReleasePrices_ReturnsCopies(t *testing.T) {
	repo := new(MockMarketplaceRepo)
	repo.On("GetPriceStats", mock.Anything, int64(4)).Return(priceStats(4, 12), nil)
	snapshots := new(MockSnapshotRepo)
	snapshots.On("SaveSnapshots", mock.Anything, mock.Anything).Return(nil)

	uc := newTestMarketplaceUsecase(t, repo, snapshots, nil)

	first := uc.ReleasePrices(context.Background(), []int64{4})
	*first[0].LowestPrice = 0
	first[0].NumForSale = 0

	second := uc.ReleasePrices(context.Background(), []int64{4})
	assert.Equal(t, 12.0, *second[0].LowestPrice)
	assert.Equal(t, 4, second[0].NumForSale)
}

// Test ReleasePrices - nothing to fetch
func TestReleasePrices_Empty(t *testing.T) {
	repo := new(MockMarketplaceRepo)
	uc := newTestMarketplaceUsecase(t, repo, new(MockSnapshotRepo), nil)

	out := uc.ReleasePrices(context.Background(), nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	repo.AssertNotCalled(t, "GetPriceStats", mock.Anything, mock.Anything)
}

// Test History - validation, limit clamping and disabled persistence
func TestHistory(t *testing.T) {
	t.Run("invalid_release_id", func(t *testing.T) {
		uc := newTestMarketplaceUsecase(t, new(MockMarketplaceRepo), new(MockSnapshotRepo), nil)

		_, err := uc.History(context.Background(), 0, 10)
		assert.True(t, errors.Is(err, ErrInvalidReleaseID))
	})

	t.Run("default_and_max_limit", func(t *testing.T) {
		snapshots := new(MockSnapshotRepo)
		snapshots.On("ListSnapshots", mock.Anything, int64(5), DefaultHistoryLimit).Return([]*model.PriceStats{priceStats(5, 1)}, nil)
		snapshots.On("ListSnapshots", mock.Anything, int64(5), MaxHistoryLimit).Return([]*model.PriceStats{}, nil)

		uc := newTestMarketplaceUsecase(t, new(MockMarketplaceRepo), snapshots, nil)

		out, err := uc.History(context.Background(), 5, 0)
		require.NoError(t, err)
		assert.Len(t, out, 1)

		_, err = uc.History(context.Background(), 5, 5000)
		require.NoError(t, err)
		snapshots.AssertExpectations(t)
	})

	t.Run("persistence_disabled", func(t *testing.T) {
		snapshots := new(MockSnapshotRepo)
		snapshots.On("ListSnapshots", mock.Anything, int64(5), 10).Return(nil, pkgerrors.ErrPersistenceDisabled)

		uc := newTestMarketplaceUsecase(t, new(MockMarketplaceRepo), snapshots, nil)

		_, err := uc.History(context.Background(), 5, 10)
		assert.True(t, errors.Is(err, ErrHistoryUnavailable))
	})

	t.Run("database_error", func(t *testing.T) {
		dbErr := errors.New("failed to list price snapshots: timeout")
		snapshots := new(MockSnapshotRepo)
		snapshots.On("ListSnapshots", mock.Anything, int64(5), 10).Return(nil, dbErr)

		uc := newTestMarketplaceUsecase(t, new(MockMarketplaceRepo), snapshots, nil)

		_, err := uc.History(context.Background(), 5, 10)
		assert.Equal(t, dbErr, err)
	})
}

// Test PruneSnapshots - cutoff is computed from the retention period
func TestPruneSnapshots(t *testing.T) {
	now := time.Date(2026, 5, 10, 3, 0, 0, 0, time.UTC)

	snapshots := new(MockSnapshotRepo)
	snapshots.On("PruneSnapshots", mock.Anything, now.Add(-48*time.Hour)).Return(int64(42), nil)

	uc := newTestMarketplaceUsecase(t, new(MockMarketplaceRepo), snapshots, nil)
	uc.now = func() time.Time { return now }

	removed, err := uc.PruneSnapshots(context.Background(), 48*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(42), removed)
}

// Test PruneSnapshots - disabled persistence prunes nothing without error
func TestPruneSnapshots_Disabled(t *testing.T) {
	snapshots := new(MockSnapshotRepo)
	snapshots.On("PruneSnapshots", mock.Anything, mock.Anything).Return(int64(0), pkgerrors.ErrPersistenceDisabled)

	uc := newTestMarketplaceUsecase(t, new(MockMarketplaceRepo), snapshots, nil)

	removed, err := uc.PruneSnapshots(context.Background(), time.Hour)
	assert.NoError(t, err)
	assert.Zero(t, removed)
}

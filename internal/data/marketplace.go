package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"CrateScout/internal/conf"
	"CrateScout/internal/model"
	"CrateScout/pkg/discogs"
	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/singleflight"
)

// MarketplaceRepo fetches Discogs marketplace statistics.
type MarketplaceRepo struct {
	client   *discogs.Client
	currency string
	group    singleflight.Group
	logger   *pkglog.LogHelper
	now      func() time.Time
}

// NewMarketplaceRepo creates a MarketplaceRepo pricing in the configured currency.
func NewMarketplaceRepo(client *discogs.Client, c *conf.Discogs, logger log.Logger) *MarketplaceRepo {
	currency := ""
	if c != nil {
		currency = c.Currency
	}

	return &MarketplaceRepo{
		client:   client,
		currency: currency,
		logger:   pkglog.NewLogHelper(log.With(logger, "module", "data/marketplace")),
		now:      time.Now,
	}
}

// GetPriceStats returns the marketplace summary for releaseID.
func (r *MarketplaceRepo) GetPriceStats(ctx context.Context, releaseID int64) (*model.PriceStats, error) {
	v, err, _ := r.group.Do(strconv.FormatInt(releaseID, 10), func() (interface{}, error) {
		resp, err := r.client.MarketplaceStats(ctx, releaseID, r.currency)
		if err != nil {
			return nil, fmt.Errorf("marketplace stats for release %d: %w", releaseID, err)
		}
		return r.toPriceStats(releaseID, resp), nil
	})
	if err != nil {
		return nil, err
	}

	stats := v.(*model.PriceStats)
	r.logger.Discogs("marketplace stats",
		"release_id", releaseID,
		"num_for_sale", stats.NumForSale)

	// shared results must not be mutated by callers
	copied := *stats
	return &copied, nil
}

func (r *MarketplaceRepo) toPriceStats(releaseID int64, resp *discogs.MarketplaceStatsResponse) *model.PriceStats {
	stats := &model.PriceStats{
		ReleaseID: releaseID,
		Currency:  r.currency,
		Blocked:   resp.BlockedFromSale,
		FetchedAt: r.now().UTC(),
	}
	if resp.LowestPrice != nil {
		price := resp.LowestPrice.Value
		stats.LowestPrice = &price
		stats.Currency = resp.LowestPrice.Currency
	}
	if resp.NumForSale != nil {
		stats.NumForSale = *resp.NumForSale
	}
	return stats
}

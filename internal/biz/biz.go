// Package biz contains the business logic layer: collection ownership filtering,
// marketplace price aggregation and the resilience status view.
package biz

import (
	"CrateScout/internal/data"
	"CrateScout/pkg/resilience"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewOwnershipUsecase,
	NewMarketplaceUsecase,
	NewStatusUsecase,
	// Import data layer providers
	data.NewCollectionRepo,
	data.NewMarketplaceRepo,
	data.NewPriceSnapshotRepo,
	data.NewOwnershipCache,
	data.NewCircuitWebhook,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(CollectionRepo), new(*data.CollectionRepo)),
	wire.Bind(new(OwnershipCache), new(*data.OwnershipCache)),
	wire.Bind(new(MarketplaceRepo), new(*data.MarketplaceRepo)),
	wire.Bind(new(SnapshotRepo), new(*data.PriceSnapshotRepo)),
)

// Failure reasons attached to Discogs lookup failure logs.
const (
	reasonRateLimited = "rate_limited"
	reasonCircuitOpen = "circuit_open"
	reasonTimeout     = "timeout"
	reasonDownstream  = "downstream_error"
)

// failureReason names why a guarded Discogs lookup did not produce a value.
func failureReason(kind resilience.OutcomeKind, err error) string {
	switch {
	case kind == resilience.OutcomeTimedOut:
		return reasonTimeout
	case resilience.IsRateLimited(err):
		return reasonRateLimited
	case resilience.IsCircuitOpen(err):
		return reasonCircuitOpen
	default:
		return reasonDownstream
	}
}

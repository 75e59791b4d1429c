// Package service exposes the biz usecases over HTTP.
package service

import (
	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(NewSearchService, NewMarketplaceService, NewStatusService)

package server

import (
	"CrateScout/internal/conf"
	"CrateScout/internal/server/middleware"
	"CrateScout/internal/service"
	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPServer serves the search, marketplace and status APIs plus /metrics.
func NewHTTPServer(
	c *conf.Server,
	search *service.SearchService,
	marketplace *service.MarketplaceService,
	status *service.StatusService,
	registry *prometheus.Registry,
	logger log.Logger,
) *http.Server {
	logHelper := pkglog.NewLogHelper(log.With(logger, "module", "server/http"))

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Logging(logHelper),
			middleware.Metrics(middleware.NewServerMetrics(registry)),
		),
	}
	if c.HTTP != nil {
		if c.HTTP.Network != "" {
			opts = append(opts, http.Network(c.HTTP.Network))
		}
		if c.HTTP.Addr != "" {
			opts = append(opts, http.Address(c.HTTP.Addr))
		}
		if c.HTTP.Timeout > 0 {
			opts = append(opts, http.Timeout(c.HTTP.Timeout))
		}
	}
	srv := http.NewServer(opts...)

	service.RegisterSearchServiceHTTPServer(srv, search)
	service.RegisterMarketplaceServiceHTTPServer(srv, marketplace)
	service.RegisterStatusServiceHTTPServer(srv, status)

	srv.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	return srv
}

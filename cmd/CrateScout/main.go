// Command CrateScout serves the Discogs search, marketplace and status APIs
// behind a shared rate limiter and circuit breaker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"CrateScout/internal/conf"
	"CrateScout/internal/server"
	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/grpc"
	"github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

// set with -ldflags "-X main.Version=x.y.z"
var (
	Name    = "CrateScout"
	Version = "dev"

	flagconf    string
	flagversion bool

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.BoolVar(&flagversion, "version", false, "print the version and exit")
}

// appMetadata summarizes the effective configuration for the startup log.
func appMetadata(bc *conf.Bootstrap) map[string]string {
	return map[string]string{
		"discogs.base_url":          bc.Discogs.BaseURL,
		"rate_limit_per_minute":     strconv.FormatInt(bc.Resilience.RateLimitPerMinute, 10),
		"search_collection_enabled": strconv.FormatBool(bc.Features.SearchCollectionEnabled),
		"persistence_enabled":       strconv.FormatBool(bc.Data.Database.Source != ""),
		"ownership_cache_enabled":   strconv.FormatBool(bc.Data.Redis.Addr != ""),
	}
}

func newApp(logger log.Logger, gs *grpc.Server, hs *http.Server, cs *server.CronServer) *kratos.App {
	helper := pkglog.NewLogHelper(logger)

	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Logger(logger),
		kratos.Server(gs, hs, cs),
		kratos.AfterStart(func(context.Context) error {
			helper.Success("CrateScout is serving")
			return nil
		}),
		kratos.AfterStop(func(context.Context) error {
			helper.Startup("CrateScout stopped")
			return nil
		}),
	)
}

func main() {
	flag.Parse()
	if flagversion {
		fmt.Println(Name, Version)
		return
	}

	bc, err := conf.NewBootstrap(flagconf)
	if err != nil {
		// zap is not configured yet
		log.Fatalf("load configuration: %v", err)
	}

	zl, err := pkglog.NewZapLogger(bc.Log)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	logger := log.With(pkglog.NewKratosAdapter(zl),
		"service.id", id,
		"service.version", Version,
		"trace.id", tracing.TraceID(),
		"span.id", tracing.SpanID(),
	)

	meta := appMetadata(bc)
	startup := []interface{}{"http.addr", bc.Server.HTTP.Addr, "grpc.addr", bc.Server.GRPC.Addr}
	for k, v := range meta {
		startup = append(startup, k, v)
	}
	pkglog.NewLogHelper(logger).Startup("CrateScout starting", startup...)

	app, cleanup, err := wireApp(bc.Server, bc.Data, bc.Discogs, bc.Resilience, bc.Features, logger)
	if err != nil {
		log.Fatalf("wire application: %v", err)
	}

	err = app.Run()
	cleanup()
	if err != nil {
		pkglog.NewLogHelper(logger).Errorw("msg", "application stopped with error", "error", err)
		_ = zl.Sync()
		os.Exit(1)
	}
}

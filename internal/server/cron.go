package server

import (
	"context"
	"time"

	"CrateScout/internal/biz"
	"CrateScout/internal/conf"
	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

const (
	defaultPruneSpec = "0 30 3 * * *"
	pruneJobTimeout  = 10 * time.Minute
)

// CronServer runs scheduled maintenance jobs as a Kratos transport.Server.
type CronServer struct {
	cron        *cron.Cron
	marketplace *biz.MarketplaceUsecase
	retention   time.Duration
	logger      *pkglog.LogHelper
}

// NewCronServer schedules the price snapshot prune job.
// Runs daily at 03:30 unless data.snapshot_prune_spec says otherwise.
func NewCronServer(c *conf.Data, marketplace *biz.MarketplaceUsecase, logger log.Logger) (*CronServer, error) {
	spec := defaultPruneSpec
	retention := 30 * 24 * time.Hour
	if c != nil {
		if c.SnapshotPruneSpec != "" {
			spec = c.SnapshotPruneSpec
		}
		if c.SnapshotRetention > 0 {
			retention = c.SnapshotRetention
		}
	}

	s := &CronServer{
		cron:        cron.New(cron.WithSeconds()),
		marketplace: marketplace,
		retention:   retention,
		logger:      pkglog.NewLogHelper(log.With(logger, "module", "server/cron")),
	}

	if _, err := s.cron.AddFunc(spec, s.runPrune); err != nil {
		return nil, err
	}

	return s, nil
}

// Start starts the scheduler. It does not block.
func (s *CronServer) Start(_ context.Context) error {
	s.cron.Start()
	s.logger.Scheduler("cron server started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *CronServer) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Scheduler("cron server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CronServer) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneJobTimeout)
	defer cancel()

	s.PruneSnapshots(ctx)
}

// PruneSnapshots removes snapshots older than the retention period.
func (s *CronServer) PruneSnapshots(ctx context.Context) {
	s.logger.Scheduler("starting price snapshot prune", "retention", s.retention.String())

	removed, err := s.marketplace.PruneSnapshots(ctx, s.retention)
	if err != nil {
		s.logger.Errorw("msg", "price snapshot prune failed", "error", err)
		return
	}

	s.logger.Success("price snapshot prune completed", "removed", removed)
}

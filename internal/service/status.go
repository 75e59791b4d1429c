package service

import (
	"context"

	"CrateScout/internal/biz"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const OperationStatusServiceResilience = "/cratescout.v1.StatusService/Resilience"

// StatusService reports the state of the Discogs guards.
type StatusService struct {
	uc *biz.StatusUsecase
}

// NewStatusService creates a new StatusService.
func NewStatusService(uc *biz.StatusUsecase) *StatusService {
	return &StatusService{uc: uc}
}

// Resilience returns the current breaker, limiter and aggregator status.
func (s *StatusService) Resilience(_ context.Context) (*biz.ResilienceStatus, error) {
	return s.uc.Status(), nil
}

// RegisterStatusServiceHTTPServer mounts the status routes on s.
func RegisterStatusServiceHTTPServer(s *http.Server, srv *StatusService) {
	r := s.Route("/")
	r.GET("/api/v1/resilience", func(ctx http.Context) error {
		http.SetOperation(ctx, OperationStatusServiceResilience)
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return srv.Resilience(ctx)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	})
}

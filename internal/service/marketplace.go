package service

import (
	"context"
	"strconv"

	"CrateScout/internal/biz"
	"CrateScout/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationMarketplaceServiceReleasePrices = "/cratescout.v1.MarketplaceService/ReleasePrices"
	OperationMarketplaceServicePriceHistory  = "/cratescout.v1.MarketplaceService/PriceHistory"
)

// MaxPriceBatch caps the number of release ids in one prices request.
const MaxPriceBatch = 100

// ReleasePricesRequest asks for marketplace stats of several releases.
type ReleasePricesRequest struct {
	ReleaseIDs []int64 `json:"release_ids"`
}

// ReleasePricesReply lists the stats that could be fetched, in request order.
type ReleasePricesReply struct {
	Prices []*model.PriceStats `json:"prices"`
}

// PriceHistoryRequest asks for persisted snapshots of one release.
type PriceHistoryRequest struct {
	ReleaseID int64
	Limit     int
}

// PriceHistoryReply lists snapshots, newest first.
type PriceHistoryReply struct {
	ReleaseID int64               `json:"release_id"`
	Snapshots []*model.PriceStats `json:"snapshots"`
}

// MarketplaceService serves pricing and availability lookups.
type MarketplaceService struct {
	uc     *biz.MarketplaceUsecase
	logger *log.Helper
}

// NewMarketplaceService creates a new MarketplaceService.
func NewMarketplaceService(uc *biz.MarketplaceUsecase, logger log.Logger) *MarketplaceService {
	return &MarketplaceService{
		uc:     uc,
		logger: log.NewHelper(log.With(logger, "module", "service/marketplace")),
	}
}

// ReleasePrices returns marketplace stats for req.ReleaseIDs.
func (s *MarketplaceService) ReleasePrices(ctx context.Context, req *ReleasePricesRequest) (*ReleasePricesReply, error) {
	if len(req.ReleaseIDs) == 0 {
		return nil, errors.BadRequest("RELEASE_IDS_REQUIRED", "release_ids must not be empty")
	}
	if len(req.ReleaseIDs) > MaxPriceBatch {
		return nil, errors.BadRequest("TOO_MANY_RELEASE_IDS", "at most "+strconv.Itoa(MaxPriceBatch)+" release ids per request")
	}

	return &ReleasePricesReply{Prices: s.uc.ReleasePrices(ctx, req.ReleaseIDs)}, nil
}

// PriceHistory returns persisted snapshots for req.ReleaseID.
func (s *MarketplaceService) PriceHistory(ctx context.Context, req *PriceHistoryRequest) (*PriceHistoryReply, error) {
	snapshots, err := s.uc.History(ctx, req.ReleaseID, req.Limit)
	if err != nil {
		s.logger.Warnw("msg", "failed to load price history", "release_id", req.ReleaseID, "error", err)
		return nil, err
	}

	return &PriceHistoryReply{ReleaseID: req.ReleaseID, Snapshots: snapshots}, nil
}

// RegisterMarketplaceServiceHTTPServer mounts the marketplace routes on s.
func RegisterMarketplaceServiceHTTPServer(s *http.Server, srv *MarketplaceService) {
	r := s.Route("/")
	r.POST("/api/v1/marketplace/prices", marketplaceServiceReleasePricesHandler(srv))
	r.GET("/api/v1/marketplace/history/{release_id}", marketplaceServicePriceHistoryHandler(srv))
}

func marketplaceServiceReleasePricesHandler(srv *MarketplaceService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in ReleasePricesRequest
		if err := ctx.Bind(&in); err != nil {
			return errors.BadRequest("INVALID_BODY", err.Error())
		}
		http.SetOperation(ctx, OperationMarketplaceServiceReleasePrices)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.ReleasePrices(ctx, req.(*ReleasePricesRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

func marketplaceServicePriceHistoryHandler(srv *MarketplaceService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		releaseID, err := strconv.ParseInt(ctx.Vars().Get("release_id"), 10, 64)
		if err != nil {
			return errors.BadRequest("INVALID_RELEASE_ID", "release_id must be an integer")
		}

		in := PriceHistoryRequest{ReleaseID: releaseID}
		if raw := ctx.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				return errors.BadRequest("INVALID_LIMIT", "limit must be an integer")
			}
			in.Limit = limit
		}

		http.SetOperation(ctx, OperationMarketplaceServicePriceHistory)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.PriceHistory(ctx, req.(*PriceHistoryRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

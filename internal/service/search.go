package service

import (
	"context"
	"strings"

	"CrateScout/internal/biz"
	"CrateScout/internal/model"
	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"
)

const OperationSearchServiceFilterSearch = "/cratescout.v1.SearchService/FilterSearch"

// ErrUsernameRequired is returned when collection filtering is requested without a user.
var ErrUsernameRequired = errors.BadRequest("USERNAME_REQUIRED", "username is required when collection filtering is enabled")

// FilterSearchRequest carries search results to be filtered against a collection.
type FilterSearchRequest struct {
	Username string                `json:"username"`
	Results  []*model.SearchResult `json:"results"`
}

// FilterSearchReply carries the filtered results.
type FilterSearchReply struct {
	Results  []*model.SearchResult `json:"results"`
	Filtered bool                  `json:"filtered"`
}

// SearchService removes releases the caller already owns from search results.
type SearchService struct {
	uc     *biz.OwnershipUsecase
	logger *log.Helper
}

// NewSearchService creates a new SearchService.
func NewSearchService(uc *biz.OwnershipUsecase, logger log.Logger) *SearchService {
	return &SearchService{
		uc:     uc,
		logger: log.NewHelper(log.With(logger, "module", "service/search")),
	}
}

// FilterSearch filters req.Results for req.Username.
func (s *SearchService) FilterSearch(ctx context.Context, req *FilterSearchRequest) (*FilterSearchReply, error) {
	username := strings.TrimSpace(req.Username)
	if s.uc.Enabled() && username == "" {
		return nil, ErrUsernameRequired
	}
	pkglog.SetUsername(ctx, username)

	s.logger.Debugw("msg", "FilterSearch called", "username", username, "results", len(req.Results))

	results := s.uc.FilterOwnedReleases(ctx, username, req.Results)
	if results == nil {
		results = []*model.SearchResult{}
	}

	return &FilterSearchReply{
		Results:  results,
		Filtered: s.uc.Enabled(),
	}, nil
}

// RegisterSearchServiceHTTPServer mounts the search routes on s.
func RegisterSearchServiceHTTPServer(s *http.Server, srv *SearchService) {
	r := s.Route("/")
	r.POST("/api/v1/search/filter", searchServiceFilterSearchHandler(srv))
}

func searchServiceFilterSearchHandler(srv *SearchService) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in FilterSearchRequest
		if err := ctx.Bind(&in); err != nil {
			return errors.BadRequest("INVALID_BODY", err.Error())
		}
		http.SetOperation(ctx, OperationSearchServiceFilterSearch)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.FilterSearch(ctx, req.(*FilterSearchRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(200, out)
	}
}

package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"CrateScout/internal/model"
	"CrateScout/pkg/discogs"
	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/singleflight"
)

// CollectionRepo looks up releases in a user's Discogs collection.
// Concurrent identical lookups share one upstream request.
type CollectionRepo struct {
	client *discogs.Client
	group  singleflight.Group
	logger *pkglog.LogHelper
}

// NewCollectionRepo creates a CollectionRepo.
func NewCollectionRepo(client *discogs.Client, logger log.Logger) *CollectionRepo {
	return &CollectionRepo{
		client: client,
		logger: pkglog.NewLogHelper(log.With(logger, "module", "data/collection")),
	}
}

// GetCollectionReleases returns every instance of q.ReleaseID in q.Username's collection.
func (r *CollectionRepo) GetCollectionReleases(ctx context.Context, q model.OwnershipQuery) (*model.CollectionReleases, error) {
	key := strings.ToLower(q.Username) + ":" + strconv.FormatInt(q.ReleaseID, 10)

	v, err, shared := r.group.Do(key, func() (interface{}, error) {
		resp, err := r.client.CollectionItemsByRelease(ctx, q.Username, q.ReleaseID)
		if err != nil {
			return nil, fmt.Errorf("collection lookup for release %d: %w", q.ReleaseID, err)
		}
		return toCollectionReleases(resp), nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Discogs("collection lookup",
		"username", q.Username,
		"release_id", q.ReleaseID,
		"shared", shared)

	return v.(*model.CollectionReleases), nil
}

func toCollectionReleases(resp *discogs.CollectionItemsResponse) *model.CollectionReleases {
	out := &model.CollectionReleases{
		Releases: make([]model.CollectionRelease, 0, len(resp.Releases)),
	}
	for _, item := range resp.Releases {
		out.Releases = append(out.Releases, model.CollectionRelease{
			ID:         item.ID,
			InstanceID: item.InstanceID,
			FolderID:   item.FolderID,
			Rating:     item.Rating,
			DateAdded:  item.DateAdded,
		})
	}
	return out
}

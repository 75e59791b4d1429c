package data

import (
	"context"
	"fmt"
	"time"

	"CrateScout/internal/model"
	dberrors "CrateScout/pkg/errors"
	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// PriceSnapshot is one persisted marketplace observation.
// IDs are ULIDs derived from FetchedAt, so primary key order follows fetch time.
type PriceSnapshot struct {
	ID          string    `gorm:"type:char(26);primaryKey"`
	ReleaseID   int64     `gorm:"not null;index:idx_release_fetched,priority:1"`
	LowestPrice *float64  `gorm:"type:decimal(12,2)"`
	Currency    string    `gorm:"type:varchar(8)"`
	NumForSale  int       `gorm:"not null"`
	Blocked     bool      `gorm:"not null"`
	FetchedAt   time.Time `gorm:"not null;index:idx_release_fetched,priority:2;index:idx_fetched_at"`
}

// TableName specifies the table name for GORM.
func (PriceSnapshot) TableName() string {
	return "price_snapshots"
}

// PriceSnapshotRepo persists price observations. A nil db disables it and every
// call returns errors.ErrPersistenceDisabled.
type PriceSnapshotRepo struct {
	db     *gorm.DB
	logger *pkglog.LogHelper
}

// NewPriceSnapshotRepo creates a PriceSnapshotRepo.
func NewPriceSnapshotRepo(db *gorm.DB, logger log.Logger) *PriceSnapshotRepo {
	return &PriceSnapshotRepo{
		db:     db,
		logger: pkglog.NewLogHelper(log.With(logger, "module", "data/price_snapshot")),
	}
}

// Enabled reports whether a database is configured.
func (r *PriceSnapshotRepo) Enabled() bool {
	return r.db != nil
}

// SaveSnapshots inserts one row per stats entry in a single batch.
func (r *PriceSnapshotRepo) SaveSnapshots(ctx context.Context, stats []*model.PriceStats) error {
	if r.db == nil {
		return dberrors.ErrPersistenceDisabled
	}
	if len(stats) == 0 {
		return nil
	}

	rows := make([]*PriceSnapshot, 0, len(stats))
	for _, s := range stats {
		if s == nil {
			continue
		}
		rows = append(rows, &PriceSnapshot{
			ID:          ulid.MustNew(ulid.Timestamp(s.FetchedAt), ulid.DefaultEntropy()).String(),
			ReleaseID:   s.ReleaseID,
			LowestPrice: s.LowestPrice,
			Currency:    s.Currency,
			NumForSale:  s.NumForSale,
			Blocked:     s.Blocked,
			FetchedAt:   s.FetchedAt,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("failed to save price snapshots: %w", dberrors.ClassifyDBError(err))
	}

	r.logger.Database("price snapshots saved", "count", len(rows))
	return nil
}

// ListSnapshots returns up to limit snapshots for releaseID, newest first.
func (r *PriceSnapshotRepo) ListSnapshots(ctx context.Context, releaseID int64, limit int) ([]*model.PriceStats, error) {
	if r.db == nil {
		return nil, dberrors.ErrPersistenceDisabled
	}

	var rows []PriceSnapshot
	err := r.db.WithContext(ctx).
		Where("release_id = ?", releaseID).
		Order("fetched_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list price snapshots: %w", dberrors.ClassifyDBError(err))
	}

	out := make([]*model.PriceStats, 0, len(rows))
	for i := range rows {
		out = append(out, &model.PriceStats{
			ReleaseID:   rows[i].ReleaseID,
			LowestPrice: rows[i].LowestPrice,
			Currency:    rows[i].Currency,
			NumForSale:  rows[i].NumForSale,
			Blocked:     rows[i].Blocked,
			FetchedAt:   rows[i].FetchedAt,
		})
	}
	return out, nil
}

// PruneSnapshots deletes snapshots fetched before cutoff and returns the number removed.
func (r *PriceSnapshotRepo) PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.db == nil {
		return 0, dberrors.ErrPersistenceDisabled
	}

	result := r.db.WithContext(ctx).
		Where("fetched_at < ?", cutoff).
		Delete(&PriceSnapshot{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune price snapshots: %w", dberrors.ClassifyDBError(result.Error))
	}

	return result.RowsAffected, nil
}

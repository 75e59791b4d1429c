package data

import (
	"context"
	"fmt"
	"time"

	"CrateScout/internal/conf"
	dberrors "CrateScout/pkg/errors"
	pkglog "CrateScout/pkg/log"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewMySQLClient opens the database holding price snapshots and the circuit audit log.
// An empty DSN disables persistence and yields a nil *gorm.DB.
func NewMySQLClient(c *conf.Data, l log.Logger) (*gorm.DB, func(), error) {
	helper := pkglog.NewLogHelper(log.With(l, "module", "data/mysql"))

	if c == nil || c.Database == nil || c.Database.Source == "" {
		helper.Warnw("msg", "MySQL DSN is empty, price history and circuit audit are disabled")
		return nil, func() {}, nil
	}
	dbc := c.Database

	slow := dbc.SlowQueryThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}

	db, err := gorm.Open(mysql.Open(dbc.Source), &gorm.Config{
		Logger: logger.New(&gormLogAdapter{helper: helper}, logger.Config{
			SlowThreshold:             slow,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open MySQL: %w", dberrors.ClassifyDBError(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if dbc.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbc.MaxOpenConns)
	}
	if dbc.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbc.MaxIdleConns)
	}
	if dbc.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(dbc.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to ping MySQL: %w", dberrors.ClassifyDBError(err))
	}

	if err := db.WithContext(ctx).AutoMigrate(&PriceSnapshot{}, &CircuitAuditLog{}); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	helper.Database("MySQL connected",
		"max_open_conns", dbc.MaxOpenConns,
		"slow_query_threshold", slow.String())

	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			helper.Errorw("msg", "failed to close MySQL", "error", err)
			return
		}
		helper.Database("MySQL connection closed")
	}

	return db, cleanup, nil
}

// gormLogAdapter routes GORM's slow query and error output into the service log.
type gormLogAdapter struct {
	helper *pkglog.LogHelper
}

// Printf implements gorm/logger.Writer.
func (g *gormLogAdapter) Printf(format string, v ...interface{}) {
	g.helper.Warnw("msg", fmt.Sprintf(format, v...), "log_type", "database")
}

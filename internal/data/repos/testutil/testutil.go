package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/cms-backend/internal/data/db"
	"github.com/yungbote/cms-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a migrated database private to the calling test. It is a SQLite
// file under tb.TempDir() unless TEST_POSTGRES_DSN is set, in which case a
// throwaway schema is created on that server.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	var (
		gdb *gorm.DB
		err error
	)
	if dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN")); dsn != "" {
		gdb, err = openPostgresSchema(tb, dsn)
	} else {
		gdb, err = openSQLite(tb)
	}
	if err != nil {
		tb.Fatalf("failed to init test db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	return gdb
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}
}

func openSQLite(tb testing.TB) (*gorm.DB, error) {
	path := filepath.Join(tb.TempDir(), "test.db")
	gdb, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), gormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return gdb, nil
}

func openPostgresSchema(tb testing.TB, dsn string) (*gorm.DB, error) {
	admin, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}
	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := admin.Exec(fmt.Sprintf(`CREATE SCHEMA %s`, schema)).Error; err != nil {
		return nil, err
	}
	tb.Cleanup(func() {
		_ = admin.Exec(fmt.Sprintf(`DROP SCHEMA IF EXISTS %s CASCADE`, schema)).Error
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	scoped := dsn
	switch {
	case strings.HasPrefix(scoped, "postgres://"), strings.HasPrefix(scoped, "postgresql://"):
		sep := "?"
		if strings.Contains(scoped, "?") {
			sep = "&"
		}
		scoped += sep + "search_path=" + schema
	default:
		scoped += " search_path=" + schema
	}
	gdb, err := gorm.Open(postgres.Open(scoped), gormConfig())
	if err != nil {
		return nil, err
	}
	tb.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb, nil
}

// QueryCounter counts SELECT statements executed through gorm's query callback.
type QueryCounter struct {
	n       atomic.Int64
	enabled atomic.Bool
}

func (c *QueryCounter) Reset()       { c.n.Store(0) }
func (c *QueryCounter) Count() int64 { return c.n.Load() }
func (c *QueryCounter) Pause()       { c.enabled.Store(false) }
func (c *QueryCounter) Resume()      { c.enabled.Store(true) }

// CountQueries registers a query callback on gdb. Each call must use a
// distinct database handle (DB returns one per test).
func CountQueries(tb testing.TB, gdb *gorm.DB) *QueryCounter {
	tb.Helper()
	c := &QueryCounter{}
	c.enabled.Store(true)
	name := "testutil:count_queries"
	err := gdb.Callback().Query().After("gorm:query").Register(name, func(*gorm.DB) {
		if c.enabled.Load() {
			c.n.Add(1)
		}
	})
	if err != nil {
		tb.Fatalf("register query counter: %v", err)
	}
	return c
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrInt(v int) *int { return &v }

func PtrString(v string) *string { return &v }

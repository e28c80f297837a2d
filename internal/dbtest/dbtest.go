// Package dbtest opens throw-away SQLite databases migrated with the
// production model list.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/intellicog/records/internal/models"
	pkgdb "github.com/intellicog/records/pkg/db"
)

func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "records.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	cfg := pkgdb.GormConfig()
	cfg.Logger = logger.Discard
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		_ = pkgdb.Close(db)
	})
	return db
}

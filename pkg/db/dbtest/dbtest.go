// Package dbtest opens isolated sqlite databases for persistence tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/vendkiosk/kiosk-backend/pkg/db"
	"github.com/vendkiosk/kiosk-backend/pkg/db/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

// Open returns a client over a fresh in-memory database with every model
// migrated. A single connection is used so transactions serialize.
func Open(t testing.TB) *db.Client {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db.Wrap(conn)
}

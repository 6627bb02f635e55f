package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vendkiosk/kiosk-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestKioskMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_kiosks"), []string{
		"CREATE TABLE IF NOT EXISTS kiosks",
		"CONSTRAINT uq_kiosks_code UNIQUE (code)",
		"CONSTRAINT uq_kiosks_pair_code_4 UNIQUE (pair_code_4)",
		"config_version BIGINT NOT NULL DEFAULT 1",
		"CREATE TABLE IF NOT EXISTS kiosk_status_logs",
		"CREATE TABLE IF NOT EXISTS kiosk_screen_images",
		"REFERENCES kiosks(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS kiosks",
	})
}

func TestVendingSlotMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_vending_slots"), []string{
		"CONSTRAINT uq_vending_slots_position UNIQUE (kiosk_id, row_num, col_num)",
		"CONSTRAINT uq_kiosk_products_kiosk_base UNIQUE (kiosk_id, base_product_id)",
		"CONSTRAINT uq_vending_slot_products_slot UNIQUE (slot_id)",
		"FOREIGN KEY (slot_id) REFERENCES vending_slots(id) ON DELETE CASCADE",
		"CHECK (current_stock >= 0)",
		"DROP TABLE IF EXISTS vending_slot_products",
	})
}

func TestQrAuthMigrationContainsStatusCheck(t *testing.T) {
	assertContains(t, readMigration(t, "create_qr_auth_sessions"), []string{
		"CREATE TABLE IF NOT EXISTS qr_auth_sessions",
		"CHECK (status IN ('PENDING', 'VERIFIED', 'EXPIRED', 'CANCELLED'))",
		"sms_code_hash VARCHAR(255)",
	})
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("expected shipped migrations to validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to fail validation")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Slot Notes")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_slot_notes.sql") {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	embedded, err := fs.Glob(migrate.Files(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	if len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
	if err := migrate.ValidateFS(migrate.Files()); err != nil {
		t.Fatalf("embedded migrations should validate: %v", err)
	}
}

func TestCreateSQLMigrationRefusesEmptySlug(t *testing.T) {
	if _, err := migrate.CreateSQLMigration(t.TempDir(), " !! "); err == nil {
		t.Fatal("expected a name without letters or digits to fail")
	}
}

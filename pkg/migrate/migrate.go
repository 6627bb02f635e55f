package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where `create` and `validate` operate on disk. Runners built
// for this dir read the copy compiled into the binary instead.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Files returns the migrations shipped with the binary.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

func sourceFor(dir string) fs.FS {
	if dir == "" || filepath.Clean(dir) == DefaultDir {
		return Files()
	}
	return os.DirFS(dir)
}

// Runner applies goose migrations. The SQL files target Postgres; sqlite
// databases are built from the models (see AutoMigrateModels).
type Runner struct {
	provider *goose.Provider
}

func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, sourceFor(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

func (r *Runner) Up(ctx context.Context) ([]*goose.MigrationResult, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("goose up: %w", err)
	}
	return results, nil
}

// Down rolls back the most recent migration only.
func (r *Runner) Down(ctx context.Context) (*goose.MigrationResult, error) {
	result, err := r.provider.Down(ctx)
	if err != nil {
		return result, fmt.Errorf("goose down: %w", err)
	}
	return result, nil
}

func (r *Runner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	return statuses, nil
}

// MigrateTo moves up or down to target (YYYYMMDDHHMMSS) from the current
// database version.
func (r *Runner) MigrateTo(ctx context.Context, target string) ([]*goose.MigrationResult, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == version:
		return nil, nil
	case current < version:
		results, err := r.provider.UpTo(ctx, version)
		if err != nil {
			return results, fmt.Errorf("goose up-to %d: %w", version, err)
		}
		return results, nil
	default:
		results, err := r.provider.DownTo(ctx, version)
		if err != nil {
			return results, fmt.Errorf("goose down-to %d: %w", version, err)
		}
		return results, nil
	}
}

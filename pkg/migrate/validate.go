package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir checks the migrations in dir on disk.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir))
}

// ValidateFS checks filenames, version uniqueness and goose annotations.
func ValidateFS(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	versions := make(map[string]string, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := checkAnnotations(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func checkAnnotations(sql string) error {
	up := strings.Index(sql, "-- +goose Up")
	down := strings.Index(sql, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case down < 0:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case down < up:
		return fmt.Errorf("declares Down before Up")
	}
	if strings.Count(sql, "-- +goose StatementBegin") != strings.Count(sql, "-- +goose StatementEnd") {
		return fmt.Errorf("unbalanced StatementBegin/StatementEnd")
	}
	return nil
}

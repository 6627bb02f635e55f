package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/vendkiosk/kiosk-backend/pkg/config"
	"github.com/vendkiosk/kiosk-backend/pkg/db"
	"github.com/vendkiosk/kiosk-backend/pkg/logger"
	"github.com/vendkiosk/kiosk-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory (the default runs the embedded copy)")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	flag.Parse()

	// create and validate only touch files.
	switch *cmd {
	case "create":
		if *name == "" {
			exit("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exit("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exit("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     logger.IsConsoleFormat(cfg.App.LogFormat),
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(ctx, "failed to extract sql.DB", err)
		os.Exit(1)
	}
	runner, err := migrate.NewRunner(sqlDB, *dir)
	if err != nil {
		logg.Error(ctx, "failed to build migration runner", err)
		os.Exit(1)
	}

	switch *cmd {
	case "up":
		results, err := runner.Up(ctx)
		printResults(results)
		if err != nil {
			exit("%v", err)
		}
	case "down":
		result, err := runner.Down(ctx)
		if result != nil {
			printResults([]*goose.MigrationResult{result})
		}
		if err != nil {
			exit("%v", err)
		}
	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			exit("%v", err)
		}
		printStatus(statuses)
	case "version":
		if *version == "" {
			exit("missing -version for version command")
		}
		results, err := runner.MigrateTo(ctx, *version)
		printResults(results)
		if err != nil {
			exit("%v", err)
		}
	default:
		exit("unknown -cmd value: %s", *cmd)
	}
}

func printResults(results []*goose.MigrationResult) {
	if len(results) == 0 {
		fmt.Println("no migrations to run")
		return
	}
	for _, r := range results {
		fmt.Printf("%-4s %d %s (%s)\n", r.Direction, r.Source.Version, r.Source.Path, r.Duration)
	}
}

func printStatus(statuses []*goose.MigrationStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, s := range statuses {
		applied := "-"
		if !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
	}
	_ = w.Flush()
}

func exit(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

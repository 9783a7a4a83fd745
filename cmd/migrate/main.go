package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/db"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// offline commands only touch the migrations directory.
var offline = map[string]func(opts options) error{
	"create": func(opts options) error {
		if opts.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, time.Now())
		if err != nil {
			return fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(opts options) error {
		count, err := migrate.ValidateDir(opts.dir)
		if err != nil {
			return fmt.Errorf("migration validation failed: %w", err)
		}
		fmt.Printf("migration validation passed (%d files)\n", count)
		return nil
	},
}

var online = map[string]func(ctx context.Context, m *migrate.Migrator, opts options) error{
	"up": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		return report(m.Up(ctx))
	},
	"down": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		return report(m.Down(ctx))
	},
	"version": func(ctx context.Context, m *migrate.Migrator, opts options) error {
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return report(m.To(ctx, opts.version))
	},
	"status": func(ctx context.Context, m *migrate.Migrator, _ options) error {
		rows, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, row := range rows {
			state := "pending"
			if row.Applied {
				state = "applied"
			}
			fmt.Printf("%-8s %d %s\n", state, row.Version, row.Path)
		}
		return nil
	},
}

func report(results []migrate.Result, err error) error {
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("no migrations to run")
	}
	for _, r := range results {
		fmt.Printf("%-4s %d %s (%s)\n", r.Direction, r.Version, r.Path, r.Duration)
	}
	return nil
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	opts := options{}
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if run, ok := offline[*cmd]; ok {
		exitOnError(run(opts))
		return
	}
	run, ok := online[*cmd]
	if !ok {
		exitOnError(fmt.Errorf("unknown -cmd value: %s", *cmd))
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": opts.dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)
	migrator, err := migrate.New(sqlDB, opts.dir)
	requireResource(ctx, logg, "migrations", err)

	logg.Info(ctx, "migrate ready")
	if err := run(ctx, migrator, opts); err != nil {
		dbClient.Close()
		exitOnError(err)
	}
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

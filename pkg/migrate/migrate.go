// Package migrate applies the SQL migrations under pkg/migrate/migrations
// with a goose provider.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is relative to the repository root, where every cmd runs.
const DefaultDir = "pkg/migrate/migrations"

// Result describes one migration applied or rolled back.
type Result struct {
	Version   int64
	Path      string
	Direction string
	Duration  string
}

// Status describes one migration and whether it is applied.
type Status struct {
	Version int64
	Path    string
	Applied bool
}

// Migrator runs the migrations of one directory against one database.
type Migrator struct {
	provider *goose.Provider
}

// New builds a Migrator for dir. It fails when dir holds no migrations.
func New(db *sql.DB, dir string) (*Migrator, error) {
	switch {
	case db == nil:
		return nil, errors.New("db is required")
	case dir == "":
		return nil, errors.New("dir is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider for %q: %w", dir, err)
	}
	return &Migrator{provider: provider}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) ([]Result, error) {
	res, err := m.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}
	return results(res), nil
}

// Down rolls back the latest applied migration.
func (m *Migrator) Down(ctx context.Context) ([]Result, error) {
	res, err := m.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return results([]*goose.MigrationResult{res}), nil
}

// To moves the schema up or down until version is the latest applied.
func (m *Migrator) To(ctx context.Context, version string) ([]Result, error) {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", version, err)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	var res []*goose.MigrationResult
	switch {
	case current < target:
		res, err = m.provider.UpTo(ctx, target)
	case current > target:
		res, err = m.provider.DownTo(ctx, target)
	}
	if err != nil {
		return nil, fmt.Errorf("goose to %d: %w", target, err)
	}
	return results(res), nil
}

// Status lists every known migration in version order.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	rows, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		out = append(out, Status{
			Version: row.Source.Version,
			Path:    row.Source.Path,
			Applied: row.State == goose.StateApplied,
		})
	}
	return out, nil
}

func results(in []*goose.MigrationResult) []Result {
	out := make([]Result, 0, len(in))
	for _, r := range in {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Result{
			Version:   r.Source.Version,
			Path:      r.Source.Path,
			Direction: r.Direction,
			Duration:  r.Duration.String(),
		})
	}
	return out
}

// Package postgres holds the durable row store the persistence consumer
// appends to.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/devpulse/devpulse/internal/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New connects to Postgres and runs pending migrations.
func New(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	return &Store{pool: pool, log: log}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close shuts the pool down.
func (s *Store) Close() {
	s.pool.Close()
}

// InsertPost appends a post row. Conflicts on the deterministic document id
// are ignored, so redelivered messages leave exactly one row behind.
func (s *Store) InsertPost(ctx context.Context, docID string, p models.Post, occurredAt time.Time) error {
	const q = `
		INSERT INTO raw_post (doc_id, source, title, url, posted_at, date_kst)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doc_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q, docID, p.Source, p.Title, p.URL, occurredAt, p.DateKST)
	if err != nil {
		return fmt.Errorf("insert raw_post: %w", err)
	}
	return nil
}

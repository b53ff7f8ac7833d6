// Package system stores service metadata in a relational database and
// reports its connectivity.
package system

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/scilab-ai/scilab/backend/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsTable = "system_migrations"

var ErrNotFound = errors.New("system info not found")

type Info struct {
	Key       string    `json:"key"`
	Value     *string   `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store wraps the system database.
type Store struct {
	db *sql.DB
}

// Open connects to databaseURL with the postgres driver. The connection is
// verified lazily.
func Open(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open system database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded migrations, tracked in their own table so
// they can share a database with the graph store.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	driver, err := postgres.WithInstance(s.db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply system migrations: %w", err)
	}
	logger.Info("[System] Migrations applied")
	return nil
}

// Ping runs SELECT 1.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		logger.Error("[System] Database connection check failed", "err", err)
		return err
	}
	return nil
}

func (s *Store) GetInfo(ctx context.Context, key string) (Info, error) {
	var info Info
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value, created_at, updated_at FROM system_info WHERE key = $1`, key,
	).Scan(&info.Key, &info.Value, &info.CreatedAt, &info.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, err
	}
	return info, nil
}

// UpsertInfo creates key or replaces its value.
func (s *Store) UpsertInfo(ctx context.Context, key string, value *string) (Info, error) {
	var info Info
	err := s.db.QueryRowContext(ctx, `
INSERT INTO system_info (key, value)
VALUES ($1, $2)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
RETURNING key, value, created_at, updated_at`, key, value,
	).Scan(&info.Key, &info.Value, &info.CreatedAt, &info.UpdatedAt)
	if err != nil {
		return Info{}, err
	}
	return info, nil
}

// Redact hides the password of a database URL for logging.
func Redact(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.User == nil {
		return databaseURL
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

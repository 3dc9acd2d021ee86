package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"adventure-engine/pkg/story"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	getStoryQuery = `SELECT slug, title, content, homepage_display, owner, is_active,
		sessions, requests, tokens, costs, created_at, updated_at
		FROM stories WHERE slug = $1`

	listStoriesQuery = `SELECT slug, title, content, homepage_display, owner, is_active,
		sessions, requests, tokens, costs, created_at, updated_at
		FROM stories WHERE is_active OR $1 ORDER BY slug`

	listHomepageQuery = `SELECT slug, title, homepage_display FROM stories
		WHERE is_active ORDER BY slug`

	getOwnerQuery = `SELECT owner FROM stories WHERE slug = $1`

	upsertStoryQuery = `INSERT INTO stories (slug, title, content, homepage_display, owner, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (slug) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			homepage_display = EXCLUDED.homepage_display,
			owner = EXCLUDED.owner,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING slug, title, content, homepage_display, owner, is_active,
			sessions, requests, tokens, costs, created_at, updated_at`

	setActiveQuery = `UPDATE stories SET is_active = $2, updated_at = now()
		WHERE slug = ANY($1) AND is_active <> $2`

	incrementUsageQuery = `UPDATE stories SET
		sessions = sessions + $2,
		requests = requests + $3,
		tokens = tokens + $4,
		costs = costs + $5
		WHERE slug = $1`
)

// PostgresStore implements StoryStore on a shared pgx connection pool.
// Individual statements rely on per-statement isolation only; an upsert and
// a concurrent counter increment are not atomic with each other.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Ensure PostgresStore implements StoryStore interface
var _ StoryStore = (*PostgresStore)(nil)

// storyRow mirrors the stories table for scanning.
type storyRow struct {
	Slug            string    `db:"slug"`
	Title           string    `db:"title"`
	Content         string    `db:"content"`
	HomepageDisplay []byte    `db:"homepage_display"`
	Owner           string    `db:"owner"`
	IsActive        bool      `db:"is_active"`
	Sessions        int64     `db:"sessions"`
	Requests        int64     `db:"requests"`
	Tokens          int64     `db:"tokens"`
	Costs           float64   `db:"costs"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r *storyRow) toStory() (*story.Story, error) {
	homepage := make(map[string]story.HomepageEntry)
	if len(r.HomepageDisplay) > 0 {
		if err := json.Unmarshal(r.HomepageDisplay, &homepage); err != nil {
			return nil, fmt.Errorf("failed to unmarshal homepage display for %q: %w", r.Slug, err)
		}
	}
	return &story.Story{
		Slug:     r.Slug,
		Title:    r.Title,
		Content:  r.Content,
		Homepage: homepage,
		Owner:    r.Owner,
		IsActive: r.IsActive,
		Usage: story.Usage{
			Sessions: r.Sessions,
			Requests: r.Requests,
			Tokens:   r.Tokens,
			Costs:    r.Costs,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// ApplyMigrations brings the schema up to date using the embedded
// migration files.
func ApplyMigrations(connString string) error {
	sqlDB, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	p.logger.Info("Database connection pool closed")
	return nil
}

func (p *PostgresStore) GetStory(ctx context.Context, slug string) (*story.Story, error) {
	var row storyRow
	if err := pgxscan.Get(ctx, p.pool, &row, getStoryQuery, slug); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get story %q: %w", slug, err)
	}
	return row.toStory()
}

func (p *PostgresStore) ListStories(ctx context.Context, includeInactive bool) ([]story.Story, error) {
	var rows []storyRow
	if err := pgxscan.Select(ctx, p.pool, &rows, listStoriesQuery, includeInactive); err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}

	stories := make([]story.Story, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toStory()
		if err != nil {
			return nil, err
		}
		stories = append(stories, *s)
	}
	return stories, nil
}

func (p *PostgresStore) ListHomepage(ctx context.Context, lang string) ([]HomepageItem, error) {
	var rows []struct {
		Slug            string `db:"slug"`
		Title           string `db:"title"`
		HomepageDisplay []byte `db:"homepage_display"`
	}
	if err := pgxscan.Select(ctx, p.pool, &rows, listHomepageQuery); err != nil {
		return nil, fmt.Errorf("failed to list homepage stories: %w", err)
	}

	items := make([]HomepageItem, 0, len(rows))
	for _, row := range rows {
		s := story.Story{Slug: row.Slug, Title: row.Title}
		if len(row.HomepageDisplay) > 0 {
			if err := json.Unmarshal(row.HomepageDisplay, &s.Homepage); err != nil {
				p.logger.Warn("Skipping story with bad homepage display", "slug", row.Slug, "error", err)
				continue
			}
		}
		entry := s.HomepageFor(lang)
		items = append(items, HomepageItem{
			Slug:        row.Slug,
			Title:       entry.Title,
			Description: entry.Description,
		})
	}
	return items, nil
}

func (p *PostgresStore) UpsertStory(ctx context.Context, s *story.Story) (*story.Story, error) {
	// Ownership check happens before the write. This is deliberately not
	// wrapped in a transaction with the upsert; per-statement isolation
	// is the only guarantee the store makes.
	var existingOwner string
	err := p.pool.QueryRow(ctx, getOwnerQuery, s.Slug).Scan(&existingOwner)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check story owner: %w", err)
	}
	if existingOwner != "" && existingOwner != s.Owner {
		return nil, ErrOwnerMismatch
	}

	homepage, err := json.Marshal(s.Homepage)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal homepage display: %w", err)
	}

	var row storyRow
	if err := pgxscan.Get(ctx, p.pool, &row, upsertStoryQuery,
		s.Slug, s.Title, s.Content, homepage, s.Owner, s.IsActive); err != nil {
		return nil, fmt.Errorf("failed to upsert story %q: %w", s.Slug, err)
	}
	return row.toStory()
}

func (p *PostgresStore) SetActive(ctx context.Context, slugs []string, active bool) (int64, error) {
	tag, err := p.pool.Exec(ctx, setActiveQuery, slugs, active)
	if err != nil {
		return 0, fmt.Errorf("failed to update active flag: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) IncrementUsage(ctx context.Context, slug string, delta story.Usage) error {
	tag, err := p.pool.Exec(ctx, incrementUsageQuery,
		slug, delta.Sessions, delta.Requests, delta.Tokens, delta.Costs)
	if err != nil {
		return fmt.Errorf("failed to increment usage for %q: %w", slug, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

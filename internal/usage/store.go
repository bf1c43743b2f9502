package usage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/hieuminhle/cdc-weltwissen/internal/config"
	"github.com/hieuminhle/cdc-weltwissen/internal/logger"
)

// Record is one answered (or blocked) request. Token counts of -1 mean the
// request never reached the model because the inspection gate rejected it.
type Record struct {
	ID             int64     `db:"id"`
	SessionID      string    `db:"session_id"`
	OIDHashed      string    `db:"oid_hashed"`
	ChatType       string    `db:"chat_type"`
	Region         string    `db:"region"`
	PromptTokens   int       `db:"prompt_tokens"`
	ResponseTokens int       `db:"response_tokens"`
	ElapsedMS      int64     `db:"elapsed_ms"`
	CreatedAt      time.Time `db:"created_at"`
}

// Store persists usage metrics in PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewStore creates a new usage store instance
func NewStore(cfg config.UsageConfig, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{
		db:     db,
		logger: log,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize usage store: %w", err)
	}

	log.Info("Usage store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns))

	return store, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS usage_records (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			oid_hashed TEXT NOT NULL DEFAULT '',
			chat_type TEXT NOT NULL,
			region TEXT NOT NULL DEFAULT '',
			prompt_tokens INTEGER NOT NULL,
			response_tokens INTEGER NOT NULL,
			elapsed_ms BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		ALTER TABLE usage_records
			ADD COLUMN IF NOT EXISTS oid_hashed TEXT NOT NULL DEFAULT '';
		CREATE INDEX IF NOT EXISTS idx_usage_records_created_at
			ON usage_records (created_at);
		CREATE INDEX IF NOT EXISTS idx_usage_records_session
			ON usage_records (session_id);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create usage schema: %w", err)
	}

	return nil
}

// Insert stores a single usage record
func (s *Store) Insert(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO usage_records
			(session_id, oid_hashed, chat_type, region, prompt_tokens, response_tokens, elapsed_ms, created_at)
		VALUES
			(:session_id, :oid_hashed, :chat_type, :region, :prompt_tokens, :response_tokens, :elapsed_ms, :created_at)`

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

// Range returns all records created inside the half-open window [from, to),
// oldest first.
func (s *Store) Range(ctx context.Context, from, to time.Time) ([]Record, error) {
	query := `
		SELECT id, session_id, oid_hashed, chat_type, region, prompt_tokens, response_tokens, elapsed_ms, created_at
		FROM usage_records
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC`

	var records []Record
	if err := s.db.SelectContext(ctx, &records, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}

	return records, nil
}

// TokensBySession aggregates token totals per session across the window.
func (s *Store) TokensBySession(ctx context.Context, from, to time.Time) (map[string]int, error) {
	query := `
		SELECT session_id, SUM(prompt_tokens + response_tokens) AS total
		FROM usage_records
		WHERE created_at >= $1 AND created_at < $2
		  AND prompt_tokens >= 0
		GROUP BY session_id`

	rows, err := s.db.QueryxContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage records: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int)
	for rows.Next() {
		var session string
		var total int
		if err := rows.Scan(&session, &total); err != nil {
			return nil, fmt.Errorf("failed to scan usage aggregate: %w", err)
		}
		totals[session] = total
	}

	return totals, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// maskDatabaseURL hides credentials in log output
func maskDatabaseURL(url string) string {
	if idx := strings.Index(url, "@"); idx != -1 {
		if schemeIdx := strings.Index(url, "://"); schemeIdx != -1 {
			return url[:schemeIdx+3] + "***:***" + url[idx:]
		}
	}
	return url
}

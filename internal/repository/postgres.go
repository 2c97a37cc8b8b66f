package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/telhawk-systems/flowhook/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, connString string, maxConns int32) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// SaveLog inserts one record. Re-saving an existing id is a no-op.
func (r *PostgresRepository) SaveLog(ctx context.Context, rec models.LogRecord) error {
	query := `
		INSERT INTO workspace_logs (id, workspace_id, log_type, node_id, details, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	details := []byte(rec.Details)
	if len(details) == 0 {
		details = []byte("null")
	}

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.WorkspaceID, string(rec.Type), rec.NodeID, details, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save log: %w", err)
	}

	return nil
}

// ListRecent returns up to limit records of one type, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, workspaceID string, logType models.LogType, limit int) ([]models.LogRecord, error) {
	query := `
		SELECT id::text, workspace_id, log_type, COALESCE(node_id, ''), details, created_at
		FROM workspace_logs
		WHERE workspace_id = $1 AND log_type = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, workspaceID, string(logType), ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	records := []models.LogRecord{}
	for rows.Next() {
		var (
			rec     models.LogRecord
			typ     string
			details []byte
		)
		if err := rows.Scan(&rec.ID, &rec.WorkspaceID, &typ, &rec.NodeID, &details, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		rec.Type = models.LogType(typ)
		rec.Details = json.RawMessage(details)
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate logs: %w", err)
	}

	return records, nil
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the connection pool.
func (r *PostgresRepository) Close() {
	r.pool.Close()
}

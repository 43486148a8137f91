package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/snapsight/client/internal/db"
	"github.com/snapsight/client/internal/models"
)

// HistoryRepository defines the data access contract for past analysis runs.
type HistoryRepository interface {
	Insert(ctx context.Context, userID string, item models.DetailedHistoryItem) error
	List(ctx context.Context, userID string, limit int, cursor string) (models.HistoryPage, error)
	Get(ctx context.Context, userID, id string) (models.DetailedHistoryItem, error)
}

// analysisPayload is the JSONB shape stored alongside each history row.
type analysisPayload struct {
	Tasks      []string          `json:"tasks"`
	Curation   models.Curation   `json:"curation"`
	Caption    models.Caption    `json:"caption"`
	Songs      []models.Song     `json:"songs"`
	Topics     []models.Topic    `json:"topics"`
	Engagement models.Engagement `json:"engagement"`
	Meta       models.Meta       `json:"meta"`
}

// PostgresHistoryRepository provides PostgreSQL-backed persistence for
// analysis history.
type PostgresHistoryRepository struct {
	pool db.Pool
}

// NewPostgresHistoryRepository constructs a history repository backed by PostgreSQL.
func NewPostgresHistoryRepository(pool db.Pool) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{pool: pool}
}

// Insert stores a completed analysis run.
func (r *PostgresHistoryRepository) Insert(ctx context.Context, userID string, item models.DetailedHistoryItem) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	payload, err := json.Marshal(analysisPayload{
		Tasks:      item.Tasks,
		Curation:   item.Curation,
		Caption:    item.Caption,
		Songs:      item.Songs,
		Topics:     item.Topics,
		Engagement: item.Engagement,
		Meta:       item.Meta,
	})
	if err != nil {
		return fmt.Errorf("encode analysis payload: %w", err)
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO analyses (id, user_id, file_key, access_url, payload, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, item.ID, userID, item.FileKey, item.AccessURL, payload, item.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert analysis: %w", err)
	}

	return nil
}

// List returns one page of the user's history, newest first. The cursor is
// the id of the last item of the previous page; an empty cursor starts from
// the newest row.
func (r *PostgresHistoryRepository) List(ctx context.Context, userID string, limit int, cursor string) (models.HistoryPage, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.HistoryPage{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// Fetch one row past the limit to learn whether another page exists.
	var rows pgx.Rows
	if cursor == "" {
		rows, err = conn.Query(ctx, `
            SELECT id, file_key, access_url, created_at
            FROM analyses
            WHERE user_id = $1
            ORDER BY created_at DESC, id DESC
            LIMIT $2
        `, userID, limit+1)
	} else {
		row := conn.QueryRow(ctx, `
            SELECT created_at
            FROM analyses
            WHERE user_id = $1 AND id = $2
        `, userID, cursor)

		var pivot time.Time
		if err := row.Scan(&pivot); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.HistoryPage{}, ErrNotFound
			}
			return models.HistoryPage{}, fmt.Errorf("resolve history cursor: %w", err)
		}

		rows, err = conn.Query(ctx, `
            SELECT id, file_key, access_url, created_at
            FROM analyses
            WHERE user_id = $1 AND (created_at, id) < ($2, $3)
            ORDER BY created_at DESC, id DESC
            LIMIT $4
        `, userID, pivot, cursor, limit+1)
	}
	if err != nil {
		return models.HistoryPage{}, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var items []models.HistoryItem
	for rows.Next() {
		var item models.HistoryItem
		if err := rows.Scan(&item.ID, &item.FileKey, &item.AccessURL, &item.CreatedAt); err != nil {
			return models.HistoryPage{}, fmt.Errorf("scan history item: %w", err)
		}
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return models.HistoryPage{}, fmt.Errorf("iterate history: %w", err)
	}

	hasNext := len(items) > limit
	if hasNext {
		items = items[:limit]
	}

	info := models.PageInfo{Limit: limit, HasNextPage: hasNext}
	if hasNext && len(items) > 0 {
		next := items[len(items)-1].ID
		info.NextCursor = &next
	}

	return models.HistoryPage{Items: items, PageInfo: info}, nil
}

// Get fetches a single history entry with its full analysis payload.
func (r *PostgresHistoryRepository) Get(ctx context.Context, userID, id string) (models.DetailedHistoryItem, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.DetailedHistoryItem{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, file_key, access_url, payload, created_at
        FROM analyses
        WHERE user_id = $1 AND id = $2
    `, userID, id)

	var (
		item models.DetailedHistoryItem
		raw  []byte
	)
	if err := row.Scan(&item.ID, &item.FileKey, &item.AccessURL, &raw, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DetailedHistoryItem{}, ErrNotFound
		}
		return models.DetailedHistoryItem{}, fmt.Errorf("select analysis: %w", err)
	}
	item.CreatedAt = item.CreatedAt.UTC()

	var payload analysisPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.DetailedHistoryItem{}, fmt.Errorf("decode analysis payload: %w", err)
	}

	item.Tasks = payload.Tasks
	item.Curation = payload.Curation
	item.Caption = payload.Caption
	item.Songs = payload.Songs
	item.Topics = payload.Topics
	item.Engagement = payload.Engagement
	item.Meta = payload.Meta

	return item, nil
}

var _ HistoryRepository = (*PostgresHistoryRepository)(nil)

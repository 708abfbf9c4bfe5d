package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"Linkboard/internal/core/resources"
)

type postgresBookmarkRepo struct {
	db *sql.DB
}

// NewBookmarkRepository creates a new PostgreSQL bookmark repository
func NewBookmarkRepository(db *sql.DB) resources.BookmarkRepository {
	return &postgresBookmarkRepo{db: db}
}

// Toggle deletes the bookmark if present, otherwise creates it
func (r *postgresBookmarkRepo) Toggle(ctx context.Context, userID, resourceID string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deleted string
	err = tx.QueryRowContext(ctx,
		`DELETE FROM resource_bookmarks WHERE user_id = $1 AND resource_id = $2 RETURNING resource_id::text`,
		userID, resourceID,
	).Scan(&deleted)

	bookmarked := false
	switch {
	case isNoRows(err):
		_, err = tx.ExecContext(ctx, `
			INSERT INTO resource_bookmarks (user_id, resource_id, created_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (user_id, resource_id) DO NOTHING
		`, userID, resourceID)
		if err != nil {
			return false, fmt.Errorf("failed to insert bookmark: %w", err)
		}
		bookmarked = true
	case err != nil:
		return false, fmt.Errorf("failed to delete bookmark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit bookmark toggle: %w", err)
	}
	return bookmarked, nil
}

// ListByUser returns a user's bookmarked published resources, most recent bookmark first
func (r *postgresBookmarkRepo) ListByUser(ctx context.Context, userID string) ([]*resources.Resource, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM resource_bookmarks b
		INNER JOIN resources r ON r.id = b.resource_id
		%s
		WHERE b.user_id = $1 AND r.is_published
		GROUP BY r.id, c.id, b.created_at
		ORDER BY b.created_at DESC
	`, resourceColumns, resourceJoins)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResources(rows)
}

// BookmarkedAmong reports which of resourceIDs the user has bookmarked
func (r *postgresBookmarkRepo) BookmarkedAmong(ctx context.Context, userID string, resourceIDs []string) (map[string]bool, error) {
	marked := make(map[string]bool, len(resourceIDs))
	valid := make([]string, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return marked, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT resource_id::text FROM resource_bookmarks WHERE user_id = $1 AND resource_id = ANY($2::uuid[])`,
		userID, pq.Array(valid),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		marked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookmarks: %w", err)
	}
	return marked, nil
}

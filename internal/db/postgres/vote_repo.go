package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"Linkboard/internal/core/upvotes"
)

type postgresUpvoteRepo struct {
	db *sql.DB
}

// NewUpvoteRepository creates a new PostgreSQL durable vote log
func NewUpvoteRepository(db *sql.DB) upvotes.Repository {
	return &postgresUpvoteRepo{db: db}
}

// ResourceExists checks the resources table. Drafts count as missing so the
// upvote path agrees with GetByID.
// Non-UUID ids can never match, so they short-circuit without a query
func (r *postgresUpvoteRepo) ResourceExists(ctx context.Context, resourceID string) (bool, error) {
	if !validID(resourceID) {
		return false, nil
	}

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM resources WHERE id = $1 AND is_published)`, resourceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check resource existence: %w", err)
	}
	return exists, nil
}

// Exists reports whether the vote fact is already recorded
func (r *postgresUpvoteRepo) Exists(ctx context.Context, userID, resourceID string) (bool, error) {
	if !validID(resourceID) {
		return false, nil
	}

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM resource_upvotes WHERE user_id = $1 AND resource_id = $2)`,
		userID, resourceID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check upvote: %w", err)
	}
	return exists, nil
}

// Insert records a vote fact
// Idempotent: a replayed add hits ON CONFLICT and reports inserted=false
func (r *postgresUpvoteRepo) Insert(ctx context.Context, userID, resourceID string) (bool, error) {
	if !validID(resourceID) {
		return false, fmt.Errorf("invalid resource id %q", resourceID)
	}

	query := `
		INSERT INTO resource_upvotes (user_id, resource_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, resource_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, userID, resourceID)
	if err != nil {
		return false, fmt.Errorf("failed to insert upvote: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert result: %w", err)
	}
	return rows > 0, nil
}

// Delete removes a vote fact; deleting an absent fact is a no-op
func (r *postgresUpvoteRepo) Delete(ctx context.Context, userID, resourceID string) error {
	if !validID(resourceID) {
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`DELETE FROM resource_upvotes WHERE user_id = $1 AND resource_id = $2`,
		userID, resourceID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete upvote: %w", err)
	}
	return nil
}

// CountByResource returns the durable upvote count for one resource
func (r *postgresUpvoteRepo) CountByResource(ctx context.Context, resourceID string) (int64, error) {
	if !validID(resourceID) {
		return 0, nil
	}

	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM resource_upvotes WHERE resource_id = $1`, resourceID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count upvotes: %w", err)
	}
	return count, nil
}

// CountsByResource returns durable counts for many resources in one query.
// Every requested id is present in the result, zero when it has no votes.
func (r *postgresUpvoteRepo) CountsByResource(ctx context.Context, resourceIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(resourceIDs))
	// Postgres renders UUIDs in canonical lower case; map back to the caller's spelling
	requested := make(map[string][]string, len(resourceIDs))
	valid := make([]string, 0, len(resourceIDs))
	for _, id := range resourceIDs {
		counts[id] = 0
		parsed, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		canonical := parsed.String()
		if _, seen := requested[canonical]; !seen {
			valid = append(valid, canonical)
		}
		requested[canonical] = append(requested[canonical], id)
	}
	if len(valid) == 0 {
		return counts, nil
	}

	query := `
		SELECT resource_id::text, COUNT(*)
		FROM resource_upvotes
		WHERE resource_id = ANY($1::uuid[])
		GROUP BY resource_id
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(valid))
	if err != nil {
		return nil, fmt.Errorf("failed to count upvotes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id    string
			count int64
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan upvote count: %w", err)
		}
		for _, original := range requested[id] {
			counts[original] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upvote counts: %w", err)
	}
	return counts, nil
}

// validID reports whether id can be compared against a UUID column
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

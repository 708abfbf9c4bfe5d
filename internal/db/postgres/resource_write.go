package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"Linkboard/internal/core/resources"
)

// maxOwnedResources bounds the author's own listing
const maxOwnedResources = 200

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// categorySlug derives the unique slug a category name is stored under
func categorySlug(name string) string {
	return strings.Trim(slugStrip.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// Owner returns the owning user id of any resource, drafts included
func (r *postgresResourceRepo) Owner(ctx context.Context, resourceID string) (string, error) {
	if !validID(resourceID) {
		return "", resources.ErrResourceNotFound
	}

	var owner string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id FROM resources WHERE id = $1`, resourceID,
	).Scan(&owner)
	if isNoRows(err) {
		return "", resources.ErrResourceNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get resource owner: %w", err)
	}
	return owner, nil
}

// Create inserts an unpublished resource with its category and tags in one transaction
func (r *postgresResourceRepo) Create(ctx context.Context, ownerID string, draft resources.Draft) (*resources.Resource, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	categoryID, err := upsertCategory(ctx, tx, draft.CategoryName)
	if err != nil {
		return nil, err
	}

	var id string
	err = tx.QueryRowContext(ctx, `
		INSERT INTO resources (title, description, url, image, resource_type, category_id, user_id, is_published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		RETURNING id::text
	`, draft.Title, draft.Description, draft.URL, draft.Image, draft.Type, categoryID, ownerID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert resource: %w", err)
	}

	if err := replaceTags(ctx, tx, id, draft.Tags); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit resource: %w", err)
	}
	return r.fetchOne(ctx, id, false)
}

// Update applies the non-nil fields of patch and bumps updated_at
func (r *postgresResourceRepo) Update(ctx context.Context, resourceID string, patch resources.Patch) (*resources.Resource, error) {
	if !validID(resourceID) {
		return nil, resources.ErrResourceNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	setClauses := []string{"updated_at = NOW()"}
	var args []interface{}
	paramIndex := 1
	set := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, paramIndex))
		args = append(args, value)
		paramIndex++
	}

	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.URL != nil {
		set("url", *patch.URL)
	}
	if patch.Image != nil {
		set("image", *patch.Image)
	}
	if patch.Type != nil {
		set("resource_type", *patch.Type)
	}
	if patch.CategoryName != nil {
		categoryID, err := upsertCategory(ctx, tx, *patch.CategoryName)
		if err != nil {
			return nil, err
		}
		set("category_id", categoryID)
	}

	args = append(args, resourceID)
	query := fmt.Sprintf(`UPDATE resources SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), paramIndex)
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update resource: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to check updated rows: %w", err)
	} else if n == 0 {
		return nil, resources.ErrResourceNotFound
	}

	if patch.Tags != nil {
		if err := replaceTags(ctx, tx, resourceID, *patch.Tags); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit resource update: %w", err)
	}
	return r.fetchOne(ctx, resourceID, false)
}

// Publish flips is_published; publishing twice keeps the first updated_at
func (r *postgresResourceRepo) Publish(ctx context.Context, resourceID string) (*resources.Resource, error) {
	if !validID(resourceID) {
		return nil, resources.ErrResourceNotFound
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE resources
		SET is_published = TRUE,
		    updated_at = CASE WHEN is_published THEN updated_at ELSE NOW() END
		WHERE id = $1
	`, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to publish resource: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to check published rows: %w", err)
	} else if n == 0 {
		return nil, resources.ErrResourceNotFound
	}
	return r.fetchOne(ctx, resourceID, true)
}

// ListByUser returns an owner's resources newest first, drafts included
func (r *postgresResourceRepo) ListByUser(ctx context.Context, ownerID string) ([]*resources.Resource, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM resources r
		%s
		WHERE r.user_id = $1
		GROUP BY r.id, c.id
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $2
	`, resourceColumns, resourceJoins)

	rows, err := r.db.QueryContext(ctx, query, ownerID, maxOwnedResources)
	if err != nil {
		return nil, fmt.Errorf("failed to query user resources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanResources(rows)
}

// ListCategories returns every category by name
func (r *postgresResourceRepo) ListCategories(ctx context.Context) ([]resources.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id::text, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := []resources.Category{}
	for rows.Next() {
		var c resources.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return list, nil
}

// ListTags returns the tag vocabulary by name
func (r *postgresResourceRepo) ListTags(ctx context.Context) ([]resources.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id::text, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := []resources.Tag{}
	for rows.Next() {
		var t resources.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return list, nil
}

// upsertCategory returns the id of the category with name's slug, creating it if needed
func upsertCategory(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	slug := categorySlug(name)
	if slug == "" {
		return "", fmt.Errorf("%w: categoryName has no usable characters", resources.ErrInvalidResource)
	}

	var id string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO categories (name, slug) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id::text
	`, name, slug).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert category: %w", err)
	}
	return id, nil
}

// replaceTags makes tags the exact tag set of a resource
func replaceTags(ctx context.Context, tx *sql.Tx, resourceID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM resource_tags WHERE resource_id = $1`, resourceID); err != nil {
		return fmt.Errorf("failed to clear resource tags: %w", err)
	}
	if len(tags) == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tags (name) SELECT unnest($1::text[])
		ON CONFLICT (name) DO NOTHING
	`, pq.Array(tags)); err != nil {
		return fmt.Errorf("failed to upsert tags: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO resource_tags (resource_id, tag_id)
		SELECT $1::uuid, id FROM tags WHERE name = ANY($2)
		ON CONFLICT DO NOTHING
	`, resourceID, pq.Array(tags)); err != nil {
		return fmt.Errorf("failed to link resource tags: %w", err)
	}
	return nil
}

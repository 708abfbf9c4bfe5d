package postgres

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"Linkboard/internal/core/resources"
)

type postgresResourceRepo struct {
	db *sql.DB
}

// NewResourceRepository creates a new PostgreSQL resource repository
func NewResourceRepository(db *sql.DB) resources.Repository {
	return &postgresResourceRepo{db: db}
}

// resourceColumns selects one resource with its category and tag names.
// Callers must GROUP BY r.id, c.id.
const resourceColumns = `
	r.id::text, r.title, r.description, r.url, r.image, r.resource_type,
	r.user_id, r.is_published, r.created_at, r.updated_at,
	c.id::text, c.name, c.slug,
	COALESCE(array_agg(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}')
`

const resourceJoins = `
	LEFT JOIN categories c ON c.id = r.category_id
	LEFT JOIN resource_tags rt ON rt.resource_id = r.id
	LEFT JOIN tags t ON t.id = rt.tag_id
`

// List returns published resources newest first with keyset pagination
func (r *postgresResourceRepo) List(ctx context.Context, filter resources.Filter) (*resources.Page, error) {
	whereConditions := []string{"r.is_published"}
	var args []interface{}
	paramIndex := 1

	if filter.Type != "" {
		whereConditions = append(whereConditions, fmt.Sprintf("r.resource_type = $%d", paramIndex))
		args = append(args, filter.Type)
		paramIndex++
	}

	if filter.Category != "" {
		whereConditions = append(whereConditions, fmt.Sprintf("c.slug = $%d", paramIndex))
		args = append(args, filter.Category)
		paramIndex++
	}

	if filter.Tag != "" {
		whereConditions = append(whereConditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM resource_tags ft
			INNER JOIN tags ftn ON ftn.id = ft.tag_id
			WHERE ft.resource_id = r.id AND ftn.name = $%d
		)`, paramIndex))
		args = append(args, filter.Tag)
		paramIndex++
	}

	cursorFilter, cursorArgs, err := parseResourceCursor(filter.Cursor, paramIndex)
	if err != nil {
		return nil, err
	}
	if cursorFilter != "" {
		whereConditions = append(whereConditions, cursorFilter)
		args = append(args, cursorArgs...)
		paramIndex += len(cursorArgs)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = resources.DefaultLimit
	}
	if limit > resources.MaxLimit {
		limit = resources.MaxLimit
	}
	args = append(args, limit+1) // +1 to check for next page

	query := fmt.Sprintf(`
		SELECT %s
		FROM resources r
		%s
		WHERE %s
		GROUP BY r.id, c.id
		ORDER BY r.created_at DESC, r.id DESC
		LIMIT $%d
	`, resourceColumns, resourceJoins, strings.Join(whereConditions, " AND "), paramIndex)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list, err := scanResources(rows)
	if err != nil {
		return nil, err
	}

	page := &resources.Page{Resources: list}
	if len(list) > limit {
		page.Resources = list[:limit]
		page.NextCursor = buildResourceCursor(page.Resources[limit-1])
	}
	return page, nil
}

// GetByID returns one published resource
func (r *postgresResourceRepo) GetByID(ctx context.Context, resourceID string) (*resources.Resource, error) {
	return r.fetchOne(ctx, resourceID, true)
}

// fetchOne loads one resource; drafts are hidden when publishedOnly is set
func (r *postgresResourceRepo) fetchOne(ctx context.Context, resourceID string, publishedOnly bool) (*resources.Resource, error) {
	if _, err := uuid.Parse(resourceID); err != nil {
		return nil, resources.ErrResourceNotFound
	}

	where := "r.id = $1"
	if publishedOnly {
		where += " AND r.is_published"
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM resources r
		%s
		WHERE %s
		GROUP BY r.id, c.id
	`, resourceColumns, resourceJoins, where)

	rows, err := r.db.QueryContext(ctx, query, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list, err := scanResources(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, resources.ErrResourceNotFound
	}
	return list[0], nil
}

func scanResources(rows *sql.Rows) ([]*resources.Resource, error) {
	list := []*resources.Resource{}
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		list = append(list, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resources: %w", err)
	}
	return list, nil
}

func scanResource(rows *sql.Rows) (*resources.Resource, error) {
	var (
		res                   resources.Resource
		image                 sql.NullString
		catID, catName, catSl sql.NullString
		tags                  []string
	)
	err := rows.Scan(
		&res.ID, &res.Title, &res.Description, &res.URL, &image, &res.Type,
		&res.UserID, &res.Published, &res.CreatedAt, &res.UpdatedAt,
		&catID, &catName, &catSl,
		pq.Array(&tags),
	)
	if err != nil {
		return nil, err
	}
	if image.Valid {
		res.Image = &image.String
	}
	if catID.Valid {
		res.Category = &resources.Category{ID: catID.String, Name: catName.String, Slug: catSl.String}
	}
	res.Tags = tags
	if res.Tags == nil {
		res.Tags = []string{}
	}
	return &res, nil
}

// parseResourceCursor decodes a listing cursor
// Cursor format: base64(created_at|id)
func parseResourceCursor(cursor string, paramOffset int) (string, []interface{}, error) {
	if cursor == "" {
		return "", nil, nil
	}

	const maxCursorSize = 512
	if len(cursor) > maxCursorSize {
		return "", nil, fmt.Errorf("%w: cursor exceeds maximum length", resources.ErrInvalidCursor)
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid base64 encoding", resources.ErrInvalidCursor)
	}

	createdAt, id, ok := strings.Cut(string(decoded), "|")
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed cursor format", resources.ErrInvalidCursor)
	}
	if _, err := time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return "", nil, fmt.Errorf("%w: invalid timestamp in cursor", resources.ErrInvalidCursor)
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", nil, fmt.Errorf("%w: invalid id in cursor", resources.ErrInvalidCursor)
	}

	// (created_at, id) < (cursor_created_at, cursor_id)
	filter := fmt.Sprintf("(r.created_at < $%d OR (r.created_at = $%d AND r.id < $%d))",
		paramOffset, paramOffset, paramOffset+1)
	return filter, []interface{}{createdAt, id}, nil
}

// buildResourceCursor creates the cursor pointing after res
func buildResourceCursor(res *resources.Resource) string {
	cursorStr := fmt.Sprintf("%s|%s", res.CreatedAt.Format(time.RFC3339Nano), res.ID)
	return base64.URLEncoding.EncodeToString([]byte(cursorStr))
}

// isNoRows reports whether err is the empty-result sentinel
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

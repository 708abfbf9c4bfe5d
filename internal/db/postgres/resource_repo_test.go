package postgres

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Linkboard/internal/core/resources"
)

func TestParseResourceCursor(t *testing.T) {
	makeCursor := func(timestamp, id string) string {
		return base64.URLEncoding.EncodeToString([]byte(timestamp + "|" + id))
	}
	validTimestamp := time.Now().Format(time.RFC3339Nano)
	validID := uuid.NewString()

	tests := []struct {
		name       string
		cursor     string
		wantFilter bool
		wantErr    bool
	}{
		{name: "empty cursor returns empty filter", cursor: ""},
		{name: "valid cursor", cursor: makeCursor(validTimestamp, validID), wantFilter: true},
		{name: "cursor too long", cursor: makeCursor(validTimestamp, string(make([]byte, 600))), wantErr: true},
		{name: "invalid base64", cursor: "not-valid-base64!!!", wantErr: true},
		{name: "missing separator", cursor: base64.URLEncoding.EncodeToString([]byte(validTimestamp)), wantErr: true},
		{name: "bad timestamp", cursor: makeCursor("yesterday", validID), wantErr: true},
		{name: "bad id", cursor: makeCursor(validTimestamp, "abc"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, args, err := parseResourceCursor(tt.cursor, 3)
			if tt.wantErr {
				assert.ErrorIs(t, err, resources.ErrInvalidCursor)
				return
			}
			require.NoError(t, err)
			if tt.wantFilter {
				assert.Equal(t, "(r.created_at < $3 OR (r.created_at = $3 AND r.id < $4))", filter)
				assert.Len(t, args, 2)
			} else {
				assert.Empty(t, filter)
				assert.Nil(t, args)
			}
		})
	}
}

func TestBuildResourceCursorRoundTrip(t *testing.T) {
	res := &resources.Resource{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}

	_, args, err := parseResourceCursor(buildResourceCursor(res), 1)
	require.NoError(t, err)
	assert.Equal(t, res.ID, args[1])
}

func TestResourceRepo_ListPaginatesAndFilters(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()

	repo := NewResourceRepository(db)
	ctx := context.Background()
	base := time.Now().Add(24 * time.Hour).Truncate(time.Millisecond)

	newest := createTestResource(t, db, "Newest", "video", base.Add(2*time.Second))
	middle := createTestResource(t, db, "Middle", "article", base.Add(time.Second))
	oldest := createTestResource(t, db, "Oldest", "video", base)

	page, err := repo.List(ctx, resources.Filter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Resources, 2)
	assert.Equal(t, newest, page.Resources[0].ID)
	assert.Equal(t, middle, page.Resources[1].ID)
	require.NotEmpty(t, page.NextCursor)

	page, err = repo.List(ctx, resources.Filter{Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Resources, 1)
	assert.Equal(t, oldest, page.Resources[0].ID)

	page, err = repo.List(ctx, resources.Filter{Type: "video", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Resources, 2)
	assert.Equal(t, newest, page.Resources[0].ID)
	assert.Equal(t, oldest, page.Resources[1].ID)
}

func TestResourceRepo_GetByID(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()

	repo := NewResourceRepository(db)
	ctx := context.Background()
	rid := createTestResource(t, db, "Detail", "article", time.Now())

	res, err := repo.GetByID(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, "Detail", res.Title)
	assert.Equal(t, []string{}, res.Tags)
	assert.Nil(t, res.Category)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, resources.ErrResourceNotFound)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, resources.ErrResourceNotFound)
}

func TestBookmarkRepo_Toggle(t *testing.T) {
	db := setupTestDB(t)
	defer func() { _ = db.Close() }()

	repo := NewBookmarkRepository(db)
	ctx := context.Background()
	rid := createTestResource(t, db, "Bookmark", "article", time.Now())

	on, err := repo.Toggle(ctx, "reader", rid)
	require.NoError(t, err)
	assert.True(t, on)

	marked, err := repo.BookmarkedAmong(ctx, "reader", []string{rid, uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{rid: true}, marked)

	list, err := repo.ListByUser(ctx, "reader")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rid, list[0].ID)

	on, err = repo.Toggle(ctx, "reader", rid)
	require.NoError(t, err)
	assert.False(t, on)
}

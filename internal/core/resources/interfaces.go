package resources

import (
	"context"
	"time"
)

// Service is the resource catalogue: listings, authoring, taxonomy and bookmarks.
// Every write invalidates the cached pages it can change.
type Service interface {
	List(ctx context.Context, filter Filter, viewerID string) (*Page, error)
	Get(ctx context.Context, resourceID, viewerID string) (*Resource, error)

	// Create stores an unpublished resource owned by userID
	Create(ctx context.Context, userID string, draft Draft) (*Resource, error)
	// Update applies a partial update; only the owner may update
	Update(ctx context.Context, userID, resourceID string, patch Patch) (*Resource, error)
	// Publish makes the resource visible in listings; idempotent, owner only
	Publish(ctx context.Context, userID, resourceID string) (*Resource, error)
	// ListByUser returns the caller's own resources, drafts included
	ListByUser(ctx context.Context, userID string) ([]*Resource, error)

	ListCategories(ctx context.Context) ([]Category, error)
	ListTags(ctx context.Context) ([]Tag, error)

	ToggleBookmark(ctx context.Context, userID, resourceID string) (*BookmarkResult, error)
	ListBookmarks(ctx context.Context, userID string) ([]*Resource, error)
}

// Repository stores resources and their category and tags
type Repository interface {
	// List returns one page in (created_at DESC, id DESC) order
	List(ctx context.Context, filter Filter) (*Page, error)
	// GetByID returns ErrResourceNotFound for unknown or unpublished resources
	GetByID(ctx context.Context, resourceID string) (*Resource, error)

	// Owner returns the owning user id of a resource, published or not
	Owner(ctx context.Context, resourceID string) (string, error)
	// Create upserts the category and tags and inserts an unpublished resource
	Create(ctx context.Context, ownerID string, draft Draft) (*Resource, error)
	Update(ctx context.Context, resourceID string, patch Patch) (*Resource, error)
	Publish(ctx context.Context, resourceID string) (*Resource, error)
	// ListByUser returns every resource of an owner, newest first
	ListByUser(ctx context.Context, ownerID string) ([]*Resource, error)

	ListCategories(ctx context.Context) ([]Category, error)
	ListTags(ctx context.Context) ([]Tag, error)
}

// BookmarkRepository stores bookmarks
type BookmarkRepository interface {
	// Toggle flips the bookmark and reports the new state
	Toggle(ctx context.Context, userID, resourceID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*Resource, error)
	// BookmarkedAmong reports which of resourceIDs the user has bookmarked
	BookmarkedAmong(ctx context.Context, userID string, resourceIDs []string) (map[string]bool, error)
}

// PageCache stores rendered pages
type PageCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
}

// UpvoteReader supplies live counts and vote flags for the overlay
type UpvoteReader interface {
	Counts(ctx context.Context, resourceIDs []string) (map[string]int64, error)
	HasVoted(ctx context.Context, userID, resourceID string) (bool, error)
}

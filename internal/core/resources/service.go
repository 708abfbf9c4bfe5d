package resources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Linkboard/internal/core/pagecache"
	"Linkboard/internal/metrics"
)

// PageTTL bounds how long a rendered page is served from cache
const PageTTL = 5 * time.Minute

type resourceService struct {
	repo      Repository
	bookmarks BookmarkRepository
	cache     PageCache
	upvotes   UpvoteReader
	logger    *slog.Logger
}

// NewService creates the resource catalogue service
func NewService(repo Repository, bookmarks BookmarkRepository, cache PageCache, upvotes UpvoteReader, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &resourceService{
		repo:      repo,
		bookmarks: bookmarks,
		cache:     cache,
		upvotes:   upvotes,
		logger:    logger,
	}
}

func (s *resourceService) List(ctx context.Context, filter Filter, viewerID string) (*Page, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	key := pagecache.ListKey(pagecache.ListParams{
		Type:     filter.Type,
		Category: filter.Category,
		Tag:      filter.Tag,
		Cursor:   filter.Cursor,
		Limit:    filter.Limit,
		ViewerID: viewerID,
	})

	var page Page
	if !s.cacheGet(ctx, "list", key, &page) {
		fresh, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		if err := s.markBookmarks(ctx, viewerID, fresh.Resources); err != nil {
			return nil, err
		}
		s.cacheSet(ctx, key, fresh)
		page = *fresh
	}

	if err := s.overlay(ctx, viewerID, page.Resources); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *resourceService) Get(ctx context.Context, resourceID, viewerID string) (*Resource, error) {
	resourceID = canonicalID(resourceID)
	key := pagecache.DetailKey(resourceID, viewerID)

	var resource Resource
	if !s.cacheGet(ctx, "detail", key, &resource) {
		fresh, err := s.repo.GetByID(ctx, resourceID)
		if err != nil {
			return nil, err
		}
		if err := s.markBookmarks(ctx, viewerID, []*Resource{fresh}); err != nil {
			return nil, err
		}
		s.cacheSet(ctx, key, fresh)
		resource = *fresh
	}

	if err := s.overlay(ctx, viewerID, []*Resource{&resource}); err != nil {
		return nil, err
	}
	return &resource, nil
}

func (s *resourceService) ToggleBookmark(ctx context.Context, userID, resourceID string) (*BookmarkResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	resourceID = canonicalID(resourceID)
	if _, err := s.repo.GetByID(ctx, resourceID); err != nil {
		return nil, err
	}

	bookmarked, err := s.bookmarks.Toggle(ctx, userID, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle bookmark: %w", err)
	}

	for _, pattern := range []string{
		pagecache.BookmarksPattern(userID),
		pagecache.UserPattern(userID),
		pagecache.DetailPattern(resourceID),
	} {
		if _, err := s.cache.InvalidatePattern(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate cached pages",
				"pattern", pattern,
				"error", err)
		}
	}

	return &BookmarkResult{ResourceID: resourceID, Bookmarked: bookmarked}, nil
}

func (s *resourceService) ListBookmarks(ctx context.Context, userID string) ([]*Resource, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	key := pagecache.BookmarksKey(userID)

	var list []*Resource
	if !s.cacheGet(ctx, "bookmarks", key, &list) {
		fresh, err := s.bookmarks.ListByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list bookmarks: %w", err)
		}
		for _, r := range fresh {
			r.Bookmarked = true
		}
		s.cacheSet(ctx, key, fresh)
		list = fresh
	}

	if err := s.overlay(ctx, userID, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *resourceService) markBookmarks(ctx context.Context, viewerID string, list []*Resource) error {
	if viewerID == "" || len(list) == 0 {
		return nil
	}
	marked, err := s.bookmarks.BookmarkedAmong(ctx, viewerID, resourceIDs(list))
	if err != nil {
		return fmt.Errorf("failed to load bookmarks: %w", err)
	}
	for _, r := range list {
		r.Bookmarked = marked[r.ID]
	}
	return nil
}

// overlay fills live counts and the viewer's vote flags
func (s *resourceService) overlay(ctx context.Context, viewerID string, list []*Resource) error {
	if len(list) == 0 {
		return nil
	}
	counts, err := s.upvotes.Counts(ctx, resourceIDs(list))
	if err != nil {
		return fmt.Errorf("failed to load upvote counts: %w", err)
	}
	for _, r := range list {
		r.UpvoteCount = counts[r.ID]
		if viewerID == "" {
			continue
		}
		voted, err := s.upvotes.HasVoted(ctx, viewerID, r.ID)
		if err != nil {
			return fmt.Errorf("failed to load vote flag: %w", err)
		}
		r.Upvoted = voted
	}
	return nil
}

func (s *resourceService) cacheGet(ctx context.Context, cacheType, key string, dest any) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("page cache read failed",
			"key", key,
			"error", err)
		hit = false
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	metrics.CacheLookups.WithLabelValues(cacheType, result).Inc()
	return hit
}

func (s *resourceService) cacheSet(ctx context.Context, key string, value any) {
	s.cacheSetTTL(ctx, key, value, PageTTL)
}

func (s *resourceService) cacheSetTTL(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("page cache write failed",
			"key", key,
			"error", err)
	}
}

func normalizeFilter(f Filter) (Filter, error) {
	switch f.Type {
	case "", TypeVideo, TypeArticle:
	default:
		return f, fmt.Errorf("%w: unknown resource type %q", ErrInvalidFilter, f.Type)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f, nil
}

func resourceIDs(list []*Resource) []string {
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	return ids
}

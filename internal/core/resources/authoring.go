package resources

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"Linkboard/internal/core/pagecache"
)

// TaxonomyTTL bounds how long category and tag listings are served from cache
const TaxonomyTTL = 10 * time.Minute

// Field limits for authored resources
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxTags              = 10
	MaxTagLength         = 32
)

func (s *resourceService) Create(ctx context.Context, userID string, draft Draft) (*Resource, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	draft, err := normalizeDraft(draft)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, userID, draft)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	s.logger.Info("resource created",
		"resource", created.ID,
		"user", userID,
		"type", created.Type)
	s.invalidate(ctx, userID, "", true)
	return created, nil
}

func (s *resourceService) Update(ctx context.Context, userID, resourceID string, patch Patch) (*Resource, error) {
	resourceID, err := s.authorize(ctx, userID, resourceID)
	if err != nil {
		return nil, err
	}
	patch, err = normalizePatch(patch)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, resourceID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update resource: %w", err)
	}

	taxonomy := patch.CategoryName != nil || patch.Tags != nil
	s.invalidate(ctx, userID, resourceID, taxonomy)
	return updated, nil
}

func (s *resourceService) Publish(ctx context.Context, userID, resourceID string) (*Resource, error) {
	resourceID, err := s.authorize(ctx, userID, resourceID)
	if err != nil {
		return nil, err
	}

	published, err := s.repo.Publish(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to publish resource: %w", err)
	}

	s.logger.Info("resource published",
		"resource", resourceID,
		"user", userID)
	s.invalidate(ctx, userID, resourceID, false)
	return published, nil
}

func (s *resourceService) ListByUser(ctx context.Context, userID string) ([]*Resource, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	key := pagecache.OwnedKey(userID)

	var list []*Resource
	if !s.cacheGet(ctx, "owned", key, &list) {
		fresh, err := s.repo.ListByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list user resources: %w", err)
		}
		if err := s.markBookmarks(ctx, userID, fresh); err != nil {
			return nil, err
		}
		s.cacheSet(ctx, key, fresh)
		list = fresh
	}

	if err := s.overlay(ctx, userID, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *resourceService) ListCategories(ctx context.Context) ([]Category, error) {
	var list []Category
	if s.cacheGet(ctx, "categories", pagecache.CategoriesKey(), &list) {
		return list, nil
	}
	list, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	s.cacheSetTTL(ctx, pagecache.CategoriesKey(), list, TaxonomyTTL)
	return list, nil
}

func (s *resourceService) ListTags(ctx context.Context) ([]Tag, error) {
	var list []Tag
	if s.cacheGet(ctx, "tags", pagecache.TagsKey(), &list) {
		return list, nil
	}
	list, err := s.repo.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	s.cacheSetTTL(ctx, pagecache.TagsKey(), list, TaxonomyTTL)
	return list, nil
}

// authorize canonicalizes the id and checks that userID owns the resource
func (s *resourceService) authorize(ctx context.Context, userID, resourceID string) (string, error) {
	if userID == "" {
		return "", ErrUnauthenticated
	}
	resourceID = canonicalID(resourceID)
	owner, err := s.repo.Owner(ctx, resourceID)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return "", err
		}
		return "", fmt.Errorf("failed to load resource owner: %w", err)
	}
	if owner != userID {
		return "", ErrForbidden
	}
	return resourceID, nil
}

// invalidate drops the pages a write can change. Taxonomy listings go only
// when the category or tags moved. Failures only log; pages expire on their own.
func (s *resourceService) invalidate(ctx context.Context, ownerID, resourceID string, taxonomy bool) {
	patterns := []string{
		pagecache.ListPattern(),
		pagecache.ViewerListPattern(),
		pagecache.UserPattern(ownerID),
	}
	if resourceID != "" {
		patterns = append(patterns, pagecache.DetailPattern(resourceID))
	}
	if taxonomy {
		patterns = append(patterns, pagecache.CategoriesKey(), pagecache.TagsKey())
	}
	for _, pattern := range patterns {
		if _, err := s.cache.InvalidatePattern(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate cached pages",
				"pattern", pattern,
				"error", err)
		}
	}
}

func normalizeDraft(d Draft) (Draft, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.URL = strings.TrimSpace(d.URL)
	d.Type = strings.ToLower(strings.TrimSpace(d.Type))
	d.CategoryName = strings.ToLower(strings.TrimSpace(d.CategoryName))

	if err := validateTitle(d.Title); err != nil {
		return d, err
	}
	if len(d.Description) > MaxDescriptionLength {
		return d, fmt.Errorf("%w: description exceeds %d characters", ErrInvalidResource, MaxDescriptionLength)
	}
	if err := validateURL("url", d.URL); err != nil {
		return d, err
	}
	if d.Image != nil {
		if err := validateURL("image", *d.Image); err != nil {
			return d, err
		}
	}
	if d.Type != TypeVideo && d.Type != TypeArticle {
		return d, fmt.Errorf("%w: resourceType must be video or article", ErrInvalidResource)
	}
	if d.CategoryName == "" {
		return d, fmt.Errorf("%w: categoryName is required", ErrInvalidResource)
	}
	tags, err := normalizeTags(d.Tags)
	if err != nil {
		return d, err
	}
	d.Tags = tags
	return d, nil
}

func normalizePatch(p Patch) (Patch, error) {
	empty := true
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if err := validateTitle(title); err != nil {
			return p, err
		}
		p.Title, empty = &title, false
	}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		if len(desc) > MaxDescriptionLength {
			return p, fmt.Errorf("%w: description exceeds %d characters", ErrInvalidResource, MaxDescriptionLength)
		}
		p.Description, empty = &desc, false
	}
	if p.URL != nil {
		link := strings.TrimSpace(*p.URL)
		if err := validateURL("url", link); err != nil {
			return p, err
		}
		p.URL, empty = &link, false
	}
	if p.Image != nil {
		if err := validateURL("image", *p.Image); err != nil {
			return p, err
		}
		empty = false
	}
	if p.Type != nil {
		typ := strings.ToLower(strings.TrimSpace(*p.Type))
		if typ != TypeVideo && typ != TypeArticle {
			return p, fmt.Errorf("%w: resourceType must be video or article", ErrInvalidResource)
		}
		p.Type, empty = &typ, false
	}
	if p.CategoryName != nil {
		name := strings.ToLower(strings.TrimSpace(*p.CategoryName))
		if name == "" {
			return p, fmt.Errorf("%w: categoryName cannot be empty", ErrInvalidResource)
		}
		p.CategoryName, empty = &name, false
	}
	if p.Tags != nil {
		tags, err := normalizeTags(*p.Tags)
		if err != nil {
			return p, err
		}
		p.Tags, empty = &tags, false
	}
	if empty {
		return p, fmt.Errorf("%w: nothing to update", ErrInvalidResource)
	}
	return p, nil
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidResource)
	}
	if len(title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidResource, MaxTitleLength)
	}
	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL", ErrInvalidResource, field)
	}
	return nil
}

// normalizeTags lower-cases, trims and de-duplicates, dropping empties
func normalizeTags(raw []string) ([]string, error) {
	seen := make(map[string]bool, len(raw))
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if len(t) > MaxTagLength {
			return nil, fmt.Errorf("%w: tag %q exceeds %d characters", ErrInvalidResource, t, MaxTagLength)
		}
		seen[t] = true
		tags = append(tags, t)
	}
	if len(tags) > MaxTags {
		return nil, fmt.Errorf("%w: at most %d tags", ErrInvalidResource, MaxTags)
	}
	return tags, nil
}

// canonicalID folds UUID spellings into the lower-case hyphenated form so
// cache keys and invalidation patterns agree. Other ids pass through.
func canonicalID(id string) string {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return id
	}
	return parsed.String()
}

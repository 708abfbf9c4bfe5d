package resources

import "time"

// Resource types
const (
	TypeVideo   = "video"
	TypeArticle = "article"
)

// Listing bounds
const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// Category groups resources for browsing
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Resource is a shared link with its upvote and bookmark state for a viewer.
// UpvoteCount and Upvoted are overlaid from the counter store on every read
// and are never part of a cached page.
type Resource struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Image       *string   `json:"image,omitempty"`
	Type        string    `json:"resourceType"`
	Category    *Category `json:"category,omitempty"`
	Tags        []string  `json:"tags"`
	UserID      string    `json:"userId"`
	Published   bool      `json:"published"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	UpvoteCount int64 `json:"upvoteCount"`
	Upvoted     bool  `json:"upvoted"`
	Bookmarked  bool  `json:"bookmarked"`
}

// Tag is one entry of the tag vocabulary
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Draft is the author-supplied part of a new resource. Resources start
// unpublished and only appear in listings after Publish.
type Draft struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	Image        *string  `json:"image,omitempty"`
	Type         string   `json:"resourceType"`
	CategoryName string   `json:"categoryName"`
	Tags         []string `json:"tags"`
}

// Patch is a partial update; nil fields are left unchanged and a non-nil
// Tags replaces the whole set.
type Patch struct {
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	URL          *string   `json:"url,omitempty"`
	Image        *string   `json:"image,omitempty"`
	Type         *string   `json:"resourceType,omitempty"`
	CategoryName *string   `json:"categoryName,omitempty"`
	Tags         *[]string `json:"tags,omitempty"`
}

// Filter narrows a resource listing
type Filter struct {
	Type     string
	Category string // category slug
	Tag      string // tag name
	Cursor   string
	Limit    int
}

// Page is one page of a listing
type Page struct {
	Resources  []*Resource `json:"resources"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// BookmarkResult reports the state after a bookmark toggle
type BookmarkResult struct {
	ResourceID string `json:"resourceId"`
	Bookmarked bool   `json:"bookmarked"`
}

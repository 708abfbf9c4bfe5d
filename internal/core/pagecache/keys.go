// Package pagecache defines the key layout of cached resource pages.
// Writers (resource reads) and invalidators (upvote and bookmark toggles)
// share these builders so patterns always match what was written.
package pagecache

import (
	"strconv"
	"strings"
)

// Version is bumped when the cached payload shape changes
const Version = "V1"

const (
	prefix   = "resources"
	anonUser = "anon"
)

// ListParams are the filters a list page is keyed by
type ListParams struct {
	Type     string
	Category string
	Tag      string
	Cursor   string
	Limit    int
	ViewerID string
}

// ListKey builds the key of one list page. Viewer-specific pages live under
// the user scope so a single user pattern invalidates them.
func ListKey(p ListParams) string {
	parts := []string{
		"list",
		orAll(p.Type),
		orAll(p.Category),
		orAll(p.Tag),
		orAll(p.Cursor),
		strconv.Itoa(p.Limit),
		Version,
	}
	if p.ViewerID != "" {
		return UserScope(p.ViewerID) + ":" + strings.Join(parts, ":")
	}
	return prefix + ":" + strings.Join(parts, ":")
}

// ListPattern matches every anonymous list page
func ListPattern() string {
	return prefix + ":list:*"
}

// ViewerListPattern matches the list pages of every signed-in viewer
func ViewerListPattern() string {
	return prefix + ":user:*:list:*"
}

// UserScope is the prefix of every page rendered for a viewer
func UserScope(userID string) string {
	return prefix + ":user:" + userID
}

// UserPattern matches every page rendered for a viewer
func UserPattern(userID string) string {
	return prefix + ":user:" + escapeGlob(userID) + ":*"
}

// OwnedKey builds the key of a user's own resources page. It lives in the
// user scope so UserPattern drops it with the rest of the viewer's pages.
func OwnedKey(userID string) string {
	return UserScope(userID) + ":owned:" + Version
}

// CategoriesKey and TagsKey hold the taxonomy listings
func CategoriesKey() string {
	return prefix + ":categories:" + Version
}

func TagsKey() string {
	return prefix + ":tags:" + Version
}

// DetailKey builds the key of a resource detail page
func DetailKey(resourceID, viewerID string) string {
	if viewerID == "" {
		viewerID = anonUser
	}
	return prefix + ":detail:" + resourceID + ":" + viewerID + ":" + Version
}

// DetailPattern matches every rendering of one resource
func DetailPattern(resourceID string) string {
	return prefix + ":detail:" + escapeGlob(resourceID) + ":*"
}

// BookmarksKey builds the key of a user's bookmark page
func BookmarksKey(userID string) string {
	return prefix + ":bookmarks:" + userID + ":" + Version
}

// BookmarksPattern matches every bookmark page of a user
func BookmarksPattern(userID string) string {
	return prefix + ":bookmarks:" + escapeGlob(userID) + ":*"
}

// keySegment folds the separator and glob metacharacters out of filter values
var keySegment = strings.NewReplacer(":", "_", "*", "_", "?", "_", "[", "_", "]", "_")

// globEscaper quotes caller-controlled ids inside MATCH patterns. Ids stay
// verbatim in keys so two viewers never share a cached page.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func orAll(s string) string {
	if s == "" {
		return "all"
	}
	return keySegment.Replace(s)
}

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

package pagecache

import (
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListKey_AnonymousAndViewerScopes(t *testing.T) {
	anon := ListKey(ListParams{Type: "video", Limit: 10})
	assert.Equal(t, "resources:list:video:all:all:all:10:V1", anon)

	viewer := ListKey(ListParams{Type: "video", Limit: 10, ViewerID: "u1"})
	assert.Equal(t, "resources:user:u1:list:video:all:all:all:10:V1", viewer)
}

func TestPatternsMatchTheirKeys(t *testing.T) {
	// Redis MATCH globs behave like path.Match for keys without '/'
	cases := []struct {
		pattern string
		key     string
	}{
		{ListPattern(), ListKey(ListParams{Category: "go", Limit: 20})},
		{UserPattern("u1"), ListKey(ListParams{Tag: "redis", Limit: 5, ViewerID: "u1"})},
		{DetailPattern("r1"), DetailKey("r1", "")},
		{DetailPattern("r1"), DetailKey("r1", "u9")},
		{BookmarksPattern("u1"), BookmarksKey("u1")},
		{UserPattern("u1"), OwnedKey("u1")},
		{ViewerListPattern(), ListKey(ListParams{Limit: 5, ViewerID: "u7"})},
		{CategoriesKey(), CategoriesKey()},
		{TagsKey(), TagsKey()},
	}
	for _, tc := range cases {
		ok, err := path.Match(tc.pattern, tc.key)
		assert.NoError(t, err)
		assert.True(t, ok, "pattern %s should match %s", tc.pattern, tc.key)
	}

	ok, _ := path.Match(UserPattern("u1"), ListKey(ListParams{Limit: 5, ViewerID: "u2"}))
	assert.False(t, ok)
	ok, _ = path.Match(ViewerListPattern(), OwnedKey("u1"))
	assert.False(t, ok, "owned pages are not list pages")
	ok, _ = path.Match(ViewerListPattern(), ListKey(ListParams{Limit: 5}))
	assert.False(t, ok, "anonymous pages sit under ListPattern")
}

func TestListKey_EscapesSeparatorsAndGlobs(t *testing.T) {
	key := ListKey(ListParams{Category: "a:b*", Limit: 1})
	assert.Equal(t, "resources:list:all:a_b_:all:all:1:V1", key)
}

func TestPatterns_EscapeGlobsInIDs(t *testing.T) {
	assert.Equal(t, `resources:user:\*:*`, UserPattern("*"))
	assert.Equal(t, `resources:detail:r\?\[1\]:*`, DetailPattern("r?[1]"))
	assert.Equal(t, `resources:bookmarks:a\\b:*`, BookmarksPattern(`a\b`))

	wildcard := UserPattern("*")
	for _, uid := range []string{"u1", "u2", "alice"} {
		ok, err := path.Match(wildcard, ListKey(ListParams{Limit: 10, ViewerID: uid}))
		assert.NoError(t, err)
		assert.False(t, ok, "a viewer id of * must not match %s's pages", uid)
	}
	ok, err := path.Match(wildcard, ListKey(ListParams{Limit: 10, ViewerID: "*"}))
	assert.NoError(t, err)
	assert.True(t, ok, "the literal * viewer's own pages still match")

	ok, err = path.Match(DetailPattern("r?"), DetailKey("r1", ""))
	assert.NoError(t, err)
	assert.False(t, ok)
	ok, err = path.Match(DetailPattern("r?"), DetailKey("r?", "u1"))
	assert.NoError(t, err)
	assert.True(t, ok)
}

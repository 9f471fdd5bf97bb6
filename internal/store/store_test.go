package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xpilot/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAccountsLifecycle(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Upsert("main", "main.json", "import"))
	first, err := s.Get("main")
	require.NoError(t, err)
	assert.Equal(t, "import", first.Source)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.Upsert("main", "main.json", "login"))
	require.NoError(t, s.Upsert("alt", "alt.json", "login"))

	again, err := s.Get("main")
	require.NoError(t, err)
	assert.Equal(t, "login", again.Source)
	assert.True(t, again.CreatedAt.Equal(first.CreatedAt), "creation time survives re-login")
	assert.True(t, again.UpdatedAt.After(first.UpdatedAt))

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alt", list[0].Label)

	require.NoError(t, s.Remove("main"))
	_, err = s.Get("main")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
	assert.NoError(t, s.Remove("main"))
}

func TestPostsHistory(t *testing.T) {
	s := newTestStore(t)

	p := &Post{Label: "main", Kind: "publish", URL: "https://x.com/me/status/1", Text: "hello"}
	require.NoError(t, s.SavePost(p))
	assert.NotZero(t, p.ID)
	require.NoError(t, s.SavePost(&Post{Label: "alt", Kind: "reply", Text: "hi", Target: "https://x.com/a/status/9"}))
	require.NoError(t, s.SavePost(&Post{Label: "alt", Kind: "publish", URL: "https://x.com/alt/status/121", Text: "other"}))

	all, err := s.ListPosts("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := s.ListPosts("main", 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Nil(t, mine[0].DeletedAt)

	ok, err := s.MarkDeleted("21")
	require.NoError(t, err)
	assert.False(t, ok, "an ID suffix must not match")

	ok, err = s.MarkDeleted("1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.MarkDeleted("1")
	require.NoError(t, err)
	assert.False(t, ok)

	mine, err = s.ListPosts("main", 10)
	require.NoError(t, err)
	assert.NotNil(t, mine[0].DeletedAt)

	others, err := s.ListPosts("alt", 10)
	require.NoError(t, err)
	for _, o := range others {
		assert.Nil(t, o.DeletedAt)
	}
}

package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/types"
)

type fakeRegistry struct {
	mu      sync.Mutex
	rows    map[string]string
	sources map[string]string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{rows: map[string]string{}, sources: map[string]string{}}
}

func (r *fakeRegistry) Upsert(label, filename, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[label] = filename
	r.sources[label] = source
	return nil
}

func (r *fakeRegistry) Remove(label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, label)
	return nil
}

func sampleSession(value string) *Session {
	return &Session{Cookies: []Cookie{
		{Name: AuthTokenCookie, Value: value, Domain: ".x.com", Path: "/", Expires: 1893456000, Secure: true, SameSite: "None"},
		{Name: CSRFCookie, Value: "ct0-" + value, Domain: ".x.com", Path: "/", Expires: 1893456000, Secure: true, SameSite: "Lax"},
	}}
}

func TestFileStoreSaveLoadDelete(t *testing.T) {
	dir := t.TempDir()
	reg := newFakeRegistry()
	store := NewFileStore(dir, zap.NewNop()).WithRegistry(reg)

	sess := sampleSession("one")
	sess.Source = "import"
	require.NoError(t, store.Save("work account", sess))

	path := filepath.Join(dir, "work_account.json")
	assert.Equal(t, path, store.Path("work account"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "cookies")
	assert.Equal(t, []any{}, generic["origins"])
	assert.NotContains(t, generic, "Source")

	loaded, err := store.Load("work account")
	require.NoError(t, err)
	assert.Equal(t, sess.Cookies, loaded.Cookies)
	assert.Equal(t, "work_account.json", reg.rows["work account"])
	assert.Equal(t, "import", reg.sources["work account"])

	labels, err := store.Labels()
	require.NoError(t, err)
	assert.Equal(t, []string{"work_account"}, labels)

	require.NoError(t, store.Delete("work account"))
	_, err = store.Load("work account")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
	assert.NotContains(t, reg.rows, "work account")
	assert.ErrorIs(t, store.Delete("work account"), types.ErrSessionNotFound)
}

func TestFileStoreRejectsEmptySession(t *testing.T) {
	store := NewFileStore(t.TempDir(), zap.NewNop())
	assert.ErrorIs(t, store.Save("a", &Session{}), types.ErrInvalidSessionData)
	assert.ErrorIs(t, store.Save("a", nil), types.ErrInvalidSessionData)
}

func TestFileStoreLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, zap.NewNop())
	require.NoError(t, os.WriteFile(store.Path("bad"), []byte("{"), 0600))

	_, err := store.Load("bad")
	assert.ErrorIs(t, err, types.ErrInvalidSessionData)
}

func TestFileStoreConcurrentReadsSeeWholeFiles(t *testing.T) {
	store := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Save("a", sampleSession("initial")))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, store.Save("a", sampleSession("v")))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			s, err := store.Load("a")
			if assert.NoError(t, err) {
				assert.Len(t, s.Cookies, 2)
			}
		}
	}()
	wg.Wait()

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

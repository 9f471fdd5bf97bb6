package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xpilot/internal/browser/browsertest"
	"github.com/ibeckermayer/xpilot/internal/types"
)

func TestTrackerFlickerResetsStability(t *testing.T) {
	tr := NewTracker(4)
	quiet := Observation{Preview: true}
	busy := Observation{Preview: true, Busy: true}

	for i := 0; i < 3; i++ {
		assert.Equal(t, PreviewPending, tr.Observe(quiet))
	}
	assert.Equal(t, Busy, tr.Observe(busy))
	for i := 0; i < 3; i++ {
		assert.Equal(t, PreviewPending, tr.Observe(quiet), "quiet poll %d after flicker", i+1)
	}
	assert.Equal(t, Settled, tr.Observe(quiet))

	assert.Equal(t, []State{NotAttached, PreviewPending, Busy, PreviewPending, Settled}, tr.Transitions())
}

func TestTrackerNotAttached(t *testing.T) {
	tr := NewTracker(2)
	for i := 0; i < 10; i++ {
		assert.Equal(t, NotAttached, tr.Observe(Observation{}))
	}
	assert.Equal(t, []State{NotAttached}, tr.Transitions())

	assert.Equal(t, Busy, tr.Observe(Observation{Busy: true}))
	assert.Equal(t, PreviewPending, tr.Observe(Observation{Preview: true}))
	assert.Equal(t, Settled, tr.Observe(Observation{Preview: true}))
	assert.Equal(t, []string{"not-attached", "preview-pending", "busy", "preview-pending", "settled"}, tr.Names())
}

func fastOptions(timeout time.Duration) Options {
	return Options{Timeout: timeout, Interval: 5 * time.Millisecond, Stable: 4}
}

func TestWaitSettledThroughBusy(t *testing.T) {
	page := browsertest.New()
	preview := page.Show(Preview[0].Query)
	preview.Seq = []bool{false, true}
	page.Set(BusyIndicator[0].Query, &browsertest.Element{Seq: []bool{false, false, true, true, true, false}})

	tr, err := WaitSettled(context.Background(), page, fastOptions(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, Settled, tr.State())
	assert.Equal(t, []State{NotAttached, PreviewPending, Busy, PreviewPending, Settled}, tr.Transitions())
}

func TestWaitSettledRemoveControlCountsAsPreview(t *testing.T) {
	page := browsertest.New()
	page.Show(RemoveControl[1].Query)

	tr, err := WaitSettled(context.Background(), page, fastOptions(time.Second))
	require.NoError(t, err)
	assert.Equal(t, Settled, tr.State())
}

func TestWaitSettledTimesOut(t *testing.T) {
	t.Run("busy forever", func(t *testing.T) {
		page := browsertest.New()
		page.Show(Preview[0].Query)
		page.Show(BusyIndicator[6].Query)

		tr, err := WaitSettled(context.Background(), page, fastOptions(80*time.Millisecond))
		require.ErrorIs(t, err, types.ErrMediaTimeout)
		assert.Contains(t, err.Error(), "busy")
		assert.Equal(t, Busy, tr.State())
	})

	t.Run("never attached", func(t *testing.T) {
		page := browsertest.New()

		tr, err := WaitSettled(context.Background(), page, fastOptions(60*time.Millisecond))
		require.ErrorIs(t, err, types.ErrMediaTimeout)
		assert.Equal(t, NotAttached, tr.State())
	})
}

func TestWaitSettledCancelled(t *testing.T) {
	page := browsertest.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WaitSettled(ctx, page, fastOptions(time.Second))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsVideo(t *testing.T) {
	for path, want := range map[string]bool{
		"clip.mp4":       true,
		"/tmp/CLIP.MOV":  true,
		"a.webm":         true,
		"a.m4v":          true,
		"photo.jpg":      false,
		"animation.gif":  false,
		"no-extension":   false,
		"archive.mp4.gz": false,
	} {
		assert.Equal(t, want, IsVideo(path), path)
	}
}

func TestResolveLocal(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "photo.png")
	require.NoError(t, os.WriteFile(file, []byte("png"), 0600))

	got, err := Resolve(context.Background(), "  "+file+" ", dir)
	require.NoError(t, err)
	assert.Equal(t, file, got)

	_, err = Resolve(context.Background(), filepath.Join(dir, "missing.png"), dir)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)

	_, err = Resolve(context.Background(), dir, dir)
	assert.ErrorIs(t, err, types.ErrInvalidRequest)
}

func TestResolveDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/typed":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-bytes"))
		case "/clip.MP4":
			w.Header().Set("Content-Type", "application/octet-stream-unknown")
			w.Write([]byte("video-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	r := NewResolver(dir)

	got, err := r.Resolve(context.Background(), srv.URL+"/typed")
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(got))
	assert.True(t, strings.HasPrefix(filepath.Base(got), "dl_"))
	assert.Equal(t, ".jpg", filepath.Ext(got))
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	got, err = r.Resolve(context.Background(), srv.URL+"/clip.MP4?sig=1")
	require.NoError(t, err)
	assert.Equal(t, ".mp4", filepath.Ext(got))
	assert.True(t, IsVideo(got))

	_, err = r.Resolve(context.Background(), srv.URL+"/missing")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".part"), "leftover %s", e.Name())
	}
}

func TestGuessExt(t *testing.T) {
	assert.Equal(t, ".png", guessExt("https://x/a", "image/png; charset=binary"))
	assert.Equal(t, ".gif", guessExt("https://x/a.gif?x=1", ""))
	assert.Equal(t, ".bin", guessExt("https://x/a", ""))
}

package actions

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/browser/browsertest"
	"github.com/ibeckermayer/xpilot/internal/config"
	"github.com/ibeckermayer/xpilot/internal/humanize"
	"github.com/ibeckermayer/xpilot/internal/media"
	"github.com/ibeckermayer/xpilot/internal/types"
)

const (
	tweetArticle = `article[data-testid="tweet"]`
	textbox      = `div[data-testid="tweetTextarea_0"][role="textbox"]`
	submitInline = `button[data-testid="tweetButtonInline"]`
	confirmSheet = `[data-testid="confirmationSheetConfirm"]`
	menu         = `div[role="menu"]`
	dialog       = `div[role="dialog"]`
	postURL      = "https://x.com/someone/status/1790000000000000000"
)

func testTimeouts() config.TimeoutsConfig {
	return config.TimeoutsConfig{
		Selector:   time.Second,
		Navigation: time.Second,
		Media:      3 * time.Second,
		VideoMedia: 3 * time.Second,
		Gate:       2 * time.Second,
		Completion: 300 * time.Millisecond,
	}
}

func newTestRunner(t *testing.T, tweak func(*config.TimeoutsConfig)) *Runner {
	t.Helper()
	timeouts := testTimeouts()
	if tweak != nil {
		tweak(&timeouts)
	}
	r := NewRunner(humanize.Disabled(), timeouts, zap.NewNop())
	r.MediaInterval = 5 * time.Millisecond
	return r
}

func postPage() *browsertest.Page {
	page := browsertest.New()
	page.Show(tweetArticle)
	return page
}

func clicked(page *browsertest.Page, key string) bool {
	for _, e := range page.Log() {
		if e == "click:"+key || e == "force:"+key {
			return true
		}
	}
	return false
}

func indexOf(events []string, prefix string) int {
	for i, e := range events {
		if strings.HasPrefix(e, prefix) {
			return i
		}
	}
	return -1
}

func TestToggleActions(t *testing.T) {
	for _, tc := range []struct {
		kind types.Kind
		key  string
	}{
		{types.Like, `[data-testid="like"]`},
		{types.Unlike, `[data-testid="unlike"]`},
		{types.Bookmark, `[data-testid="bookmark"]`},
		{types.UndoBookmark, `[data-testid="removeBookmark"]`},
	} {
		t.Run(string(tc.kind), func(t *testing.T) {
			page := postPage()
			page.Show(tc.key)

			res, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
				Label: "main", Kind: tc.kind, Target: "https://twitter.com/someone/status/1790000000000000000",
			})
			require.NoError(t, err)
			assert.Equal(t, postURL, res.Target)
			assert.True(t, page.Did("navigate:"+postURL))
			assert.True(t, clicked(page, tc.key))
		})
	}
}

func TestLikeFallsBackToAccessibleName(t *testing.T) {
	page := postPage()
	page.Show("name:Like")

	_, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
		Label: "main", Kind: types.Like, Target: postURL,
	})
	require.NoError(t, err)
	assert.True(t, clicked(page, "name:Like"))
}

func TestRepostWaitsForMenu(t *testing.T) {
	t.Run("menu opens", func(t *testing.T) {
		page := postPage()
		page.Show(`[data-testid="retweet"]`).OnClick = func(p *browsertest.Page) {
			p.Show(menu)
			p.Show(`[data-testid="retweetConfirm"]`)
		}

		_, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
			Label: "main", Kind: types.Repost, Target: "1790000000000000000",
		})
		require.NoError(t, err)
		assert.True(t, page.Did("navigate:https://x.com/i/status/1790000000000000000"))
		assert.True(t, clicked(page, `[data-testid="retweetConfirm"]`))
	})

	t.Run("menu never opens", func(t *testing.T) {
		page := postPage()
		page.Show(`[data-testid="retweet"]`)
		page.Show(`[data-testid="retweetConfirm"]`)

		_, err := newTestRunner(t, func(c *config.TimeoutsConfig) { c.Selector = 200 * time.Millisecond }).
			Run(context.Background(), page, types.Request{Label: "main", Kind: types.Repost, Target: postURL})
		require.ErrorIs(t, err, types.ErrTimeout)
		assert.Equal(t, StepMenu, types.StepOf(err))
		assert.False(t, clicked(page, `[data-testid="retweetConfirm"]`))
	})
}

func TestShareCopiesLink(t *testing.T) {
	page := postPage()
	page.Show(`[data-testid="share"]`).OnClick = func(p *browsertest.Page) {
		p.Show(menu)
		p.Show("name:Copy link")
	}

	_, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
		Label: "main", Kind: types.Share, Target: postURL,
	})
	require.NoError(t, err)
	assert.True(t, clicked(page, "name:Copy link"))
}

func profilePage(unfollowConfirms bool) *browsertest.Page {
	page := browsertest.New()
	page.Show(`[data-testid$="-unfollow"]`).OnClick = func(p *browsertest.Page) {
		if unfollowConfirms {
			p.Show(confirmSheet)
		}
	}
	return page
}

func TestUnfollowRequiresConfirmation(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		page := profilePage(true)
		res, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
			Label: "main", Kind: types.Unfollow, Target: "@someone",
		})
		require.NoError(t, err)
		assert.True(t, res.Confirm)
		assert.True(t, page.Did("navigate:https://x.com/someone"))
		assert.True(t, clicked(page, confirmSheet))
	})

	t.Run("sheet missing", func(t *testing.T) {
		page := profilePage(false)
		res, err := newTestRunner(t, func(c *config.TimeoutsConfig) { c.Selector = 200 * time.Millisecond }).
			Run(context.Background(), page, types.Request{Label: "main", Kind: types.Unfollow, Target: "https://x.com/someone"})
		require.Error(t, err)
		assert.Equal(t, StepConfirm, types.StepOf(err))
		assert.False(t, res.Confirm)
	})
}

func TestFollow(t *testing.T) {
	page := browsertest.New()
	page.Show(`[data-testid$="-follow"]`)

	_, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
		Label: "main", Kind: types.Follow, Target: "x.com/someone",
	})
	require.NoError(t, err)
	assert.True(t, clicked(page, `[data-testid$="-follow"]`))
}

func deletePage(withConfirm bool) *browsertest.Page {
	page := postPage()
	page.Show(`article[data-testid="tweet"] [data-testid="caret"]`).OnClick = func(p *browsertest.Page) {
		p.Show(menu)
		p.Show("name:Delete").OnClick = func(p *browsertest.Page) {
			if withConfirm {
				p.Show(confirmSheet)
			}
		}
	}
	return page
}

func TestDelete(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		page := deletePage(true)
		res, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
			Label: "main", Kind: types.Delete, Target: "1790000000000000000",
		})
		require.NoError(t, err)
		assert.True(t, res.Confirm)

		events := page.Log()
		caret := indexOf(events, `click:article[data-testid="tweet"] [data-testid="caret"]`)
		item := indexOf(events, "click:name:Delete")
		confirm := indexOf(events, "click:"+confirmSheet)
		require.True(t, caret >= 0 && item >= 0 && confirm >= 0, "events: %v", events)
		assert.Less(t, caret, item)
		assert.Less(t, item, confirm)
	})

	t.Run("confirmation never appears", func(t *testing.T) {
		page := deletePage(false)
		res, err := newTestRunner(t, func(c *config.TimeoutsConfig) { c.Selector = 200 * time.Millisecond }).
			Run(context.Background(), page, types.Request{Label: "main", Kind: types.Delete, Target: postURL})
		require.ErrorIs(t, err, types.ErrTimeout)
		assert.Equal(t, StepConfirm, types.StepOf(err))
		assert.False(t, res.Confirm)
	})
}

// composerPage opens a composer dialog with a text box and a hidden file
// input when the compose button is clicked.
func composerPage() *browsertest.Page {
	page := browsertest.New()
	page.Show(`[data-testid="SideNav_NewTweet_Button"]`).OnClick = func(p *browsertest.Page) {
		p.Show(dialog)
		p.Show(textbox)
		p.Set(`input[type="file"][data-testid="fileInput"]`, &browsertest.Element{Attached: true})
	}
	return page
}

func TestPublishWithVideo(t *testing.T) {
	page := composerPage()
	page.Set(media.Preview[0].Query, &browsertest.Element{Seq: []bool{false, true}})
	page.Set(media.BusyIndicator[0].Query, &browsertest.Element{Seq: []bool{false, false, true, true, false}})
	page.Set(submitInline, &browsertest.Element{
		Visible:      true,
		AriaDisabled: true,
		EnableAfter:  2,
		OnClick: func(p *browsertest.Page) {
			p.Hide(dialog)
			p.Show(`[data-testid="toast"] a[href*="/status/"]`).Attrs = map[string]string{"href": "/me/status/42"}
		},
	})

	res, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
		Label:      "main",
		Kind:       types.Publish,
		Text:       "hello world",
		MediaPaths: []string{"/tmp/clip.mp4"},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello world", page.Typed())
	assert.Equal(t, []string{"not-attached", "preview-pending", "busy", "preview-pending", "settled"}, res.Media)
	assert.Equal(t, "https://x.com/me/status/42", res.PostURL)
	assert.True(t, res.Confirm)

	events := page.Log()
	files := indexOf(events, `files:input[type="file"][data-testid="fileInput"]:/tmp/clip.mp4`)
	submit := indexOf(events, "click:"+submitInline)
	require.True(t, files >= 0 && submit >= 0, "events: %v", events)
	assert.Less(t, files, submit)
}

func TestPublishGateHonorsAriaDisabled(t *testing.T) {
	page := composerPage()
	page.Set(submitInline, &browsertest.Element{Visible: true, AriaDisabled: true})

	_, err := newTestRunner(t, func(c *config.TimeoutsConfig) { c.Gate = 300 * time.Millisecond }).
		Run(context.Background(), page, types.Request{Label: "main", Kind: types.Publish, Text: "hi"})
	require.ErrorIs(t, err, types.ErrNotReadyTimeout)
	assert.Equal(t, StepGate, types.StepOf(err))
	assert.Contains(t, err.Error(), "aria-disabled=true")
	assert.False(t, clicked(page, submitInline))
}

func TestPublishMediaTimeoutSkipsSubmit(t *testing.T) {
	page := composerPage()
	page.Show(media.Preview[0].Query)
	page.Show(media.BusyIndicator[0].Query)
	page.Show(submitInline)

	res, err := newTestRunner(t, func(c *config.TimeoutsConfig) { c.Media = 100 * time.Millisecond }).
		Run(context.Background(), page, types.Request{
			Label: "main", Kind: types.Publish, Text: "pic", MediaPaths: []string{"/tmp/photo.png"},
		})
	require.ErrorIs(t, err, types.ErrMediaTimeout)
	assert.Equal(t, StepMedia, types.StepOf(err))
	assert.Contains(t, res.Media, "busy")
	assert.False(t, clicked(page, submitInline))
}

func TestReply(t *testing.T) {
	t.Run("opens the reply box", func(t *testing.T) {
		page := postPage()
		page.Show(`[data-testid="reply"]`).OnClick = func(p *browsertest.Page) {
			p.Show(textbox)
			p.Show(submitInline)
		}

		res, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
			Label: "main", Kind: types.Reply, Target: postURL, Text: "nice",
		})
		require.NoError(t, err)
		assert.True(t, clicked(page, `[data-testid="reply"]`))
		assert.True(t, clicked(page, submitInline))
		assert.True(t, res.Confirm, "no dialog means the inline composer is done")
	})

	t.Run("reply box already open", func(t *testing.T) {
		page := postPage()
		page.Show(textbox)
		page.Show(submitInline)

		_, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
			Label: "main", Kind: types.Reply, Target: postURL, Text: "nice",
		})
		require.NoError(t, err)
		assert.False(t, page.Did(`click:[data-testid="reply"]`))
		assert.Equal(t, "nice", page.Typed())
	})
}

func TestQuote(t *testing.T) {
	page := postPage()
	page.Show(`[data-testid="retweet"]`).OnClick = func(p *browsertest.Page) {
		p.Show(menu)
		p.Show("name:Quote").OnClick = func(p *browsertest.Page) {
			p.Show(dialog)
			p.Show(textbox)
			p.Show(`button[data-testid="tweetButton"]`).OnClick = func(p *browsertest.Page) {
				p.Hide(dialog)
			}
		}
	}

	res, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
		Label: "main", Kind: types.Quote, Target: postURL, Text: "look",
	})
	require.NoError(t, err)
	assert.True(t, clicked(page, `button[data-testid="tweetButton"]`))
	assert.True(t, res.Confirm)
	assert.Empty(t, res.PostURL)
}

func TestSessionExpired(t *testing.T) {
	t.Run("login form", func(t *testing.T) {
		page := browsertest.New()
		page.OnNavigate = func(p *browsertest.Page, _ string) { p.Show(`input[name="text"]`) }

		_, err := newTestRunner(t, nil).Run(context.Background(), page, types.Request{
			Label: "main", Kind: types.Like, Target: postURL,
		})
		require.ErrorIs(t, err, types.ErrSessionExpired)
		assert.Equal(t, StepNavigate, types.StepOf(err))
	})

	t.Run("redirect", func(t *testing.T) {
		page := browsertest.New()
		page.OnNavigate = func(p *browsertest.Page, _ string) {
			p.SetURL("https://x.com/i/flow/login?redirect_after_login=%2Fhome")
		}

		_, err := newTestRunner(t, func(c *config.TimeoutsConfig) { c.Navigation = 100 * time.Millisecond }).
			Run(context.Background(), page, types.Request{Label: "main", Kind: types.Publish, Text: "hi"})
		require.ErrorIs(t, err, types.ErrSessionExpired)
	})
}

func TestRunRejectsInvalidRequests(t *testing.T) {
	r := newTestRunner(t, nil)
	for name, req := range map[string]types.Request{
		"reply without text":  {Label: "main", Kind: types.Reply, Target: postURL},
		"like without target": {Label: "main", Kind: types.Like},
		"like on a profile":   {Label: "main", Kind: types.Like, Target: "https://x.com/someone"},
		"foreign host":        {Label: "main", Kind: types.Like, Target: "https://example.com/a/status/1"},
		"two media files":     {Label: "main", Kind: types.Publish, Text: "x", MediaPaths: []string{"a.png", "b.png"}},
	} {
		t.Run(name, func(t *testing.T) {
			page := postPage()
			_, err := r.Run(context.Background(), page, req)
			require.ErrorIs(t, err, types.ErrInvalidRequest)
			assert.Equal(t, StepValidate, types.StepOf(err))
			assert.Empty(t, page.Log(), "nothing happens in the browser")
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRunner(t, nil).Run(ctx, postPage(), types.Request{Label: "main", Kind: types.Like, Target: postURL})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNormalizeTarget(t *testing.T) {
	for _, tc := range []struct {
		kind   types.Kind
		in     string
		want   string
		hasErr bool
	}{
		{types.Publish, "", HomeURL, false},
		{types.Like, "1790000000000000000", "https://x.com/i/status/1790000000000000000", false},
		{types.Like, "https://twitter.com/a/status/12?s=20", "https://x.com/a/status/12?s=20", false},
		{types.Like, "http://mobile.twitter.com/a/status/12#frag", "https://x.com/a/status/12", false},
		{types.Reply, "x.com/a/status/12", "https://x.com/a/status/12", false},
		{types.Follow, "@jack", "https://x.com/jack", false},
		{types.Follow, "https://twitter.com/jack", "https://x.com/jack", false},
		{types.Follow, "https://x.com/", "", true},
		{types.Like, "https://x.com/jack", "", true},
		{types.Delete, "ftp://x.com/a/status/1", "", true},
		{types.Delete, "  ", "", true},
	} {
		got, err := NormalizeTarget(tc.kind, tc.in)
		if tc.hasErr {
			assert.ErrorIs(t, err, types.ErrInvalidRequest, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestPostIDAndAbsoluteURL(t *testing.T) {
	assert.Equal(t, "12", PostID("https://x.com/a/status/12/photo/1"))
	assert.Empty(t, PostID("https://x.com/a"))
	assert.Equal(t, "https://x.com/me/status/1", absoluteURL("/me/status/1"))
	assert.Equal(t, "https://x.com/me/status/1", absoluteURL("https://twitter.com/me/status/1"))
	assert.Empty(t, absoluteURL("https://evil.example/me/status/1"))
}

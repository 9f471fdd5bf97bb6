package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"publish text only", Request{Label: "a", Kind: Publish, Text: "hello"}, false},
		{"publish without text", Request{Label: "a", Kind: Publish}, true},
		{"reply needs target", Request{Label: "a", Kind: Reply, Text: "hi"}, true},
		{"reply ok", Request{Label: "a", Kind: Reply, Text: "hi", Target: "https://x.com/a/status/1"}, false},
		{"like needs target", Request{Label: "a", Kind: Like}, true},
		{"like ok", Request{Label: "a", Kind: Like, Target: "1"}, false},
		{"two media files", Request{Label: "a", Kind: Publish, Text: "x", MediaPaths: []string{"a.png", "b.png"}}, true},
		{"media on like", Request{Label: "a", Kind: Like, Target: "1", MediaPaths: []string{"a.png"}}, true},
		{"missing label", Request{Kind: Like, Target: "1"}, true},
		{"unknown kind", Request{Label: "a", Kind: "poke", Target: "1"}, true},
		{"profile ok", Request{Label: "a", Kind: UpdateProfile, Profile: &ProfileChanges{Bio: "hi"}}, false},
		{"profile without changes", Request{Label: "a", Kind: UpdateProfile, Profile: &ProfileChanges{}}, true},
		{"profile missing", Request{Label: "a", Kind: UpdateProfile}, true},
		{"profile bio too long", Request{Label: "a", Kind: UpdateProfile, Profile: &ProfileChanges{Bio: strings.Repeat("é", MaxBioLen+1)}}, true},
		{"profile name at limit", Request{Label: "a", Kind: UpdateProfile, Profile: &ProfileChanges{Name: strings.Repeat("n", MaxNameLen)}}, false},
		{"profile on like", Request{Label: "a", Kind: Like, Target: "1", Profile: &ProfileChanges{Bio: "x"}}, true},
		{"profile media goes through fields", Request{Label: "a", Kind: UpdateProfile, Profile: &ProfileChanges{Name: "n"}, MediaPaths: []string{"a.png"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseKindAliases(t *testing.T) {
	k, err := ParseKind("undo_repost")
	require.NoError(t, err)
	assert.Equal(t, UndoRepost, k)

	k, err = ParseKind("Tweet")
	require.NoError(t, err)
	assert.Equal(t, Publish, k)

	k, err = ParseKind("profile")
	require.NoError(t, err)
	assert.Equal(t, UpdateProfile, k)

	_, err = ParseKind("nope")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestLoginOutcomeMajority(t *testing.T) {
	o := LoginOutcome{URLSignal: true, CookieSignal: true}
	assert.True(t, o.Decide(), "two of three signals must succeed")

	o = LoginOutcome{ControlSignal: true}
	assert.False(t, o.Decide(), "a single signal must not succeed")

	o = LoginOutcome{URLSignal: true, ControlSignal: true, CookieSignal: true}
	assert.Equal(t, 3, o.Votes())
	assert.True(t, o.Decide())
}

func TestActionErrorKeepsKind(t *testing.T) {
	inner := AtStep("media", fmt.Errorf("waiting: %w", ErrMediaTimeout))
	err := error(&ActionError{Label: "main", Kind: Publish, Step: StepOf(inner), Err: inner})

	assert.ErrorIs(t, err, ErrMediaTimeout)
	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "media", ae.Step)
	assert.Contains(t, err.Error(), "step=media")
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(ErrRateLimited, Like))
	assert.False(t, Retryable(ErrTimeout, Publish), "publish could duplicate content")
	assert.True(t, Retryable(ErrTimeout, Like))
}

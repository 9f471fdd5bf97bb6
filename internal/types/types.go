package types

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind identifies one supported X action.
type Kind string

const (
	Publish       Kind = "publish"
	Reply         Kind = "reply"
	Quote         Kind = "quote"
	Like          Kind = "like"
	Unlike        Kind = "unlike"
	Repost        Kind = "repost"
	UndoRepost    Kind = "undo-repost"
	Bookmark      Kind = "bookmark"
	UndoBookmark  Kind = "undo-bookmark"
	Follow        Kind = "follow"
	Unfollow      Kind = "unfollow"
	Delete        Kind = "delete"
	Share         Kind = "share"
	UpdateProfile Kind = "update-profile"
)

// Kinds lists every action kind in catalog order.
var Kinds = []Kind{
	Publish, Reply, Quote, Like, Unlike, Repost, UndoRepost,
	Bookmark, UndoBookmark, Follow, Unfollow, Delete, Share, UpdateProfile,
}

// ParseKind maps a user supplied name to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	switch s {
	case "post", "tweet":
		return Publish, nil
	case "unbookmark":
		return UndoBookmark, nil
	case "unrepost", "unretweet":
		return UndoRepost, nil
	case "profile", "edit-profile":
		return UpdateProfile, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidRequest, s)
}

// Composes reports whether the action opens a composer and submits text.
func (k Kind) Composes() bool {
	return k == Publish || k == Reply || k == Quote
}

// TargetsProfile reports whether the target is a profile URL rather than a post.
func (k Kind) TargetsProfile() bool {
	return k == Follow || k == Unfollow
}

// NeedsTarget reports whether the action acts on a post or profile given by
// the caller.
func (k Kind) NeedsTarget() bool {
	return k != Publish && k != UpdateProfile
}

// Profile field limits enforced by X's edit form.
const (
	MaxNameLen     = 50
	MaxBioLen      = 160
	MaxLocationLen = 30
	MaxWebsiteLen  = 100
)

// ProfileChanges lists the profile fields to overwrite. Empty fields are
// left as they are. Avatar and Banner are local paths or http(s) URLs.
type ProfileChanges struct {
	Name     string `json:"name,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Location string `json:"location,omitempty"`
	Website  string `json:"website,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Banner   string `json:"banner,omitempty"`
}

// Empty reports whether nothing would change.
func (p ProfileChanges) Empty() bool {
	return p == ProfileChanges{}
}

func (p ProfileChanges) validate() error {
	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"name", p.Name, MaxNameLen},
		{"bio", p.Bio, MaxBioLen},
		{"location", p.Location, MaxLocationLen},
		{"website", p.Website, MaxWebsiteLen},
	} {
		if n := utf8.RuneCountInString(f.value); n > f.max {
			return fmt.Errorf("%w: %s is %d characters, X allows %d", ErrInvalidRequest, f.name, n, f.max)
		}
	}
	return nil
}

// Request is one action to run on behalf of a saved account.
type Request struct {
	Label      string          `json:"label"`
	Kind       Kind            `json:"kind"`
	Target     string          `json:"target,omitempty"`
	Text       string          `json:"text,omitempty"`
	MediaPaths []string        `json:"media_paths,omitempty"`
	Profile    *ProfileChanges `json:"profile,omitempty"`
	Headless   bool            `json:"headless"`
	Settle     time.Duration   `json:"settle"`
}

// Media returns the single attached media path, or "".
func (r Request) Media() string {
	if len(r.MediaPaths) == 0 {
		return ""
	}
	return strings.TrimSpace(r.MediaPaths[0])
}

// Validate checks the request before dispatch.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Label) == "" {
		return fmt.Errorf("%w: account label required", ErrInvalidRequest)
	}
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	if r.Kind.Composes() && strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: text required for %s", ErrInvalidRequest, r.Kind)
	}
	if r.Kind.NeedsTarget() && strings.TrimSpace(r.Target) == "" {
		return fmt.Errorf("%w: target required for %s", ErrInvalidRequest, r.Kind)
	}
	if r.Kind == UpdateProfile {
		if r.Profile == nil || r.Profile.Empty() {
			return fmt.Errorf("%w: no profile fields to update", ErrInvalidRequest)
		}
		if err := r.Profile.validate(); err != nil {
			return err
		}
	} else if r.Profile != nil {
		return fmt.Errorf("%w: %s does not take profile changes", ErrInvalidRequest, r.Kind)
	}
	if len(r.MediaPaths) > 1 {
		return fmt.Errorf("%w: at most one media file, got %d", ErrInvalidRequest, len(r.MediaPaths))
	}
	if len(r.MediaPaths) == 1 && !r.Kind.Composes() {
		return fmt.Errorf("%w: %s does not accept media", ErrInvalidRequest, r.Kind)
	}
	if r.Settle < 0 {
		return fmt.Errorf("%w: negative settle time", ErrInvalidRequest)
	}
	return nil
}

// Result is returned by a completed choreography.
type Result struct {
	Kind     Kind          `json:"kind"`
	Target   string        `json:"target,omitempty"`
	PostURL  string        `json:"post_url,omitempty"`
	Media    []string      `json:"media_states,omitempty"`
	Confirm  bool          `json:"confirmed"`
	Duration time.Duration `json:"duration"`
}

// Bundle points at captured diagnostic artifacts.
type Bundle struct {
	Screenshot string `json:"screenshot,omitempty"`
	DOM        string `json:"dom,omitempty"`
}

// LoginOutcome records the three independent login signals.
type LoginOutcome struct {
	Success       bool    `json:"success"`
	URLSignal     bool    `json:"url_signal"`
	ControlSignal bool    `json:"control_signal"`
	CookieSignal  bool    `json:"cookie_signal"`
	SessionFile   string  `json:"session_file,omitempty"`
	Diagnostics   *Bundle `json:"diagnostics,omitempty"`
}

// Votes counts the positive signals.
func (o LoginOutcome) Votes() int {
	n := 0
	for _, v := range []bool{o.URLSignal, o.ControlSignal, o.CookieSignal} {
		if v {
			n++
		}
	}
	return n
}

// Decide sets Success from the signals: two of three is enough.
func (o *LoginOutcome) Decide() bool {
	o.Success = o.Votes() >= 2
	return o.Success
}

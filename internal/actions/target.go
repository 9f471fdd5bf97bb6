package actions

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ibeckermayer/xpilot/internal/types"
)

var (
	postIDPattern   = regexp.MustCompile(`^\d+$`)
	handlePattern   = regexp.MustCompile(`^@?[A-Za-z0-9_]{1,15}$`)
	statusIDPattern = regexp.MustCompile(`/status/(\d+)`)
)

// NormalizeTarget turns a user supplied target into the URL the choreography
// navigates to. twitter.com hosts become x.com, a bare numeric ID becomes a
// status URL and, for follow actions, a bare handle becomes a profile URL.
func NormalizeTarget(kind types.Kind, target string) (string, error) {
	switch kind {
	case types.Publish:
		return HomeURL, nil
	case types.UpdateProfile:
		return ProfileSettingsURL, nil
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return "", fmt.Errorf("%w: target required for %s", types.ErrInvalidRequest, kind)
	}

	if kind.TargetsProfile() {
		if handlePattern.MatchString(target) {
			return baseURL + "/" + strings.TrimPrefix(target, "@"), nil
		}
	} else if postIDPattern.MatchString(target) {
		return baseURL + "/i/status/" + target, nil
	}

	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: bad target %q: %v", types.ErrInvalidRequest, target, err)
	}
	if !canonicalHost(u) {
		return "", fmt.Errorf("%w: %q is not an x.com URL", types.ErrInvalidRequest, target)
	}
	u.Scheme = "https"
	u.Host = "x.com"
	u.Fragment, u.RawFragment = "", ""

	if !kind.TargetsProfile() && !statusIDPattern.MatchString(u.Path) {
		return "", fmt.Errorf("%w: %s needs a post URL, got %q", types.ErrInvalidRequest, kind, target)
	}
	if kind.TargetsProfile() && strings.Trim(u.Path, "/") == "" {
		return "", fmt.Errorf("%w: %s needs a profile URL, got %q", types.ErrInvalidRequest, kind, target)
	}
	return u.String(), nil
}

func canonicalHost(u *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	switch strings.ToLower(u.Hostname()) {
	case "x.com", "www.x.com", "mobile.x.com",
		"twitter.com", "www.twitter.com", "mobile.twitter.com":
		return true
	}
	return false
}

// PostID extracts the numeric status ID from a post URL.
func PostID(postURL string) string {
	if m := statusIDPattern.FindStringSubmatch(postURL); m != nil {
		return m[1]
	}
	return ""
}

// absoluteURL resolves a link found on the page against x.com.
func absoluteURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "/") {
		return baseURL + href
	}
	u, err := url.Parse(href)
	if err != nil || !canonicalHost(u) {
		return ""
	}
	u.Scheme, u.Host = "https", "x.com"
	return u.String()
}

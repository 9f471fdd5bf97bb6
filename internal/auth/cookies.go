package auth

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
)

// Cookie names X sets on a signed-in browser.
const (
	AuthTokenCookie = "auth_token"
	CSRFCookie      = "ct0"
)

// Cookie is the canonical persisted cookie. The JSON layout matches the
// storage-state files produced by common browser tooling.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// Session is the persisted authentication state of one account.
type Session struct {
	Cookies []Cookie          `json:"cookies"`
	Origins []json.RawMessage `json:"origins"`

	// Source records how the session was obtained; it is kept in the
	// account registry, not in the file.
	Source string `json:"-"`
}

// HasAuth reports whether both X auth cookies are present.
func (s *Session) HasAuth() bool {
	hasAuthToken, hasCT0 := false, false
	for _, c := range s.Cookies {
		if c.Value == "" {
			continue
		}
		switch c.Name {
		case AuthTokenCookie:
			hasAuthToken = true
		case CSRFCookie:
			hasCT0 = true
		}
	}
	return hasAuthToken && hasCT0
}

// ExpiresAt returns the earliest expiry among the auth cookies, or the zero
// time when none carries one.
func (s *Session) ExpiresAt() time.Time {
	var earliest time.Time
	for _, c := range s.Cookies {
		if c.Name != AuthTokenCookie && c.Name != CSRFCookie {
			continue
		}
		if c.Expires <= 0 {
			continue
		}
		exp := secondsToTime(c.Expires)
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}
	return earliest
}

// Valid checks that the session is signed in and not expired at now.
func (s *Session) Valid(now time.Time) bool {
	if !s.HasAuth() {
		return false
	}
	exp := s.ExpiresAt()
	return exp.IsZero() || now.Before(exp)
}

// Params converts the session for injection into a browser context.
func (s *Session) Params() []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: sameSiteParam(c.SameSite),
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(secondsToTime(c.Expires))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	return params
}

// FromNetwork builds a session from a browser cookie jar, normalizing
// platform domains.
func FromNetwork(cookies []*network.Cookie) *Session {
	s := &Session{Cookies: make([]Cookie, 0, len(cookies)), Origins: []json.RawMessage{}}
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		s.Cookies = append(s.Cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   canonicalDomain(c.Domain),
			Path:     path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: canonicalSameSite(c.SameSite.String()),
		})
	}
	return s
}

func sameSiteParam(v string) network.CookieSameSite {
	switch canonicalSameSite(v) {
	case "Strict":
		return network.CookieSameSiteStrict
	case "Lax":
		return network.CookieSameSiteLax
	default:
		return network.CookieSameSiteNone
	}
}

func canonicalSameSite(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return "Lax"
	case "strict":
		return "Strict"
	default:
		return "None"
	}
}

// canonicalDomain collapses twitter.com onto x.com and dot-prefixes the
// platform apex. Foreign domains are kept as they are.
func canonicalDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" {
		return defaultDomain
	}
	host := strings.TrimPrefix(d, ".")
	switch {
	case host == "twitter.com" || strings.HasSuffix(host, ".twitter.com"):
		host = strings.TrimSuffix(host, "twitter.com") + "x.com"
	case host == "x.com" || strings.HasSuffix(host, ".x.com"):
	default:
		return domain
	}
	return "." + host
}

func secondsToTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}

package auth

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ibeckermayer/xpilot/internal/types"
)

const (
	defaultDomain = ".x.com"
	defaultTTL    = 365 * 24 * time.Hour
	maxLabelLen   = 80
)

var unsafeLabel = regexp.MustCompile(`[^A-Za-z0-9_.\-]+`)

// SafeLabel maps an account label to a filesystem-safe name.
func SafeLabel(label string) string {
	s := unsafeLabel.ReplaceAllString(strings.TrimSpace(label), "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	if s == "" {
		return "account"
	}
	return s
}

// Normalize converts a cookie export into a canonical Session. It accepts a
// bare array of cookies, a {cookies, origins} envelope, a single cookie
// object (with EditThisCookie style field names) and Netscape cookies.txt.
func Normalize(raw []byte) (*Session, error) {
	return normalize(raw, time.Now())
}

func normalize(raw []byte, now time.Time) (*Session, error) {
	raw = bytes.TrimSpace(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")))
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", types.ErrInvalidSessionData)
	}

	var entries []gjson.Result
	if raw[0] == '[' || raw[0] == '{' {
		if !gjson.ValidBytes(raw) {
			return nil, fmt.Errorf("%w: malformed JSON", types.ErrInvalidSessionData)
		}
		entries = cookieEntries(gjson.ParseBytes(raw))
	} else {
		var err error
		if entries, err = netscapeEntries(raw); err != nil {
			return nil, err
		}
	}

	s := &Session{Cookies: []Cookie{}, Origins: []json.RawMessage{}}
	for _, e := range entries {
		if c, ok := normalizeCookie(e, now); ok {
			s.Cookies = append(s.Cookies, c)
		}
	}
	if len(s.Cookies) == 0 {
		return nil, fmt.Errorf("%w: no cookies found", types.ErrInvalidSessionData)
	}
	return s, nil
}

func cookieEntries(doc gjson.Result) []gjson.Result {
	var list []gjson.Result
	switch {
	case doc.IsArray():
		list = doc.Array()
	case doc.IsObject():
		if cookies := doc.Get("cookies"); cookies.Exists() {
			if cookies.IsArray() {
				list = cookies.Array()
			}
		} else if doc.Get("name").Exists() && doc.Get("value").Exists() {
			list = []gjson.Result{doc}
		}
	}

	out := make([]gjson.Result, 0, len(list))
	for _, item := range list {
		if item.IsObject() {
			out = append(out, item)
		}
	}
	return out
}

// netscapeEntries parses the tab separated cookies.txt format:
// domain, include-subdomains, path, secure, expiry, name, value.
func netscapeEntries(raw []byte) ([]gjson.Result, error) {
	var out []gjson.Result
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := false
		if rest, ok := strings.CutPrefix(line, "#HttpOnly_"); ok {
			line, httpOnly = rest, true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		entry := map[string]any{
			"domain":   fields[0],
			"path":     fields[2],
			"secure":   fields[3],
			"name":     fields[5],
			"value":    strings.Join(fields[6:], "\t"),
			"httpOnly": httpOnly,
		}
		if exp, err := strconv.ParseFloat(fields[4], 64); err == nil && exp > 0 {
			entry["expires"] = exp
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidSessionData, err)
		}
		out = append(out, gjson.ParseBytes(data))
	}
	return out, scanner.Err()
}

func normalizeCookie(e gjson.Result, now time.Time) (Cookie, bool) {
	name := first(e, "name", "Name")
	if name.Type != gjson.String || strings.TrimSpace(name.Str) == "" {
		return Cookie{}, false
	}

	c := Cookie{
		Name:     name.Str,
		Value:    stringOf(first(e, "value", "Value")),
		Domain:   defaultDomain,
		Path:     "/",
		HTTPOnly: boolOf(first(e, "httpOnly", "httponly", "HttpOnly"), false),
		Secure:   boolOf(first(e, "secure", "Secure"), true),
		SameSite: canonicalSameSite(stringOf(first(e, "sameSite", "samesite", "SameSite"))),
	}
	if d := first(e, "domain", "Domain"); d.Type == gjson.String && strings.TrimSpace(d.Str) != "" {
		c.Domain = canonicalDomain(d.Str)
	}
	if p := first(e, "path", "Path"); p.Type == gjson.String && p.Str != "" {
		c.Path = p.Str
	}

	exp, ok := floatOf(first(e, "expires", "expirationDate", "expiry"))
	switch {
	case !ok || exp == 0:
		c.Expires = float64(now.Add(defaultTTL).Unix())
	case exp < 0:
		// Browser session cookie.
		c.Expires = -1
	case exp > 1e11:
		// Milliseconds.
		c.Expires = exp / 1000
	default:
		c.Expires = exp
	}
	return c, true
}

// first returns the first of keys present with a non-null value.
func first(e gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := e.Get(k); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

func stringOf(v gjson.Result) string {
	switch v.Type {
	case gjson.String, gjson.Number, gjson.True, gjson.False:
		return v.String()
	}
	return ""
}

func boolOf(v gjson.Result, def bool) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.String:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	case gjson.Number:
		return v.Num != 0
	}
	return def
}

func floatOf(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return f, err == nil
	}
	return 0, false
}

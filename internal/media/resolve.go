package media

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/imroc/req/v3"

	"github.com/ibeckermayer/xpilot/internal/types"
)

const downloadTimeout = 120 * time.Second

var remotePattern = regexp.MustCompile(`(?i)^https?://`)

// Common types first; mime.ExtensionsByType returns them in alphabetical
// order, which puts ".jfif" ahead of ".jpg".
var preferredExt = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

// IsRemote reports whether s is an http(s) URL.
func IsRemote(s string) bool {
	return remotePattern.MatchString(strings.TrimSpace(s))
}

// Resolver turns a media argument into a local file path.
type Resolver struct {
	client *req.Client
	dir    string
}

// NewResolver creates a resolver downloading into dir.
func NewResolver(dir string) *Resolver {
	client := req.C().
		SetTimeout(downloadTimeout).
		SetUserAgent("Mozilla/5.0")
	return &Resolver{client: client, dir: dir}
}

// Resolve is a one-off Resolver.Resolve downloading into dir.
func Resolve(ctx context.Context, pathOrURL, dir string) (string, error) {
	return NewResolver(dir).Resolve(ctx, pathOrURL)
}

// Resolve returns a local path for pathOrURL. Local paths must exist and be
// regular files; URLs are downloaded to dl_<uuid><ext> under the resolver's
// directory.
func (r *Resolver) Resolve(ctx context.Context, pathOrURL string) (string, error) {
	src := strings.TrimSpace(pathOrURL)
	if src == "" {
		return "", fmt.Errorf("%w: empty media path", types.ErrInvalidRequest)
	}
	if !IsRemote(src) {
		return CheckLocal(src)
	}
	return r.download(ctx, src)
}

// CheckLocal verifies that path is an existing regular file.
func CheckLocal(path string) (string, error) {
	path = strings.TrimSpace(path)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: media file: %v", types.ErrInvalidRequest, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: media path %s is not a file", types.ErrInvalidRequest, path)
	}
	return path, nil
}

func (r *Resolver) download(ctx context.Context, rawURL string) (string, error) {
	if err := os.MkdirAll(r.dir, 0700); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(r.dir, "dl_*.part")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	// req opens and closes the output file itself.
	if err := tmp.Close(); err != nil {
		return "", err
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetOutputFile(tmpPath).
		Get(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to download media: %w", err)
	}
	if resp.IsErrorState() {
		return "", fmt.Errorf("failed to download media: %s", resp.Status)
	}

	ext := guessExt(rawURL, resp.GetHeader("Content-Type"))
	out := filepath.Join(r.dir, "dl_"+strings.ReplaceAll(uuid.NewString(), "-", "")+ext)
	if err := os.Rename(tmpPath, out); err != nil {
		return "", err
	}
	return out, nil
}

// guessExt prefers the response content type and falls back to the URL path.
func guessExt(rawURL, contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := preferredExt[mediaType]; ok {
			return ext
		}
		if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
			return exts[0]
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return strings.ToLower(ext)
		}
	}
	return ".bin"
}

package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// Capturer writes a screenshot and DOM dump per failure kind. A new failure
// of the same kind overwrites the previous artifacts.
type Capturer struct {
	dir    string
	logger *zap.Logger
}

// NewCapturer creates a capturer writing under dir.
func NewCapturer(dir string, logger *zap.Logger) *Capturer {
	return &Capturer{dir: dir, logger: logger.Named("diagnostics")}
}

// Dir returns the artifact directory.
func (c *Capturer) Dir() string { return c.dir }

// Sub returns a capturer writing into a subdirectory.
func (c *Capturer) Sub(name string) *Capturer {
	return &Capturer{dir: filepath.Join(c.dir, name), logger: c.logger}
}

// Capture saves <dir>/<kind>.png and <dir>/<kind>.html. It is best effort:
// whatever could be written is returned along with the joined errors.
func (c *Capturer) Capture(ctx context.Context, page Page, kind string) (*types.Bundle, error) {
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		return nil, err
	}

	// The action context may already be expired; give the capture its own
	// short budget while keeping the browser binding.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	bundle := &types.Bundle{}
	var errs []error

	if shot, err := page.Screenshot(ctx); err != nil {
		errs = append(errs, err)
	} else {
		path := filepath.Join(c.dir, kind+".png")
		if err := os.WriteFile(path, shot, 0600); err != nil {
			errs = append(errs, err)
		} else {
			bundle.Screenshot = path
		}
	}

	if html, err := page.HTML(ctx); err != nil {
		errs = append(errs, err)
	} else {
		path := filepath.Join(c.dir, kind+".html")
		if err := os.WriteFile(path, []byte(html), 0600); err != nil {
			errs = append(errs, err)
		} else {
			bundle.DOM = path
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		c.logger.Warn("diagnostic capture incomplete", zap.String("kind", kind), zap.Error(err))
	} else {
		c.logger.Info("diagnostics captured", zap.String("kind", kind),
			zap.String("screenshot", bundle.Screenshot), zap.String("dom", bundle.DOM))
	}
	return bundle, err
}

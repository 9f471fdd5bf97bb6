package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/types"
)

// actionSpec describes one catalog command.
type actionSpec struct {
	kind  types.Kind
	use   string
	short string
	args  cobra.PositionalArgs
}

var actionSpecs = []actionSpec{
	{types.Publish, "post <text>", "Publish a post", cobra.ExactArgs(1)},
	{types.Reply, "reply <post> <text>", "Reply to a post", cobra.ExactArgs(2)},
	{types.Quote, "quote <post> <text>", "Quote a post with a comment", cobra.ExactArgs(2)},
	{types.Like, "like <post>", "Like a post", cobra.ExactArgs(1)},
	{types.Unlike, "unlike <post>", "Remove a like", cobra.ExactArgs(1)},
	{types.Repost, "repost <post>", "Repost a post", cobra.ExactArgs(1)},
	{types.UndoRepost, "undo-repost <post>", "Undo a repost", cobra.ExactArgs(1)},
	{types.Bookmark, "bookmark <post>", "Bookmark a post", cobra.ExactArgs(1)},
	{types.UndoBookmark, "unbookmark <post>", "Remove a bookmark", cobra.ExactArgs(1)},
	{types.Follow, "follow <profile>", "Follow a profile (URL or @handle)", cobra.ExactArgs(1)},
	{types.Unfollow, "unfollow <profile>", "Unfollow a profile", cobra.ExactArgs(1)},
	{types.Delete, "delete <post>", "Delete one of your own posts", cobra.ExactArgs(1)},
	{types.Share, "share <post>", "Copy the link of a post through the share menu", cobra.ExactArgs(1)},
}

// actionFlags are shared by every catalog command.
type actionFlags struct {
	fanout
	media  string
	settle time.Duration
}

func newActionCmds(c *cli) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(actionSpecs))
	for _, spec := range actionSpecs {
		cmds = append(cmds, newActionCmd(c, spec))
	}
	return cmds
}

func newActionCmd(c *cli, spec actionSpec) *cobra.Command {
	f := &actionFlags{}

	cmd := &cobra.Command{
		Use:   spec.use,
		Short: spec.short,
		Args:  spec.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, text := splitArgs(spec.kind, args)
			return c.runAction(cmd, f, types.Request{Kind: spec.kind, Target: target, Text: text})
		},
	}

	f.register(cmd)
	if spec.kind.Composes() {
		cmd.Flags().StringVarP(&f.media, "media", "m", "", "image or video to attach (path or http(s) URL)")
	}
	cmd.Flags().DurationVar(&f.settle, "settle", 0, "wait after submitting before closing the browser (default timeouts.settle)")

	return cmd
}

// newRunCmd runs any catalog action by name, for scripts that build the
// action dynamically.
func newRunCmd(c *cli) *cobra.Command {
	f := &actionFlags{}

	cmd := &cobra.Command{
		Use:   "run <action> [target] [text]",
		Short: "Run a catalog action by name",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseKind(args[0])
			if err != nil {
				return err
			}
			target, text := splitArgs(kind, args[1:])
			return c.runAction(cmd, f, types.Request{Kind: kind, Target: target, Text: text})
		},
	}

	f.register(cmd)
	cmd.Flags().StringVarP(&f.media, "media", "m", "", "image or video to attach (compose actions only)")
	cmd.Flags().DurationVar(&f.settle, "settle", 0, "wait after submitting before closing the browser")

	return cmd
}

// newProfileCmd edits the profile of the selected accounts.
func newProfileCmd(c *cli) *cobra.Command {
	f := &actionFlags{}
	var changes types.ProfileChanges

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the profile name, bio, location, website, avatar or banner",
		Long:  "Only the fields given as flags are changed. --avatar and --banner take a file path or an http(s) URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := changes
			return c.runAction(cmd, f, types.Request{Kind: types.UpdateProfile, Profile: &p})
		},
	}

	f.register(cmd)
	flags := cmd.Flags()
	flags.StringVar(&changes.Name, "name", "", "display name")
	flags.StringVar(&changes.Bio, "bio", "", "bio")
	flags.StringVar(&changes.Location, "location", "", "location")
	flags.StringVar(&changes.Website, "website", "", "website")
	flags.StringVar(&changes.Avatar, "avatar", "", "avatar image (path or URL)")
	flags.StringVar(&changes.Banner, "banner", "", "banner image (path or URL)")
	flags.DurationVar(&f.settle, "settle", 0, "wait after saving before closing the browser")

	return cmd
}

// splitArgs maps positional arguments to target and text for kind.
func splitArgs(kind types.Kind, args []string) (target, text string) {
	if kind == types.Publish {
		if len(args) > 0 {
			text = args[0]
		}
		return "", text
	}
	if len(args) > 0 {
		target = args[0]
	}
	if kind.Composes() && len(args) > 1 {
		text = args[1]
	}
	return target, text
}

// runAction runs base once per selected account.
func (c *cli) runAction(cmd *cobra.Command, f *actionFlags, base types.Request) error {
	labels, err := f.labels(c.app.Sessions().Labels)
	if err != nil {
		return err
	}

	kind := base.Kind
	base.Headless = c.headless()
	base.Settle = f.settle
	if f.media != "" {
		base.MediaPaths = []string{f.media}
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	eng := c.app.Engine()
	return runAcross(cmd.Context(), labels, f.parallel, f.stagger, func(ctx context.Context, label string) error {
		req := base
		req.Label = label
		res, err := eng.Execute(ctx, req)
		if err != nil {
			var fields []zap.Field
			var ae *types.ActionError
			if errors.As(err, &ae) && ae.Diagnostics != nil {
				fields = append(fields, zap.String("screenshot", ae.Diagnostics.Screenshot))
			}
			fields = append(fields, zap.String("hint", retryHint(err, kind)))
			c.logger.Error("action failed", append(fields, zap.Error(err))...)
			return err
		}
		out.printf("%s\n", describe(label, res))
		return nil
	})
}

// retryHint tells the operator what to do about a failed action.
func retryHint(err error, kind types.Kind) string {
	switch {
	case errors.Is(err, types.ErrSessionExpired), errors.Is(err, types.ErrSessionNotFound),
		errors.Is(err, types.ErrInvalidSessionData):
		return "log in again or import fresh cookies"
	case errors.Is(err, types.ErrRateLimited), errors.Is(err, types.ErrChallengeRequired):
		return "X is blocking the account; resolve it in a visible browser first"
	case errors.Is(err, types.ErrInvalidRequest):
		return "fix the command arguments"
	case types.Retryable(err, kind):
		return "safe to retry"
	}
	return "check the account before retrying, the post may already exist"
}

func describe(label string, res *types.Result) string {
	msg := fmt.Sprintf("%s: %s done", label, res.Kind)
	if res.Target != "" {
		msg += " on " + res.Target
	}
	if res.PostURL != "" {
		msg += " -> " + res.PostURL
	}
	if !res.Confirm && (res.Kind.Composes() || res.Kind == types.UpdateProfile) {
		msg += " (completion not confirmed)"
	}
	return msg
}

// syncWriter serializes output from concurrent accounts.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

package actions

import (
	"context"

	"go.uber.org/zap"

	"github.com/ibeckermayer/xpilot/internal/browser"
	"github.com/ibeckermayer/xpilot/internal/types"
)

// Steps of the profile editor.
const (
	StepFill = "fill"
	StepCrop = "crop"
)

// updateProfile edits /settings/profile. Images go first: each one opens a
// crop dialog over the form.
func updateProfile(ctx context.Context, x *run) error {
	p := x.req.Profile

	for _, img := range []struct {
		input browser.Candidates
		path  string
	}{
		{BannerInput, p.Banner},
		{AvatarInput, p.Avatar},
	} {
		if img.path == "" {
			continue
		}
		if err := x.uploadImage(ctx, img.input, img.path); err != nil {
			return err
		}
	}

	for _, f := range []struct {
		field browser.Candidates
		value string
	}{
		{NameField, p.Name},
		{BioField, p.Bio},
		{LocationField, p.Location},
		{WebsiteField, p.Website},
	} {
		if f.value == "" {
			continue
		}
		if err := x.fill(ctx, f.field, f.value); err != nil {
			return err
		}
	}

	x.step(StepGate)
	button, err := browser.WaitUntilEnabled(ctx, x.page, SaveProfileButton, x.timeouts.Gate)
	if err != nil {
		return types.AtStep(StepGate, err)
	}
	x.step(StepSubmit)
	if err := x.human.Pause(ctx); err != nil {
		return types.AtStep(StepSubmit, err)
	}
	if _, err := browser.ClickFirstVisible(ctx, x.page, browser.Candidates{button.Spec}, x.timeouts.Selector); err != nil {
		return types.AtStep(StepSubmit, err)
	}

	if err := x.settle(ctx); err != nil {
		return err
	}
	return types.AtStep(StepSettle, x.saved(ctx))
}

// fill replaces the value of one text field.
func (x *run) fill(ctx context.Context, field browser.Candidates, value string) error {
	x.step(StepFill)
	el, err := x.human.Click(ctx, x.page, field, x.timeouts.Selector)
	if err != nil {
		return types.AtStep(StepFill, err)
	}
	if err := x.page.Clear(ctx, el); err != nil {
		return types.AtStep(StepFill, err)
	}
	return types.AtStep(StepFill, x.human.Type(ctx, x.page, value))
}

// uploadImage sets the file on a hidden input and confirms the crop dialog.
func (x *run) uploadImage(ctx context.Context, input browser.Candidates, path string) error {
	x.step(StepAttach)
	el, err := browser.FindAttached(ctx, x.page, input, x.timeouts.Selector)
	if err != nil {
		return types.AtStep(StepAttach, err)
	}
	if err := x.page.SetFiles(ctx, el, []string{path}); err != nil {
		return types.AtStep(StepAttach, err)
	}

	x.step(StepCrop)
	apply, err := browser.WaitForAnyVisible(ctx, x.page, CropApply, x.timeouts.Media)
	if err != nil {
		return types.AtStep(StepCrop, err)
	}
	if _, err := browser.ClickFirstVisible(ctx, x.page, browser.Candidates{apply.Spec}, x.timeouts.Selector); err != nil {
		return types.AtStep(StepCrop, err)
	}
	err = browser.PollUntil(ctx, browser.DefaultInterval, x.timeouts.Selector, func(ctx context.Context) (bool, error) {
		_, open, err := browser.AnyVisible(ctx, x.page, CropApply)
		return !open, err
	})
	return types.AtStep(StepCrop, err)
}

// saved waits for the editor to close. Like complete, a missing signal is
// only logged.
func (x *run) saved(ctx context.Context) error {
	err := browser.PollUntil(ctx, browser.DefaultInterval, x.timeouts.Completion, func(ctx context.Context) (bool, error) {
		_, open, err := browser.AnyVisible(ctx, x.page, SaveProfileButton)
		return err == nil && !open, nil
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	x.result.Confirm = err == nil
	if err != nil {
		x.log.Warn("profile editor still open after save", zap.Error(err))
	}
	return nil
}

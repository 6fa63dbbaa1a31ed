package sourcing

import (
	"context"
	"errors"

	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/protocol"
)

// CreatePage forwards inline module source without shape validation.
func (c *Client) CreatePage(ctx context.Context, page core.CreatePage) (Result, error) {
	if err := c.checkActive("createPage", BuildModeInline); err != nil {
		return Result{Slug: page.Slug}, err
	}
	return c.send(ctx, protocol.PathCreatePage, page.Slug, page)
}

// SetDataForSlug validates args, then registers the page for slug.
// Validation errors and 422 responses are returned as errors.
func (c *Client) SetDataForSlug(ctx context.Context, slug any, args map[string]any) (Result, error) {
	if err := c.checkActive("setDataForSlug", BuildModeDescriptor); err != nil {
		return Result{}, err
	}

	reg, err := core.ParseSetDataForSlug(slug, args)
	if err != nil {
		return Result{}, err
	}
	return c.send(ctx, protocol.PathSetDataForSlug, reg.Slug, reg)
}

// SetData attaches data to a slug. Only slug and data are transmitted.
func (c *Client) SetData(ctx context.Context, reg core.DataRegistration) (Result, error) {
	if err := c.checkActive("setData", BuildModeDescriptor, BuildModeInline); err != nil {
		return Result{Slug: reg.Slug}, err
	}
	if reg.Slug == "" {
		return Result{}, &core.RegistrationError{
			Kind:    core.ErrInvalidSlug,
			Message: "setData requires a slug",
		}
	}
	return c.send(ctx, protocol.PathSetData, reg.Slug, core.DataRegistration{Slug: reg.Slug, Data: reg.Data})
}

func (c *Client) send(ctx context.Context, endpoint, slug string, payload any) (Result, error) {
	err := c.transport.Post(ctx, endpoint, slug, payload)
	if err == nil {
		return Result{OK: true, Slug: slug}, nil
	}

	if errors.Is(err, core.ErrUnprocessablePayload) {
		return Result{Slug: slug, Err: err}, err
	}

	c.logger.Warn("registration failed, continuing", "endpoint", endpoint, "slug", slug, "error", err)
	return Result{Slug: slug, Err: err}, nil
}

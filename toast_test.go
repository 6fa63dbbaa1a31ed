package toast_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3-lines-studio/toast"
	"github.com/3-lines-studio/toast/internal/usecase"
)

func TestRegisterSource_RunsInProcess(t *testing.T) {
	toast.RegisterSource("root-test-blog", func(ctx context.Context, actions toast.Actions) error {
		res, err := actions.SetDataForSlug(ctx, "/", map[string]any{
			"component": toast.Filepath("src/pages/index.html"),
			"data":      map[string]any{"title": "Home"},
		})
		if err != nil {
			return err
		}
		if !res.OK {
			return res.Err
		}

		if _, err := actions.SetDataForSlug(ctx, "", map[string]any{}); !errors.Is(err, toast.ErrInvalidSlug) {
			return errors.New("expected empty slug to be rejected")
		}

		_, err = actions.CreatePage(ctx, toast.CreatePage{Slug: "/inline", Module: "export default () => null"})
		if !errors.Is(err, toast.ErrCapabilityUnavailable) {
			return errors.New("expected createPage to be unavailable in descriptor mode")
		}
		return nil
	})

	out := usecase.NewSourceService(nil).Source(context.Background(), usecase.SourceInput{
		SiteDir:    t.TempDir(),
		ModulePath: "go:root-test-blog",
		Mode:       toast.BuildModeDescriptor,
		Timeout:    10 * time.Second,
	})
	require.NoError(t, out.Error)
	require.Len(t, out.Pages, 1)

	page := out.Pages[0]
	assert.Equal(t, "/", page.Slug)
	require.NotNil(t, page.Component)
	assert.Equal(t, "src/pages/index.html", page.Component.Value())
	assert.Equal(t, "Home", page.Data["title"])
}

func TestRegisterSource_DuplicatePanics(t *testing.T) {
	noop := func(context.Context, toast.Actions) error { return nil }
	toast.RegisterSource("root-test-dup", noop)
	assert.Panics(t, func() { toast.RegisterSource("root-test-dup", noop) })
}

func TestDescriptors(t *testing.T) {
	assert.True(t, toast.NoModule().IsNoModule())
	assert.Equal(t, "filepath(src/pages/a.js)", toast.Filepath("src/pages/a.js").String())
	assert.Equal(t, "source(4 bytes)", toast.Source("code").String())
}

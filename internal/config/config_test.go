package config

import (
	"context"
	"image"
	"image/color"
	"io/fs"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setanarut/portrait"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "assets", cfg.AssetRoot)
	assert.Equal(t, 256, cfg.Width)
	assert.Equal(t, 4, cfg.Thickness)
	assert.Equal(t, 10*time.Second, cfg.LoadTimeout)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)

	opts, err := cfg.RenderOptions()
	require.NoError(t, err)
	assert.Equal(t, portrait.DegradeLayer, opts.OnLoadError)
	assert.Equal(t, color.NRGBA{A: 255}, color.NRGBAModel.Convert(opts.BorderColor))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORTRAIT_WIDTH", "128")
	t.Setenv("PORTRAIT_HEIGHT", "64")
	t.Setenv("PORTRAIT_OUTLINE_THICKNESS", "2")
	t.Setenv("PORTRAIT_BORDER_COLOR", "#ff0000")
	t.Setenv("PORTRAIT_ON_LOAD_ERROR", "keep-last")
	t.Setenv("PORTRAIT_LOAD_TIMEOUT", "250ms")
	t.Setenv("PORTRAIT_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	opts, err := cfg.RenderOptions()
	require.NoError(t, err)
	assert.Equal(t, 128, opts.Width)
	assert.Equal(t, 64, opts.Height)
	assert.Equal(t, 2, opts.Thickness)
	assert.Equal(t, 250*time.Millisecond, opts.LoadTimeout)
	assert.Equal(t, portrait.KeepLastFrame, opts.OnLoadError)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, color.NRGBAModel.Convert(opts.BorderColor))
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("PORTRAIT_WIDTH", "wide")
	_, err := Load()
	assert.ErrorContains(t, err, "parse env")
}

func TestRenderOptionsValidation(t *testing.T) {
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero width", func(c *Config) { c.Width = 0 }},
		{"negative height", func(c *Config) { c.Height = -1 }},
		{"zero thickness", func(c *Config) { c.Thickness = 0 }},
		{"bad color", func(c *Config) { c.BorderColor = "ultraviolet" }},
		{"bad policy", func(c *Config) { c.OnLoadError = "panic" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := cfg.RenderOptions()
			assert.Error(t, err)
		})
	}
}

func TestConcurrencyAndPlaceholderFromEnv(t *testing.T) {
	t.Setenv("PORTRAIT_MAX_CONCURRENT_LOADS", "3")
	t.Setenv("PORTRAIT_PLACEHOLDER", "placeholder.png")

	cfg, err := Load()
	require.NoError(t, err)
	opts, err := cfg.RenderOptions()
	require.NoError(t, err)
	assert.Equal(t, 3, opts.MaxConcurrentLoads)

	placeholder := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	var requested []string
	ld := portrait.LoaderFunc(func(ctx context.Context, source string) (image.Image, error) {
		requested = append(requested, source)
		if source != "placeholder.png" {
			return nil, fs.ErrNotExist
		}
		return placeholder, nil
	})
	img, err := cfg.LoadPlaceholder(context.Background(), ld)
	require.NoError(t, err)
	assert.Same(t, placeholder, img)
	assert.Equal(t, []string{"placeholder.png"}, requested)

	cfg.Placeholder = "gone.png"
	_, err = cfg.LoadPlaceholder(context.Background(), ld)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	cfg.Placeholder = ""
	img, err = cfg.LoadPlaceholder(context.Background(), ld)
	require.NoError(t, err)
	assert.Nil(t, img)

	cfg.MaxConcurrentLoads = -1
	_, err = cfg.RenderOptions()
	assert.Error(t, err)
}

package config

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/setanarut/portrait"
	"github.com/setanarut/portrait/utils"
)

// Config is the daemon configuration, read from the environment.
type Config struct {
	Addr string `env:"PORTRAIT_ADDR" envDefault:":8080"`
	// Asset root; catalog image sources are resolved inside it.
	AssetRoot string `env:"PORTRAIT_ASSET_ROOT" envDefault:"assets"`
	// JSON catalog path. Empty scans AssetRoot instead.
	CatalogPath string `env:"PORTRAIT_CATALOG"`

	Width       int    `env:"PORTRAIT_WIDTH" envDefault:"256"`
	Height      int    `env:"PORTRAIT_HEIGHT" envDefault:"256"`
	Thickness   int    `env:"PORTRAIT_OUTLINE_THICKNESS" envDefault:"4"`
	BorderColor string `env:"PORTRAIT_BORDER_COLOR" envDefault:"#000000"`
	OnLoadError string `env:"PORTRAIT_ON_LOAD_ERROR" envDefault:"degrade"`
	// Asset path or URL drawn in place of a layer that failed to load.
	Placeholder string `env:"PORTRAIT_PLACEHOLDER"`
	// Zero loads every layer of a render at once.
	MaxConcurrentLoads int `env:"PORTRAIT_MAX_CONCURRENT_LOADS" envDefault:"0"`

	LoadTimeout   time.Duration `env:"PORTRAIT_LOAD_TIMEOUT" envDefault:"10s"`
	FetchInterval time.Duration `env:"PORTRAIT_FETCH_INTERVAL" envDefault:"0s"`
	FetchBurst    int           `env:"PORTRAIT_FETCH_BURST" envDefault:"4"`
	SessionTTL    time.Duration `env:"PORTRAIT_SESSION_TTL" envDefault:"30m"`

	LogLevel slog.Level `env:"PORTRAIT_LOG_LEVEL" envDefault:"info"`
}

// Load reads Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// RenderOptions converts the render settings to portrait.Options.
func (c Config) RenderOptions() (portrait.Options, error) {
	opts := portrait.DefaultOptions()
	if c.Width <= 0 || c.Height <= 0 {
		return opts, fmt.Errorf("surface size %dx%d is invalid", c.Width, c.Height)
	}
	if c.Thickness <= 0 {
		return opts, fmt.Errorf("outline thickness %d is invalid", c.Thickness)
	}
	if c.MaxConcurrentLoads < 0 {
		return opts, fmt.Errorf("max concurrent loads %d is invalid", c.MaxConcurrentLoads)
	}
	border, err := utils.ParseColor(c.BorderColor)
	if err != nil {
		return opts, err
	}
	policy, err := portrait.ParseLoadErrorPolicy(c.OnLoadError)
	if err != nil {
		return opts, err
	}
	opts.Width, opts.Height = c.Width, c.Height
	opts.Thickness = c.Thickness
	opts.BorderColor = border
	opts.LoadTimeout = c.LoadTimeout
	opts.OnLoadError = policy
	opts.MaxConcurrentLoads = c.MaxConcurrentLoads
	return opts, nil
}

// LoadPlaceholder resolves Placeholder with l. It returns nil when no
// placeholder is configured.
func (c Config) LoadPlaceholder(ctx context.Context, l portrait.Loader) (image.Image, error) {
	if c.Placeholder == "" {
		return nil, nil
	}
	img, err := l.Load(ctx, c.Placeholder)
	if err != nil {
		return nil, fmt.Errorf("load placeholder %q: %w", c.Placeholder, err)
	}
	return img, nil
}

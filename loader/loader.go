// Package loader resolves layer image sources, either asset paths or
// http(s) URLs, to decoded images.
package loader

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/time/rate"
)

var (
	ErrNoAssets         = errors.New("no asset filesystem configured")
	ErrInvalidPath      = errors.New("asset path is invalid")
	ErrUnexpectedStatus = errors.New("unexpected http status")
)

type Options struct {
	// Assets resolves non-URL sources. Leading "/" and "./" are stripped.
	Assets fs.FS
	// Client fetches URL sources. Nil uses http.DefaultClient.
	Client *http.Client
	// Minimum spacing between remote fetches. Zero disables throttling.
	FetchInterval time.Duration
	// Fetches allowed back to back before FetchInterval applies.
	FetchBurst int
}

// Loader decodes images from an asset filesystem or over HTTP. It keeps no
// cache: loading a source twice reads it twice.
type Loader struct {
	assets  fs.FS
	client  *http.Client
	limiter *rate.Limiter
}

func New(opts Options) *Loader {
	l := &Loader{assets: opts.Assets, client: opts.Client}
	if l.client == nil {
		l.client = http.DefaultClient
	}
	if opts.FetchInterval > 0 {
		l.limiter = rate.NewLimiter(rate.Every(opts.FetchInterval), max(1, opts.FetchBurst))
	}
	return l
}

// IsRemote reports whether source is fetched over HTTP.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (l *Loader) Load(ctx context.Context, source string) (image.Image, error) {
	if IsRemote(source) {
		return l.fetch(ctx, source)
	}
	return l.open(ctx, source)
}

func (l *Loader) open(ctx context.Context, source string) (image.Image, error) {
	if l.assets == nil {
		return nil, ErrNoAssets
	}
	name := path.Clean(strings.TrimPrefix(strings.TrimPrefix(source, "./"), "/"))
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("%q: %w", source, ErrInvalidPath)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := l.assets.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

func (l *Loader) fetch(ctx context.Context, url string) (image.Image, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: %d: %w", url, resp.StatusCode, ErrUnexpectedStatus)
	}
	return decode(resp.Body)
}

func decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

package portrait

import (
	"cmp"
	"context"
	"image"
	"slices"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/setanarut/portrait")

// Loader resolves an image source (asset path or URL) to a decoded image.
type Loader interface {
	Load(ctx context.Context, source string) (image.Image, error)
}

// LoaderFunc adapts a plain function to Loader.
type LoaderFunc func(ctx context.Context, source string) (image.Image, error)

func (f LoaderFunc) Load(ctx context.Context, source string) (image.Image, error) {
	return f(ctx, source)
}

// Layer is one entry of a render request: the image drawn at a z-order slot.
type Layer struct {
	Index  int
	Source string
}

// Composite is the flattened result of one generation.
type Composite struct {
	Generation uint64
	Image      *image.RGBA
	// Errors holds one *ImageLoadError per layer that failed, in layer order.
	Errors []error
	// Reused is set when Image is the previous good frame (KeepLastFrame).
	Reused bool
}

// Compositor draws layer images onto a fixed-size surface it owns. Every
// Render call takes a new generation number; results of superseded
// generations are discarded instead of drawn.
type Compositor struct {
	opts   Options
	loader Loader
	gen    atomic.Uint64

	mu      sync.Mutex
	surface *image.RGBA
	last    *image.RGBA
}

func NewCompositor(loader Loader, opts Options) *Compositor {
	def := DefaultOptions()
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = def.Width, def.Height
	}
	return &Compositor{
		opts:    opts,
		loader:  loader,
		surface: image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height)),
	}
}

// Generation returns the most recently issued generation number.
func (c *Compositor) Generation() uint64 {
	return c.gen.Load()
}

// Render loads every layer image concurrently, waits for all of them, and
// draws them in ascending index order. It returns ErrStaleGeneration when a
// newer Render call was issued while this one was loading.
func (c *Compositor) Render(ctx context.Context, layers []Layer) (*Composite, error) {
	gen := c.gen.Add(1)
	ctx, span := tracer.Start(ctx, "portrait.Compositor.Render", trace.WithAttributes(
		attribute.Int64("portrait.generation", int64(gen)),
		attribute.Int("portrait.layers", len(layers)),
	))
	defer span.End()

	ordered, err := orderLayers(layers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	images, loadErrs := c.loadAll(ctx, ordered)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if latest := c.gen.Load(); gen != latest {
		Logger().WarnContext(ctx, "discarding stale composite", "generation", gen, "latest", latest)
		span.SetAttributes(attribute.Bool("portrait.stale", true))
		return nil, ErrStaleGeneration
	}

	for _, err := range loadErrs {
		span.RecordError(err)
	}
	if len(loadErrs) > 0 && c.opts.OnLoadError == KeepLastFrame && c.last != nil {
		Logger().WarnContext(ctx, "keeping last composite", "generation", gen, "failed", len(loadErrs))
		return &Composite{Generation: gen, Image: cloneRGBA(c.last), Errors: loadErrs, Reused: true}, nil
	}

	clear(c.surface.Pix)
	for i, l := range ordered {
		img := images[i]
		if img == nil {
			continue
		}
		b := img.Bounds()
		draw.Draw(c.surface, image.Rectangle{Max: b.Size()}, img, b.Min, draw.Over)
		Logger().DebugContext(ctx, "drew layer", "generation", gen, "layer", l.Index, "source", l.Source)
	}

	out := cloneRGBA(c.surface)
	if len(loadErrs) == 0 {
		c.last = cloneRGBA(c.surface)
	}
	return &Composite{Generation: gen, Image: out, Errors: loadErrs}, nil
}

func (c *Compositor) loadAll(ctx context.Context, layers []Layer) ([]image.Image, []error) {
	images := make([]image.Image, len(layers))
	failures := make([]error, len(layers))

	g, gctx := errgroup.WithContext(ctx)
	if c.opts.MaxConcurrentLoads > 0 {
		g.SetLimit(c.opts.MaxConcurrentLoads)
	}
	for i, l := range layers {
		g.Go(func() error {
			lctx := gctx
			if c.opts.LoadTimeout > 0 {
				var cancel context.CancelFunc
				lctx, cancel = context.WithTimeout(gctx, c.opts.LoadTimeout)
				defer cancel()
			}
			img, err := c.loader.Load(lctx, l.Source)
			if err != nil {
				Logger().WarnContext(ctx, "layer image failed to load", "layer", l.Index, "source", l.Source, "error", err)
				failures[i] = &ImageLoadError{Index: l.Index, Source: l.Source, Err: err}
				images[i] = c.opts.Placeholder
				return nil
			}
			images[i] = img
			return nil
		})
	}
	// Workers never return an error; a failed layer degrades on its own.
	_ = g.Wait()

	var errs []error
	for _, err := range failures {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return images, errs
}

func orderLayers(layers []Layer) ([]Layer, error) {
	ordered := slices.Clone(layers)
	slices.SortStableFunc(ordered, func(a, b Layer) int { return cmp.Compare(a.Index, b.Index) })
	for i, l := range ordered {
		if l.Index < 0 {
			return nil, ErrNegativeLayer
		}
		if i > 0 && ordered[i-1].Index == l.Index {
			return nil, ErrDuplicateLayer
		}
	}
	return ordered, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

package loader

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoadAsset(t *testing.T) {
	data := pngBytes(t, 3, 2, color.White)
	l := New(Options{Assets: fstest.MapFS{
		"human/body.png": {Data: data},
		"broken.png":     {Data: []byte("not an image")},
	}})

	for _, src := range []string{"human/body.png", "/human/body.png", "./human/body.png"} {
		img, err := l.Load(context.Background(), src)
		require.NoError(t, err, src)
		assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	}

	_, err := l.Load(context.Background(), "human/hat.png")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = l.Load(context.Background(), "../secret.png")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = l.Load(context.Background(), "broken.png")
	assert.ErrorContains(t, err, "decode image")
}

func TestLoadAssetWithoutFS(t *testing.T) {
	_, err := New(Options{}).Load(context.Background(), "a.png")
	assert.ErrorIs(t, err, ErrNoAssets)
}

func TestLoadRemote(t *testing.T) {
	data := pngBytes(t, 4, 4, color.Black)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/ok.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := New(Options{Client: srv.Client()})
	img, err := l.Load(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	// No cache: a second load fetches again.
	_, err = l.Load(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	_, err = l.Load(context.Background(), srv.URL+"/missing.png")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestLoadRemoteHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := New(Options{Client: srv.Client()}).Load(ctx, srv.URL+"/stall.png")
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestLoadRemoteRateLimited(t *testing.T) {
	data := pngBytes(t, 1, 1, color.White)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := New(Options{Client: srv.Client(), FetchInterval: time.Hour, FetchBurst: 1})
	_, err := l.Load(context.Background(), srv.URL+"/a.png")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Load(ctx, srv.URL+"/b.png")
	assert.Error(t, err)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://cdn.example.com/a.png"))
	assert.True(t, IsRemote("http://localhost/a.png"))
	assert.False(t, IsRemote("assets/http/a.png"))
}

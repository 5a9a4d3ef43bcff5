package catalog

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

const sampleJSON = `{
  "bodyTypes": [
    {
      "key": "human",
      "layers": [
        {"key": "body", "layerIndex": 0, "images": [
          {"imageSource": "human/body/pale.png", "tags": ["pale"]},
          {"imageSource": "human/body/tan.png", "tags": ["Default", "tan"]}
        ]},
        {"key": "hair", "layerIndex": 3, "images": [
          {"imageSource": "human/hair/short.png", "tags": ["short"]},
          {"imageSource": "human/hair/long.png", "tags": ["long"]}
        ]},
        {"key": "hat", "layerIndex": 4, "images": []}
      ]
    },
    {"key": "slime", "layers": []}
  ]
}`

func TestLoad(t *testing.T) {
	c, err := Load(strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.BodyTypes) != 2 {
		t.Fatalf("len(BodyTypes) = %d, want 2", len(c.BodyTypes))
	}

	bt, err := c.BodyType("human")
	if err != nil {
		t.Fatalf("body type: %v", err)
	}
	hair, ok := bt.Layer("hair")
	if !ok || hair.LayerIndex != 3 {
		t.Fatalf("Layer(hair) = %+v, %v", hair, ok)
	}
	if _, ok := bt.LayerAt(1); ok {
		t.Fatal("LayerAt(1) found a layer that is not configured")
	}

	_, err = c.BodyType("dragon")
	if !errors.Is(err, ErrBodyTypeNotFound) {
		t.Fatalf("BodyType(dragon) error = %v, want %v", err, ErrBodyTypeNotFound)
	}
}

func TestImageLayerDefault(t *testing.T) {
	c, err := Load(strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	bt, _ := c.BodyType("human")

	body, _ := bt.LayerAt(0)
	if got, ok := body.Default(); !ok || got.ImageSource != "human/body/tan.png" {
		t.Fatalf("body.Default() = %+v, %v, want tan", got, ok)
	}
	hair, _ := bt.LayerAt(3)
	if got, ok := hair.Default(); !ok || got.ImageSource != "human/hair/short.png" {
		t.Fatalf("hair.Default() = %+v, %v, want first image", got, ok)
	}
	hat, _ := bt.LayerAt(4)
	if _, ok := hat.Default(); ok {
		t.Fatal("hat.Default() reported an image for an empty layer")
	}

	want := map[int]string{0: "human/body/tan.png", 3: "human/hair/short.png"}
	got := bt.Defaults()
	if len(got) != len(want) {
		t.Fatalf("Defaults() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("Defaults()[%d] = %q, want %q", k, got[k], v)
		}
	}
}

func TestImageLayerLookups(t *testing.T) {
	l := ImageLayer{Key: "hair", Images: []ImageDescriptor{
		{ImageSource: "a.png", Tags: []string{"long", "red"}},
		{ImageSource: "b.png", Tags: []string{"short", "RED"}},
		{ImageSource: "c.png", Tags: []string{"long"}},
	}}
	if got := l.WithTag("red"); len(got) != 2 || got[1].ImageSource != "b.png" {
		t.Fatalf("WithTag(red) = %+v", got)
	}
	if _, ok := l.Find("c.png"); !ok {
		t.Fatal("Find(c.png) = false, want true")
	}
	if _, ok := l.Find("d.png"); ok {
		t.Fatal("Find(d.png) = true, want false")
	}
}

func TestLoadRejectsInvalidCatalogs(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"missing body key", `{"bodyTypes":[{"key":" "}]}`, ErrBodyTypeKey},
		{"missing layer key", `{"bodyTypes":[{"key":"a","layers":[{"layerIndex":0}]}]}`, ErrLayerKey},
		{"negative index", `{"bodyTypes":[{"key":"a","layers":[{"key":"x","layerIndex":-1}]}]}`, ErrLayerIndex},
		{"duplicate index", `{"bodyTypes":[{"key":"a","layers":[{"key":"x","layerIndex":1},{"key":"y","layerIndex":1}]}]}`, ErrLayerIndex},
		{"empty source", `{"bodyTypes":[{"key":"a","layers":[{"key":"x","layerIndex":0,"images":[{"imageSource":""}]}]}]}`, ErrImageSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.json))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Load(strings.NewReader(`{"bodyTypes":[{"key":"a"},{"key":"a"}]}`)); err == nil {
		t.Fatal("Load() accepted a duplicate body type")
	}
	if _, err := Load(strings.NewReader(`{`)); err == nil {
		t.Fatal("Load() accepted malformed json")
	}
}

func TestScan(t *testing.T) {
	fsys := fstest.MapFS{
		"assets/human/00_body/skin_default.png": {},
		"assets/human/00_body/skin_pale.png":    {},
		"assets/human/02_hair/long-red.webp":    {},
		"assets/human/02_hair/notes.txt":        {},
		"assets/human/10_hat/.keep":             {},
		"assets/human/misc/stray.png":           {},
		"assets/slime/00_blob/blob.png":         {},
		"assets/readme.md":                      {},
	}
	c, err := Scan(fsys, "assets")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(c.BodyTypes) != 2 {
		t.Fatalf("len(BodyTypes) = %d, want 2", len(c.BodyTypes))
	}

	human, err := c.BodyType("human")
	if err != nil {
		t.Fatalf("body type: %v", err)
	}
	if len(human.Layers) != 3 {
		t.Fatalf("len(Layers) = %d, want 3", len(human.Layers))
	}
	body, ok := human.Layer("body")
	if !ok || body.LayerIndex != 0 || len(body.Images) != 2 {
		t.Fatalf("Layer(body) = %+v, %v", body, ok)
	}
	def, _ := body.Default()
	if def.ImageSource != "assets/human/00_body/skin_default.png" {
		t.Fatalf("body default = %q", def.ImageSource)
	}
	hair, _ := human.LayerAt(2)
	if len(hair.Images) != 1 || !hair.Images[0].HasTag("red") || !hair.Images[0].HasTag("long") {
		t.Fatalf("hair images = %+v", hair.Images)
	}
	hat, ok := human.LayerAt(10)
	if !ok || len(hat.Images) != 0 {
		t.Fatalf("LayerAt(10) = %+v, %v", hat, ok)
	}
}

func TestScanMissingRoot(t *testing.T) {
	if _, err := Scan(fstest.MapFS{}, "nowhere"); err == nil {
		t.Fatal("Scan() of a missing root returned no error")
	}
}

package catalog

import (
	"cmp"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

var imageExts = []string{".png", ".webp", ".gif", ".jpg", ".jpeg", ".bmp"}

// Scan builds a catalog from a directory tree laid out as
//
//	<root>/<body type>/<index>_<layer key>/<image file>
//
// Image sources are the slash-separated paths inside fsys. Tags come from the
// file name split on '_' and '-', so "hair_long_default.png" is tagged
// hair, long and default. Directories that do not match the layout are
// skipped.
func Scan(fsys fs.FS, root string) (Catalog, error) {
	bodies, err := fs.ReadDir(fsys, root)
	if err != nil {
		return Catalog{}, fmt.Errorf("scan %s: %w", root, err)
	}
	var c Catalog
	for _, bd := range bodies {
		if !bd.IsDir() {
			continue
		}
		bt, err := scanBody(fsys, path.Join(root, bd.Name()))
		if err != nil {
			return Catalog{}, err
		}
		bt.Key = bd.Name()
		c.BodyTypes = append(c.BodyTypes, bt)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("scan %s: %w", root, err)
	}
	return c, nil
}

func scanBody(fsys fs.FS, dir string) (BodyType, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return BodyType{}, err
	}
	var bt BodyType
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		index, key, ok := parseLayerDir(e.Name())
		if !ok {
			continue
		}
		layer := ImageLayer{Key: key, LayerIndex: index}
		files, err := fs.ReadDir(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return BodyType{}, err
		}
		for _, f := range files {
			if f.IsDir() || !slices.Contains(imageExts, strings.ToLower(path.Ext(f.Name()))) {
				continue
			}
			layer.Images = append(layer.Images, ImageDescriptor{
				ImageSource: path.Join(dir, e.Name(), f.Name()),
				Tags:        fileTags(f.Name()),
			})
		}
		bt.Layers = append(bt.Layers, layer)
	}
	slices.SortFunc(bt.Layers, func(a, b ImageLayer) int { return cmp.Compare(a.LayerIndex, b.LayerIndex) })
	return bt, nil
}

func parseLayerDir(name string) (int, string, bool) {
	num, key, ok := strings.Cut(name, "_")
	if !ok || key == "" {
		return 0, "", false
	}
	index, err := strconv.Atoi(num)
	if err != nil || index < 0 {
		return 0, "", false
	}
	return index, key, true
}

func fileTags(name string) []string {
	stem := strings.TrimSuffix(name, path.Ext(name))
	return strings.FieldsFunc(strings.ToLower(stem), func(r rune) bool { return r == '_' || r == '-' })
}

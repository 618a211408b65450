package core

import (
	"image"
)

// Texture wraps an RGBA raster for upload. Version increases every time the
// texture is marked dirty so renderers can tell stale uploads apart.
type Texture struct {
	Id          AssetId
	Image       *image.RGBA
	NeedsUpdate bool
	Version     uint
}

func NewTexture(img *image.RGBA) *Texture {
	return &Texture{
		Id:    NewAssetId(),
		Image: img,
	}
}

func (t *Texture) MarkDirty() {
	t.NeedsUpdate = true
	t.Version++
}

func (t *Texture) Size() (int, int) {
	if t.Image == nil {
		return 0, 0
	}
	b := t.Image.Bounds()
	return b.Dx(), b.Dy()
}

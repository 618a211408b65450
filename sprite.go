package particles

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/gekko3d/particles/pointrt/rt/core"
	"golang.org/x/image/vector"
)

// circleKappa places cubic control points so four segments approximate a circle.
const circleKappa = 0.5522847498

// radialGradient fades from opaque white at r0 to transparent at r1,
// in premultiplied RGBA.
type radialGradient struct {
	cx, cy float32
	r0, r1 float32
	bounds image.Rectangle
}

func (g *radialGradient) ColorModel() color.Model { return color.RGBAModel }
func (g *radialGradient) Bounds() image.Rectangle { return g.bounds }

func (g *radialGradient) At(x, y int) color.Color {
	d := math32.Hypot(float32(x)+0.5-g.cx, float32(y)+0.5-g.cy)
	t := float32(0)
	if g.r1 > g.r0 {
		t = (d - g.r0) / (g.r1 - g.r0)
	}
	t = math32.Max(0, math32.Min(1, t))
	a := uint8(math32.Round((1 - t) * 255))
	return color.RGBA{R: a, G: a, B: a, A: a}
}

func circlePath(z *vector.Rasterizer, cx, cy, r float32) {
	k := r * circleKappa
	z.MoveTo(cx+r, cy)
	z.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
	z.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
	z.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
	z.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	z.ClosePath()
}

// SpriteImage rasterizes the particle sprite: a size x size raster with a
// radial gradient from size/8 (white) to size/2 (transparent), filled through
// a circle of radius size/2.
func SpriteImage(size int) *image.RGBA {
	if size <= 0 {
		size = 64
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	s := float32(size)
	grad := &radialGradient{
		cx:     s / 2,
		cy:     s / 2,
		r0:     s / 8,
		r1:     s / 2,
		bounds: img.Bounds(),
	}

	z := vector.NewRasterizer(size, size)
	circlePath(z, s/2, s/2, s/2)
	z.Draw(img, img.Bounds(), grad, image.Point{})
	return img
}

// SpriteTexture wraps SpriteImage as a texture flagged for upload.
func SpriteTexture(size int) *core.Texture {
	tex := core.NewTexture(SpriteImage(size))
	tex.MarkDirty()
	return tex
}

package particles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpriteTexture(t *testing.T) {
	for _, size := range []int{16, 64, 128} {
		tex := SpriteTexture(size)
		require.NotNil(t, tex.Image)
		w, h := tex.Size()
		assert.Equal(t, size, w)
		assert.Equal(t, size, h)
		assert.True(t, tex.NeedsUpdate)
		assert.Equal(t, uint(1), tex.Version)

		c := tex.Image.RGBAAt(size/2, size/2)
		assert.Equal(t, uint8(255), c.A, "centre opaque at %d", size)
		assert.Equal(t, uint8(255), c.R)

		for _, p := range [][2]int{{0, 0}, {size - 1, 0}, {0, size - 1}, {size - 1, size - 1}} {
			assert.Equal(t, uint8(0), tex.Image.RGBAAt(p[0], p[1]).A, "corner %v at %d", p, size)
		}
	}
}

func TestSpriteImage_Falloff(t *testing.T) {
	img := SpriteImage(64)
	centre := img.RGBAAt(32, 32).A
	mid := img.RGBAAt(32+12, 32).A
	edge := img.RGBAAt(32+30, 32).A
	assert.Greater(t, centre, mid)
	assert.Greater(t, mid, edge)

	// premultiplied: colour never exceeds alpha
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			c := img.RGBAAt(x, y)
			assert.LessOrEqual(t, c.R, c.A)
		}
	}
}

func TestSpriteImage_DefaultSize(t *testing.T) {
	img := SpriteImage(0)
	assert.Equal(t, 64, img.Bounds().Dx())
}

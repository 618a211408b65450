package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type PerspectiveCamera struct {
	Fov      float32 // vertical, degrees
	Aspect   float32
	Near     float32
	Far      float32
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3
}

func NewPerspectiveCamera(fov, aspect, near, far float32) *PerspectiveCamera {
	return &PerspectiveCamera{
		Fov:    fov,
		Aspect: aspect,
		Near:   near,
		Far:    far,
		Up:     mgl32.Vec3{0, 1, 0},
	}
}

// SetAspect recomputes the aspect ratio from a framebuffer size.
// Zero sizes are ignored.
func (c *PerspectiveCamera) SetAspect(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	c.Aspect = float32(width) / float32(height)
}

func (c *PerspectiveCamera) ProjectionMatrix() mgl32.Mat4 {
	aspect := c.Aspect
	if aspect == 0 {
		aspect = 1.0
	}
	return mgl32.Perspective(mgl32.DegToRad(c.Fov), aspect, c.Near, c.Far)
}

func (c *PerspectiveCamera) ViewMatrix() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position, c.Target, c.Up)
}

func (c *PerspectiveCamera) ViewProjection() mgl32.Mat4 {
	return c.ProjectionMatrix().Mul4(c.ViewMatrix())
}

package particles

import (
	"errors"
	"fmt"

	"github.com/gekko3d/particles/pointrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	VertexShaderID   = "vertexshader"
	FragmentShaderID = "fragmentshader"
)

type ParticleOptions struct {
	SpriteSize int
	Color      [3]float32
	Intensity  float32
	// PointSize is written into every entry of the size attribute.
	PointSize float32
	// SizePerVertex emits one size entry per vertex instead of one per
	// position component.
	SizePerVertex    bool
	VertexShaderID   string
	FragmentShaderID string
}

func DefaultParticleOptions() ParticleOptions {
	return ParticleOptions{
		SpriteSize:       64,
		Color:            [3]float32{1, 1, 1},
		Intensity:        1,
		PointSize:        4,
		VertexShaderID:   VertexShaderID,
		FragmentShaderID: FragmentShaderID,
	}
}

// RenderEngine creates renderable point clouds.
type RenderEngine interface {
	CreatePointCloud(geometry *core.BufferGeometry, material *core.ShaderMaterial) (*core.Points, error)
}

// CPUEngine builds scene nodes without any GPU resources.
type CPUEngine struct{}

func (CPUEngine) CreatePointCloud(geometry *core.BufferGeometry, material *core.ShaderMaterial) (*core.Points, error) {
	if geometry == nil || material == nil {
		return nil, errors.New("point cloud needs geometry and material")
	}
	return core.NewPoints(geometry, material), nil
}

// ToBufferGeometry returns buffer geometries unchanged and expands legacy
// face geometries into non-indexed buffers.
func ToBufferGeometry(g core.Geometry) (*core.BufferGeometry, error) {
	switch v := g.(type) {
	case *core.BufferGeometry:
		if v == nil {
			return nil, ErrNoGeometry
		}
		return v, nil
	case *core.LegacyGeometry:
		if v == nil {
			return nil, ErrNoGeometry
		}
		return core.NewBufferGeometry().FromGeometry(v), nil
	case nil:
		return nil, ErrNoGeometry
	}
	return nil, fmt.Errorf("unknown geometry type %q", g.Type())
}

// AddSizeAttribute attaches the size attribute and returns its length.
func AddSizeAttribute(g *core.BufferGeometry, opts ParticleOptions) (int, error) {
	pos := g.Attribute(core.AttributePosition)
	if pos == nil {
		return 0, fmt.Errorf("%w: no position attribute", ErrNoGeometry)
	}
	n := len(pos.Array)
	if opts.SizePerVertex {
		n = pos.Count()
	}
	sizes := make([]float32, n)
	for i := range sizes {
		sizes[i] = opts.PointSize
	}
	g.SetAttribute(core.AttributeSize, core.NewBufferAttribute(sizes, 1))
	return n, nil
}

// NewParticleMaterial builds the additive, depth-test-free sprite material
// with exactly the color, texture and val uniforms.
func NewParticleMaterial(src ShaderSource, sprite *core.Texture, opts ParticleOptions) (*core.ShaderMaterial, error) {
	vs, err := src.Shader(opts.VertexShaderID)
	if err != nil {
		return nil, err
	}
	fs, err := src.Shader(opts.FragmentShaderID)
	if err != nil {
		return nil, err
	}

	m := core.NewShaderMaterial()
	m.Uniforms = core.Uniforms{
		"color":   {Type: "v3", Value: mgl32.Vec3(opts.Color)},
		"texture": {Type: "t", Value: sprite},
		"val":     {Type: "f", Value: opts.Intensity},
	}
	m.VertexShader = vs
	m.FragmentShader = fs
	m.Blending = core.AdditiveBlending
	m.DepthTest = false
	m.Transparent = true
	return m, nil
}

// BuildParticleSystem converts g into a point cloud created by engine.
func BuildParticleSystem(g core.Geometry, engine RenderEngine, src ShaderSource, opts ParticleOptions) (*core.Points, error) {
	buf, err := ToBufferGeometry(g)
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	if _, err := AddSizeAttribute(buf, opts); err != nil {
		return nil, err
	}
	material, err := NewParticleMaterial(src, SpriteTexture(opts.SpriteSize), opts)
	if err != nil {
		return nil, fmt.Errorf("material: %w", err)
	}
	points, err := engine.CreatePointCloud(buf, material)
	if err != nil {
		return nil, fmt.Errorf("point cloud: %w", err)
	}
	return points, nil
}

package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

type Blending int

const (
	NoBlending Blending = iota
	NormalBlending
	AdditiveBlending
)

func (b Blending) String() string {
	switch b {
	case NoBlending:
		return "none"
	case NormalBlending:
		return "normal"
	case AdditiveBlending:
		return "additive"
	}
	return "unknown"
}

// Uniform is a named per-draw constant. Type follows the three.js short
// tags ("v3", "t", "f"); Value holds mgl32.Vec3, *Texture or float32.
type Uniform struct {
	Type  string
	Value any
}

type Uniforms map[string]*Uniform

// ShaderMaterial pairs program source with its uniforms and raster state.
type ShaderMaterial struct {
	Id             AssetId
	Uniforms       Uniforms
	VertexShader   string
	FragmentShader string
	Blending       Blending
	DepthTest      bool
	DepthWrite     bool
	Transparent    bool
}

func NewShaderMaterial() *ShaderMaterial {
	return &ShaderMaterial{
		Id:         NewAssetId(),
		Uniforms:   make(Uniforms),
		Blending:   NormalBlending,
		DepthTest:  true,
		DepthWrite: true,
	}
}

func (m *ShaderMaterial) Vec3(name string) (mgl32.Vec3, bool) {
	u, ok := m.Uniforms[name]
	if !ok {
		return mgl32.Vec3{}, false
	}
	v, ok := u.Value.(mgl32.Vec3)
	return v, ok
}

func (m *ShaderMaterial) Float(name string) (float32, bool) {
	u, ok := m.Uniforms[name]
	if !ok {
		return 0, false
	}
	v, ok := u.Value.(float32)
	return v, ok
}

func (m *ShaderMaterial) Texture(name string) (*Texture, bool) {
	u, ok := m.Uniforms[name]
	if !ok {
		return nil, false
	}
	v, ok := u.Value.(*Texture)
	return v, ok && v != nil
}

// MeshMaterial is the surface description a model file carries with its
// geometry. The particle pipeline keeps it only as metadata.
type MeshMaterial struct {
	Name        string
	Color       mgl32.Vec3
	Opacity     float32
	Transparent bool
	MapDiffuse  string
}

func DefaultMeshMaterial() *MeshMaterial {
	return &MeshMaterial{
		Name:    "default",
		Color:   mgl32.Vec3{1, 1, 1},
		Opacity: 1,
	}
}

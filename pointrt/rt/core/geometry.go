package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	TypeGeometry       = "Geometry"
	TypeBufferGeometry = "BufferGeometry"
)

// Standard attribute names.
const (
	AttributePosition = "position"
	AttributeNormal   = "normal"
	AttributeUV       = "uv"
	AttributeSize     = "size"
)

// Geometry is either a face-based LegacyGeometry or a flat BufferGeometry.
type Geometry interface {
	Type() string
	Scale(x, y, z float32)
}

// Face is a triangle referencing LegacyGeometry.Vertices.
type Face struct {
	A, B, C       int
	Normal        mgl32.Vec3
	VertexNormals []mgl32.Vec3 // empty or exactly 3
	MaterialIndex int
}

// LegacyGeometry stores vertices and faces as nested structures.
type LegacyGeometry struct {
	Id       AssetId
	Vertices []mgl32.Vec3
	Faces    []Face
	// FaceVertexUvs holds three uvs per face, aligned with Faces. Empty if the
	// source had no uv layer.
	FaceVertexUvs [][3]mgl32.Vec2
}

func NewLegacyGeometry() *LegacyGeometry {
	return &LegacyGeometry{Id: NewAssetId()}
}

func (g *LegacyGeometry) Type() string { return TypeGeometry }

func (g *LegacyGeometry) Scale(x, y, z float32) {
	m := mgl32.Scale3D(x, y, z)
	for i, v := range g.Vertices {
		g.Vertices[i] = m.Mul4x1(v.Vec4(1.0)).Vec3()
	}
	nm := normalMatrix(m)
	for fi := range g.Faces {
		f := &g.Faces[fi]
		f.Normal = transformNormal(nm, f.Normal)
		for i, n := range f.VertexNormals {
			f.VertexNormals[i] = transformNormal(nm, n)
		}
	}
}

type BufferAttribute struct {
	Array       []float32
	ItemSize    int
	NeedsUpdate bool
}

func NewBufferAttribute(array []float32, itemSize int) *BufferAttribute {
	return &BufferAttribute{Array: array, ItemSize: itemSize}
}

// Count is the number of items (vertices) stored in the attribute.
func (a *BufferAttribute) Count() int {
	if a == nil || a.ItemSize <= 0 {
		return 0
	}
	return len(a.Array) / a.ItemSize
}

// BufferGeometry stores vertex data as flat typed arrays keyed by name.
// Index is optional; nil means non-indexed triangles.
type BufferGeometry struct {
	Id         AssetId
	Attributes map[string]*BufferAttribute
	Index      []uint32
}

func NewBufferGeometry() *BufferGeometry {
	return &BufferGeometry{
		Id:         NewAssetId(),
		Attributes: make(map[string]*BufferAttribute),
	}
}

func (g *BufferGeometry) Type() string { return TypeBufferGeometry }

func (g *BufferGeometry) SetAttribute(name string, attr *BufferAttribute) *BufferGeometry {
	g.Attributes[name] = attr
	return g
}

func (g *BufferGeometry) Attribute(name string) *BufferAttribute {
	return g.Attributes[name]
}

// VertexCount is the number of vertices in the position attribute.
func (g *BufferGeometry) VertexCount() int {
	return g.Attribute(AttributePosition).Count()
}

// Clone deep-copies attributes and index under a fresh Id.
func (g *BufferGeometry) Clone() *BufferGeometry {
	out := NewBufferGeometry()
	for name, a := range g.Attributes {
		out.Attributes[name] = &BufferAttribute{
			Array:       append([]float32(nil), a.Array...),
			ItemSize:    a.ItemSize,
			NeedsUpdate: a.NeedsUpdate,
		}
	}
	if g.Index != nil {
		out.Index = append([]uint32(nil), g.Index...)
	}
	return out
}

func (g *BufferGeometry) Scale(x, y, z float32) {
	m := mgl32.Scale3D(x, y, z)
	if pos := g.Attribute(AttributePosition); pos != nil {
		for i := 0; i+2 < len(pos.Array); i += 3 {
			v := m.Mul4x1(mgl32.Vec4{pos.Array[i], pos.Array[i+1], pos.Array[i+2], 1})
			pos.Array[i], pos.Array[i+1], pos.Array[i+2] = v[0], v[1], v[2]
		}
		pos.NeedsUpdate = true
	}
	if nrm := g.Attribute(AttributeNormal); nrm != nil {
		nm := normalMatrix(m)
		for i := 0; i+2 < len(nrm.Array); i += 3 {
			n := transformNormal(nm, mgl32.Vec3{nrm.Array[i], nrm.Array[i+1], nrm.Array[i+2]})
			nrm.Array[i], nrm.Array[i+1], nrm.Array[i+2] = n[0], n[1], n[2]
		}
		nrm.NeedsUpdate = true
	}
}

// FromGeometry fills g with the triangles of src expanded into non-indexed
// arrays: 9 position components per face, plus normals and uvs when present.
func (g *BufferGeometry) FromGeometry(src *LegacyGeometry) *BufferGeometry {
	hasNormals := false
	for _, f := range src.Faces {
		if len(f.VertexNormals) == 3 || f.Normal.Len() > 0 {
			hasNormals = true
			break
		}
	}
	hasUvs := len(src.FaceVertexUvs) == len(src.Faces) && len(src.Faces) > 0

	positions := make([]float32, 0, len(src.Faces)*9)
	var normals, uvs []float32
	if hasNormals {
		normals = make([]float32, 0, len(src.Faces)*9)
	}
	if hasUvs {
		uvs = make([]float32, 0, len(src.Faces)*6)
	}

	for fi, f := range src.Faces {
		for k, vi := range [3]int{f.A, f.B, f.C} {
			var v mgl32.Vec3
			if vi >= 0 && vi < len(src.Vertices) {
				v = src.Vertices[vi]
			}
			positions = append(positions, v[0], v[1], v[2])

			if hasNormals {
				n := f.Normal
				if len(f.VertexNormals) == 3 {
					n = f.VertexNormals[k]
				}
				normals = append(normals, n[0], n[1], n[2])
			}
			if hasUvs {
				uv := src.FaceVertexUvs[fi][k]
				uvs = append(uvs, uv[0], uv[1])
			}
		}
	}

	g.Index = nil
	g.SetAttribute(AttributePosition, NewBufferAttribute(positions, 3))
	if hasNormals {
		g.SetAttribute(AttributeNormal, NewBufferAttribute(normals, 3))
	}
	if hasUvs {
		g.SetAttribute(AttributeUV, NewBufferAttribute(uvs, 2))
	}
	return g
}

// NonIndexedPositions returns a copy of the position data with the index resolved.
// A geometry without an index returns its own position array.
func (g *BufferGeometry) NonIndexedPositions() []float32 {
	pos := g.Attribute(AttributePosition)
	if pos == nil {
		return nil
	}
	if g.Index == nil {
		return pos.Array
	}
	out := make([]float32, 0, len(g.Index)*3)
	for _, idx := range g.Index {
		o := int(idx) * 3
		if o+2 >= len(pos.Array) {
			continue
		}
		out = append(out, pos.Array[o], pos.Array[o+1], pos.Array[o+2])
	}
	return out
}

// BoundingBox returns min and max corners of the position attribute.
func (g *BufferGeometry) BoundingBox() (mgl32.Vec3, mgl32.Vec3) {
	pos := g.Attribute(AttributePosition)
	if pos == nil || len(pos.Array) < 3 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	inf := float32(1e20)
	bMin := mgl32.Vec3{inf, inf, inf}
	bMax := mgl32.Vec3{-inf, -inf, -inf}
	for i := 0; i+2 < len(pos.Array); i += 3 {
		for k := 0; k < 3; k++ {
			bMin[k] = min(bMin[k], pos.Array[i+k])
			bMax[k] = max(bMax[k], pos.Array[i+k])
		}
	}
	return bMin, bMax
}

func normalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	return m.Mat3().Inv().Transpose()
}

func transformNormal(nm mgl32.Mat3, n mgl32.Vec3) mgl32.Vec3 {
	if n.Len() == 0 {
		return n
	}
	out := nm.Mul3x1(n)
	if out.Len() == 0 {
		return n
	}
	return out.Normalize()
}

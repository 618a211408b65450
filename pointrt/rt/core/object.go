package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Object3D is a node of a loaded model subtree. A node with a Geometry is a
// mesh, a node without one is a group.
type Object3D struct {
	Id        AssetId
	Name      string
	Transform Transform
	Geometry  *BufferGeometry
	Material  *MeshMaterial
	Children  []*Object3D
}

func NewGroup(name string) *Object3D {
	return &Object3D{
		Id:        NewAssetId(),
		Name:      name,
		Transform: NewTransform(),
	}
}

func NewMesh(name string, geometry *BufferGeometry, material *MeshMaterial) *Object3D {
	o := NewGroup(name)
	o.Geometry = geometry
	o.Material = material
	return o
}

func (o *Object3D) NodeID() AssetId { return o.Id }

func (o *Object3D) Add(children ...*Object3D) *Object3D {
	o.Children = append(o.Children, children...)
	return o
}

// Traverse walks the subtree depth-first, passing each node its world matrix.
// Returning false from fn skips that node's children.
func (o *Object3D) Traverse(fn func(node *Object3D, world mgl32.Mat4) bool) {
	o.traverse(mgl32.Ident4(), fn)
}

func (o *Object3D) traverse(parent mgl32.Mat4, fn func(*Object3D, mgl32.Mat4) bool) {
	world := parent.Mul4(o.Transform.Matrix())
	if !fn(o, world) {
		return
	}
	for _, c := range o.Children {
		c.traverse(world, fn)
	}
}

// MergeGeometry flattens every mesh of the subtree into one non-indexed
// buffer geometry holding world-space positions. Returns nil when the subtree
// has no mesh with positions.
func (o *Object3D) MergeGeometry() *BufferGeometry {
	var positions []float32
	o.Traverse(func(node *Object3D, world mgl32.Mat4) bool {
		if node.Geometry == nil {
			return true
		}
		src := node.Geometry.NonIndexedPositions()
		for i := 0; i+2 < len(src); i += 3 {
			v := world.Mul4x1(mgl32.Vec4{src[i], src[i+1], src[i+2], 1})
			positions = append(positions, v[0], v[1], v[2])
		}
		return true
	})
	if len(positions) == 0 {
		return nil
	}
	g := NewBufferGeometry()
	g.SetAttribute(AttributePosition, NewBufferAttribute(positions, 3))
	return g
}

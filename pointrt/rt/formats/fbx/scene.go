package fbx

import (
	"fmt"
	"io"

	"github.com/gekko3d/particles/pointrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Decode parses r and returns its meshes as a subtree rooted at a group
// called name. Models keep their local translation, rotation and scaling;
// geometries without a parent model hang directly off the root.
func Decode(r io.Reader, name string) (*core.Object3D, error) {
	doc, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return BuildScene(doc, name)
}

func BuildScene(doc *Document, name string) (*core.Object3D, error) {
	root := core.NewGroup(name)
	objects := doc.Node("Objects")
	if objects == nil {
		return root, nil
	}

	geometries := make(map[int64]*core.BufferGeometry)
	geometryNames := make(map[int64]string)
	var geometryOrder []int64
	for _, gn := range objects.ChildrenNamed("Geometry") {
		id, ok := nodeID(gn)
		if !ok {
			continue
		}
		g, err := meshGeometry(gn)
		if err != nil {
			return nil, fmt.Errorf("fbx: geometry %d: %w", id, err)
		}
		if g == nil {
			continue
		}
		geometries[id] = g
		geometryNames[id] = nodeName(gn)
		geometryOrder = append(geometryOrder, id)
	}

	models := make(map[int64]*core.Object3D)
	var modelOrder []int64
	for _, mn := range objects.ChildrenNamed("Model") {
		id, ok := nodeID(mn)
		if !ok {
			continue
		}
		m := core.NewGroup(nodeName(mn))
		m.Transform = modelTransform(mn)
		models[id] = m
		modelOrder = append(modelOrder, id)
	}

	parents := make(map[int64]int64)
	if conns := doc.Node("Connections"); conns != nil {
		for _, c := range conns.ChildrenNamed("C") {
			if len(c.Properties) < 3 || c.Properties[0].String() != "OO" {
				continue
			}
			child, ok1 := c.Properties[1].Ints()
			parent, ok2 := c.Properties[2].Ints()
			if !ok1 || !ok2 || len(child) == 0 || len(parent) == 0 {
				continue
			}
			parents[child[0]] = parent[0]
		}
	}

	for _, id := range geometryOrder {
		g := geometries[id]
		if m, ok := models[parents[id]]; ok {
			if m.Geometry == nil {
				m.Geometry = g
				m.Material = core.DefaultMeshMaterial()
				continue
			}
			m.Add(core.NewMesh(geometryNames[id], g, core.DefaultMeshMaterial()))
			continue
		}
		root.Add(core.NewMesh(geometryNames[id], g, core.DefaultMeshMaterial()))
	}

	for _, id := range modelOrder {
		m := models[id]
		if parent, ok := models[parents[id]]; ok && !cyclic(id, parents, models) {
			parent.Add(m)
			continue
		}
		root.Add(m)
	}
	return root, nil
}

// cyclic reports whether following model parents from id leads back to id.
func cyclic(id int64, parents map[int64]int64, models map[int64]*core.Object3D) bool {
	seen := map[int64]bool{id: true}
	for cur := parents[id]; ; cur = parents[cur] {
		if _, ok := models[cur]; !ok {
			return false
		}
		if seen[cur] {
			return true
		}
		seen[cur] = true
	}
}

func nodeID(n *Node) (int64, bool) {
	if len(n.Properties) == 0 {
		return 0, false
	}
	v, ok := n.Properties[0].Ints()
	if !ok || len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

func nodeName(n *Node) string {
	if len(n.Properties) < 2 {
		return n.Name
	}
	return objectName(n.Properties[1].String())
}

// meshGeometry returns nil for geometry nodes without vertices.
func meshGeometry(gn *Node) (*core.BufferGeometry, error) {
	vn := gn.Child("Vertices")
	if vn == nil || len(vn.Properties) == 0 {
		return nil, nil
	}
	verts, ok := vn.Properties[0].Floats()
	if !ok {
		return nil, fmt.Errorf("Vertices has type %q", vn.Properties[0].Type)
	}
	if len(verts)%3 != 0 {
		return nil, fmt.Errorf("Vertices length %d is not a multiple of 3", len(verts))
	}

	positions := make([]float32, len(verts))
	for i, v := range verts {
		positions[i] = float32(v)
	}
	g := core.NewBufferGeometry()
	g.SetAttribute(core.AttributePosition, core.NewBufferAttribute(positions, 3))

	in := gn.Child("PolygonVertexIndex")
	if in == nil || len(in.Properties) == 0 {
		return g, nil
	}
	polys, ok := in.Properties[0].Ints()
	if !ok {
		return nil, fmt.Errorf("PolygonVertexIndex has type %q", in.Properties[0].Type)
	}
	index, err := triangulate(polys, len(positions)/3)
	if err != nil {
		return nil, err
	}
	g.Index = index
	return g, nil
}

// triangulate fans each polygon of an FBX index stream, where the last
// index of a polygon is stored bitwise-negated.
func triangulate(polys []int64, vertexCount int) ([]uint32, error) {
	var out []uint32
	var poly []uint32
	for _, raw := range polys {
		idx := raw
		last := raw < 0
		if last {
			idx = ^raw
		}
		if idx >= int64(vertexCount) {
			return nil, fmt.Errorf("polygon vertex %d out of range (%d vertices)", idx, vertexCount)
		}
		poly = append(poly, uint32(idx))
		if !last {
			continue
		}
		for i := 1; i+1 < len(poly); i++ {
			out = append(out, poly[0], poly[i], poly[i+1])
		}
		poly = poly[:0]
	}
	return out, nil
}

func modelTransform(mn *Node) core.Transform {
	t := core.NewTransform()
	props := mn.Child("Properties70")
	if props == nil {
		return t
	}
	var rot mgl32.Vec3
	for _, p := range props.ChildrenNamed("P") {
		if len(p.Properties) < 7 {
			continue
		}
		var v mgl32.Vec3
		for k := 0; k < 3; k++ {
			f, ok := p.Properties[4+k].Floats()
			if !ok || len(f) == 0 {
				continue
			}
			v[k] = float32(f[0])
		}
		switch p.Properties[0].String() {
		case "Lcl Translation":
			t.Position = v
		case "Lcl Rotation":
			rot = v
		case "Lcl Scaling":
			t.Scale = v
		}
	}
	// Euler XYZ in degrees, applied X first.
	t.Rotation = mgl32.AnglesToQuat(mgl32.DegToRad(rot.Z()), mgl32.DegToRad(rot.Y()), mgl32.DegToRad(rot.X()), mgl32.ZYX)
	return t
}

package core

// ParticleInstance matches the instance layout in points_vertex.wgsl
// struct { pos: vec3<f32>, size: f32 }
type ParticleInstance struct {
	Pos  [3]float32
	Size float32
}

// Points renders every vertex of Geometry as a sprite using Material.
type Points struct {
	Id        AssetId
	Name      string
	Transform Transform
	Geometry  *BufferGeometry
	Material  *ShaderMaterial
}

func NewPoints(geometry *BufferGeometry, material *ShaderMaterial) *Points {
	return &Points{
		Id:        NewAssetId(),
		Transform: NewTransform(),
		Geometry:  geometry,
		Material:  material,
	}
}

func (p *Points) NodeID() AssetId { return p.Id }

// Count is the number of rendered points (one per position vertex).
func (p *Points) Count() int {
	if p.Geometry == nil {
		return 0
	}
	return p.Geometry.VertexCount()
}

// Instances packs position and size per point. Vertex i reads size[i];
// a missing or short size attribute falls back to defaultSize.
func (p *Points) Instances(defaultSize float32) []ParticleInstance {
	n := p.Count()
	if n == 0 {
		return nil
	}
	pos := p.Geometry.Attribute(AttributePosition).Array
	var sizes []float32
	if s := p.Geometry.Attribute(AttributeSize); s != nil {
		sizes = s.Array
	}
	out := make([]ParticleInstance, n)
	for i := range out {
		out[i].Pos = [3]float32{pos[i*3], pos[i*3+1], pos[i*3+2]}
		out[i].Size = defaultSize
		if i < len(sizes) {
			out[i].Size = sizes[i]
		}
	}
	return out
}

package shaders

import (
	_ "embed"
)

//go:embed points_vertex.wgsl
var PointsVertexWGSL string

//go:embed points_fragment.wgsl
var PointsFragmentWGSL string

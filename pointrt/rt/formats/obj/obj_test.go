package obj

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/gekko3d/particles/pointrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cube = `# two faces of a cube
mtllib cube.mtl
o Cube
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
usemtl red
f 1/1/1 2/2/1 3/3/1 4/4/1
usemtl blue
f -4/-4/-1 -3/-3/-1 -2/-2/-1
s off
`

func TestDecode_Cube(t *testing.T) {
	root, err := Decode(strings.NewReader(cube), "cube")
	require.NoError(t, err)
	assert.Equal(t, "cube", root.Name)

	require.Len(t, root.Children, 1)
	obj := root.Children[0]
	assert.Equal(t, "Cube", obj.Name)

	require.Len(t, obj.Children, 2, "one mesh per material run")
	red, blue := obj.Children[0], obj.Children[1]
	assert.Equal(t, "red", red.Material.Name)
	assert.Equal(t, "blue", blue.Material.Name)

	// the quad fans into two triangles
	assert.Equal(t, 6, red.Geometry.VertexCount())
	assert.Equal(t, 3, blue.Geometry.VertexCount())

	pos := red.Geometry.Attribute(core.AttributePosition).Array
	assert.Equal(t, []float32{0, 0, 0, 1, 1, 0, 0, 1, 0}, pos[9:18])

	require.NotNil(t, red.Geometry.Attribute(core.AttributeNormal))
	require.NotNil(t, red.Geometry.Attribute(core.AttributeUV))
	assert.Len(t, red.Geometry.Attribute(core.AttributeUV).Array, 12)

	merged := root.MergeGeometry()
	require.NotNil(t, merged)
	assert.Equal(t, 9, merged.VertexCount())
}

func TestDecoder_State(t *testing.T) {
	dec := NewDecoder()
	require.NoError(t, dec.Parse(strings.NewReader(cube+"curv 0 1 2\n")))
	assert.Equal(t, "cube.mtl", dec.Matlib)
	require.Len(t, dec.Warnings, 1)
	assert.Contains(t, dec.Warnings[0], "curv")
}

func TestDecode_NoObjectStatement(t *testing.T) {
	root, err := Decode(strings.NewReader("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), "tri")
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "default", root.Children[0].Name)

	mesh := root.Children[0].Children[0]
	assert.Nil(t, mesh.Geometry.Attribute(core.AttributeNormal))
	assert.Nil(t, mesh.Geometry.Attribute(core.AttributeUV))
}

func TestDecode_Errors(t *testing.T) {
	for i, src := range []string{
		"v 0 0\n",
		"v 0 0 0\nf 1 2\n",
		"v 0 0 0\nf 1 1 5\n",
		"v 0 0 0\nf 1 1 x\n",
		"v 0 0 0\nf 1/9 1 1\n",
		"usemtl\n",
	} {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			_, err := Decode(strings.NewReader(src), "bad")
			require.Error(t, err)
			var le *LineError
			assert.True(t, errors.As(err, &le))
		})
	}
}

func TestResolveIndex(t *testing.T) {
	i, err := resolveIndex("3", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	i, err = resolveIndex("-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	i, err = resolveIndex("", 3)
	require.NoError(t, err)
	assert.Equal(t, noIndex, i)

	_, err = resolveIndex("0", 3)
	assert.Error(t, err)
}

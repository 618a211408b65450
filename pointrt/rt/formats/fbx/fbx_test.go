package fbx

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/gekko3d/particles/pointrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testProp struct {
	typ  byte
	data []byte
}

type testNode struct {
	name     string
	props    []testProp
	children []testNode
}

type testEncoder struct {
	buf  bytes.Buffer
	wide bool
}

func encodeDoc(version uint32, nodes ...testNode) []byte {
	e := &testEncoder{wide: version >= wideVersion}
	e.buf.WriteString(BinaryMagic)
	e.buf.Write([]byte{0x1a, 0x00})
	binary.Write(&e.buf, binary.LittleEndian, version)
	for _, n := range nodes {
		e.node(n)
	}
	e.null()
	return e.buf.Bytes()
}

func (e *testEncoder) word(v uint64) {
	if e.wide {
		binary.Write(&e.buf, binary.LittleEndian, v)
		return
	}
	binary.Write(&e.buf, binary.LittleEndian, uint32(v))
}

func (e *testEncoder) null() {
	e.word(0)
	e.word(0)
	e.word(0)
	e.buf.WriteByte(0)
}

func (e *testEncoder) node(n testNode) {
	start := e.buf.Len()
	e.word(0)
	e.word(0)
	e.word(0)
	e.buf.WriteByte(byte(len(n.name)))
	e.buf.WriteString(n.name)

	propsStart := e.buf.Len()
	for _, p := range n.props {
		e.buf.WriteByte(p.typ)
		e.buf.Write(p.data)
	}
	propLen := e.buf.Len() - propsStart

	if len(n.children) > 0 {
		for _, c := range n.children {
			e.node(c)
		}
		e.null()
	}

	out := e.buf.Bytes()
	w := 4
	if e.wide {
		w = 8
	}
	put := func(at int, v uint64) {
		if e.wide {
			binary.LittleEndian.PutUint64(out[at:], v)
			return
		}
		binary.LittleEndian.PutUint32(out[at:], uint32(v))
	}
	put(start, uint64(e.buf.Len()))
	put(start+w, uint64(len(n.props)))
	put(start+2*w, uint64(propLen))
}

func propI64(v int64) testProp {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return testProp{typ: 'L', data: b}
}

func propF64(v float64) testProp {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return testProp{typ: 'D', data: b}
}

func propString(s string) testProp {
	b := make([]byte, 4, 4+len(s))
	binary.LittleEndian.PutUint32(b, uint32(len(s)))
	return testProp{typ: 'S', data: append(b, s...)}
}

func propArray(typ byte, count int, raw []byte, compress bool) testProp {
	enc := uint32(0)
	if compress {
		var zb bytes.Buffer
		zw := zlib.NewWriter(&zb)
		zw.Write(raw)
		zw.Close()
		raw = zb.Bytes()
		enc = 1
	}
	b := make([]byte, 12, 12+len(raw))
	binary.LittleEndian.PutUint32(b[0:], uint32(count))
	binary.LittleEndian.PutUint32(b[4:], enc)
	binary.LittleEndian.PutUint32(b[8:], uint32(len(raw)))
	return testProp{typ: typ, data: append(b, raw...)}
}

func propF64s(vals []float64, compress bool) testProp {
	raw := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(v))
	}
	return propArray('d', len(vals), raw, compress)
}

func propI32s(vals []int32, compress bool) testProp {
	raw := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(v))
	}
	return propArray('i', len(vals), raw, compress)
}

func lclProp(name string, x, y, z float64) testNode {
	return testNode{name: "P", props: []testProp{
		propString(name), propString(name), propString(""), propString("A"),
		propF64(x), propF64(y), propF64(z),
	}}
}

func quadDocument(version uint32, compress bool) []byte {
	geometry := testNode{
		name:  "Geometry",
		props: []testProp{propI64(100), propString("Quad\x00\x01Geometry"), propString("Mesh")},
		children: []testNode{
			{name: "Vertices", props: []testProp{propF64s([]float64{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, compress)}},
			{name: "PolygonVertexIndex", props: []testProp{propI32s([]int32{0, 1, 2, -4}, compress)}},
		},
	}
	model := testNode{
		name:  "Model",
		props: []testProp{propI64(200), propString("QuadModel\x00\x01Model"), propString("Mesh")},
		children: []testNode{
			{name: "Properties70", children: []testNode{
				lclProp("Lcl Translation", 10, 0, 0),
				lclProp("Lcl Scaling", 2, 2, 2),
			}},
		},
	}
	connections := testNode{
		name: "Connections",
		children: []testNode{
			{name: "C", props: []testProp{propString("OO"), propI64(100), propI64(200)}},
			{name: "C", props: []testProp{propString("OO"), propI64(200), propI64(0)}},
		},
	}
	return encodeDoc(version,
		testNode{name: "FBXHeaderExtension", children: []testNode{
			{name: "FBXVersion", props: []testProp{{typ: 'I', data: []byte{0xe8, 0x1c, 0, 0}}}},
		}},
		testNode{name: "Objects", children: []testNode{geometry, model}},
		connections,
	)
}

func TestParse_Nodes(t *testing.T) {
	doc, err := Parse(bytes.NewReader(quadDocument(7400, false)))
	require.NoError(t, err)
	assert.Equal(t, uint32(7400), doc.Version)
	require.Len(t, doc.Nodes, 3)

	hdr := doc.Node("FBXHeaderExtension")
	require.NotNil(t, hdr)
	ver := hdr.Child("FBXVersion")
	require.NotNil(t, ver)
	assert.Equal(t, int32(7400), ver.Properties[0].Value)

	objects := doc.Node("Objects")
	require.NotNil(t, objects)
	assert.Len(t, objects.ChildrenNamed("Geometry"), 1)
	geo := objects.Child("Geometry")
	assert.Equal(t, "Quad", objectName(geo.Properties[1].String()))

	verts, ok := geo.Child("Vertices").Properties[0].Floats()
	require.True(t, ok)
	assert.Len(t, verts, 12)
}

func TestDecode_QuadMesh(t *testing.T) {
	for _, tc := range []struct {
		name     string
		version  uint32
		compress bool
	}{
		{"v7400 raw", 7400, false},
		{"v7400 zlib", 7400, true},
		{"v7500 raw", 7500, false},
		{"v7700 zlib", 7700, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			root, err := Decode(bytes.NewReader(quadDocument(tc.version, tc.compress)), "quad")
			require.NoError(t, err)
			assert.Equal(t, "quad", root.Name)

			require.Len(t, root.Children, 1)
			model := root.Children[0]
			assert.Equal(t, "QuadModel", model.Name)
			require.NotNil(t, model.Geometry)
			assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, model.Geometry.Index)

			merged := root.MergeGeometry()
			require.NotNil(t, merged)
			assert.Equal(t, 6, merged.VertexCount())
			pos := merged.Attribute(core.AttributePosition).Array
			assert.InDeltaSlice(t, []float32{10, 0, 0, 12, 0, 0, 12, 2, 0}, pos[:9], 1e-5)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("; FBX 7.4.0 project file\nFBXHeaderExtension:  {\n")), "a")
	assert.True(t, errors.Is(err, ErrASCII))

	_, err = Decode(bytes.NewReader([]byte("definitely not a model")), "a")
	assert.True(t, errors.Is(err, ErrNotFBX))

	doc := quadDocument(7400, false)
	_, err = Decode(bytes.NewReader(doc[:len(doc)/2]), "a")
	assert.Error(t, err, "truncated file")
}

func TestTriangulate(t *testing.T) {
	idx, err := triangulate([]int64{0, 1, 2, 3, ^int64(4), 0, 1, ^int64(2)}, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3, 0, 3, 4, 0, 1, 2}, idx)

	_, err = triangulate([]int64{0, 1, ^int64(7)}, 3)
	assert.Error(t, err)
}

func verticesDocument(arr testProp) []byte {
	return encodeDoc(7400, testNode{name: "Objects", children: []testNode{
		{
			name:     "Geometry",
			props:    []testProp{propI64(1), propString("Bad\x00\x01Geometry"), propString("Mesh")},
			children: []testNode{{name: "Vertices", props: []testProp{arr}}},
		},
	}})
}

func TestParse_OversizedCompressedArray(t *testing.T) {
	// a few compressed bytes claiming 2^32-1 doubles
	doc := verticesDocument(propArray('d', 0xFFFFFFFF, []byte{0}, true))
	_, err := Parse(bytes.NewReader(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArrayTooLarge)

	_, err = Decode(bytes.NewReader(doc), "bad")
	assert.ErrorIs(t, err, ErrArrayTooLarge)
}

func TestParse_CompressedArrayLengthMismatch(t *testing.T) {
	raw := make([]byte, 16)
	short := verticesDocument(propArray('d', 5, raw, true))
	_, err := Parse(bytes.NewReader(short))
	assert.ErrorContains(t, err, "inflate array")

	long := verticesDocument(propArray('d', 1, raw, true))
	_, err = Parse(bytes.NewReader(long))
	assert.ErrorContains(t, err, "inflate array")
}

func TestParse_UncompressedArrayTooShort(t *testing.T) {
	doc := verticesDocument(propArray('d', 1<<20, make([]byte, 8), false))
	_, err := Parse(bytes.NewReader(doc))
	assert.Error(t, err)
}

package particles

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"testing/fstest"
	"time"

	"github.com/gekko3d/particles/pointrt/rt/formats/fbx"
)

// bufferJSON is a format 4 model with n non-indexed vertices at (i, 2i, 3i).
func bufferJSON(n int) string {
	var sb strings.Builder
	sb.WriteString(`{"metadata":{"type":"BufferGeometry"},"data":{"attributes":{"position":{"itemSize":3,"type":"Float32Array","array":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%d,%d,%d", i, 2*i, 3*i)
	}
	sb.WriteString(`]}}}}`)
	return sb.String()
}

const triangleOBJ = `o Tri
v 0 0 0
v 1 0 0
v 0 1 0
f 1 2 3
`

// fbxRecord is a version 7400 node: 32-bit offsets, properties already
// encoded as type byte plus payload.
type fbxRecord struct {
	name     string
	props    [][]byte
	children []fbxRecord
}

func (r fbxRecord) write(buf *bytes.Buffer) {
	start := buf.Len()
	buf.Write(make([]byte, 12))
	buf.WriteByte(byte(len(r.name)))
	buf.WriteString(r.name)
	propsStart := buf.Len()
	for _, p := range r.props {
		buf.Write(p)
	}
	propLen := buf.Len() - propsStart
	if len(r.children) > 0 {
		for _, c := range r.children {
			c.write(buf)
		}
		buf.Write(make([]byte, 13))
	}
	out := buf.Bytes()
	binary.LittleEndian.PutUint32(out[start:], uint32(buf.Len()))
	binary.LittleEndian.PutUint32(out[start+4:], uint32(len(r.props)))
	binary.LittleEndian.PutUint32(out[start+8:], uint32(propLen))
}

func fbxInt64(v int64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{'L'}, uint64(v))
}

func fbxString(s string) []byte {
	b := binary.LittleEndian.AppendUint32([]byte{'S'}, uint32(len(s)))
	return append(b, s...)
}

func fbxArray(typ byte, count int, raw []byte) []byte {
	b := []byte{typ}
	b = binary.LittleEndian.AppendUint32(b, uint32(count))
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(raw)))
	return append(b, raw...)
}

// triangleFBX is a binary document with one unparented triangle geometry.
func triangleFBX() []byte {
	var verts []byte
	for _, v := range []float64{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		verts = binary.LittleEndian.AppendUint64(verts, math.Float64bits(v))
	}
	var polys []byte
	for _, i := range []int32{0, 1, -3} {
		polys = binary.LittleEndian.AppendUint32(polys, uint32(i))
	}
	geometry := fbxRecord{
		name:  "Geometry",
		props: [][]byte{fbxInt64(1), fbxString("Tri\x00\x01Geometry"), fbxString("Mesh")},
		children: []fbxRecord{
			{name: "Vertices", props: [][]byte{fbxArray('d', 9, verts)}},
			{name: "PolygonVertexIndex", props: [][]byte{fbxArray('i', 3, polys)}},
		},
	}

	var buf bytes.Buffer
	buf.WriteString(fbx.BinaryMagic)
	buf.Write([]byte{0x1a, 0x00})
	buf.Write(binary.LittleEndian.AppendUint32(nil, 7400))
	fbxRecord{name: "Objects", children: []fbxRecord{geometry}}.write(&buf)
	buf.Write(make([]byte, 13))
	return buf.Bytes()
}

func modelFS() fstest.MapFS {
	return fstest.MapFS{
		"public/assets/qr.json":  {Data: []byte(bufferJSON(100))},
		"public/assets/tri.obj":  {Data: []byte(triangleOBJ)},
		"public/assets/tri.fbx":  {Data: triangleFBX()},
		"public/assets/bad.json": {Data: []byte(`{"faces": [`)},
	}
}

// testFetcher delays or blocks individual paths.
type testFetcher struct {
	fs     fstest.MapFS
	delays map[string]time.Duration
	block  map[string]bool
}

func (f *testFetcher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	if f.block[name] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d := f.delays[name]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return FSFetcher{FS: f.fs}.Fetch(ctx, name)
}

// Package threejson decodes three.js JSON model files. Two layouts are
// understood: the legacy format 3 "Geometry" layout (vertices plus a packed
// face stream) and the format 4 "BufferGeometry" layout (flat attributes).
package threejson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gekko3d/particles/pointrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Face type bits of the format 3 face stream.
const (
	faceQuad = 1 << iota
	faceMaterial
	faceUv
	faceVertexUv
	faceNormal
	faceVertexNormal
	faceColor
	faceVertexColor
)

var ErrMalformedFaces = errors.New("threejson: malformed face stream")

// Model is the decoded content of one file.
type Model struct {
	Geometry  core.Geometry
	Materials []core.MeshMaterial
}

type fileMetadata struct {
	FormatVersion float64 `json:"formatVersion"`
	Type          string  `json:"type"`
}

type fileMaterial struct {
	DbgName      string    `json:"DbgName"`
	ColorDiffuse []float32 `json:"colorDiffuse"`
	Opacity      *float32  `json:"opacity"`
	Transparent  bool      `json:"transparent"`
	MapDiffuse   string    `json:"mapDiffuse"`
}

type fileAttribute struct {
	ItemSize int       `json:"itemSize"`
	Type     string    `json:"type"`
	Array    []float32 `json:"array"`
}

type fileIndex struct {
	Type  string   `json:"type"`
	Array []uint32 `json:"array"`
}

type file struct {
	Metadata  fileMetadata    `json:"metadata"`
	Scale     *float32        `json:"scale"`
	Vertices  []float32       `json:"vertices"`
	Normals   []float32       `json:"normals"`
	Uvs       [][]float32     `json:"uvs"`
	Faces     []int           `json:"faces"`
	Materials []fileMaterial  `json:"materials"`
	Data      *fileBufferData `json:"data"`
}

type fileBufferData struct {
	Attributes map[string]fileAttribute `json:"attributes"`
	Index      *fileIndex               `json:"index"`
}

func Decode(r io.Reader) (*Model, error) {
	var f file
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("threejson: %w", err)
	}

	model := &Model{Materials: decodeMaterials(f.Materials)}

	if f.Metadata.Type == core.TypeBufferGeometry || f.Data != nil {
		g, err := decodeBufferGeometry(f.Data)
		if err != nil {
			return nil, err
		}
		model.Geometry = g
		return model, nil
	}

	g, err := decodeGeometry(&f)
	if err != nil {
		return nil, err
	}
	model.Geometry = g
	return model, nil
}

func decodeBufferGeometry(data *fileBufferData) (*core.BufferGeometry, error) {
	if data == nil {
		return nil, errors.New("threejson: BufferGeometry without data")
	}
	pos, ok := data.Attributes[core.AttributePosition]
	if !ok {
		return nil, errors.New("threejson: BufferGeometry without position attribute")
	}
	g := core.NewBufferGeometry()
	for name, a := range data.Attributes {
		itemSize := a.ItemSize
		if itemSize <= 0 {
			return nil, fmt.Errorf("threejson: attribute %q has item size %d", name, a.ItemSize)
		}
		if len(a.Array)%itemSize != 0 {
			return nil, fmt.Errorf("threejson: attribute %q length %d is not a multiple of %d", name, len(a.Array), itemSize)
		}
		g.SetAttribute(name, core.NewBufferAttribute(a.Array, itemSize))
	}
	if pos.ItemSize != 3 {
		return nil, fmt.Errorf("threejson: position item size %d, want 3", pos.ItemSize)
	}
	if data.Index != nil {
		count := uint32(len(pos.Array) / 3)
		for _, idx := range data.Index.Array {
			if idx >= count {
				return nil, fmt.Errorf("threejson: index %d out of range (%d vertices)", idx, count)
			}
		}
		g.Index = data.Index.Array
	}
	return g, nil
}

func decodeGeometry(f *file) (*core.LegacyGeometry, error) {
	if len(f.Vertices)%3 != 0 {
		return nil, fmt.Errorf("threejson: vertex array length %d is not a multiple of 3", len(f.Vertices))
	}
	scale := float32(1.0)
	if f.Scale != nil && *f.Scale != 0 {
		scale = 1.0 / *f.Scale
	}

	g := core.NewLegacyGeometry()
	g.Vertices = make([]mgl32.Vec3, 0, len(f.Vertices)/3)
	for i := 0; i < len(f.Vertices); i += 3 {
		g.Vertices = append(g.Vertices, mgl32.Vec3{
			f.Vertices[i] * scale,
			f.Vertices[i+1] * scale,
			f.Vertices[i+2] * scale,
		})
	}

	if err := decodeFaces(f, g); err != nil {
		return nil, err
	}
	return g, nil
}

type faceReader struct {
	faces []int
	off   int
}

func (fr *faceReader) next() (int, error) {
	if fr.off >= len(fr.faces) {
		return 0, ErrMalformedFaces
	}
	v := fr.faces[fr.off]
	fr.off++
	return v, nil
}

func (fr *faceReader) skip(n int) error {
	if fr.off+n > len(fr.faces) {
		return ErrMalformedFaces
	}
	fr.off += n
	return nil
}

func decodeFaces(f *file, g *core.LegacyGeometry) error {
	nUvLayers := 0
	for _, layer := range f.Uvs {
		if len(layer) > 0 {
			nUvLayers++
		}
	}
	wantUvs := nUvLayers > 0

	normalAt := func(i int) mgl32.Vec3 {
		o := i * 3
		if i < 0 || o+2 >= len(f.Normals) {
			return mgl32.Vec3{}
		}
		return mgl32.Vec3{f.Normals[o], f.Normals[o+1], f.Normals[o+2]}
	}
	uvAt := func(i int) mgl32.Vec2 {
		o := i * 2
		if i < 0 || o+1 >= len(f.Uvs[0]) {
			return mgl32.Vec2{}
		}
		return mgl32.Vec2{f.Uvs[0][o], f.Uvs[0][o+1]}
	}

	fr := &faceReader{faces: f.Faces}
	for fr.off < len(fr.faces) {
		typ, err := fr.next()
		if err != nil {
			return err
		}
		nVerts := 3
		if typ&faceQuad != 0 {
			nVerts = 4
		}

		idx := make([]int, nVerts)
		for i := range idx {
			if idx[i], err = fr.next(); err != nil {
				return err
			}
			if idx[i] < 0 || idx[i] >= len(g.Vertices) {
				return fmt.Errorf("threejson: face vertex %d out of range (%d vertices)", idx[i], len(g.Vertices))
			}
		}

		materialIndex := 0
		if typ&faceMaterial != 0 {
			if materialIndex, err = fr.next(); err != nil {
				return err
			}
		}
		if typ&faceUv != 0 {
			if err := fr.skip(nUvLayers); err != nil {
				return err
			}
		}

		var uvs []mgl32.Vec2
		if typ&faceVertexUv != 0 {
			for layer := 0; layer < nUvLayers; layer++ {
				for i := 0; i < nVerts; i++ {
					ui, err := fr.next()
					if err != nil {
						return err
					}
					if layer == 0 {
						uvs = append(uvs, uvAt(ui))
					}
				}
			}
		}

		var faceN mgl32.Vec3
		if typ&faceNormal != 0 {
			ni, err := fr.next()
			if err != nil {
				return err
			}
			faceN = normalAt(ni)
		}

		var vertexN []mgl32.Vec3
		if typ&faceVertexNormal != 0 {
			for i := 0; i < nVerts; i++ {
				ni, err := fr.next()
				if err != nil {
					return err
				}
				vertexN = append(vertexN, normalAt(ni))
			}
		}

		if typ&faceColor != 0 {
			if err := fr.skip(1); err != nil {
				return err
			}
		}
		if typ&faceVertexColor != 0 {
			if err := fr.skip(nVerts); err != nil {
				return err
			}
		}

		// Quads split into (a,b,d) and (b,c,d).
		tris := [][3]int{{0, 1, 2}}
		if nVerts == 4 {
			tris = [][3]int{{0, 1, 3}, {1, 2, 3}}
		}
		for _, t := range tris {
			face := core.Face{
				A:             idx[t[0]],
				B:             idx[t[1]],
				C:             idx[t[2]],
				Normal:        faceN,
				MaterialIndex: materialIndex,
			}
			if len(vertexN) == nVerts {
				face.VertexNormals = []mgl32.Vec3{vertexN[t[0]], vertexN[t[1]], vertexN[t[2]]}
			}
			g.Faces = append(g.Faces, face)
			if wantUvs {
				var fuv [3]mgl32.Vec2
				if len(uvs) == nVerts {
					fuv = [3]mgl32.Vec2{uvs[t[0]], uvs[t[1]], uvs[t[2]]}
				}
				g.FaceVertexUvs = append(g.FaceVertexUvs, fuv)
			}
		}
	}
	return nil
}

func decodeMaterials(in []fileMaterial) []core.MeshMaterial {
	out := make([]core.MeshMaterial, 0, len(in))
	for _, m := range in {
		mat := *core.DefaultMeshMaterial()
		if m.DbgName != "" {
			mat.Name = m.DbgName
		}
		if len(m.ColorDiffuse) >= 3 {
			mat.Color = mgl32.Vec3{m.ColorDiffuse[0], m.ColorDiffuse[1], m.ColorDiffuse[2]}
		}
		if m.Opacity != nil {
			mat.Opacity = *m.Opacity
		}
		mat.Transparent = m.Transparent
		mat.MapDiffuse = m.MapDiffuse
		out = append(out, mat)
	}
	return out
}

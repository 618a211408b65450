// Package obj parses the Wavefront OBJ format (*.obj) into a mesh subtree.
// Material libraries are recorded by name but not read; every mesh keeps the
// name given by its usemtl statement.
package obj

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gekko3d/particles/pointrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

const noIndex = -1

// Decoder holds the state of one decode. Use Decode for the common case.
type Decoder struct {
	Matlib   string
	Objects  []*Object
	Warnings []string

	vertices []mgl32.Vec3
	normals  []mgl32.Vec3
	uvs      []mgl32.Vec2
	line     int
	current  *Object
	material string
}

// Object is one o/g block. Faces keep their original polygon size.
type Object struct {
	Name  string
	Faces []Face
}

type Face struct {
	Vertices []int
	Uvs      []int
	Normals  []int
	Material string
}

// LineError reports the line an OBJ statement failed on.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("obj: line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses r and returns a group called name holding one mesh per
// object and material run.
func Decode(r io.Reader, name string) (*core.Object3D, error) {
	dec := NewDecoder()
	if err := dec.Parse(r); err != nil {
		return nil, err
	}
	return dec.Build(name), nil
}

func (dec *Decoder) Parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		dec.line++
		if err := dec.parseLine(scanner.Text()); err != nil {
			return &LineError{Line: dec.line, Err: err}
		}
	}
	return scanner.Err()
}

func (dec *Decoder) parseLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return nil
	}
	args := fields[1:]
	switch fields[0] {
	case "v":
		v, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		dec.vertices = append(dec.vertices, mgl32.Vec3{v[0], v[1], v[2]})
	case "vn":
		v, err := parseFloats(args, 3)
		if err != nil {
			return err
		}
		dec.normals = append(dec.normals, mgl32.Vec3{v[0], v[1], v[2]})
	case "vt":
		v, err := parseFloats(args, 2)
		if err != nil {
			return err
		}
		dec.uvs = append(dec.uvs, mgl32.Vec2{v[0], v[1]})
	case "f":
		return dec.parseFace(args)
	case "o", "g":
		name := strings.Join(args, " ")
		if name == "" {
			name = fmt.Sprintf("object_%d", len(dec.Objects))
		}
		dec.current = &Object{Name: name}
		dec.Objects = append(dec.Objects, dec.current)
	case "usemtl":
		if len(args) == 0 {
			return fmt.Errorf("usemtl without material name")
		}
		dec.material = args[0]
	case "mtllib":
		if len(args) == 0 {
			return fmt.Errorf("mtllib without file name")
		}
		dec.Matlib = args[0]
	case "s", "l", "p":
		// smoothing groups and non-polygon elements carry no triangle data
	default:
		dec.Warnings = append(dec.Warnings, fmt.Sprintf("line %d: field not supported: %s", dec.line, fields[0]))
	}
	return nil
}

func parseFloats(args []string, n int) ([]float32, error) {
	if len(args) < n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(args))
	}
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

func (dec *Decoder) parseFace(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("face with %d vertices", len(args))
	}
	face := Face{
		Vertices: make([]int, len(args)),
		Uvs:      make([]int, len(args)),
		Normals:  make([]int, len(args)),
		Material: dec.material,
	}
	for i, arg := range args {
		parts := strings.Split(arg, "/")
		var err error
		if face.Vertices[i], err = resolveIndex(parts[0], len(dec.vertices)); err != nil {
			return err
		}
		if face.Vertices[i] == noIndex {
			return fmt.Errorf("face vertex %q has no position", arg)
		}
		face.Uvs[i] = noIndex
		if len(parts) > 1 {
			if face.Uvs[i], err = resolveIndex(parts[1], len(dec.uvs)); err != nil {
				return err
			}
		}
		face.Normals[i] = noIndex
		if len(parts) > 2 {
			if face.Normals[i], err = resolveIndex(parts[2], len(dec.normals)); err != nil {
				return err
			}
		}
	}
	if dec.current == nil {
		dec.current = &Object{Name: "default"}
		dec.Objects = append(dec.Objects, dec.current)
	}
	dec.current.Faces = append(dec.current.Faces, face)
	return nil
}

// resolveIndex turns a 1-based or negative OBJ index into a 0-based one.
// An empty field yields noIndex.
func resolveIndex(s string, count int) (int, error) {
	if s == "" {
		return noIndex, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	switch {
	case i > 0 && i <= count:
		return i - 1, nil
	case i < 0 && -i <= count:
		return count + i, nil
	}
	return 0, fmt.Errorf("index %d out of range (%d defined)", i, count)
}

// Build converts the parsed objects into a subtree. Objects without faces are
// dropped; an object switching materials is split into one mesh per run.
func (dec *Decoder) Build(name string) *core.Object3D {
	root := core.NewGroup(name)
	for _, ob := range dec.Objects {
		if len(ob.Faces) == 0 {
			continue
		}
		group := core.NewGroup(ob.Name)
		start := 0
		for i := 1; i <= len(ob.Faces); i++ {
			if i < len(ob.Faces) && ob.Faces[i].Material == ob.Faces[start].Material {
				continue
			}
			run := ob.Faces[start:i]
			mat := core.DefaultMeshMaterial()
			if m := run[0].Material; m != "" {
				mat.Name = m
			}
			meshName := fmt.Sprintf("%s_%d", ob.Name, len(group.Children))
			group.Add(core.NewMesh(meshName, dec.meshGeometry(run), mat))
			start = i
		}
		root.Add(group)
	}
	return root
}

// meshGeometry fans every polygon (0, i, i+1) into non-indexed triangles.
func (dec *Decoder) meshGeometry(faces []Face) *core.BufferGeometry {
	var positions, normals, uvs []float32
	hasNormals, hasUvs := true, true
	for _, f := range faces {
		for i := range f.Vertices {
			hasNormals = hasNormals && f.Normals[i] != noIndex
			hasUvs = hasUvs && f.Uvs[i] != noIndex
		}
	}

	emit := func(f Face, i int) {
		v := dec.vertices[f.Vertices[i]]
		positions = append(positions, v[0], v[1], v[2])
		if hasNormals {
			n := dec.normals[f.Normals[i]]
			normals = append(normals, n[0], n[1], n[2])
		}
		if hasUvs {
			uv := dec.uvs[f.Uvs[i]]
			uvs = append(uvs, uv[0], uv[1])
		}
	}
	for _, f := range faces {
		for i := 1; i+1 < len(f.Vertices); i++ {
			emit(f, 0)
			emit(f, i)
			emit(f, i+1)
		}
	}

	g := core.NewBufferGeometry()
	g.SetAttribute(core.AttributePosition, core.NewBufferAttribute(positions, 3))
	if hasNormals {
		g.SetAttribute(core.AttributeNormal, core.NewBufferAttribute(normals, 3))
	}
	if hasUvs {
		g.SetAttribute(core.AttributeUV, core.NewBufferAttribute(uvs, 2))
	}
	return g
}

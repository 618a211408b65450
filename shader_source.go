package particles

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/gekko3d/particles/pointrt/rt/shaders"
)

var ErrShaderNotFound = errors.New("shader not found")

// ShaderSource looks program text up by id.
type ShaderSource interface {
	Shader(id string) (string, error)
}

// MapShaders is a fixed id to source table.
type MapShaders map[string]string

func (m MapShaders) Shader(id string) (string, error) {
	src, ok := m[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrShaderNotFound, id)
	}
	return src, nil
}

// EmbeddedShaders serves the WGSL point sprite programs compiled into the binary.
func EmbeddedShaders() MapShaders {
	return MapShaders{
		"vertexshader":   shaders.PointsVertexWGSL,
		"fragmentshader": shaders.PointsFragmentWGSL,
	}
}

// DirShaders reads <id>.wgsl from FS.
type DirShaders struct {
	FS fs.FS
}

func (d DirShaders) Shader(id string) (string, error) {
	data, err := fs.ReadFile(d.FS, id+".wgsl")
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %q", ErrShaderNotFound, id)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

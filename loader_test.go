package particles

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"testing"
	"time"

	"github.com/gekko3d/particles/pointrt/rt/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssetRequest(t *testing.T) {
	tests := []struct {
		path string
		want AssetRequest
	}{
		{"./public/assets/qr.json", AssetRequest{Path: "./public/assets/qr.json", BasePath: "./public/assets/", Name: "qr", Format: FormatJSON}},
		{"models/Robot.FBX", AssetRequest{Path: "models/Robot.FBX", BasePath: "models/", Name: "Robot", Format: FormatFBX}},
		{"tri.obj", AssetRequest{Path: "tri.obj", Name: "tri", Format: FormatOBJ}},
		{"dir/archive.tar.gz", AssetRequest{Path: "dir/archive.tar.gz", BasePath: "dir/", Name: "archive.tar", Format: "gz"}},
		{"noext", AssetRequest{Path: "noext", Name: "noext"}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAssetRequest(tt.path))
		})
	}
}

func TestLoad_IndexAligned(t *testing.T) {
	f := &testFetcher{
		fs: modelFS(),
		delays: map[string]time.Duration{
			"public/assets/qr.json": 40 * time.Millisecond,
			"public/assets/tri.obj": 5 * time.Millisecond,
		},
	}
	loader := NewModelLoader(f)
	paths := []string{"public/assets/qr.json", "public/assets/tri.obj", "public/assets/qr.json"}

	results, err := loader.Load(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.Model)
		assert.Equal(t, paths[i], r.Model.Request.Path)
	}
	assert.NotNil(t, results[0].Model.Geometry)
	assert.Nil(t, results[0].Model.Object)
	assert.NotNil(t, results[1].Model.Object)
	assert.Equal(t, "tri", results[1].Model.Object.Name)
}

func TestLoad_MixedFormats(t *testing.T) {
	// the first slot finishes last
	f := &testFetcher{
		fs: modelFS(),
		delays: map[string]time.Duration{
			"public/assets/qr.json": 60 * time.Millisecond,
			"public/assets/tri.fbx": 30 * time.Millisecond,
			"public/assets/tri.obj": 5 * time.Millisecond,
		},
	}
	paths := []string{"public/assets/qr.json", "public/assets/tri.fbx", "public/assets/tri.obj"}

	results, err := NewModelLoader(f).Load(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		require.NoError(t, r.Err)
		require.NotNil(t, r.Model)
		assert.Equal(t, paths[i], r.Model.Request.Path)
	}

	assert.Equal(t, FormatJSON, results[0].Model.Request.Format)
	assert.NotNil(t, results[0].Model.Geometry)

	fbxModel := results[1].Model
	assert.Equal(t, FormatFBX, fbxModel.Request.Format)
	assert.Nil(t, fbxModel.Geometry)
	require.NotNil(t, fbxModel.Object)
	assert.Equal(t, "tri", fbxModel.Object.Name)
	require.Len(t, fbxModel.Object.Children, 1)
	assert.Equal(t, "Tri", fbxModel.Object.Children[0].Name)

	g, err := fbxModel.PrimaryGeometry()
	require.NoError(t, err)
	merged, ok := g.(*core.BufferGeometry)
	require.True(t, ok)
	assert.Equal(t, 3, merged.VertexCount())
	assert.Equal(t, []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, merged.Attribute(core.AttributePosition).Array)

	assert.Equal(t, FormatOBJ, results[2].Model.Request.Format)
	assert.Equal(t, "tri", results[2].Model.Object.Name)
}

func TestLoad_UnsupportedSlot(t *testing.T) {
	loader := NewModelLoader(FSFetcher{FS: modelFS()})

	results, err := loader.Load(context.Background(), []string{"public/assets/qr.json", "public/assets/model.stl"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Supported())
	assert.NoError(t, results[0].Err)

	assert.False(t, results[1].Supported())
	assert.ErrorIs(t, results[1].Err, ErrUnsupportedFormat)
	assert.Nil(t, results[1].Model)
}

func TestLoad_FailFast(t *testing.T) {
	f := &testFetcher{
		fs: modelFS(),
		block: map[string]bool{
			"public/assets/qr.json": true,
			"public/assets/tri.obj": true,
		},
	}
	loader := NewModelLoader(f)

	start := time.Now()
	results, err := loader.Load(context.Background(), []string{
		"public/assets/qr.json",
		"public/assets/missing.json",
		"public/assets/tri.obj",
	})
	require.Error(t, err)
	assert.Nil(t, results, "no partial results")
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Less(t, time.Since(start), 2*time.Second, "blocked loads are cancelled")
}

func TestLoad_DecodeError(t *testing.T) {
	loader := NewModelLoader(FSFetcher{FS: modelFS()})
	_, err := loader.Load(context.Background(), []string{"public/assets/qr.json", "public/assets/bad.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public/assets/bad.json")
}

func TestLoad_Timeout(t *testing.T) {
	f := &testFetcher{fs: modelFS(), block: map[string]bool{"public/assets/qr.json": true}}
	loader := NewModelLoader(f, WithLoadTimeout(20*time.Millisecond))

	_, err := loader.Load(context.Background(), []string{"public/assets/qr.json"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoad_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &testFetcher{fs: modelFS(), block: map[string]bool{"public/assets/tri.obj": true}}

	_, err := NewModelLoader(f).Load(ctx, []string{"public/assets/tri.obj"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_CustomDecoder(t *testing.T) {
	var calls int
	dec := func(r io.Reader, req AssetRequest) (*LoadedModel, error) {
		calls++
		if _, err := io.ReadAll(r); err != nil {
			return nil, err
		}
		return &LoadedModel{Request: req, Geometry: core.NewBufferGeometry()}, nil
	}
	fsys := modelFS()
	fsys["a.stl"] = fsys["public/assets/tri.obj"]

	results, err := NewModelLoader(FSFetcher{FS: fsys}, WithDecoder("stl", dec)).Load(context.Background(), []string{"a.stl"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, results[0].Supported())
}

func TestLoad_Empty(t *testing.T) {
	results, err := NewModelLoader(FSFetcher{FS: modelFS()}).Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPrimaryGeometry(t *testing.T) {
	results, err := NewModelLoader(FSFetcher{FS: modelFS()}).Load(context.Background(), []string{"public/assets/tri.obj"})
	require.NoError(t, err)

	g, err := results[0].Model.PrimaryGeometry()
	require.NoError(t, err)
	buf, ok := g.(*core.BufferGeometry)
	require.True(t, ok)
	assert.Equal(t, 3, buf.VertexCount())

	empty := &LoadedModel{Request: ParseAssetRequest("empty.obj"), Object: core.NewGroup("empty")}
	_, err = empty.PrimaryGeometry()
	assert.True(t, errors.Is(err, ErrNoGeometry))
}

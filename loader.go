package particles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gekko3d/particles/pointrt/rt/core"
	"github.com/gekko3d/particles/pointrt/rt/formats/fbx"
	"github.com/gekko3d/particles/pointrt/rt/formats/obj"
	"github.com/gekko3d/particles/pointrt/rt/formats/threejson"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported model format")
	ErrNoGeometry        = errors.New("model has no geometry")
)

type Format string

const (
	FormatJSON Format = "json"
	FormatFBX  Format = "fbx"
	FormatOBJ  Format = "obj"
)

// AssetRequest is a model path split into the parts the decoders need.
type AssetRequest struct {
	Path     string
	BasePath string // directory including the trailing slash
	Name     string // file name without extension
	Format   Format // lower-cased extension without the dot
}

func ParseAssetRequest(p string) AssetRequest {
	base := path.Base(p)
	ext := path.Ext(base)
	req := AssetRequest{
		Path:   p,
		Name:   strings.TrimSuffix(base, ext),
		Format: Format(strings.ToLower(strings.TrimPrefix(ext, "."))),
	}
	if i := strings.LastIndex(p, "/"); i >= 0 {
		req.BasePath = p[:i+1]
	}
	return req
}

// LoadedModel is a decoded asset. JSON models carry Geometry and Materials;
// FBX and OBJ models carry an Object subtree.
type LoadedModel struct {
	Request   AssetRequest
	Geometry  core.Geometry
	Materials []core.MeshMaterial
	Object    *core.Object3D
}

// PrimaryGeometry returns the geometry to turn into particles. Subtrees are
// merged into one non-indexed buffer with world transforms applied.
func (m *LoadedModel) PrimaryGeometry() (core.Geometry, error) {
	if m.Geometry != nil {
		return m.Geometry, nil
	}
	if m.Object != nil {
		if g := m.Object.MergeGeometry(); g != nil {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", m.Request.Path, ErrNoGeometry)
}

// LoadResult is one slot of a Load call, index-aligned with its input path.
type LoadResult struct {
	Model *LoadedModel
	Err   error
}

func (r LoadResult) Supported() bool {
	return !errors.Is(r.Err, ErrUnsupportedFormat)
}

// Decoder turns asset bytes into a model.
type Decoder func(r io.Reader, req AssetRequest) (*LoadedModel, error)

func decodeJSON(r io.Reader, req AssetRequest) (*LoadedModel, error) {
	m, err := threejson.Decode(r)
	if err != nil {
		return nil, err
	}
	return &LoadedModel{Request: req, Geometry: m.Geometry, Materials: m.Materials}, nil
}

func decodeFBX(r io.Reader, req AssetRequest) (*LoadedModel, error) {
	o, err := fbx.Decode(r, req.Name)
	if err != nil {
		return nil, err
	}
	return &LoadedModel{Request: req, Object: o}, nil
}

func decodeOBJ(r io.Reader, req AssetRequest) (*LoadedModel, error) {
	o, err := obj.Decode(r, req.Name)
	if err != nil {
		return nil, err
	}
	return &LoadedModel{Request: req, Object: o}, nil
}

type ModelLoader struct {
	fetcher  Fetcher
	decoders map[Format]Decoder
	timeout  time.Duration
	logger   Logger
}

type LoaderOption func(*ModelLoader)

// WithLoadTimeout bounds a whole Load call. Zero disables the bound.
func WithLoadTimeout(d time.Duration) LoaderOption {
	return func(l *ModelLoader) { l.timeout = d }
}

func WithLogger(logger Logger) LoaderOption {
	return func(l *ModelLoader) { l.logger = orNop(logger) }
}

// WithDecoder registers or replaces the decoder for a format.
func WithDecoder(f Format, d Decoder) LoaderOption {
	return func(l *ModelLoader) { l.decoders[f] = d }
}

func NewModelLoader(fetcher Fetcher, opts ...LoaderOption) *ModelLoader {
	l := &ModelLoader{
		fetcher: fetcher,
		decoders: map[Format]Decoder{
			FormatJSON: decodeJSON,
			FormatFBX:  decodeFBX,
			FormatOBJ:  decodeOBJ,
		},
		logger: NewNopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load decodes every path concurrently. Results are index-aligned with paths.
// Unsupported formats fill their slot with ErrUnsupportedFormat and do not
// fail the call; the first real failure cancels the rest and is returned
// without partial results.
func (l *ModelLoader) Load(ctx context.Context, paths []string) ([]LoadResult, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	results := make([]LoadResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		req := ParseAssetRequest(p)
		dec, ok := l.decoders[req.Format]
		if !ok {
			l.logger.Warnf("skipping %s: %v %q", p, ErrUnsupportedFormat, req.Format)
			results[i].Err = fmt.Errorf("%s: %w %q", p, ErrUnsupportedFormat, req.Format)
			continue
		}
		g.Go(func() error {
			m, err := l.loadOne(gctx, req, dec)
			if err != nil {
				return fmt.Errorf("load %s: %w", req.Path, err)
			}
			results[i].Model = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type decodeResult struct {
	model *LoadedModel
	err   error
}

// loadOne runs fetch and decode on their own goroutine and waits for either
// the one-shot result or cancellation.
func (l *ModelLoader) loadOne(ctx context.Context, req AssetRequest, dec Decoder) (*LoadedModel, error) {
	done := make(chan decodeResult, 1)
	start := time.Now()
	go func() {
		rc, err := l.fetcher.Fetch(ctx, req.Path)
		if err != nil {
			done <- decodeResult{err: err}
			return
		}
		defer rc.Close()
		m, err := dec(rc, req)
		done <- decodeResult{model: m, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err == nil {
			l.logger.Debugf("loaded %s (%s) in %v", req.Path, req.Format, time.Since(start))
		}
		return res.model, res.err
	}
}

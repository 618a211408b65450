package particles

import (
	"context"
	"errors"
	"fmt"

	"github.com/gekko3d/particles/pointrt/rt/core"
)

// World holds everything one visualization instance needs: the scene it
// draws into, the engine that builds renderables and the current particle
// system.
type World struct {
	Scene      *core.Scene
	Engine     RenderEngine
	Shaders    ShaderSource
	Loader     *ModelLoader
	Logger     Logger
	Options    ParticleOptions
	ModelScale float32

	ParticleSystem *core.Points
}

func NewWorld(scene *core.Scene, engine RenderEngine, shaders ShaderSource, loader *ModelLoader, logger Logger) *World {
	if scene == nil {
		scene = core.NewScene()
	}
	return &World{
		Scene:      scene,
		Engine:     engine,
		Shaders:    shaders,
		Loader:     loader,
		Logger:     orNop(logger),
		Options:    DefaultParticleOptions(),
		ModelScale: 100,
	}
}

// AddObjs loads paths and turns the first model into the particle system.
func (w *World) AddObjs(ctx context.Context, paths []string) (*core.Points, error) {
	if w.Loader == nil {
		return nil, errors.New("world has no loader")
	}
	results, err := w.Loader.Load(ctx, paths)
	if err != nil {
		return nil, err
	}
	return w.AddLoaded(results)
}

// AddLoaded builds the particle system from the first slot of a Load result.
// It scales a copy, so results can be passed again. It must run on the
// thread that owns the engine.
func (w *World) AddLoaded(results []LoadResult) (*core.Points, error) {
	if len(results) == 0 {
		return nil, ErrNoGeometry
	}
	first := results[0]
	if first.Err != nil {
		return nil, first.Err
	}
	if first.Model == nil {
		return nil, ErrNoGeometry
	}
	g, err := first.Model.PrimaryGeometry()
	if err != nil {
		return nil, err
	}
	buf, err := ToBufferGeometry(g)
	if err != nil {
		return nil, err
	}
	buf = buf.Clone()
	if s := w.ModelScale; s != 0 && s != 1 {
		buf.Scale(s, s, s)
	}
	return w.AddParticles(buf)
}

// AddParticles builds a point cloud from g and adds it to the scene.
func (w *World) AddParticles(g core.Geometry) (*core.Points, error) {
	if w.Engine == nil {
		return nil, errors.New("world has no render engine")
	}
	points, err := BuildParticleSystem(g, w.Engine, w.Shaders, w.Options)
	if err != nil {
		return nil, fmt.Errorf("particles: %w", err)
	}
	w.Scene.Add(points)
	w.ParticleSystem = points
	w.Logger.Infof("particle system %s: %d points", points.Id, points.Count())
	return points, nil
}

// RemoveParticles detaches the current particle system from the scene.
func (w *World) RemoveParticles() bool {
	if w.ParticleSystem == nil {
		return false
	}
	ok := w.Scene.Remove(w.ParticleSystem.Id)
	w.ParticleSystem = nil
	return ok
}

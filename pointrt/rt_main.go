package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/gekko3d/particles"
	"github.com/gekko3d/particles/pointrt/rt/app"
	"github.com/gekko3d/particles/pointrt/rt/core"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

func init() {
	runtime.LockOSThread()
}

type loadOutcome struct {
	results []particles.LoadResult
	err     error
}

func main() {
	configPath := flag.String("config", "", "TOML or YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := particles.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}
	if flag.NArg() > 0 {
		cfg.Assets = flag.Args()
	}
	logger := particles.NewDefaultLogger("pointrt", cfg.Debug || *debug)

	shaders := particles.ShaderSource(particles.EmbeddedShaders())
	if cfg.ShaderDir != "" {
		shaders = particles.DirShaders{FS: os.DirFS(cfg.ShaderDir)}
	}
	fetcher, err := particles.NewFetcher(cfg.AssetRoot)
	if err != nil {
		panic(err)
	}
	loader := particles.NewModelLoader(fetcher,
		particles.WithLoadTimeout(time.Duration(cfg.LoadTimeout)),
		particles.WithLogger(logger),
	)

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	scene := core.NewScene()
	scene.Fog = &core.FogExp2{Color: core.HexColor(cfg.Window.ClearColor), Density: 0.0005}
	camera := core.NewPerspectiveCamera(cfg.Window.Fov, float32(cfg.Window.Width)/float32(cfg.Window.Height), cfg.Window.Near, cfg.Window.Far)
	camera.Position = mgl32.Vec3{0, 0, cfg.Window.CameraZ}

	application := app.NewApp(window, scene, camera, logger)
	application.ClearColor = core.HexColor(cfg.Window.ClearColor)
	application.DebugMode = logger.DebugEnabled()
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Release()

	world := particles.NewWorld(scene, application.Engine(), shaders, loader, logger)
	world.Options = cfg.ParticleOptions()
	world.ModelScale = cfg.ModelScale

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loaded := make(chan loadOutcome, 1)
	go func() {
		results, err := loader.Load(ctx, cfg.Assets)
		loaded <- loadOutcome{results: results, err: err}
	}()

	for !window.ShouldClose() {
		glfw.PollEvents()
		select {
		case out := <-loaded:
			if out.err != nil {
				logger.Errorf("load %v: %v", cfg.Assets, out.err)
				break
			}
			if _, err := world.AddLoaded(out.results); err != nil {
				logger.Errorf("build particles: %v", err)
			}
		default:
		}
		application.Update()
		application.Render()
	}
}

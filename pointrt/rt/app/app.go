package app

import (
	"fmt"

	"github.com/gekko3d/particles"
	"github.com/gekko3d/particles/pointrt/rt/core"
	"github.com/gekko3d/particles/pointrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// App owns the window surface and draws the scene's point clouds each frame.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Points *gpu.PointsRenderPass
	Scene  *core.Scene
	Camera *core.PerspectiveCamera
	Logger particles.Logger
	Stats  *FrameStats

	// ClearColor is used when the scene has no fog.
	ClearColor [3]float32
	PointScale float32
	DebugMode  bool

	LastRenderTime float64
	FrameCount     int
	FPS            float64
	FPSTime        float64
}

func NewApp(window *glfw.Window, scene *core.Scene, camera *core.PerspectiveCamera, logger particles.Logger) *App {
	if logger == nil {
		logger = particles.NewNopLogger()
	}
	return &App{
		Window:     window,
		Scene:      scene,
		Camera:     camera,
		Logger:     logger,
		Stats:      NewFrameStats(),
		PointScale: 300,
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)
	a.Camera.SetAspect(width, height)

	a.Points, err = gpu.NewPointsRenderPass(a.Device, a.Config.Format, a.PointScale)
	if err != nil {
		return fmt.Errorf("points pass: %w", err)
	}
	a.Logger.Debugf("surface %dx%d format %v", width, height, a.Config.Format)
	return nil
}

// Engine exposes the points pass as the particle render engine.
func (a *App) Engine() particles.RenderEngine {
	return a.Points
}

func (a *App) Resize(w, h int) {
	if w > 0 && h > 0 {
		a.Config.Width = uint32(w)
		a.Config.Height = uint32(h)
		a.Surface.Configure(a.Adapter, a.Device, a.Config)
		a.Camera.SetAspect(w, h)
	}
}

func (a *App) Update() {
	a.Stats.Begin("update")
	defer a.Stats.End("update")
	viewport := [2]float32{float32(a.Config.Width), float32(a.Config.Height)}
	if err := a.Points.Update(a.Queue, a.Camera.ViewProjection(), viewport); err != nil {
		a.Logger.Errorf("points update: %v", err)
	}
}

func (a *App) clearValue() wgpu.Color {
	c := a.ClearColor
	if a.Scene.Fog != nil {
		c = a.Scene.Fog.Color
	}
	return wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: 1}
}

func (a *App) Render() {
	a.Stats.Begin("render")
	if !a.renderFrame() {
		a.Stats.Abort("render")
		return
	}
	a.Stats.End("render")
	a.frameDone()
}

// renderFrame reports whether a frame was submitted and presented.
func (a *App) renderFrame() bool {
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Logger.Errorf("GetCurrentTexture failed: %v", err)
		return false
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		a.Logger.Errorf("CreateView failed: %v", err)
		return false
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		a.Logger.Errorf("CreateCommandEncoder failed: %v", err)
		return false
	}
	defer encoder.Release()

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: a.clearValue(),
		}},
	})
	a.Points.Draw(rPass, a.Scene.PointClouds())
	if err := rPass.End(); err != nil {
		a.Logger.Errorf("render pass End failed: %v", err)
	}
	rPass.Release()

	cmd, err := encoder.Finish(nil)
	if err != nil {
		a.Logger.Errorf("encoder Finish failed: %v", err)
		return false
	}
	defer cmd.Release()
	a.Queue.Submit(cmd)
	a.Surface.Present()
	return true
}

func (a *App) frameDone() {
	clouds := a.Scene.PointClouds()
	points := 0
	for _, c := range clouds {
		points += c.Count()
	}
	a.Stats.SetCount("clouds", len(clouds))
	a.Stats.SetCount("points", points)
	a.Stats.FrameDone()

	now := glfw.GetTime()
	if a.LastRenderTime > 0 {
		a.FrameCount++
		a.FPSTime += now - a.LastRenderTime
		if a.FPSTime >= 1.0 {
			a.FPS = float64(a.FrameCount) / a.FPSTime
			a.FrameCount = 0
			a.FPSTime = 0
			if a.DebugMode {
				a.Logger.Debugf("fps %.1f %s", a.FPS, a.Stats)
			}
			a.Stats.Reset()
		}
	}
	a.LastRenderTime = now
}

func (a *App) Release() {
	if a.Points != nil {
		a.Points.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}

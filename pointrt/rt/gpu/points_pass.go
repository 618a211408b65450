package gpu

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/particles/pointrt/rt/core"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	ErrDepthTestUnsupported = errors.New("gpu: points pass has no depth attachment")
	ErrMissingTexture       = errors.New("gpu: material has no sprite texture")
)

// PointsUniforms matches the Uniforms struct shared by points_vertex.wgsl
// and points_fragment.wgsl (96 bytes).
type PointsUniforms struct {
	ViewProj   mgl32.Mat4
	Color      [3]float32
	Val        float32
	Viewport   [2]float32
	PointScale float32
	_          float32
}

type pointCloud struct {
	points         *core.Points
	pipeline       *wgpu.RenderPipeline
	bindGroup      *wgpu.BindGroup
	uniformBuffer  *wgpu.Buffer
	instanceBuffer *wgpu.Buffer
	instanceCap    uint32
	instanceCount  uint32
	texture        *wgpu.Texture
	textureView    *wgpu.TextureView
	textureVersion uint
}

// PointsRenderPass draws every registered point cloud as instanced sprites.
type PointsRenderPass struct {
	Device      *wgpu.Device
	Format      wgpu.TextureFormat
	Sampler     *wgpu.Sampler
	DefaultSize float32
	PointScale  float32

	clouds []*pointCloud
}

func NewPointsRenderPass(device *wgpu.Device, format wgpu.TextureFormat, pointScale float32) (*PointsRenderPass, error) {
	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "PointsSpriteSampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, err
	}
	return &PointsRenderPass{
		Device:      device,
		Format:      format,
		Sampler:     sampler,
		DefaultSize: 4,
		PointScale:  pointScale,
	}, nil
}

// BlendStateFor maps a material blending mode onto a colour target blend.
// Sprite texels are premultiplied, so the source factor is One.
func BlendStateFor(b core.Blending) *wgpu.BlendState {
	switch b {
	case core.AdditiveBlending:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
			},
			Alpha: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOne,
			},
		}
	case core.NormalBlending:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			},
			Alpha: wgpu.BlendComponent{
				Operation: wgpu.BlendOperationAdd,
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
			},
		}
	}
	return nil
}

// PackUniforms reads color and val from the material. Missing uniforms
// default to white and 1.
func PackUniforms(m *core.ShaderMaterial, viewProj mgl32.Mat4, viewport [2]float32, pointScale float32) PointsUniforms {
	u := PointsUniforms{
		ViewProj:   viewProj,
		Color:      [3]float32{1, 1, 1},
		Val:        1,
		Viewport:   viewport,
		PointScale: pointScale,
	}
	if c, ok := m.Vec3("color"); ok {
		u.Color = [3]float32{c.X(), c.Y(), c.Z()}
	}
	if v, ok := m.Float("val"); ok {
		u.Val = v
	}
	return u
}

func validateMaterial(m *core.ShaderMaterial) (*core.Texture, error) {
	if m == nil {
		return nil, errors.New("gpu: nil material")
	}
	if m.DepthTest {
		return nil, ErrDepthTestUnsupported
	}
	if m.VertexShader == "" || m.FragmentShader == "" {
		return nil, errors.New("gpu: material has empty shader source")
	}
	tex, ok := m.Texture("texture")
	if !ok || tex.Image == nil {
		return nil, ErrMissingTexture
	}
	return tex, nil
}

// CreatePointCloud builds the GPU resources for one point cloud and returns
// the scene node that refers to them.
func (p *PointsRenderPass) CreatePointCloud(geometry *core.BufferGeometry, material *core.ShaderMaterial) (*core.Points, error) {
	if geometry == nil || geometry.Attribute(core.AttributePosition) == nil {
		return nil, errors.New("gpu: geometry has no position attribute")
	}
	tex, err := validateMaterial(material)
	if err != nil {
		return nil, err
	}

	pipeline, err := p.createPipeline(material)
	if err != nil {
		return nil, fmt.Errorf("gpu: points pipeline: %w", err)
	}

	c := &pointCloud{
		points:   core.NewPoints(geometry, material),
		pipeline: pipeline,
	}
	fail := func(err error) (*core.Points, error) {
		c.release()
		return nil, err
	}
	c.uniformBuffer, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "PointsUniformBuffer",
		Size:  uint64(unsafe.Sizeof(PointsUniforms{})),
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return fail(err)
	}

	w, h := tex.Size()
	c.texture, err = p.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "PointsSprite",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return fail(err)
	}
	c.textureView, err = c.texture.CreateView(nil)
	if err != nil {
		return fail(err)
	}

	bgl := pipeline.GetBindGroupLayout(0)
	c.bindGroup, err = p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "PointsBG",
		Layout: bgl,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: c.uniformBuffer, Size: wgpu.WholeSize},
			{Binding: 1, TextureView: c.textureView},
			{Binding: 2, Sampler: p.Sampler},
		},
	})
	bgl.Release()
	if err != nil {
		return fail(err)
	}

	p.uploadTexture(p.Device.GetQueue(), c, tex)
	if err := p.uploadInstances(p.Device.GetQueue(), c); err != nil {
		return fail(err)
	}

	p.clouds = append(p.clouds, c)
	return c.points, nil
}

// createPipeline releases its intermediate modules and layouts once the
// pipeline holds them.
func (p *PointsRenderPass) createPipeline(m *core.ShaderMaterial) (*wgpu.RenderPipeline, error) {
	vsModule, err := p.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "PointsVS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: m.VertexShader},
	})
	if err != nil {
		return nil, err
	}
	defer vsModule.Release()
	fsModule, err := p.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "PointsFS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: m.FragmentShader},
	})
	if err != nil {
		return nil, err
	}
	defer fsModule.Release()

	bgl, err := p.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "PointsBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: uint64(unsafe.Sizeof(PointsUniforms{})),
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	defer bgl.Release()

	layout, err := p.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, err
	}
	defer layout.Release()

	return p.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "PointsPipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vsModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: uint64(unsafe.Sizeof(core.ParticleInstance{})),
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32, Offset: 12, ShaderLocation: 1},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     fsModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    p.Format,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend:     BlendStateFor(m.Blending),
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: nil,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
}

func (p *PointsRenderPass) uploadTexture(queue *wgpu.Queue, c *pointCloud, tex *core.Texture) {
	w, h := tex.Size()
	queue.WriteTexture(c.texture.AsImageCopy(), tex.Image.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(tex.Image.Stride),
		RowsPerImage: uint32(h),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1})
	tex.NeedsUpdate = false
	c.textureVersion = tex.Version
}

func (p *PointsRenderPass) uploadInstances(queue *wgpu.Queue, c *pointCloud) error {
	instances := c.points.Instances(p.DefaultSize)
	c.instanceCount = uint32(len(instances))
	if pos := c.points.Geometry.Attribute(core.AttributePosition); pos != nil {
		pos.NeedsUpdate = false
	}
	if len(instances) == 0 {
		return nil
	}

	if c.instanceBuffer == nil || c.instanceCap < c.instanceCount {
		if c.instanceBuffer != nil {
			c.instanceBuffer.Release()
		}
		var err error
		c.instanceCap = c.instanceCount
		c.instanceBuffer, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "PointsInstanceBuffer",
			Size:  uint64(c.instanceCap) * uint64(unsafe.Sizeof(core.ParticleInstance{})),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return err
		}
	}

	sizeBytes := uint64(len(instances) * int(unsafe.Sizeof(core.ParticleInstance{})))
	queue.WriteBuffer(c.instanceBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&instances[0])), sizeBytes))
	return nil
}

// Update writes per-frame uniforms and re-uploads sprites or instances that
// were marked dirty since the last frame.
func (p *PointsRenderPass) Update(queue *wgpu.Queue, viewProj mgl32.Mat4, viewport [2]float32) error {
	for _, c := range p.clouds {
		m := c.points.Material
		u := PackUniforms(m, viewProj.Mul4(c.points.Transform.Matrix()), viewport, p.PointScale)
		queue.WriteBuffer(c.uniformBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&u)), unsafe.Sizeof(u)))

		if tex, ok := m.Texture("texture"); ok && (tex.NeedsUpdate || tex.Version != c.textureVersion) {
			p.uploadTexture(queue, c, tex)
		}
		if pos := c.points.Geometry.Attribute(core.AttributePosition); pos != nil && pos.NeedsUpdate {
			if err := p.uploadInstances(queue, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Draw records the clouds present in visible. Clouds removed from the scene
// keep their resources until Release.
func (p *PointsRenderPass) Draw(pass *wgpu.RenderPassEncoder, visible []*core.Points) {
	if len(visible) == 0 {
		return
	}
	ids := make(map[core.AssetId]struct{}, len(visible))
	for _, v := range visible {
		ids[v.Id] = struct{}{}
	}
	for _, c := range p.clouds {
		if _, ok := ids[c.points.Id]; !ok || c.instanceCount == 0 {
			continue
		}
		pass.SetPipeline(c.pipeline)
		pass.SetBindGroup(0, c.bindGroup, nil)
		pass.SetVertexBuffer(0, c.instanceBuffer, 0, c.instanceBuffer.GetSize())
		pass.Draw(6, c.instanceCount, 0, 0)
	}
}

// release frees whatever GPU objects c holds, so it is safe on a
// partially built cloud.
func (c *pointCloud) release() {
	if c.instanceBuffer != nil {
		c.instanceBuffer.Release()
		c.instanceBuffer = nil
	}
	if c.bindGroup != nil {
		c.bindGroup.Release()
		c.bindGroup = nil
	}
	if c.textureView != nil {
		c.textureView.Release()
		c.textureView = nil
	}
	if c.texture != nil {
		c.texture.Release()
		c.texture = nil
	}
	if c.uniformBuffer != nil {
		c.uniformBuffer.Release()
		c.uniformBuffer = nil
	}
	if c.pipeline != nil {
		c.pipeline.Release()
		c.pipeline = nil
	}
	c.instanceCap, c.instanceCount = 0, 0
}

func (p *PointsRenderPass) Release() {
	for _, c := range p.clouds {
		c.release()
	}
	p.clouds = nil
	if p.Sampler != nil {
		p.Sampler.Release()
	}
}

package gpu

import (
	"fmt"

	"github.com/gekko3d/particles/particlert/rt/core"
	"github.com/gekko3d/particles/particlert/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextPass draws alpha-blended glyph quads from a TextRenderer atlas.
type TextPass struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue
	Format wgpu.TextureFormat

	Pipeline     *wgpu.RenderPipeline
	BindLayout   *wgpu.BindGroupLayout
	BindGroup    *wgpu.BindGroup
	Atlas        *wgpu.Texture
	AtlasView    *wgpu.TextureView
	Sampler      *wgpu.Sampler
	VertexBuffer *wgpu.Buffer
	VertexCount  uint32
}

func NewTextPass(device *wgpu.Device, queue *wgpu.Queue, format wgpu.TextureFormat, tr *core.TextRenderer) (*TextPass, error) {
	p := &TextPass{Device: device, Queue: queue}

	w, h := tr.AtlasImage.Bounds().Dx(), tr.AtlasImage.Bounds().Dy()
	var err error
	p.Atlas, err = device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "TextAtlas",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create text atlas: %w", err)
	}
	err = queue.WriteTexture(p.Atlas.AsImageCopy(), tr.AtlasImage.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(tr.AtlasImage.Stride),
		RowsPerImage: uint32(h),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("failed to upload text atlas: %w", err)
	}

	p.AtlasView, err = p.Atlas.CreateView(nil)
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("failed to create atlas view: %w", err)
	}
	p.Sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeNearest,
		MagFilter:     wgpu.FilterModeNearest,
		MaxAnisotropy: 1,
	})
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("failed to create text sampler: %w", err)
	}

	if err := p.Rebuild(format); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// Rebuild recreates the pipeline and bind group for a new target format.
func (p *TextPass) Rebuild(format wgpu.TextureFormat) error {
	module, err := p.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "TextShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.TextWGSL},
	})
	if err != nil {
		return fmt.Errorf("%w: text shader: %v", ErrShaderCompile, err)
	}
	defer module.Release()

	pipeline, err := p.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "TextPipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: shaders.VertexEntryPoint,
			Buffers: []wgpu.VertexBufferLayout{
				VertexBufferLayoutOf(core.TextVertex{}, wgpu.VertexStepModeVertex),
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: shaders.FragmentEntryPoint,
			Targets: []wgpu.ColorTargetState{{
				Format: format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
			CullMode: wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: text pipeline: %v", ErrShaderCompile, err)
	}

	bindLayout := pipeline.GetBindGroupLayout(0)
	bindGroup, err := p.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "TextBG",
		Layout: bindLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: p.AtlasView},
			{Binding: 1, Sampler: p.Sampler},
		},
	})
	if err != nil {
		bindLayout.Release()
		pipeline.Release()
		return fmt.Errorf("failed to create text bind group: %w", err)
	}

	p.releasePipeline()
	p.Pipeline = pipeline
	p.BindLayout = bindLayout
	p.BindGroup = bindGroup
	p.Format = format
	return nil
}

// Update uploads overlay geometry, growing the vertex buffer when needed.
func (p *TextPass) Update(vertices []core.TextVertex) error {
	p.VertexCount = uint32(len(vertices))
	if len(vertices) == 0 {
		return nil
	}

	data := sliceBytes(vertices)
	size := uint64(len(data))
	if p.VertexBuffer == nil || p.VertexBuffer.GetSize() < size {
		if p.VertexBuffer != nil {
			p.VertexBuffer.Release()
		}
		var err error
		p.VertexBuffer, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "TextVB",
			Size:  size * 2,
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			p.VertexCount = 0
			return fmt.Errorf("failed to create text vertex buffer: %w", err)
		}
	}
	return p.Queue.WriteBuffer(p.VertexBuffer, 0, data)
}

func (p *TextPass) Draw(pass *wgpu.RenderPassEncoder) {
	if p.VertexCount == 0 || p.VertexBuffer == nil || p.Pipeline == nil {
		return
	}
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.BindGroup, nil)
	pass.SetVertexBuffer(0, p.VertexBuffer, 0, p.VertexBuffer.GetSize())
	pass.Draw(p.VertexCount, 1, 0, 0)
}

// releasePipeline drops the format-dependent objects built by Rebuild.
func (p *TextPass) releasePipeline() {
	if p.BindGroup != nil {
		p.BindGroup.Release()
		p.BindGroup = nil
	}
	if p.BindLayout != nil {
		p.BindLayout.Release()
		p.BindLayout = nil
	}
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
}

func (p *TextPass) Release() {
	p.releasePipeline()
	if p.VertexBuffer != nil {
		p.VertexBuffer.Release()
		p.VertexBuffer = nil
	}
	if p.Sampler != nil {
		p.Sampler.Release()
		p.Sampler = nil
	}
	if p.AtlasView != nil {
		p.AtlasView.Release()
		p.AtlasView = nil
	}
	if p.Atlas != nil {
		p.Atlas.Release()
		p.Atlas = nil
	}
}

package gpu

import (
	"errors"
	"fmt"

	"github.com/gekko3d/particles/particlert/rt/core"
	"github.com/gekko3d/particles/particlert/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

var ErrShaderCompile = errors.New("shader compilation failed")

var replaceBlend = wgpu.BlendComponent{
	Operation: wgpu.BlendOperationAdd,
	SrcFactor: wgpu.BlendFactorOne,
	DstFactor: wgpu.BlendFactorZero,
}

// Pipeline is a compiled particle pipeline. It is only valid for the surface format it was built for.
type Pipeline struct {
	Render       *wgpu.RenderPipeline
	ParamsLayout *wgpu.BindGroupLayout
	Format       wgpu.TextureFormat

	layout *wgpu.PipelineLayout
}

func (p *Pipeline) ValidFor(cfg SurfaceConfig) bool {
	return p != nil && p.Render != nil && p.Format == cfg.Format
}

func (p *Pipeline) Release() {
	if p == nil {
		return
	}
	if p.Render != nil {
		p.Render.Release()
	}
	if p.layout != nil {
		p.layout.Release()
	}
	if p.ParamsLayout != nil {
		p.ParamsLayout.Release()
	}
}

type PipelineBuilder struct {
	Device *wgpu.Device
	Source string
	Label  string
}

func NewPipelineBuilder(device *wgpu.Device) *PipelineBuilder {
	return &PipelineBuilder{
		Device: device,
		Source: shaders.ParticlesWGSL,
		Label:  "ParticlePipeline",
	}
}

// Build compiles the shader and fixed-function state for format. Any failure wraps ErrShaderCompile.
func (b *PipelineBuilder) Build(format wgpu.TextureFormat) (*Pipeline, error) {
	if b.Source == "" {
		return nil, fmt.Errorf("%w: empty shader source", ErrShaderCompile)
	}

	module, err := b.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          b.Label + "Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: b.Source},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShaderCompile, err)
	}
	defer module.Release()

	paramsLayout, err := b.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: b.Label + "ParamsBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: ScreenParamsSize,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: bind group layout: %v", ErrShaderCompile, err)
	}

	layout, err := b.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            b.Label + "Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{paramsLayout},
	})
	if err != nil {
		paramsLayout.Release()
		return nil, fmt.Errorf("%w: pipeline layout: %v", ErrShaderCompile, err)
	}

	desc := particlePipelineDescriptor(module, layout, format)
	desc.Label = b.Label
	render, err := b.Device.CreateRenderPipeline(desc)
	if err != nil {
		layout.Release()
		paramsLayout.Release()
		return nil, fmt.Errorf("%w: %v", ErrShaderCompile, err)
	}

	return &Pipeline{
		Render:       render,
		ParamsLayout: paramsLayout,
		Format:       format,
		layout:       layout,
	}, nil
}

func particlePipelineDescriptor(module *wgpu.ShaderModule, layout *wgpu.PipelineLayout, format wgpu.TextureFormat) *wgpu.RenderPipelineDescriptor {
	return &wgpu.RenderPipelineDescriptor{
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: shaders.VertexEntryPoint,
			Buffers: []wgpu.VertexBufferLayout{
				VertexBufferLayoutOf(core.Vertex{}, wgpu.VertexStepModeVertex),
				VertexBufferLayoutOf(core.ParticleInstance{}, wgpu.VertexStepModeInstance),
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: shaders.FragmentEntryPoint,
			Targets: []wgpu.ColorTargetState{
				{
					Format: format,
					Blend: &wgpu.BlendState{
						Color: replaceBlend,
						Alpha: replaceBlend,
					},
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: nil,
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	}
}

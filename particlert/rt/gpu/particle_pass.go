package gpu

import (
	"errors"
	"fmt"

	"github.com/gekko3d/particles/particlert/rt/core"

	"github.com/cogentcore/webgpu/wgpu"
)

var ErrInstanceCount = errors.New("instance count does not match buffer capacity")

type ParticleRendererOptions struct {
	ParticleCount int
	ParticleSize  float32
	ClearColor    [4]float64
}

// ParticleRenderer owns the GPU resources for the instanced particle draw.
// The instance buffer is sized once for ParticleCount and every frame overwrites it whole.
type ParticleRenderer struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue

	Builder  *PipelineBuilder
	Pipeline *Pipeline

	VertexBuffer    *wgpu.Buffer
	InstanceBuffer  *wgpu.Buffer
	ParamsBuffer    *wgpu.Buffer
	ParamsBindGroup *wgpu.BindGroup

	InstanceCount uint32
	ParticleSize  float32
	ClearColor    wgpu.Color

	// Text is an optional overlay drawn in the same pass, after the particles.
	Text *TextPass

	LastUploadBytes uint64

	config SurfaceConfig
}

func NewParticleRenderer(device *wgpu.Device, queue *wgpu.Queue, cfg SurfaceConfig, opts ParticleRendererOptions) (*ParticleRenderer, error) {
	if opts.ParticleCount < 0 {
		return nil, fmt.Errorf("%w: %d particles", ErrInstanceCount, opts.ParticleCount)
	}
	r := &ParticleRenderer{
		Device:        device,
		Queue:         queue,
		Builder:       NewPipelineBuilder(device),
		InstanceCount: uint32(opts.ParticleCount),
		ParticleSize:  opts.ParticleSize,
		ClearColor: wgpu.Color{
			R: opts.ClearColor[0],
			G: opts.ClearColor[1],
			B: opts.ClearColor[2],
			A: opts.ClearColor[3],
		},
		config: cfg,
	}

	var err error
	quad := core.QuadVertices()
	r.VertexBuffer, err = device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    "ParticleQuadVB",
		Contents: wgpu.ToBytes(quad[:]),
		Usage:    wgpu.BufferUsageVertex,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create quad buffer: %w", err)
	}

	if r.InstanceCount > 0 {
		r.InstanceBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "ParticleInstanceVB",
			Size:  InstanceBufferSize(opts.ParticleCount),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			r.Release()
			return nil, fmt.Errorf("failed to create instance buffer: %w", err)
		}
	}

	r.ParamsBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ParticleParamsUB",
		Size:  ScreenParamsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		r.Release()
		return nil, fmt.Errorf("failed to create params buffer: %w", err)
	}

	if err := r.rebuildPipeline(); err != nil {
		r.Release()
		return nil, err
	}
	if err := r.writeParams(); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

// InstanceBufferSize is the exact byte capacity for count instances.
func InstanceBufferSize(count int) uint64 {
	return uint64(count) * core.InstanceStride
}

func (r *ParticleRenderer) rebuildPipeline() error {
	pipeline, err := r.Builder.Build(r.config.Format)
	if err != nil {
		return err
	}
	bindGroup, err := r.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "ParticleParamsBG",
		Layout: pipeline.ParamsLayout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  r.ParamsBuffer,
				Size:    ScreenParamsSize,
			},
		},
	})
	if err != nil {
		pipeline.Release()
		return fmt.Errorf("failed to create params bind group: %w", err)
	}

	if r.ParamsBindGroup != nil {
		r.ParamsBindGroup.Release()
	}
	r.Pipeline.Release()
	r.Pipeline = pipeline
	r.ParamsBindGroup = bindGroup
	return nil
}

func (r *ParticleRenderer) screenParams() ScreenParams {
	return ScreenParams{
		ParticleSize: r.ParticleSize,
		ScreenWidth:  float32(r.config.Width),
		ScreenHeight: float32(r.config.Height),
	}
}

func (r *ParticleRenderer) writeParams() error {
	if err := r.Queue.WriteBuffer(r.ParamsBuffer, 0, r.screenParams().Pack()); err != nil {
		return fmt.Errorf("failed to write screen params: %w", err)
	}
	return nil
}

// Reconfigure adopts a new surface configuration. The pipeline is rebuilt only when the
// format changed; dimensions only touch the uniform.
func (r *ParticleRenderer) Reconfigure(cfg SurfaceConfig) error {
	r.config = cfg
	if !r.Pipeline.ValidFor(cfg) {
		if err := r.rebuildPipeline(); err != nil {
			return err
		}
	}
	if r.Text != nil && r.Text.Format != cfg.Format {
		if err := r.Text.Rebuild(cfg.Format); err != nil {
			return err
		}
	}
	return r.writeParams()
}

// Upload overwrites the instance buffer. The slice length must equal the particle count.
func (r *ParticleRenderer) Upload(instances []core.ParticleInstance) error {
	if len(instances) != int(r.InstanceCount) {
		return fmt.Errorf("%w: got %d, buffer holds %d", ErrInstanceCount, len(instances), r.InstanceCount)
	}
	if r.InstanceCount == 0 {
		r.LastUploadBytes = 0
		return nil
	}

	data := sliceBytes(instances)
	if err := r.Queue.WriteBuffer(r.InstanceBuffer, 0, data); err != nil {
		return fmt.Errorf("failed to upload instances: %w", err)
	}
	r.LastUploadBytes = uint64(len(data))
	return nil
}

// SetOverlay replaces the text overlay geometry. It is a no-op without a text pass.
func (r *ParticleRenderer) SetOverlay(vertices []core.TextVertex) error {
	if r.Text == nil {
		return nil
	}
	return r.Text.Update(vertices)
}

// Draw records the frame into frame's view and submits it. Presentation is left to the caller.
func (r *ParticleRenderer) Draw(frame *Frame) error {
	encoder, err := r.Device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{
		Label: "ParticleEncoder",
	})
	if err != nil {
		return fmt.Errorf("failed to create command encoder: %w", err)
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: "ParticlePass",
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       frame.View,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: r.ClearColor,
		}},
	})

	if r.InstanceCount > 0 {
		pass.SetPipeline(r.Pipeline.Render)
		pass.SetBindGroup(0, r.ParamsBindGroup, nil)
		pass.SetVertexBuffer(0, r.VertexBuffer, 0, r.VertexBuffer.GetSize())
		pass.SetVertexBuffer(1, r.InstanceBuffer, 0, r.InstanceBuffer.GetSize())
		pass.Draw(core.QuadVertexCount, r.InstanceCount, 0, 0)
	}
	if r.Text != nil {
		r.Text.Draw(pass)
	}

	if err := pass.End(); err != nil {
		return fmt.Errorf("particle pass end failed: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encoder finish failed: %w", err)
	}
	defer cmd.Release()

	r.Queue.Submit(cmd)
	return nil
}

func (r *ParticleRenderer) Release() {
	if r.Text != nil {
		r.Text.Release()
		r.Text = nil
	}
	if r.ParamsBindGroup != nil {
		r.ParamsBindGroup.Release()
		r.ParamsBindGroup = nil
	}
	r.Pipeline.Release()
	r.Pipeline = nil
	for _, buf := range []**wgpu.Buffer{&r.VertexBuffer, &r.InstanceBuffer, &r.ParamsBuffer} {
		if *buf != nil {
			(*buf).Release()
			*buf = nil
		}
	}
}

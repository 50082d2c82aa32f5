package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// VertexStride and InstanceStride are the byte sizes the vertex layouts are built against.
	VertexStride   = 8
	InstanceStride = 24
)

// Vertex is one corner of the shared particle quad.
type Vertex struct {
	Position [2]float32 `gpu:"layout" format:"float2" location:"0"`
}

// ParticleInstance matches InstanceInput in particles.wgsl
// struct InstanceInput { @location(1) position: vec2<f32>, @location(2) color: vec4<f32> }
type ParticleInstance struct {
	Position [2]float32 `gpu:"layout" format:"float2" location:"1"`
	Color    [4]float32 `gpu:"layout" format:"float4" location:"2"`
}

type Particle struct {
	Position mgl32.Vec2
	Velocity mgl32.Vec2
	Color    [4]float32
}

func (p *Particle) Instance() ParticleInstance {
	return ParticleInstance{
		Position: [2]float32{p.Position.X(), p.Position.Y()},
		Color:    p.Color,
	}
}

// Step advances one particle by dt and resolves collisions with the [0,width]x[0,height] box.
// Y grows downward, so the bottom edge is y == height.
func (p *Particle) Step(dt, width, height float32, params *SimParams) {
	p.Velocity = p.Velocity.Add(params.Gravity.Mul(dt))
	p.Position = p.Position.Add(p.Velocity.Mul(dt))

	r := params.Radius()
	d := params.Damping

	// Bottom
	if p.Position[1]+r > height {
		p.Position[1] = height - r
		p.Velocity[1] = -p.Velocity[1] * d
	}
	// Top
	if p.Position[1]-r < 0 {
		p.Position[1] = r
		p.Velocity[1] = -p.Velocity[1] * d
	}
	// Right
	if p.Position[0]+r > width {
		p.Position[0] = width - r
		p.Velocity[0] = -p.Velocity[0] * d
	}
	// Left
	if p.Position[0]-r < 0 {
		p.Position[0] = r
		p.Velocity[0] = -p.Velocity[0] * d
	}
}

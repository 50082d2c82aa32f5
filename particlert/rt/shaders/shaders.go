package shaders

import (
	_ "embed"
)

// ParticlesWGSL draws one screen-space quad per instance. Screen and particle
// size come from the ScreenParams uniform at group 0, binding 0.
//
//go:embed particles.wgsl
var ParticlesWGSL string

//go:embed text.wgsl
var TextWGSL string

const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

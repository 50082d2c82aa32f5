package gpu

import (
	"encoding/binary"
	"math"
)

// ScreenParamsSize is the uniform size, padded to 16 bytes.
const ScreenParamsSize = 16

// ScreenParams is the uniform the particle shader reads instead of baked constants.
//
//	struct ScreenParams {
//	  particle_size: f32;  -- 0
//	  screen_width: f32;   -- 4
//	  screen_height: f32;  -- 8
//	  _pad: f32;           -- 12
//	}
type ScreenParams struct {
	ParticleSize float32
	ScreenWidth  float32
	ScreenHeight float32
}

func (p ScreenParams) Pack() []byte {
	buf := make([]byte, ScreenParamsSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(p.ParticleSize))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(p.ScreenWidth))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.ScreenHeight))
	return buf
}

package core

const QuadVertexCount = 6

// QuadVertices returns the unit quad centered at the origin as two triangles.
// Both are counter-clockwise with +Y up, which is what the shader emits.
func QuadVertices() [QuadVertexCount]Vertex {
	return [QuadVertexCount]Vertex{
		{Position: [2]float32{-0.5, -0.5}},
		{Position: [2]float32{0.5, -0.5}},
		{Position: [2]float32{0.5, 0.5}},
		{Position: [2]float32{-0.5, 0.5}},
		{Position: [2]float32{-0.5, -0.5}},
		{Position: [2]float32{0.5, 0.5}},
	}
}

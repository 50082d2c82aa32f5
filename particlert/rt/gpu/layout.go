package gpu

import (
	"reflect"
	"strconv"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
)

func parseFormat(name string) wgpu.VertexFormat {
	switch name {
	case "float2":
		return wgpu.VertexFormatFloat32x2
	case "float3":
		return wgpu.VertexFormatFloat32x3
	case "float4":
		return wgpu.VertexFormatFloat32x4
	default:
		panic("unsupported vertex layout format: " + name)
	}
}

// VertexBufferLayoutOf derives a buffer layout from the struct tags of v.
// Fields tagged `gpu:"layout"` become attributes; untagged fields still advance the offset.
func VertexBufferLayoutOf(v any, step wgpu.VertexStepMode) wgpu.VertexBufferLayout {
	t := reflect.TypeOf(v)
	if t.Kind() != reflect.Struct {
		panic("vertex type must be a struct, got " + t.Kind().String())
	}

	var attributes []wgpu.VertexAttribute
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("gpu") != "layout" {
			continue
		}

		location, err := strconv.Atoi(field.Tag.Get("location"))
		if err != nil {
			panic(err)
		}
		attributes = append(attributes, wgpu.VertexAttribute{
			Format:         parseFormat(field.Tag.Get("format")),
			Offset:         uint64(field.Offset),
			ShaderLocation: uint32(location),
		})
	}

	return wgpu.VertexBufferLayout{
		ArrayStride: uint64(t.Size()),
		StepMode:    step,
		Attributes:  attributes,
	}
}

// sliceBytes views a slice of plain structs as raw bytes without copying.
func sliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(zero)))
}

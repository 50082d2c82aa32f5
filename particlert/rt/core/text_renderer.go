package core

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextVertex matches VertexInput in text.wgsl.
type TextVertex struct {
	Pos   [2]float32 `gpu:"layout" format:"float2" location:"0"`
	UV    [2]float32 `gpu:"layout" format:"float2" location:"1"`
	Color [4]float32 `gpu:"layout" format:"float4" location:"2"`
}

type TextItem struct {
	Text     string
	Position [2]float32 // pixels, (0,0) is the top-left corner
	Scale    float32
	Color    [4]float32
}

type GlyphInfo struct {
	UVMin [2]float32
	UVMax [2]float32
	Size  [2]float32
	Off   [2]float32
	Adv   float32
}

// TextRenderer bakes the printable ASCII range of a face into a single-channel atlas.
type TextRenderer struct {
	AtlasImage *image.Alpha
	Glyphs     map[rune]GlyphInfo
	Face       font.Face
}

const atlasSize = 256

// NewDefaultTextRenderer uses the built-in 7x13 bitmap face, no font file required.
func NewDefaultTextRenderer() *TextRenderer {
	return NewTextRenderer(basicfont.Face7x13)
}

func NewTextRendererFromFile(fontPath string, fontSize float64) (*TextRenderer, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}

	f, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	return NewTextRenderer(face), nil
}

func NewTextRenderer(face font.Face) *TextRenderer {
	atlas := image.NewAlpha(image.Rect(0, 0, atlasSize, atlasSize))
	glyphs := make(map[rune]GlyphInfo)

	x, y := 1, 1
	rowHeight := 0

	for r := rune(32); r < 127; r++ {
		dr, mask, maskp, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}

		w, h := dr.Dx(), dr.Dy()
		if x+w >= atlasSize {
			x = 1
			y += rowHeight + 2
			rowHeight = 0
		}
		if y+h >= atlasSize {
			break
		}

		if w > 0 && h > 0 {
			draw.Draw(atlas, image.Rect(x, y, x+w, y+h), mask, maskp, draw.Src)
		}

		glyphs[r] = GlyphInfo{
			UVMin: [2]float32{float32(x) / atlasSize, float32(y) / atlasSize},
			UVMax: [2]float32{float32(x+w) / atlasSize, float32(y+h) / atlasSize},
			Size:  [2]float32{float32(w), float32(h)},
			Off:   [2]float32{float32(dr.Min.X), float32(dr.Min.Y)},
			Adv:   float32(adv) / 64.0,
		}

		x += w + 2
		if h > rowHeight {
			rowHeight = h
		}
	}

	return &TextRenderer{
		AtlasImage: atlas,
		Glyphs:     glyphs,
		Face:       face,
	}
}

// pixelToClip maps a top-left-origin pixel position to clip space.
type pixelToClip struct{ w, h float32 }

func (c pixelToClip) at(x, y float32) [2]float32 {
	return [2]float32{x/c.w*2 - 1, 1 - y/c.h*2}
}

// appendGlyph emits the two triangles of glyph g with its pen at (penX, baseline).
func appendGlyph(dst []TextVertex, c pixelToClip, g GlyphInfo, penX, baseline, scale float32, color [4]float32) []TextVertex {
	left := penX + g.Off[0]*scale
	top := baseline + g.Off[1]*scale
	tl := c.at(left, top)
	br := c.at(left+g.Size[0]*scale, top+g.Size[1]*scale)

	v := func(pos [2]float32, u, w float32) TextVertex {
		return TextVertex{Pos: pos, UV: [2]float32{u, w}, Color: color}
	}
	bl := [2]float32{tl[0], br[1]}
	tr := [2]float32{br[0], tl[1]}
	return append(dst,
		v(tl, g.UVMin[0], g.UVMin[1]), v(bl, g.UVMin[0], g.UVMax[1]), v(tr, g.UVMax[0], g.UVMin[1]),
		v(tr, g.UVMax[0], g.UVMin[1]), v(bl, g.UVMin[0], g.UVMax[1]), v(br, g.UVMax[0], g.UVMax[1]),
	)
}

// BuildVertices lays out items as clip-space triangles, six vertices per visible glyph.
// Runes missing from the atlas are dropped; blank glyphs only advance the pen.
func (tr *TextRenderer) BuildVertices(items []TextItem, screenW, screenH int) []TextVertex {
	if screenW <= 0 || screenH <= 0 {
		return nil
	}
	clip := pixelToClip{w: float32(screenW), h: float32(screenH)}
	metrics := tr.Face.Metrics()
	ascent := float32(metrics.Ascent.Ceil())
	lineHeight := float32(metrics.Height.Ceil())

	var vertices []TextVertex
	for _, item := range items {
		penX := item.Position[0]
		baseline := item.Position[1] + ascent*item.Scale
		for _, r := range item.Text {
			if r == '\n' {
				penX = item.Position[0]
				baseline += lineHeight * item.Scale
				continue
			}
			g, ok := tr.Glyphs[r]
			if !ok {
				continue
			}
			if g.Size[0] > 0 && g.Size[1] > 0 {
				vertices = appendGlyph(vertices, clip, g, penX, baseline, item.Scale, item.Color)
			}
			penX += g.Adv * item.Scale
		}
	}
	return vertices
}

// MeasureText returns the pixel extent of text: the widest line and the total line height.
func (tr *TextRenderer) MeasureText(text string, scale float32) (float32, float32) {
	if tr == nil {
		return 0, 0
	}
	lineHeight := float32(tr.Face.Metrics().Height.Ceil()) * scale

	var width, line float32
	lines := 1
	for _, r := range text {
		if r == '\n' {
			width = max(width, line)
			line = 0
			lines++
			continue
		}
		if g, ok := tr.Glyphs[r]; ok {
			line += g.Adv * scale
		}
	}
	return max(width, line), lineHeight * float32(lines)
}

// Package quad holds the geometry and shaders of a textured, vertex-colored
// quad: the smallest scene that exercises every stage of a draw.
package quad

import "github.com/gogpu/gputypes"

// Vertex is one quad corner. The layout matches Attributes.
type Vertex struct {
	Pos   [3]float32
	Color [4]float32
	UV    [2]float32
}

// Stride is the size of Vertex in bytes.
const Stride = 4 * (3 + 4 + 2)

// Attribute is one vertex shader input of the quad.
type Attribute struct {
	Location uint32
	Format   gputypes.VertexFormat
	Offset   uint32
}

// Attributes describes Vertex for the vertex shader.
var Attributes = []Attribute{
	{Location: 0, Format: gputypes.VertexFormatFloat32x3, Offset: 0},
	{Location: 1, Format: gputypes.VertexFormatFloat32x4, Offset: 12},
	{Location: 2, Format: gputypes.VertexFormatFloat32x2, Offset: 28},
}

// Vertices returns a quad covering half of clip space, one color per corner.
func Vertices() []Vertex {
	return []Vertex{
		{Pos: [3]float32{-0.5, -0.5, 0}, Color: [4]float32{1, 0, 0, 1}, UV: [2]float32{0, 1}},
		{Pos: [3]float32{0.5, -0.5, 0}, Color: [4]float32{0, 1, 0, 1}, UV: [2]float32{1, 1}},
		{Pos: [3]float32{0.5, 0.5, 0}, Color: [4]float32{0, 0, 1, 1}, UV: [2]float32{1, 0}},
		{Pos: [3]float32{-0.5, 0.5, 0}, Color: [4]float32{1, 1, 1, 1}, UV: [2]float32{0, 0}},
	}
}

// Indices returns the two counter-clockwise triangles of the quad.
func Indices() []uint32 {
	return []uint32{0, 1, 2, 2, 3, 0}
}

// VertexWGSL passes position through and forwards color and UV.
const VertexWGSL = `
struct VertexOutput {
  @location(0) color : vec4<f32>,
  @location(1) uv : vec2<f32>,
  @builtin(position) position : vec4<f32>,
}

@vertex
fn main(
  @location(0) pos : vec3<f32>,
  @location(1) color : vec4<f32>,
  @location(2) uv : vec2<f32>,
) -> VertexOutput {
  return VertexOutput(color, uv, vec4<f32>(pos, 1.0));
}
`

// FragmentWGSL modulates the bound texture with the vertex color. The
// texture sits in bind group 1, the fragment group.
const FragmentWGSL = `
@group(1) @binding(0) var u_texture : texture_2d<f32>;
@group(1) @binding(1) var u_sampler : sampler;

@fragment
fn main(@location(0) color : vec4<f32>, @location(1) uv : vec2<f32>) -> @location(0) vec4<f32> {
  return textureSample(u_texture, u_sampler, uv) * color;
}
`

// Checker returns an RGBA8 checkerboard of size x size pixels with cells
// of cell pixels.
func Checker(size, cell int) []byte {
	if cell <= 0 {
		cell = 1
	}
	px := make([]byte, size*size*4)
	for y := range size {
		for x := range size {
			v := byte(0x40)
			if (x/cell+y/cell)%2 == 0 {
				v = 0xff
			}
			i := (y*size + x) * 4
			px[i], px[i+1], px[i+2], px[i+3] = v, v, v, 0xff
		}
	}
	return px
}

package math3d

import (
	"image/color"
	"math"
)

// ColorRGB is a linear-ish RGB color with components that may exceed 1
// before MaxToOne normalizes them. Shading math stays in this space;
// packing to 8-bit happens only at the very end of the pixel shader.
type ColorRGB struct {
	R, G, B float64
}

// White is the default vertex color.
func White() ColorRGB { return ColorRGB{1, 1, 1} }

// RGB creates a ColorRGB from float components.
func RGB(r, g, b float64) ColorRGB {
	return ColorRGB{r, g, b}
}

// RGBFromBytes maps 0-255 channel bytes to the c/255 float space.
func RGBFromBytes(r, g, b uint8) ColorRGB {
	return ColorRGB{float64(r) / 255, float64(g) / 255, float64(b) / 255}
}

// Add returns the component sum a + b.
func (a ColorRGB) Add(b ColorRGB) ColorRGB {
	return ColorRGB{a.R + b.R, a.G + b.G, a.B + b.B}
}

// Mul returns the component-wise product a * b.
func (a ColorRGB) Mul(b ColorRGB) ColorRGB {
	return ColorRGB{a.R * b.R, a.G * b.G, a.B * b.B}
}

// Scale returns the scalar product a * s.
func (a ColorRGB) Scale(s float64) ColorRGB {
	return ColorRGB{a.R * s, a.G * s, a.B * s}
}

// Lerp returns the linear interpolation between a and b by t.
func (a ColorRGB) Lerp(b ColorRGB, t float64) ColorRGB {
	return ColorRGB{
		a.R + (b.R-a.R)*t,
		a.G + (b.G-a.G)*t,
		a.B + (b.B-a.B)*t,
	}
}

// MaxToOne divides all components by the largest one if it exceeds 1,
// preserving hue while bringing the color back into displayable range.
func (a ColorRGB) MaxToOne() ColorRGB {
	m := math.Max(a.R, math.Max(a.G, a.B))
	if m <= 1 {
		return a
	}
	return a.Scale(1 / m)
}

// Clamp01 clamps each component independently to [0,1].
func (a ColorRGB) Clamp01() ColorRGB {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	return ColorRGB{clamp(a.R), clamp(a.G), clamp(a.B)}
}

// Pack converts to an 8-bit opaque color.RGBA, the last step of the pixel
// shader after MaxToOne.
func (a ColorRGB) Pack() color.RGBA {
	c := a.Clamp01()
	return color.RGBA{
		R: uint8(c.R * 255),
		G: uint8(c.G * 255),
		B: uint8(c.B * 255),
		A: 255,
	}
}

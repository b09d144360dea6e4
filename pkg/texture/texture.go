// Package texture wraps a decoded 2D RGBA image and samples a color
// given a (u,v) in [0,1].
package texture

import (
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"math"
	"os"

	"github.com/anthonynsimon/bild/clone"

	"github.com/prism3d/prism/pkg/math3d"
)

// WrapMode determines how texture coordinates outside [0,1] are handled.
// Sample always uses nearest-neighbor addressing; SampleFiltered opts
// into wrap/filter behavior explicitly.
type WrapMode int

const (
	WrapRepeat WrapMode = iota
	WrapClamp
)

// FilterMode selects nearest-neighbor or bilinear sampling.
type FilterMode int

const (
	FilterNearest FilterMode = iota
	FilterBilinear
)

// Texture holds a decoded RGBA image ready for sampling.
type Texture struct {
	Width  int
	Height int
	Pixels []math3d.ColorRGB // row-major, row 0 = image top

	WrapU, WrapV WrapMode
	Filter       FilterMode
}

// New creates an empty texture of the given dimensions.
func New(width, height int) *Texture {
	return &Texture{
		Width:  width,
		Height: height,
		Pixels: make([]math3d.ColorRGB, width*height),
		WrapU:  WrapRepeat,
		WrapV:  WrapRepeat,
		Filter: FilterNearest,
	}
}

// Load reads an image file from disk and decodes it into a Texture.
// PNG and JPEG are registered decoders; anthonynsimon/bild/clone
// normalizes whatever concrete image.Image the decoder returns into a
// plain *image.RGBA so the pixel loop below never has to type-switch.
func Load(path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("texture: open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("texture: decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage builds a Texture from an already-decoded image.Image.
func FromImage(img image.Image) *Texture {
	rgba := clone.AsRGBA(img)
	bounds := rgba.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	tex := New(width, height)
	for y := range height {
		for x := range width {
			c := rgba.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			tex.Pixels[y*width+x] = math3d.RGBFromBytes(c.R, c.G, c.B)
		}
	}
	return tex
}

// At returns the pixel at (x,y), clamped to the texture bounds.
func (t *Texture) At(x, y int) math3d.ColorRGB {
	if x < 0 {
		x = 0
	} else if x >= t.Width {
		x = t.Width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= t.Height {
		y = t.Height - 1
	}
	return t.Pixels[y*t.Width+x]
}

// Sample returns the nearest-neighbor color at uv: x = floor(uv.x*width),
// y = floor(uv.y*height), no wrap, no flip. Callers must supply uv from
// perspective-correct interpolation of in-range source uvs; out-of-range
// addressing is a precondition violation and is clamped here for
// robustness rather than left to panic.
func (t *Texture) Sample(uv math3d.Vec2) math3d.ColorRGB {
	x := int(math.Floor(uv.X * float64(t.Width)))
	y := int(math.Floor(uv.Y * float64(t.Height)))
	return t.At(x, y)
}

// SampleFiltered samples with this texture's configured WrapU/WrapV and
// Filter, a supplement over the nearest-neighbor Sample. V is flipped
// here (image row 0 is the top, uv.v=0 is conventionally the bottom)
// since wrap-aware sampling is meant for artist-authored texture
// coordinates rather than the raw Sample formula.
func (t *Texture) SampleFiltered(uv math3d.Vec2) math3d.ColorRGB {
	u := t.wrap(uv.X, t.WrapU)
	v := t.wrap(1-uv.Y, t.WrapV)

	if t.Filter == FilterBilinear {
		return t.sampleBilinear(u, v)
	}
	x := int(u * float64(t.Width))
	y := int(v * float64(t.Height))
	return t.At(x, y)
}

func (t *Texture) wrap(coord float64, mode WrapMode) float64 {
	switch mode {
	case WrapRepeat:
		return coord - math.Floor(coord)
	case WrapClamp:
		return math.Max(0, math.Min(1, coord))
	}
	return coord
}

func (t *Texture) sampleBilinear(u, v float64) math3d.ColorRGB {
	fx := u*float64(t.Width) - 0.5
	fy := v*float64(t.Height) - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	c00 := t.At(t.wrapPixel(x0, t.Width, t.WrapU), t.wrapPixel(y0, t.Height, t.WrapV))
	c10 := t.At(t.wrapPixel(x0+1, t.Width, t.WrapU), t.wrapPixel(y0, t.Height, t.WrapV))
	c01 := t.At(t.wrapPixel(x0, t.Width, t.WrapU), t.wrapPixel(y0+1, t.Height, t.WrapV))
	c11 := t.At(t.wrapPixel(x0+1, t.Width, t.WrapU), t.wrapPixel(y0+1, t.Height, t.WrapV))

	top := c00.Lerp(c10, tx)
	bot := c01.Lerp(c11, tx)
	return top.Lerp(bot, ty)
}

func (t *Texture) wrapPixel(x, size int, mode WrapMode) int {
	switch mode {
	case WrapRepeat:
		x %= size
		if x < 0 {
			x += size
		}
	case WrapClamp:
		if x < 0 {
			x = 0
		} else if x >= size {
			x = size - 1
		}
	}
	return x
}

// Checker creates a procedural checkerboard texture, useful for testing
// perspective-correct uv interpolation without loading a file from disk.
func Checker(width, height, checkSize int, c1, c2 math3d.ColorRGB) *Texture {
	tex := New(width, height)
	for y := range height {
		for x := range width {
			if (x/checkSize+y/checkSize)%2 == 0 {
				tex.Pixels[y*width+x] = c1
			} else {
				tex.Pixels[y*width+x] = c2
			}
		}
	}
	return tex
}

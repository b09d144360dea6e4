// Package vertex implements the vertex processor: it applies
// world*view*projection to each input vertex, produces clip-space w,
// performs the perspective divide, and transforms normals/tangents by
// the world matrix only.
package vertex

import (
	"github.com/prism3d/prism/pkg/math3d"
)

// In is a mesh's input vertex, carried through unmodified across frames.
type In struct {
	Position math3d.Vec3
	Color    math3d.ColorRGB
	UV       math3d.Vec2
	Normal   math3d.Vec3
	Tangent  math3d.Vec3
}

// Out is a processed vertex: Position is clip-space before the divide
// and screen-space NDC afterward, with W left holding the pre-divide
// clip w for perspective-correct interpolation downstream.
type Out struct {
	Position      math3d.Vec4
	Color         math3d.ColorRGB
	UV            math3d.Vec2
	Normal        math3d.Vec3
	Tangent       math3d.Vec3
	ViewDirection math3d.Vec3
}

// Process transforms each input vertex by world*view*projection and
// writes the result into out, reusing out's backing array when it has
// enough capacity so no per-frame allocation is required. in is never
// mutated: world/view/projection always read from a separate array and
// write into a separate one.
func Process(in []In, world, viewProj math3d.Mat4, out []Out) []Out {
	wvp := viewProj.Mul(world)

	if cap(out) < len(in) {
		out = make([]Out, len(in))
	}
	out = out[:len(in)]

	for i, v := range in {
		clip := wvp.MulVec4(math3d.V4FromV3(v.Position, 1))

		viewDir := math3d.V3(clip.X, clip.Y, clip.Z).Normalize()

		normal := world.MulVec3Dir(v.Normal)
		tangent := world.MulVec3Dir(v.Tangent)

		w := clip.W
		if w != 0 {
			clip.X /= w
			clip.Y /= w
			clip.Z /= w
		}

		out[i] = Out{
			Position:      clip,
			Color:         v.Color,
			UV:            v.UV,
			Normal:        normal,
			Tangent:       tangent,
			ViewDirection: viewDir,
		}
	}
	return out
}

// Package raster provides the rasterizer, pixel shader, framebuffer, and
// terminal rendering for prism.
package raster

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/prism3d/prism/pkg/camera"
	"github.com/prism3d/prism/pkg/math3d"
	"github.com/prism3d/prism/pkg/models"
	"github.com/prism3d/prism/pkg/vertex"
)

// RenderMode selects how a triangle's interior is shaded once it passes
// the inside test.
type RenderMode int

const (
	RenderTexture RenderMode = iota
	RenderDepth
	RenderWireframe
)

// ColorMode selects the lighting term the Texture render mode visualizes.
type ColorMode int

const (
	ColorObservedArea ColorMode = iota
	ColorDiffuse
	ColorSpecular
	ColorFinal
)

const (
	lightIntensity  = 7.0
	shininess       = 25.0
	rotationDegPerS = 50.0
	epsilon         = 1e-9
)

var lightDir = math3d.V3(0.577, -0.577, 0.577).Normalize()

// CullingStats tracks frustum culling activity across a frame.
type CullingStats struct {
	MeshesTested int
	MeshesCulled int
	MeshesDrawn  int
}

// Rasterizer rasterizes mesh triangles into a Framebuffer and owns the
// viewer's render-mode/color-mode/normal-map/rotation state machine.
type Rasterizer struct {
	cam *camera.Camera
	fb  *Framebuffer

	depth []float64

	frustum      Frustum
	frustumDirty bool
	CullingStats CullingStats
	FrustumCull  bool

	// DisableBackfaceCulling is not read by the rasterizer: the strict >0
	// edge test discards back-facing triangles whatever its value.
	DisableBackfaceCulling bool

	Mode             RenderMode
	Color            ColorMode
	NormalMapEnabled bool
	RotationEnabled  bool

	// NearVis feeds the Depth render mode's remap(z, NearVis, 1.0)
	// grayscale visualization; configurable.
	NearVis float64
}

// NewRasterizer creates a rasterizer bound to the given camera and
// framebuffer, with the default shading state (Texture/ObservedArea,
// normal mapping on, rotation off).
func NewRasterizer(cam *camera.Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{
		cam:              cam,
		fb:               fb,
		frustumDirty:     true,
		NormalMapEnabled: true,
		NearVis:          0.985,
	}
	r.Resize()
	return r
}

// Resize binds the depth test to the framebuffer's Depth buffer,
// reallocating that buffer if it does not match the framebuffer size.
func (r *Rasterizer) Resize() {
	if r.fb == nil {
		r.depth = nil
		return
	}
	if len(r.fb.Depth) != r.fb.Width*r.fb.Height {
		r.fb.Depth = make([]float64, r.fb.Width*r.fb.Height)
	}
	r.depth = r.fb.Depth
}

func (r *Rasterizer) width() int  { return r.fb.Width }
func (r *Rasterizer) height() int { return r.fb.Height }

// ClearDepth resets every depth sample to +Inf, so the first write at any
// pixel always passes.
func (r *Rasterizer) ClearDepth() {
	for i := range r.depth {
		r.depth[i] = math.Inf(1)
	}
}

// InvalidateFrustum marks the cached frustum as stale; call after moving
// or rotating the camera.
func (r *Rasterizer) InvalidateFrustum() {
	r.frustumDirty = true
}

func (r *Rasterizer) updateFrustum() {
	if r.frustumDirty {
		r.frustum = ExtractFrustum(r.cam.ViewProjectionMatrix())
		r.frustumDirty = false
	}
}

// ResetCullingStats zeroes the per-frame culling counters.
func (r *Rasterizer) ResetCullingStats() {
	r.CullingStats = CullingStats{}
}

// CycleRenderMode advances the render mode Texture -> Depth -> Wireframe
// -> Texture.
func (r *Rasterizer) CycleRenderMode() {
	switch r.Mode {
	case RenderTexture:
		r.Mode = RenderDepth
	case RenderDepth:
		r.Mode = RenderWireframe
	default:
		r.Mode = RenderTexture
	}
}

// CycleColorMode advances ObservedArea -> Diffuse -> Specular -> FinalColor
// -> ObservedArea.
func (r *Rasterizer) CycleColorMode() {
	r.Color = (r.Color + 1) % 4
}

// ToggleNormalMap flips normal mapping on/off.
func (r *Rasterizer) ToggleNormalMap() {
	r.NormalMapEnabled = !r.NormalMapEnabled
}

// ToggleRotation flips the auto-rotation toggle.
func (r *Rasterizer) ToggleRotation() {
	r.RotationEnabled = !r.RotationEnabled
}

// ApplyRotation pre-multiplies mesh's world matrix by Ry(50 deg/s * dt)
// when rotation is enabled. A no-op otherwise.
func (r *Rasterizer) ApplyRotation(mesh *models.Mesh, dt float64) {
	if !r.RotationEnabled {
		return
	}
	theta := rotationDegPerS * dt * math.Pi / 180
	mesh.WorldMatrix = math3d.RotateY(theta).Mul(mesh.WorldMatrix)
}

// interpolated carries one rasterized pixel's attributes into the pixel
// shader.
type interpolated struct {
	UV            math3d.Vec2
	Normal        math3d.Vec3
	Tangent       math3d.Vec3
	ViewDirection math3d.Vec3
	Color         math3d.ColorRGB
	Depth         float64
}

// DrawMesh runs the vertex processor on mesh and rasterizes every
// triangle its topology expands to, dispatching each covered pixel to the
// pixel shader or, in Wireframe mode, to edge drawing instead of fill.
func (r *Rasterizer) DrawMesh(mesh *models.Mesh) {
	r.CullingStats.MeshesTested++
	if r.FrustumCull {
		r.updateFrustum()
		worldBounds := TransformAABB(AABB{Min: mesh.BoundsMin, Max: mesh.BoundsMax}, mesh.WorldMatrix)
		if !r.frustum.IntersectAABB(worldBounds) {
			r.CullingStats.MeshesCulled++
			return
		}
	}
	r.CullingStats.MeshesDrawn++

	viewProj := r.cam.ViewProjectionMatrix()
	mesh.VerticesOut = vertex.Process(mesh.Vertices, mesh.WorldMatrix, viewProj, mesh.VerticesOut)

	triCount := mesh.TriangleCount()
	for tri := 0; tri < triCount; tri++ {
		i0, i1, i2, ok := triangleIndices(mesh, tri)
		if !ok {
			continue
		}
		mat := mesh.GetMaterial(mesh.GetFaceMaterial(tri))
		r.rasterizeTriangle(mesh.VerticesOut[i0], mesh.VerticesOut[i1], mesh.VerticesOut[i2], mat)
	}
}

// triangleIndices returns the three VerticesOut indices for triangle tri
// under mesh's topology, applying the strip's alternating winding swap
// (swap = (i&1) != 0) so winding stays consistent across the strip.
func triangleIndices(mesh *models.Mesh, tri int) (i0, i1, i2 int, ok bool) {
	switch mesh.Topology {
	case models.TriangleStrip:
		if tri+2 >= len(mesh.Indices) {
			return 0, 0, 0, false
		}
		i0 = int(mesh.Indices[tri])
		i1 = int(mesh.Indices[tri+1])
		i2 = int(mesh.Indices[tri+2])
		if tri&1 != 0 {
			i1, i2 = i2, i1
		}
	default:
		base := tri * 3
		if base+2 >= len(mesh.Indices) {
			return 0, 0, 0, false
		}
		i0 = int(mesh.Indices[base])
		i1 = int(mesh.Indices[base+1])
		i2 = int(mesh.Indices[base+2])
	}
	return i0, i1, i2, true
}

// rasterizeTriangle fills or wireframes one triangle whose vertices are
// already in post-divide NDC (vertex.Out.Position.XYZ) with the
// pre-divide clip w preserved in Position.W.
func (r *Rasterizer) rasterizeTriangle(v0, v1, v2 vertex.Out, mat *models.Material) {
	x0, y0 := v0.Position.X, v0.Position.Y
	x1, y1 := v1.Position.X, v1.Position.Y
	x2, y2 := v2.Position.X, v2.Position.Y

	// Trivial reject: drop the whole triangle if any vertex's x or y lies
	// outside [-1,1]. This is a bounding reject, not correct clipping --
	// triangles that straddle the frustum are dropped whole, not clipped.
	if outsideUnit(x0, y0) || outsideUnit(x1, y1) || outsideUnit(x2, y2) {
		return
	}

	w, h := float64(r.width()), float64(r.height())
	s0 := math3d.V2((x0+1)*0.5*w, (1-y0)*0.5*h)
	s1 := math3d.V2((x1+1)*0.5*w, (1-y1)*0.5*h)
	s2 := math3d.V2((x2+1)*0.5*w, (1-y2)*0.5*h)

	if r.Mode == RenderWireframe {
		r.drawWireTriangle(s0, s1, s2)
		return
	}

	e0 := s1.Sub(s0)
	e1 := s2.Sub(s1)
	e2 := s0.Sub(s2)

	minX := int(math.Max(0, math.Floor(minOf3(s0.X, s1.X, s2.X))-1))
	maxX := int(math.Min(w-1, math.Ceil(maxOf3(s0.X, s1.X, s2.X))+1))
	minY := int(math.Max(0, math.Floor(minOf3(s0.Y, s1.Y, s2.Y))-1))
	maxY := int(math.Min(h-1, math.Ceil(maxOf3(s0.Y, s1.Y, s2.Y))+1))
	if minX > maxX || minY > maxY {
		return
	}

	invW0, invW1, invW2 := 1.0, 1.0, 1.0
	if v0.Position.W != 0 {
		invW0 = 1.0 / v0.Position.W
	}
	if v1.Position.W != 0 {
		invW1 = 1.0 / v1.Position.W
	}
	if v2.Position.W != 0 {
		invW2 = 1.0 / v2.Position.W
	}

	width := r.width()

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			p := math3d.V2(float64(x)+0.5, float64(y)+0.5)

			w0, w1, w2, inside := edgeWeights(e0, e1, e2, s0, s1, s2, p)
			if !inside {
				continue
			}

			// 1/z harmonic mean, not a plain affine average: the two
			// only agree when the three vertices share one z.
			invZDenom := w0/v0.Position.Z + w1/v1.Position.Z + w2/v2.Position.Z
			if invZDenom == 0 {
				continue
			}
			z := 1.0 / invZDenom
			if z < 0 || z > 1 {
				continue
			}

			idx := y*width + x
			if z >= r.depth[idx] {
				continue
			}

			pw0 := w0 * invW0
			pw1 := w1 * invW1
			pw2 := w2 * invW2
			sumPW := pw0 + pw1 + pw2
			if sumPW == 0 {
				continue
			}
			invSum := 1.0 / sumPW
			pw0 *= invSum
			pw1 *= invSum
			pw2 *= invSum

			pt := interpolated{
				UV: v0.UV.Scale(pw0).Add(v1.UV.Scale(pw1)).Add(v2.UV.Scale(pw2)),
				Normal: v0.Normal.Scale(pw0).Add(v1.Normal.Scale(pw1)).Add(v2.Normal.Scale(pw2)).
					Normalize(),
				Tangent: v0.Tangent.Scale(pw0).Add(v1.Tangent.Scale(pw1)).Add(v2.Tangent.Scale(pw2)).
					Normalize(),
				ViewDirection: v0.ViewDirection.Scale(pw0).Add(v1.ViewDirection.Scale(pw1)).
					Add(v2.ViewDirection.Scale(pw2)).Normalize(),
				Color: v0.Color.Scale(w0).Add(v1.Color.Scale(w1)).Add(v2.Color.Scale(w2)),
				Depth: z,
			}

			r.depth[idx] = z
			r.fb.Color[idx] = r.shadePixel(pt, mat).MaxToOne().Pack()
		}
	}
}

func (r *Rasterizer) drawWireTriangle(s0, s1, s2 math3d.Vec2) {
	c := ColorWhite
	r.fb.DrawLine(int(s0.X), int(s0.Y), int(s1.X), int(s1.Y), c)
	r.fb.DrawLine(int(s1.X), int(s1.Y), int(s2.X), int(s2.Y), c)
	r.fb.DrawLine(int(s2.X), int(s2.Y), int(s0.X), int(s0.Y), c)
}

// shadePixel dispatches to the Depth visualization or the lit Texture
// shading model.
func (r *Rasterizer) shadePixel(p interpolated, mat *models.Material) math3d.ColorRGB {
	if r.Mode == RenderDepth {
		return r.shadeDepth(p.Depth)
	}
	return r.shadeLit(p, mat)
}

// shadeDepth visualizes remap(z, NearVis, 1.0) as a grayscale gradient,
// blended in Lab space via go-colorful for a perceptually even ramp.
func (r *Rasterizer) shadeDepth(z float64) math3d.ColorRGB {
	denom := 1.0 - r.NearVis
	t := 0.0
	if denom != 0 {
		t = (z - r.NearVis) / denom
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	near := colorful.Color{R: 1, G: 1, B: 1}
	far := colorful.Color{R: 0, G: 0, B: 0}
	c := near.BlendLab(far, t)
	return math3d.RGB(c.R, c.G, c.B)
}

// shadeLit evaluates the ObservedArea/Diffuse/Specular/FinalColor terms
// with L = normalize(0.577,-0.577,0.577), applying a tangent-space normal
// map first when enabled.
func (r *Rasterizer) shadeLit(p interpolated, mat *models.Material) math3d.ColorRGB {
	n := p.Normal
	if r.NormalMapEnabled && mat != nil && mat.NormalMap != nil {
		n = r.normalMapped(p, mat)
	}

	oa := math.Max(0, n.Dot(lightDir))

	switch r.Color {
	case ColorObservedArea:
		return math3d.RGB(oa, oa, oa)
	case ColorDiffuse:
		return diffuseColor(mat, p.UV, p.Color).Scale(lightIntensity / math.Pi).Scale(oa)
	case ColorSpecular:
		s := specularTerm(p, n, mat)
		return math3d.RGB(s, s, s)
	default: // ColorFinal
		diffuse := diffuseColor(mat, p.UV, p.Color).Scale(lightIntensity / math.Pi)
		s := specularTerm(p, n, mat)
		return diffuse.Add(math3d.RGB(s, s, s)).Scale(oa)
	}
}

// specularTerm is specular(uv) * Phong(1.0, gloss(uv).r*shininess, -L,
// viewDir, N): the gloss map only perturbs the exponent, the specular map
// is the term's own color/intensity multiplier.
func specularTerm(p interpolated, n math3d.Vec3, mat *models.Material) float64 {
	v := p.ViewDirection.Negate()
	reflectDir := lightDir.Reflect(n)
	exponent := glossValue(mat, p.UV) * shininess
	spec := math.Pow(math.Max(0, reflectDir.Dot(v)), exponent)
	return specularValue(mat, p.UV) * spec
}

// normalMapped builds the TBN frame (binormal = N x T) and transforms the
// tangent-space sample into world space.
func (r *Rasterizer) normalMapped(p interpolated, mat *models.Material) math3d.Vec3 {
	sample := mat.NormalMap.Sample(p.UV)
	nts := math3d.V3(sample.R*2-1, sample.G*2-1, sample.B*2-1)

	t := p.Tangent
	n := p.Normal
	b := n.Cross(t)

	worldN := t.Scale(nts.X).Add(b.Scale(nts.Y)).Add(n.Scale(nts.Z))
	if worldN.LenSq() == 0 {
		return n
	}
	return worldN.Normalize()
}

func diffuseColor(mat *models.Material, uv math3d.Vec2, vertColor math3d.ColorRGB) math3d.ColorRGB {
	if mat != nil && mat.HasTexture && mat.DiffuseMap != nil {
		return mat.DiffuseMap.Sample(uv).Mul(vertColor)
	}
	if mat != nil {
		return math3d.RGB(mat.BaseColor[0], mat.BaseColor[1], mat.BaseColor[2]).Mul(vertColor)
	}
	return vertColor
}

func specularValue(mat *models.Material, uv math3d.Vec2) float64 {
	if mat != nil && mat.SpecularMap != nil {
		return mat.SpecularMap.Sample(uv).R
	}
	return 1
}

func glossValue(mat *models.Material, uv math3d.Vec2) float64 {
	if mat != nil && mat.GlossMap != nil {
		return mat.GlossMap.Sample(uv).R
	}
	if mat != nil {
		return 1 - mat.Roughness
	}
	return 1
}

func minOf3(a, b, c float64) float64 { return math.Min(a, math.Min(b, c)) }
func maxOf3(a, b, c float64) float64 { return math.Max(a, math.Max(b, c)) }

func outsideUnit(x, y float64) bool {
	return x < -1 || x > 1 || y < -1 || y > 1
}

// edgeWeights computes the cyclic barycentric weights of p against the
// triangle (s0,s1,s2) given its precomputed edge vectors (e0=s1-s0,
// e1=s2-s1, e2=s0-s2). inside is false when p falls outside the strict
// positive edge test or the triangle is degenerate.
func edgeWeights(e0, e1, e2, s0, s1, s2, p math3d.Vec2) (w0, w1, w2 float64, inside bool) {
	c0 := e0.Cross(p.Sub(s0))
	c1 := e1.Cross(p.Sub(s1))
	c2 := e2.Cross(p.Sub(s2))
	area := c0 + c1 + c2
	if math.Abs(area) < epsilon || c0 <= 0 || c1 <= 0 || c2 <= 0 {
		return 0, 0, 0, false
	}
	invArea := 1.0 / area
	return c1 * invArea, c2 * invArea, c0 * invArea, true
}

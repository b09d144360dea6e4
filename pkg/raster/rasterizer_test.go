package raster

import (
	"math"
	"testing"

	"github.com/prism3d/prism/pkg/camera"
	"github.com/prism3d/prism/pkg/math3d"
	"github.com/prism3d/prism/pkg/models"
	"github.com/prism3d/prism/pkg/texture"
	"github.com/prism3d/prism/pkg/vertex"
)

// newTestScene places the camera on the +Z side looking back toward the
// origin: Camera.New's default orientation (yaw=0) faces +Z, so a scene
// built around the origin needs a 180 degree yaw to come into view.
func newTestScene(width, height int) (*Rasterizer, *Framebuffer, *camera.Camera) {
	fb := NewFramebuffer(width, height)
	cam := camera.New(math3d.V3(0, 0, 5), float64(width)/float64(height))
	cam.SetYawPitch(180, 0)
	rast := NewRasterizer(cam, fb)
	return rast, fb, cam
}

func quadMesh(z float64) *models.Mesh {
	mesh := models.NewMesh("quad")
	mesh.Vertices = []models.Vertex{
		{Position: math3d.V3(-1, -1, z), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(0, 0), Color: math3d.White(), Tangent: math3d.V3(1, 0, 0)},
		{Position: math3d.V3(1, -1, z), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(1, 0), Color: math3d.White(), Tangent: math3d.V3(1, 0, 0)},
		{Position: math3d.V3(1, 1, z), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(1, 1), Color: math3d.White(), Tangent: math3d.V3(1, 0, 0)},
		{Position: math3d.V3(-1, 1, z), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(0, 1), Color: math3d.White(), Tangent: math3d.V3(1, 0, 0)},
	}
	mesh.Indices = []uint32{0, 1, 2, 0, 2, 3}
	mesh.Topology = models.TriangleList
	mesh.Faces = []models.Face{{V: [3]int{0, 1, 2}, Material: -1}, {V: [3]int{0, 2, 3}, Material: -1}}
	mesh.CalculateBounds()
	return mesh
}

func countLitPixels(fb *Framebuffer) int {
	n := 0
	for _, c := range fb.Color {
		if c.R > 0 || c.G > 0 || c.B > 0 {
			n++
		}
	}
	return n
}

func TestDrawMeshFinalColorProducesLitPixels(t *testing.T) {
	rast, fb, _ := newTestScene(64, 64)
	rast.Color = ColorFinal
	rast.ClearDepth()
	fb.Clear(ColorBlack)

	mesh := quadMesh(0)
	rast.DrawMesh(mesh)

	if countLitPixels(fb) == 0 {
		t.Fatal("expected the quad to produce lit pixels in FinalColor mode")
	}

	cx, cy := fb.Width/2, fb.Height/2
	c := fb.GetPixel(cx, cy)
	if c.R == 0 && c.G == 0 && c.B == 0 {
		t.Error("center pixel of a front-facing, front-lit quad should not be pure black")
	}
}

func TestDepthOrderingNearestWins(t *testing.T) {
	rast, fb, _ := newTestScene(32, 32)
	rast.Color = ColorDiffuse
	rast.ClearDepth()
	fb.Clear(ColorBlack)

	far := quadMesh(-3)
	far.Materials = []models.Material{{Name: "far", BaseColor: [4]float64{1, 0, 0, 1}}}
	for i := range far.Faces {
		far.Faces[i].Material = 0
	}

	near := quadMesh(0)
	near.Materials = []models.Material{{Name: "near", BaseColor: [4]float64{0, 0, 1, 1}}}
	for i := range near.Faces {
		near.Faces[i].Material = 0
	}

	rast.DrawMesh(far)
	rast.DrawMesh(near)

	cx, cy := fb.Width/2, fb.Height/2
	c := fb.GetPixel(cx, cy)
	if c.B == 0 {
		t.Errorf("nearer blue quad should have won the depth test, got %+v", c)
	}
}

func TestDepthOrderingIsOrderIndependent(t *testing.T) {
	rast, fb, _ := newTestScene(32, 32)
	rast.Color = ColorDiffuse
	rast.ClearDepth()
	fb.Clear(ColorBlack)

	far := quadMesh(-3)
	far.Materials = []models.Material{{Name: "far", BaseColor: [4]float64{1, 0, 0, 1}}}
	for i := range far.Faces {
		far.Faces[i].Material = 0
	}
	near := quadMesh(0)
	near.Materials = []models.Material{{Name: "near", BaseColor: [4]float64{0, 0, 1, 1}}}
	for i := range near.Faces {
		near.Faces[i].Material = 0
	}

	rast.DrawMesh(near)
	rast.DrawMesh(far)

	cx, cy := fb.Width/2, fb.Height/2
	c := fb.GetPixel(cx, cy)
	if c.B == 0 {
		t.Errorf("depth test should keep the blue quad on top regardless of draw order, got %+v", c)
	}
}

func TestTriangleStripMatchesTriangleListWinding(t *testing.T) {
	rastList, fbList, _ := newTestScene(48, 48)
	rastList.Color = ColorObservedArea
	rastList.ClearDepth()
	fbList.Clear(ColorBlack)
	listMesh := quadMesh(0)
	rastList.DrawMesh(listMesh)

	rastStrip, fbStrip, _ := newTestScene(48, 48)
	rastStrip.Color = ColorObservedArea
	rastStrip.ClearDepth()
	fbStrip.Clear(ColorBlack)
	stripMesh := quadMesh(0)
	stripMesh.Topology = models.TriangleStrip
	stripMesh.Indices = []uint32{0, 1, 3, 2}
	rastStrip.DrawMesh(stripMesh)

	listPixels := countLitPixels(fbList)
	stripPixels := countLitPixels(fbStrip)
	if listPixels == 0 || stripPixels == 0 {
		t.Fatal("both topologies should render the same visible quad")
	}
	diff := math.Abs(float64(listPixels - stripPixels))
	if diff/float64(listPixels) > 0.1 {
		t.Errorf("triangle-strip and triangle-list coverage should roughly match: list=%d strip=%d", listPixels, stripPixels)
	}
}

func TestNormalMapToggleOnlyAffectsShadingNotCoverage(t *testing.T) {
	mesh := quadMesh(0)
	tex := newSolidNormalTexture()
	mesh.Materials = []models.Material{{Name: "nm", HasTexture: true, BaseColor: [4]float64{1, 1, 1, 1}, NormalMap: tex}}
	for i := range mesh.Faces {
		mesh.Faces[i].Material = 0
	}

	rastOn, fbOn, _ := newTestScene(48, 48)
	rastOn.Color = ColorFinal
	rastOn.NormalMapEnabled = true
	rastOn.ClearDepth()
	fbOn.Clear(ColorBlack)
	rastOn.DrawMesh(mesh)

	rastOff, fbOff, _ := newTestScene(48, 48)
	rastOff.Color = ColorFinal
	rastOff.NormalMapEnabled = false
	rastOff.ClearDepth()
	fbOff.Clear(ColorBlack)
	rastOff.DrawMesh(mesh)

	onPixels := countLitPixels(fbOn)
	offPixels := countLitPixels(fbOff)
	if onPixels == 0 || offPixels == 0 {
		t.Fatal("quad should be visible regardless of normal-map toggle")
	}
	if onPixels != offPixels {
		t.Errorf("toggling the normal map should not change which pixels are covered: on=%d off=%d", onPixels, offPixels)
	}
}

// newSolidNormalTexture returns a 1x1 flat-up tangent-space normal map
// (0.5, 0.5, 1.0) so enabling it is a legal no-op perturbation test.
func newSolidNormalTexture() *texture.Texture {
	tex := texture.New(1, 1)
	tex.Pixels[0] = math3d.RGB(0.5, 0.5, 1.0)
	return tex
}

func TestCameraYawCentersOffAxisQuad(t *testing.T) {
	rast, fb, cam := newTestScene(64, 64)
	rast.Color = ColorObservedArea

	mesh := quadMesh(0)
	mesh.WorldMatrix = math3d.Translate(math3d.V3(2, 0, -8))
	cam.Origin = math3d.V3(0, 0, 0)

	rast.ClearDepth()
	fb.Clear(ColorBlack)
	rast.DrawMesh(mesh)
	offCenterPixels := countLitPixels(fb)
	if offCenterPixels == 0 {
		t.Fatal("off-axis quad should still be visible before centering")
	}

	// RotateY(yaw) maps the default +Z forward to (sin(yaw), 0, cos(yaw));
	// solve for the yaw whose forward points at the quad's (2, 0, -8).
	yawRad := math.Atan2(2, -8)
	cam.SetYawPitch(yawRad*180/math.Pi, 0)

	rast.ClearDepth()
	fb.Clear(ColorBlack)
	rast.InvalidateFrustum()
	rast.DrawMesh(mesh)

	cx, cy := fb.Width/2, fb.Height/2
	found := false
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			c := fb.GetPixel(cx+dx, cy+dy)
			if c.R > 0 || c.G > 0 || c.B > 0 {
				found = true
			}
		}
	}
	if !found {
		t.Error("yawing the camera toward the quad should bring it near screen center")
	}
}

func TestEdgeFunctionBackfaceCulling(t *testing.T) {
	rast, fb, _ := newTestScene(32, 32)
	rast.Color = ColorObservedArea
	rast.ClearDepth()
	fb.Clear(ColorBlack)

	mesh := quadMesh(0)
	mesh.Indices = []uint32{0, 2, 1, 0, 3, 2}

	rast.DrawMesh(mesh)

	if countLitPixels(fb) != 0 {
		t.Error("reversed winding should be back-face culled and draw nothing")
	}
}

func TestFrustumCullSkipsOffscreenMesh(t *testing.T) {
	rast, fb, _ := newTestScene(32, 32)
	rast.FrustumCull = true
	rast.Color = ColorObservedArea
	rast.ClearDepth()
	fb.Clear(ColorBlack)

	mesh := quadMesh(0)
	mesh.WorldMatrix = math3d.Translate(math3d.V3(1000, 0, 0))

	rast.ResetCullingStats()
	rast.DrawMesh(mesh)

	if rast.CullingStats.MeshesCulled != 1 {
		t.Errorf("expected the far-offscreen mesh to be culled, stats=%+v", rast.CullingStats)
	}
	if countLitPixels(fb) != 0 {
		t.Error("a culled mesh should not draw any pixels")
	}
}

func TestRenderModeCycleOrder(t *testing.T) {
	rast, _, _ := newTestScene(8, 8)
	if rast.Mode != RenderTexture {
		t.Fatalf("expected default mode RenderTexture, got %v", rast.Mode)
	}
	rast.CycleRenderMode()
	if rast.Mode != RenderDepth {
		t.Errorf("expected RenderDepth after one cycle, got %v", rast.Mode)
	}
	rast.CycleRenderMode()
	if rast.Mode != RenderWireframe {
		t.Errorf("expected RenderWireframe after two cycles, got %v", rast.Mode)
	}
	rast.CycleRenderMode()
	if rast.Mode != RenderTexture {
		t.Errorf("expected the cycle to wrap back to RenderTexture, got %v", rast.Mode)
	}
}

func TestColorModeCycleOrder(t *testing.T) {
	rast, _, _ := newTestScene(8, 8)
	order := []ColorMode{ColorDiffuse, ColorSpecular, ColorFinal, ColorObservedArea}
	for _, want := range order {
		rast.CycleColorMode()
		if rast.Color != want {
			t.Errorf("expected color mode %v, got %v", want, rast.Color)
		}
	}
}

// TestEdgeWeightsPartitionOfUnity checks the barycentric identity
// w0+w1+w2 = 1 and that the weights reconstruct the sample point, at
// several interior points of a fixed screen-space triangle.
func TestEdgeWeightsPartitionOfUnity(t *testing.T) {
	s0 := math3d.V2(10, 50)
	s1 := math3d.V2(70, 20)
	s2 := math3d.V2(40, 80)
	e0 := s1.Sub(s0)
	e1 := s2.Sub(s1)
	e2 := s0.Sub(s2)

	// Each sample is a known convex combination of s0,s1,s2, so every
	// one of them must land strictly inside the triangle.
	combos := [][3]float64{
		{1.0 / 3, 1.0 / 3, 1.0 / 3},
		{0.5, 0.25, 0.25},
		{0.2, 0.5, 0.3},
		{0.6, 0.1, 0.3},
	}
	for _, combo := range combos {
		a, b, c := combo[0], combo[1], combo[2]
		p := s0.Scale(a).Add(s1.Scale(b)).Add(s2.Scale(c))

		w0, w1, w2, inside := edgeWeights(e0, e1, e2, s0, s1, s2, p)
		if !inside {
			t.Fatalf("convex combination %v of the triangle's vertices unexpectedly fell outside it", combo)
		}
		if sum := w0 + w1 + w2; math.Abs(sum-1) > 1e-9 {
			t.Errorf("weights at %+v should sum to 1, got %v (w0=%v w1=%v w2=%v)", p, sum, w0, w1, w2)
		}
		recon := s0.Scale(w0).Add(s1.Scale(w1)).Add(s2.Scale(w2))
		if math.Abs(recon.X-p.X) > 1e-6 || math.Abs(recon.Y-p.Y) > 1e-6 {
			t.Errorf("weights should reconstruct the sample point: got %+v want %+v", recon, p)
		}
	}
}

// TestTrivialRejectDropsStraddlingTriangle exercises the common case the
// reject test must catch: two vertices inside the unit frustum and one
// far outside it. Rejecting only when all three vertices share the same
// out-of-range side lets this triangle through; rejecting on any one
// vertex's own violation does not.
func TestTrivialRejectDropsStraddlingTriangle(t *testing.T) {
	rast, fb, _ := newTestScene(32, 32)
	rast.Color = ColorObservedArea
	rast.ClearDepth()
	fb.Clear(ColorBlack)

	mesh := models.NewMesh("straddle")
	mesh.Vertices = []models.Vertex{
		{Position: math3d.V3(-0.5, -0.5, 0), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(0, 0), Color: math3d.White(), Tangent: math3d.V3(1, 0, 0)},
		{Position: math3d.V3(0.5, -0.5, 0), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(1, 0), Color: math3d.White(), Tangent: math3d.V3(1, 0, 0)},
		{Position: math3d.V3(50, 50, 0), Normal: math3d.V3(0, 0, 1), UV: math3d.V2(0.5, 1), Color: math3d.White(), Tangent: math3d.V3(1, 0, 0)},
	}
	mesh.Indices = []uint32{0, 1, 2}
	mesh.Topology = models.TriangleList
	mesh.Faces = []models.Face{{V: [3]int{0, 1, 2}, Material: -1}}
	mesh.CalculateBounds()

	rast.DrawMesh(mesh)

	if countLitPixels(fb) != 0 {
		t.Error("a triangle with one vertex far outside the unit frustum should be rejected whole, not partially rasterized")
	}
}

// TestPerspectiveCorrectUVInterpolation builds a single triangle whose
// three vertices sit at different depths, encodes (u,v) directly as an
// RGB texture, and decodes the rendered color at an interior pixel back
// to a uv. It compares that decoded uv against a reference computed
// independently through the real vertex processor and clip-w weights,
// and against the naive screen-space affine interpolation, which a
// depth-varying triangle must disagree with.
func TestPerspectiveCorrectUVInterpolation(t *testing.T) {
	const w, h = 128, 128
	fb := NewFramebuffer(w, h)
	cam := camera.New(math3d.V3(0, 0, 5), float64(w)/float64(h))
	cam.SetYawPitch(180, 0)
	rast := NewRasterizer(cam, fb)
	rast.Color = ColorDiffuse
	rast.ClearDepth()
	fb.Clear(ColorBlack)

	const texSize = 256
	uvTex := texture.New(texSize, texSize)
	for y := 0; y < texSize; y++ {
		for x := 0; x < texSize; x++ {
			u := (float64(x) + 0.5) / texSize
			v := (float64(y) + 0.5) / texSize
			uvTex.Pixels[y*texSize+x] = math3d.RGB(u, v, 0)
		}
	}

	// Normal equal to lightDir on every vertex pins oa to exactly 1, so
	// the decoded color only reflects diffuse(uv) and vertex color, not
	// lighting angle.
	vcolor := math3d.RGB(0.3, 0.3, 0.3)
	mesh := models.NewMesh("persp")
	mesh.Vertices = []models.Vertex{
		{Position: math3d.V3(-1, -1, 0), Normal: lightDir, UV: math3d.V2(0, 0), Color: vcolor, Tangent: math3d.V3(1, 0, 0)},
		{Position: math3d.V3(1, -1, -3), Normal: lightDir, UV: math3d.V2(1, 0), Color: vcolor, Tangent: math3d.V3(1, 0, 0)},
		{Position: math3d.V3(0, 1, -1.5), Normal: lightDir, UV: math3d.V2(0.5, 1), Color: vcolor, Tangent: math3d.V3(1, 0, 0)},
	}
	mesh.Indices = []uint32{0, 1, 2}
	mesh.Topology = models.TriangleList
	mesh.Materials = []models.Material{{Name: "uv", HasTexture: true, BaseColor: [4]float64{1, 1, 1, 1}, DiffuseMap: uvTex}}
	mesh.Faces = []models.Face{{V: [3]int{0, 1, 2}, Material: 0}}
	mesh.CalculateBounds()

	rast.DrawMesh(mesh)

	if countLitPixels(fb) == 0 {
		t.Fatal("expected the depth-varying triangle to be visible")
	}

	cx, cy := w/2, h/2
	bestX, bestY, bestDist := -1, -1, math.Inf(1)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := fb.GetPixel(x, y)
			if c.R == 0 && c.G == 0 && c.B == 0 {
				continue
			}
			dx, dy := float64(x-cx), float64(y-cy)
			if d := dx*dx + dy*dy; d < bestDist {
				bestDist, bestX, bestY = d, x, y
			}
		}
	}
	if bestX < 0 {
		t.Fatal("no lit pixel found to sample")
	}

	decode := 0.3 * lightIntensity / math.Pi
	rendered := fb.GetPixel(bestX, bestY)
	gotU := float64(rendered.R) / 255 / decode
	gotV := float64(rendered.G) / 255 / decode

	viewProj := cam.ViewProjectionMatrix()
	out := vertex.Process(mesh.Vertices, mesh.WorldMatrix, viewProj, nil)
	v0, v1, v2 := out[0], out[1], out[2]

	s0 := math3d.V2((v0.Position.X+1)*0.5*w, (1-v0.Position.Y)*0.5*h)
	s1 := math3d.V2((v1.Position.X+1)*0.5*w, (1-v1.Position.Y)*0.5*h)
	s2 := math3d.V2((v2.Position.X+1)*0.5*w, (1-v2.Position.Y)*0.5*h)
	e0 := s1.Sub(s0)
	e1 := s2.Sub(s1)
	e2 := s0.Sub(s2)

	p := math3d.V2(float64(bestX)+0.5, float64(bestY)+0.5)
	bw0, bw1, bw2, inside := edgeWeights(e0, e1, e2, s0, s1, s2, p)
	if !inside {
		t.Fatal("sampled pixel did not reproduce as inside the triangle under edgeWeights")
	}

	invW0, invW1, invW2 := 1/v0.Position.W, 1/v1.Position.W, 1/v2.Position.W
	pw0, pw1, pw2 := bw0*invW0, bw1*invW1, bw2*invW2
	sum := pw0 + pw1 + pw2
	pw0, pw1, pw2 = pw0/sum, pw1/sum, pw2/sum

	wantU := v0.UV.X*pw0 + v1.UV.X*pw1 + v2.UV.X*pw2
	wantV := v0.UV.Y*pw0 + v1.UV.Y*pw1 + v2.UV.Y*pw2

	const tol = 0.02 // texel quantization (1/256) plus 8-bit color rounding
	if math.Abs(gotU-wantU) > tol {
		t.Errorf("perspective-correct u mismatch: got %.4f want %.4f", gotU, wantU)
	}
	if math.Abs(gotV-wantV) > tol {
		t.Errorf("perspective-correct v mismatch: got %.4f want %.4f", gotV, wantV)
	}

	affineU := v0.UV.X*bw0 + v1.UV.X*bw1 + v2.UV.X*bw2
	if math.Abs(affineU-wantU) < tol {
		t.Error("expected naive affine uv interpolation to diverge from the perspective-correct result on a triangle with varying depth")
	}
}

package raster

import (
	"math/rand"
	"testing"

	"github.com/prism3d/prism/pkg/camera"
	"github.com/prism3d/prism/pkg/math3d"
	"github.com/prism3d/prism/pkg/models"
)

// BenchmarkFrustumExtract benchmarks frustum plane extraction from view-projection matrix.
func BenchmarkFrustumExtract(b *testing.B) {
	proj := math3d.Perspective(60, 16.0/9.0, 0.1, 100.0)
	view := math3d.Identity()
	viewProj := proj.Mul(view)

	for b.Loop() {
		_ = ExtractFrustum(viewProj)
	}
}

// BenchmarkAABBIntersection benchmarks AABB vs frustum intersection test.
func BenchmarkAABBIntersection(b *testing.B) {
	proj := math3d.Perspective(60, 16.0/9.0, 0.1, 100.0)
	view := math3d.Identity()
	viewProj := proj.Mul(view)
	frustum := ExtractFrustum(viewProj)

	visibleBounds := AABB{
		Min: math3d.V3(-1, -1, 5),
		Max: math3d.V3(1, 1, 15),
	}

	b.Run("visible", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = frustum.IntersectsFrustum(visibleBounds)
		}
	})

	culledBounds := AABB{
		Min: math3d.V3(-1, -1, -15),
		Max: math3d.V3(1, 1, -5),
	}

	b.Run("culled", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = frustum.IntersectsFrustum(culledBounds)
		}
	})
}

// BenchmarkTransformAABB benchmarks AABB transformation.
func BenchmarkTransformAABB(b *testing.B) {
	local := AABB{
		Min: math3d.V3(-1, -1, -1),
		Max: math3d.V3(1, 1, 1),
	}
	transform := math3d.Translate(math3d.V3(10, 5, -20)).Mul(math3d.RotateY(0.5)).Mul(math3d.ScaleUniform(2))

	for b.Loop() {
		_ = TransformAABB(local, transform)
	}
}

// BenchmarkCullingScenario simulates culling N objects, some visible, some not.
func BenchmarkCullingScenario(b *testing.B) {
	cam := camera.New(math3d.V3(0, 10, 20), 16.0/9.0)
	cam.SetYawPitch(180, -20)

	viewProj := cam.ViewProjectionMatrix()
	frustum := ExtractFrustum(viewProj)

	rng := rand.New(rand.NewSource(42))
	objectCount := 100

	type object struct {
		bounds    AABB
		transform math3d.Mat4
	}
	objects := make([]object, objectCount)

	for i := range objectCount {
		x := rng.Float64()*100 - 50
		y := rng.Float64() * 10
		z := rng.Float64()*100 - 50

		objects[i] = object{
			bounds: AABB{
				Min: math3d.V3(-1, -1, -1),
				Max: math3d.V3(1, 1, 1),
			},
			transform: math3d.Translate(math3d.V3(x, y, z)),
		}
	}

	b.Run("with_culling", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			visible := 0
			for _, obj := range objects {
				worldBounds := TransformAABB(obj.bounds, obj.transform)
				if frustum.IntersectsFrustum(worldBounds) {
					visible++
				}
			}
			_ = visible
		}
	})

	b.Run("no_culling", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			visible := 0
			for range objects {
				visible++
			}
			_ = visible
		}
	})
}

func cubeMesh() *models.Mesh {
	mesh := models.NewMesh("cube")
	positions := []math3d.Vec3{
		math3d.V3(-1, -1, 1), math3d.V3(1, -1, 1), math3d.V3(1, 1, 1), math3d.V3(-1, 1, 1),
		math3d.V3(-1, -1, -1), math3d.V3(1, -1, -1), math3d.V3(1, 1, -1), math3d.V3(-1, 1, -1),
	}
	for _, p := range positions {
		mesh.Vertices = append(mesh.Vertices, models.Vertex{Position: p, Color: math3d.White()})
	}
	faces := [][3]int{
		{0, 1, 2}, {0, 2, 3},
		{4, 6, 5}, {4, 7, 6},
		{0, 3, 7}, {0, 7, 4},
		{1, 5, 6}, {1, 6, 2},
		{3, 2, 6}, {3, 6, 7},
		{0, 4, 5}, {0, 5, 1},
	}
	for _, f := range faces {
		mesh.Faces = append(mesh.Faces, models.Face{V: f, Material: -1})
	}
	mesh.IndicesFromFaces()
	mesh.CalculateSmoothNormals()
	mesh.CalculateBounds()
	return mesh
}

// BenchmarkMeshRenderingComparison compares rendering with and without culling.
func BenchmarkMeshRenderingComparison(b *testing.B) {
	fb := NewFramebuffer(160, 120)
	cam := camera.New(math3d.V3(0, 10, 20), float64(fb.Width)/float64(fb.Height))
	cam.SetYawPitch(180, -20)

	rast := NewRasterizer(cam, fb)
	mesh := cubeMesh()

	rng := rand.New(rand.NewSource(42))
	objectCount := 100
	transforms := make([]math3d.Mat4, objectCount)

	for i := range objectCount {
		var z float64
		if i%2 == 0 {
			z = rng.Float64()*30 - 40
		} else {
			z = rng.Float64()*20 + 25
		}
		x := rng.Float64()*40 - 20
		y := rng.Float64() * 10
		transforms[i] = math3d.Translate(math3d.V3(x, y, z))
	}

	b.Run("with_culling", func(b *testing.B) {
		rast.FrustumCull = true
		for i := 0; i < b.N; i++ {
			rast.ClearDepth()
			rast.InvalidateFrustum()
			rast.ResetCullingStats()

			for _, transform := range transforms {
				mesh.WorldMatrix = transform
				rast.DrawMesh(mesh)
			}
		}
	})

	b.Run("without_culling", func(b *testing.B) {
		rast.FrustumCull = false
		for i := 0; i < b.N; i++ {
			rast.ClearDepth()

			for _, transform := range transforms {
				mesh.WorldMatrix = transform
				rast.DrawMesh(mesh)
			}
		}
	})
}

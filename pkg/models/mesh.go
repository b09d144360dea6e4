// Package models provides 3D mesh storage and loading for prism.
package models

import (
	"github.com/prism3d/prism/pkg/math3d"
	"github.com/prism3d/prism/pkg/vertex"
)

// Topology selects how Indices are expanded into triangles.
type Topology int

const (
	TriangleList Topology = iota
	TriangleStrip
)

// Vertex is a mesh's input vertex; an alias of vertex.In so the vertex
// processor and the mesh store agree on layout without an import cycle
// (vertex is a leaf package, models depends on it, never the reverse).
type Vertex = vertex.In

// Mesh holds input vertices, an index list, primitive topology, a world
// matrix, and an output-vertex scratch buffer, per the mesh store
// component design.
type Mesh struct {
	Name string

	Vertices []Vertex
	Indices  []uint32
	Topology Topology

	WorldMatrix math3d.Mat4

	// VerticesOut is rebuilt each frame by the vertex processor; never
	// read before Process has run for the current frame.
	VerticesOut []vertex.Out

	Materials []Material
	// Faces mirrors Indices in triangle-list form with a per-face
	// material index, used by loaders (OBJ, glTF) that naturally
	// produce one material slot per face rather than a flat index
	// buffer. Kept alongside Indices rather than replacing it since the
	// rasterizer iterates Indices/Topology directly.
	Faces []Face

	BoundsMin math3d.Vec3
	BoundsMax math3d.Vec3
}

// Face represents a triangle with a material reference.
type Face struct {
	V        [3]int
	Material int // -1 means no material
}

// NewMesh creates an empty mesh with identity world matrix.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:        name,
		WorldMatrix: math3d.Identity(),
	}
}

// TriangleCount returns the number of triangles the topology expands to.
func (m *Mesh) TriangleCount() int {
	switch m.Topology {
	case TriangleStrip:
		if len(m.Indices) < 3 {
			return 0
		}
		return len(m.Indices) - 2
	default:
		return len(m.Indices) / 3
	}
}

// VertexCount returns the number of input vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// CalculateBounds computes the axis-aligned bounding box from Vertices.
func (m *Mesh) CalculateBounds() {
	if len(m.Vertices) == 0 {
		return
	}
	m.BoundsMin = m.Vertices[0].Position
	m.BoundsMax = m.Vertices[0].Position
	for _, v := range m.Vertices[1:] {
		m.BoundsMin = m.BoundsMin.Min(v.Position)
		m.BoundsMax = m.BoundsMax.Max(v.Position)
	}
}

// Center returns the center of the bounding box.
func (m *Mesh) Center() math3d.Vec3 {
	return m.BoundsMin.Add(m.BoundsMax).Scale(0.5)
}

// Size returns the dimensions of the bounding box.
func (m *Mesh) Size() math3d.Vec3 {
	return m.BoundsMax.Sub(m.BoundsMin)
}

// CalculateSmoothNormals computes averaged per-vertex normals from Faces.
// Used by loaders that don't already carry normals (OBJ without vn).
func (m *Mesh) CalculateSmoothNormals() {
	for i := range m.Vertices {
		m.Vertices[i].Normal = math3d.Zero3()
	}
	for _, f := range m.Faces {
		v0 := m.Vertices[f.V[0]].Position
		v1 := m.Vertices[f.V[1]].Position
		v2 := m.Vertices[f.V[2]].Position
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		m.Vertices[f.V[0]].Normal = m.Vertices[f.V[0]].Normal.Add(n)
		m.Vertices[f.V[1]].Normal = m.Vertices[f.V[1]].Normal.Add(n)
		m.Vertices[f.V[2]].Normal = m.Vertices[f.V[2]].Normal.Add(n)
	}
	for i := range m.Vertices {
		m.Vertices[i].Normal = m.Vertices[i].Normal.Normalize()
	}
}

// CalculateTangents derives per-vertex tangents from position/uv deltas
// across each face, averaged the same way smooth normals are. Loaders
// that don't carry an explicit TANGENT attribute (plain OBJ) call this
// after normals are known.
func (m *Mesh) CalculateTangents() {
	for i := range m.Vertices {
		m.Vertices[i].Tangent = math3d.Zero3()
	}
	for _, f := range m.Faces {
		v0, v1, v2 := m.Vertices[f.V[0]], m.Vertices[f.V[1]], m.Vertices[f.V[2]]

		edge1 := v1.Position.Sub(v0.Position)
		edge2 := v2.Position.Sub(v0.Position)
		duv1 := v1.UV.Sub(v0.UV)
		duv2 := v2.UV.Sub(v0.UV)

		denom := duv1.X*duv2.Y - duv2.X*duv1.Y
		if denom == 0 {
			continue
		}
		r := 1 / denom
		tangent := edge1.Scale(duv2.Y).Sub(edge2.Scale(duv1.Y)).Scale(r)

		m.Vertices[f.V[0]].Tangent = m.Vertices[f.V[0]].Tangent.Add(tangent)
		m.Vertices[f.V[1]].Tangent = m.Vertices[f.V[1]].Tangent.Add(tangent)
		m.Vertices[f.V[2]].Tangent = m.Vertices[f.V[2]].Tangent.Add(tangent)
	}
	for i := range m.Vertices {
		t := m.Vertices[i].Tangent
		if t.LenSq() > 0 {
			m.Vertices[i].Tangent = t.Normalize()
		}
	}
}

// IndicesFromFaces rebuilds the flat Indices buffer (TriangleList) from
// Faces, for loaders that build Faces directly (OBJ, glTF).
func (m *Mesh) IndicesFromFaces() {
	m.Topology = TriangleList
	m.Indices = make([]uint32, 0, len(m.Faces)*3)
	for _, f := range m.Faces {
		m.Indices = append(m.Indices, uint32(f.V[0]), uint32(f.V[1]), uint32(f.V[2]))
	}
}

// Clone creates a deep copy of the mesh, including materials.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Name:        m.Name,
		Vertices:    make([]Vertex, len(m.Vertices)),
		Indices:     make([]uint32, len(m.Indices)),
		Topology:    m.Topology,
		WorldMatrix: m.WorldMatrix,
		Materials:   make([]Material, len(m.Materials)),
		Faces:       make([]Face, len(m.Faces)),
		BoundsMin:   m.BoundsMin,
		BoundsMax:   m.BoundsMax,
	}
	copy(c.Vertices, m.Vertices)
	copy(c.Indices, m.Indices)
	copy(c.Materials, m.Materials)
	copy(c.Faces, m.Faces)
	return c
}

// GetFaceMaterial returns the material index for face i, or -1 if the
// face has none or the index is out of range.
func (m *Mesh) GetFaceMaterial(i int) int {
	if i < 0 || i >= len(m.Faces) {
		return -1
	}
	return m.Faces[i].Material
}

// GetMaterial returns the material at index i, or nil if i is negative
// or out of bounds.
func (m *Mesh) GetMaterial(i int) *Material {
	if i < 0 || i >= len(m.Materials) {
		return nil
	}
	return &m.Materials[i]
}

// MaterialCount returns the number of materials on this mesh.
func (m *Mesh) MaterialCount() int {
	return len(m.Materials)
}

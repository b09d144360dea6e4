package models

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/prism3d/prism/pkg/math3d"
)

// LoadOBJ parses a Wavefront .obj file and returns a Mesh with position,
// uv and normal filled in; tangents are computed from uv deltas when the
// file has vt records and stay zero otherwise. Only v/vt/vn/f records are
// understood; materials (mtllib/usemtl) are not parsed. Polygonal faces
// with more than 3 vertices are fan-triangulated.
func LoadOBJ(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("models: open %s: %w", path, err)
	}
	defer f.Close()

	var positions []math3d.Vec3
	var uvs []math3d.Vec2
	var normals []math3d.Vec3

	type ref struct{ p, t, n int } // 1-based, 0 = absent
	uniq := map[ref]int{}
	mesh := NewMesh(filepath.Base(path))

	resolve := func(r ref) int {
		if idx, ok := uniq[r]; ok {
			return idx
		}
		v := Vertex{Color: math3d.White()}
		if r.p > 0 && r.p <= len(positions) {
			v.Position = positions[r.p-1]
		}
		if r.t > 0 && r.t <= len(uvs) {
			v.UV = uvs[r.t-1]
		}
		if r.n > 0 && r.n <= len(normals) {
			v.Normal = normals[r.n-1]
		}
		idx := len(mesh.Vertices)
		mesh.Vertices = append(mesh.Vertices, v)
		uniq[r] = idx
		return idx
	}

	parseRef := func(tok string) (ref, error) {
		parts := strings.Split(tok, "/")
		var r ref
		var err error
		r.p, err = strconv.Atoi(parts[0])
		if err != nil {
			return r, fmt.Errorf("bad vertex index %q: %w", tok, err)
		}
		if len(parts) > 1 && parts[1] != "" {
			if r.t, err = strconv.Atoi(parts[1]); err != nil {
				return r, fmt.Errorf("bad uv index %q: %w", tok, err)
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			if r.n, err = strconv.Atoi(parts[2]); err != nil {
				return r, fmt.Errorf("bad normal index %q: %w", tok, err)
			}
		}
		return r, nil
	}

	scan := bufio.NewScanner(f)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			x, y, z, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			positions = append(positions, math3d.V3(x, y, z))
		case "vt":
			if len(fields) < 3 {
				return nil, fmt.Errorf("%s:%d: malformed vt", path, lineNo)
			}
			u, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			v, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			uvs = append(uvs, math3d.V2(u, v))
		case "vn":
			x, y, z, err := parseVec3(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
			}
			normals = append(normals, math3d.V3(x, y, z))
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%s:%d: face needs at least 3 vertices", path, lineNo)
			}
			refs := make([]int, 0, len(fields)-1)
			for _, tok := range fields[1:] {
				r, err := parseRef(tok)
				if err != nil {
					return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
				}
				refs = append(refs, resolve(r))
			}
			for i := 1; i+1 < len(refs); i++ {
				mesh.Faces = append(mesh.Faces, Face{
					V:        [3]int{refs[0], refs[i], refs[i+1]},
					Material: -1,
				})
			}
		}
	}
	if err := scan.Err(); err != nil {
		return nil, fmt.Errorf("models: read %s: %w", path, err)
	}

	hasNormals := len(normals) > 0
	if !hasNormals {
		mesh.CalculateSmoothNormals()
	}
	hasUVs := len(uvs) > 0
	if hasUVs {
		mesh.CalculateTangents()
	}

	mesh.IndicesFromFaces()
	mesh.CalculateBounds()
	return mesh, nil
}

func parseVec3(fields []string) (x, y, z float64, err error) {
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("expected 3 components, got %d", len(fields))
	}
	if x, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return
	}
	if y, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return
	}
	if z, err = strconv.ParseFloat(fields[2], 64); err != nil {
		return
	}
	return
}

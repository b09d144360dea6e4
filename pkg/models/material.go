package models

import "github.com/prism3d/prism/pkg/texture"

// Material describes the per-face surface parameters the pixel shader's
// diffuse/specular/gloss terms read from when a mesh carries more than
// one texture set. BaseColor is used when HasTexture is false or a map
// is nil. SpecularMap is the specular(uv) color/intensity multiplier;
// GlossMap perturbs the Phong exponent, not the specular color itself.
type Material struct {
	Name      string
	BaseColor [4]float64
	Metallic  float64
	Roughness float64

	HasTexture  bool
	DiffuseMap  *texture.Texture
	NormalMap   *texture.Texture
	GlossMap    *texture.Texture
	SpecularMap *texture.Texture
}

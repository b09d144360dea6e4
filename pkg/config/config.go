// Package config loads prism's renderer and input tunables from an
// optional TOML file, falling back to hardcoded defaults when absent.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Camera holds the free-flying camera's tunables.
type Camera struct {
	FOV       float64 `toml:"fov"`
	Near      float64 `toml:"near"`
	Far       float64 `toml:"far"`
	MoveSpeed float64 `toml:"move_speed"`
	MouseSpeed float64 `toml:"mouse_speed"`
	RotationSpeed float64 `toml:"rotation_speed"`
}

// Keys names key bindings; cmd/prismview does not read them and matches
// its fixed F4/F5/F6/F7/Esc keys instead.
type Keys struct {
	ToggleRenderMode string `toml:"toggle_render_mode"`
	ToggleColorMode  string `toml:"toggle_color_mode"`
	ToggleNormalMap  string `toml:"toggle_normal_map"`
	ToggleRotation   string `toml:"toggle_rotation"`
	Quit             string `toml:"quit"`
}

// Config is prism's full renderer configuration.
type Config struct {
	Camera Camera `toml:"camera"`
	Keys   Keys   `toml:"keys"`

	// NearVis feeds the Depth render mode's remap(z, NearVis, 1.0)
	// grayscale visualization.
	NearVis float64 `toml:"near_vis"`
}

// Default returns the hardcoded configuration used when no TOML file is
// present, matching the camera package's own defaults.
func Default() Config {
	return Config{
		Camera: Camera{
			FOV:           45.0,
			Near:          0.1,
			Far:           100.0,
			MoveSpeed:     7.0,
			MouseSpeed:    2.0,
			RotationSpeed: 5.0,
		},
		Keys: Keys{
			ToggleRenderMode: "F4",
			ToggleColorMode:  "F5",
			ToggleNormalMap:  "F6",
			ToggleRotation:   "F7",
			Quit:             "Esc",
		},
		NearVis: 0.985,
	}
}

// Load reads a TOML config file at path, starting from Default and
// overwriting only the fields present in the file. A missing file is not
// an error: it returns Default() unchanged, since prism runs fine with
// no config file present.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML.
func Save(cfg Config, path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

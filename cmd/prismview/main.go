// prismview - Terminal 3D Model Viewer
// View OBJ and GLB files in a terminal with full software rasterization.
//
// Controls:
//
//	WASD / arrows  - Move camera
//	Mouse          - Look around (left drag dollies, right drag turns in place)
//	F4             - Cycle render mode (Texture / Depth / Wireframe)
//	F5             - Cycle color mode (ObservedArea / Diffuse / Specular / FinalColor)
//	F6             - Toggle normal mapping
//	F7             - Toggle auto-rotation
//	Esc            - Quit
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/harmonica"
	uv "github.com/charmbracelet/ultraviolet"
	"charm.land/lipgloss/v2"

	"github.com/prism3d/prism/pkg/camera"
	"github.com/prism3d/prism/pkg/config"
	"github.com/prism3d/prism/pkg/math3d"
	"github.com/prism3d/prism/pkg/models"
	"github.com/prism3d/prism/pkg/raster"
	"github.com/prism3d/prism/pkg/texture"
)

var (
	meshFlag     = flag.String("mesh", "", "Path to mesh file (.obj, .gltf, .glb)")
	textureFlag  = flag.String("texture", "", "Path to texture image (PNG/JPG), overrides any embedded texture")
	configFlag   = flag.String("config", "", "Path to an optional prism.toml")
	headlessFlag = flag.Bool("headless", false, "Render one frame to -out and exit, no terminal")
	outFlag      = flag.String("out", "prism.png", "Output image path for -headless (.png or .bmp)")
	fpsFlag      = flag.Int("fps", 60, "Target FPS in interactive mode")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *meshFlag == "" {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prismview: %v\n", err)
		os.Exit(1)
	}

	mesh, tex, err := loadScene(*meshFlag, *textureFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "prismview: %v\n", err)
		os.Exit(1)
	}

	if *headlessFlag {
		if err := runHeadless(mesh, tex, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "prismview: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runInteractive(mesh, tex, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "prismview: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "prismview -mesh <model.obj|model.glb> [-texture img] [-config prism.toml] [-headless -out out.png]")
	flag.PrintDefaults()
}

// loadScene loads a mesh (OBJ or glTF/GLB), recentering and rescaling it
// to fit within a unit-ish cube, and resolves the texture to use: the
// explicit -texture flag, falling back to an embedded glTF texture, and
// finally a procedural checkerboard.
func loadScene(meshPath, texturePath string) (*models.Mesh, *texture.Texture, error) {
	ext := strings.ToLower(filepath.Ext(meshPath))

	var mesh *models.Mesh
	var embedded image.Image
	var err error

	switch ext {
	case ".glb", ".gltf":
		mesh, embedded, err = models.LoadGLBWithTexture(meshPath)
	case ".obj":
		mesh, err = models.LoadOBJ(meshPath)
	default:
		return nil, nil, fmt.Errorf("unsupported mesh format %q (use .obj, .gltf, or .glb)", ext)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load mesh: %w", err)
	}

	center := mesh.Center()
	size := mesh.Size()
	maxDim := math.Max(size.X, math.Max(size.Y, size.Z))
	if maxDim > 0 {
		scale := 2.0 / maxDim
		mesh.WorldMatrix = math3d.ScaleUniform(scale).Mul(math3d.Translate(center.Negate()))
	}

	var tex *texture.Texture
	switch {
	case texturePath != "":
		tex, err = texture.Load(texturePath)
		if err != nil {
			return nil, nil, fmt.Errorf("load texture: %w", err)
		}
	case embedded != nil:
		tex = texture.FromImage(embedded)
	default:
		tex = texture.Checker(64, 64, 8, math3d.RGB(0.8, 0.8, 0.8), math3d.RGB(0.4, 0.4, 0.4))
	}

	for i := range mesh.Materials {
		if mesh.Materials[i].DiffuseMap == nil {
			mesh.Materials[i].DiffuseMap = tex
		}
	}
	if len(mesh.Materials) == 0 {
		mesh.Materials = []models.Material{{Name: "default", HasTexture: true, DiffuseMap: tex, BaseColor: [4]float64{1, 1, 1, 1}}}
		for i := range mesh.Faces {
			mesh.Faces[i].Material = 0
		}
	}

	return mesh, tex, nil
}

// runHeadless renders exactly one frame and writes it to -out, with no
// terminal dependency, for scripted/CI use.
func runHeadless(mesh *models.Mesh, tex *texture.Texture, cfg config.Config) error {
	const w, h = 320, 240
	fb := raster.NewFramebuffer(w, h)
	fb.Clear(raster.RGB(30, 30, 40))

	cam := camera.New(math3d.V3(0, 0, 5), float64(w)/float64(h))
	cam.SetYawPitch(180, 0)
	cam.FOV = cfg.Camera.FOV
	cam.Near = cfg.Camera.Near
	cam.Far = cfg.Camera.Far

	rast := raster.NewRasterizer(cam, fb)
	rast.NearVis = cfg.NearVis
	rast.ClearDepth()
	rast.DrawMesh(mesh)

	if strings.HasSuffix(strings.ToLower(*outFlag), ".bmp") {
		return fb.SaveBMP(*outFlag)
	}
	return fb.SavePNG(*outFlag)
}

// rotationEase smooths the Rotation toggle's angular velocity with a
// critically damped spring so F7 eases in/out instead of snapping
// straight to the full 50 deg/s.
type rotationEase struct {
	spring   harmonica.Spring
	velocity float64
	accel    float64
}

func newRotationEase(fps int) *rotationEase {
	return &rotationEase{spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0)}
}

func (e *rotationEase) Update(target float64) float64 {
	e.velocity, e.accel = e.spring.Update(e.velocity, e.accel, target)
	return e.velocity
}

func runInteractive(mesh *models.Mesh, tex *texture.Texture, cfg config.Config) error {
	term := uv.DefaultTerminal()

	termWidth, termHeight, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(termWidth, termHeight)

	fmt.Fprint(os.Stdout, "\x1b[?1003h\x1b[?1006h")
	cleanup := func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}
	defer cleanup()

	fbHeight := termHeight * 2
	fb := raster.NewFramebuffer(termWidth, fbHeight)
	grid := newCellGrid(termWidth, termHeight)

	cam := camera.New(math3d.V3(0, 0, 5), float64(termWidth)/float64(fbHeight))
	cam.SetYawPitch(180, 0)
	cam.FOV = cfg.Camera.FOV
	cam.Near = cfg.Camera.Near
	cam.Far = cfg.Camera.Far
	cam.MoveSpeed = cfg.Camera.MoveSpeed
	cam.MouseMoveSpeed = cfg.Camera.MouseSpeed
	cam.RotationSpeed = cfg.Camera.RotationSpeed

	rast := raster.NewRasterizer(cam, fb)
	rast.NearVis = cfg.NearVis
	ease := newRotationEase(*fpsFlag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	var in camera.Input
	var mouseDown, rightDown bool
	var lastMouseX, lastMouseY int

	go func() {
		for ev := range term.Events() {
			switch ev := ev.(type) {
			case uv.WindowSizeEvent:
				termWidth, termHeight = ev.Width, ev.Height
				term.Erase()
				term.Resize(termWidth, termHeight)
				fbHeight = termHeight * 2
				fb = raster.NewFramebuffer(termWidth, fbHeight)
				grid = newCellGrid(termWidth, termHeight)
				cam.SetAspect(float64(termWidth) / float64(fbHeight))
				rast = raster.NewRasterizer(cam, fb)
				rast.NearVis = cfg.NearVis

			case uv.KeyPressEvent:
				switch {
				case ev.MatchString("escape"):
					cancel()
					return
				case ev.MatchString("ctrl+c"):
					cancel()
					return
				case ev.MatchString("w", "up"):
					in.MoveForward = true
				case ev.MatchString("s", "down"):
					in.MoveBack = true
				case ev.MatchString("d", "right"):
					in.MoveRight = true
				case ev.MatchString("a", "left"):
					in.MoveLeft = true
				case ev.MatchString("f4"):
					rast.CycleRenderMode()
				case ev.MatchString("f5"):
					rast.CycleColorMode()
				case ev.MatchString("f6"):
					rast.ToggleNormalMap()
				case ev.MatchString("f7"):
					rast.ToggleRotation()
				}

			case uv.KeyReleaseEvent:
				switch {
				case ev.MatchString("w"), ev.MatchString("up"):
					in.MoveForward = false
				case ev.MatchString("s"), ev.MatchString("down"):
					in.MoveBack = false
				case ev.MatchString("d"), ev.MatchString("right"):
					in.MoveRight = false
				case ev.MatchString("a"), ev.MatchString("left"):
					in.MoveLeft = false
				}

			case uv.MouseClickEvent:
				lastMouseX, lastMouseY = ev.X, ev.Y
				if ev.Button == uv.MouseRight {
					rightDown = true
				} else {
					mouseDown = true
				}

			case uv.MouseReleaseEvent:
				mouseDown = false
				rightDown = false

			case uv.MouseMotionEvent:
				in.MouseDX = float64(ev.X - lastMouseX)
				in.MouseDY = float64(ev.Y - lastMouseY)
				lastMouseX, lastMouseY = ev.X, ev.Y
				switch {
				case rightDown:
					in.Buttons = camera.MouseRight
				case mouseDown:
					in.Buttons = camera.MouseLeft
				default:
					in.Buttons = 0
				}
			}
		}
	}()

	targetDuration := time.Second / time.Duration(*fpsFlag)
	lastFrame := time.Now()
	var fpsFrames int
	var fps float64
	fpsWindowStart := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		now := time.Now()
		dt := now.Sub(lastFrame).Seconds()
		lastFrame = now
		if dt > 0.1 {
			dt = 0.1
		}

		cam.Update(dt, in)
		in.MouseDX, in.MouseDY = 0, 0
		rast.InvalidateFrustum()

		target := 0.0
		if rast.RotationEnabled {
			target = 50.0
		}
		degPerSec := ease.Update(target)
		mesh.WorldMatrix = math3d.RotateY(degPerSec * dt * math.Pi / 180).Mul(mesh.WorldMatrix)

		fb.Clear(raster.RGB(30, 30, 40))
		rast.ClearDepth()
		rast.DrawMesh(mesh)

		area := uv.Rectangle{Max: uv.Position{X: termWidth, Y: termHeight}}
		fb.Draw(grid, area)
		grid.flush(os.Stdout)

		fpsFrames++
		if elapsed := time.Since(fpsWindowStart); elapsed >= time.Second {
			fps = float64(fpsFrames) / elapsed.Seconds()
			fpsFrames = 0
			fpsWindowStart = time.Now()
		}
		printHUD(termWidth, fps, rast)

		elapsed := time.Since(now)
		if elapsed < targetDuration {
			time.Sleep(targetDuration - elapsed)
		}
	}
}

var hudStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("0"))

func printHUD(width int, fps float64, rast *raster.Rasterizer) {
	modeNames := [...]string{"Texture", "Depth", "Wireframe"}
	colorNames := [...]string{"ObservedArea", "Diffuse", "Specular", "FinalColor"}
	line := fmt.Sprintf(" %.0f FPS  mode=%s  color=%s  normalmap=%v  rotate=%v ",
		fps, modeNames[rast.Mode], colorNames[rast.Color], rast.NormalMapEnabled, rast.RotationEnabled)
	fmt.Fprint(os.Stdout, "\x1b[1;1H\x1b[2K"+hudStyle.Render(line))
}

// cellGrid is a minimal uv.Screen implementation that buffers cells and
// flushes them as one escape-coded write per frame, independent of
// whichever higher-level screen-sync helper ultraviolet's own Terminal
// type may or may not expose.
type cellGrid struct {
	width, height int
	cells         []*uv.Cell
}

func newCellGrid(width, height int) *cellGrid {
	return &cellGrid{width: width, height: height, cells: make([]*uv.Cell, width*height)}
}

func (g *cellGrid) SetCell(x, y int, c *uv.Cell) {
	if x < 0 || x >= g.width || y < 0 || y >= g.height {
		return
	}
	g.cells[y*g.width+x] = c
}

func (g *cellGrid) flush(w io.Writer) {
	var b strings.Builder
	b.WriteString("\x1b[2;1H")
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			c := g.cells[y*g.width+x]
			if c == nil {
				b.WriteString(" ")
				continue
			}
			fr, fgc, fb, _ := colorBytes(c.Style.Fg)
			br, bg, bb, _ := colorBytes(c.Style.Bg)
			fmt.Fprintf(&b, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm%s", fr, fgc, fb, br, bg, bb, c.Content)
		}
		b.WriteString("\x1b[0m\r\n")
	}
	io.WriteString(w, b.String())
}

func colorBytes(c interface{ RGBA() (r, g, b, a uint32) }) (r, gr, bl, a uint8) {
	if c == nil {
		return 0, 0, 0, 0
	}
	rr, gg, bb, aa := c.RGBA()
	return uint8(rr >> 8), uint8(gg >> 8), uint8(bb >> 8), uint8(aa >> 8)
}

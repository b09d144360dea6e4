// Package camera implements the free-flying camera driving prism's view
// and projection matrices.
package camera

import (
	"math"

	"github.com/prism3d/prism/pkg/math3d"
)

// MouseButton is a bitmask of the pressed mouse buttons reported by the
// input collaborator since the last poll.
type MouseButton int

const (
	MouseLeft MouseButton = 1 << iota
	MouseRight
	MouseX2
)

// Input is the polled per-frame state the camera consumes. Keyboard and
// mouse polling themselves are external collaborators; this is only the
// shape the camera expects them in.
type Input struct {
	MoveForward, MoveBack bool
	MoveRight, MoveLeft   bool
	MouseDX, MouseDY      float64
	Buttons               MouseButton
}

const (
	moveSpeed      = 7.0
	mouseMoveSpeed = 2.0
	rotationSpeed  = 5.0 // degrees per unit of mouse delta
	toRadians      = math.Pi / 180
	defaultFOV     = 45.0
	defaultNear    = 0.1
	defaultFar     = 100.0
)

// Camera holds origin, orientation, and the projection parameters, and
// derives the view/inverse-view/projection matrices from them.
type Camera struct {
	Origin math3d.Vec3

	// totalPitch/totalYaw are stored in degrees; rotation matrices apply
	// the toRadians conversion exactly once when they are built. Storing
	// and re-converting radians as if they were degrees is the unit bug
	// this design explicitly avoids.
	totalPitch float64
	totalYaw   float64

	Forward math3d.Vec3
	Up      math3d.Vec3
	Right   math3d.Vec3

	FOV    float64 // horizontal FOV in degrees
	Aspect float64
	Near   float64
	Far    float64

	MoveSpeed      float64
	MouseMoveSpeed float64
	RotationSpeed  float64

	invViewMatrix math3d.Mat4
	viewMatrix    math3d.Mat4
	projMatrix    math3d.Mat4
	viewDirty     bool
	projDirty     bool
}

// New creates a camera at the given origin looking down +Z.
func New(origin math3d.Vec3, aspect float64) *Camera {
	c := &Camera{
		Origin:         origin,
		FOV:            defaultFOV,
		Aspect:         aspect,
		Near:           defaultNear,
		Far:            defaultFar,
		MoveSpeed:      moveSpeed,
		MouseMoveSpeed: mouseMoveSpeed,
		RotationSpeed:  rotationSpeed,
		viewDirty:      true,
		projDirty:      true,
	}
	c.updateOrientation()
	return c
}

// SetAspect sets the aspect ratio, invalidating the projection matrix.
func (c *Camera) SetAspect(aspect float64) {
	c.Aspect = aspect
	c.projDirty = true
}

// Update advances the camera by one frame given elapsed time dt and the
// polled input state.
func (c *Camera) Update(dt float64, in Input) {
	if in.MoveForward {
		c.Origin = c.Origin.Add(c.Forward.Scale(c.MoveSpeed * dt))
	}
	if in.MoveBack {
		c.Origin = c.Origin.Sub(c.Forward.Scale(c.MoveSpeed * dt))
	}
	if in.MoveRight {
		c.Origin = c.Origin.Add(c.Right.Scale(c.MoveSpeed * dt))
	}
	if in.MoveLeft {
		c.Origin = c.Origin.Sub(c.Right.Scale(c.MoveSpeed * dt))
	}

	switch in.Buttons {
	case MouseLeft:
		c.Origin = c.Origin.Sub(c.Forward.Scale(in.MouseDY * c.MouseMoveSpeed * dt))
		c.totalYaw += in.MouseDX * c.RotationSpeed
	case MouseRight:
		c.totalYaw += in.MouseDX * c.RotationSpeed
		c.totalPitch -= in.MouseDY * c.RotationSpeed
	case MouseX2:
		c.Origin = c.Origin.Add(c.Up.Scale(in.MouseDY * c.MouseMoveSpeed * dt))
	}

	c.updateOrientation()
	c.viewDirty = true
}

// updateOrientation rebuilds forward/right/up from totalPitch/totalYaw.
func (c *Camera) updateOrientation() {
	rot := math3d.RotateX(c.totalPitch * toRadians).Mul(math3d.RotateY(c.totalYaw * toRadians))
	c.Forward = rot.MulVec3Dir(math3d.V3(0, 0, 1)).Normalize()
	c.Right = math3d.Up().Cross(c.Forward).Normalize()
	c.Up = c.Forward.Cross(c.Right)
}

// SetYawPitch forces an absolute orientation, in degrees. Used by tests
// and by scripted camera placement.
func (c *Camera) SetYawPitch(yaw, pitch float64) {
	c.totalYaw = yaw
	c.totalPitch = pitch
	c.updateOrientation()
	c.viewDirty = true
}

// ViewMatrix returns the cached view matrix, rebuilding it if dirty.
func (c *Camera) ViewMatrix() math3d.Mat4 {
	if c.viewDirty {
		c.invViewMatrix = math3d.Basis(c.Right, c.Up, c.Forward, c.Origin)
		c.viewMatrix = c.invViewMatrix.InverseRigid()
		c.viewDirty = false
	}
	return c.viewMatrix
}

// InverseViewMatrix returns the cached inverse-view (camera-to-world)
// matrix, rebuilding it if dirty.
func (c *Camera) InverseViewMatrix() math3d.Mat4 {
	c.ViewMatrix()
	return c.invViewMatrix
}

// ProjectionMatrix returns the cached projection matrix, rebuilding it if
// dirty.
func (c *Camera) ProjectionMatrix() math3d.Mat4 {
	if c.projDirty {
		c.projMatrix = math3d.Perspective(c.FOV, c.Aspect, c.Near, c.Far)
		c.projDirty = false
	}
	return c.projMatrix
}

// ViewProjectionMatrix returns view * projection composed for the vertex
// processor's WVP.
func (c *Camera) ViewProjectionMatrix() math3d.Mat4 {
	return c.ProjectionMatrix().Mul(c.ViewMatrix())
}

// WorldToScreen projects a world point to screen pixel coordinates,
// returning ok=false when the point falls outside NDC (used by the
// wireframe debug renderer, which does its own per-segment visibility
// check rather than going through the triangle rasterizer).
func (c *Camera) WorldToScreen(world math3d.Vec3, screenWidth, screenHeight int) (x, y, depth float64, ok bool) {
	clip := c.ViewProjectionMatrix().MulVec4(math3d.V4FromV3(world, 1))
	if clip.W <= 0 {
		return 0, 0, 0, false
	}
	ndc := clip.PerspectiveDivide()
	if ndc.X < -1 || ndc.X > 1 || ndc.Y < -1 || ndc.Y > 1 {
		return 0, 0, 0, false
	}
	x = (ndc.X + 1) * 0.5 * float64(screenWidth)
	y = (1 - ndc.Y) * 0.5 * float64(screenHeight)
	return x, y, ndc.Z, true
}

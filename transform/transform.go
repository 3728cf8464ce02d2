// Package transform provides local and world transforms for entities and
// the parent/child hierarchy that connects them.
package transform

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Epsilon is the tolerance used by ApproxEqual.
const Epsilon = 1e-6

var (
	axisX = mgl64.Vec3{1, 0, 0}
	axisY = mgl64.Vec3{0, 1, 0}
	axisZ = mgl64.Vec3{0, 0, 1}
)

// Transform is the local placement of an entity relative to its parent, or
// to the world for entities without a Parent.
//
// A zero Rotation is read as the identity rotation. Scale is used as given.
type Transform struct {
	Translation mgl64.Vec3 `yaml:"translation" toml:"translation" json:"translation"`
	Rotation    mgl64.Quat `yaml:"rotation" toml:"rotation" json:"rotation"`
	Scale       mgl64.Vec3 `yaml:"scale" toml:"scale" json:"scale"`
}

// Identity returns a transform at the origin with unit scale.
func Identity() Transform {
	return Transform{
		Rotation: mgl64.QuatIdent(),
		Scale:    mgl64.Vec3{1, 1, 1},
	}
}

// NewTransform builds a transform from its parts.
func NewTransform(translation mgl64.Vec3, rotation mgl64.Quat, scale mgl64.Vec3) Transform {
	return Transform{Translation: translation, Rotation: rotation, Scale: scale}
}

// FromTranslation is Identity moved to v.
func FromTranslation(v mgl64.Vec3) Transform {
	t := Identity()
	t.Translation = v
	return t
}

func (t *Transform) rotation() mgl64.Quat {
	if t.Rotation.W == 0 && t.Rotation.V == (mgl64.Vec3{}) {
		return mgl64.QuatIdent()
	}
	return t.Rotation
}

// Matrix returns translation * rotation * scale.
func (t *Transform) Matrix() mgl64.Mat4 {
	return mgl64.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(t.rotation().Mat4()).
		Mul4(mgl64.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

// ViewMatrix is the inverse of the transform's rotation and translation,
// ignoring scale. It is the world-to-camera matrix for a camera entity.
func (t *Transform) ViewMatrix() mgl64.Mat4 {
	inv := t.rotation().Conjugate().Mat4()
	return inv.Mul4(mgl64.Translate3D(-t.Translation[0], -t.Translation[1], -t.Translation[2]))
}

// SetTranslation moves the transform to v.
func (t *Transform) SetTranslation(v mgl64.Vec3) *Transform {
	t.Translation = v
	return t
}

// Translate moves the transform by v in parent space.
func (t *Transform) Translate(v mgl64.Vec3) *Transform {
	t.Translation = t.Translation.Add(v)
	return t
}

// TranslateLocal moves the transform by v along its own axes.
func (t *Transform) TranslateLocal(v mgl64.Vec3) *Transform {
	t.Translation = t.Translation.Add(t.rotation().Rotate(v))
	return t
}

// SetRotationEuler sets the rotation from angles in radians about X, Y and
// Z, applied in that order.
func (t *Transform) SetRotationEuler(x, y, z float64) *Transform {
	t.Rotation = mgl64.AnglesToQuat(x, y, z, mgl64.XYZ).Normalize()
	return t
}

// Rotate applies q on top of the current rotation, in parent space.
func (t *Transform) Rotate(q mgl64.Quat) *Transform {
	t.Rotation = q.Mul(t.rotation()).Normalize()
	return t
}

// RotateLocal applies q about the transform's own axes.
func (t *Transform) RotateLocal(q mgl64.Quat) *Transform {
	t.Rotation = t.rotation().Mul(q).Normalize()
	return t
}

// RotateX rotates by angle radians about the local X axis.
func (t *Transform) RotateX(angle float64) *Transform {
	return t.RotateLocal(mgl64.QuatRotate(angle, axisX))
}

// RotateY rotates by angle radians about the local Y axis.
func (t *Transform) RotateY(angle float64) *Transform {
	return t.RotateLocal(mgl64.QuatRotate(angle, axisY))
}

// RotateZ rotates by angle radians about the local Z axis.
func (t *Transform) RotateZ(angle float64) *Transform {
	return t.RotateLocal(mgl64.QuatRotate(angle, axisZ))
}

// FaceTowards turns the transform so its forward axis (-Z) points at target,
// keeping up as close to its local +Y as possible. Degenerate inputs
// (target at the translation, or up parallel to the view direction) leave
// the rotation unchanged.
func (t *Transform) FaceTowards(target, up mgl64.Vec3) *Transform {
	forward := target.Sub(t.Translation)
	if forward.Len() < Epsilon {
		return t
	}
	if forward.Normalize().Cross(up.Normalize()).Len() < Epsilon {
		return t
	}
	view := mgl64.LookAtV(t.Translation, target, up)
	t.Rotation = mgl64.Mat4ToQuat(view.Inv()).Normalize()
	return t
}

// Forward returns the direction of the local -Z axis.
func (t *Transform) Forward() mgl64.Vec3 {
	return t.rotation().Rotate(mgl64.Vec3{0, 0, -1})
}

// SetScale sets the scale on all three axes.
func (t *Transform) SetScale(v mgl64.Vec3) *Transform {
	t.Scale = v
	return t
}

// ApproxEqual compares two transforms component-wise within Epsilon. q and
// -q describe the same rotation and compare equal.
func (t Transform) ApproxEqual(o Transform) bool {
	if !near(t.Translation[:], o.Translation[:]) || !near(t.Scale[:], o.Scale[:]) {
		return false
	}
	return math.Abs(t.rotation().Dot(o.rotation())) >= 1-Epsilon
}

// GlobalTransform is the world matrix of an entity, computed by
// TransformSystem from the entity's Transform and its ancestors.
type GlobalTransform struct {
	Matrix mgl64.Mat4 `yaml:"matrix" toml:"matrix" json:"matrix"`
}

// IdentityGlobal returns a GlobalTransform holding the identity matrix.
func IdentityGlobal() GlobalTransform {
	return GlobalTransform{Matrix: mgl64.Ident4()}
}

// Translation returns the world position.
func (g GlobalTransform) Translation() mgl64.Vec3 {
	return mgl64.Vec3{g.Matrix[12], g.Matrix[13], g.Matrix[14]}
}

// ApproxEqual compares two world matrices element-wise within Epsilon.
func (g GlobalTransform) ApproxEqual(o GlobalTransform) bool {
	return near(g.Matrix[:], o.Matrix[:])
}

// near compares element-wise with an absolute tolerance, so a computed
// -2e-16 equals an exact zero.
func near(a, b []float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) > Epsilon {
			return false
		}
	}
	return true
}

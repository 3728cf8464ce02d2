package transform_test

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"

	"github.com/plus3/ecscore/transform"
)

func vecNear(t *testing.T, want, got mgl64.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "want %v, got %v", want, got)
	}
}

func matNear(t *testing.T, want, got mgl64.Mat4) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "element %d: want %v, got %v", i, want, got)
	}
}

func TestIdentityMatrix(t *testing.T) {
	tr := transform.Identity()
	matNear(t, mgl64.Ident4(), tr.Matrix())
}

func TestZeroRotationIsIdentity(t *testing.T) {
	tr := transform.Transform{Scale: mgl64.Vec3{1, 1, 1}}
	matNear(t, mgl64.Ident4(), tr.Matrix())
	assert.True(t, tr.ApproxEqual(transform.Identity()))
}

func TestMatrixComposition(t *testing.T) {
	tr := transform.FromTranslation(mgl64.Vec3{1, 2, 3})
	tr.SetScale(mgl64.Vec3{2, 2, 2}).RotateZ(math.Pi / 2)

	p := tr.Matrix().Mul4x1(mgl64.Vec4{1, 0, 0, 1})
	vecNear(t, mgl64.Vec3{1, 4, 3}, p.Vec3())
}

func TestTranslateLocalFollowsRotation(t *testing.T) {
	tr := transform.Identity()
	tr.RotateY(math.Pi / 2)
	tr.TranslateLocal(mgl64.Vec3{0, 0, -1})
	vecNear(t, mgl64.Vec3{-1, 0, 0}, tr.Translation)

	tr.Translate(mgl64.Vec3{0, 0, -1})
	vecNear(t, mgl64.Vec3{-1, 0, -1}, tr.Translation)
}

func TestSetRotationEuler(t *testing.T) {
	a := transform.Identity()
	a.SetRotationEuler(0, 0, math.Pi/2)

	b := transform.Identity()
	b.RotateZ(math.Pi / 2)

	assert.True(t, a.ApproxEqual(b))
}

func TestRotateAppliesInParentSpace(t *testing.T) {
	tr := transform.Identity()
	tr.Rotate(mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 1, 0}))
	vecNear(t, mgl64.Vec3{-1, 0, 0}, tr.Forward())
}

func TestFaceTowards(t *testing.T) {
	tr := transform.Identity()
	tr.FaceTowards(mgl64.Vec3{5, 0, 0}, mgl64.Vec3{0, 1, 0})
	vecNear(t, mgl64.Vec3{1, 0, 0}, tr.Forward())

	tr.SetTranslation(mgl64.Vec3{0, 0, 3})
	tr.FaceTowards(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 1, 0})
	vecNear(t, mgl64.Vec3{0, 0, -1}, tr.Forward())

	before := tr.Rotation
	tr.FaceTowards(tr.Translation, mgl64.Vec3{0, 1, 0})
	assert.Equal(t, before, tr.Rotation, "degenerate target leaves rotation alone")
}

func TestViewMatrixInvertsPlacement(t *testing.T) {
	tr := transform.FromTranslation(mgl64.Vec3{3, -1, 2})
	tr.RotateX(0.3).RotateY(1.2)

	product := tr.ViewMatrix().Mul4(tr.Matrix())
	matNear(t, mgl64.Ident4(), product)
}

func TestApproxEqualTreatsNegatedQuaternionAsSame(t *testing.T) {
	a := transform.Identity()
	a.RotateZ(1)
	b := a
	b.Rotation = mgl64.Quat{W: -a.Rotation.W, V: a.Rotation.V.Mul(-1)}

	assert.True(t, a.ApproxEqual(b))

	b.Translation = mgl64.Vec3{0, 0, 1}
	assert.False(t, a.ApproxEqual(b))
}

func TestGlobalTransform(t *testing.T) {
	tr := transform.FromTranslation(mgl64.Vec3{4, 5, 6})
	g := transform.GlobalTransform{Matrix: tr.Matrix()}

	vecNear(t, mgl64.Vec3{4, 5, 6}, g.Translation())
	assert.True(t, g.ApproxEqual(g))
	assert.False(t, g.ApproxEqual(transform.IdentityGlobal()))
}

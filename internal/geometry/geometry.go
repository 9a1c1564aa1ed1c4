// Package geometry provides the 3D math used by the particle filter likelihood.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Splat returns a point with all three components set to v.
func Splat(v float64) Point3D {
	return Point3D{X: v, Y: v, Z: v}
}

// Add returns p + q.
func (p Point3D) Add(q Point3D) Point3D {
	return Point3D{X: p.X + q.X, Y: p.Y + q.Y, Z: p.Z + q.Z}
}

// Sub returns p - q.
func (p Point3D) Sub(q Point3D) Point3D {
	return Point3D{X: p.X - q.X, Y: p.Y - q.Y, Z: p.Z - q.Z}
}

// Mul returns the component-wise product of p and q.
func (p Point3D) Mul(q Point3D) Point3D {
	return Point3D{X: p.X * q.X, Y: p.Y * q.Y, Z: p.Z * q.Z}
}

// Scale returns p with every component multiplied by f.
func (p Point3D) Scale(f float64) Point3D {
	return Point3D{X: p.X * f, Y: p.Y * f, Z: p.Z * f}
}

// Min returns the component-wise minimum of p and q.
func Min(p, q Point3D) Point3D {
	return Point3D{X: math.Min(p.X, q.X), Y: math.Min(p.Y, q.Y), Z: math.Min(p.Z, q.Z)}
}

// Max returns the component-wise maximum of p and q.
func Max(p, q Point3D) Point3D {
	return Point3D{X: math.Max(p.X, q.X), Y: math.Max(p.Y, q.Y), Z: math.Max(p.Z, q.Z)}
}

// WeightedSquaredDistance returns sum(w_i * (a_i - b_i)^2).
func WeightedSquaredDistance(a, b, w Point3D) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dz := a.Z - b.Z
	return w.X*dx*dx + w.Y*dy*dy + w.Z*dz*dz
}

// RotationMatrix fills dst with the rotation built from the aerospace
// (Z-Y-X) Euler angles: phi about x, theta about y and psi about z.
// A nil dst allocates a new 3x3 matrix.
func RotationMatrix(dst *mat.Dense, phi, theta, psi float64) *mat.Dense {
	if dst == nil {
		dst = mat.NewDense(3, 3, nil)
	}

	sphi, cphi := math.Sincos(phi)
	stheta, ctheta := math.Sincos(theta)
	spsi, cpsi := math.Sincos(psi)

	dst.Set(0, 0, ctheta*cpsi)
	dst.Set(0, 1, -cphi*spsi+sphi*stheta*cpsi)
	dst.Set(0, 2, sphi*spsi+cphi*stheta*cpsi)

	dst.Set(1, 0, ctheta*spsi)
	dst.Set(1, 1, cphi*cpsi+sphi*stheta*spsi)
	dst.Set(1, 2, -sphi*cpsi+cphi*stheta*spsi)

	dst.Set(2, 0, -stheta)
	dst.Set(2, 1, sphi*ctheta)
	dst.Set(2, 2, cphi*ctheta)

	return dst
}

// Rotation applies a rotation matrix to points using preallocated
// buffers, so repeated Set/Apply calls do not allocate.
// A Rotation is not safe for concurrent use.
type Rotation struct {
	m   *mat.Dense
	in  *mat.VecDense
	out *mat.VecDense
}

// NewRotation returns the identity rotation.
func NewRotation() *Rotation {
	r := &Rotation{
		m:   mat.NewDense(3, 3, nil),
		in:  mat.NewVecDense(3, nil),
		out: mat.NewVecDense(3, nil),
	}
	r.Set(0, 0, 0)
	return r
}

// Set rebuilds the matrix from the three Euler angles.
func (r *Rotation) Set(phi, theta, psi float64) {
	RotationMatrix(r.m, phi, theta, psi)
}

// Matrix exposes the current rotation matrix.
func (r *Rotation) Matrix() mat.Matrix {
	return r.m
}

// Apply returns M·p.
func (r *Rotation) Apply(p Point3D) Point3D {
	r.in.SetVec(0, p.X)
	r.in.SetVec(1, p.Y)
	r.in.SetVec(2, p.Z)
	r.out.MulVec(r.m, r.in)
	return Point3D{X: r.out.AtVec(0), Y: r.out.AtVec(1), Z: r.out.AtVec(2)}
}

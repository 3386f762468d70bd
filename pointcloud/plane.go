package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MinPlanePoints is the smallest number of points that determines a plane.
const MinPlanePoints = 3

// Plane is the least squares fit z = A*x + B*y + C.
type Plane struct {
	A, B, C float64
}

// Flatness is 1 / (A² + B² + 1), the squared cosine between the plane normal and the vertical axis.
// It is 1 for a horizontal plane and falls toward 0 as the plane tilts. It says nothing about
// how well the plane fits its points.
func (p Plane) Flatness() float64 {
	return 1 / (p.A*p.A + p.B*p.B + 1)
}

// Normal returns the upward unit normal of the plane.
func (p Plane) Normal() r3.Vector {
	return r3.Vector{X: -p.A, Y: -p.B, Z: 1}.Normalize()
}

// Height returns the height of the plane above (x, y).
func (p Plane) Height(x, y float64) float64 {
	return p.A*x + p.B*y + p.C
}

// FitPlane solves the linear least squares problem z ≈ a*x + b*y + c over the points of cloud
// named by indices. A column pivoting free QR factorization is tried first; when the design
// matrix is singular to working precision (for example every point shares the same x) the
// minimum norm solution is taken from a rank revealing SVD instead. Ill conditioned but
// solvable configurations return the QR solution as is.
func FitPlane(cloud Vectors, indices []int) (Plane, error) {
	n := len(indices)
	if n < MinPlanePoints {
		return Plane{}, errors.Errorf("need at least %d points to fit a plane, got %d", MinPlanePoints, n)
	}

	design := mat.NewDense(n, 3, nil)
	target := mat.NewVecDense(n, nil)
	for row, idx := range indices {
		if idx < 0 || idx >= len(cloud) {
			return Plane{}, errors.Errorf("point index %d out of range [0, %d)", idx, len(cloud))
		}
		pt := cloud[idx]
		design.Set(row, 0, pt.X)
		design.Set(row, 1, pt.Y)
		design.Set(row, 2, 1)
		target.SetVec(row, pt.Z)
	}

	var qr mat.QR
	qr.Factorize(design)
	var coeffs mat.VecDense
	err := qr.SolveVecTo(&coeffs, false, target)
	var cond mat.Condition
	switch {
	case err == nil:
	case errors.As(err, &cond) && !math.IsInf(float64(cond), 1) && finiteVec(&coeffs):
		// near singular but solved; accepted as a best effort fit
	default:
		return fitPlaneSVD(design, target)
	}
	return Plane{A: coeffs.AtVec(0), B: coeffs.AtVec(1), C: coeffs.AtVec(2)}, nil
}

// singularValueTolerance is the relative size below which singular values are treated as zero.
const singularValueTolerance = 1e-10

func fitPlaneSVD(design *mat.Dense, target *mat.VecDense) (Plane, error) {
	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return Plane{}, errors.New("plane fit: SVD factorization failed")
	}
	rank := svd.Rank(singularValueTolerance)
	if rank == 0 {
		return Plane{}, errors.New("plane fit: design matrix has rank zero")
	}
	var coeffs mat.VecDense
	svd.SolveVecTo(&coeffs, target, rank)
	return Plane{A: coeffs.AtVec(0), B: coeffs.AtVec(1), C: coeffs.AtVec(2)}, nil
}

func finiteVec(v *mat.VecDense) bool {
	if v.IsEmpty() {
		return false
	}
	for i := 0; i < v.Len(); i++ {
		if x := v.AtVec(i); math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

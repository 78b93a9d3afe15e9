package tpmnonce

import (
	"fmt"
	"math/big"
)

// Point is an affine point on one of the registered curves. (0, 0) is the
// point at infinity.
type Point struct {
	X, Y *big.Int
}

// Equal reports coordinate equality.
func (p *Point) Equal(q *Point) bool {
	return p.X.Cmp(q.X) == 0 && p.Y.Cmp(q.Y) == 0
}

// ReconstructPublicKey rebuilds a public key point from its coordinates,
// rejecting anything off the curve. When sk is non-nil (calibration
// measurements ship the private scalar) the point is additionally checked
// against sk*G; a mismatch means the record itself is corrupt, which is a
// different failure from a signature that merely does not verify.
func ReconstructPublicKey(curve *Curve, x, y *big.Int, sk *big.Int) (*Point, error) {
	if !curve.group.IsOnCurve(x, y) {
		return nil, fmt.Errorf("%w: (%s, %s) on %s", ErrPointNotOnCurve,
			x.Text(16), y.Text(16), curve.Name)
	}

	pk := &Point{X: new(big.Int).Set(x), Y: new(big.Int).Set(y)}

	if sk != nil {
		gx, gy := curve.group.ScalarBaseMult(scalarBytes(curve, sk))
		if gx.Cmp(pk.X) != 0 || gy.Cmp(pk.Y) != 0 {
			return nil, fmt.Errorf("%w: sk*G != pk on %s", ErrKeyConsistency, curve.Name)
		}
	}

	return pk, nil
}

// scalarBytes reduces a scalar mod n and encodes it big-endian for the group
// arithmetic.
func scalarBytes(curve *Curve, k *big.Int) []byte {
	return new(big.Int).Mod(k, curve.Order()).Bytes()
}

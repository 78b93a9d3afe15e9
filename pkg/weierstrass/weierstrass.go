// Package weierstrass implements group arithmetic on short Weierstrass
// curves y² = x³ + ax + b over prime fields, for arbitrary a.
//
// The standard library restricts itself to a = -3; the TPM curve set also
// contains Barreto-Naehrig curves (a = 0), so the generic Jacobian formulas
// are used instead. Internally points are kept in Jacobian coordinates
// (x1, y1, z1) with x = x1/z1² and y = y1/z1³; the point at infinity is
// represented in affine form by (0, 0).
//
// This package is not constant time and must not be used for signing with
// secrets that need protection. It exists to re-run signature equations over
// already-captured measurement data.
package weierstrass

import "math/big"

// Curve describes a short Weierstrass curve together with a base point G of
// prime order N. All fields are read-only after construction.
type Curve struct {
	Name    string
	P       *big.Int // field modulus
	A       *big.Int // linear coefficient
	B       *big.Int // constant coefficient
	Gx, Gy  *big.Int // base point
	N       *big.Int // order of G
	BitSize int      // bit length of P
}

// polynomial evaluates x³ + ax + b mod p.
func (c *Curve) polynomial(x *big.Int) *big.Int {
	x3 := new(big.Int).Mul(x, x)
	x3.Add(x3, c.A)
	x3.Mul(x3, x)
	x3.Add(x3, c.B)
	return x3.Mod(x3, c.P)
}

// IsOnCurve reports whether (x, y) satisfies the curve equation. The
// conventional infinity point (0, 0) is accepted.
func (c *Curve) IsOnCurve(x, y *big.Int) bool {
	if x.Sign() == 0 && y.Sign() == 0 {
		return true
	}
	if x.Sign() < 0 || x.Cmp(c.P) >= 0 || y.Sign() < 0 || y.Cmp(c.P) >= 0 {
		return false
	}
	y2 := new(big.Int).Mul(y, y)
	y2.Mod(y2, c.P)
	return c.polynomial(x).Cmp(y2) == 0
}

// zForAffine returns the Jacobian Z value for an affine point, zero for the
// point at infinity.
func zForAffine(x, y *big.Int) *big.Int {
	z := new(big.Int)
	if x.Sign() != 0 || y.Sign() != 0 {
		z.SetInt64(1)
	}
	return z
}

func (c *Curve) affineFromJacobian(x, y, z *big.Int) (*big.Int, *big.Int) {
	if z.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}

	zinv := new(big.Int).ModInverse(z, c.P)
	zinvsq := new(big.Int).Mul(zinv, zinv)

	xOut := new(big.Int).Mul(x, zinvsq)
	xOut.Mod(xOut, c.P)
	zinvsq.Mul(zinvsq, zinv)
	yOut := new(big.Int).Mul(y, zinvsq)
	yOut.Mod(yOut, c.P)
	return xOut, yOut
}

// Add returns (x1, y1) + (x2, y2).
func (c *Curve) Add(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int) {
	z1 := zForAffine(x1, y1)
	z2 := zForAffine(x2, y2)
	return c.affineFromJacobian(c.addJacobian(x1, y1, z1, x2, y2, z2))
}

// addJacobian implements add-2007-bl from the hyperelliptic.org explicit
// formulas database.
func (c *Curve) addJacobian(x1, y1, z1, x2, y2, z2 *big.Int) (*big.Int, *big.Int, *big.Int) {
	x3, y3, z3 := new(big.Int), new(big.Int), new(big.Int)
	if z1.Sign() == 0 {
		return x3.Set(x2), y3.Set(y2), z3.Set(z2)
	}
	if z2.Sign() == 0 {
		return x3.Set(x1), y3.Set(y1), z3.Set(z1)
	}

	z1z1 := new(big.Int).Mul(z1, z1)
	z1z1.Mod(z1z1, c.P)
	z2z2 := new(big.Int).Mul(z2, z2)
	z2z2.Mod(z2z2, c.P)

	u1 := new(big.Int).Mul(x1, z2z2)
	u1.Mod(u1, c.P)
	u2 := new(big.Int).Mul(x2, z1z1)
	u2.Mod(u2, c.P)
	h := new(big.Int).Sub(u2, u1)
	xEqual := h.Sign() == 0
	if h.Sign() == -1 {
		h.Add(h, c.P)
	}
	i := new(big.Int).Lsh(h, 1)
	i.Mul(i, i)
	j := new(big.Int).Mul(h, i)

	s1 := new(big.Int).Mul(y1, z2)
	s1.Mul(s1, z2z2)
	s1.Mod(s1, c.P)
	s2 := new(big.Int).Mul(y2, z1)
	s2.Mul(s2, z1z1)
	s2.Mod(s2, c.P)
	r := new(big.Int).Sub(s2, s1)
	if r.Sign() == -1 {
		r.Add(r, c.P)
	}
	yEqual := r.Sign() == 0
	if xEqual && yEqual {
		return c.doubleJacobian(x1, y1, z1)
	}
	r.Lsh(r, 1)
	v := new(big.Int).Mul(u1, i)

	x3.Set(r)
	x3.Mul(x3, x3)
	x3.Sub(x3, j)
	x3.Sub(x3, v)
	x3.Sub(x3, v)
	x3.Mod(x3, c.P)

	y3.Set(r)
	v.Sub(v, x3)
	y3.Mul(y3, v)
	s1.Mul(s1, j)
	s1.Lsh(s1, 1)
	y3.Sub(y3, s1)
	y3.Mod(y3, c.P)

	z3.Add(z1, z2)
	z3.Mul(z3, z3)
	z3.Sub(z3, z1z1)
	z3.Sub(z3, z2z2)
	z3.Mul(z3, h)
	z3.Mod(z3, c.P)

	return x3, y3, z3
}

// Double returns 2*(x1, y1).
func (c *Curve) Double(x1, y1 *big.Int) (*big.Int, *big.Int) {
	z1 := zForAffine(x1, y1)
	return c.affineFromJacobian(c.doubleJacobian(x1, y1, z1))
}

// doubleJacobian implements dbl-2001-b, with the dbl-2007-bl M term for
// curves where a != -3.
func (c *Curve) doubleJacobian(x, y, z *big.Int) (*big.Int, *big.Int, *big.Int) {
	delta := new(big.Int).Mul(z, z)
	delta.Mod(delta, c.P)
	gamma := new(big.Int).Mul(y, y)
	gamma.Mod(gamma, c.P)

	var alpha *big.Int
	if new(big.Int).Sub(c.P, big.NewInt(3)).Cmp(c.A) == 0 || big.NewInt(-3).Cmp(c.A) == 0 {
		// 3*x² + a*delta² = 3*(x+delta)*(x-delta) when a = -3
		alpha = new(big.Int).Sub(x, delta)
		alpha2 := new(big.Int).Add(x, delta)
		alpha.Mul(alpha, alpha2)
		alpha2.Set(alpha)
		alpha.Lsh(alpha, 1)
		alpha.Add(alpha, alpha2)
	} else {
		// M = 3*x² + a*(z²)²
		x2 := new(big.Int).Mul(x, x)
		alpha = new(big.Int).Lsh(x2, 1)
		alpha.Add(alpha, x2)
		if c.A.Sign() != 0 {
			delta2 := new(big.Int).Mul(delta, delta)
			delta2.Mul(c.A, delta2)
			alpha.Add(alpha, delta2)
		}
	}
	alpha.Mod(alpha, c.P)

	beta4 := new(big.Int).Mul(x, gamma)
	beta4.Lsh(beta4, 2)
	beta4.Mod(beta4, c.P)

	// X3 = alpha² - 8*beta
	x3 := new(big.Int).Mul(alpha, alpha)
	beta8 := new(big.Int).Lsh(beta4, 1)
	x3.Sub(x3, beta8)
	x3.Mod(x3, c.P)

	// Z3 = 2*Y1*Z1
	z3 := new(big.Int).Mul(y, z)
	z3.Lsh(z3, 1)
	z3.Mod(z3, c.P)

	// Y3 = alpha*(4*beta - X3) - 8*gamma²
	beta4.Sub(beta4, x3)
	y3 := alpha.Mul(alpha, beta4)
	gamma.Mul(gamma, gamma)
	gamma.Lsh(gamma, 3)
	y3.Sub(y3, gamma)
	y3.Mod(y3, c.P)

	return x3, y3, z3
}

// ScalarMult returns k*(Bx, By) where k is a big-endian integer.
func (c *Curve) ScalarMult(Bx, By *big.Int, k []byte) (*big.Int, *big.Int) {
	Bz := new(big.Int).SetInt64(1)
	x, y, z := new(big.Int), new(big.Int), new(big.Int)

	for _, b := range k {
		for bitNum := 0; bitNum < 8; bitNum++ {
			x, y, z = c.doubleJacobian(x, y, z)
			if b&0x80 == 0x80 {
				x, y, z = c.addJacobian(Bx, By, Bz, x, y, z)
			}
			b <<= 1
		}
	}

	return c.affineFromJacobian(x, y, z)
}

// ScalarBaseMult returns k*G.
func (c *Curve) ScalarBaseMult(k []byte) (*big.Int, *big.Int) {
	return c.ScalarMult(c.Gx, c.Gy, k)
}

// Neg returns the inverse of (x, y), i.e. (x, -y mod p).
func (c *Curve) Neg(x, y *big.Int) (*big.Int, *big.Int) {
	if x.Sign() == 0 && y.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}
	ny := new(big.Int).Sub(c.P, y)
	ny.Mod(ny, c.P)
	return new(big.Int).Set(x), ny
}

// ByteLen returns the width in bytes of a field element.
func (c *Curve) ByteLen() int {
	return (c.BitSize + 7) / 8
}

// Marshal encodes a point in the SEC 1 uncompressed form
// 0x04 || X || Y with fixed-width coordinates.
func (c *Curve) Marshal(x, y *big.Int) []byte {
	byteLen := c.ByteLen()
	out := make([]byte, 1+2*byteLen)
	out[0] = 4
	x.FillBytes(out[1 : 1+byteLen])
	y.FillBytes(out[1+byteLen:])
	return out
}

// Unmarshal decodes a point serialized by Marshal. It returns nil, nil when
// the encoding is malformed or the point is not on the curve.
func (c *Curve) Unmarshal(data []byte) (x, y *big.Int) {
	byteLen := c.ByteLen()
	if len(data) != 1+2*byteLen || data[0] != 4 {
		return nil, nil
	}
	x = new(big.Int).SetBytes(data[1 : 1+byteLen])
	y = new(big.Int).SetBytes(data[1+byteLen:])
	if x.Cmp(c.P) >= 0 || y.Cmp(c.P) >= 0 {
		return nil, nil
	}
	if !c.IsOnCurve(x, y) {
		return nil, nil
	}
	return x, y
}

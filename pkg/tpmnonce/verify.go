package tpmnonce

import (
	"crypto/sha256"
	"math/big"
)

// Verdict is the three-valued outcome of signature verification.
type Verdict int

const (
	// VerdictInvalid means the signature equation did not hold.
	VerdictInvalid Verdict = iota

	// VerdictValid means the signature equation held (or, for SM2, that
	// verification is stubbed out, see VerifySignature).
	VerdictValid

	// VerdictIndeterminate means verification was impossible by
	// construction: an ECDAA signature without its nonce commitment point
	// cannot be checked, which is no evidence of failure.
	VerdictIndeterminate
)

func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictIndeterminate:
		return "indeterminate"
	default:
		return "invalid"
	}
}

// OK reports whether the verdict is anything but invalid. This mirrors the
// historical fail-open handling of indeterminate ECDAA results.
func (v Verdict) OK() bool {
	return v != VerdictInvalid
}

// VerifySignature recomputes the signature equation for (r, s) over the
// public key and reports whether it holds. The revision selects between the
// hash-input conventions that changed at 1.33 (ECSCHNORR) and 1.36 (ECDAA).
//
// SM2 verification is deliberately not implemented and always reports valid;
// the measurement pipeline only ever needed SM2 nonce extraction, and a
// guessed verification equation would be worse than an honest stub.
//
// ECDAA needs the prover's nonce commitment point; without it the result is
// VerdictIndeterminate, never VerdictInvalid.
func VerifySignature(r, s *big.Int, pk *Point, digest string, alg Algorithm, curve *Curve, rev Revision, commitment *Point) (Verdict, error) {
	raw, err := parseDigest(digest, curve)
	if err != nil {
		return VerdictInvalid, err
	}
	if !alg.Known() {
		return VerdictInvalid, ErrUnknownAlgorithm
	}

	switch alg {
	case AlgECDSA:
		return verifyECDSA(curve, r, s, pk, digest)
	case AlgECSchnorr:
		return verifyECSchnorr(curve, r, s, pk, raw, rev), nil
	case AlgSM2:
		return VerdictValid, nil
	default: // AlgECDAA
		return verifyECDAA(curve, r, s, pk, raw, rev, commitment), nil
	}
}

// verifyECDSA checks R' = s⁻¹*e*G + r*s⁻¹*PK, valid iff R'.x == r. The
// digest is truncated to the curve width in hex characters before parsing.
func verifyECDSA(curve *Curve, r, s *big.Int, pk *Point, digest string) (Verdict, error) {
	n := curve.Order()
	g := curve.group

	sInv := new(big.Int).ModInverse(s, n)
	if sInv == nil {
		return VerdictInvalid, ErrModularInverseUndefined
	}

	e, _ := new(big.Int).SetString(digest[:2*curve.Bytes()], 16)

	u1 := new(big.Int).Mul(sInv, e)
	u1.Mod(u1, n)
	u2 := new(big.Int).Mul(sInv, r)
	u2.Mod(u2, n)

	x1, y1 := g.ScalarBaseMult(u1.Bytes())
	x2, y2 := g.ScalarMult(pk.X, pk.Y, u2.Bytes())
	rx, _ := g.Add(x1, y1, x2, y2)

	if rx.Cmp(r) == 0 {
		return VerdictValid, nil
	}
	return VerdictInvalid, nil
}

// verifyECSchnorr recomputes K = s*G - r*PK and rehashes it with the digest.
// Two conventions exist in the wild: before revision 1.33 the digest was
// hashed first and K.x followed with leading zero bytes stripped; from 1.33
// on K.x leads at fixed curve width and the hash output is truncated to the
// curve width. Both must be reproduced bit for bit, the dataset spans both.
func verifyECSchnorr(curve *Curve, r, s *big.Int, pk *Point, digest []byte, rev Revision) Verdict {
	n := curve.Order()
	kx, _ := subtractScaled(curve, s, r, pk)

	xCoord := make([]byte, curve.Bytes())
	kx.FillBytes(xCoord)

	hasher := sha256.New()
	if rev.Era() >= Era133 {
		hasher.Write(xCoord)
		hasher.Write(digest)
	} else {
		hasher.Write(digest)
		hasher.Write(kx.Bytes()) // minimal big-endian, zeros stripped
	}

	sum := hasher.Sum(nil)
	if rev.Era() >= Era133 && len(sum) > curve.Bytes() {
		sum = sum[:curve.Bytes()]
	}

	rPrime := new(big.Int).SetBytes(sum)
	rPrime.Mod(rPrime, n)

	if rPrime.Cmp(r) == 0 {
		return VerdictValid
	}
	return VerdictInvalid
}

// verifyECDAA checks s*G - t*PK against the externally supplied nonce
// commitment, with t either the raw counter r (pre-1.36) or the hashed
// challenge (1.36 on).
func verifyECDAA(curve *Curve, r, s *big.Int, pk *Point, digest []byte, rev Revision, commitment *Point) Verdict {
	if commitment == nil {
		return VerdictIndeterminate
	}

	t := r
	if rev.Era() >= Era136 {
		t = ecdaaChallenge(curve, r, digest)
	}

	kx, ky := subtractScaled(curve, s, t, pk)
	if kx.Cmp(commitment.X) == 0 && ky.Cmp(commitment.Y) == 0 {
		return VerdictValid
	}
	return VerdictInvalid
}

// subtractScaled computes s*G - t*PK.
func subtractScaled(curve *Curve, s, t *big.Int, pk *Point) (*big.Int, *big.Int) {
	g := curve.group
	sx, sy := g.ScalarBaseMult(scalarBytes(curve, s))
	tx, ty := g.ScalarMult(pk.X, pk.Y, scalarBytes(curve, t))
	tx, ty = g.Neg(tx, ty)
	return g.Add(sx, sy, tx, ty)
}

package tpmnonce

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"
)

// ComputeNonce recovers the ephemeral nonce k that produced the signature
// (r, s) under the given scheme, curve and spec revision. x is the signer's
// private scalar, available in calibration runs where the key was generated
// with a known seed. The digest is the hex-encoded message digest as stored
// in the measurement data.
//
// The result is a fixed-width big-endian hex string of the curve's byte
// length, matching the nonce column format of the dataset.
func ComputeNonce(r, s, x *big.Int, digest string, alg Algorithm, curve *Curve, rev Revision) (string, error) {
	raw, err := parseDigest(digest, curve)
	if err != nil {
		return "", err
	}
	if !alg.Known() {
		return "", ErrUnknownAlgorithm
	}

	n := curve.Order()
	var nonce *big.Int

	switch alg {
	case AlgECDSA:
		// k = s⁻¹ * (e + r*x) mod n
		sInv := new(big.Int).ModInverse(s, n)
		if sInv == nil {
			return "", ErrModularInverseUndefined
		}
		e := new(big.Int).SetBytes(raw)
		nonce = new(big.Int).Mul(r, x)
		nonce.Add(nonce, e)
		nonce.Mul(nonce, sInv)
		nonce.Mod(nonce, n)

	case AlgECSchnorr:
		nonce = schnorrNonce(n, r, s, x)

	case AlgSM2:
		// k = s + s*x + r*x mod n; the TPM computes
		// s = (1+x)⁻¹ * (k - r*x), so the terms telescope back to k.
		nonce = new(big.Int).Mul(s, x)
		nonce.Add(nonce, s)
		rx := new(big.Int).Mul(r, x)
		nonce.Add(nonce, rx)
		nonce.Mod(nonce, n)

	case AlgECDAA:
		// Up to revision 1.35 the signature equation matched ECSCHNORR.
		// From 1.36 on, s = k + H(r || digest)*x with the counter r
		// hashed at the width of the group order.
		if rev.Era() < Era136 {
			nonce = schnorrNonce(n, r, s, x)
		} else {
			h := ecdaaChallenge(curve, r, raw)
			nonce = new(big.Int).Mul(h, x)
			nonce.Sub(s, nonce)
			nonce.Mod(nonce, n)
		}
	}

	out := make([]byte, curve.Bytes())
	nonce.FillBytes(out)
	return hex.EncodeToString(out), nil
}

// schnorrNonce computes k = s - r*x mod n, the shared ECSCHNORR and legacy
// ECDAA extraction.
func schnorrNonce(n, r, s, x *big.Int) *big.Int {
	k := new(big.Int).Mul(r, x)
	k.Sub(s, k)
	return k.Mod(k, n)
}

// ecdaaChallenge computes SHA-256(bigEndian(r, orderLen) || digest) mod n,
// the challenge scalar introduced by revision 1.36 (TPM 2.0 Part 1, ECDAA
// sign flow).
func ecdaaChallenge(curve *Curve, r *big.Int, digest []byte) *big.Int {
	buf := make([]byte, curve.orderLen())
	r.FillBytes(buf)

	hasher := sha256.New()
	hasher.Write(buf)
	hasher.Write(digest)

	h := new(big.Int).SetBytes(hasher.Sum(nil))
	return h.Mod(h, curve.Order())
}

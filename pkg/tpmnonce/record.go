package tpmnonce

import "math/big"

// Record is one captured signature as it arrives from the measurement data:
// selectors, the signature itself, the digest that was signed, the public
// key, and optionally the private scalar (calibration runs) and the ECDAA
// nonce commitment point.
type Record struct {
	Curve     string
	Algorithm Algorithm
	R, S      *big.Int
	Digest    string

	Public     *Point
	Private    *big.Int // nil outside calibration scenarios
	Commitment *Point   // nil unless captured for ECDAA
	Revision   Revision // RevisionUnknown defaults to 1.38
}

// ExtractNonce resolves the record's selectors and recovers its signing
// nonce. The record must carry the private scalar.
func (rec *Record) ExtractNonce() (string, error) {
	curve, err := CurveByName(rec.Curve)
	if err != nil {
		return "", err
	}
	return ComputeNonce(rec.R, rec.S, rec.Private, rec.Digest, rec.Algorithm, curve, rec.Revision)
}

// Verify resolves the record's selectors and re-checks the signature,
// validating the public key (and, when present, its consistency with the
// private scalar) first.
func (rec *Record) Verify() (Verdict, error) {
	curve, err := CurveByName(rec.Curve)
	if err != nil {
		return VerdictInvalid, err
	}
	pk, err := ReconstructPublicKey(curve, rec.Public.X, rec.Public.Y, rec.Private)
	if err != nil {
		return VerdictInvalid, err
	}
	return VerifySignature(rec.R, rec.S, pk, rec.Digest, rec.Algorithm, curve, rec.Revision, rec.Commitment)
}

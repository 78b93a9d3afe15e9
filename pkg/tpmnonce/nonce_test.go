package tpmnonce

import (
	"errors"
	"math/big"
	"strings"
	"testing"
)

var allCurveNames = []string{"P192", "P224", "P256", "P384", "P521", "BN256", "BN638", "SM256"}

func TestComputeNonce_ECDSA(t *testing.T) {
	for _, name := range allCurveNames {
		curve := mustCurve(t, name)
		x := testScalar(t, curve, "ecdsa-priv-"+name)
		k := testScalar(t, curve, "ecdsa-nonce-"+name)
		digest := testDigest(curve, 0xa5)

		r, s := signECDSA(t, curve, x, k, digest)

		nonce, err := ComputeNonce(r, s, x, digest, AlgECDSA, curve, DefaultRevision)
		if err != nil {
			t.Fatalf("%s: ComputeNonce: %v", name, err)
		}
		if nonce != encodeNonce(curve, k) {
			t.Errorf("%s: nonce mismatch\n got %s\nwant %s", name, nonce, encodeNonce(curve, k))
		}
		if len(nonce) != 2*curve.Bytes() {
			t.Errorf("%s: nonce width %d, want %d", name, len(nonce), 2*curve.Bytes())
		}
	}
}

func TestComputeNonce_ECSchnorr(t *testing.T) {
	curve := mustCurve(t, "P256")
	x := testScalar(t, curve, "schnorr-priv")
	k := testScalar(t, curve, "schnorr-nonce")
	digest := testDigest(curve, 0x42)

	r, s := signECSchnorr(t, curve, x, k, digest, DefaultRevision)

	nonce, err := ComputeNonce(r, s, x, digest, AlgECSchnorr, curve, DefaultRevision)
	if err != nil {
		t.Fatalf("ComputeNonce: %v", err)
	}
	if nonce != encodeNonce(curve, k) {
		t.Errorf("nonce mismatch: got %s, want %s", nonce, encodeNonce(curve, k))
	}
}

func TestComputeNonce_SM2(t *testing.T) {
	curve := mustCurve(t, "SM256")
	x := testScalar(t, curve, "sm2-priv")
	k := testScalar(t, curve, "sm2-nonce")
	digest := testDigest(curve, 0x17)

	r, s := signSM2(t, curve, x, k, digest)

	nonce, err := ComputeNonce(r, s, x, digest, AlgSM2, curve, DefaultRevision)
	if err != nil {
		t.Fatalf("ComputeNonce: %v", err)
	}
	if nonce != encodeNonce(curve, k) {
		t.Errorf("nonce mismatch: got %s, want %s", nonce, encodeNonce(curve, k))
	}
}

func TestComputeNonce_ECDAA(t *testing.T) {
	for _, rev := range []Revision{129, 136, 159} {
		curve := mustCurve(t, "P256")
		x := testScalar(t, curve, "ecdaa-priv")
		k := testScalar(t, curve, "ecdaa-nonce")
		r := testScalar(t, curve, "ecdaa-counter")
		digest := testDigest(curve, 0x00)

		s, _ := signECDAA(t, curve, x, k, r, digest, rev)

		nonce, err := ComputeNonce(r, s, x, digest, AlgECDAA, curve, rev)
		if err != nil {
			t.Fatalf("rev %s: ComputeNonce: %v", rev, err)
		}
		if nonce != encodeNonce(curve, k) {
			t.Errorf("rev %s: nonce mismatch: got %s, want %s", rev, nonce, encodeNonce(curve, k))
		}
	}
}

// Up to revision 1.35 ECDAA extraction must be exactly the ECSCHNORR formula;
// from 1.36 the hashed challenge takes over and the results diverge.
func TestComputeNonce_ECDAARevisionBoundary(t *testing.T) {
	curve := mustCurve(t, "P256")
	x := testScalar(t, curve, "boundary-priv")
	r := testScalar(t, curve, "boundary-r")
	s := testScalar(t, curve, "boundary-s")
	digest := testDigest(curve, 0x3c)

	schnorr, err := ComputeNonce(r, s, x, digest, AlgECSchnorr, curve, 135)
	if err != nil {
		t.Fatalf("ECSCHNORR: %v", err)
	}

	legacy, err := ComputeNonce(r, s, x, digest, AlgECDAA, curve, 135)
	if err != nil {
		t.Fatalf("ECDAA 1.35: %v", err)
	}
	if legacy != schnorr {
		t.Errorf("ECDAA at 1.35 diverged from ECSCHNORR: %s vs %s", legacy, schnorr)
	}

	hashed, err := ComputeNonce(r, s, x, digest, AlgECDAA, curve, 136)
	if err != nil {
		t.Fatalf("ECDAA 1.36: %v", err)
	}
	if hashed == schnorr {
		t.Error("ECDAA at 1.36 should use the hashed challenge, got the ECSCHNORR result")
	}
}

// Literal vector from a calibration capture on a revision 1.59 device.
func TestComputeNonce_ECDAAVector(t *testing.T) {
	curve := mustCurve(t, "P256")
	r := mustHexInt(t, "553E725A60F7D0CB564C1AD8CAE266C69E58ADB6D01741256A7351045BF18FBB")
	s := mustHexInt(t, "B795658C1CFB888D999BBDE3D40773523DD0B9A3C3B534FBE46F7FB7D99F798D")
	x := mustHexInt(t, "65EF0315E9FDFDDDB80722952E427FCA2729762B0406DE8F9A7C3B7013B29329")
	digest := strings.Repeat("00", 32)

	nonce, err := ComputeNonce(r, s, x, digest, AlgECDAA, curve, 159)
	if err != nil {
		t.Fatalf("ComputeNonce: %v", err)
	}

	want := "7edd1534bd14dd5040da9f19707588db808e2e53250c4951ab1c4ba9f77892d8"
	if nonce != want {
		t.Errorf("vector mismatch\n got %s\nwant %s", nonce, want)
	}
}

func TestComputeNonce_ModularInverseUndefined(t *testing.T) {
	curve := mustCurve(t, "P256")
	x := testScalar(t, curve, "inv-priv")
	r := testScalar(t, curve, "inv-r")
	digest := testDigest(curve, 0x01)

	for _, s := range []*big.Int{big.NewInt(0), new(big.Int).Set(curve.Order())} {
		_, err := ComputeNonce(r, s, x, digest, AlgECDSA, curve, DefaultRevision)
		if !errors.Is(err, ErrModularInverseUndefined) {
			t.Errorf("s=%s: got %v, want ErrModularInverseUndefined", s, err)
		}
	}

	// The subtraction-based formulas have no inverse to take.
	s := big.NewInt(0)
	if _, err := ComputeNonce(r, s, x, digest, AlgECSchnorr, curve, DefaultRevision); err != nil {
		t.Errorf("ECSCHNORR with s=0: %v", err)
	}
}

func TestComputeNonce_MalformedDigest(t *testing.T) {
	curve := mustCurve(t, "P256")
	x := testScalar(t, curve, "md-priv")
	r := testScalar(t, curve, "md-r")
	s := testScalar(t, curve, "md-s")

	cases := []string{
		"",
		"abcd",                             // too short
		testDigest(curve, 0x00) + "00",     // too long
		strings.Repeat("zz", curve.Bytes()), // not hex
	}
	for _, digest := range cases {
		if _, err := ComputeNonce(r, s, x, digest, AlgECDSA, curve, DefaultRevision); !errors.Is(err, ErrMalformedDigest) {
			t.Errorf("digest %q: got %v, want ErrMalformedDigest", digest, err)
		}
	}
}

func TestComputeNonce_UnknownAlgorithm(t *testing.T) {
	curve := mustCurve(t, "P256")
	x := testScalar(t, curve, "ua-priv")
	digest := testDigest(curve, 0x00)

	_, err := ComputeNonce(big.NewInt(1), big.NewInt(2), x, digest, Algorithm(0x0099), curve, DefaultRevision)
	if !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("got %v, want ErrUnknownAlgorithm", err)
	}
}

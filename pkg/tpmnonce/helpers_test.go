package tpmnonce

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"testing"
)

// testScalar derives a deterministic nonzero scalar in [1, n) from a label,
// so tests need no fixture files and stay reproducible.
func testScalar(t *testing.T, curve *Curve, label string) *big.Int {
	t.Helper()
	h := sha256.Sum256([]byte(label))
	k := new(big.Int).SetBytes(h[:])
	k.Mod(k, curve.Order())
	if k.Sign() == 0 {
		k.SetInt64(1)
	}
	return k
}

// testDigest builds a digest of the exact width the curve expects, filled
// with the given byte.
func testDigest(curve *Curve, fill byte) string {
	raw := make([]byte, curve.Bytes())
	for i := range raw {
		raw[i] = fill
	}
	return hex.EncodeToString(raw)
}

func mustCurve(t *testing.T, name string) *Curve {
	t.Helper()
	c, err := CurveByName(name)
	if err != nil {
		t.Fatalf("CurveByName(%s): %v", name, err)
	}
	return c
}

func mustHexInt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		t.Fatalf("bad hex int %q", s)
	}
	return v
}

// signECDSA produces (r, s) for nonce k and private scalar x over the hex
// digest: r = (k*G).x mod n, s = k⁻¹*(e + r*x) mod n.
func signECDSA(t *testing.T, curve *Curve, x, k *big.Int, digest string) (*big.Int, *big.Int) {
	t.Helper()
	n := curve.Order()
	rx, _ := curve.group.ScalarBaseMult(k.Bytes())

	r := new(big.Int).Mod(rx, n)

	kInv := new(big.Int).ModInverse(k, n)
	if kInv == nil {
		t.Fatal("test nonce not invertible")
	}
	e := mustHexInt(t, digest)
	s := new(big.Int).Mul(r, x)
	s.Add(s, e)
	s.Mul(s, kInv)
	s.Mod(s, n)
	return r, s
}

// schnorrCommit hashes the x coordinate of k*G with the digest under the
// convention of the given revision and returns r = H mod n.
func schnorrCommit(t *testing.T, curve *Curve, k *big.Int, digest string, rev Revision) *big.Int {
	t.Helper()
	kx, _ := curve.group.ScalarBaseMult(k.Bytes())
	raw, err := hex.DecodeString(digest)
	if err != nil {
		t.Fatalf("bad test digest: %v", err)
	}

	hasher := sha256.New()
	if rev.Era() >= Era133 {
		xCoord := make([]byte, curve.Bytes())
		kx.FillBytes(xCoord)
		hasher.Write(xCoord)
		hasher.Write(raw)
	} else {
		hasher.Write(raw)
		hasher.Write(kx.Bytes())
	}
	sum := hasher.Sum(nil)
	if rev.Era() >= Era133 && len(sum) > curve.Bytes() {
		sum = sum[:curve.Bytes()]
	}

	r := new(big.Int).SetBytes(sum)
	return r.Mod(r, curve.Order())
}

// signECSchnorr produces (r, s): r = H(...) mod n, s = k + r*x mod n.
func signECSchnorr(t *testing.T, curve *Curve, x, k *big.Int, digest string, rev Revision) (*big.Int, *big.Int) {
	t.Helper()
	n := curve.Order()
	r := schnorrCommit(t, curve, k, digest, rev)
	s := new(big.Int).Mul(r, x)
	s.Add(s, k)
	s.Mod(s, n)
	return r, s
}

// signSM2 produces (r, s): r = (e + (k*G).x) mod n,
// s = (1+x)⁻¹*(k - r*x) mod n.
func signSM2(t *testing.T, curve *Curve, x, k *big.Int, digest string) (*big.Int, *big.Int) {
	t.Helper()
	n := curve.Order()
	px, _ := curve.group.ScalarBaseMult(k.Bytes())

	e := mustHexInt(t, digest)
	r := new(big.Int).Add(e, px)
	r.Mod(r, n)

	xPlus1 := new(big.Int).Add(x, big.NewInt(1))
	inv := new(big.Int).ModInverse(xPlus1, n)
	if inv == nil {
		t.Fatal("1+x not invertible")
	}
	s := new(big.Int).Mul(r, x)
	s.Sub(k, s)
	s.Mul(s, inv)
	s.Mod(s, n)
	return r, s
}

// signECDAA produces (s, commitment) for a host-chosen r and nonce k:
// s = k + t*x mod n with t per revision, commitment = k*G.
func signECDAA(t *testing.T, curve *Curve, x, k, r *big.Int, digest string, rev Revision) (*big.Int, *Point) {
	t.Helper()
	n := curve.Order()

	tScalar := r
	if rev.Era() >= Era136 {
		raw, err := hex.DecodeString(digest)
		if err != nil {
			t.Fatalf("bad test digest: %v", err)
		}
		tScalar = ecdaaChallenge(curve, r, raw)
	}

	s := new(big.Int).Mul(tScalar, x)
	s.Add(s, k)
	s.Mod(s, n)

	cx, cy := curve.group.ScalarBaseMult(k.Bytes())
	return s, &Point{X: cx, Y: cy}
}

// publicKey returns x*G.
func publicKey(t *testing.T, curve *Curve, x *big.Int) *Point {
	t.Helper()
	px, py := curve.group.ScalarBaseMult(x.Bytes())
	return &Point{X: px, Y: py}
}

// encodeNonce is the expected fixed-width hex encoding of a nonce.
func encodeNonce(curve *Curve, k *big.Int) string {
	out := make([]byte, curve.Bytes())
	k.FillBytes(out)
	return hex.EncodeToString(out)
}

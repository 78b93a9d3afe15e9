package tpmnonce

import (
	"crypto/elliptic"
	"math/big"

	"github.com/tpmscan/tpm-nonce/pkg/weierstrass"
)

// CurveID is the TPM2 wire identifier of an ECC curve (TPM_ECC_CURVE).
type CurveID uint16

const (
	CurveP192  CurveID = 0x0001
	CurveP224  CurveID = 0x0002
	CurveP256  CurveID = 0x0003
	CurveP384  CurveID = 0x0004
	CurveP521  CurveID = 0x0005
	CurveBN256 CurveID = 0x0010
	CurveBN638 CurveID = 0x0011
	CurveSM256 CurveID = 0x0020
)

// Curve bundles a named TPM curve with its group parameters. Instances are
// created once at package init and never mutated; callers share them freely
// across goroutines.
type Curve struct {
	Name  string
	ID    CurveID
	group *weierstrass.Curve
}

// Bytes returns the width of a field element in bytes (P256 -> 32,
// P521 -> 66, BN638 -> 80).
func (c *Curve) Bytes() int {
	return c.group.ByteLen()
}

// Order returns the order n of the base point group.
func (c *Curve) Order() *big.Int {
	return c.group.N
}

// Group exposes the underlying arithmetic. The returned curve is shared and
// must not be modified.
func (c *Curve) Group() *weierstrass.Curve {
	return c.group
}

// orderLen is the byte width of the group order, used by the ECDAA hash
// input. It coincides with Bytes() for every supported curve but is derived
// from n rather than p.
func (c *Curve) orderLen() int {
	return (c.group.N.BitLen() + 7) / 8
}

var (
	curvesByName map[string]*Curve
	curvesByID   map[CurveID]*Curve
)

func hexInt(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("tpmnonce: bad curve constant " + s)
	}
	return v
}

// nistCurve lifts a standard-library curve into the generic representation.
// crypto/elliptic keeps a = -3 implicit; it is materialized here as p-3.
func nistCurve(name string, params *elliptic.CurveParams) *weierstrass.Curve {
	return &weierstrass.Curve{
		Name:    name,
		P:       params.P,
		A:       new(big.Int).Sub(params.P, big.NewInt(3)),
		B:       params.B,
		Gx:      params.Gx,
		Gy:      params.Gy,
		N:       params.N,
		BitSize: params.BitSize,
	}
}

func init() {
	// P192 was dropped from crypto/elliptic; its parameters (SEC 2 /
	// FIPS 186-4) are spelled out here. The BN curves and SM2 come from
	// the TPM 2.0 Part 4 algorithm registry.
	p192 := &weierstrass.Curve{
		Name:    "P192",
		P:       hexInt("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEFFFFFFFFFFFFFFFF"),
		B:       hexInt("64210519E59C80E70FA7E9AB72243049FEB8DEECC146B9B1"),
		Gx:      hexInt("188DA80EB03090F67CBF20EB43A18800F4FF0AFD82FF1012"),
		Gy:      hexInt("07192B95FFC8DA78631011ED6B24CDD573F977A11E794811"),
		N:       hexInt("FFFFFFFFFFFFFFFFFFFFFFFF99DEF836146BC9B1B4D22831"),
		BitSize: 192,
	}
	p192.A = new(big.Int).Sub(p192.P, big.NewInt(3))

	bn256 := &weierstrass.Curve{
		Name:    "BN256",
		P:       hexInt("FFFFFFFFFFFCF0CD46E5F25EEE71A49F0CDC65FB12980A82D3292DDBAED33013"),
		A:       new(big.Int),
		B:       big.NewInt(3),
		Gx:      big.NewInt(1),
		Gy:      big.NewInt(2),
		N:       hexInt("FFFFFFFFFFFCF0CD46E5F25EEE71A49E0CDC65FB1299921AF62D536CD10B500D"),
		BitSize: 256,
	}

	bn638 := &weierstrass.Curve{
		Name: "BN638",
		P: hexInt("23FFFFFDC000000D7FFFFFB8000001D3FFFFF942D000165E3FFF94870000D52F" +
			"FFFDD0E00008DE55C00086520021E55BFFFFF51FFFF4EB800000004C80015ACDFFFFF" +
			"FFFFFFFECE00000000000000067"),
		A: new(big.Int),
		B: big.NewInt(257),
		Gx: hexInt("23FFFFFDC000000D7FFFFFB8000001D3FFFFF942D000165E3FFF94870000D52F" +
			"FFFDD0E00008DE55C00086520021E55BFFFFF51FFFF4EB800000004C80015ACDFFFFF" +
			"FFFFFFFECE00000000000000066"),
		Gy: big.NewInt(16),
		N: hexInt("23FFFFFDC000000D7FFFFFB8000001D3FFFFF942D000165E3FFF94870000D52F" +
			"FFFDD0E00008DE55600086550021E555FFFFF54FFFF4EAC000000049800154D9FFFFF" +
			"FFFFFFFEDA00000000000000061"),
		BitSize: 638,
	}

	sm256 := &weierstrass.Curve{
		Name:    "SM256",
		P:       hexInt("FFFFFFFEFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF00000000FFFFFFFFFFFFFFFF"),
		A:       hexInt("FFFFFFFEFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF00000000FFFFFFFFFFFFFFFC"),
		B:       hexInt("28E9FA9E9D9F5E344D5A9E4BCF6509A7F39789F515AB8F92DDBCBD414D940E93"),
		Gx:      hexInt("32C4AE2C1F1981195F9904466A39C9948FE30BBFF2660BE1715A4589334C74C7"),
		Gy:      hexInt("BC3736A2F4F6779C59BDCEE36B692153D0A9877CC62A474002DF32E52139F0A0"),
		N:       hexInt("FFFFFFFEFFFFFFFFFFFFFFFFFFFFFFFF7203DF6B21C6052B53BBF40939D54123"),
		BitSize: 256,
	}

	all := []*Curve{
		{Name: "P192", ID: CurveP192, group: p192},
		{Name: "P224", ID: CurveP224, group: nistCurve("P224", elliptic.P224().Params())},
		{Name: "P256", ID: CurveP256, group: nistCurve("P256", elliptic.P256().Params())},
		{Name: "P384", ID: CurveP384, group: nistCurve("P384", elliptic.P384().Params())},
		{Name: "P521", ID: CurveP521, group: nistCurve("P521", elliptic.P521().Params())},
		{Name: "BN256", ID: CurveBN256, group: bn256},
		{Name: "BN638", ID: CurveBN638, group: bn638},
		{Name: "SM256", ID: CurveSM256, group: sm256},
	}

	curvesByName = make(map[string]*Curve, len(all))
	curvesByID = make(map[CurveID]*Curve, len(all))
	for _, c := range all {
		curvesByName[c.Name] = c
		curvesByID[c.ID] = c
	}
}

// CurveByName resolves one of the eight supported curve names. There is no
// dynamic registration; anything else is ErrUnknownCurve.
func CurveByName(name string) (*Curve, error) {
	c, ok := curvesByName[name]
	if !ok {
		return nil, ErrUnknownCurve
	}
	return c, nil
}

// CurveByID resolves a TPM2 curve wire code.
func CurveByID(id CurveID) (*Curve, error) {
	c, ok := curvesByID[id]
	if !ok {
		return nil, ErrUnknownCurve
	}
	return c, nil
}

// CurveBytes returns the byte length of a named curve's field elements.
func CurveBytes(name string) (int, error) {
	c, err := CurveByName(name)
	if err != nil {
		return 0, err
	}
	return c.Bytes(), nil
}

package tpmnonce

import (
	"fmt"
	"math"
	"strconv"
)

// Algorithm is the TPM2 wire identifier of an ECC signing scheme
// (TPM_ALG_ID subset).
type Algorithm uint16

const (
	AlgECDSA     Algorithm = 0x0018
	AlgECDAA     Algorithm = 0x001a
	AlgSM2       Algorithm = 0x001b
	AlgECSchnorr Algorithm = 0x001c
)

var algNames = map[Algorithm]string{
	AlgECDSA:     "ECDSA",
	AlgECDAA:     "ECDAA",
	AlgSM2:       "SM2",
	AlgECSchnorr: "ECSCHNORR",
}

var algsByName = map[string]Algorithm{
	"ECDSA":     AlgECDSA,
	"ECDAA":     AlgECDAA,
	"SM2":       AlgSM2,
	"ECSCHNORR": AlgECSchnorr,
}

func (a Algorithm) String() string {
	if name, ok := algNames[a]; ok {
		return name
	}
	return fmt.Sprintf("ALG(0x%04x)", uint16(a))
}

// Known reports whether a is one of the four supported schemes.
func (a Algorithm) Known() bool {
	_, ok := algNames[a]
	return ok
}

// AlgorithmByName resolves a symbolic algorithm name.
func AlgorithmByName(name string) (Algorithm, error) {
	a, ok := algsByName[name]
	if !ok {
		return 0, ErrUnknownAlgorithm
	}
	return a, nil
}

// AlgorithmByID resolves a TPM2 wire code.
func AlgorithmByID(id uint16) (Algorithm, error) {
	a := Algorithm(id)
	if !a.Known() {
		return 0, ErrUnknownAlgorithm
	}
	return a, nil
}

// Revision is a TPM specification revision in hundredths, so revision 1.38
// is the value 138. Holding it as an integer keeps the 1.33/1.36 era
// comparisons away from floating point.
type Revision int

const (
	// RevisionUnknown marks measurements whose capability report carried
	// no usable TPM2_PT_REVISION.
	RevisionUnknown Revision = 0

	// DefaultRevision (1.38) is assumed when the revision is unknown.
	DefaultRevision Revision = 138

	rev133 Revision = 133
	rev136 Revision = 136
)

// RevisionFromFloat converts the decimal revision reported by a TPM
// capability query (e.g. 1.59). Non-positive values map to RevisionUnknown.
func RevisionFromFloat(f float64) Revision {
	if f <= 0 {
		return RevisionUnknown
	}
	return Revision(math.Round(f * 100))
}

// ParseRevision parses a decimal revision string such as "1.38".
func ParseRevision(s string) (Revision, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return RevisionUnknown, fmt.Errorf("invalid revision %q: %w", s, err)
	}
	return RevisionFromFloat(f), nil
}

func (r Revision) String() string {
	return fmt.Sprintf("%d.%02d", r/100, r%100)
}

// orDefault substitutes 1.38 for an unknown revision.
func (r Revision) orDefault() Revision {
	if r == RevisionUnknown {
		return DefaultRevision
	}
	return r
}

// Era is the protocol era a revision falls into. The ECSCHNORR hash input
// convention flipped at 1.33 and ECDAA moved from t = r to a hashed
// challenge at 1.36; every formula variant in this package branches on the
// era rather than on the raw revision.
type Era int

const (
	EraPre133 Era = iota // revisions before 1.33
	Era133               // 1.33 up to but not including 1.36
	Era136               // 1.36 and later
)

// Era maps the revision onto its protocol era, defaulting unknown revisions
// to 1.38.
func (r Revision) Era() Era {
	switch rev := r.orDefault(); {
	case rev < rev133:
		return EraPre133
	case rev < rev136:
		return Era133
	default:
		return Era136
	}
}

package tpmnonce

import "errors"

// Errors reported at the parsing/lookup boundary, before any curve
// arithmetic runs. An invalid signature is a normal Verdict, never an error.
var (
	ErrUnknownCurve            = errors.New("unknown curve")
	ErrUnknownAlgorithm        = errors.New("unknown algorithm")
	ErrModularInverseUndefined = errors.New("modular inverse undefined: operand is 0 mod n")
	ErrMalformedDigest         = errors.New("malformed digest")
	ErrPointNotOnCurve         = errors.New("point is not on the curve")
	ErrKeyConsistency          = errors.New("public key does not match private scalar")
)

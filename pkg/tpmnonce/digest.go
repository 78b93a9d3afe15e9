package tpmnonce

import (
	"encoding/hex"
	"fmt"
)

// parseDigest validates and decodes the hex digest of a signature record.
// The measurement format stores digests at exactly twice the curve byte
// length; anything else is malformed input, not something to default around.
func parseDigest(digest string, c *Curve) ([]byte, error) {
	if len(digest) != 2*c.Bytes() {
		return nil, fmt.Errorf("%w: got %d hex chars, want %d for %s",
			ErrMalformedDigest, len(digest), 2*c.Bytes(), c.Name)
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDigest, err)
	}
	return raw, nil
}

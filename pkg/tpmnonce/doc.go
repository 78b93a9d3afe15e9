// Package tpmnonce recovers ephemeral signing nonces from, and re-verifies,
// elliptic-curve signatures produced by TPM 2.0 devices.
//
// It covers the four ECC signing schemes a TPM exposes (ECDSA, ECSCHNORR,
// SM2, ECDAA) over the eight curves of the TPM algorithm registry, with the
// formula variants selected by the specification revision the device
// implements: the ECSCHNORR hash-input convention changed at revision 1.33
// and the ECDAA challenge computation at 1.36.
//
// # Quick start
//
//	curve, _ := tpmnonce.CurveByName("P256")
//
//	nonce, err := tpmnonce.ComputeNonce(r, s, priv, digestHex,
//	    tpmnonce.AlgECDSA, curve, tpmnonce.DefaultRevision)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	verdict, err := tpmnonce.VerifySignature(r, s, pk, digestHex,
//	    tpmnonce.AlgECDSA, curve, tpmnonce.DefaultRevision, nil)
//
// All functions are pure and the registries are immutable after package
// init, so everything here may be called concurrently without locking.
//
// Nonce extraction needs the signer's private scalar and therefore only
// applies to calibration measurements taken with known keys. Verification
// needs only the public key, except for ECDAA where the prover's nonce
// commitment point must be captured separately; without it the verdict is
// Indeterminate rather than invalid.
package tpmnonce

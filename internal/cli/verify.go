package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tpmscan/tpm-nonce/pkg/tpmnonce"
)

var (
	verifyCurve       string
	verifyAlgorithm   string
	verifyR           string
	verifyS           string
	verifyPublicX     string
	verifyPublicY     string
	verifyPrivate     string
	verifyDigest      string
	verifyCommitmentX string
	verifyCommitmentY string
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a single signature",
	Long: `Verify one signature against its public key. Prints valid, invalid
or indeterminate; the exit status is nonzero only for invalid.

When --private is given the public point is cross-checked against the
key before verifying. ECDAA verification needs the signer's commitment
point (--commitment-x/--commitment-y) and reports indeterminate
without it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		curve, err := tpmnonce.CurveByName(verifyCurve)
		if err != nil {
			return err
		}
		alg, err := tpmnonce.AlgorithmByName(verifyAlgorithm)
		if err != nil {
			return err
		}
		rev, err := revisionFlag(tpmnonce.DefaultRevision)
		if err != nil {
			return err
		}

		r, err := parseHexFlag("r", verifyR)
		if err != nil {
			return err
		}
		s, err := parseHexFlag("s", verifyS)
		if err != nil {
			return err
		}
		px, err := parseHexFlag("public-x", verifyPublicX)
		if err != nil {
			return err
		}
		py, err := parseHexFlag("public-y", verifyPublicY)
		if err != nil {
			return err
		}
		sk, err := optionalHexFlag("private", verifyPrivate)
		if err != nil {
			return err
		}

		pk, err := tpmnonce.ReconstructPublicKey(curve, px, py, sk)
		if err != nil {
			return err
		}

		var commitment *tpmnonce.Point
		cx, err := optionalHexFlag("commitment-x", verifyCommitmentX)
		if err != nil {
			return err
		}
		cy, err := optionalHexFlag("commitment-y", verifyCommitmentY)
		if err != nil {
			return err
		}
		if cx != nil && cy != nil {
			commitment = &tpmnonce.Point{X: cx, Y: cy}
		}

		verdict, err := tpmnonce.VerifySignature(r, s, pk, verifyDigest, alg, curve, rev, commitment)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), verdict)
		if !verdict.OK() {
			return fmt.Errorf("signature is %s", verdict)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyCurve, "curve", "P256", "curve name (P192, P224, P256, P384, P521, BN256, BN638, SM256)")
	verifyCmd.Flags().StringVar(&verifyAlgorithm, "algorithm", "ECDSA", "signature scheme (ECDSA, ECDAA, SM2, ECSCHNORR)")
	verifyCmd.Flags().StringVar(&verifyR, "r", "", "signature r component, hex")
	verifyCmd.Flags().StringVar(&verifyS, "s", "", "signature s component, hex")
	verifyCmd.Flags().StringVar(&verifyPublicX, "public-x", "", "public key x coordinate, hex")
	verifyCmd.Flags().StringVar(&verifyPublicY, "public-y", "", "public key y coordinate, hex")
	verifyCmd.Flags().StringVar(&verifyPrivate, "private", "", "signing key scalar for consistency checking, hex (optional)")
	verifyCmd.Flags().StringVar(&verifyDigest, "digest", "", "signed digest, hex sized to the curve")
	verifyCmd.Flags().StringVar(&verifyCommitmentX, "commitment-x", "", "ECDAA commitment x coordinate, hex (optional)")
	verifyCmd.Flags().StringVar(&verifyCommitmentY, "commitment-y", "", "ECDAA commitment y coordinate, hex (optional)")
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tpmscan/tpm-nonce/pkg/tpmnonce"
)

var (
	extractCurve     string
	extractAlgorithm string
	extractR         string
	extractS         string
	extractPrivate   string
	extractDigest    string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the nonce of a single signature",
	Long: `Extract the per-signature nonce from one signature, given the
signing key. The nonce is printed as fixed-width hex matching the
curve's coordinate size.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		curve, err := tpmnonce.CurveByName(extractCurve)
		if err != nil {
			return err
		}
		alg, err := tpmnonce.AlgorithmByName(extractAlgorithm)
		if err != nil {
			return err
		}
		rev, err := revisionFlag(tpmnonce.DefaultRevision)
		if err != nil {
			return err
		}

		r, err := parseHexFlag("r", extractR)
		if err != nil {
			return err
		}
		s, err := parseHexFlag("s", extractS)
		if err != nil {
			return err
		}
		x, err := parseHexFlag("private", extractPrivate)
		if err != nil {
			return err
		}

		nonce, err := tpmnonce.ComputeNonce(r, s, x, extractDigest, alg, curve, rev)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), nonce)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractCurve, "curve", "P256", "curve name (P192, P224, P256, P384, P521, BN256, BN638, SM256)")
	extractCmd.Flags().StringVar(&extractAlgorithm, "algorithm", "ECDSA", "signature scheme (ECDSA, ECDAA, SM2, ECSCHNORR)")
	extractCmd.Flags().StringVar(&extractR, "r", "", "signature r component, hex")
	extractCmd.Flags().StringVar(&extractS, "s", "", "signature s component, hex")
	extractCmd.Flags().StringVar(&extractPrivate, "private", "", "signing key scalar, hex")
	extractCmd.Flags().StringVar(&extractDigest, "digest", "", "signed digest, hex sized to the curve")
}

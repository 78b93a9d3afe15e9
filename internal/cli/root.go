// Package cli implements the tpmnonce command line interface.
package cli

import (
	"math/big"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tpmscan/tpm-nonce/pkg/tpmnonce"
)

var (
	flagRevision string
	flagVerbose  bool

	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tpmnonce",
	Short: "Analyze ECC signatures collected from TPM 2.0 chips",
	Long: `tpmnonce extracts per-signature nonces and verifies ECC signatures
captured from TPM 2.0 chips, covering the ECDSA, ECDAA, SM2 and
EC-Schnorr signing schemes across the NIST, Barreto-Naehrig and SM2
curves a TPM may implement.

Nonce extraction needs the signing key, which measurement datasets
record for test keys; verification needs only the public point.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if flagVerbose {
			level = zerolog.DebugLevel
		}
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRevision, "revision", "",
		"TPM specification revision, e.g. 1.38 (default: taken from the dataset, else 1.38)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"verbose output")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(scanCmd)
}

// revisionFlag parses --revision, falling back to the given default when the
// flag was not set.
func revisionFlag(fallback tpmnonce.Revision) (tpmnonce.Revision, error) {
	if flagRevision == "" {
		return fallback, nil
	}
	rev, err := tpmnonce.ParseRevision(flagRevision)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid --revision %q", flagRevision)
	}
	return rev, nil
}

func parseHexFlag(name, value string) (*big.Int, error) {
	if value == "" {
		return nil, errors.Errorf("--%s is required", name)
	}
	v, ok := new(big.Int).SetString(strings.TrimPrefix(value, "0x"), 16)
	if !ok {
		return nil, errors.Errorf("--%s: %q is not hexadecimal", name, value)
	}
	return v, nil
}

func optionalHexFlag(name, value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	return parseHexFlag(name, value)
}

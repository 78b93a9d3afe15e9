package cli

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tpmscan/tpm-nonce/internal/batch"
	"github.com/tpmscan/tpm-nonce/internal/dataset"
	"github.com/tpmscan/tpm-nonce/internal/store"
	"github.com/tpmscan/tpm-nonce/pkg/tpmnonce"
)

var (
	scanDSN     string
	scanWorkers int
)

var scanCmd = &cobra.Command{
	Use:   "scan <archive.zip> [archive.zip ...]",
	Short: "Analyze measurement archives",
	Long: `Analyze one or more measurement archives: read the device capability
report, parse every captured signature file, verify each signature and
extract its nonce when the signing key was recorded.

With --dsn the devices and their signatures are persisted to Postgres.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dsn := scanDSN
		if dsn == "" {
			dsn = os.Getenv("TPMNONCE_DSN")
		}

		var db *store.Store
		if dsn != "" {
			var err error
			db, err = store.Open(ctx, dsn)
			if err != nil {
				return err
			}
			defer db.Close()
		}

		var failed int
		for _, path := range args {
			if err := scanArchive(ctx, path, db); err != nil {
				log.Error().Err(err).Str("archive", path).Msg("scan failed")
				failed++
			}
		}
		if failed > 0 {
			return errors.Errorf("%d of %d archives failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanDSN, "dsn", "", "Postgres DSN for persisting results (optional, falls back to TPMNONCE_DSN)")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "parallel workers (0 = number of CPU cores)")
}

func scanArchive(ctx context.Context, path string, db *store.Store) error {
	m, err := dataset.Open(path)
	if err != nil {
		return err
	}
	defer m.Close()

	info, err := m.DeviceInfo()
	if err != nil {
		return err
	}
	rev, err := revisionFlag(info.Revision)
	if err != nil {
		return err
	}

	host, err := m.HostName()
	if err != nil {
		log.Debug().Err(err).Str("archive", path).Msg("host name unavailable")
		host = ""
	}
	collected, err := m.Timestamp()
	if err != nil {
		log.Debug().Err(err).Str("archive", path).Msg("timestamp unavailable")
		collected = time.Time{}
	}

	sets, err := m.SignatureSets(rev)
	if err != nil {
		return err
	}

	var records []*tpmnonce.Record
	for _, set := range sets {
		records = append(records, set.Records...)
	}

	log.Info().
		Str("archive", m.Source()).
		Str("host", host).
		Str("manufacturer", info.Manufacturer).
		Str("revision", rev.String()).
		Int("signatures", len(records)).
		Msg("scanning")

	outcomes, summary := batch.Run(ctx, records, batch.Options{
		Workers: scanWorkers,
		Logger:  log,
	})

	log.Info().
		Str("archive", m.Source()).
		Int64("processed", summary.Processed).
		Int64("valid", summary.Valid).
		Int64("invalid", summary.Invalid).
		Int64("indeterminate", summary.Indeterminate).
		Int64("nonces", summary.Extracted).
		Int64("failed", summary.Failed).
		Msg("scan complete")

	if db == nil {
		return nil
	}

	device := &store.Device{
		Source:       m.Source(),
		Host:         host,
		Manufacturer: info.Manufacturer,
		Firmware:     info.Firmware,
		Revision:     rev,
		CollectedAt:  collected,
	}
	deviceID, err := db.UpsertDevice(ctx, device)
	if err != nil {
		return err
	}

	nonces := make([]string, len(outcomes))
	kept := records[:0]
	for _, out := range outcomes {
		if out.Err != nil {
			continue
		}
		nonces[len(kept)] = out.Nonce
		kept = append(kept, out.Record)
	}
	return db.ReplaceSignatures(ctx, deviceID, kept, nonces)
}

// Package store persists measured devices and their captured signatures in
// Postgres, so repeated analysis runs do not have to re-read the raw
// archives.
package store

import (
	"context"
	"database/sql"
	"math/big"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/tpmscan/tpm-nonce/pkg/tpmnonce"
)

// Device is one measurement source: the archive it came from and the TPM it
// describes.
type Device struct {
	ID           int64
	Source       string // archive base name, unique
	Host         string
	Manufacturer string
	Firmware     string
	Revision     tpmnonce.Revision
	CollectedAt  time.Time
}

// Store wraps the SQL connection.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	id           BIGSERIAL PRIMARY KEY,
	source       TEXT NOT NULL UNIQUE,
	host         TEXT NOT NULL DEFAULT '',
	manufacturer TEXT NOT NULL DEFAULT '',
	firmware     TEXT NOT NULL DEFAULT '',
	revision     INTEGER NOT NULL DEFAULT 0,
	collected_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS signatures (
	id          BIGSERIAL PRIMARY KEY,
	device_id   BIGINT NOT NULL REFERENCES devices (id) ON DELETE CASCADE,
	curve       TEXT NOT NULL,
	algorithm   INTEGER NOT NULL,
	sig_r       TEXT NOT NULL,
	sig_s       TEXT NOT NULL,
	digest      TEXT NOT NULL,
	public_x    TEXT NOT NULL,
	public_y    TEXT NOT NULL,
	private_key TEXT,
	nonce       TEXT
);

CREATE INDEX IF NOT EXISTS signatures_device_idx ON signatures (device_id);
`

func (s *Store) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "init schema")
}

// UpsertDevice inserts a device keyed on its source archive, updating the
// metadata on re-scan, and returns its row id.
func (s *Store) UpsertDevice(ctx context.Context, d *Device) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO devices (source, host, manufacturer, firmware, revision, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source) DO UPDATE SET
			host = EXCLUDED.host,
			manufacturer = EXCLUDED.manufacturer,
			firmware = EXCLUDED.firmware,
			revision = EXCLUDED.revision,
			collected_at = EXCLUDED.collected_at
		RETURNING id`,
		d.Source, d.Host, d.Manufacturer, d.Firmware, int(d.Revision), d.CollectedAt,
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "upsert device %s", d.Source)
	}
	d.ID = id
	return id, nil
}

// ReplaceSignatures swaps the stored signature rows of a device for the
// given records, each paired with its extracted nonce ("" when extraction
// was not possible).
func (s *Store) ReplaceSignatures(ctx context.Context, deviceID int64, records []*tpmnonce.Record, nonces []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM signatures WHERE device_id = $1`, deviceID); err != nil {
		return errors.Wrap(err, "clear signatures")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signatures (device_id, curve, algorithm, sig_r, sig_s, digest,
			public_x, public_y, private_key, nonce)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return errors.Wrap(err, "prepare insert")
	}
	defer stmt.Close()

	for i, rec := range records {
		nonce := sql.NullString{}
		if i < len(nonces) && nonces[i] != "" {
			nonce = sql.NullString{String: nonces[i], Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			deviceID, rec.Curve, int(rec.Algorithm),
			hexField(rec.R), hexField(rec.S), rec.Digest,
			hexField(rec.Public.X), hexField(rec.Public.Y),
			nullableHex(rec.Private), nonce,
		)
		if err != nil {
			return errors.Wrapf(err, "insert signature %d", i)
		}
	}

	return errors.Wrap(tx.Commit(), "commit")
}

// Devices lists all stored devices ordered by source.
func (s *Store) Devices(ctx context.Context) ([]*Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, host, manufacturer, firmware, revision, collected_at
		FROM devices ORDER BY source`)
	if err != nil {
		return nil, errors.Wrap(err, "query devices")
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		d := &Device{}
		var revision int
		var collected sql.NullTime
		if err := rows.Scan(&d.ID, &d.Source, &d.Host, &d.Manufacturer, &d.Firmware, &revision, &collected); err != nil {
			return nil, errors.Wrap(err, "scan device")
		}
		d.Revision = tpmnonce.Revision(revision)
		if collected.Valid {
			d.CollectedAt = collected.Time
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// SignaturesByDevice loads the stored records of one device.
func (s *Store) SignaturesByDevice(ctx context.Context, deviceID int64) ([]*tpmnonce.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT curve, algorithm, sig_r, sig_s, digest, public_x, public_y, private_key
		FROM signatures WHERE device_id = $1 ORDER BY id`, deviceID)
	if err != nil {
		return nil, errors.Wrap(err, "query signatures")
	}
	defer rows.Close()

	var records []*tpmnonce.Record
	for rows.Next() {
		var curve, r, sHex, digest, px, py string
		var algorithm int
		var priv sql.NullString
		if err := rows.Scan(&curve, &algorithm, &r, &sHex, &digest, &px, &py, &priv); err != nil {
			return nil, errors.Wrap(err, "scan signature")
		}

		rec := &tpmnonce.Record{
			Curve:     curve,
			Algorithm: tpmnonce.Algorithm(algorithm),
			Digest:    digest,
			Public:    &tpmnonce.Point{},
		}
		if rec.R, err = parseHexField(r); err != nil {
			return nil, err
		}
		if rec.S, err = parseHexField(sHex); err != nil {
			return nil, err
		}
		if rec.Public.X, err = parseHexField(px); err != nil {
			return nil, err
		}
		if rec.Public.Y, err = parseHexField(py); err != nil {
			return nil, err
		}
		if priv.Valid {
			if rec.Private, err = parseHexField(priv.String); err != nil {
				return nil, err
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func hexField(v *big.Int) string {
	return v.Text(16)
}

func nullableHex(v *big.Int) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.Text(16), Valid: true}
}

func parseHexField(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, errors.Errorf("corrupt hex field %q", s)
	}
	return v, nil
}

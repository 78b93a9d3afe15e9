package dataset

import (
	"encoding/csv"
	"io"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tpmscan/tpm-nonce/pkg/tpmnonce"
)

// Signature detail files are named after the curve and algorithm wire codes,
// e.g. detail/Cryptoops_Sign:ECC_0x0003_0x0018.csv.
var signFileRE = regexp.MustCompile(`detail/Cryptoops_Sign:ECC_(0x[0-9a-fA-F]+)_(0x[0-9a-fA-F]+)\.csv$`)

// SignatureSet is one signature detail file decoded into core records.
type SignatureSet struct {
	Curve     string
	Algorithm tpmnonce.Algorithm
	Records   []*tpmnonce.Record
}

// SignatureSets decodes every ECC signing detail file in the archive. The
// revision (from the capability report, or unknown) is stamped onto every
// record so the per-revision formulas apply downstream. Detail files whose
// wire codes are not in the registries are reported as errors, not skipped
// silently.
func (m *Measurement) SignatureSets(rev tpmnonce.Revision) ([]*SignatureSet, error) {
	var sets []*SignatureSet

	for _, f := range m.zr.File {
		match := signFileRE.FindStringSubmatch(f.Name)
		if match == nil || !strings.HasPrefix(f.Name, m.root) {
			continue
		}

		curve, alg, err := decodeSelectors(match[1], match[2])
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %s", m.Source(), f.Name)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "%s: open %s", m.Source(), f.Name)
		}
		records, err := ParseSignatureCSV(rc, curve.Name, alg, rev)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %s", m.Source(), f.Name)
		}

		sets = append(sets, &SignatureSet{
			Curve:     curve.Name,
			Algorithm: alg,
			Records:   records,
		})
	}

	return sets, nil
}

func decodeSelectors(curveCode, algCode string) (*tpmnonce.Curve, tpmnonce.Algorithm, error) {
	curveID, err := strconv.ParseUint(strings.TrimPrefix(curveCode, "0x"), 16, 16)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "curve code %s", curveCode)
	}
	curve, err := tpmnonce.CurveByID(tpmnonce.CurveID(curveID))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "curve code %s", curveCode)
	}

	algID, err := strconv.ParseUint(strings.TrimPrefix(algCode, "0x"), 16, 16)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "algorithm code %s", algCode)
	}
	alg, err := tpmnonce.AlgorithmByID(uint16(algID))
	if err != nil {
		return nil, 0, errors.Wrapf(err, "algorithm code %s", algCode)
	}

	return curve, alg, nil
}

// ParseSignatureCSV decodes one signature detail file. Required columns are
// signature_r, signature_s, digest, public_key_x and public_key_y; a
// private_key column appears in calibration captures and is carried along
// when present. Rows with a nonempty return_code other than zero are
// skipped, the TPM rejected those operations.
func ParseSignatureCSV(r io.Reader, curve string, alg tpmnonce.Algorithm, rev tpmnonce.Revision) ([]*tpmnonce.Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"signature_r", "signature_s", "digest", "public_key_x", "public_key_y"} {
		if _, ok := col[required]; !ok {
			return nil, errors.Errorf("missing required column %s", required)
		}
	}
	privIdx, hasPriv := col["private_key"]
	rcIdx, hasRC := col["return_code"]

	var records []*tpmnonce.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		if hasRC && !successCode(row[rcIdx]) {
			continue
		}

		rec := &tpmnonce.Record{
			Curve:     curve,
			Algorithm: alg,
			Digest:    strings.ToLower(row[col["digest"]]),
			Revision:  rev,
			Public:    &tpmnonce.Point{},
		}
		if rec.R, err = parseHexInt(row[col["signature_r"]]); err != nil {
			return nil, errors.Wrapf(err, "line %d: signature_r", line)
		}
		if rec.S, err = parseHexInt(row[col["signature_s"]]); err != nil {
			return nil, errors.Wrapf(err, "line %d: signature_s", line)
		}
		if rec.Public.X, err = parseHexInt(row[col["public_key_x"]]); err != nil {
			return nil, errors.Wrapf(err, "line %d: public_key_x", line)
		}
		if rec.Public.Y, err = parseHexInt(row[col["public_key_y"]]); err != nil {
			return nil, errors.Wrapf(err, "line %d: public_key_y", line)
		}
		if hasPriv && row[privIdx] != "" {
			if rec.Private, err = parseHexInt(row[privIdx]); err != nil {
				return nil, errors.Wrapf(err, "line %d: private_key", line)
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

func successCode(s string) bool {
	if s == "" {
		return true
	}
	code, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	return err == nil && code == 0
}

func parseHexInt(s string) (*big.Int, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, errors.Errorf("invalid hex integer %q", s)
	}
	return v, nil
}

// Package capability parses the results.yaml capability report that
// accompanies every tpm2-algtest measurement, yielding the device identity
// and the specification revision the nonce formulas branch on.
package capability

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tpmscan/tpm-nonce/pkg/tpmnonce"
)

// DeviceInfo is the subset of the capability report the analysis needs.
type DeviceInfo struct {
	Manufacturer string
	Firmware     string
	Revision     tpmnonce.Revision
}

// ParseReport reads a results.yaml document. Reports in the wild are often
// not quite YAML (unquoted binary vendor strings and the like), so a failed
// strict parse falls back to a line-oriented best-effort scan. Missing
// fields degrade to "unknown" values; only an unreadable input is an error.
func ParseReport(r io.Reader) (*DeviceInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read capability report")
	}

	info := &DeviceInfo{
		Manufacturer: "unknown",
		Firmware:     "0.0.0.0",
		Revision:     tpmnonce.RevisionUnknown,
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil || doc == nil {
		doc = lenientDoc(ParseLenient(strings.NewReader(string(data))))
	}

	if v, ok := doc["Manufacturer"].(string); ok && v != "" {
		info.Manufacturer = v
	}
	if v, ok := stringish(doc["Firmware version"]); ok && v != "" {
		info.Firmware = v
	}
	info.Revision = revisionFrom(doc)

	return info, nil
}

// ParseReportFile is ParseReport over a file path.
func ParseReportFile(path string) (*DeviceInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return ParseReport(f)
}

// ParseLenient scans "key: value" lines, ignoring everything that is not
// one. It is the fallback for reports that choke a real YAML parser.
func ParseLenient(r io.Reader) map[string]string {
	out := make(map[string]string)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ": ", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.Trim(parts[0], " \t\"'")
		value := strings.Trim(parts[1], " \"'")
		out[key] = value
	}
	return out
}

func lenientDoc(flat map[string]string) map[string]interface{} {
	doc := make(map[string]interface{}, len(flat))
	for k, v := range flat {
		doc[k] = v
	}
	return doc
}

// revisionFrom digs Capability_properties-fixed / TPM2_PT_REVISION / value
// out of the report. Anything missing or unparsable is RevisionUnknown,
// which the core maps to the 1.38 default.
func revisionFrom(doc map[string]interface{}) tpmnonce.Revision {
	props, ok := doc["Capability_properties-fixed"].(map[string]interface{})
	if !ok {
		return tpmnonce.RevisionUnknown
	}
	rev, ok := props["TPM2_PT_REVISION"].(map[string]interface{})
	if !ok {
		return tpmnonce.RevisionUnknown
	}

	switch v := rev["value"].(type) {
	case float64:
		return tpmnonce.RevisionFromFloat(v)
	case int:
		return tpmnonce.RevisionFromFloat(float64(v))
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return tpmnonce.RevisionUnknown
		}
		return tpmnonce.RevisionFromFloat(f)
	default:
		return tpmnonce.RevisionUnknown
	}
}

func stringish(v interface{}) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int:
		return strconv.Itoa(x), true
	default:
		return "", false
	}
}

// Package dataset reads tpm2-algtest measurement archives: zip files
// containing a capability report (results.yaml), TPM property dumps and
// per-algorithm CSV detail files, among them the captured ECC signatures
// this project exists to analyze.
package dataset

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"

	"github.com/tpmscan/tpm-nonce/internal/capability"
)

var hostRE = regexp.MustCompile(`out-(.*)-[0-9]+-[0-9]+`)

// Measurement is one opened archive. It is not safe for concurrent use.
type Measurement struct {
	path string
	zr   *zip.ReadCloser
	root string // entry prefix, "" or "<dir>/"
}

// Open opens a measurement archive and locates its content root. Civilised
// archives NAME.zip contain a single top-level directory NAME, but some
// omit it.
func Open(zipPath string) (*Measurement, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errors.Wrapf(err, "bad archive %s", zipPath)
	}

	m := &Measurement{path: zipPath, zr: zr}
	m.root = m.findRoot()
	return m, nil
}

// Close releases the underlying zip handle.
func (m *Measurement) Close() error {
	return m.zr.Close()
}

// Source is the archive's base file name, used as the stable identifier of
// the measurement.
func (m *Measurement) Source() string {
	return path.Base(strings.ReplaceAll(m.path, "\\", "/"))
}

func (m *Measurement) findRoot() string {
	tops := make(map[string]bool)
	var topDir string
	for _, f := range m.zr.File {
		seg, rest, _ := strings.Cut(f.Name, "/")
		if rest == "" && !f.FileInfo().IsDir() {
			return "" // loose file at top level
		}
		tops[seg] = true
		topDir = seg
	}
	if len(tops) != 1 {
		return ""
	}
	// Only trust the single directory when the archive is named after it.
	matched, _ := regexp.MatchString(`(^|/)`+regexp.QuoteMeta(topDir)+`\.zip$`, m.Source())
	if matched {
		return topDir + "/"
	}
	return ""
}

func (m *Measurement) open(name string) (io.ReadCloser, error) {
	f, err := m.zr.Open(m.root + name)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: open %s", m.Source(), name)
	}
	return f, nil
}

func (m *Measurement) exists(name string) bool {
	_, err := m.zr.Open(m.root + name)
	return err == nil
}

// DeviceInfo parses the capability report, if present.
func (m *Measurement) DeviceInfo() (*capability.DeviceInfo, error) {
	f, err := m.open("results.yaml")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return capability.ParseReport(f)
}

// HostName determines the measured machine's name, trying the archive file
// name, the capability report and the TPM property dump in that order.
func (m *Measurement) HostName() (string, error) {
	if match := hostRE.FindStringSubmatch(m.path); match != nil {
		return match[1], nil
	}

	if host := m.hostFromResults(); host != "" {
		return host, nil
	}

	if data, err := m.TPMData(); err == nil && data != nil {
		parts := make([]string, 0, 3)
		for _, p := range []string{data.Platform, data.Vendor, data.VendorString} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			return strings.ToLower(strings.ReplaceAll(strings.Join(parts, "-"), " ", "-")), nil
		}
	}

	return "", fmt.Errorf("%s: cannot determine hostname", m.Source())
}

func (m *Measurement) hostFromResults() string {
	f, err := m.open("results.yaml")
	if err != nil {
		return ""
	}
	defer f.Close()

	// The lenient scan is enough here and much more forgiving than a real
	// YAML parse.
	flat := capability.ParseLenient(f)
	mf, okM := flat["Manufacturer"]
	vs, okV := flat["Vendor string"]
	dev, okD := flat["Device name"]
	if !okM || !okV || !okD {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(mf+"-"+vs+"-"+dev, " ", "-"))
}

const resultsTimeLayout = "2006/01/02 15:04:05"

// Timestamp determines when the measurement ran: the capability report's
// execution time, then the date embedded in the file name, then the first
// member's modification time.
func (m *Measurement) Timestamp() (time.Time, error) {
	if f, err := m.open("results.yaml"); err == nil {
		flat := capability.ParseLenient(f)
		f.Close()
		if raw, ok := flat["Execution date/time"]; ok {
			if stamp, err := time.Parse(resultsTimeLayout, raw); err == nil {
				return stamp, nil
			}
		}
	}

	if parts := strings.Split(m.Source(), "-"); len(parts) >= 4 {
		if stamp, err := time.Parse("060102 150405.zip", parts[2]+" "+parts[3]); err == nil {
			return stamp, nil
		}
	}

	for _, f := range m.zr.File {
		if !f.FileInfo().IsDir() {
			return f.Modified, nil
		}
	}

	return time.Time{}, fmt.Errorf("%s: cannot determine time stamp", m.Source())
}

// TPMData is the device identity assembled from the property dumps.
type TPMData struct {
	Platform     string // dmidecode product name
	Vendor       string // TPM2_PT_MANUFACTURER
	VendorString string // TPM2_PT_VENDOR_STRING_1..4
	Firmware     uint64 // TPM2_PT_FIRMWARE_VERSION_1 << 32 | _2
}

// FirmwareString renders the packed firmware version as four 16-bit
// dot-separated components.
func (d *TPMData) FirmwareString() string {
	fw := d.Firmware
	parts := make([]string, 4)
	for i := 3; i >= 0; i-- {
		parts[i] = fmt.Sprintf("%d", fw&0xffff)
		fw >>= 16
	}
	return strings.Join(parts, ".")
}

// TPMData reads the fixed-property dump (two historical file names exist)
// and the dmidecode output. It returns nil when neither yields anything.
func (m *Measurement) TPMData() (*TPMData, error) {
	data := &TPMData{}
	found := false

	for _, name := range []string{
		"detail/Quicktest_properties-fixed.txt",
		"detail/Capability_properties-fixed.txt",
	} {
		f, err := m.open(name)
		if err != nil {
			continue
		}
		props, err := parseProperties(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %s", m.Source(), name)
		}
		if mf, ok := props["TPM2_PT_MANUFACTURER"]; ok {
			data.Vendor = mf.Value
			data.VendorString = vendorString(props)
			data.Firmware = firmwareVersion(props)
			found = true
		}
		break
	}

	if f, err := m.open("detail/dmidecode_system_info.txt"); err == nil {
		flat := capability.ParseLenient(f)
		f.Close()
		if product, ok := flat["Product Name"]; ok {
			data.Platform = product
			found = true
		}
	}

	if !found {
		return nil, nil
	}
	return data, nil
}

// Property is one entry of a properties-fixed dump: a header line "NAME:"
// followed by indented raw/value pairs.
type Property struct {
	Raw   uint64
	Value string
}

func parseProperties(r io.Reader) (map[string]Property, error) {
	flat, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	headerRE := regexp.MustCompile(`^(\S+):$`)
	props := make(map[string]Property)
	header := ""

	for _, line := range strings.Split(string(flat), "\n") {
		line = strings.TrimRight(line, "\r")
		if match := headerRE.FindStringSubmatch(line); match != nil {
			header = match[1]
			props[header] = Property{}
			continue
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		key = strings.Trim(key, " \t\"'")
		value = strings.Trim(value, " \t\"'")

		if header == "" {
			return nil, fmt.Errorf("%s found before any header", key)
		}

		p := props[header]
		switch key {
		case "value":
			if value != "" {
				p.Value = value
			}
		case "raw":
			var raw uint64
			if _, err := fmt.Sscanf(value, "0x%x", &raw); err != nil {
				if _, err := fmt.Sscanf(value, "%d", &raw); err != nil {
					continue
				}
			}
			p.Raw = raw
		}
		props[header] = p
	}

	return props, nil
}

// vendorString decodes the four packed vendor string registers. Unprintable
// contents fall back to a hex rendering.
func vendorString(props map[string]Property) string {
	var data []byte
	for i := 1; i <= 4; i++ {
		part := props[fmt.Sprintf("TPM2_PT_VENDOR_STRING_%d", i)].Raw
		var chunk []byte
		for part > 0 {
			chunk = append(chunk, byte(part&0xff))
			part >>= 8
		}
		for l, r := 0, len(chunk)-1; l < r; l, r = l+1, r-1 {
			chunk[l], chunk[r] = chunk[r], chunk[l]
		}
		data = append(data, chunk...)
	}

	for len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}

	printable := true
	for _, c := range data {
		if !unicode.IsPrint(rune(c)) {
			printable = false
			break
		}
	}
	if printable {
		return string(data)
	}

	var sb strings.Builder
	for _, c := range data {
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}

func firmwareVersion(props map[string]Property) uint64 {
	hi, okHi := props["TPM2_PT_FIRMWARE_VERSION_1"]
	lo, okLo := props["TPM2_PT_FIRMWARE_VERSION_2"]
	if !okHi || !okLo {
		return 0
	}
	return hi.Raw<<32 | lo.Raw
}

package dataset

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tpmscan/tpm-nonce/pkg/tpmnonce"
)

const testResults = `Manufacturer: STM
Vendor string: xCG fTPM
Device name: /dev/tpm0
Firmware version: 74.8.17568.21827
Execution date/time: 2021/07/15 12:30:45
Capability_properties-fixed:
  TPM2_PT_REVISION:
    raw: 0x8A
    value: 1.38
`

const testProperties = `TPM2_PT_MANUFACTURER:
  raw: 0x53544D20
  value: STM
TPM2_PT_VENDOR_STRING_1:
  raw: 0x78434720
TPM2_PT_VENDOR_STRING_2:
  raw: 0x6654504D
TPM2_PT_VENDOR_STRING_3:
  raw: 0x00000000
TPM2_PT_VENDOR_STRING_4:
  raw: 0x00000000
TPM2_PT_FIRMWARE_VERSION_1:
  raw: 0x004A0008
TPM2_PT_FIRMWARE_VERSION_2:
  raw: 0x44A05543
`

const testSignatures = `signature_r,signature_s,digest,public_key_x,public_key_y,private_key,return_code
0x11,0x22,00000000000000000000000000000000000000000000000000000000000000aa,0x01,0x02,0x33,0000
0x44,0x55,00000000000000000000000000000000000000000000000000000000000000bb,0x03,0x04,,0000
0x66,0x77,00000000000000000000000000000000000000000000000000000000000000cc,0x05,0x06,0x99,01c4
`

func writeArchive(t *testing.T, name, root string, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	zw := zip.NewWriter(out)
	for entry, content := range files {
		w, err := zw.Create(root + entry)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func stdFiles() map[string]string {
	return map[string]string{
		"results.yaml": testResults,
		"detail/Quicktest_properties-fixed.txt":    testProperties,
		"detail/Cryptoops_Sign:ECC_0x0003_0x0018.csv": testSignatures,
	}
}

func TestMeasurementMetadata(t *testing.T) {
	path := writeArchive(t, "out-testhost-210715-123045.zip", "", stdFiles())
	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	host, err := m.HostName()
	require.NoError(t, err)
	require.Equal(t, "testhost", host)

	stamp, err := m.Timestamp()
	require.NoError(t, err)
	require.Equal(t, time.Date(2021, 7, 15, 12, 30, 45, 0, time.UTC), stamp)

	info, err := m.DeviceInfo()
	require.NoError(t, err)
	require.Equal(t, "STM", info.Manufacturer)
	require.Equal(t, tpmnonce.Revision(138), info.Revision)

	data, err := m.TPMData()
	require.NoError(t, err)
	require.NotNil(t, data)
	require.Equal(t, "STM", data.Vendor)
	require.Equal(t, "xCG fTPM", data.VendorString)
	require.Equal(t, "74.8.17568.21827", data.FirmwareString())
}

// Archives named NAME.zip that wrap everything in a single NAME/ directory
// must be unwrapped transparently.
func TestMeasurementWrappedRoot(t *testing.T) {
	path := writeArchive(t, "sample.zip", "sample/", stdFiles())
	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	info, err := m.DeviceInfo()
	require.NoError(t, err)
	require.Equal(t, "STM", info.Manufacturer)

	sets, err := m.SignatureSets(info.Revision)
	require.NoError(t, err)
	require.Len(t, sets, 1)
}

func TestMeasurementHostFromResults(t *testing.T) {
	path := writeArchive(t, "plain.zip", "", stdFiles())
	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	host, err := m.HostName()
	require.NoError(t, err)
	require.Equal(t, "stm-xcg-ftpm-/dev/tpm0", host)
}

func TestSignatureSets(t *testing.T) {
	path := writeArchive(t, "out-host-210101-000000.zip", "", stdFiles())
	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	sets, err := m.SignatureSets(tpmnonce.Revision(138))
	require.NoError(t, err)
	require.Len(t, sets, 1)

	set := sets[0]
	require.Equal(t, "P256", set.Curve)
	require.Equal(t, tpmnonce.AlgECDSA, set.Algorithm)
	// The third row has a nonzero return code and is dropped.
	require.Len(t, set.Records, 2)

	first := set.Records[0]
	require.Equal(t, int64(0x11), first.R.Int64())
	require.Equal(t, int64(0x22), first.S.Int64())
	require.Equal(t, int64(0x33), first.Private.Int64())
	require.Equal(t, tpmnonce.Revision(138), first.Revision)
	require.True(t, strings.HasSuffix(first.Digest, "aa"))

	second := set.Records[1]
	require.Nil(t, second.Private)
}

func TestParseSignatureCSVMissingColumn(t *testing.T) {
	_, err := ParseSignatureCSV(strings.NewReader("signature_r,signature_s\n1,2\n"),
		"P256", tpmnonce.AlgECDSA, tpmnonce.RevisionUnknown)
	require.Error(t, err)
	require.Contains(t, err.Error(), "digest")
}

func TestParseProperties(t *testing.T) {
	props, err := parseProperties(strings.NewReader(testProperties))
	require.NoError(t, err)
	require.Equal(t, "STM", props["TPM2_PT_MANUFACTURER"].Value)
	require.Equal(t, uint64(0x78434720), props["TPM2_PT_VENDOR_STRING_1"].Raw)

	_, err = parseProperties(strings.NewReader("raw: 0x1\n"))
	require.Error(t, err)
}

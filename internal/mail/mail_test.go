package mail

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvdnes/dmarc-reporter/internal/archive"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		contentType string
		expected    ContentKind
	}{
		{"application/zip", ContentZip},
		{"application/x-zip-compressed", ContentZip},
		{"application/gzip", ContentGzip},
		{"multipart/mixed", ContentIgnore},
		{"text/plain", ContentIgnore},
		{"text/html", ContentIgnore},
		{"application/pdf", ContentUnknown},
		{"", ContentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.contentType))
		})
	}
}

func TestExtractReports(t *testing.T) {
	gzPayload := gzipBytes(t, []byte("<feedback/>"))

	msg := buildMessage(t, gzPayload, "application/gzip", "google.com!example.com!1.xml.gz")

	reports, unknown, err := ExtractReports(bytes.NewReader(msg))
	require.NoError(t, err)

	require.Len(t, reports, 1)
	assert.Equal(t, archive.KindGzip, reports[0].Kind)
	assert.Equal(t, "google.com!example.com!1.xml.gz", reports[0].Filename)
	assert.Equal(t, gzPayload, reports[0].Payload)
	assert.Empty(t, unknown)
}

func TestExtractReportsSniffsOctetStream(t *testing.T) {
	zipPayload := zipBytes(t, "report.xml", "<feedback/>")

	msg := buildMessage(t, zipPayload, "application/octet-stream", "report.zip")

	reports, unknown, err := ExtractReports(bytes.NewReader(msg))
	require.NoError(t, err)

	require.Len(t, reports, 1, "octet-stream attachments are classified by magic number")
	assert.Equal(t, archive.KindZip, reports[0].Kind)
	assert.Empty(t, unknown)
}

func TestExtractReportsReportsUnknownTypes(t *testing.T) {
	msg := buildMessage(t, []byte("%PDF-1.4 not a report"), "application/pdf", "invoice.pdf")

	reports, unknown, err := ExtractReports(bytes.NewReader(msg))
	require.NoError(t, err)

	assert.Empty(t, reports)
	assert.Contains(t, unknown, "application/pdf")
}

func TestExtractReportsNotAMessage(t *testing.T) {
	_, _, err := ExtractReports(bytes.NewReader(nil))
	assert.Error(t, err)
}

// buildMessage assembles a realistic report delivery: text body plus one
// attachment.
func buildMessage(t *testing.T, attachment []byte, contentType, filename string) []byte {
	t.Helper()

	part, err := enmime.Builder().
		From("Reporter", "noreply-dmarc-support@google.com").
		To("Postmaster", "postmaster@example.com").
		Subject("Report domain: example.com").
		Text([]byte("This is an aggregate report from google.com.")).
		AddAttachment(attachment, contentType, filename).
		Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, part.Encode(&buf))
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func zipBytes(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

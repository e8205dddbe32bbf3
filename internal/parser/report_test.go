package parser

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvdnes/dmarc-reporter/internal/analysis"
)

func TestParseReport(t *testing.T) {
	tests := []struct {
		name         string
		file         string
		wantOrg      string
		wantReportID string
		wantDomain   string
		wantPassed   int
		wantFailed   int
		wantSPF      map[string]int
		wantDKIM     map[string]int
		wantStart    *time.Time
	}{
		{
			name:         "Google report with mixed verdicts",
			file:         "testdata/dmarc_google.xml",
			wantOrg:      "google.com",
			wantReportID: "8293631894893125362",
			wantDomain:   "example.com",
			wantPassed:   1,
			wantFailed:   1,
			// The softfail sub-result belongs to mailer.example.net and
			// must stay out of the table.
			wantSPF:   map[string]int{"fail": 1},
			wantDKIM:  map[string]int{"pass": 1, "fail": 1},
			wantStart: timePtr(time.Unix(1622505600, 0).UTC()),
		},
		{
			name:         "message-id style report id, non-numeric begin",
			file:         "testdata/dmarc_messageid.xml",
			wantOrg:      "google.com",
			wantReportID: "2021.report1",
			wantDomain:   "example.com",
			wantPassed:   1,
			wantFailed:   0,
			wantSPF:      map[string]int{"pass": 1},
			wantDKIM:     map[string]int{},
			wantStart:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := os.Open(tt.file)
			require.NoError(t, err, "failed to open test file")
			defer f.Close()

			stats, err := ParseReport(f)
			require.NoError(t, err, "failed to parse report")

			assert.Equal(t, tt.wantOrg, stats.Organisation, "organisation")
			assert.Equal(t, tt.wantReportID, stats.ReportID, "report id")
			assert.Equal(t, tt.wantDomain, stats.Domain, "domain")
			assert.Equal(t, tt.wantPassed, stats.Passed, "passed")
			assert.Equal(t, tt.wantFailed, stats.Failed, "failed")
			assert.Equal(t, tt.wantSPF, stats.SPFResult, "spf results")
			assert.Equal(t, tt.wantDKIM, stats.DKIMResult, "dkim results")
			assert.Equal(t, tt.wantStart, stats.Start, "start timestamp")
		})
	}
}

func TestParseReportRecordTotal(t *testing.T) {
	f, err := os.Open("testdata/dmarc_google.xml")
	require.NoError(t, err)
	defer f.Close()

	stats, err := ParseReport(f)
	require.NoError(t, err)

	// Every record ends up in exactly one of the two counters, whatever
	// its sub-result domains look like.
	assert.Equal(t, 2, stats.Passed+stats.Failed)
}

func TestParseReportCountDoesNotWeight(t *testing.T) {
	// One record claiming 5000 messages still moves the counters by 1.
	doc := reportDoc(`
  <record>
    <row>
      <source_ip>192.0.2.1</source_ip>
      <count>5000</count>
      <policy_evaluated><dkim>pass</dkim><spf>fail</spf></policy_evaluated>
    </row>
    <auth_results>
      <dkim><domain>example.com</domain><result>pass</result></dkim>
    </auth_results>
  </record>`)

	stats, err := ParseReport(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Passed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, map[string]int{"pass": 1}, stats.DKIMResult)
}

func TestParseReportErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantMsg string
	}{
		{
			name: "record before policy_published",
			doc: `<feedback>
  <report_metadata><org_name>google.com</org_name><report_id>x</report_id></report_metadata>
  <record><row><source_ip>192.0.2.1</source_ip><count>1</count></row></record>
  <policy_published><domain>example.com</domain></policy_published>
</feedback>`,
			wantMsg: "record element before policy_published",
		},
		{
			name:    "no policy_published at all",
			doc:     `<feedback><report_metadata><org_name>g</org_name><report_id>x</report_id></report_metadata></feedback>`,
			wantMsg: "report ended before policy_published",
		},
		{
			name: "doctype is refused",
			doc: `<!DOCTYPE feedback [<!ENTITY x SYSTEM "file:///etc/passwd">]>
<feedback><policy_published><domain>example.com</domain></policy_published></feedback>`,
			wantMsg: "document type definitions are not allowed",
		},
		{
			name:    "mismatched tags",
			doc:     `<feedback><report_metadata><org_name>g</org_name></wrong></feedback>`,
			wantMsg: "",
		},
		{
			name:    "not xml at all",
			doc:     `{"this": "is json"}`,
			wantMsg: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := ParseReport(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Nil(t, stats, "no partial statistics on failure")

			var perr *Error
			require.ErrorAs(t, err, &perr, "expected a parse error")
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestParseReportMissingOrganisation(t *testing.T) {
	doc := `<feedback>
  <report_metadata><report_id>abc</report_id></report_metadata>
  <policy_published><domain>example.com</domain></policy_published>
</feedback>`

	stats, err := ParseReport(strings.NewReader(doc))
	require.Error(t, err)
	assert.Nil(t, stats)
	assert.ErrorIs(t, err, analysis.ErrNoOrganisation)
}

// reportDoc wraps record markup in a minimal valid report for example.com.
func reportDoc(records string) string {
	return `<feedback>
  <report_metadata>
    <org_name>google.com</org_name>
    <report_id>test-report</report_id>
    <date_range><begin>1622505600</begin><end>1622591999</end></date_range>
  </report_metadata>
  <policy_published><domain>example.com</domain></policy_published>` +
		records + `
</feedback>`
}

func timePtr(t time.Time) *time.Time { return &t }

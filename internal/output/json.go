package output

import (
	"encoding/json"
	"time"

	"github.com/mvdnes/dmarc-reporter/pkg/types"
)

// JSONReport is the JSON representation of one report summary.
type JSONReport struct {
	Organisation string         `json:"organisation"`
	ReportID     string         `json:"report_id"`
	Start        *string        `json:"start"`
	End          *string        `json:"end"`
	Domain       string         `json:"domain"`
	Passed       int            `json:"passed"`
	Failed       int            `json:"failed"`
	SPFResult    map[string]int `json:"spf_result"`
	DKIMResult   map[string]int `json:"dkim_result"`
}

// ToJSON renders one report summary as indented JSON.
func ToJSON(stats *types.DmarcStatistics) (string, error) {
	out := JSONReport{
		Organisation: stats.Organisation,
		ReportID:     stats.ReportID,
		Start:        formatTimeJSON(stats.Start),
		End:          formatTimeJSON(stats.End),
		Domain:       stats.Domain,
		Passed:       stats.Passed,
		Failed:       stats.Failed,
		SPFResult:    stats.SPFResult,
		DKIMResult:   stats.DKIMResult,
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatTimeJSON(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

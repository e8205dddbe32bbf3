// Package analysis folds DMARC record outcomes into report statistics.
package analysis

import "github.com/mvdnes/dmarc-reporter/pkg/types"

// Builder accumulates record outcomes into an in-progress summary. Callers
// construct it from fully resolved report metadata, Add each record in
// input order, and Finish exactly once. The finished value is never touched
// again by the builder.
type Builder struct {
	stats types.DmarcStatistics
}

// NewBuilder starts a summary for one report. The report id is normalized
// here, so metadata defects surface before any record is aggregated.
func NewBuilder(md types.ReportMetadata) (*Builder, error) {
	id, err := NormalizeReportID(md.RawReportID, md.Organisation)
	if err != nil {
		return nil, err
	}

	return &Builder{
		stats: types.DmarcStatistics{
			Organisation: md.Organisation,
			ReportID:     id,
			Start:        md.Start,
			End:          md.End,
			Domain:       md.Domain,
			SPFResult:    make(map[string]int),
			DKIMResult:   make(map[string]int),
		},
	}, nil
}

// Add folds one record into the summary.
//
// A record passes when either policy-evaluated mechanism passes; a single
// passing mechanism clears the record. Passed/Failed move by 1 per record
// and the result tables by 1 per matching sub-result; the record's count
// field weights neither. Sub-results for domains other than the policy
// domain are ignored, so the tables and the totals need not sum to the same
// number.
func (b *Builder) Add(rec types.RecordOutcome) {
	if rec.EvaluatedDKIM == "pass" || rec.EvaluatedSPF == "pass" {
		b.stats.Passed++
	} else {
		b.stats.Failed++
	}

	for _, dkim := range rec.DKIM {
		if dkim.Domain != b.stats.Domain {
			continue
		}
		b.stats.DKIMResult[dkim.Result]++
	}

	for _, spf := range rec.SPF {
		if spf.Domain != b.stats.Domain {
			continue
		}
		b.stats.SPFResult[spf.Result]++
	}
}

// Finish returns the completed statistics.
func (b *Builder) Finish() *types.DmarcStatistics {
	return &b.stats
}

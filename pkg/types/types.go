// Package types contains shared data types for dmarc-reporter.
package types

import "time"

// ReportMetadata is the metadata section of a DMARC aggregate report. It is
// fully resolved before any record is aggregated because record filtering
// keys on Domain.
type ReportMetadata struct {
	Organisation string
	RawReportID  string
	Start        *time.Time // nil when date_range/begin is missing or non-numeric
	End          *time.Time // nil when date_range/end is missing or non-numeric
	Domain       string     // domain from policy_published
}

// AuthResult is one per-mechanism sub-result from a record's auth_results
// section, keyed by its own signing/sending domain.
type AuthResult struct {
	Domain string
	Result string
}

// RecordOutcome is the extracted content of a single record element. It is
// transient: fed to the aggregator once and discarded.
type RecordOutcome struct {
	SourceIP string
	Count    int

	// Policy-evaluated verdicts, empty when absent.
	EvaluatedDKIM string
	EvaluatedSPF  string

	DKIM []AuthResult
	SPF  []AuthResult
}

// DmarcStatistics is the finished summary of one aggregate report. It is
// constructed once per successfully parsed report and never mutated
// afterwards.
type DmarcStatistics struct {
	Organisation string
	ReportID     string // normalized form
	Start        *time.Time
	End          *time.Time
	Domain       string

	// Passed and Failed count records, not messages: each record
	// increments exactly one of them by 1 regardless of its count field.
	Passed int
	Failed int

	// Result label to occurrence count, counting only sub-results whose
	// domain equals Domain.
	SPFResult  map[string]int
	DKIMResult map[string]int
}

// Package parser provides a streaming parser for DMARC aggregate reports.
package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mvdnes/dmarc-reporter/internal/analysis"
	"github.com/mvdnes/dmarc-reporter/pkg/types"
)

// Error indicates a malformed report document or a violated structural
// expectation. The underlying decoder error, when present, carries the input
// line number.
type Error struct {
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// xmlReportMetadata mirrors the report_metadata element. The timestamps are
// kept as strings so a missing or non-numeric value degrades to an absent
// field instead of failing the whole parse.
type xmlReportMetadata struct {
	OrgName   string `xml:"org_name"`
	ReportID  string `xml:"report_id"`
	DateRange struct {
		Begin string `xml:"begin"`
		End   string `xml:"end"`
	} `xml:"date_range"`
}

type xmlPolicyPublished struct {
	Domain string `xml:"domain"`
}

type xmlRecord struct {
	Row struct {
		SourceIP        string `xml:"source_ip"`
		Count           int    `xml:"count"`
		PolicyEvaluated struct {
			DKIM string `xml:"dkim"`
			SPF  string `xml:"spf"`
		} `xml:"policy_evaluated"`
	} `xml:"row"`
	AuthResults struct {
		DKIM []xmlAuthResult `xml:"dkim"`
		SPF  []xmlAuthResult `xml:"spf"`
	} `xml:"auth_results"`
}

type xmlAuthResult struct {
	Domain string `xml:"domain"`
	Result string `xml:"result"`
}

// ParseReport consumes one decompressed report stream and produces its
// statistics. The document is processed as a token stream in two strictly
// sequential phases: metadata (ending at the close of policy_published),
// then records. Only one element's worth of state is held at a time, so
// memory stays bounded regardless of document size.
func ParseReport(r io.Reader) (*types.DmarcStatistics, error) {
	d := xml.NewDecoder(r)
	d.Strict = true

	md, err := parseMetadata(d)
	if err != nil {
		return nil, err
	}

	builder, err := analysis.NewBuilder(md)
	if err != nil {
		return nil, err
	}

	if err := parseRecords(d, builder); err != nil {
		return nil, err
	}

	return builder.Finish(), nil
}

// parseMetadata scans forward until policy_published closes, collecting the
// report_metadata fields on the way. The record section must not begin
// before the policy domain is known; a record element here fails the parse.
func parseMetadata(d *xml.Decoder) (types.ReportMetadata, error) {
	var md types.ReportMetadata

	for {
		tok, err := d.Token()
		if err == io.EOF {
			return md, &Error{Msg: "report ended before policy_published element"}
		}
		if err != nil {
			return md, &Error{Msg: "reading report", Err: err}
		}

		switch t := tok.(type) {
		case xml.Directive:
			if err := rejectDoctype(t); err != nil {
				return md, err
			}
		case xml.StartElement:
			switch t.Name.Local {
			case "report_metadata":
				var raw xmlReportMetadata
				if err := d.DecodeElement(&raw, &t); err != nil {
					return md, &Error{Msg: "decoding report_metadata", Err: err}
				}
				md.Organisation = raw.OrgName
				md.RawReportID = raw.ReportID
				md.Start = parseEpoch(raw.DateRange.Begin)
				md.End = parseEpoch(raw.DateRange.End)
			case "policy_published":
				var raw xmlPolicyPublished
				if err := d.DecodeElement(&raw, &t); err != nil {
					return md, &Error{Msg: "decoding policy_published", Err: err}
				}
				md.Domain = raw.Domain
				return md, nil
			case "record":
				return md, &Error{Msg: "record element before policy_published"}
			}
		}
	}
}

// parseRecords scans the remainder of the document, decoding each record
// element into a transient struct, folding it into the builder and dropping
// it. No history of prior records is kept.
func parseRecords(d *xml.Decoder, builder *analysis.Builder) error {
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &Error{Msg: "reading report", Err: err}
		}

		switch t := tok.(type) {
		case xml.Directive:
			if err := rejectDoctype(t); err != nil {
				return err
			}
		case xml.StartElement:
			if t.Name.Local != "record" {
				continue
			}
			var raw xmlRecord
			if err := d.DecodeElement(&raw, &t); err != nil {
				return &Error{Msg: "decoding record", Err: err}
			}
			builder.Add(convertRecord(&raw))
		}
	}
}

func convertRecord(raw *xmlRecord) types.RecordOutcome {
	rec := types.RecordOutcome{
		SourceIP:      raw.Row.SourceIP,
		Count:         raw.Row.Count,
		EvaluatedDKIM: raw.Row.PolicyEvaluated.DKIM,
		EvaluatedSPF:  raw.Row.PolicyEvaluated.SPF,
	}
	for _, d := range raw.AuthResults.DKIM {
		rec.DKIM = append(rec.DKIM, types.AuthResult{Domain: d.Domain, Result: d.Result})
	}
	for _, s := range raw.AuthResults.SPF {
		rec.SPF = append(rec.SPF, types.AuthResult{Domain: s.Domain, Result: s.Result})
	}
	return rec
}

// rejectDoctype refuses DTDs. Reports arrive from arbitrary senders; entity
// definitions and external entity references must never be processed.
func rejectDoctype(dir xml.Directive) error {
	trimmed := bytes.TrimSpace(dir)
	if len(trimmed) >= 7 && bytes.EqualFold(trimmed[:7], []byte("DOCTYPE")) {
		return &Error{Msg: "document type definitions are not allowed in reports"}
	}
	return nil
}

// parseEpoch converts a unix timestamp string to a time, or nil when the
// field is missing or not a number.
func parseEpoch(s string) *time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(n, 0).UTC()
	return &t
}

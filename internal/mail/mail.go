// Package mail classifies MIME parts of report messages and extracts the
// compressed report payloads they carry.
package mail

import (
	"fmt"
	"io"

	"github.com/jhillyerd/enmime"

	"github.com/mvdnes/dmarc-reporter/internal/archive"
)

// ContentKind classifies a MIME part's content type for report extraction.
type ContentKind int

// Part classifications. Ignore covers the message scaffolding reporters put
// around the attachment; Unknown is everything else and never reaches the
// parsing core.
const (
	ContentUnknown ContentKind = iota
	ContentZip
	ContentGzip
	ContentIgnore
)

// Classify maps a MIME content type to its report-extraction role.
func Classify(contentType string) ContentKind {
	switch contentType {
	case "application/zip", "application/x-zip-compressed":
		return ContentZip
	case "application/gzip":
		return ContentGzip
	case "multipart/mixed", "text/html", "text/plain":
		return ContentIgnore
	default:
		return ContentUnknown
	}
}

// Report is one compressed report payload pulled out of a message.
type Report struct {
	Kind     archive.Kind
	Filename string
	Payload  []byte
}

// ExtractReports parses an RFC 5322 message and walks its MIME tree,
// collecting every part that carries a report archive. Parts with an
// unclassifiable content type are sniffed by payload magic (some reporters
// attach archives as application/octet-stream); the content types of parts
// that still cannot be placed are returned for the caller to log.
func ExtractReports(r io.Reader) ([]Report, []string, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing mail message: %w", err)
	}

	var reports []Report
	var unknown []string

	walkParts(env.Root, func(p *enmime.Part) {
		switch Classify(p.ContentType) {
		case ContentZip:
			reports = append(reports, Report{Kind: archive.KindZip, Filename: p.FileName, Payload: p.Content})
		case ContentGzip:
			reports = append(reports, Report{Kind: archive.KindGzip, Filename: p.FileName, Payload: p.Content})
		case ContentIgnore:
		default:
			if kind := archive.Sniff(p.Content); kind == archive.KindZip || kind == archive.KindGzip {
				reports = append(reports, Report{Kind: kind, Filename: p.FileName, Payload: p.Content})
				return
			}
			unknown = append(unknown, p.ContentType)
		}
	})

	return reports, unknown, nil
}

func walkParts(p *enmime.Part, fn func(*enmime.Part)) {
	if p == nil {
		return
	}
	fn(p)
	for child := p.FirstChild; child != nil; child = child.NextSibling {
		walkParts(child, fn)
	}
}

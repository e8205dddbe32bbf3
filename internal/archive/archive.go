// Package archive unwraps compressed DMARC report payloads into decompressed
// byte streams.
package archive

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind identifies the container format of a report payload.
type Kind int

// Container kinds recognized by DetectKind and Sniff.
const (
	KindUnknown Kind = iota
	KindXML          // bare XML report, no container
	KindGzip
	KindZip
)

// String returns the kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case KindXML:
		return "xml"
	case KindGzip:
		return "gzip"
	case KindZip:
		return "zip"
	default:
		return "unknown"
	}
}

// ErrStreamTooLarge is returned from a stream read when the decompressed
// data exceeds the configured cap. Anything reading the stream must treat it
// as terminal for that report.
var ErrStreamTooLarge = errors.New("decompressed report exceeds size limit")

// Error indicates a payload that does not match its declared container
// format, or an entry that cannot be opened or read.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("unwrapping %s payload: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// DetectKind determines the container kind from a file name.
func DetectKind(path string) Kind {
	lower := strings.ToLower(path)

	switch {
	case strings.HasSuffix(lower, ".xml"):
		return KindXML
	case strings.HasSuffix(lower, ".gz"):
		return KindGzip
	case strings.HasSuffix(lower, ".zip"):
		return KindZip
	default:
		return KindUnknown
	}
}

// Sniff determines the container kind from the payload's leading bytes.
func Sniff(payload []byte) Kind {
	if len(payload) >= 2 && payload[0] == 0x1f && payload[1] == 0x8b {
		return KindGzip
	}
	if len(payload) >= 4 && payload[0] == 'P' && payload[1] == 'K' && payload[2] == 0x03 && payload[3] == 0x04 {
		return KindZip
	}
	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && trimmed[0] == '<' {
		return KindXML
	}
	return KindUnknown
}

// Streams is a finite, non-restartable sequence of decompressed report
// streams. Each stream decompresses on demand and must be consumed before
// the next call to Next.
type Streams struct {
	limit int64

	files []*zip.File // zip mode, consumed front to back
	gz    io.Reader   // gzip mode, nil once yielded
}

// Unwrap opens a payload of the declared container kind. For zip the result
// yields one stream per archive entry in archive order; for gzip exactly
// one. Each stream fails with ErrStreamTooLarge once more than maxStream
// decompressed bytes are read from it; maxStream <= 0 means no cap.
func Unwrap(kind Kind, payload []byte, maxStream int64) (*Streams, error) {
	switch kind {
	case KindZip:
		zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
		if err != nil {
			return nil, &Error{Kind: kind, Err: err}
		}
		return &Streams{limit: maxStream, files: zr.File}, nil
	case KindGzip:
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, &Error{Kind: kind, Err: err}
		}
		return &Streams{limit: maxStream, gz: gr}, nil
	default:
		return nil, &Error{Kind: kind, Err: errors.New("not an unwrappable container")}
	}
}

// Next returns the next decompressed stream, or io.EOF when the sequence is
// exhausted. Opening a corrupt zip entry returns *Error.
func (s *Streams) Next() (io.Reader, error) {
	if s.gz != nil {
		r := s.gz
		s.gz = nil
		return &entryReader{r: r, kind: KindGzip, remaining: s.limit, capped: s.limit > 0}, nil
	}
	if len(s.files) == 0 {
		return nil, io.EOF
	}
	f := s.files[0]
	s.files = s.files[1:]
	rc, err := f.Open()
	if err != nil {
		return nil, &Error{Kind: KindZip, Err: fmt.Errorf("opening entry %q: %w", f.Name, err)}
	}
	return &entryReader{r: rc, kind: KindZip, remaining: s.limit, capped: s.limit > 0}, nil
}

// entryReader enforces the decompressed-size cap and converts decompression
// failures (truncated gzip trailer, bad zip entry checksum) into *Error so
// that downstream consumers see an archive fault, not a bare io error.
type entryReader struct {
	r         io.Reader
	kind      Kind
	remaining int64
	capped    bool
}

func (e *entryReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if e.capped {
		e.remaining -= int64(n)
		if e.remaining < 0 {
			return n, ErrStreamTooLarge
		}
	}
	if err != nil && err != io.EOF {
		err = &Error{Kind: e.kind, Err: err}
	}
	return n, err
}

package analysis

import (
	"errors"
	"strings"
)

// ErrNoOrganisation is returned when a report declares no organisation name.
// The prefix-stripping heuristic is meaningless without one, so the report
// is treated as defective.
var ErrNoOrganisation = errors.New("report has no organisation name")

// NormalizeReportID cleans up reporter-specific report id formats. Two
// heuristics run unconditionally, in order: anything from the first '@' on
// is dropped (some reporters write the id as a message id), then a leading
// "<organisation>." prefix is stripped (other reporters prepend their
// domain). The second step operates on the output of the first.
func NormalizeReportID(raw, organisation string) (string, error) {
	if organisation == "" {
		return "", ErrNoOrganisation
	}

	id := raw
	if at := strings.IndexByte(id, '@'); at >= 0 {
		id = id[:at]
	}
	id = strings.TrimPrefix(id, organisation+".")

	return id, nil
}

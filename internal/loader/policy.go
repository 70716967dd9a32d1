package loader

import (
	"fmt"
	"strings"
)

// ErrorPolicy decides what happens when a single record cannot be projected
// or inserted.
type ErrorPolicy string

const (
	// PolicyAbort stops the run at the first failing record.
	PolicyAbort ErrorPolicy = "abort"
	// PolicySkip logs and counts the failing record and continues.
	PolicySkip ErrorPolicy = "skip"
)

// ParseErrorPolicy parses a policy name. The empty string means PolicyAbort.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyAbort:
		return PolicyAbort, nil
	case PolicySkip:
		return PolicySkip, nil
	default:
		return "", fmt.Errorf("unknown error policy %q (must be abort or skip)", s)
	}
}

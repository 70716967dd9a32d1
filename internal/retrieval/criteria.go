package retrieval

import (
	"fmt"
	"time"

	apperrors "github.com/arkilian/trackport/internal/errors"
	"github.com/arkilian/trackport/pkg/types"
)

// TimeRange is an inclusive range of event timestamps in seconds since epoch.
type TimeRange struct {
	Start int64
	End   int64
}

// NewTimeRange converts calendar bounds to a TimeRange.
func NewTimeRange(start, end time.Time) TimeRange {
	return TimeRange{Start: start.Unix(), End: end.Unix()}
}

// FilterCriteria selects the events to retrieve. Exactly one of Range and
// SessionID must be set.
type FilterCriteria struct {
	Range     *TimeRange
	SessionID string

	// Hashes restricts results to the given Hash values when non-empty.
	Hashes []string

	Category types.Category
}

// Validate checks that the criteria describe a single retrievable filter.
func (c FilterCriteria) Validate() error {
	hasRange := c.Range != nil
	hasSession := c.SessionID != ""

	switch {
	case hasRange && hasSession:
		return apperrors.NewValidationError(apperrors.CodeInvalidCriteria,
			"criteria set both a time range and a session id")
	case !hasRange && !hasSession:
		return apperrors.NewValidationError(apperrors.CodeInvalidCriteria,
			"criteria need a time range or a session id")
	case hasRange && c.Range.Start > c.Range.End:
		return apperrors.NewValidationError(apperrors.CodeInvalidCriteria,
			fmt.Sprintf("range start %d is after end %d", c.Range.Start, c.Range.End))
	}
	return nil
}

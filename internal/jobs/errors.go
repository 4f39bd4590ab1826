package jobs

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrJobNotFound indicates no job record exists for the given ID.
type ErrJobNotFound struct {
	ID uuid.UUID
}

func (e ErrJobNotFound) Error() string {
	return fmt.Sprintf("job not found: %s", e.ID)
}

// SkipReason explains why a submission was skipped instead of queued.
type SkipReason string

const (
	SkipReasonInFlight        SkipReason = "already_in_progress"
	SkipReasonCompleted       SkipReason = "already_completed"
	SkipReasonSourceMissing   SkipReason = "source_not_found"
	SkipReasonUnsupportedType SkipReason = "unsupported_file_type"
)

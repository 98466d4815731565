package types

import (
	"fmt"
	"strings"

	"github.com/Stellouuuuu/mojaloop-pension/internal/errors"
)

type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchCompleted BatchStatus = "completed"
	BatchPartial   BatchStatus = "partial"
)

var BatchStatuses = []BatchStatus{BatchPending, BatchCompleted, BatchPartial}

func (s BatchStatus) Valid() bool {
	for _, v := range BatchStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseBatchStatus accepts only the exact lower-case values.
func ParseBatchStatus(s string) (BatchStatus, error) {
	status := BatchStatus(s)
	if !status.Valid() {
		return "", errors.InvalidStatus(fmt.Sprintf(
			"invalid batch status %q, must be one of %s", s, join(BatchStatuses)))
	}
	return status, nil
}

// PensionerStatus conceptually moves pending → validated → processing →
// success|failed, but any value of the domain may be written at any time.
type PensionerStatus string

const (
	PensionerPending    PensionerStatus = "pending"
	PensionerValidated  PensionerStatus = "validated"
	PensionerProcessing PensionerStatus = "processing"
	PensionerSuccess    PensionerStatus = "success"
	PensionerFailed     PensionerStatus = "failed"
)

var PensionerStatuses = []PensionerStatus{
	PensionerPending,
	PensionerValidated,
	PensionerProcessing,
	PensionerSuccess,
	PensionerFailed,
}

func (s PensionerStatus) Valid() bool {
	for _, v := range PensionerStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func ParsePensionerStatus(s string) (PensionerStatus, error) {
	status := PensionerStatus(s)
	if !status.Valid() {
		return "", errors.InvalidStatus(fmt.Sprintf(
			"invalid pensioner status %q, must be one of %s", s, join(PensionerStatuses)))
	}
	return status, nil
}

func join[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

package predict

import (
	"fmt"

	"github.com/KaramelBytes/cohortscope-cli/internal/ai"
)

// ExternalServiceError is a failed completion for one seed record. It is
// recoverable: the batch logs it and moves on.
type ExternalServiceError struct {
	Record string
	Gender string
	Err    error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("prediction for %s (%s) failed [%s]: %v", e.Record, e.Gender, e.Kind(), e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Kind classifies the underlying failure (auth, rate_limit, timeout...).
func (e *ExternalServiceError) Kind() string { return ai.Kind(e.Err) }

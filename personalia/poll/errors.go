package poll

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/personalia-io/personalia-sdk-go/personalia/classify"
)

// BudgetExhaustedError is returned when every polling attempt was used
// without the job reaching a terminal state. The job may still complete.
type BudgetExhaustedError struct {
	JobHandle string
	Attempts  int
	Interval  time.Duration
	// LastErr is the most recent retryable check failure, if any.
	LastErr *classify.Error
}

// Budget is the total wait the poller was allowed, Attempts × Interval.
func (e *BudgetExhaustedError) Budget() time.Duration {
	return time.Duration(e.Attempts) * e.Interval
}

// Error implements the error interface.
func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf(
		"content not ready after %d attempts (%s seconds). The request ID %s may still be processing. You can try retrieving it later with Content().Get.",
		e.Attempts, budgetSeconds(e.Attempts, e.Interval), e.JobHandle,
	)
}

// budgetSeconds computes attempts × interval in seconds using integer
// microseconds, so 3 × 10ms prints as 0.03.
func budgetSeconds(attempts int, interval time.Duration) string {
	micros := int64(attempts) * interval.Microseconds()
	return strconv.FormatFloat(float64(micros)/1e6, 'f', -1, 64)
}

// Timeout reports true.
func (e *BudgetExhaustedError) Timeout() bool { return true }

// GRPCStatus implements the interface used by status.FromError.
func (e *BudgetExhaustedError) GRPCStatus() *status.Status {
	st := status.New(codes.DeadlineExceeded, e.Error())
	withDetails, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason: "POLL_BUDGET_EXHAUSTED",
			Domain: classify.ErrorDomain,
			Metadata: map[string]string{
				"request_id": e.JobHandle,
				"attempts":   strconv.Itoa(e.Attempts),
			},
		},
		&errdetails.RetryInfo{RetryDelay: durationpb.New(e.Interval)},
	)
	if err != nil {
		return st
	}
	return withDetails
}

// JobError attaches a job handle to an error that carries none, such as a
// cancelled context.
type JobError struct {
	JobHandle string
	Err       error
}

// Error implements the error interface.
func (e *JobError) Error() string {
	return e.Err.Error() + " (request ID: " + e.JobHandle + ")"
}

// Unwrap returns the underlying error.
func (e *JobError) Unwrap() error {
	return e.Err
}

// GRPCStatus maps context errors to Canceled or DeadlineExceeded.
func (e *JobError) GRPCStatus() *status.Status {
	return status.New(status.FromContextError(e.Err).Code(), e.Error())
}

// Annotate attaches handle to err so callers can always tell which job a
// failure refers to. Applying it more than once is safe: the handle appears
// in the message exactly once.
func Annotate(err error, handle string) error {
	if err == nil || handle == "" {
		return err
	}
	var budget *BudgetExhaustedError
	if errors.As(err, &budget) {
		return err
	}
	var je *JobError
	if errors.As(err, &je) {
		return err
	}
	if ce, ok := classify.As(err); ok {
		ce.Annotate(handle)
		return err
	}
	return &JobError{JobHandle: handle, Err: err}
}

// JobHandleOf returns the job handle recorded on err, or "".
func JobHandleOf(err error) string {
	var budget *BudgetExhaustedError
	if errors.As(err, &budget) {
		return budget.JobHandle
	}
	var je *JobError
	if errors.As(err, &je) {
		return je.JobHandle
	}
	if ce, ok := classify.As(err); ok {
		return ce.JobHandle
	}
	return ""
}

package poll

import (
	"github.com/personalia-io/personalia-sdk-go/personalia/classify"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

// OutcomeKind is the decision taken after one status check.
type OutcomeKind int

const (
	// OutcomeRetry means the job is still working or the check failed
	// transiently. One attempt is consumed.
	OutcomeRetry OutcomeKind = iota
	// OutcomeCompleted means the job finished and Content holds the result.
	OutcomeCompleted
	// OutcomeFatal means polling must stop with Err.
	OutcomeFatal
)

// String returns the lower-case name of the outcome.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRetry:
		return "retry"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of one polling round.
type Outcome struct {
	Kind    OutcomeKind
	Content *types.Content
	// Err is set for OutcomeFatal, and for OutcomeRetry when the check
	// itself failed.
	Err *classify.Error
}

// Evaluate turns the result of one status check into an Outcome. It has no
// side effects.
func Evaluate(content *types.Content, err error) Outcome {
	if err != nil {
		ce := classify.FromError(classify.CallStatusCheck, err)
		if ce.IsRetryable() {
			return Outcome{Kind: OutcomeRetry, Err: ce}
		}
		return Outcome{Kind: OutcomeFatal, Err: ce}
	}
	if content == nil {
		return Outcome{Kind: OutcomeRetry}
	}
	switch {
	case content.Status.IsCompleted():
		return Outcome{Kind: OutcomeCompleted, Content: content}
	case content.Status.IsFailed():
		return Outcome{Kind: OutcomeFatal, Err: classify.Classify(classify.Input{
			Call: classify.CallStatusCheck,
			Failure: &classify.Failure{
				Description: content.FailureDescription,
				ErrorID:     content.ErrorID.String(),
			},
		})}
	default:
		return Outcome{Kind: OutcomeRetry, Content: content}
	}
}

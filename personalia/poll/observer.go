package poll

import (
	"time"

	"github.com/personalia-io/personalia-sdk-go/personalia/classify"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

// Result is how a Wait call ended.
type Result string

const (
	ResultCompleted Result = "completed"
	ResultFailed    Result = "failed"
	ResultExhausted Result = "exhausted"
	ResultCancelled Result = "cancelled"
)

// RoundEvent describes one status check.
type RoundEvent struct {
	Handle  string
	Round   int
	Outcome OutcomeKind
	Status  types.ContentStatus
	Err     *classify.Error
}

// FinishEvent describes the end of a Wait call.
type FinishEvent struct {
	Handle  string
	Rounds  int
	Result  Result
	Elapsed time.Duration
	Err     error
}

// Observer receives polling events. Implementations must be safe for
// concurrent use when one Poller serves several goroutines.
type Observer interface {
	OnRound(RoundEvent)
	OnFinish(FinishEvent)
}

// Observers fans events out to several observers.
type Observers []Observer

// OnRound implements Observer.
func (o Observers) OnRound(e RoundEvent) {
	for _, obs := range o {
		obs.OnRound(e)
	}
}

// OnFinish implements Observer.
func (o Observers) OnFinish(e FinishEvent) {
	for _, obs := range o {
		obs.OnFinish(e)
	}
}

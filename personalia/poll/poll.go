// Package poll waits for Personalia content requests to finish.
//
// A Poller issues one status check per round, classifies the result into an
// Outcome and either returns, fails, or waits Interval before the next
// round. Waits honour context cancellation. Every error Wait returns names
// the job it refers to.
package poll

import (
	"context"
	"time"

	"github.com/personalia-io/personalia-sdk-go/personalia/classify"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

const (
	DefaultMaxAttempts = 30
	DefaultInterval    = 2 * time.Second
)

// Checker fetches the current state of a content request.
type Checker interface {
	CheckStatus(ctx context.Context, handle string) (*types.Content, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, handle string) (*types.Content, error)

// CheckStatus implements Checker.
func (f CheckerFunc) CheckStatus(ctx context.Context, handle string) (*types.Content, error) {
	return f(ctx, handle)
}

// Logger is the debug logger used for per-round messages.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
}

// Options configures a Poller.
type Options struct {
	MaxAttempts int
	Interval    time.Duration
	Observer    Observer
	Logger      Logger
}

// Option is a functional option for a Poller.
type Option func(*Options)

// WithMaxAttempts sets how many non-terminal rounds are allowed.
func WithMaxAttempts(n int) Option {
	return func(o *Options) { o.MaxAttempts = n }
}

// WithInterval sets the wait between rounds.
func WithInterval(d time.Duration) Option {
	return func(o *Options) { o.Interval = d }
}

// WithObserver registers an observer for round and finish events.
func WithObserver(obs Observer) Option {
	return func(o *Options) { o.Observer = obs }
}

// WithLogger sets the debug logger.
func WithLogger(l Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Poller drives status checks for one job at a time. A Poller holds no
// per-job state, so one value can serve concurrent Wait calls.
type Poller struct {
	checker Checker
	opts    Options
}

// New creates a Poller. Non-positive MaxAttempts or Interval fall back to
// the defaults.
func New(checker Checker, opts ...Option) *Poller {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	return &Poller{checker: checker, opts: o}
}

// Options returns the resolved options.
func (p *Poller) Options() Options {
	return p.opts
}

// Wait polls handle until the job completes, fails, the attempt budget runs
// out, or ctx is done.
//
// It returns a *classify.Error for permanent failures (including jobs the
// provider marked Failed), a *BudgetExhaustedError when attempts run out,
// and a *JobError wrapping ctx.Err() on cancellation.
func (p *Poller) Wait(ctx context.Context, handle string) (*types.Content, error) {
	start := time.Now()
	attempts := 0
	rounds := 0
	var lastErr *classify.Error

	finish := func(result Result, err error) {
		p.log("poll finished", "request_id", handle, "result", string(result), "rounds", rounds, "elapsed", time.Since(start))
		if p.opts.Observer != nil {
			p.opts.Observer.OnFinish(FinishEvent{
				Handle:  handle,
				Rounds:  rounds,
				Result:  result,
				Elapsed: time.Since(start),
				Err:     err,
			})
		}
	}
	cancelled := func(cause error) (*types.Content, error) {
		err := Annotate(cause, handle)
		finish(ResultCancelled, err)
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}

		content, checkErr := p.checker.CheckStatus(ctx, handle)
		if checkErr != nil && ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		rounds++

		out := Evaluate(content, checkErr)
		p.round(handle, rounds, out)

		switch out.Kind {
		case OutcomeCompleted:
			finish(ResultCompleted, nil)
			return out.Content, nil
		case OutcomeFatal:
			out.Err.Annotate(handle)
			finish(ResultFailed, out.Err)
			return nil, out.Err
		}

		if out.Err != nil {
			lastErr = out.Err
		}
		attempts++
		if attempts >= p.opts.MaxAttempts {
			err := &BudgetExhaustedError{
				JobHandle: handle,
				Attempts:  attempts,
				Interval:  p.opts.Interval,
				LastErr:   lastErr,
			}
			finish(ResultExhausted, err)
			return nil, err
		}

		if err := sleep(ctx, p.opts.Interval); err != nil {
			return cancelled(err)
		}
	}
}

func (p *Poller) round(handle string, n int, out Outcome) {
	kv := []any{"request_id", handle, "round", n, "max_attempts", p.opts.MaxAttempts, "outcome", out.Kind.String()}
	var status types.ContentStatus
	if out.Content != nil {
		status = out.Content.Status
		kv = append(kv, "status", string(status))
	}
	if out.Err != nil {
		kv = append(kv, "error", out.Err.Error(), "disposition", out.Err.Disposition.String())
	}
	p.log("poll round", kv...)

	if p.opts.Observer != nil {
		p.opts.Observer.OnRound(RoundEvent{
			Handle:  handle,
			Round:   n,
			Outcome: out.Kind,
			Status:  status,
			Err:     out.Err,
		})
	}
}

func (p *Poller) log(msg string, keysAndValues ...any) {
	if p.opts.Logger != nil {
		p.opts.Logger.Debug(msg, keysAndValues...)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

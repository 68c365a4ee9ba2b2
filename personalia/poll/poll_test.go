package poll

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/personalia-io/personalia-sdk-go/internal/httpx"
	"github.com/personalia-io/personalia-sdk-go/personalia/classify"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

type step struct {
	content *types.Content
	err     error
}

// scripted replays steps in order and repeats the last one.
type scripted struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scripted) CheckStatus(ctx context.Context, handle string) (*types.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i].content, s.steps[i].err
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recorder struct {
	mu       sync.Mutex
	rounds   []RoundEvent
	finishes []FinishEvent
}

func (r *recorder) OnRound(e RoundEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rounds = append(r.rounds, e)
}

func (r *recorder) OnFinish(e FinishEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finishes = append(r.finishes, e)
}

func inProgress() step {
	return step{content: &types.Content{Status: types.StatusInProgress}}
}

func TestNew_Defaults(t *testing.T) {
	tests := []struct {
		name         string
		opts         []Option
		wantAttempts int
		wantInterval time.Duration
	}{
		{"none", nil, DefaultMaxAttempts, DefaultInterval},
		{"zero", []Option{WithMaxAttempts(0), WithInterval(0)}, DefaultMaxAttempts, DefaultInterval},
		{"negative", []Option{WithMaxAttempts(-1), WithInterval(-time.Second)}, DefaultMaxAttempts, DefaultInterval},
		{"custom", []Option{WithMaxAttempts(5), WithInterval(time.Second)}, 5, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := New(&scripted{}, tt.opts...).Options()
			if opts.MaxAttempts != tt.wantAttempts {
				t.Errorf("MaxAttempts = %d, want %d", opts.MaxAttempts, tt.wantAttempts)
			}
			if opts.Interval != tt.wantInterval {
				t.Errorf("Interval = %v, want %v", opts.Interval, tt.wantInterval)
			}
		})
	}
}

func TestWait_BudgetExhausted(t *testing.T) {
	checker := &scripted{steps: []step{inProgress()}}
	rec := &recorder{}
	p := New(checker, WithMaxAttempts(3), WithInterval(10*time.Millisecond), WithObserver(rec))

	content, err := p.Wait(context.Background(), "req-1")
	if content != nil {
		t.Errorf("content = %+v, want nil", content)
	}

	var budget *BudgetExhaustedError
	if !errors.As(err, &budget) {
		t.Fatalf("error = %T, want *BudgetExhaustedError", err)
	}
	msg := err.Error()
	for _, want := range []string{"3 attempts", "0.03 seconds", "req-1", "Content().Get"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
	if checker.Calls() != 3 {
		t.Errorf("status checks = %d, want 3", checker.Calls())
	}
	if budget.Budget() != 30*time.Millisecond {
		t.Errorf("Budget() = %v, want 30ms", budget.Budget())
	}
	if JobHandleOf(err) != "req-1" {
		t.Errorf("JobHandleOf() = %q, want req-1", JobHandleOf(err))
	}

	if len(rec.rounds) != 3 {
		t.Errorf("rounds observed = %d, want 3", len(rec.rounds))
	}
	if len(rec.finishes) != 1 || rec.finishes[0].Result != ResultExhausted {
		t.Errorf("finishes = %+v, want one %s", rec.finishes, ResultExhausted)
	}
}

func TestWait_InProgressErrorIsRetried(t *testing.T) {
	checker := &scripted{steps: []step{{err: errors.New("Content is in progress")}}}
	p := New(checker, WithMaxAttempts(3), WithInterval(time.Millisecond))

	_, err := p.Wait(context.Background(), "req-3")

	var budget *BudgetExhaustedError
	if !errors.As(err, &budget) {
		t.Fatalf("error = %v, want *BudgetExhaustedError", err)
	}
	if checker.Calls() != 3 {
		t.Errorf("status checks = %d, want 3", checker.Calls())
	}
	if budget.LastErr == nil || budget.LastErr.Kind != classify.KindInProgress {
		t.Errorf("LastErr = %v, want %s", budget.LastErr, classify.KindInProgress)
	}
}

func TestWait_CompletesOnSecondRound(t *testing.T) {
	checker := &scripted{steps: []step{
		inProgress(),
		{content: &types.Content{Status: types.StatusCompleted, URLs: []string{"https://x/y"}}},
	}}
	rec := &recorder{}
	p := New(checker, WithMaxAttempts(5), WithInterval(time.Millisecond), WithObserver(rec))

	content, err := p.Wait(context.Background(), "req-2")
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(content.URLs) != 1 || content.URLs[0] != "https://x/y" {
		t.Errorf("URLs = %v, want [https://x/y]", content.URLs)
	}
	if checker.Calls() != 2 {
		t.Errorf("status checks = %d, want 2", checker.Calls())
	}
	if rec.rounds[0].Status != types.StatusInProgress || rec.rounds[0].Outcome != OutcomeRetry {
		t.Errorf("round 1 = %+v, want InProgress retry", rec.rounds[0])
	}
	if rec.finishes[0].Result != ResultCompleted || rec.finishes[0].Rounds != 2 {
		t.Errorf("finish = %+v, want completed after 2 rounds", rec.finishes[0])
	}
}

func TestWait_CompletedFirstRound(t *testing.T) {
	checker := &scripted{steps: []step{
		{content: &types.Content{Status: "completed", URLs: []string{"https://x/z"}}},
	}}
	p := New(checker, WithMaxAttempts(1), WithInterval(time.Hour))

	content, err := p.Wait(context.Background(), "req-3")
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if content.URLs[0] != "https://x/z" {
		t.Errorf("URLs = %v", content.URLs)
	}
}

func TestWait_NoResponseConsumesAttempt(t *testing.T) {
	checker := &scripted{steps: []step{
		{err: httpx.NewNetworkError(errors.New("connection refused"))},
		{content: &types.Content{Status: types.StatusCompleted}},
	}}
	p := New(checker, WithMaxAttempts(2), WithInterval(time.Millisecond))

	if _, err := p.Wait(context.Background(), "req-4"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if checker.Calls() != 2 {
		t.Errorf("status checks = %d, want 2", checker.Calls())
	}
}

func TestWait_NoResponseUntilExhausted(t *testing.T) {
	checker := &scripted{steps: []step{
		{err: httpx.NewNetworkError(errors.New("connection refused"))},
	}}
	p := New(checker, WithMaxAttempts(2), WithInterval(time.Millisecond))

	_, err := p.Wait(context.Background(), "req-5")
	var budget *BudgetExhaustedError
	if !errors.As(err, &budget) {
		t.Fatalf("error = %v, want *BudgetExhaustedError", err)
	}
	if budget.LastErr == nil || budget.LastErr.Kind != classify.KindNoResponse {
		t.Errorf("LastErr = %v, want %s", budget.LastErr, classify.KindNoResponse)
	}
}

func TestWait_NotFoundIsRetried(t *testing.T) {
	notFound := httpx.ParseErrorFromResponse(404, []byte(`{"Reason":"not found"}`), nil)
	checker := &scripted{steps: []step{
		{err: notFound},
		{content: &types.Content{Status: types.StatusCompleted}},
	}}
	p := New(checker, WithMaxAttempts(3), WithInterval(time.Millisecond))

	if _, err := p.Wait(context.Background(), "req-6"); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

func TestWait_FailedJob(t *testing.T) {
	checker := &scripted{steps: []step{
		inProgress(),
		{content: &types.Content{Status: types.StatusFailed, ErrorID: "117", FailureDescription: "billing"}},
	}}
	rec := &recorder{}
	p := New(checker, WithMaxAttempts(5), WithInterval(time.Millisecond), WithObserver(rec))

	_, err := p.Wait(context.Background(), "req-7")
	ce, ok := classify.As(err)
	if !ok {
		t.Fatalf("error = %T, want *classify.Error", err)
	}
	if !ce.IsPermanent() {
		t.Errorf("Disposition = %v, want Permanent", ce.Disposition)
	}
	if ce.Kind != classify.KindJobFailed {
		t.Errorf("Kind = %s, want %s", ce.Kind, classify.KindJobFailed)
	}
	msg := err.Error()
	for _, want := range []string{"Insufficient credits.", "content generation failed: billing", "(request ID: req-7)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
	if rec.finishes[0].Result != ResultFailed {
		t.Errorf("Result = %s, want %s", rec.finishes[0].Result, ResultFailed)
	}
}

func TestWait_PermanentCheckError(t *testing.T) {
	unauthorized := httpx.ParseErrorFromResponse(401, []byte(`{"Reason":"bad key","ErrorId":102}`), nil)
	checker := &scripted{steps: []step{{err: unauthorized}}}
	p := New(checker, WithMaxAttempts(5), WithInterval(time.Millisecond))

	_, err := p.Wait(context.Background(), "req-8")
	ce, ok := classify.As(err)
	if !ok || !ce.IsPermanent() {
		t.Fatalf("error = %v, want permanent classified error", err)
	}
	if checker.Calls() != 1 {
		t.Errorf("status checks = %d, want 1", checker.Calls())
	}
	if ce.JobHandle != "req-8" {
		t.Errorf("JobHandle = %q, want req-8", ce.JobHandle)
	}
	if !httpx.IsAuthenticationError(err) {
		t.Errorf("IsAuthenticationError() = false, want transport error in chain")
	}
}

func TestWait_Cancelled(t *testing.T) {
	checker := &scripted{steps: []step{inProgress()}}
	rec := &recorder{}
	p := New(checker, WithMaxAttempts(100), WithInterval(time.Hour), WithObserver(rec))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Wait(ctx, "req-9")
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for checker.Calls() == 0 {
		select {
		case <-deadline:
			t.Fatal("status was never checked")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
		if JobHandleOf(err) != "req-9" {
			t.Errorf("JobHandleOf() = %q, want req-9", JobHandleOf(err))
		}
		if status.Code(err) != codes.Canceled {
			t.Errorf("status.Code() = %v, want Canceled", status.Code(err))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}

	if len(rec.finishes) != 1 || rec.finishes[0].Result != ResultCancelled {
		t.Errorf("finishes = %+v, want one %s", rec.finishes, ResultCancelled)
	}
}

func TestWait_AlreadyCancelled(t *testing.T) {
	checker := &scripted{steps: []step{inProgress()}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(checker).Wait(ctx, "req-10")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if checker.Calls() != 0 {
		t.Errorf("status checks = %d, want 0", checker.Calls())
	}
}

func TestWait_ConcurrentJobs(t *testing.T) {
	checker := CheckerFunc(func(ctx context.Context, handle string) (*types.Content, error) {
		return &types.Content{RequestID: handle, Status: types.StatusCompleted}, nil
	})
	p := New(checker, WithInterval(time.Millisecond))

	var wg sync.WaitGroup
	for _, h := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			content, err := p.Wait(context.Background(), h)
			if err != nil {
				t.Errorf("Wait(%s) error = %v", h, err)
				return
			}
			if content.RequestID != h {
				t.Errorf("RequestID = %q, want %q", content.RequestID, h)
			}
		}(h)
	}
	wg.Wait()
}

func TestAnnotate_Idempotent(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"classified", classify.Classify(classify.Input{Call: classify.CallStatusCheck, StatusCode: 400, Body: []byte("bad")})},
		{"plain", errors.New("boom")},
		{"budget", &BudgetExhaustedError{JobHandle: "job-1", Attempts: 1, Interval: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Annotate(tt.err, "job-1")
			twice := Annotate(once, "job-1")
			if n := strings.Count(twice.Error(), "job-1"); n != 1 {
				t.Errorf("Error() = %q mentions job-1 %d times, want 1", twice.Error(), n)
			}
			if JobHandleOf(twice) != "job-1" {
				t.Errorf("JobHandleOf() = %q, want job-1", JobHandleOf(twice))
			}
		})
	}
}

func TestAnnotate_Nil(t *testing.T) {
	if err := Annotate(nil, "job"); err != nil {
		t.Errorf("Annotate(nil) = %v, want nil", err)
	}
	plain := errors.New("boom")
	if err := Annotate(plain, ""); err != plain {
		t.Errorf("Annotate(err, \"\") = %v, want err unchanged", err)
	}
}

func TestBudgetExhaustedError_GRPCStatus(t *testing.T) {
	err := &BudgetExhaustedError{JobHandle: "job-2", Attempts: 30, Interval: 2 * time.Second}
	if !strings.Contains(err.Error(), "(60 seconds)") {
		t.Errorf("Error() = %q, want 60 seconds", err.Error())
	}

	st, ok := status.FromError(err)
	if !ok {
		t.Fatal("status.FromError() ok = false")
	}
	if st.Code() != codes.DeadlineExceeded {
		t.Errorf("Code() = %v, want DeadlineExceeded", st.Code())
	}

	var sawRetry, sawInfo bool
	for _, d := range st.Details() {
		switch v := d.(type) {
		case *errdetails.RetryInfo:
			sawRetry = v.GetRetryDelay().AsDuration() == 2*time.Second
		case *errdetails.ErrorInfo:
			sawInfo = v.GetMetadata()["request_id"] == "job-2"
		}
	}
	if !sawRetry {
		t.Error("RetryInfo with 2s delay missing")
	}
	if !sawInfo {
		t.Error("ErrorInfo with request_id missing")
	}
}

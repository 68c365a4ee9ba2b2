package resources

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/personalia-io/personalia-sdk-go/internal/httpx"
	"github.com/personalia-io/personalia-sdk-go/internal/testutil"
	"github.com/personalia-io/personalia-sdk-go/personalia/classify"
	"github.com/personalia-io/personalia-sdk-go/personalia/poll"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

func newTransport(ms *testutil.MockServer) *httpx.Transport {
	return httpx.NewTransport(httpx.Config{
		BaseURL: ms.URL,
		APIKey:  "test-key",
		Retry: httpx.RetryConfig{
			MaxRetries: 2,
			BaseDelay:  time.Millisecond,
			MaxDelay:   time.Millisecond,
			Factor:     1,
		},
	})
}

func newContent(ms *testutil.MockServer, cfg ContentConfig) *ContentResource {
	if cfg.Poll == nil {
		cfg.Poll = []poll.Option{poll.WithMaxAttempts(3), poll.WithInterval(time.Millisecond)}
	}
	return NewContentResource(newTransport(ms), cfg)
}

func printRequest() *types.CreateContentRequest {
	return &types.CreateContentRequest{
		TemplateID: "tpl-1",
		Fields:     map[string]any{"Name": "Ada"},
		Output:     &types.Output{Format: types.FormatPDF, Quality: types.QualityPrint},
	}
}

func TestContent_Create(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleJSON(http.MethodPost, "/v1/content", http.StatusOK, map[string]any{"RequestId": "req-1"})

	resp, err := newContent(ms, ContentConfig{}).Create(context.Background(), printRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if resp.RequestID != "req-1" {
		t.Errorf("RequestID = %q, want req-1", resp.RequestID)
	}

	ms.AssertLastRequest(t, http.MethodPost, "/v1/content")
	ms.AssertLastRequestHeader(t, "Authorization", "ApiKey test-key")

	var body struct {
		TemplateID string         `json:"TemplateId"`
		Fields     map[string]any `json:"Fields"`
		Output     map[string]any `json:"Output"`
	}
	ms.ParseLastRequestBody(t, &body)
	if body.TemplateID != "tpl-1" || body.Fields["Name"] != "Ada" {
		t.Errorf("body = %+v", body)
	}
	if body.Output["Quality"] != "Print" {
		t.Errorf("Output.Quality = %v, want Print", body.Output["Quality"])
	}
}

func TestContent_CreateRejected(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleError(http.MethodPost, "/v1/content", http.StatusPaymentRequired, "117", "Payment required")

	_, err := newContent(ms, ContentConfig{}).Create(context.Background(), printRequest())
	ce, ok := classify.As(err)
	if !ok {
		t.Fatalf("error = %T, want *classify.Error", err)
	}
	if !ce.IsPermanent() || ce.ErrorID != "117" {
		t.Errorf("error = %+v, want permanent 117", ce)
	}
	if !strings.Contains(err.Error(), "Payment required: Insufficient credits.") {
		t.Errorf("Error() = %q", err.Error())
	}
	if n := ms.RequestCount("/v1/content"); n != 1 {
		t.Errorf("submissions = %d, want 1", n)
	}
}

func TestContent_CreateNotRetriedOnServerError(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleJSON(http.MethodPost, "/v1/content", http.StatusServiceUnavailable, map[string]any{"Reason": "down"})

	_, err := newContent(ms, ContentConfig{}).Create(context.Background(), printRequest())
	if err == nil {
		t.Fatal("Create() error = nil")
	}
	if n := ms.RequestCount("/v1/content"); n != 1 {
		t.Errorf("submissions = %d, want 1", n)
	}
}

func TestContent_CreateInvalid(t *testing.T) {
	ms := testutil.NewMockServer(t)
	req := printRequest()
	req.Output.Format = "GIF"

	_, err := newContent(ms, ContentConfig{}).Create(context.Background(), req)
	if !errors.Is(err, types.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
	ms.AssertRequestCount(t, 0)
}

func TestContent_CreateMissingRequestID(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleJSON(http.MethodPost, "/v1/content", http.StatusOK, map[string]any{})

	_, err := newContent(ms, ContentConfig{}).Create(context.Background(), printRequest())
	ce, ok := classify.As(err)
	if !ok || ce.Kind != classify.KindRequestFailure {
		t.Errorf("error = %v, want %s", err, classify.KindRequestFailure)
	}
}

type rejectAll struct{ called bool }

func (v *rejectAll) ValidateFields(ctx context.Context, req *types.CreateContentRequest) error {
	v.called = true
	return types.ErrInvalidRequest
}

func TestContent_CreateUsesValidator(t *testing.T) {
	ms := testutil.NewMockServer(t)
	v := &rejectAll{}

	_, err := newContent(ms, ContentConfig{Validator: v}).Create(context.Background(), printRequest())
	if !v.called || !errors.Is(err, types.ErrInvalidRequest) {
		t.Errorf("validator called = %v, error = %v", v.called, err)
	}
	ms.AssertRequestCount(t, 0)
}

func TestContent_Get(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleJSON(http.MethodGet, "/v1/content", http.StatusOK, map[string]any{
		"Status": "Completed",
		"URLs":   []string{"https://cdn/a.pdf"},
	})

	content, err := newContent(ms, ContentConfig{}).Get(context.Background(), "req-2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if content.RequestID != "req-2" || !content.Status.IsCompleted() {
		t.Errorf("content = %+v", content)
	}
	if q := ms.LastRequest().Query; q != "requestId=req-2" {
		t.Errorf("query = %q, want requestId=req-2", q)
	}
}

func TestContent_GetNotFoundIsPermanentOutsidePolling(t *testing.T) {
	ms := testutil.NewMockServer(t)

	_, err := newContent(ms, ContentConfig{}).Get(context.Background(), "req-3")
	ce, ok := classify.As(err)
	if !ok {
		t.Fatalf("error = %T, want *classify.Error", err)
	}
	if ce.StatusCode != http.StatusNotFound || !ce.IsPermanent() {
		t.Errorf("error = %+v, want permanent 404", ce)
	}
	if !strings.HasSuffix(err.Error(), "(request ID: req-3)") {
		t.Errorf("Error() = %q, want request ID suffix", err.Error())
	}
}

func TestContent_GetEmptyID(t *testing.T) {
	ms := testutil.NewMockServer(t)
	_, err := newContent(ms, ContentConfig{}).Get(context.Background(), " ")
	if !errors.Is(err, types.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
	ms.AssertRequestCount(t, 0)
}

func TestContent_GetRetriesServerError(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleSequence(http.MethodGet, "/v1/content",
		testutil.MockResponse{StatusCode: http.StatusServiceUnavailable, Body: "unavailable"},
		testutil.MockResponse{Body: map[string]any{"Status": "Completed"}},
	)

	if _, err := newContent(ms, ContentConfig{}).Get(context.Background(), "req-r"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if n := ms.RequestCount("/v1/content"); n != 2 {
		t.Errorf("requests = %d, want 2 (one retry)", n)
	}
}

func TestContent_WaitSendsOneRequestPerRound(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleError(http.MethodGet, "/v1/content", http.StatusServiceUnavailable, "", "Content is processing")

	_, err := newContent(ms, ContentConfig{}).Wait(context.Background(), "req-p",
		poll.WithMaxAttempts(2), poll.WithInterval(time.Millisecond))

	var budget *poll.BudgetExhaustedError
	if !errors.As(err, &budget) {
		t.Fatalf("error = %v, want *poll.BudgetExhaustedError", err)
	}
	if n := ms.RequestCount("/v1/content"); n != 2 {
		t.Errorf("requests = %d, want one per round", n)
	}
	if budget.LastErr == nil || budget.LastErr.Kind != classify.KindInProgress {
		t.Errorf("LastErr = %v, want %s", budget.LastErr, classify.KindInProgress)
	}
}

func TestContent_UndecodableBodyKeepsResponse(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleSequence(http.MethodGet, "/v1/content", testutil.MockResponse{Body: "<html>gateway</html>"})
	c := newContent(ms, ContentConfig{})

	tests := []struct {
		name string
		call func() error
	}{
		{"get", func() error {
			_, err := c.Get(context.Background(), "job-2")
			return err
		}},
		{"wait", func() error {
			_, err := c.Wait(context.Background(), "job-2", poll.WithMaxAttempts(3), poll.WithInterval(time.Millisecond))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			ce, ok := classify.As(err)
			if !ok {
				t.Fatalf("error = %T %v, want *classify.Error", err, err)
			}
			if ce.StatusCode != http.StatusOK {
				t.Errorf("StatusCode = %d, want 200", ce.StatusCode)
			}
			if !ce.IsPermanent() {
				t.Errorf("Disposition = %v, want permanent", ce.Disposition)
			}
			if !strings.Contains(err.Error(), "API error (200 OK): <html>gateway</html>") {
				t.Errorf("Error() = %q", err.Error())
			}
			if ce.JobHandle != "job-2" {
				t.Errorf("JobHandle = %q, want job-2", ce.JobHandle)
			}
		})
	}
}

func TestContent_CreateAndWait(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleJSON(http.MethodPost, "/v1/content", http.StatusOK, map[string]any{"RequestId": "req-4"})
	ms.HandleSequence(http.MethodGet, "/v1/content",
		testutil.MockResponse{StatusCode: http.StatusNotFound, Body: "not indexed"},
		testutil.MockResponse{Body: map[string]any{"Status": "InProgress"}},
		testutil.MockResponse{Body: map[string]any{"Status": "Completed", "URLs": []string{"https://x/y"}}},
	)

	content, err := newContent(ms, ContentConfig{Poll: []poll.Option{poll.WithMaxAttempts(5), poll.WithInterval(time.Millisecond)}}).
		CreateAndWait(context.Background(), printRequest())
	if err != nil {
		t.Fatalf("CreateAndWait() error = %v", err)
	}
	if len(content.URLs) != 1 || content.URLs[0] != "https://x/y" {
		t.Errorf("URLs = %v", content.URLs)
	}
	if n := ms.RequestCount("/v1/content"); n != 4 {
		t.Errorf("requests = %d, want 1 submit + 3 checks", n)
	}
}

func TestContent_CreateAndWaitExhausted(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleJSON(http.MethodPost, "/v1/content", http.StatusOK, map[string]any{"RequestId": "req-5"})
	ms.HandleJSON(http.MethodGet, "/v1/content", http.StatusOK, map[string]any{"Status": "Pending"})

	_, err := newContent(ms, ContentConfig{}).CreateAndWait(context.Background(), printRequest(),
		poll.WithMaxAttempts(3), poll.WithInterval(10*time.Millisecond))

	var budget *poll.BudgetExhaustedError
	if !errors.As(err, &budget) {
		t.Fatalf("error = %v, want *poll.BudgetExhaustedError", err)
	}
	if !strings.Contains(err.Error(), "3 attempts (0.03 seconds)") {
		t.Errorf("Error() = %q", err.Error())
	}
	if strings.Count(err.Error(), "req-5") != 1 {
		t.Errorf("Error() = %q, want req-5 exactly once", err.Error())
	}
}

func TestContent_CreateAndWaitJobFailed(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleJSON(http.MethodPost, "/v1/content", http.StatusOK, map[string]any{"RequestId": "req-6"})
	ms.HandleJSON(http.MethodGet, "/v1/content", http.StatusOK, map[string]any{
		"Status":             "Failed",
		"ErrorId":            1009,
		"FailureDescription": "overflow in Name",
	})

	_, err := newContent(ms, ContentConfig{}).CreateAndWait(context.Background(), printRequest())
	ce, ok := classify.As(err)
	if !ok || !ce.IsPermanent() || ce.Kind != classify.KindJobFailed {
		t.Fatalf("error = %v, want permanent job failure", err)
	}
	if !strings.Contains(err.Error(), "Text overflow detected.") {
		t.Errorf("Error() = %q", err.Error())
	}
	if strings.Count(err.Error(), "req-6") != 1 {
		t.Errorf("Error() = %q, want req-6 exactly once", err.Error())
	}
	if n := ms.RequestCount("/v1/content"); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestContent_CreateURL(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleSequence(http.MethodPost, "/v1/content/url",
		testutil.MockResponse{StatusCode: http.StatusBadGateway, Body: "bad gateway"},
		testutil.MockResponse{Body: map[string]any{"Url": "https://render/abc"}},
	)

	got, err := newContent(ms, ContentConfig{}).CreateURL(context.Background(), printRequest())
	if err != nil {
		t.Fatalf("CreateURL() error = %v", err)
	}
	if got.URL != "https://render/abc" {
		t.Errorf("URL = %q", got.URL)
	}
	if n := ms.RequestCount("/v1/content/url"); n != 2 {
		t.Errorf("requests = %d, want 2 (one retry)", n)
	}
}

type memCache struct {
	mu    sync.Mutex
	items map[string]*types.TemplateInfo
	sets  int
}

func (c *memCache) Get(ctx context.Context, id string) (*types.TemplateInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[id], nil
}

func (c *memCache) Set(ctx context.Context, info *types.TemplateInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = map[string]*types.TemplateInfo{}
	}
	c.items[info.TemplateID] = info
	c.sets++
	return nil
}

func TestTemplates_Info(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleJSON(http.MethodGet, "/v1/content/templates/tpl-1/info", http.StatusOK, map[string]any{
		"TemplateId": "tpl-1",
		"Fields": []map[string]any{
			{"Name": "Name", "Type": "String"},
			{"Name": "Due", "Type": "Date"},
		},
	})
	cache := &memCache{}
	r := NewTemplatesResource(newTransport(ms), cache, nil)

	for i := 0; i < 2; i++ {
		fields, err := r.Fields(context.Background(), "tpl-1")
		if err != nil {
			t.Fatalf("Fields() error = %v", err)
		}
		if len(fields) != 2 || fields[1].Type.Normalize() != types.FieldDate {
			t.Errorf("fields = %+v", fields)
		}
	}
	if n := ms.RequestCount("/v1/content/templates/tpl-1/info"); n != 1 {
		t.Errorf("requests = %d, want 1 (second served from cache)", n)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}
}

func TestTemplates_InfoEscapesID(t *testing.T) {
	ms := testutil.NewMockServer(t)
	r := NewTemplatesResource(newTransport(ms), nil, nil)

	_, err := r.Info(context.Background(), "a/b")
	if err == nil {
		t.Fatal("Info() error = nil, want 404")
	}
	if got := ms.LastRequest().RawPath; got != "/v1/content/templates/a%2Fb/info" {
		t.Errorf("path = %q, want the ID as one escaped segment", got)
	}
	if !httpx.IsNotFoundError(err) {
		t.Errorf("IsNotFoundError() = false for %v", err)
	}
}

func TestTemplates_InfoInvalidTemplate(t *testing.T) {
	ms := testutil.NewMockServer(t)
	ms.HandleError(http.MethodGet, "/v1/content/templates/nope/info", http.StatusBadRequest, "103", "Bad template")
	r := NewTemplatesResource(newTransport(ms), nil, nil)

	_, err := r.Info(context.Background(), "nope")
	ce, ok := classify.As(err)
	if !ok || ce.ErrorID != "103" || !ce.IsPermanent() {
		t.Errorf("error = %v, want permanent 103", err)
	}
}

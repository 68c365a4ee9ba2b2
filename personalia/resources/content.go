package resources

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/personalia-io/personalia-sdk-go/internal/httpx"
	"github.com/personalia-io/personalia-sdk-go/personalia/classify"
	"github.com/personalia-io/personalia-sdk-go/personalia/poll"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

const (
	contentPath    = "/v1/content"
	contentURLPath = "/v1/content/url"
)

// FieldValidator checks request fields against the template before a
// request is sent.
type FieldValidator interface {
	ValidateFields(ctx context.Context, req *types.CreateContentRequest) error
}

// ContentConfig configures a ContentResource.
type ContentConfig struct {
	Logger Logger
	// Poll holds the default polling options. Options passed to Wait or
	// CreateAndWait are applied after them.
	Poll      []poll.Option
	Validator FieldValidator
}

// ContentResource submits content requests and retrieves their results.
type ContentResource struct {
	base      *Base
	poll      []poll.Option
	validator FieldValidator
}

// NewContentResource creates a new ContentResource.
func NewContentResource(transport *httpx.Transport, cfg ContentConfig) *ContentResource {
	return &ContentResource{
		base:      NewBase(transport, cfg.Logger),
		poll:      cfg.Poll,
		validator: cfg.Validator,
	}
}

// Create submits a content request and returns its request ID.
//
// Rejections are returned as *classify.Error. Client-side validation
// failures wrap types.ErrInvalidRequest and nothing is sent.
func (r *ContentResource) Create(ctx context.Context, req *types.CreateContentRequest) (*types.CreateContentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if r.validator != nil {
		if err := r.validator.ValidateFields(ctx, req); err != nil {
			return nil, err
		}
	}

	var result types.CreateContentResponse
	if err := r.base.Post(ctx, contentPath, req, &result); err != nil {
		return nil, classify.FromError(classify.CallSubmit, err)
	}
	if result.RequestID == "" {
		return nil, classify.Classify(classify.Input{
			Call:  classify.CallSubmit,
			Cause: errors.New("content request accepted without a RequestId"),
		})
	}
	r.base.log("content request submitted", "request_id", result.RequestID, "template_id", req.TemplateID)
	return &result, nil
}

// Get retrieves the current state of a content request once.
func (r *ContentResource) Get(ctx context.Context, requestID string) (*types.Content, error) {
	content, err := r.fetch(ctx, requestID, r.base.Get)
	if err != nil {
		return nil, classify.FromError(classify.CallOther, err).Annotate(requestID)
	}
	return content, nil
}

// CheckStatus performs one status check and returns transport errors
// unclassified. It implements poll.Checker: the request is sent once and
// the poller decides whether to try again.
func (r *ContentResource) CheckStatus(ctx context.Context, requestID string) (*types.Content, error) {
	return r.fetch(ctx, requestID, r.base.GetOnce)
}

type getFunc func(ctx context.Context, path string, query map[string]string, result any) error

func (r *ContentResource) fetch(ctx context.Context, requestID string, get getFunc) (*types.Content, error) {
	if err := requireID(requestID); err != nil {
		return nil, err
	}
	var result types.Content
	if err := get(ctx, contentPath, map[string]string{"requestId": requestID}, &result); err != nil {
		return nil, err
	}
	if result.RequestID == "" {
		result.RequestID = requestID
	}
	return &result, nil
}

// Wait polls an existing request until it completes. See poll.Poller.Wait
// for the returned error types.
func (r *ContentResource) Wait(ctx context.Context, requestID string, opts ...poll.Option) (*types.Content, error) {
	if err := requireID(requestID); err != nil {
		return nil, err
	}
	return r.poller(opts).Wait(ctx, requestID)
}

// CreateAndWait submits a request and polls it to completion. Any error
// raised after submission names the request ID.
func (r *ContentResource) CreateAndWait(ctx context.Context, req *types.CreateContentRequest, opts ...poll.Option) (*types.Content, error) {
	created, err := r.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	content, err := r.poller(opts).Wait(ctx, created.RequestID)
	if err != nil {
		return nil, poll.Annotate(err, created.RequestID)
	}
	return content, nil
}

// CreateURL returns a URL that renders the document on demand.
func (r *ContentResource) CreateURL(ctx context.Context, req *types.CreateContentRequest) (*types.ContentURL, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if r.validator != nil {
		if err := r.validator.ValidateFields(ctx, req); err != nil {
			return nil, err
		}
	}

	var result types.ContentURL
	if err := r.base.PostIdempotent(ctx, contentURLPath, req, &result); err != nil {
		return nil, classify.FromError(classify.CallOther, err)
	}
	return &result, nil
}

// Poller returns a poller that uses this resource for status checks.
func (r *ContentResource) Poller(opts ...poll.Option) *poll.Poller {
	return r.poller(opts)
}

func (r *ContentResource) poller(opts []poll.Option) *poll.Poller {
	all := make([]poll.Option, 0, len(r.poll)+len(opts))
	all = append(all, r.poll...)
	all = append(all, opts...)
	return poll.New(r, all...)
}

func requireID(requestID string) error {
	if strings.TrimSpace(requestID) == "" {
		return fmt.Errorf("%w: request ID is required", types.ErrInvalidRequest)
	}
	return nil
}

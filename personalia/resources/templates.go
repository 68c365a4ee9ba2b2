package resources

import (
	"context"
	"fmt"
	"strings"

	"github.com/personalia-io/personalia-sdk-go/internal/httpx"
	"github.com/personalia-io/personalia-sdk-go/personalia/classify"
	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

// TemplateCache stores template info between lookups. A miss returns
// (nil, nil).
type TemplateCache interface {
	Get(ctx context.Context, templateID string) (*types.TemplateInfo, error)
	Set(ctx context.Context, info *types.TemplateInfo) error
}

// TemplatesResource reads template field definitions.
type TemplatesResource struct {
	base  *Base
	cache TemplateCache
}

// NewTemplatesResource creates a new TemplatesResource. cache may be nil.
func NewTemplatesResource(transport *httpx.Transport, cache TemplateCache, logger Logger) *TemplatesResource {
	return &TemplatesResource{base: NewBase(transport, logger), cache: cache}
}

// Info returns the input fields of a template.
func (r *TemplatesResource) Info(ctx context.Context, templateID string) (*types.TemplateInfo, error) {
	if strings.TrimSpace(templateID) == "" {
		return nil, fmt.Errorf("%w: template ID is required", types.ErrInvalidRequest)
	}

	if r.cache != nil {
		cached, err := r.cache.Get(ctx, templateID)
		switch {
		case err != nil:
			r.base.log("template cache read failed", "template_id", templateID, "error", err)
		case cached != nil:
			return cached, nil
		}
	}

	segment, err := pathParam("templateId", templateID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidRequest, err)
	}

	var info types.TemplateInfo
	if err := r.base.Get(ctx, "/v1/content/templates/"+segment+"/info", nil, &info); err != nil {
		return nil, classify.FromError(classify.CallOther, err)
	}
	if info.TemplateID == "" {
		info.TemplateID = templateID
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, &info); err != nil {
			r.base.log("template cache write failed", "template_id", templateID, "error", err)
		}
	}
	return &info, nil
}

// Fields returns just the field list of a template.
func (r *TemplatesResource) Fields(ctx context.Context, templateID string) ([]types.TemplateField, error) {
	info, err := r.Info(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return info.Fields, nil
}

package personalia

import (
	"context"

	"github.com/personalia-io/personalia-sdk-go/personalia/types"
)

// CreateClient creates a new client with default configuration.
//
// This is a convenience function equivalent to:
//
//	client, err := personalia.NewClient(personalia.WithAPIKey(apiKey))
func CreateClient(apiKey string) (*Client, error) {
	return NewClient(WithAPIKey(apiKey))
}

// GenerateContent submits fields for templateID and waits for the result
// with the client's polling defaults.
//
// Example:
//
//	content, err := personalia.GenerateContent(ctx, client, templateID,
//		map[string]any{"FirstName": "Ada"},
//		&types.Output{Format: types.FormatPDF, Quality: types.QualityPrint},
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(content.URLs[0])
func GenerateContent(ctx context.Context, client *Client, templateID string, fields map[string]any, output *types.Output) (*types.Content, error) {
	return client.Content().CreateAndWait(ctx, &types.CreateContentRequest{
		TemplateID: templateID,
		Fields:     fields,
		Output:     output,
	})
}

// ContentURL returns an on-demand rendering URL for fields and templateID.
func ContentURL(ctx context.Context, client *Client, templateID string, fields map[string]any, output *types.Output) (string, error) {
	resp, err := client.Content().CreateURL(ctx, &types.CreateContentRequest{
		TemplateID: templateID,
		Fields:     fields,
		Output:     output,
	})
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

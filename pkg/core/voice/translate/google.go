package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	translatev3 "cloud.google.com/go/translate/apiv3"
	"cloud.google.com/go/translate/apiv3/translatepb"
	"google.golang.org/api/option"
)

type translateTextFunc func(ctx context.Context, req *translatepb.TranslateTextRequest) (*translatepb.TranslateTextResponse, error)

// GoogleProvider implements Provider on Cloud Translation v3.
type GoogleProvider struct {
	client    *translatev3.TranslationClient
	translate translateTextFunc
	parent    string
}

// NewGoogle creates a Translation client scoped to projectID and location
// ("global" when empty). The caller must Close the provider.
func NewGoogle(ctx context.Context, projectID, location string, opts ...option.ClientOption) (*GoogleProvider, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("translation project id is required")
	}
	client, err := translatev3.NewTranslationClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create translation client: %w", err)
	}
	return &GoogleProvider{
		client: client,
		translate: func(ctx context.Context, req *translatepb.TranslateTextRequest) (*translatepb.TranslateTextResponse, error) {
			return client.TranslateText(ctx, req)
		},
		parent: parentName(projectID, location),
	}, nil
}

func parentName(projectID, location string) string {
	location = strings.TrimSpace(location)
	if location == "" {
		location = "global"
	}
	return fmt.Sprintf("projects/%s/locations/%s", strings.TrimSpace(projectID), location)
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// Translate issues one TranslateText call. An empty result is returned as
// an empty string without error.
func (p *GoogleProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	if p == nil || p.translate == nil {
		return "", errors.New("google translate provider is not initialized")
	}
	resp, err := p.translate(ctx, &translatepb.TranslateTextRequest{
		Parent:             p.parent,
		Contents:           []string{text},
		MimeType:           "text/plain",
		SourceLanguageCode: source,
		TargetLanguageCode: target,
	})
	if err != nil {
		return "", fmt.Errorf("translate text: %w", err)
	}
	translations := resp.GetTranslations()
	if len(translations) == 0 {
		return "", nil
	}
	return translations[0].GetTranslatedText(), nil
}

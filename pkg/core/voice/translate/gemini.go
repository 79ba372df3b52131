package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

const geminiSystemPrompt = "You are a translation engine. Translate the user's text from the source language to the target language. Reply with the translated text only, without quotes, notes or transliteration."

type generateFunc func(ctx context.Context, model, prompt string) (string, error)

// GeminiProvider translates with a Gemini model on Vertex AI.
type GeminiProvider struct {
	model    string
	generate generateFunc
}

// GeminiConfig configures NewGemini. An empty CredentialsFile uses
// application default credentials.
type GeminiConfig struct {
	Project         string
	Location        string
	Model           string
	CredentialsFile string
}

// NewGemini creates a Vertex AI backed genai client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if strings.TrimSpace(cfg.Project) == "" {
		return nil, errors.New("gemini project is required")
	}
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "us-central1"
	}
	clientCfg := &genai.ClientConfig{
		Project:  cfg.Project,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			CredentialsFile: path,
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("load gemini credentials: %w", err)
		}
		clientCfg.Credentials = creds
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	temperature := float32(0)
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(geminiSystemPrompt, genai.RoleUser),
		Temperature:       &temperature,
	}
	return &GeminiProvider{
		model: modelOrDefault(cfg.Model),
		generate: func(ctx context.Context, model, prompt string) (string, error) {
			resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), genCfg)
			if err != nil {
				return "", err
			}
			return resp.Text(), nil
		},
	}, nil
}

func modelOrDefault(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return defaultGeminiModel
	}
	return model
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Translate(ctx context.Context, text, source, target string) (string, error) {
	if p == nil || p.generate == nil {
		return "", errors.New("gemini translate provider is not initialized")
	}
	prompt := fmt.Sprintf("Source language: %s\nTarget language: %s\n\n%s", source, target, text)
	out, err := p.generate(ctx, p.model, prompt)
	if err != nil {
		return "", fmt.Errorf("gemini translate: %w", err)
	}
	return strings.TrimSpace(out), nil
}

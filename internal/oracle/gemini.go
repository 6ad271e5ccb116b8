package oracle

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig selects the backend and models for the Gemini oracle. When
// APIKey is set the AI Studio backend is used, otherwise Vertex AI with
// Project/Location.
type GeminiConfig struct {
	APIKey          string
	Project         string
	Location        string
	GenerativeModel string
	EmbeddingModel  string
	EmbeddingDims   int32
	Timeout         time.Duration
}

// Gemini implements Oracle on top of google.golang.org/genai.
type Gemini struct {
	client  *genai.Client
	cfg     GeminiConfig
	logger  *log.Logger
	timeout time.Duration
}

// NewGemini creates the oracle client once at startup; the instance is passed
// to every consumer explicitly.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *log.Logger) (*Gemini, error) {
	cc := &genai.ClientConfig{}
	if cfg.APIKey != "" {
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	} else {
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if cfg.GenerativeModel == "" {
		cfg.GenerativeModel = "gemini-2.5-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-004"
	}
	if cfg.EmbeddingDims <= 0 {
		cfg.EmbeddingDims = 768
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Gemini{client: client, cfg: cfg, logger: logger, timeout: timeout}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	parts := []*genai.Part{}
	if len(req.Image) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: "image/png", Data: req.Image},
		})
	}
	parts = append(parts, &genai.Part{Text: req.Prompt})
	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}

	var config *genai.GenerateContentConfig
	if req.Grounded {
		config = &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.GenerativeModel, contents, config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("generate content: empty response")
	}
	return text, nil
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.EmbedContent(ctx, g.cfg.EmbeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(g.cfg.EmbeddingDims),
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embed content: no vector returned")
	}
	return resp.Embeddings[0].Values, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			if out != "" {
				out += "\n"
			}
			out += part.Text
		}
	}
	return out
}

package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const (
	defaultModel    = "gemini-3-flash-preview"
	defaultLocation = "us-central1"
)

var ErrEmptyResponse = errors.New("empty response text")

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	// UseADC switches to Vertex AI with application default credentials when APIKey is empty.
	UseADC   bool
	Project  string
	Location string
}

type Client struct {
	models *genai.Models
	model  string
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
			Timeout: &timeout,
		},
	}
	if cfg.APIKey == "" && cfg.UseADC {
		location := cfg.Location
		if location == "" {
			location = defaultLocation
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = location
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client (model: %s): %w", model, err)
	}

	return &Client{models: client.Models, model: model}, nil
}

// Generate sends a plain text prompt and returns the model's text.
func (c *Client) Generate(ctx context.Context, system, prompt string, temperature float64) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: systemContent(system),
		Temperature:       genai.Ptr(float32(temperature)),
	}

	text, err := c.generate(ctx, prompt, config)
	if err != nil {
		return "", fmt.Errorf("generate content (model: %s): %w", c.model, err)
	}
	return text, nil
}

// GenerateJSON asks for a response constrained by schema and decodes it into result.
func (c *Client) GenerateJSON(ctx context.Context, system, prompt string, schema *Schema, result any) error {
	config := &genai.GenerateContentConfig{
		SystemInstruction: systemContent(system),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}

	text, err := c.generate(ctx, prompt, config)
	if err != nil {
		return fmt.Errorf("generate json content (model: %s): %w", c.model, err)
	}

	if err = json.Unmarshal([]byte(text), result); err != nil {
		return fmt.Errorf("decode generated json (model: %s): %w", c.model, err)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func systemContent(text string) *genai.Content {
	if text == "" {
		return nil
	}
	return genai.NewContentFromText(text, genai.RoleUser)
}

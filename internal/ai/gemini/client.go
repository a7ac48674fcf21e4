package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/TechFutureAIFPT/hr-support/internal/llm"
	"github.com/TechFutureAIFPT/hr-support/internal/logger"
	"github.com/TechFutureAIFPT/hr-support/internal/utils"
)

const (
	Provider = "gemini"

	defaultModel        = "gemini-2.5-flash"
	defaultMaxLogLength = 200

	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// Config selects the backend and model for a client.
type Config struct {
	Model        string `mapstructure:"model"`
	Backend      string `mapstructure:"backend"`
	Project      string `mapstructure:"project"`
	Location     string `mapstructure:"location"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Client on top of the Google GenAI SDK. It is bound to
// a single credential.
type Client struct {
	models    modelsAPI
	model     string
	maxLogLen int
	logger    *zap.Logger
}

var _ llm.Client = (*Client)(nil)

// New creates a client for apiKey. With the vertex backend apiKey may be empty
// and application default credentials are used instead.
func New(ctx context.Context, apiKey string, cfg Config, log *zap.Logger) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)

	clientCfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendGemini:
		if apiKey == "" {
			return nil, errors.New("gemini api key is required")
		}
	case BackendVertex:
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
	default:
		return nil, fmt.Errorf("unsupported gemini backend: %s", cfg.Backend)
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newClient(client.Models, cfg, log), nil
}

func newClient(models modelsAPI, cfg Config, log *zap.Logger) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Client{
		models:    models,
		model:     model,
		maxLogLen: maxLogLen,
		logger:    logger.WithModel(log, Provider, model),
	}
}

// Factory returns a constructor suitable for the orchestrator: one client per
// credential.
func Factory(cfg Config, log *zap.Logger) func(ctx context.Context, credential string) (llm.Client, error) {
	return func(ctx context.Context, credential string) (llm.Client, error) {
		return New(ctx, credential, cfg, log)
	}
}

// Generate sends req and returns the concatenated text of the first response.
func (c *Client) Generate(ctx context.Context, req llm.Request) (string, error) {
	if c == nil || c.models == nil {
		return "", errors.New("gemini client is not initialized")
	}

	contents := buildContents(req)
	if len(contents) == 0 {
		return "", errors.New("prompt must not be empty")
	}

	model := c.model
	if m := strings.TrimSpace(req.Config.Model); m != "" {
		model = m
	}

	c.logger.Debug("gemini generate content request",
		zap.String("model", model),
		zap.Int("parts", len(contents[0].Parts)),
		zap.Int("prompt_length", req.Len()),
		zap.Bool("json", req.Config.JSON),
	)

	started := time.Now()
	resp, err := c.models.GenerateContent(ctx, model, contents, buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	output := responseText(resp)

	c.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, c.maxLogLen)),
		zap.Duration("duration", time.Since(started)),
	)

	if output == "" {
		return "", fmt.Errorf("gemini: %w", llm.ErrEmptyResponse)
	}

	return output, nil
}

func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

func buildContents(req llm.Request) []*genai.Content {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	if len(parts) == 0 {
		return nil
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(req llm.Request) *genai.GenerateContentConfig {
	cfg := req.Config
	out := &genai.GenerateContentConfig{
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
	}

	if system := strings.TrimSpace(req.System); system != "" {
		out.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if cfg.JSON {
		out.ResponseMIMEType = "application/json"
	}
	if cfg.Schema != nil {
		out.ResponseSchema = convertSchema(cfg.Schema)
	}
	if cfg.ThinkingBudget != nil {
		out.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: cfg.ThinkingBudget}
	}

	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
		// Only the first candidate carries the answer.
		if builder.Len() > 0 {
			break
		}
	}

	return strings.TrimSpace(builder.String())
}

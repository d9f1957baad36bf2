package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

const (
	DefaultModel   = "gpt-3.5-turbo"
	DefaultBaseURL = "https://api.openai.com/v1"
	Temperature    = 0.7
	MaxTokens      = 1000
)

// SystemPrompt is sent as the first turn of every exchange.
const SystemPrompt = `You are neurosci.ai, a specialized assistant for neuroscience and animal behavioral analysis.

When formatting your responses:
- Use clear paragraph breaks between distinct points or sections
- Add a blank line between paragraphs for better readability
- Use appropriate headings and subheadings when covering multiple topics
- Format lists with proper spacing
- Structure complex explanations with clear visual separation

You have knowledge of neuroscience research up to your training cutoff date.
When you don't know something or when asked about future events, acknowledge your limitations clearly.
When files are uploaded, acknowledge them but explain that you cannot directly analyze their contents.`

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// Completion is the gateway's result: the model text plus the attachment
// names that were announced to it.
type Completion struct {
	Text  string
	Files []string
}

// Service forwards a single prompt to the completion provider. Each call is
// stateless: no conversation history is sent.
type Service struct {
	llm    llms.Model
	model  string
	logger *zap.Logger
}

// New builds the gateway. A missing API key is not an error here; Complete
// reports it as a ConfigurationError so the server can still start.
func New(cfg Config, logger *zap.Logger) (*Service, error) {
	s := &Service{model: cfg.Model, logger: logger}
	if s.model == "" {
		s.model = DefaultModel
	}
	if cfg.APIKey == "" {
		logger.Warn("No OpenAI API key configured; completions will fail")
		return s, nil
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	client, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(s.model),
		openai.WithHTTPClient(&upstreamDoer{next: httpClient}),
	)
	if err != nil {
		return nil, err
	}
	s.llm = client
	return s, nil
}

// NewWithModel wraps an existing model, bypassing provider setup.
func NewWithModel(model llms.Model, logger *zap.Logger) *Service {
	return &Service{llm: model, model: DefaultModel, logger: logger}
}

func (s *Service) Configured() bool {
	return s.llm != nil
}

// BuildPrompt returns the user turn: the message, followed by a list of the
// uploaded file names when there are any.
func BuildPrompt(message string, files []string) string {
	if len(files) == 0 {
		return message
	}

	var b strings.Builder
	b.WriteString(message)
	b.WriteString("\n\nThe user has uploaded the following files:\n")
	for i, name := range files {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(name)
	}
	b.WriteString("\n\nPlease acknowledge these files.")
	return b.String()
}

func (s *Service) Complete(ctx context.Context, prompt string, files []string) (*Completion, error) {
	if s.llm == nil {
		return nil, &ConfigurationError{Reason: "OpenAI API key not configured"}
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, BuildPrompt(prompt, files)),
	}

	start := time.Now()
	resp, err := s.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(Temperature),
		llms.WithMaxTokens(MaxTokens),
	)
	if err != nil {
		s.logger.Error("Completion request failed",
			zap.Error(err),
			zap.String("model", s.model),
			zap.Duration("latency", time.Since(start)))
		return nil, fmt.Errorf("failed to generate completion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &UpstreamError{Status: http.StatusBadGateway, Message: "no completion choices returned"}
	}

	s.logger.Info("Completion received",
		zap.String("model", s.model),
		zap.Int("files", len(files)),
		zap.Duration("latency", time.Since(start)))

	names := append([]string{}, files...)
	return &Completion{Text: resp.Choices[0].Content, Files: names}, nil
}

package translate

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"pdf-translator/internal/logger"
)

// EinoService translates through the eino chat model abstraction, which
// handles request shaping and transport for OpenAI-compatible backends.
type EinoService struct {
	model   *openai.ChatModel
	langIn  string
	langOut string
}

// NewEinoService builds an eino chat model from the configuration.
func NewEinoService(ctx context.Context, cfg Config) (*EinoService, error) {
	chatModelConfig := &openai.ChatModelConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		chatModelConfig.Timeout = cfg.Timeout
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	langIn, langOut := cfg.langPair()
	return &EinoService{
		model:   chatModel,
		langIn:  langIn,
		langOut: langOut,
	}, nil
}

// Name identifies the service in logs and results.
func (s *EinoService) Name() string { return "eino" }

// Translate sends the text through the chat model.
func (s *EinoService) Translate(ctx context.Context, text string) (string, error) {
	logger.Debug("calling eino chat model", logger.Int("textLen", len(text)))

	response, err := s.model.Generate(ctx, []*schema.Message{
		schema.SystemMessage(buildSystemPrompt(s.langIn, s.langOut)),
		schema.UserMessage(buildUserPrompt(s.langIn, s.langOut, text)),
	})
	if err != nil {
		return "", &RequestError{Message: "chat model generation failed", Details: err.Error()}
	}
	return response.Content, nil
}

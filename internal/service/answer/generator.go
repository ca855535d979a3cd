package answer

import (
	"context"
	"fmt"
	"strings"

	"deskchat/internal/config"
	"deskchat/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// Generator phrases the knowledge-branch answer from the conversation so far
// and the retrieved passages.
type Generator interface {
	GenerateAnswer(ctx context.Context, history []*models.Message, question string, passages []models.Passage) (string, error)
}

const systemPrompt = "You are a customer support assistant. " +
	"Answer using only the conversation history and the document excerpts provided. " +
	"If the excerpts do not cover the question, say you could not find the information. " +
	"Be concise and helpful."

type modelGenerator struct {
	chatModel model.BaseChatModel
}

// NewGenerator builds the generator for the configured answer provider.
func NewGenerator(cfg *config.Config) (Generator, error) {
	provider := cfg.BasicConfig.AnswerProvider
	if provider == "" {
		provider = "openai"
	}
	provCfg, ok := cfg.Providers[provider]
	if !ok {
		return nil, fmt.Errorf("provider %s not configured", provider)
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch provider {
	case "openai":
		chatModel, err = openai.NewChatModel(context.Background(), &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(context.Background(), &gemini.Config{
			Client: client,
			Model:  provCfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if provCfg.BaseURL != "" {
			baseURLPtr = &provCfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(context.Background(), &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", provider, err)
	}
	return &modelGenerator{chatModel: chatModel}, nil
}

// GenerateAnswer runs one blocking generation over the history, the new
// question and the passage context.
func (g *modelGenerator) GenerateAnswer(ctx context.Context, history []*models.Message, question string, passages []models.Passage) (string, error) {
	var docs strings.Builder
	for _, p := range passages {
		docs.WriteString(p.ChunkText)
		docs.WriteString("\n\n")
	}

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, &schema.Message{
		Role:    schema.System,
		Content: fmt.Sprintf("%s\n\nDocument excerpts:\n%s", systemPrompt, strings.TrimSpace(docs.String())),
	})
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{Role: role, Content: msg.Content})
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: question})

	resp, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

package reply

import (
	"context"
	"dotori/app/config"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	_ "embed"

	"github.com/samber/do"
	"github.com/sashabaranov/go-openai"
)

//go:embed system_prompt.txt
var systemPrompt string

const (
	defaultTemperature  = 0.7
	maxCompletionTokens = 500
	maxGenerateDuration = 30 * time.Second
)

// Service turns a customer message plus optional matched context
// into an assistant reply via the completion endpoint.
type Service struct {
	cfg    *config.Config
	client *openai.Client
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[*config.Config](di)), nil
}

func NewService(cfg *config.Config) *Service {
	clientConfig := openai.DefaultConfig(cfg.OpenAI.Token)

	clientConfig.BaseURL = cfg.OpenAI.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: maxGenerateDuration,
	}

	return &Service{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// Generate produces the reply text. An empty message fails closed
// without touching the remote endpoint. Remote failures come back as
// errors, the pipeline converts them to the apology string at its
// boundary.
func (s *Service) Generate(ctx context.Context, userMessage string, convCtx *Context) (string, error) {
	if strings.TrimSpace(userMessage) == "" {
		return MsgCannotUnderstand, nil
	}

	systemMessage := systemPrompt

	if !convCtx.Empty() {
		data, err := json.MarshalIndent(convCtx, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal context: %w", err)
		}

		systemMessage += "\n\n참고할 정보:\n" + string(data)
	}

	ctx, cancel := context.WithTimeout(ctx, maxGenerateDuration)
	defer cancel()

	aiResponse, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.cfg.OpenAI.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemMessage,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: userMessage,
				},
			},
			MaxTokens:   maxCompletionTokens,
			Temperature: defaultTemperature,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	if len(aiResponse.Choices) == 0 {
		return "", fmt.Errorf("no chat completion found")
	}

	result := strings.TrimSpace(aiResponse.Choices[0].Message.Content)

	slog.Debug("Generated reply", "length", len(result))

	return result, nil
}

package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Manabreaker/FitAI-tg/internal/domain"
	"github.com/Manabreaker/FitAI-tg/internal/store"
)

// Reply is one model turn: free text plus any structured function calls
// the model decided to make.
type Reply struct {
	Text      string
	ToolCalls []openai.ToolCall
}

// Client talks to the chat-completion API on behalf of a registered
// user: it injects the profile into the system prompt, replays the
// persisted history and stores both sides of every exchange.
type Client struct {
	api   *openai.Client
	model string
	repo  store.Repo
	log   *zap.Logger
}

// New creates a Client. model may be empty; GPT-4o mini is the default.
func New(apiKey, model string, repo store.Repo, log *zap.Logger) *Client {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{
		api:   openai.NewClient(apiKey),
		model: model,
		repo:  repo,
		log:   log,
	}
}

// Chat sends userText as the user's next turn and returns the model's
// reply. The exchange is appended to the durable history.
func (c *Client) Chat(ctx context.Context, user *domain.User, userText string) (*Reply, error) {
	history, err := c.repo.ListMessages(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(user),
	})
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: msgs,
		Tools:    notificationTools(),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty choices")
	}

	choice := resp.Choices[0].Message

	if err := c.repo.AppendMessage(ctx, &domain.Message{
		UserID: user.ID, Role: domain.RoleUser, Content: userText,
	}); err != nil {
		c.log.Warn("persist user message failed", zap.Error(err))
	}
	if choice.Content != "" {
		if err := c.repo.AppendMessage(ctx, &domain.Message{
			UserID: user.ID, Role: domain.RoleAssistant, Content: choice.Content,
		}); err != nil {
			c.log.Warn("persist assistant message failed", zap.Error(err))
		}
	}

	return &Reply{Text: choice.Content, ToolCalls: choice.ToolCalls}, nil
}

// Motivate produces the inactivity nudge: the same conversation flow,
// driven by a canned prompt instead of an inbound message.
func (c *Client) Motivate(ctx context.Context, user *domain.User) (string, error) {
	reply, err := c.Chat(ctx, user, "Motivate me to keep up my workouts and healthy eating!")
	if err != nil {
		return "", err
	}
	if reply.Text == "" {
		return "", fmt.Errorf("motivation: empty reply")
	}
	return reply.Text, nil
}

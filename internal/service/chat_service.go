package service

import (
	"context"
	"time"

	"local-assistant/internal/entity"
	"local-assistant/internal/pkg/logger"
	"local-assistant/pkg/llm"
	"local-assistant/pkg/llm/engine"

	"go.opentelemetry.io/otel/attribute"
)

type ChatReply struct {
	SessionId string         `json:"session_id"`
	Message   entity.Message `json:"message"`
	Result    *engine.Result `json:"result"`
}

// IChatService runs generation over sessions. Session turns are rendered from
// the session itself; the engine's own buffer only backs the session-less calls.
type IChatService interface {
	SendMessage(ctx context.Context, sessionId, content string) (*ChatReply, error)
	GenerateWithFullContext(ctx context.Context, sessionId, prompt string) (*engine.Result, error)
	Generate(ctx context.Context, prompt string) (*engine.Result, error)
	GenerateStream(ctx context.Context, prompt string, onChunk func(piece string) error) (*engine.Result, error)
}

type chatService struct {
	sessionService ISessionService
	engine         *engine.Engine
	logger         logger.ILogger
}

func NewChatService(sessionService ISessionService, engine *engine.Engine, logger logger.ILogger) IChatService {
	return &chatService{
		sessionService: sessionService,
		engine:         engine,
		logger:         logger,
	}
}

func (c *chatService) SendMessage(ctx context.Context, sessionId, content string) (_ *ChatReply, err error) {
	ctx, span := startSpan(ctx, "chat.send_message", attribute.String("session.id", sessionId))
	defer func() { finishSpan(span, err) }()

	if !c.engine.IsLoaded() {
		return nil, engine.ErrNotLoaded
	}

	if _, err := c.sessionService.AddMessage(ctx, sessionId, llm.RoleUser.String(), content); err != nil {
		return nil, err
	}

	session, err := c.sessionService.GetSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	transcript := renderTranscript(session.Messages) + llm.AssistantCue()
	res, err := c.engine.GenerateWithContext(ctx, transcript)
	if err != nil {
		return nil, err
	}

	tokens := res.TokensGenerated
	span.SetAttributes(attribute.Int("tokens.generated", tokens))
	reply, err := c.sessionService.AppendMessage(ctx, sessionId, &entity.StoredMessage{
		Role:       llm.RoleAssistant,
		Content:    res.Text,
		TokenCount: &tokens,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("CHAT", "Reply generated", map[string]interface{}{
		"session_id":  sessionId,
		"tokens":      tokens,
		"completed":   res.Completed,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &ChatReply{
		SessionId: sessionId,
		Message:   *reply,
		Result:    res,
	}, nil
}

// GenerateWithFullContext answers prompt against the session transcript
// without recording either turn.
func (c *chatService) GenerateWithFullContext(ctx context.Context, sessionId, prompt string) (_ *engine.Result, err error) {
	ctx, span := startSpan(ctx, "chat.generate_with_full_context", attribute.String("session.id", sessionId))
	defer func() { finishSpan(span, err) }()

	session, err := c.sessionService.GetSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	transcript := renderTranscript(session.Messages) +
		llm.RenderTranscript([]llm.Message{{Role: llm.RoleUser, Content: prompt}})

	return c.engine.GenerateWithContext(ctx, transcript)
}

func (c *chatService) Generate(ctx context.Context, prompt string) (*engine.Result, error) {
	return c.engine.Generate(ctx, prompt)
}

func (c *chatService) GenerateStream(ctx context.Context, prompt string, onChunk func(piece string) error) (*engine.Result, error) {
	return c.engine.GenerateStream(ctx, prompt, onChunk)
}

func renderTranscript(messages []entity.Message) string {
	turns := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, llm.Message{Role: m.Role, Content: m.Content})
	}
	return llm.RenderTranscript(turns)
}

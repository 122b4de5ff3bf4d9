package controller

import (
	"local-assistant/internal/dto"
	"local-assistant/internal/entity"
	"local-assistant/internal/pkg/serverutils"
	"local-assistant/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	GetAll(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Rename(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Messages(ctx *fiber.Ctx) error
	AddMessage(ctx *fiber.Ctx) error
	Chat(ctx *fiber.Ctx) error
	Generate(ctx *fiber.Ctx) error
	Prune(ctx *fiber.Ctx) error
	SetActive(ctx *fiber.Ctx) error
	GetActive(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService      service.ISessionService
	chatService         service.IChatService
	conversationService service.IConversationService
}

func NewSessionController(
	sessionService service.ISessionService,
	chatService service.IChatService,
	conversationService service.IConversationService,
) ISessionController {
	return &sessionController{
		sessionService:      sessionService,
		chatService:         chatService,
		conversationService: conversationService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/sessions")
	h.Get("", c.GetAll)
	h.Post("", c.Create)
	h.Get("active", c.GetActive)
	h.Put("active", c.SetActive)
	h.Get(":id", c.Show)
	h.Patch(":id", c.Rename)
	h.Delete(":id", c.Delete)
	h.Get(":id/messages", c.Messages)
	h.Post(":id/messages", c.AddMessage)
	h.Post(":id/chat", c.Chat)
	h.Post(":id/generate", c.Generate)
	h.Post(":id/prune", c.Prune)
}

func (c *sessionController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.CreateSession(ctx.UserContext(), req.Title)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create session", dto.NewSessionResponse(res)))
}

func (c *sessionController) GetAll(ctx *fiber.Ctx) error {
	res, err := c.sessionService.ListSessions(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get all sessions", res))
}

func (c *sessionController) Show(ctx *fiber.Ctx) error {
	res, err := c.sessionService.GetSession(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", dto.NewSessionResponse(res)))
}

func (c *sessionController) Rename(ctx *fiber.Ctx) error {
	var req dto.RenameSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.sessionService.RenameSession(ctx.UserContext(), ctx.Params("id"), req.Title); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success rename session", nil))
}

func (c *sessionController) Delete(ctx *fiber.Ctx) error {
	if err := c.sessionService.DeleteSession(ctx.UserContext(), ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete session", nil))
}

// Messages reads straight from the store, so a deleted session yields an empty list.
func (c *sessionController) Messages(ctx *fiber.Ctx) error {
	stored, err := c.conversationService.ListMessages(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return err
	}

	res := make([]entity.StoredMessage, 0, len(stored))
	for _, m := range stored {
		res = append(res, *m)
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get messages", res))
}

func (c *sessionController) AddMessage(ctx *fiber.Ctx) error {
	var req dto.AddMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.AddMessage(ctx.UserContext(), ctx.Params("id"), req.Role, req.Content)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success add message", res))
}

func (c *sessionController) Chat(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.SendMessage(ctx.UserContext(), ctx.Params("id"), req.Content)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *sessionController) Generate(ctx *fiber.Ctx) error {
	var req dto.PromptRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.GenerateWithFullContext(ctx.UserContext(), ctx.Params("id"), req.Prompt)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success generate", dto.GenerateResponse{
		Text:            res.Text,
		TokensGenerated: res.TokensGenerated,
		Completed:       res.Completed,
	}))
}

func (c *sessionController) Prune(ctx *fiber.Ctx) error {
	var req dto.PruneRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	deleted, err := c.sessionService.PruneSession(ctx.UserContext(), ctx.Params("id"), req.KeepLast)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success prune messages", dto.PruneResponse{Deleted: deleted}))
}

func (c *sessionController) SetActive(ctx *fiber.Ctx) error {
	var req dto.SetActiveSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sessionService.SetActiveSession(ctx.UserContext(), req.SessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success set active session", dto.NewSessionResponse(res)))
}

func (c *sessionController) GetActive(ctx *fiber.Ctx) error {
	res, err := c.sessionService.GetActiveSession(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get active session", dto.NewSessionResponse(res)))
}

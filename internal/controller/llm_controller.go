package controller

import (
	"local-assistant/internal/dto"
	"local-assistant/internal/pkg/serverutils"
	"local-assistant/internal/service"
	"local-assistant/pkg/llm/engine"

	"github.com/gofiber/fiber/v2"
)

type ILLMController interface {
	RegisterRoutes(r fiber.Router)
	Generate(ctx *fiber.Ctx) error
	Initialize(ctx *fiber.Ctx) error
	Switch(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	UpdateGPU(ctx *fiber.Ctx) error
	Clear(ctx *fiber.Ctx) error
	History(ctx *fiber.Ctx) error
	Unload(ctx *fiber.Ctx) error
	ListModels(ctx *fiber.Ctx) error
	DeleteModel(ctx *fiber.Ctx) error
}

type llmController struct {
	llmService  service.ILLMService
	chatService service.IChatService
}

func NewLLMController(llmService service.ILLMService, chatService service.IChatService) ILLMController {
	return &llmController{
		llmService:  llmService,
		chatService: chatService,
	}
}

func (c *llmController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/llm")
	h.Post("generate", c.Generate)
	h.Post("initialize", c.Initialize)
	h.Post("switch", c.Switch)
	h.Get("status", c.Status)
	h.Put("gpu", c.UpdateGPU)
	h.Post("clear", c.Clear)
	h.Get("history", c.History)
	h.Post("unload", c.Unload)

	m := r.Group("/models")
	m.Get("", c.ListModels)
	m.Delete(":name", c.DeleteModel)
}

func (c *llmController) Generate(ctx *fiber.Ctx) error {
	var req dto.PromptRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.Generate(ctx.UserContext(), req.Prompt)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success generate", dto.GenerateResponse{
		Text:            res.Text,
		TokensGenerated: res.TokensGenerated,
		Completed:       res.Completed,
	}))
}

func (c *llmController) Initialize(ctx *fiber.Ctx) error {
	var req dto.ModelRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.llmService.Initialize(ctx.UserContext(), req.ModelName); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success initialize model", c.llmService.Status()))
}

func (c *llmController) Switch(ctx *fiber.Ctx) error {
	var req dto.ModelRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.llmService.SwitchModel(ctx.UserContext(), req.ModelName); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success switch model", c.llmService.Status()))
}

func (c *llmController) Status(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get status", c.llmService.Status()))
}

func (c *llmController) UpdateGPU(ctx *fiber.Ctx) error {
	var req dto.GPUSettingsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	err := c.llmService.UpdateGPUSettings(ctx.UserContext(), engine.GPUConfig{
		Enabled: req.Enabled,
		Layers:  req.Layers,
		Device:  req.Device,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update GPU settings", c.llmService.GPUInfo()))
}

func (c *llmController) Clear(ctx *fiber.Ctx) error {
	c.llmService.ClearConversation()
	return ctx.JSON(serverutils.SuccessResponse[any]("Success clear conversation", nil))
}

func (c *llmController) History(ctx *fiber.Ctx) error {
	return ctx.JSON(serverutils.SuccessResponse("Success get history", dto.HistoryResponse{
		History: c.llmService.ConversationHistory(),
	}))
}

func (c *llmController) Unload(ctx *fiber.Ctx) error {
	c.llmService.Unload()
	return ctx.JSON(serverutils.SuccessResponse[any]("Success unload model", nil))
}

func (c *llmController) ListModels(ctx *fiber.Ctx) error {
	res, err := c.llmService.ListModels()
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list models", res))
}

func (c *llmController) DeleteModel(ctx *fiber.Ctx) error {
	if err := c.llmService.DeleteModel(ctx.Params("name")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete model", nil))
}

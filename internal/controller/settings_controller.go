package controller

import (
	"local-assistant/internal/dto"
	"local-assistant/internal/pkg/serverutils"
	"local-assistant/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISettingsController interface {
	RegisterRoutes(r fiber.Router)
	GetAll(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type settingsController struct {
	service service.ISettingsService
}

func NewSettingsController(service service.ISettingsService) ISettingsController {
	return &settingsController{service: service}
}

func (c *settingsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/settings")
	h.Get("", c.GetAll)
	h.Get(":key", c.Show)
	h.Put(":key", c.Update)
	h.Delete(":key", c.Delete)
}

func (c *settingsController) GetAll(ctx *fiber.Ctx) error {
	settings, err := c.service.ListAll(ctx.UserContext())
	if err != nil {
		return err
	}

	res := make([]dto.SettingResponse, 0, len(settings))
	for _, s := range settings {
		res = append(res, dto.SettingResponse{Key: s.Key, Value: s.Value})
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get all settings", res))
}

func (c *settingsController) Show(ctx *fiber.Ctx) error {
	key := ctx.Params("key")

	value, ok, err := c.service.Get(ctx.UserContext(), key)
	if err != nil {
		return err
	}
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "setting not found: "+key)
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show setting", dto.SettingResponse{Key: key, Value: value}))
}

func (c *settingsController) Update(ctx *fiber.Ctx) error {
	var req dto.SetSettingRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.ErrBadRequest
	}

	key := ctx.Params("key")
	if err := c.service.Set(ctx.UserContext(), key, req.Value); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success update setting", dto.SettingResponse{Key: key, Value: req.Value}))
}

func (c *settingsController) Delete(ctx *fiber.Ctx) error {
	if err := c.service.Delete(ctx.UserContext(), ctx.Params("key")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Success delete setting", nil))
}

// FILE: internal/controller/orchestrator_controller.go
package controller

import (
	"ai-dispatch-be/internal/dto"
	"ai-dispatch-be/internal/pkg/serverutils"
	"ai-dispatch-be/internal/service"
	"ai-dispatch-be/pkg/workflow"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IOrchestratorController interface {
	RegisterRoutes(r fiber.Router)
	Submit(ctx *fiber.Ctx) error
	GetSessions(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
}

type orchestratorController struct {
	service service.IOrchestratorService
}

func NewOrchestratorController(service service.IOrchestratorService) IOrchestratorController {
	return &orchestratorController{service: service}
}

func (c *orchestratorController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/orchestrator", serverutils.JwtMiddleware)
	h.Post("/submit", c.Submit)
	h.Get("/sessions", c.GetSessions)
	h.Get("/sessions/:id/checkpoints", c.GetHistory)
}

func (c *orchestratorController) Submit(ctx *fiber.Ctx) error {
	userId, ok := authedUser(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid user identity"))
	}

	var request dto.SubmitRequest
	if err := ctx.BodyParser(&request); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	res, err := c.service.Submit(ctx.Context(), userId, &request)
	if err != nil {
		return engineError(ctx, err)
	}
	return ctx.JSON(res)
}

func (c *orchestratorController) GetSessions(ctx *fiber.Ctx) error {
	userId, ok := authedUser(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid user identity"))
	}

	res, err := c.service.GetSessions(ctx.Context(), userId)
	if err != nil {
		return engineError(ctx, err)
	}
	return ctx.JSON(res)
}

func (c *orchestratorController) GetHistory(ctx *fiber.Ctx) error {
	userId, ok := authedUser(ctx)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(401, "Invalid user identity"))
	}

	sessionId, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid session ID"))
	}

	res, err := c.service.GetHistory(ctx.Context(), userId, sessionId)
	if err != nil {
		return engineError(ctx, err)
	}
	return ctx.JSON(res)
}

func authedUser(ctx *fiber.Ctx) (uuid.UUID, bool) {
	userId, err := uuid.Parse(serverutils.UserID(ctx))
	if err != nil {
		return uuid.Nil, false
	}
	return userId, true
}

// engineError maps the engine's stable error kinds onto HTTP statuses.
func engineError(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	switch workflow.KindOf(err) {
	case workflow.KindValidation:
		code = fiber.StatusBadRequest
	case workflow.KindConflict:
		code = fiber.StatusConflict
	case workflow.KindTimeout:
		code = fiber.StatusGatewayTimeout
	case workflow.KindDependency:
		code = fiber.StatusBadGateway
	}
	return ctx.Status(code).JSON(serverutils.ErrorResponse(code, err.Error()))
}

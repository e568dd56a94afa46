// FILE: internal/controller/diagnostics_controller.go
package controller

import (
	"ai-dispatch-be/internal/pkg/logger"
	"ai-dispatch-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

// DiagnosticsController exposes the structured log file for operators:
// list entries filtered by level or module tag, and fetch one entry by id.
type IDiagnosticsController interface {
	RegisterRoutes(r fiber.Router)
	GetLogs(ctx *fiber.Ctx) error
	GetLogById(ctx *fiber.Ctx) error
}

type diagnosticsController struct {
	logger logger.ILogger
}

func NewDiagnosticsController(logger logger.ILogger) IDiagnosticsController {
	return &diagnosticsController{logger: logger}
}

func (c *diagnosticsController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/diagnostics", serverutils.JwtMiddleware)
	h.Get("/logs", c.GetLogs)
	h.Get("/logs/:id", c.GetLogById)
}

func (c *diagnosticsController) GetLogs(ctx *fiber.Ctx) error {
	level := ctx.Query("level")
	module := ctx.Query("module")
	limit := ctx.QueryInt("limit", 100)
	offset := ctx.QueryInt("offset", 0)

	entries, err := c.logger.GetLogs(level, module, limit, offset)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, "Failed to read logs"))
	}
	return ctx.JSON(fiber.Map{
		"logs":  entries,
		"count": len(entries),
	})
}

func (c *diagnosticsController) GetLogById(ctx *fiber.Ctx) error {
	entry, err := c.logger.GetLogById(ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, "Log entry not found"))
	}
	return ctx.JSON(entry)
}

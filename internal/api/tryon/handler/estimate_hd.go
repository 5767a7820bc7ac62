package tryonHandler

import (
	"TryOnService/internal/api/tryon"
	contextPkg "TryOnService/pkg/context"
	"TryOnService/pkg/handlerUtil"
	"TryOnService/pkg/log"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

func (h *TryOnHandler) Estimate(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req tryon.EstimateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, fiber.NewError(fiber.StatusBadRequest, err.Error()), ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.tryonService.Estimate(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "estimate")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"detected":   res.Detected,
		"misses":     res.Misses,
	}).Debug("Estimated overlay transform")

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *TryOnHandler) Presets(ctx *fiber.Ctx) error {
	return handlerUtil.New(h.log).HandleSuccess(ctx, fiber.StatusOK, h.tryonService.Presets())
}

package tryonHandler

import (
	"TryOnService/internal/api/tryon"
	contextPkg "TryOnService/pkg/context"
	"TryOnService/pkg/handlerUtil"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

func (h *TryOnHandler) GetProfile(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	productID := ctx.Params("productId")
	if err := h.validator.Var(productID, "required,max=64"); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	profile, err := h.tryonService.Profile(c, productID)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_profile")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, tryon.ProfileResponse{Data: *profile})
}

func (h *TryOnHandler) ListProfiles(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 5*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	page := ctx.QueryInt("page", 1)
	limit := ctx.QueryInt("limit", 20)

	profiles, err := h.tryonService.ListProfiles(c, page, limit)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "list_profiles")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, tryon.ProfileListResponse{
		Data:  profiles,
		Page:  page,
		Limit: limit,
	})
}

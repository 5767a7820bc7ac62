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

func (h *TryOnHandler) NormalizeAsset(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req tryon.NormalizeAssetRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, fiber.NewError(fiber.StatusBadRequest, err.Error()), ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	asset, err := h.tryonService.LoadAsset(c, req.ModelURL)
	if err != nil {
		if c.Err() == context.DeadlineExceeded {
			return errHandler.HandleRequestTimeout(ctx)
		}
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "normalize_asset")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, tryon.AssetResponse{Data: *asset})
}

func (h *TryOnHandler) UploadAsset(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 60*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	file, err := ctx.FormFile("model")
	if err != nil {
		return errHandler.Handle(ctx, requestID, tryon.ErrInvalidFileType, ctx.Path(), "read_form_file")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"file_name":  file.Filename,
		"file_size":  file.Size,
	}).Debug("Processing model upload")

	asset, err := h.tryonService.UploadAsset(c, file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "upload_asset")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusCreated, tryon.AssetResponse{Data: *asset})
}

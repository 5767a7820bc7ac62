package handlerUtil

import (
	"TryOnService/internal/api/tryon"
	"TryOnService/pkg/log"
	"TryOnService/pkg/response"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Code returns the machine readable code reported for err, shared by HTTP
// responses and websocket status messages.
func Code(err error) string {
	switch {
	case errors.Is(err, tryon.ErrMissingModelURL):
		return "MISSING_MODEL_URL"
	case errors.Is(err, tryon.ErrInvalidModelURL):
		return "INVALID_MODEL_URL"
	case errors.Is(err, tryon.ErrInvalidDefaultScale):
		return "INVALID_DEFAULT_SCALE"
	case errors.Is(err, tryon.ErrInvalidSize):
		return "INVALID_SIZE"
	case errors.Is(err, tryon.ErrInvalidMessage):
		return "INVALID_MESSAGE"
	case errors.Is(err, tryon.ErrAssetLoad):
		return "ASSET_LOAD_FAILED"
	case errors.Is(err, tryon.ErrAssetTooLarge), errors.Is(err, tryon.ErrFileTooLarge):
		return "ASSET_TOO_LARGE"
	case errors.Is(err, tryon.ErrInvalidFileType):
		return "INVALID_FILE_TYPE"
	case errors.Is(err, tryon.ErrFailedToUpload):
		return "UPLOAD_FAILED"
	case errors.Is(err, tryon.ErrProfileNotFound):
		return "PROFILE_NOT_FOUND"
	case errors.Is(err, tryon.ErrProfileUnavailable), errors.Is(err, tryon.ErrStorageUnavailable):
		return "DEPENDENCY_UNAVAILABLE"
	case errors.Is(err, tryon.ErrDetectorUnavailable):
		return "DETECTOR_UNAVAILABLE"
	case errors.Is(err, tryon.ErrSessionClosed):
		return "SESSION_CLOSED"
	default:
		return "INTERNAL_ERROR"
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields := log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}
		if respErr.Code >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("Operation failed with error response")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}
		return c.Status(respErr.Code).JSON(ErrorResponse{
			Error: err.Error(),
			Code:  Code(err),
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Request rejected")
		return c.Status(fiberErr.Code).JSON(ErrorResponse{
			Error: fiberErr.Message,
			Code:  "BAD_REQUEST",
		})
	}

	traceID := log.ErrorWithTraceID(h.logger, log.Fields{
		log.RequestIDKey: requestID,
		"error":          err.Error(),
		"path":           path,
		"operation":      operation,
	}, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "An unexpected error occurred",
		Code:    "INTERNAL_ERROR",
		TraceID: traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error: "Validation failed: " + err.Error(),
		Code:  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Error: utils.StatusMessage(fiber.StatusRequestTimeout),
		Code:  "REQUEST_TIMEOUT",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}

package middleware

import (
	"TryOnService/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewUploadRateLimiter(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	NewLoggingMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

type Options struct {
	Rate        rate.Limit
	Burst       int
	UploadRate  rate.Limit
	UploadBurst int
}

func DefaultOptions() Options {
	return Options{
		Rate:        50,
		Burst:       100,
		UploadRate:  0.2,
		UploadBurst: 3,
	}
}

type middleware struct {
	rateLimitter        *rateLimiter
	uploadLimitter      *rateLimiter
	loggingMiddleware   *loggingMiddleware
	requestIDMiddleware fiber.Handler
	log                 *logrus.Logger
}

func New(logger *logrus.Logger, utils utils.IUtils, opts Options) Middleware {
	return &middleware{
		rateLimitter:        newRateLimiter(opts.Rate, opts.Burst),
		uploadLimitter:      newRateLimiter(opts.UploadRate, opts.UploadBurst),
		loggingMiddleware:   newLoggingMiddleware(logger),
		requestIDMiddleware: newRequestIDMiddleware(utils),
		log:                 logger,
	}
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	requestID, ok := ctx.Locals(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

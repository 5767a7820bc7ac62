package tryonHandler

import (
	tryonService "TryOnService/internal/api/tryon/service"
	"TryOnService/internal/middleware"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	localsSessionQuery = "tryon_session_query"
	localsQueryError   = "tryon_query_error"
	localsRequestID    = "tryon_request_id"
)

type SocketOptions struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	OpenTimeout    time.Duration
	MaxMessageSize int64
}

func DefaultSocketOptions() SocketOptions {
	return SocketOptions{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   25 * time.Second,
		OpenTimeout:    30 * time.Second,
		MaxMessageSize: 4 << 20,
	}
}

type TryOnHandler struct {
	log          *logrus.Logger
	validator    *validator.Validate
	middleware   middleware.Middleware
	tryonService tryonService.ITryOnService
	socket       SocketOptions
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ts tryonService.ITryOnService,
	socket SocketOptions,
) *TryOnHandler {
	return &TryOnHandler{
		tryonService: ts,
		log:          log,
		validator:    validator,
		middleware:   middleware,
		socket:       socket,
	}
}

func (h *TryOnHandler) Start(srv fiber.Router) {
	tryon := srv.Group("/tryon")

	tryon.Use("/ws", h.upgradeSession)
	tryon.Get("/ws", websocket.New(h.handleSession, websocket.Config{
		ReadBufferSize:  16 << 10,
		WriteBufferSize: 4 << 10,
	}))

	tryon.Post("/estimate", h.middleware.NewRateLimiter, h.Estimate)
	tryon.Get("/presets", h.Presets)

	tryon.Post("/assets/normalize", h.middleware.NewRateLimiter, h.NormalizeAsset)
	tryon.Post("/assets", h.middleware.NewUploadRateLimiter, h.UploadAsset)

	tryon.Get("/profiles", h.middleware.NewRateLimiter, h.ListProfiles)
	tryon.Get("/profiles/:productId", h.middleware.NewRateLimiter, h.GetProfile)
}

package config

import (
	"TryOnService/database/postgres"
	tryonHandler "TryOnService/internal/api/tryon/handler"
	tryonRepository "TryOnService/internal/api/tryon/repository"
	tryonService "TryOnService/internal/api/tryon/service"
	"TryOnService/internal/middleware"
	"TryOnService/pkg/assetsource"
	"TryOnService/pkg/redis"
	"TryOnService/pkg/s3"
	"TryOnService/pkg/utils"
	websocketPkg "TryOnService/pkg/websocket"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine      *fiber.App
	db          *sqlx.DB
	log         *logrus.Logger
	middleware  middleware.Middleware
	validator   *validator.Validate
	utils       utils.IUtils
	handlers    []handler
	redisServer redis.IRedis
	s3Client    s3.ItfS3
	settings    TryOnSettings
	hasSettings bool
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if !server.hasSettings {
		server.settings = DefaultTryOnSettings()
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.New(server.settings.UploadMaxBytes)
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, server.utils, server.settings.Limits)
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

// WithTryOnSettings must come before WithUtils and WithMiddleware, which read it.
func WithTryOnSettings(settings TryOnSettings) ServerOption {
	return func(s *Server) error {
		s.settings = settings
		s.hasSettings = true
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.utils == nil {
			return fmt.Errorf("utils must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, s.utils, s.settings.Limits)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New(s.settings.UploadMaxBytes)
		return nil
	}
}

func (s *Server) RegisterHandler() error {
	// Try-on Domain
	var tryonRepo tryonRepository.Repository
	if s.db != nil {
		tryonRepo = tryonRepository.New(s.db, s.log)
	} else {
		s.log.Warn("No database configured, try-on profiles are disabled")
	}

	fetcher := assetsource.New(s.s3Client, s.settings.Source)
	tryonServices, err := tryonService.NewTryOnService(
		s.log,
		tryonRepo,
		s.redisServer,
		s.s3Client,
		fetcher,
		s.utils,
		websocketPkg.Dial,
		s.settings.Service,
	)
	if err != nil {
		return fmt.Errorf("failed to create try-on service: %w", err)
	}
	tryonHandlers := tryonHandler.New(s.log, s.validator, s.middleware, tryonServices, s.settings.Socket)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, tryonHandlers)
	return nil
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting connections and releases shared clients.
func (s *Server) Shutdown(timeout time.Duration) error {
	var errs []error
	if err := s.engine.ShutdownWithTimeout(timeout); err != nil {
		errs = append(errs, fmt.Errorf("fiber: %w", err))
	}
	if s.redisServer != nil {
		if err := s.redisServer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":  "Server is Healthy!",
			"database": s.db != nil,
			"redis":    s.redisServer != nil,
			"storage":  s.s3Client != nil,
		})
	})
}

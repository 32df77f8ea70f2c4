package server

import (
	"context"
	"log"
	"time"

	"chatsync-be/internal/bootstrap"
	"chatsync-be/internal/config"
	"chatsync-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// Chat sends travel over the websocket, so REST bodies stay small.
const maxBodyBytes = 1 << 20

type Server struct {
	app  *fiber.App
	port string
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "chatsync",
		BodyLimit:             maxBodyBytes,
		IdleTimeout:           2 * time.Minute,
		DisableStartupMessage: cfg.IsProduction(),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsAllowedOrigins,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, OPTIONS",
	}))
	// spans are dropped unless tracing is enabled
	app.Use(otelfiber.Middleware(otelfiber.WithServerName("chatsync")))
	app.Use(serverutils.ErrorHandlerMiddleware())

	api := app.Group("/api")
	api.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(serverutils.SuccessResponse("ok", container.Status()))
	})
	container.ChatController.RegisterRoutes(api, serverutils.NewJwtMiddleware(cfg.Auth.JWTSecret))
	container.RealtimeHandler.RegisterRoutes(api)

	return &Server{app: app, port: cfg.App.Port}
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Run() error {
	log.Printf("chatsync listening on :%s", s.port)
	return s.app.Listen(":" + s.port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

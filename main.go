package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/xeiaaa/charity_backend/config"
	"github.com/xeiaaa/charity_backend/controllers"
	"github.com/xeiaaa/charity_backend/middleware"
	"github.com/xeiaaa/charity_backend/realtime"
	"github.com/xeiaaa/charity_backend/repositories"
	"github.com/xeiaaa/charity_backend/routes"
	"github.com/xeiaaa/charity_backend/services"
)

// CustomValidator is a custom validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates the request body
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

func main() {
	// Load .env file
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	// Initialize Firebase (push delivery stays disabled when unconfigured)
	config.InitFirebase()

	// Connect to Redis for cross-node realtime fanout
	rdb := config.ConnectRedis()

	// Connect to database
	client := config.ConnectDB()

	// Channel authorization and the realtime hub
	authorizer := services.NewChannelAuthorizer()
	hub := realtime.NewHub(authorizer, rdb)
	go hub.Run()
	if rdb != nil {
		go hub.RunRedis(context.Background())
	}

	// Create a new Echo instance
	e := echo.New()

	// Initialize custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter()

	// Middleware
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(middleware.GlobalCORS())
	e.Use(rateLimiter.RateLimit())
	e.Use(middleware.SecurityHeaders())

	e.Match([]string{"GET", "HEAD"}, "/", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "OK",
			"message": "Chari-ty notification service is running",
			"version": "1.0",
		})
	})

	e.Match([]string{"GET", "HEAD"}, "/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":   "healthy",
			"database": "connected",
		})
	})

	// Initialize repositories
	notificationRepo := repositories.NewNotificationRepository(client)
	userRepo := repositories.NewUserRepository(client)

	// Initialize services
	notifier := services.NewNotifier(notificationRepo, userRepo, hub, services.NewPushService(), services.NewMailer())

	// Initialize controllers
	channelAuthController := controllers.NewChannelAuthController(authorizer)
	notificationController := controllers.NewNotificationController(notificationRepo, userRepo, notifier)

	routes.SetupRoutes(e, hub, channelAuthController, notificationController)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	e.Logger.Fatal(e.Start(":" + port))
}

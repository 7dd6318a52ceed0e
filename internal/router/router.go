package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"pulsabot/internal/handler"
	"pulsabot/internal/middleware"
)

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, callbackHandler *handler.ProviderCallbackHandler) {
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	// Provider status webhook; the provider calls with either verb.
	e.GET("/webhook", callbackHandler.Handle)
	e.POST("/webhook", callbackHandler.Handle)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}

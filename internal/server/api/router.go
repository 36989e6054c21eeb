package api

import (
	"net/http"

	"vidadmin/internal/server/config"
	"vidadmin/internal/server/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter creates and configures the echo router with all routes and middleware.
func SetupRouter(handler *Handler, accounts *service.AuthService, loginLimiter *RateLimiter, renderer echo.Renderer, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Renderer = renderer

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.BaseURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(Metrics())
	e.Use(SessionLoader(accounts))
	e.Use(RequestLogger())
	e.Use(PageGuard())

	// Health & metrics
	e.GET("/health", handler.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Pages
	e.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/dashboard")
	})
	e.GET("/login", handler.HandleLoginPage)
	e.POST("/login", handler.HandleLoginForm, loginLimiter.Middleware())
	e.POST("/logout", handler.HandleLogoutForm)
	e.GET("/dashboard", handler.HandleDashboard)

	// Auth
	e.POST("/api/auth/login", handler.HandleLogin, loginLimiter.Middleware())
	e.POST("/api/auth/logout", handler.HandleLogout)
	e.GET("/api/auth/session", handler.HandleSession, RequireSession())

	// Seed (unauthenticated bootstrap)
	e.GET("/api/seed", handler.HandleSeed)

	// Videos (session required)
	videos := e.Group("/api", RequireSession())
	videos.POST("/upload", handler.HandleUpload)
	videos.GET("/videos", handler.HandleListVideos)
	videos.DELETE("/videos", handler.HandleDeleteVideo)
	videos.GET("/videos/public-url", handler.HandlePublicURL)
	videos.GET("/config/status", handler.HandleConfigStatus)

	// Local objects
	if cfg.StorageBackend == config.BackendFS {
		e.GET("/media/*", handler.HandleMedia)
	}

	return e
}

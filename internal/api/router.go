package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/velora/commerce-api/docs"
	"github.com/velora/commerce-api/internal/api/handler"
	"github.com/velora/commerce-api/internal/api/middleware"
	"github.com/velora/commerce-api/internal/core/domain"
	"github.com/velora/commerce-api/internal/core/ports"
)

// Deps bundles the wired services the router needs.
type Deps struct {
	Mongo       *mongo.Database
	Redis       *redis.Client
	AuthService ports.AuthService
	Permissions ports.PermissionService
	Authorizer  ports.Authorizer
	Issuer      ports.TokenIssuer
	Log         zerolog.Logger
}

// NewRouter builds the Echo instance with all routes registered. Each
// protected route declares its authorization requirement here, at
// registration: this file is the complete audit surface for who may do what.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("commerce"))

	authn := middleware.Authenticate(deps.Issuer)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/refresh", authHandler.Refresh)
	e.POST("/auth/logout", authHandler.Logout, authn)
	e.POST("/auth/forgot-password", authHandler.ForgotPassword)
	e.POST("/auth/reset-password", authHandler.ResetPassword)

	// --- Role management (admin:role or better) ---
	roleHandler := handler.NewRoleHandler(deps.Permissions)
	roles := e.Group("/roles", authn,
		middleware.RequireLevel(deps.Authorizer, "role", "admin"))
	roles.GET("/:id/permissions", roleHandler.GetPermissions)
	roles.POST("/:id/permissions", roleHandler.AddPermission)
	roles.PUT("/:id/permissions", roleHandler.SetPermissions)
	roles.DELETE("/:id/permissions", roleHandler.RemovePermission)
	roles.POST("/permissions/invalidate", roleHandler.InvalidateAll,
		middleware.RequireAllOf(deps.Authorizer,
			domain.FormatPermission("admin", "role"),
			domain.FormatPermission("admin", "cache")))

	// --- Observability ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	return e
}

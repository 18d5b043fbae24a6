package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerdbug/user-service/internal/auth"
	"github.com/nerdbug/user-service/internal/domain"
	"github.com/nerdbug/user-service/internal/service"
	"github.com/nerdbug/user-service/pkg/health"
	"github.com/nerdbug/user-service/pkg/middleware"
)

// RouterConfig carries the router-level settings.
type RouterConfig struct {
	ServiceName       string
	CORS              CORSConfig
	PprofAllowedCIDRs []string
	TracingEnabled    bool
}

// NewRouter creates a chi router with all service routes registered.
func NewRouter(
	userService *service.UserService,
	jwtManager *auth.JWTManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	r.Use(CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	if cfg.TracingEnabled {
		r.Use(middleware.Tracing(cfg.ServiceName))
	}

	// Operational endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if len(cfg.PprofAllowedCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)
	}

	// Bridge the internal JWT manager to the shared auth middleware.
	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := jwtManager.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{
			UserID:    claims.UserID,
			Email:     claims.Email,
			Username:  claims.Username,
			Role:      claims.Role,
			FirstName: claims.FirstName,
			LastName:  claims.LastName,
		}, nil
	}

	authHandler := NewAuthHandler(userService, logger)
	userHandler := NewUserHandler(userService, logger)
	adminHandler := NewAdminHandler(userService, logger)

	// Public endpoints
	r.Group(func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// Self-service endpoints (any authenticated user)
	r.Route("/users/me", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))

		r.Get("/", userHandler.Me)
		r.Put("/", userHandler.UpdateMe)
		r.Put("/password", userHandler.ChangePassword)
		r.Delete("/", userHandler.DeleteMe)
	})

	// Admin endpoints
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))
		r.Use(middleware.RequireRole(domain.RoleAdmin))

		r.Get("/", adminHandler.ListUsers)
		r.Get("/{id}", adminHandler.GetUser)
		r.Put("/{id}", adminHandler.UpdateUser)
		r.Delete("/{id}", adminHandler.DeleteUser)
	})

	return r
}

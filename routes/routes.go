package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/authd/app"
	"github.com/upb/authd/config"
	"github.com/upb/authd/middleware"
	"github.com/upb/authd/models"
	"github.com/upb/authd/utils"
)

var (
	readRoles   = []string{models.RoleAuthAdmin, models.RoleAuthManager, models.RoleAuthStaff}
	manageRoles = []string{models.RoleAuthAdmin, models.RoleAuthManager}
	adminRoles  = []string{models.RoleAuthAdmin}
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.TrustedRealIP(deps.Config.Server.TrustedProxies))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(deps.Config.Server.RequestTimeout))
	r.Use(deps.Metrics.Instrument)
	r.Use(middleware.RequestMeta)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)
	if deps.Metrics != nil && MetricsInline(deps.Config) {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	auth := deps.AuthMiddleware

	// Credential endpoints
	r.Route("/auth/v1", func(r chi.Router) {
		r.With(deps.ThrottleMiddleware.Limit).Post("/sign_in", deps.AuthHandler.HandleSignIn)
		r.Post("/sign_up", deps.AuthHandler.HandleSignUp)
	})

	// Token introspection for other services
	r.Route("/srv/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/validate", deps.AuthHandler.HandleValidate)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.RequireAuth)

		// User management
		r.Route("/users", func(r chi.Router) {
			r.Get("/me", deps.UserHandler.HandleCurrentUser)
			r.With(auth.RequireAnyRole(manageRoles...)).Post("/", deps.UserHandler.HandleCreateUser)
			r.With(auth.RequireAnyRole(readRoles...)).Get("/{id}", deps.UserHandler.HandleGetUser)
			r.With(auth.RequireAnyRole(adminRoles...)).Delete("/{id}", deps.UserHandler.HandleDisableUser)
		})

		// Permission management
		r.Route("/permissions", func(r chi.Router) {
			r.With(auth.RequireAnyRole(readRoles...)).Get("/", deps.PermissionHandler.HandleListPermissions)
			r.With(auth.RequireAnyRole(manageRoles...)).Post("/", deps.PermissionHandler.HandleCreatePermission)
			r.With(auth.RequireAnyRole(readRoles...)).Get("/{id}", deps.PermissionHandler.HandleGetPermission)
			r.With(auth.RequireAnyRole(manageRoles...)).Delete("/{id}", deps.PermissionHandler.HandleDisablePermission)
		})

		// Group management and bindings
		r.Route("/groups", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAnyRole(readRoles...))
				r.Get("/", deps.GroupHandler.HandleListGroups)
				r.Get("/{id}", deps.GroupHandler.HandleGetGroup)
				r.Get("/{id}/permissions", deps.GroupHandler.HandleListGroupPermissions)
				r.Get("/{id}/members", deps.GroupHandler.HandleListGroupMembers)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAnyRole(manageRoles...))
				r.Post("/", deps.GroupHandler.HandleCreateGroup)
				r.Delete("/{id}", deps.GroupHandler.HandleDisableGroup)
				r.Put("/bind_permission", deps.GroupHandler.HandleBindPermission)
				r.Put("/{group_id}/unbind_permission/{permission_id}", deps.GroupHandler.HandleUnbindPermission)
				r.Put("/bind_member", deps.GroupHandler.HandleBindMember)
				r.Put("/{group_id}/unbind_member/{user_id}", deps.GroupHandler.HandleUnbindMember)
			})
		})

		// Audit logs (require admin role)
		r.Route("/audit", func(r chi.Router) {
			r.Use(auth.RequireAnyRole(adminRoles...))
			r.Get("/logs", deps.AuditHandler.HandleListAuditLogs)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

// MetricsInline reports whether /metrics shares the API listener
func MetricsInline(cfg *config.Config) bool {
	port := cfg.Observability.MetricsPort
	return port == 0 || port == cfg.Server.Port
}

// SetupMetricsRoutes returns the handler for the dedicated metrics listener
func SetupMetricsRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Handle("/metrics", deps.Metrics.Handler())
	return r
}

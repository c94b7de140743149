package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/chitfund-crm/internal/access"
	"github.com/frahmantamala/chitfund-crm/internal/auth"
	"github.com/frahmantamala/chitfund-crm/internal/core/permission"
	"github.com/frahmantamala/chitfund-crm/internal/role"
	"github.com/frahmantamala/chitfund-crm/internal/transport/middleware"
	"github.com/frahmantamala/chitfund-crm/internal/transport/swagger"
	"github.com/frahmantamala/chitfund-crm/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Navigation entities guarding the administration API.
const (
	RolesEntity = "administration-roles"
	UsersEntity = "administration-users"
)

type Handlers struct {
	Health *HealthHandler
	Auth   *auth.Handler
	RBAC   *auth.RBACAuthorization
	Users  *user.Handler
	Roles  *role.Handler
	Access *access.Handler

	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
	OpenAPI     []byte
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, allowedOrigins string, logger *slog.Logger) {
	// Apply global middleware
	router.Use(middleware.CORS(allowedOrigins))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(h.OpenAPI)
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	if h.Metrics != nil {
		router.Handle(h.MetricsPath, h.Metrics)
	}

	// Mount API under /api/v1 to match the OpenAPI server url
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		r.With(h.Auth.OptionalAuth).Get("/access/route", h.Access.CheckRoute)

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/me/access", h.Access.GetAccess)
			pr.Get("/me/navigation", h.Access.GetNavigation)
			pr.Get("/me/access/events", h.Access.StreamEvents)
			pr.Get("/users/me", h.Users.GetCurrentUser)

			pr.Route("/users", func(ur chi.Router) {
				ur.With(h.RBAC.RequireView(UsersEntity)).Get("/", h.Users.ListUsers)
				ur.With(h.RBAC.Require(UsersEntity, permission.ActionCreate)).Post("/", h.Users.CreateUser)
				ur.With(h.RBAC.RequireView(UsersEntity)).Get("/{id}", h.Users.GetUser)

				ur.Group(func(er chi.Router) {
					er.Use(h.RBAC.Require(UsersEntity, permission.ActionEdit))
					er.Put("/{id}/role", h.Users.AssignRole)
					er.Put("/{id}/permissions", h.Users.SetDirectPermissions)
					er.Delete("/{id}/permissions", h.Users.ClearDirectPermissions)
				})
			})

			pr.Route("/roles", func(rr chi.Router) {
				rr.Group(func(vr chi.Router) {
					vr.Use(h.RBAC.RequireView(RolesEntity))
					vr.Get("/", h.Roles.ListRoles)
					vr.Get("/export", h.Roles.ExportRoles)
					vr.Get("/{id}", h.Roles.GetRole)
				})

				rr.With(h.RBAC.Require(RolesEntity, permission.ActionCreate)).Post("/", h.Roles.CreateRole)
				rr.With(h.RBAC.Require(RolesEntity, permission.ActionDelete)).Delete("/{id}", h.Roles.DeleteRole)

				rr.Group(func(er chi.Router) {
					er.Use(h.RBAC.Require(RolesEntity, permission.ActionEdit))
					er.Put("/{id}", h.Roles.UpdateRole)
					er.Patch("/{id}/status", h.Roles.SetRoleStatus)
					er.Post("/{id}/permissions", h.Roles.GrantPermission)
					er.Delete("/{id}/permissions/{permission}", h.Roles.RevokePermission)
				})
			})
		})
	})
}

package api

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/daap14/loyalty/internal/api/handler"
	"github.com/daap14/loyalty/internal/api/middleware"
	"github.com/daap14/loyalty/internal/auth"
	"github.com/daap14/loyalty/internal/customer"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger       handler.DBPinger
	StoreDriver    string
	Version        string
	OpenAPISpec    []byte
	MetricsHandler http.Handler
	Engine         handler.LoyaltyService
	Customers      customer.Directory
	AuthService    *auth.Service
	UserRepo       auth.UserRepository
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.StoreDriver, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	tierHandler := handler.NewTierHandler()
	r.Get("/tiers", tierHandler.List)

	if deps.AuthService == nil {
		return r
	}

	staff := middleware.RequireRole(auth.RoleFrontDesk, auth.RoleManager)
	managerOnly := middleware.RequireRole(auth.RoleManager)

	if deps.Engine != nil && deps.Customers != nil {
		loyaltyHandler := handler.NewLoyaltyHandler(deps.Engine, deps.Customers)

		r.Route("/loyalty", func(r chi.Router) {
			r.Use(middleware.Auth(deps.AuthService))

			r.With(staff).Post("/", loyaltyHandler.Enroll)
			r.With(staff).Get("/", loyaltyHandler.List)
			r.With(staff).Get("/{id}", loyaltyHandler.GetByID)
			r.With(staff).Post("/{id}/points", loyaltyHandler.AddPoints)
			r.With(staff).Post("/{id}/redemptions", loyaltyHandler.Redeem)
			r.With(staff).Post("/{id}/quote", loyaltyHandler.Quote)

			r.With(managerOnly).Put("/{id}/active", loyaltyHandler.SetActive)
			r.With(managerOnly).Patch("/{id}", loyaltyHandler.UpdateNotes)
			r.With(managerOnly).Delete("/{id}", loyaltyHandler.Delete)
		})

		r.With(middleware.Auth(deps.AuthService), staff).
			Get("/customers/{customerId}/loyalty", loyaltyHandler.GetByCustomer)
	}

	if deps.UserRepo != nil {
		userHandler := handler.NewUserHandler(deps.AuthService, deps.UserRepo)
		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.Auth(deps.AuthService))
			r.Use(middleware.RequireSuperuser())
			r.Post("/", userHandler.Create)
			r.Get("/", userHandler.List)
			r.Delete("/{id}", userHandler.Delete)
		})
	}

	return r
}

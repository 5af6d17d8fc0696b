package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sahaj-pos/core/internal/auth"
	"github.com/sahaj-pos/core/internal/config"
	"github.com/sahaj-pos/core/internal/guard"
	"github.com/sahaj-pos/core/internal/handler"
	mw "github.com/sahaj-pos/core/internal/middleware"
	"github.com/sahaj-pos/core/internal/service"
	"github.com/sahaj-pos/core/internal/store"
	"github.com/sahaj-pos/core/internal/ws"
)

// Deps carries the wired collaborators the router needs.
type Deps struct {
	Store     store.Store
	Directory auth.Directory
	Lifecycle *service.LifecycleService
	Tickets   *service.TicketService
	Tables    *service.TableService
	Splits    *service.SplitService
	Guard     guard.Guard
	Hub       *ws.Hub
}

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mw.HeaderTerminalID, mw.HeaderActionID, mw.HeaderConfirmDuplicate},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(d.Directory, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.Dedupe(d.Guard))

		orderHandler := handler.NewOrderHandler(d.Lifecycle, d.Tickets, d.Tables)
		splitHandler := handler.NewSplitHandler(d.Splits)
		r.Route("/orders", func(r chi.Router) {
			orderHandler.RegisterRoutes(r)
			splitHandler.RegisterOrderRoutes(r)
		})

		tableHandler := handler.NewTableHandler(d.Store)
		r.Route("/tables", tableHandler.RegisterRoutes)

		r.Route("/splits", splitHandler.RegisterRoutes)
	})

	return r
}

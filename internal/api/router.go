package api

import (
	"bardchat-backend/internal/config"
	"bardchat-backend/internal/handlers"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler *handlers.AuthHandler
	ChatHandler *handlers.ChatHandlers
	Config      *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Changed-Collections"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		if deps.AuthHandler == nil {
			panic("AuthHandler dependency is nil in router setup")
		}
		r.Post("/signup", deps.AuthHandler.HandleSignup)
		r.Post("/login", deps.AuthHandler.HandleLogin)
	})

	// --- Generated Image Assets ---
	// Served publicly: image paths are random UUIDs, which is how the
	// model's vision endpoint fetches reference images.
	r.Handle("/media/*", http.StripPrefix("/media/",
		http.FileServer(http.Dir(deps.Config.MediaDir))))

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1/chats", func(r chi.Router) {
		if deps.ChatHandler == nil {
			panic("ChatHandler dependency is nil in router setup")
		}
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		// The streaming endpoint holds the connection open for as long as
		// the model keeps producing, so the request timeout only wraps the
		// request/response routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Post("/", deps.ChatHandler.HandleCreateChat)
			r.Get("/", deps.ChatHandler.HandleListChats)
			r.Get("/{chatID}", deps.ChatHandler.HandleGetChat)
			r.Post("/{chatID}/classify", deps.ChatHandler.HandleClassify)
		})

		r.Post("/{chatID}/messages", deps.ChatHandler.HandleStreamMessage)
		// Image generation chains two model calls plus an asset download, so
		// it gets a wider window than the other request/response routes.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Minute))
			r.Post("/{chatID}/image", deps.ChatHandler.HandleGenerateImage)
		})
	})

	return r
}

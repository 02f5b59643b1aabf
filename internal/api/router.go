package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/go-marks/internal/api/handlers"
	"github.com/hugh/go-marks/internal/api/middleware"
	"github.com/hugh/go-marks/internal/auth"
	"github.com/hugh/go-marks/internal/scope"
	"github.com/hugh/go-marks/internal/storage"
	"github.com/hugh/go-marks/pkg/crypto"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Logger      *slog.Logger
	JWTService  *auth.JWTService
	AuthService *auth.Service
	Encryptor   *crypto.Encryptor

	// Queue and Blobs may be nil: metadata fetches and uploads are off then.
	Queue          handlers.MetadataQueue
	Blobs          storage.BlobStore
	MaxUploadBytes int64

	CSRFStore      *middleware.CSRFStore
	SecureCookies  bool
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", "X-CSRF-Token",
			"X-Auth-Token", middleware.ActiveCompanyHeader,
		},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Cookie sessions need a CSRF token; header-authenticated clients skip it.
	if cfg.CSRFStore != nil {
		r.Use(middleware.CSRF(cfg.CSRFStore))
	}

	resolver := scope.NewResolver(scope.NewStore(cfg.DB), cfg.Logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.JWTService, cfg.Logger, cfg.SecureCookies)
	companyHandler := handlers.NewCompanyHandler(cfg.DB, cfg.Logger, cfg.SecureCookies)
	bookmarkHandler := handlers.NewBookmarkHandler(cfg.DB, cfg.Queue, cfg.Blobs, cfg.Logger)
	categoryHandler := handlers.NewCategoryHandler(cfg.DB, cfg.Logger)
	tagHandler := handlers.NewTagHandler(cfg.DB, cfg.Logger)
	toolHandler := handlers.NewToolHandler(cfg.DB, cfg.Blobs, cfg.MaxUploadBytes, cfg.Logger)
	shareHandler := handlers.NewShareHandler(cfg.DB, cfg.Logger)
	notificationHandler := handlers.NewNotificationHandler(cfg.DB, cfg.Encryptor, cfg.Logger)
	analyticsHandler := handlers.NewAnalyticsHandler(cfg.DB, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			r.Use(middleware.Scope(resolver))

			r.Get("/me", authHandler.Me)

			r.Route("/companies", func(r chi.Router) {
				r.Get("/", companyHandler.List)
				r.Post("/", companyHandler.Create)
				r.Post("/active", companyHandler.SetActive)
				r.Get("/{id}", companyHandler.Get)
				r.Patch("/{id}", companyHandler.Update)
				r.Delete("/{id}", companyHandler.Delete)
			})

			r.Route("/bookmarks", func(r chi.Router) {
				r.Get("/", bookmarkHandler.List)
				r.Post("/", bookmarkHandler.Create)
				r.Get("/{id}", bookmarkHandler.Get)
				r.Patch("/{id}", bookmarkHandler.Update)
				r.Delete("/{id}", bookmarkHandler.Delete)
				r.Put("/{id}/tags", bookmarkHandler.ReplaceTags)
				r.Put("/{id}/categories", bookmarkHandler.ReplaceCategories)
				r.Post("/{id}/engagement", bookmarkHandler.RecordEngagement)
				r.Post("/{id}/refresh", bookmarkHandler.Refresh)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", categoryHandler.List)
				r.Post("/", categoryHandler.Create)
				r.Get("/{id}", categoryHandler.Get)
				r.Patch("/{id}", categoryHandler.Update)
				r.Delete("/{id}", categoryHandler.Delete)
			})

			r.Route("/folders", func(r chi.Router) {
				r.Get("/", categoryHandler.ListFolders)
				r.Post("/", categoryHandler.CreateFolder)
				r.Patch("/{id}", categoryHandler.UpdateFolder)
				r.Delete("/{id}", categoryHandler.DeleteFolder)
			})

			r.Route("/tags", func(r chi.Router) {
				r.Get("/", tagHandler.List)
				r.Post("/", tagHandler.Create)
				r.Patch("/{id}", tagHandler.Update)
				r.Delete("/{id}", tagHandler.Delete)
			})

			// Per-bookmark tools
			tools := []struct {
				path                         string
				list, create, update, remove http.HandlerFunc
				extra                        func(chi.Router)
			}{
				{"/notes", toolHandler.ListNotes, toolHandler.CreateNote, toolHandler.UpdateNote, toolHandler.DeleteNote, nil},
				{"/todos", toolHandler.ListTodos, toolHandler.CreateTodo, toolHandler.UpdateTodo, toolHandler.DeleteTodo, nil},
				{"/tasklists", toolHandler.ListTaskLists, toolHandler.CreateTaskList, toolHandler.UpdateTaskList, toolHandler.DeleteTaskList, nil},
				{"/habits", toolHandler.ListHabits, toolHandler.CreateHabit, toolHandler.UpdateHabit, toolHandler.DeleteHabit, func(r chi.Router) {
					r.Get("/{id}/checkins", toolHandler.ListCheckIns)
					r.Post("/{id}/checkins", toolHandler.CheckIn)
				}},
				{"/highlights", toolHandler.ListHighlights, toolHandler.CreateHighlight, toolHandler.UpdateHighlight, toolHandler.DeleteHighlight, nil},
				{"/comments", toolHandler.ListComments, toolHandler.CreateComment, toolHandler.UpdateComment, toolHandler.DeleteComment, nil},
				{"/media", toolHandler.ListMedia, toolHandler.CreateMedia, toolHandler.UpdateMedia, toolHandler.DeleteMedia, nil},
				{"/snippets", toolHandler.ListSnippets, toolHandler.CreateSnippet, toolHandler.UpdateSnippet, toolHandler.DeleteSnippet, nil},
			}
			for _, t := range tools {
				r.Route(t.path+"/{bookmarkID}", func(r chi.Router) {
					r.Get("/", t.list)
					r.Post("/", t.create)
					r.Patch("/{id}", t.update)
					r.Delete("/{id}", t.remove)
					if t.extra != nil {
						t.extra(r)
					}
				})
			}

			r.Route("/shares", func(r chi.Router) {
				r.Get("/", shareHandler.List)
				r.Post("/", shareHandler.Create)
				r.Get("/received", shareHandler.Received)
				r.Patch("/{id}", shareHandler.Update)
				r.Delete("/{id}", shareHandler.Delete)
			})

			r.Route("/shared/{bookmarkID}", func(r chi.Router) {
				r.Get("/", shareHandler.GetShared)
				r.Patch("/", shareHandler.UpdateShared)
				r.Get("/comments", shareHandler.ListSharedComments)
				r.Post("/comments", shareHandler.CreateSharedComment)
				r.Patch("/comments/{id}", shareHandler.UpdateSharedComment)
				r.Delete("/comments/{id}", shareHandler.DeleteSharedComment)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Post("/", notificationHandler.Create)
				r.Get("/history", notificationHandler.History)
				r.Get("/{id}", notificationHandler.Get)
				r.Patch("/{id}", notificationHandler.Update)
				r.Delete("/{id}", notificationHandler.Delete)
				r.Post("/{id}/trigger", notificationHandler.Trigger)
				r.Get("/{id}/history", notificationHandler.History)
			})

			r.Get("/analytics/summary", analyticsHandler.Summary)
		})
	})

	return &Router{r}
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"assistantmemory/internal/services"
	"assistantmemory/internal/storage"
)

// Handlers groups the API handlers sharing one store
type Handlers struct {
	Auth        *AuthHandler
	Contexts    *ContextHandler
	Tasks       *TaskHandler
	Preferences *UserPreferencesHandler
	Data        *DataHandler
	Health      *HealthHandler
}

// Services are the domain services behind the handlers
type Services struct {
	Auth        *services.AuthService
	Contexts    *services.ContextService
	Tasks       *services.TaskService
	Preferences *services.PreferenceService
	Data        *services.DataService
}

// New builds every handler over the given services. The store is only used
// for health checks.
func New(store storage.Store, svc Services, environment string) *Handlers {
	return &Handlers{
		Auth:        NewAuthHandler(svc.Auth),
		Contexts:    NewContextHandler(svc.Contexts),
		Tasks:       NewTaskHandler(svc.Tasks),
		Preferences: NewUserPreferencesHandler(svc.Preferences),
		Data:        NewDataHandler(svc.Data),
		Health:      NewHealthHandler(store, environment),
	}
}

// Mount registers the versioned API on v1. authRequired guards every route
// except registration and login, which pass through authLimiter instead.
func (h *Handlers) Mount(v1 fiber.Router, authRequired, authLimiter fiber.Handler) {
	v1.Get("/health", h.Health.Handle)

	authGroup := v1.Group("/auth")
	authGroup.Post("/register", authLimiter, h.Auth.Register)
	authGroup.Post("/login", authLimiter, h.Auth.Login)
	authGroup.Get("/me", authRequired, h.Auth.Me)

	contexts := v1.Group("/contexts", authRequired)
	contexts.Post("/", h.Contexts.Create)
	contexts.Get("/", h.Contexts.List)
	contexts.Get("/:contextId", h.Contexts.Get)
	contexts.Put("/:contextId", h.Contexts.Update)
	contexts.Delete("/:contextId", h.Contexts.Delete)

	tasks := v1.Group("/tasks", authRequired)
	tasks.Post("/", h.Tasks.Create)
	tasks.Get("/", h.Tasks.List)
	tasks.Get("/:taskId", h.Tasks.Get)
	tasks.Put("/:taskId", h.Tasks.Update)
	tasks.Delete("/:taskId", h.Tasks.Delete)

	prefs := v1.Group("/preferences", authRequired)
	prefs.Get("/", h.Preferences.Get)
	prefs.Put("/", h.Preferences.Update)
	prefs.Get("/:key", h.Preferences.GetKey)

	data := v1.Group("/data", authRequired)
	data.Post("/", h.Data.Create)
	data.Get("/", h.Data.List)
	data.Get("/:dataId", h.Data.Get)
	data.Put("/:dataId", h.Data.Update)
	data.Delete("/:dataId", h.Data.Delete)
}

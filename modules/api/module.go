package api

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	cachemod "github.com/example/task-tracker-api/modules/cache"
	"github.com/example/task-tracker-api/modules/store"
	"github.com/example/task-tracker-api/modules/tracker"
)

// Module exposes the REST surface over the tracker services.
type Module struct {
	app           *fiber.App
	trackerModule *tracker.Module
	cacheModule   *cachemod.Module
	port          int
}

var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new API module.
func NewModule(port int) *Module {
	return &Module{port: port}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// SetTracker sets the tracker module dependency.
func (m *Module) SetTracker(tm *tracker.Module) {
	m.trackerModule = tm
}

// SetCache sets the optional cache module dependency, enabling the cache
// statistics endpoints.
func (m *Module) SetCache(cm *cachemod.Module) {
	m.cacheModule = cm
}

// Start builds the fiber app and begins serving.
func (m *Module) Start(_ context.Context) error {
	if m.trackerModule == nil {
		return fmt.Errorf("tracker module not set")
	}
	users := m.trackerModule.Users()
	tasks := m.trackerModule.Tasks()
	if users == nil || tasks == nil {
		return fmt.Errorf("tracker services not available")
	}

	m.app = NewApp(users, tasks, m.cacheModule)

	go func() {
		addr := fmt.Sprintf(":%d", m.port)
		log.Printf("[api] Starting HTTP server on %s", addr)
		if err := m.app.Listen(addr); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts down the HTTP server gracefully.
func (m *Module) Stop(_ context.Context) error {
	if m.app != nil {
		log.Println("[api] Shutting down HTTP server...")
		return m.app.Shutdown()
	}
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{"port": m.port},
	}
}

// App returns the fiber app, nil before Start. Exposed for tests.
func (m *Module) App() *fiber.App {
	return m.app
}

// NewApp assembles the fiber application and its routes. Separated from the
// module lifecycle so tests can drive it via app.Test.
func NewApp(users *tracker.UserService, tasks *tracker.TaskService, cacheModule *cachemod.Module) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Task Tracker API",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())

	h := &handlers{users: users, tasks: tasks}

	app.Get("/health", h.health)

	app.Get("/users", h.listUsers)
	app.Post("/users", h.createUser)
	app.Get("/users/:id", h.getUser)
	app.Put("/users/:id", h.replaceUser)
	app.Delete("/users/:id", h.deleteUser)

	app.Get("/tasks", h.listTasks)
	app.Post("/tasks", h.createTask)
	app.Get("/tasks/:id", h.getTask)
	app.Put("/tasks/:id", h.replaceTask)
	app.Delete("/tasks/:id", h.deleteTask)

	if cacheModule != nil {
		app.Get("/cache/stats", func(c *fiber.Ctx) error {
			return respond(c, fiber.StatusOK, "OK", cacheModule.Cache().Snapshot())
		})
		app.Post("/cache/stats/reset", func(c *fiber.Ctx) error {
			cacheModule.Cache().Reset()
			return respond(c, fiber.StatusOK, "OK", fiber.Map{"reset": true})
		})
	}
	return app
}

// handlers holds the services the endpoints orchestrate.
type handlers struct {
	users *tracker.UserService
	tasks *tracker.TaskService
}

func (h *handlers) health(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, "OK", fiber.Map{"status": "healthy"})
}

func respond(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{Message: message, Data: data})
}

// fail logs the error and translates it to the response envelope per the
// error taxonomy.
func fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	log.Printf("[api] %s %s -> %d: %v", c.Method(), c.Path(), status, err)
	return respond(c, status, statusMessage(status), fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var parseErr *store.ParseError
	var validationErr *tracker.ValidationError
	var refErr *tracker.ReferenceError
	switch {
	case errors.As(err, &parseErr),
		errors.As(err, &validationErr),
		errors.As(err, &refErr),
		errors.Is(err, store.ErrInvalidID):
		return fiber.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func statusMessage(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "Bad Request"
	case fiber.StatusNotFound:
		return "Not Found"
	default:
		return "Internal Server Error"
	}
}

// errorHandler catches errors escaping the handlers (routing errors,
// panics surfaced by recover).
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return respond(c, code, message, fiber.Map{"error": err.Error()})
}

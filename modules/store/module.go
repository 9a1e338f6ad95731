package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Store drivers selectable via configuration.
const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

const connectTimeout = 10 * time.Second

// Config holds store module configuration.
type Config struct {
	Driver   string
	MongoURI string
	Database string
}

// Module owns the document-store connection and hands out the users and
// tasks collections.
type Module struct {
	cfg    Config
	client *mongo.Client
	users  Collection
	tasks  Collection
}

var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new store module.
func NewModule(cfg Config) *Module {
	return &Module{cfg: cfg}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "store"
}

// Start connects the configured driver and prepares the collections.
func (m *Module) Start(ctx context.Context) error {
	switch m.cfg.Driver {
	case DriverMemory:
		m.users = NewMemoryCollection()
		m.tasks = NewMemoryCollection()
		log.Println("[store] Using in-memory collections")
		return nil
	case DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(m.cfg.MongoURI))
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			return fmt.Errorf("failed to ping MongoDB: %w", err)
		}

		db := client.Database(m.cfg.Database)
		m.client = client
		m.users = NewMongoCollection(db.Collection("users"))
		m.tasks = NewMongoCollection(db.Collection("tasks"))
		log.Printf("[store] Connected to MongoDB (database: %s)", m.cfg.Database)
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", m.cfg.Driver)
	}
}

// Stop disconnects the store client.
func (m *Module) Stop(ctx context.Context) error {
	if m.client != nil {
		if err := m.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
		}
	}
	log.Println("[store] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.users == nil || m.tasks == nil {
		return mono.HealthStatus{Healthy: false, Message: "store not initialized"}
	}
	if m.client != nil {
		if err := m.client.Ping(ctx, readpref.Primary()); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("mongo ping failed: %v", err),
			}
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"driver": m.cfg.Driver},
	}
}

// Users returns the users collection.
func (m *Module) Users() Collection {
	return m.users
}

// Tasks returns the tasks collection.
func (m *Module) Tasks() Collection {
	return m.tasks
}

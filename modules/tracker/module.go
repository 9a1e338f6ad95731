package tracker

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"

	cachemod "github.com/example/task-tracker-api/modules/cache"
	"github.com/example/task-tracker-api/modules/store"
)

// Module wires the synchronizer and the two entity services over the store
// module's collections.
type Module struct {
	storeModule *store.Module
	cacheModule *cachemod.Module

	sync  *Synchronizer
	users *UserService
	tasks *TaskService
}

var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new tracker module.
func NewModule() *Module {
	return &Module{}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "tracker"
}

// SetStore sets the store module dependency.
func (m *Module) SetStore(sm *store.Module) {
	m.storeModule = sm
}

// SetCache sets the optional cache module dependency.
func (m *Module) SetCache(cm *cachemod.Module) {
	m.cacheModule = cm
}

// Start builds the services. The store module must have started first so
// its collections exist; registration order in main guarantees that.
func (m *Module) Start(_ context.Context) error {
	if m.storeModule == nil {
		return fmt.Errorf("store module not set")
	}
	users := m.storeModule.Users()
	tasks := m.storeModule.Tasks()
	if users == nil || tasks == nil {
		return fmt.Errorf("store collections not initialized")
	}

	var c *cachemod.Cache
	if m.cacheModule != nil {
		c = m.cacheModule.Cache()
	}

	m.sync = NewSynchronizer(users, tasks)
	m.users = NewUserService(users, m.sync, c)
	m.tasks = NewTaskService(tasks, m.sync, c)

	if c == nil {
		log.Println("[tracker] Module started (cache disabled)")
	} else {
		log.Println("[tracker] Module started")
	}
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[tracker] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.users == nil || m.tasks == nil {
		return mono.HealthStatus{Healthy: false, Message: "services not initialized"}
	}
	return mono.HealthStatus{Healthy: true, Message: "operational"}
}

// Users returns the user service.
func (m *Module) Users() *UserService {
	return m.users
}

// Tasks returns the task service.
func (m *Module) Tasks() *TaskService {
	return m.tasks
}

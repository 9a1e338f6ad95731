package tracker

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	taskdomain "github.com/example/task-tracker-api/domain/task"
	"github.com/example/task-tracker-api/modules/cache"
	"github.com/example/task-tracker-api/modules/store"
)

// DefaultListLimit caps task listings when no limit parameter is supplied.
// User listings carry no default cap.
const DefaultListLimit int64 = 100

// TaskService orchestrates task endpoints.
type TaskService struct {
	tasks store.Collection
	sync  *Synchronizer
	cache *cache.Cache
}

// NewTaskService creates a task service. c may be nil to run uncached.
func NewTaskService(tasks store.Collection, sync *Synchronizer, c *cache.Cache) *TaskService {
	return &TaskService{tasks: tasks, sync: sync, cache: c}
}

// List executes a translated query against the tasks collection.
func (s *TaskService) List(ctx context.Context, q store.Query) ([]taskdomain.Task, error) {
	out := []taskdomain.Task{}
	if err := s.tasks.Find(ctx, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of tasks matching filter.
func (s *TaskService) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.tasks.Count(ctx, filter)
}

// Get fetches a single task, honoring an optional projection. Unprojected
// fetches go through the cache.
func (s *TaskService) Get(ctx context.Context, hexID string, projection bson.M) (*taskdomain.Task, error) {
	id, err := store.ParseID(hexID)
	if err != nil {
		return nil, err
	}

	var t taskdomain.Task
	if projection == nil && s.cache.Get(ctx, cache.Key(kindTask, hexID), &t) {
		return &t, nil
	}
	if err := s.tasks.FindID(ctx, id, projection, &t); err != nil {
		return nil, err
	}
	if projection == nil {
		s.cacheSet(ctx, cache.Key(kindTask, hexID), &t)
	}
	return &t, nil
}

// Create validates and stores a new task. When the payload names an
// assignee, that user must exist before anything is written; the task id is
// then added to the assignee's pendingTasks. The task is persisted with the
// payload's assignment fields, falling back to the assignee's current name
// when assignedUserName is omitted.
func (s *TaskService) Create(ctx context.Context, payload taskdomain.Task) (*taskdomain.Task, error) {
	if err := validateTask(&payload); err != nil {
		return nil, err
	}
	if payload.DateCreated.IsZero() {
		payload.DateCreated = time.Now().UTC()
	}

	// The id is minted before any write so the assignee's pendingTasks and
	// the task document can be produced independently.
	payload.ID = primitive.NewObjectID()

	unowned := payload
	unowned.AssignedUser = ""
	owner, err := s.sync.ReassignTask(ctx, &unowned, payload.AssignedUser)
	if err != nil {
		return nil, err
	}
	if owner != nil && payload.AssignedUserName == taskdomain.UnassignedName {
		payload.AssignedUserName = owner.Name
	}

	if _, err := s.tasks.Insert(ctx, payload); err != nil {
		return nil, err
	}
	if owner != nil {
		s.invalidate(ctx, cache.Key(kindUser, owner.ID.Hex()))
	}
	return &payload, nil
}

// Replace overwrites a task wholesale. An assignment change validates the
// new assignee before any mutation, then pulls the task from the old
// owner's pendingTasks and adds it to the new owner's; an unchanged
// assignment skips all relationship updates. The task document is persisted
// after the relationship side-effects succeed.
func (s *TaskService) Replace(ctx context.Context, hexID string, payload taskdomain.Task) (*taskdomain.Task, error) {
	id, err := store.ParseID(hexID)
	if err != nil {
		return nil, err
	}
	var existing taskdomain.Task
	if err := s.tasks.FindID(ctx, id, nil, &existing); err != nil {
		return nil, err
	}
	if err := validateTask(&payload); err != nil {
		return nil, err
	}

	payload.ID = id
	if payload.DateCreated.IsZero() {
		payload.DateCreated = existing.DateCreated
	}

	touched := []string{cache.Key(kindTask, hexID)}
	if payload.AssignedUser != existing.AssignedUser {
		owner, err := s.sync.ReassignTask(ctx, &existing, payload.AssignedUser)
		if err != nil {
			return nil, err
		}
		if owner != nil && payload.AssignedUserName == taskdomain.UnassignedName {
			payload.AssignedUserName = owner.Name
		}
		if existing.Assigned() {
			touched = append(touched, cache.Key(kindUser, existing.AssignedUser))
		}
		if owner != nil {
			touched = append(touched, cache.Key(kindUser, owner.ID.Hex()))
		}
	} else if payload.Assigned() && payload.AssignedUserName == taskdomain.UnassignedName {
		// "unassigned" doubles as the not-supplied sentinel, so an assigned
		// task never persists it; the stored name wins.
		payload.AssignedUserName = existing.AssignedUserName
	}

	if err := s.tasks.Replace(ctx, id, payload); err != nil {
		return nil, err
	}
	s.invalidate(ctx, touched...)
	return &payload, nil
}

// Delete removes the task from its owner's pendingTasks, deletes the task
// document, and returns the task's prior state.
func (s *TaskService) Delete(ctx context.Context, hexID string) (*taskdomain.Task, error) {
	id, err := store.ParseID(hexID)
	if err != nil {
		return nil, err
	}
	var existing taskdomain.Task
	if err := s.tasks.FindID(ctx, id, nil, &existing); err != nil {
		return nil, err
	}

	if err := s.sync.CascadeDeleteTask(ctx, &existing); err != nil {
		return nil, err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return nil, err
	}

	keys := []string{cache.Key(kindTask, hexID)}
	if existing.Assigned() {
		keys = append(keys, cache.Key(kindUser, existing.AssignedUser))
	}
	s.invalidate(ctx, keys...)
	return &existing, nil
}

func (s *TaskService) cacheSet(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value); err != nil {
		log.Printf("[tracker] Warning: caching %s failed: %v", key, err)
	}
}

func (s *TaskService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		log.Printf("[tracker] Warning: cache invalidation failed: %v", err)
	}
}

func validateTask(t *taskdomain.Task) error {
	if t.Name == "" {
		return missingField("name")
	}
	if t.Deadline.IsZero() {
		return missingField("deadline")
	}
	if !t.Assigned() || t.AssignedUserName == "" {
		t.AssignedUserName = taskdomain.UnassignedName
	}
	return nil
}

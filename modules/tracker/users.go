package tracker

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	userdomain "github.com/example/task-tracker-api/domain/user"
	"github.com/example/task-tracker-api/modules/cache"
	"github.com/example/task-tracker-api/modules/store"
)

// Cache key kinds.
const (
	kindUser = "user"
	kindTask = "task"
)

// UserService orchestrates user endpoints: store access, the assignment
// cascades of the synchronizer, and cache invalidation.
type UserService struct {
	users store.Collection
	sync  *Synchronizer
	cache *cache.Cache
}

// NewUserService creates a user service. c may be nil to run uncached.
func NewUserService(users store.Collection, sync *Synchronizer, c *cache.Cache) *UserService {
	return &UserService{users: users, sync: sync, cache: c}
}

// List executes a translated query against the users collection.
func (s *UserService) List(ctx context.Context, q store.Query) ([]userdomain.User, error) {
	out := []userdomain.User{}
	if err := s.users.Find(ctx, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of users matching filter, ignoring every other
// part of the descriptor.
func (s *UserService) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.users.Count(ctx, filter)
}

// Get fetches a single user. The cache is consulted only for unprojected
// fetches; a projection changes the document shape.
func (s *UserService) Get(ctx context.Context, hexID string, projection bson.M) (*userdomain.User, error) {
	id, err := store.ParseID(hexID)
	if err != nil {
		return nil, err
	}

	var u userdomain.User
	if projection == nil && s.cache.Get(ctx, cache.Key(kindUser, hexID), &u) {
		return &u, nil
	}
	if err := s.users.FindID(ctx, id, projection, &u); err != nil {
		return nil, err
	}
	if projection == nil {
		s.cacheSet(ctx, cache.Key(kindUser, hexID), &u)
	}
	return &u, nil
}

// Create validates and stores a new user. A non-empty pendingTasks payload
// triggers the same assign cascade a wholesale replacement would, with an
// empty previous set.
func (s *UserService) Create(ctx context.Context, payload userdomain.User) (*userdomain.User, error) {
	if err := validateUser(&payload); err != nil {
		return nil, err
	}
	if payload.DateCreated.IsZero() {
		payload.DateCreated = time.Now().UTC()
	}

	id, err := s.users.Insert(ctx, payload)
	if err != nil {
		return nil, err
	}
	payload.ID = id

	if len(payload.PendingTasks) > 0 {
		fresh := userdomain.User{ID: id}
		if err := s.sync.ReplaceUserTaskSet(ctx, &fresh, payload.Name, payload.PendingTasks); err != nil {
			return nil, err
		}
		s.invalidate(ctx, taskKeys(payload.PendingTasks)...)
	}
	return &payload, nil
}

// Replace overwrites a user wholesale, running the pendingTasks diff
// cascade before the replacement is persisted. dateCreated survives unless
// the payload supplies one.
func (s *UserService) Replace(ctx context.Context, hexID string, payload userdomain.User) (*userdomain.User, error) {
	id, err := store.ParseID(hexID)
	if err != nil {
		return nil, err
	}
	var existing userdomain.User
	if err := s.users.FindID(ctx, id, nil, &existing); err != nil {
		return nil, err
	}
	if err := validateUser(&payload); err != nil {
		return nil, err
	}

	payload.ID = id
	if payload.DateCreated.IsZero() {
		payload.DateCreated = existing.DateCreated
	}

	if err := s.sync.ReplaceUserTaskSet(ctx, &existing, payload.Name, payload.PendingTasks); err != nil {
		return nil, err
	}
	if err := s.users.Replace(ctx, id, payload); err != nil {
		return nil, err
	}

	touched := append(taskKeys(existing.PendingTasks), taskKeys(payload.PendingTasks)...)
	s.invalidate(ctx, append(touched, cache.Key(kindUser, hexID))...)
	return &payload, nil
}

// Delete unassigns every task owned by the user, then removes the user
// document. Cascade first: an interruption between the steps leaves tasks
// pointing at a user that still exists, never at one already gone.
func (s *UserService) Delete(ctx context.Context, hexID string) (*userdomain.User, error) {
	id, err := store.ParseID(hexID)
	if err != nil {
		return nil, err
	}
	var existing userdomain.User
	if err := s.users.FindID(ctx, id, nil, &existing); err != nil {
		return nil, err
	}

	// The cascade is filter-based: it catches every task pointing at this
	// user, including any the pendingTasks list has drifted from.
	if _, err := s.sync.CascadeDeleteUser(ctx, id); err != nil {
		return nil, err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.invalidate(ctx, cache.Key(kindUser, hexID))
	if err := s.cache.InvalidateKind(ctx, kindTask); err != nil {
		log.Printf("[tracker] Warning: task cache invalidation failed: %v", err)
	}
	return &existing, nil
}

func (s *UserService) cacheSet(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value); err != nil {
		log.Printf("[tracker] Warning: caching %s failed: %v", key, err)
	}
}

func (s *UserService) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		log.Printf("[tracker] Warning: cache invalidation failed: %v", err)
	}
}

func validateUser(u *userdomain.User) error {
	if u.Name == "" {
		return missingField("name")
	}
	if u.Email == "" {
		return missingField("email")
	}
	if u.PendingTasks == nil {
		u.PendingTasks = []string{}
	}
	return nil
}

func taskKeys(hexIDs []string) []string {
	keys := make([]string, 0, len(hexIDs))
	for _, id := range hexIDs {
		keys = append(keys, cache.Key(kindTask, id))
	}
	return keys
}

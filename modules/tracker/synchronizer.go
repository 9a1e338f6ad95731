package tracker

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	taskdomain "github.com/example/task-tracker-api/domain/task"
	userdomain "github.com/example/task-tracker-api/domain/user"
	"github.com/example/task-tracker-api/modules/store"
)

// Synchronizer keeps the two sides of the assignment relationship
// consistent: whenever a task's assignedUser or a user's pendingTasks
// changes, it performs the matching update on the opposite collection.
//
// Every operation is a sequence of individually-atomic store writes with no
// surrounding transaction. The ordering below is deliberate: validation
// happens before any write, and cascades run before the primary document
// mutation, so a failure partway through never leaves a task pointing at a
// user that is already gone. The converse (a user briefly listing a task
// that has moved on) is accepted best-effort behavior.
type Synchronizer struct {
	users store.Collection
	tasks store.Collection
}

// NewSynchronizer creates a synchronizer over the two collections.
func NewSynchronizer(users, tasks store.Collection) *Synchronizer {
	return &Synchronizer{users: users, tasks: tasks}
}

// Assignee resolves an assignedUser hex id to the user document. A
// malformed or unknown id yields a *ReferenceError; callers use this to
// reject a request before mutating anything.
func (s *Synchronizer) Assignee(ctx context.Context, hexID string) (*userdomain.User, error) {
	id, err := primitive.ObjectIDFromHex(hexID)
	if err != nil {
		return nil, &ReferenceError{UserID: hexID}
	}
	var u userdomain.User
	err = s.users.FindID(ctx, id, nil, &u)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &ReferenceError{UserID: hexID}
	}
	if err != nil {
		return nil, fmt.Errorf("looking up assignee %s: %w", hexID, err)
	}
	return &u, nil
}

// ReassignTask moves t from its current owner to the user identified by
// newOwnerHex ("" unassigns). The new owner is validated before any write;
// then the task id is pulled from the old owner's pendingTasks and added to
// the new owner's. Returns the new owner, nil when unassigning. The task
// document itself is not touched.
func (s *Synchronizer) ReassignTask(ctx context.Context, t *taskdomain.Task, newOwnerHex string) (*userdomain.User, error) {
	var owner *userdomain.User
	if newOwnerHex != "" {
		u, err := s.Assignee(ctx, newOwnerHex)
		if err != nil {
			return nil, err
		}
		owner = u
	}

	if err := s.UnassignTask(ctx, t); err != nil {
		return nil, err
	}

	if owner != nil {
		err := s.users.Update(ctx, owner.ID, bson.M{
			"$addToSet": bson.M{"pendingTasks": t.ID.Hex()},
		})
		if err != nil {
			return nil, fmt.Errorf("adding task %s to user %s: %w", t.ID.Hex(), newOwnerHex, err)
		}
	}
	return owner, nil
}

// UnassignTask pulls t's id from its current owner's pendingTasks. A task
// with no owner, or an owner that no longer exists, is a no-op.
func (s *Synchronizer) UnassignTask(ctx context.Context, t *taskdomain.Task) error {
	if !t.Assigned() {
		return nil
	}
	ownerID, err := primitive.ObjectIDFromHex(t.AssignedUser)
	if err != nil {
		// A stale or malformed owner reference cannot match any user.
		return nil
	}
	err = s.users.Update(ctx, ownerID, bson.M{
		"$pull": bson.M{"pendingTasks": t.ID.Hex()},
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("removing task %s from user %s: %w", t.ID.Hex(), t.AssignedUser, err)
	}
	return nil
}

// ReplaceUserTaskSet applies the task-side cascade for a wholesale
// pendingTasks replacement on user u: tasks leaving the set are unassigned
// in bulk, tasks entering the set are assigned to u with newName in bulk.
// Tasks in both sets are untouched, so their assignedUserName keeps the
// name cached at their last assignment even when newName differs.
func (s *Synchronizer) ReplaceUserTaskSet(ctx context.Context, u *userdomain.User, newName string, newSet []string) error {
	oldSet := u.TaskSet()
	newMembers := make(map[string]struct{}, len(newSet))
	for _, id := range newSet {
		newMembers[id] = struct{}{}
	}

	var removed, added []string
	for id := range oldSet {
		if _, kept := newMembers[id]; !kept {
			removed = append(removed, id)
		}
	}
	for id := range newMembers {
		if _, had := oldSet[id]; !had {
			added = append(added, id)
		}
	}

	if ids := parseTaskIDs(removed); len(ids) > 0 {
		_, err := s.tasks.UpdateMany(ctx,
			bson.M{"_id": bson.M{"$in": ids}},
			bson.M{"$set": bson.M{
				"assignedUser":     "",
				"assignedUserName": taskdomain.UnassignedName,
			}},
		)
		if err != nil {
			return fmt.Errorf("unassigning tasks removed from user %s: %w", u.ID.Hex(), err)
		}
	}

	if ids := parseTaskIDs(added); len(ids) > 0 {
		_, err := s.tasks.UpdateMany(ctx,
			bson.M{"_id": bson.M{"$in": ids}},
			bson.M{"$set": bson.M{
				"assignedUser":     u.ID.Hex(),
				"assignedUserName": newName,
			}},
		)
		if err != nil {
			return fmt.Errorf("assigning tasks added to user %s: %w", u.ID.Hex(), err)
		}
	}
	return nil
}

// CascadeDeleteUser unassigns every task currently pointing at userID and
// returns how many were touched. Runs before the user document is deleted,
// so an interruption between the two steps leaves tasks pointing at a user
// that still exists.
func (s *Synchronizer) CascadeDeleteUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.tasks.UpdateMany(ctx,
		bson.M{"assignedUser": userID.Hex()},
		bson.M{"$set": bson.M{
			"assignedUser":     "",
			"assignedUserName": taskdomain.UnassignedName,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("unassigning tasks of user %s: %w", userID.Hex(), err)
	}
	return n, nil
}

// CascadeDeleteTask removes t from its owner's pendingTasks. Runs before
// the task document is deleted.
func (s *Synchronizer) CascadeDeleteTask(ctx context.Context, t *taskdomain.Task) error {
	return s.UnassignTask(ctx, t)
}

// parseTaskIDs converts hex task ids to ObjectIDs, dropping malformed ones:
// they cannot identify any stored task, so the bulk filters skip them.
func parseTaskIDs(hexIDs []string) bson.A {
	ids := make(bson.A, 0, len(hexIDs))
	for _, hex := range hexIDs {
		if id, err := primitive.ObjectIDFromHex(hex); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

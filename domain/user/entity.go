package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a member of the tracker. PendingTasks holds the hex ids of every
// task currently assigned to this user; the matching tasks carry this
// user's id in their assignedUser field.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PendingTasks []string           `bson:"pendingTasks" json:"pendingTasks"`
	DateCreated  time.Time          `bson:"dateCreated" json:"dateCreated"`
}

// TaskSet returns PendingTasks as a membership set.
func (u *User) TaskSet() map[string]struct{} {
	set := make(map[string]struct{}, len(u.PendingTasks))
	for _, id := range u.PendingTasks {
		set[id] = struct{}{}
	}
	return set
}

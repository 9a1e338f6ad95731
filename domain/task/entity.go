package task

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UnassignedName is the value assignedUserName holds while a task has no
// assignee.
const UnassignedName = "unassigned"

// Task is a unit of work. AssignedUser is the hex id of the owning user,
// or "" while unassigned. AssignedUserName is a stored copy of the owner's
// name taken at the last write that touched the assignment; it is not
// refreshed when the user is renamed.
type Task struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name             string             `bson:"name" json:"name"`
	Description      string             `bson:"description" json:"description"`
	Deadline         time.Time          `bson:"deadline" json:"deadline"`
	Completed        bool               `bson:"completed" json:"completed"`
	AssignedUser     string             `bson:"assignedUser" json:"assignedUser"`
	AssignedUserName string             `bson:"assignedUserName" json:"assignedUserName"`
	DateCreated      time.Time          `bson:"dateCreated" json:"dateCreated"`
}

// Assigned reports whether the task currently has an owner.
func (t *Task) Assigned() bool {
	return t.AssignedUser != ""
}

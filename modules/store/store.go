// Package store provides the document persistence layer: a collection
// abstraction driven by query descriptors, with MongoDB and in-memory
// implementations, plus the translator that builds descriptors from raw
// request parameters.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound indicates no document matched the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID indicates an id that is not a valid ObjectID hex string.
	ErrInvalidID = errors.New("invalid document id")
)

// Query is the validated descriptor a Collection executes. Zero values mean
// "unset": empty Filter matches everything, empty Projection returns all
// fields, Limit 0 applies no cap.
type Query struct {
	Filter     bson.M
	Projection bson.M
	Sort       bson.D
	Skip       int64
	Limit      int64
	CountOnly  bool
}

// Collection is a single document collection. Multi-document operations are
// individually atomic; callers sequencing several of them get no
// transactional guarantee across the sequence.
type Collection interface {
	// Find executes q and decodes all matching documents into dest, which
	// must be a pointer to a slice.
	Find(ctx context.Context, q Query, dest any) error
	// FindID decodes the document with the given id into dest, applying the
	// projection when non-nil. Returns ErrNotFound when absent.
	FindID(ctx context.Context, id primitive.ObjectID, projection bson.M, dest any) error
	// Insert stores a new document and returns its generated id.
	Insert(ctx context.Context, doc any) (primitive.ObjectID, error)
	// Replace overwrites the document with the given id wholesale.
	// Returns ErrNotFound when absent.
	Replace(ctx context.Context, id primitive.ObjectID, doc any) error
	// Update applies an update document to the document with the given id.
	// Returns ErrNotFound when absent.
	Update(ctx context.Context, id primitive.ObjectID, update bson.M) error
	// UpdateMany applies an update document to every document matching
	// filter and returns the number of documents modified.
	UpdateMany(ctx context.Context, filter, update bson.M) (int64, error)
	// Delete removes the document with the given id.
	// Returns ErrNotFound when absent.
	Delete(ctx context.Context, id primitive.ObjectID) error
	// Count returns the number of documents matching filter.
	Count(ctx context.Context, filter bson.M) (int64, error)
}

// ParseID converts a request path id into an ObjectID, distinguishing a
// structurally invalid id (ErrInvalidID) from a well-formed one that may
// simply not exist.
func ParseID(hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return id, nil
}

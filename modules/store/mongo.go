package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoCollection implements Collection on top of a MongoDB collection.
type mongoCollection struct {
	coll *mongo.Collection
}

// NewMongoCollection wraps a driver collection in the Collection interface.
func NewMongoCollection(coll *mongo.Collection) Collection {
	return &mongoCollection{coll: coll}
}

func (c *mongoCollection) Find(ctx context.Context, q Query, dest any) error {
	opts := options.Find()
	if q.Projection != nil {
		opts.SetProjection(q.Projection)
	}
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := c.coll.Find(ctx, c.filter(q.Filter), opts)
	if err != nil {
		return fmt.Errorf("find failed: %w", err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, dest); err != nil {
		return fmt.Errorf("decoding find results failed: %w", err)
	}
	return nil
}

func (c *mongoCollection) FindID(ctx context.Context, id primitive.ObjectID, projection bson.M, dest any) error {
	opts := options.FindOne()
	if projection != nil {
		opts.SetProjection(projection)
	}

	err := c.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(dest)
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find by id failed: %w", err)
	}
	return nil
}

func (c *mongoCollection) Insert(ctx context.Context, doc any) (primitive.ObjectID, error) {
	res, err := c.coll.InsertOne(ctx, doc)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("insert failed: %w", err)
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return id, nil
}

func (c *mongoCollection) Replace(ctx context.Context, id primitive.ObjectID, doc any) error {
	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return fmt.Errorf("replace failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *mongoCollection) Update(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := c.coll.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *mongoCollection) UpdateMany(ctx context.Context, filter, update bson.M) (int64, error) {
	res, err := c.coll.UpdateMany(ctx, c.filter(filter), update)
	if err != nil {
		return 0, fmt.Errorf("bulk update failed: %w", err)
	}
	return res.ModifiedCount, nil
}

func (c *mongoCollection) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *mongoCollection) Count(ctx context.Context, filter bson.M) (int64, error) {
	n, err := c.coll.CountDocuments(ctx, c.filter(filter))
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

// filter normalizes a nil filter to match-all; the driver rejects nil.
func (c *mongoCollection) filter(f bson.M) bson.M {
	if f == nil {
		return bson.M{}
	}
	return f
}

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type doc struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Name     string             `bson:"name"`
	Rank     int                `bson:"rank"`
	Done     bool               `bson:"done"`
	Due      time.Time          `bson:"due"`
	Owners   []string           `bson:"owners"`
	Note     *string            `bson:"note"`
	Optional string             `bson:"optional,omitempty"`
}

func seed(t *testing.T, c Collection, docs ...doc) []primitive.ObjectID {
	t.Helper()
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, d := range docs {
		id, err := c.Insert(context.Background(), d)
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func find(t *testing.T, c Collection, q Query) []doc {
	t.Helper()
	var out []doc
	if err := c.Find(context.Background(), q, &out); err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	return out
}

func TestMemoryInsertGeneratesID(t *testing.T) {
	c := NewMemoryCollection()
	id, err := c.Insert(context.Background(), doc{Name: "a"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if id.IsZero() {
		t.Fatal("Insert() returned zero id")
	}

	var got doc
	if err := c.FindID(context.Background(), id, nil, &got); err != nil {
		t.Fatalf("FindID() error = %v", err)
	}
	if got.ID != id || got.Name != "a" {
		t.Errorf("FindID() = %+v, expected id %s name a", got, id.Hex())
	}
}

func TestMemoryFindEquality(t *testing.T) {
	c := NewMemoryCollection()
	seed(t, c,
		doc{Name: "a", Rank: 1, Done: false},
		doc{Name: "b", Rank: 2, Done: true},
		doc{Name: "c", Rank: 3, Done: false},
	)

	got := find(t, c, Query{Filter: bson.M{"done": false}})
	if len(got) != 2 {
		t.Fatalf("len = %d, expected 2", len(got))
	}

	// Numeric equality across JSON float64 and stored int.
	got = find(t, c, Query{Filter: bson.M{"rank": float64(2)}})
	if len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("rank=2 matched %v, expected only b", got)
	}
}

func TestMemoryArrayContainsEquality(t *testing.T) {
	c := NewMemoryCollection()
	seed(t, c,
		doc{Name: "a", Owners: []string{"x", "y"}},
		doc{Name: "b", Owners: []string{"z"}},
	)

	got := find(t, c, Query{Filter: bson.M{"owners": "y"}})
	if len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("owners=y matched %v, expected only a", got)
	}
}

func TestMemoryOperators(t *testing.T) {
	c := NewMemoryCollection()
	seed(t, c,
		doc{Name: "a", Rank: 1},
		doc{Name: "b", Rank: 2},
		doc{Name: "c", Rank: 3},
	)

	tests := []struct {
		name   string
		filter bson.M
		want   []string
	}{
		{"$gt", bson.M{"rank": bson.M{"$gt": 1}}, []string{"b", "c"}},
		{"$gte", bson.M{"rank": bson.M{"$gte": 2}}, []string{"b", "c"}},
		{"$lt", bson.M{"rank": bson.M{"$lt": 2}}, []string{"a"}},
		{"$lte", bson.M{"rank": bson.M{"$lte": 2}}, []string{"a", "b"}},
		{"$ne", bson.M{"name": bson.M{"$ne": "b"}}, []string{"a", "c"}},
		{"$in", bson.M{"name": bson.M{"$in": bson.A{"a", "c"}}}, []string{"a", "c"}},
		{"$nin", bson.M{"name": bson.M{"$nin": bson.A{"a", "c"}}}, []string{"b"}},
		{"$exists false", bson.M{"optional": bson.M{"$exists": false}}, []string{"a", "b", "c"}},
		// note is stored as an explicit null; a null field still exists.
		{"$exists true on null", bson.M{"note": bson.M{"$exists": true}}, []string{"a", "b", "c"}},
		{"$exists false on null", bson.M{"note": bson.M{"$exists": false}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := find(t, c, Query{Filter: tt.filter})
			names := make([]string, len(got))
			for i, d := range got {
				names[i] = d.Name
			}
			if len(names) != len(tt.want) {
				t.Fatalf("matched %v, expected %v", names, tt.want)
			}
			for i := range tt.want {
				if names[i] != tt.want[i] {
					t.Fatalf("matched %v, expected %v", names, tt.want)
				}
			}
		})
	}
}

func TestMemorySortSkipLimit(t *testing.T) {
	c := NewMemoryCollection()
	now := time.Now().UTC().Truncate(time.Millisecond)
	seed(t, c,
		doc{Name: "late", Due: now.Add(48 * time.Hour)},
		doc{Name: "soon", Due: now.Add(1 * time.Hour)},
		doc{Name: "mid", Due: now.Add(24 * time.Hour)},
	)

	got := find(t, c, Query{Sort: bson.D{{Key: "due", Value: int32(1)}}})
	if got[0].Name != "soon" || got[1].Name != "mid" || got[2].Name != "late" {
		t.Fatalf("ascending sort order = %v", names(got))
	}

	got = find(t, c, Query{Sort: bson.D{{Key: "due", Value: int32(-1)}}, Limit: 2})
	if len(got) != 2 || got[0].Name != "late" || got[1].Name != "mid" {
		t.Fatalf("descending limit 2 = %v", names(got))
	}

	got = find(t, c, Query{Sort: bson.D{{Key: "due", Value: int32(1)}}, Skip: 2})
	if len(got) != 1 || got[0].Name != "late" {
		t.Fatalf("skip 2 = %v", names(got))
	}

	got = find(t, c, Query{Skip: 99})
	if len(got) != 0 {
		t.Fatalf("skip beyond end = %v", names(got))
	}
}

func TestMemoryProjection(t *testing.T) {
	c := NewMemoryCollection()
	seed(t, c, doc{Name: "a", Rank: 7, Done: true})

	// Include mode: unlisted fields zero out.
	got := find(t, c, Query{Projection: bson.M{"name": 1}})
	if got[0].Name != "a" || got[0].Rank != 0 || got[0].Done {
		t.Errorf("include projection = %+v", got[0])
	}
	if got[0].ID.IsZero() {
		t.Error("include projection dropped _id")
	}

	// Exclude mode.
	got = find(t, c, Query{Projection: bson.M{"name": 0}})
	if got[0].Name != "" || got[0].Rank != 7 {
		t.Errorf("exclude projection = %+v", got[0])
	}
}

func TestMemoryUpdateOperators(t *testing.T) {
	c := NewMemoryCollection()
	ids := seed(t, c, doc{Name: "a", Owners: []string{"x"}})
	ctx := context.Background()

	if err := c.Update(ctx, ids[0], bson.M{"$set": bson.M{"name": "b"}}); err != nil {
		t.Fatalf("Update($set) error = %v", err)
	}
	if err := c.Update(ctx, ids[0], bson.M{"$addToSet": bson.M{"owners": "y"}}); err != nil {
		t.Fatalf("Update($addToSet) error = %v", err)
	}
	// Duplicate add is a no-op.
	if err := c.Update(ctx, ids[0], bson.M{"$addToSet": bson.M{"owners": "y"}}); err != nil {
		t.Fatalf("Update($addToSet dup) error = %v", err)
	}
	if err := c.Update(ctx, ids[0], bson.M{"$pull": bson.M{"owners": "x"}}); err != nil {
		t.Fatalf("Update($pull) error = %v", err)
	}

	var got doc
	if err := c.FindID(ctx, ids[0], nil, &got); err != nil {
		t.Fatalf("FindID() error = %v", err)
	}
	if got.Name != "b" {
		t.Errorf("name = %q, expected b", got.Name)
	}
	if len(got.Owners) != 1 || got.Owners[0] != "y" {
		t.Errorf("owners = %v, expected [y]", got.Owners)
	}
}

func TestMemoryUpdateMany(t *testing.T) {
	c := NewMemoryCollection()
	seed(t, c,
		doc{Name: "a", Done: false},
		doc{Name: "b", Done: false},
		doc{Name: "c", Done: true},
	)

	n, err := c.UpdateMany(context.Background(),
		bson.M{"done": false},
		bson.M{"$set": bson.M{"done": true}},
	)
	if err != nil {
		t.Fatalf("UpdateMany() error = %v", err)
	}
	if n != 2 {
		t.Errorf("modified = %d, expected 2", n)
	}

	count, err := c.Count(context.Background(), bson.M{"done": true})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, expected 3", count)
	}
}

func TestMemoryReplaceAndDelete(t *testing.T) {
	c := NewMemoryCollection()
	ids := seed(t, c, doc{Name: "a"})
	ctx := context.Background()

	if err := c.Replace(ctx, ids[0], doc{Name: "z"}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	var got doc
	if err := c.FindID(ctx, ids[0], nil, &got); err != nil {
		t.Fatalf("FindID() error = %v", err)
	}
	if got.Name != "z" || got.ID != ids[0] {
		t.Errorf("after replace = %+v, id must be preserved", got)
	}

	if err := c.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, expected ErrNotFound", err)
	}
	if err := c.FindID(ctx, ids[0], nil, &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindID() after delete error = %v, expected ErrNotFound", err)
	}
	if err := c.Replace(ctx, ids[0], doc{Name: "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Replace() after delete error = %v, expected ErrNotFound", err)
	}
}

func TestMemoryConcurrentReadsAndWrites(t *testing.T) {
	c := NewMemoryCollection()
	ctx := context.Background()

	var ids []primitive.ObjectID
	for i := 0; i < 50; i++ {
		id, err := c.Insert(ctx, doc{Name: fmt.Sprintf("doc-%02d", i), Rank: i})
		if err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
		ids = append(ids, id)
	}

	const iterations = 200
	var wg sync.WaitGroup

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				var out []doc
				q := Query{
					Filter: bson.M{"rank": bson.M{"$gte": 10}},
					Sort:   bson.D{{Key: "rank", Value: int32(-1)}},
					Limit:  10,
				}
				if err := c.Find(ctx, q, &out); err != nil {
					t.Errorf("Find() error = %v", err)
					return
				}
				var one doc
				if err := c.FindID(ctx, ids[i%len(ids)], nil, &one); err != nil {
					t.Errorf("FindID() error = %v", err)
					return
				}
			}
		}()
	}

	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				_, err := c.UpdateMany(ctx,
					bson.M{"rank": bson.M{"$lt": 25}},
					bson.M{"$set": bson.M{"done": i%2 == 0}},
				)
				if err != nil {
					t.Errorf("UpdateMany() error = %v", err)
					return
				}
				id := ids[(seed+i)%len(ids)]
				err = c.Update(ctx, id, bson.M{"$addToSet": bson.M{"owners": fmt.Sprintf("w%d", seed)}})
				if err != nil {
					t.Errorf("Update() error = %v", err)
					return
				}
			}
		}(w)
	}

	wg.Wait()
}

func names(docs []doc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Name
	}
	return out
}

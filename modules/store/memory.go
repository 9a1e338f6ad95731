package store

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memoryCollection is an in-process Collection used by tests and by the
// "memory" store driver. It evaluates the filter and update subset this
// system produces: field equality (with array-contains semantics), $in,
// $nin, $ne, $gt, $gte, $lt, $lte, $exists, and updates via $set,
// $addToSet, $pull.
type memoryCollection struct {
	mu    sync.RWMutex
	docs  map[primitive.ObjectID]bson.M
	order []primitive.ObjectID
}

// NewMemoryCollection creates an empty in-memory collection.
func NewMemoryCollection() Collection {
	return &memoryCollection{docs: make(map[primitive.ObjectID]bson.M)}
}

func (c *memoryCollection) Find(_ context.Context, q Query, dest any) error {
	// The read lock is held through decoding: matched aliases the stored
	// documents, which updates mutate in place under the write lock.
	c.mu.RLock()
	defer c.mu.RUnlock()

	matched := c.matchAll(q.Filter)
	if len(q.Sort) > 0 {
		sortDocs(matched, q.Sort)
	}
	if q.Skip > 0 {
		if q.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[q.Skip:]
		}
	}
	if q.Limit > 0 && int64(len(matched)) > q.Limit {
		matched = matched[:q.Limit]
	}
	if q.Projection != nil {
		for i, doc := range matched {
			matched[i] = project(doc, q.Projection)
		}
	}
	return decodeSlice(matched, dest)
}

func (c *memoryCollection) FindID(_ context.Context, id primitive.ObjectID, projection bson.M, dest any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	if projection != nil {
		doc = project(doc, projection)
	}
	return decodeOne(doc, dest)
}

func (c *memoryCollection) Insert(_ context.Context, doc any) (primitive.ObjectID, error) {
	normalized, err := normalizeDoc(doc)
	if err != nil {
		return primitive.NilObjectID, err
	}

	id, _ := normalized["_id"].(primitive.ObjectID)
	if id.IsZero() {
		id = primitive.NewObjectID()
	}
	normalized["_id"] = id

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.docs[id]; exists {
		return primitive.NilObjectID, fmt.Errorf("duplicate id %s", id.Hex())
	}
	c.docs[id] = normalized
	c.order = append(c.order, id)
	return id, nil
}

func (c *memoryCollection) Replace(_ context.Context, id primitive.ObjectID, doc any) error {
	normalized, err := normalizeDoc(doc)
	if err != nil {
		return err
	}
	normalized["_id"] = id

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	c.docs[id] = normalized
	return nil
}

func (c *memoryCollection) Update(_ context.Context, id primitive.ObjectID, update bson.M) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		return ErrNotFound
	}
	_, err := applyUpdate(doc, update)
	return err
}

func (c *memoryCollection) UpdateMany(_ context.Context, filter, update bson.M) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var modified int64
	for _, id := range c.order {
		doc := c.docs[id]
		if !matchFilter(doc, filter) {
			continue
		}
		changed, err := applyUpdate(doc, update)
		if err != nil {
			return modified, err
		}
		if changed {
			modified++
		}
	}
	return modified, nil
}

func (c *memoryCollection) Delete(_ context.Context, id primitive.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return ErrNotFound
	}
	delete(c.docs, id)
	for i, other := range c.order {
		if other == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *memoryCollection) Count(_ context.Context, filter bson.M) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, id := range c.order {
		if matchFilter(c.docs[id], filter) {
			n++
		}
	}
	return n, nil
}

// matchAll returns matching documents in insertion order. Caller holds the
// read lock.
func (c *memoryCollection) matchAll(filter bson.M) []bson.M {
	var matched []bson.M
	for _, id := range c.order {
		doc := c.docs[id]
		if matchFilter(doc, filter) {
			matched = append(matched, doc)
		}
	}
	return matched
}

// normalizeDoc round-trips a document through bson so stored values use the
// same representation the mongo driver would produce (time.Time becomes
// primitive.DateTime, slices become primitive.A, and so on).
func normalizeDoc(doc any) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document failed: %w", err)
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding document failed: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) any {
	out, err := normalizeDoc(bson.M{"v": v})
	if err != nil {
		return v
	}
	return out["v"]
}

func decodeSlice(docs []bson.M, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("dest must be a pointer to a slice, got %T", dest)
	}
	slice := v.Elem()
	elemType := slice.Type().Elem()
	out := reflect.MakeSlice(slice.Type(), 0, len(docs))
	for _, doc := range docs {
		elem := reflect.New(elemType)
		if err := decodeOne(doc, elem.Interface()); err != nil {
			return err
		}
		out = reflect.Append(out, elem.Elem())
	}
	slice.Set(out)
	return nil
}

func decodeOne(doc bson.M, dest any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document failed: %w", err)
	}
	if err := bson.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decoding document failed: %w", err)
	}
	return nil
}

func matchFilter(doc, filter bson.M) bool {
	for field, cond := range filter {
		value, present := doc[field]
		if !matchField(value, present, cond) {
			return false
		}
	}
	return true
}

func matchField(value any, present bool, cond any) bool {
	if ops, ok := cond.(bson.M); ok {
		return matchOps(value, present, ops)
	}
	if ops, ok := cond.(map[string]any); ok {
		return matchOps(value, present, bson.M(ops))
	}
	return equalOrContains(value, cond)
}

func matchOps(value any, present bool, ops bson.M) bool {
	for op, arg := range ops {
		switch op {
		case "$in":
			if !containsAny(arg, value) {
				return false
			}
		case "$nin":
			if containsAny(arg, value) {
				return false
			}
		case "$ne":
			if equalOrContains(value, arg) {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			cmp, ok := compareValues(value, arg)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				if cmp <= 0 {
					return false
				}
			case "$gte":
				if cmp < 0 {
					return false
				}
			case "$lt":
				if cmp >= 0 {
					return false
				}
			case "$lte":
				if cmp > 0 {
					return false
				}
			}
		case "$exists":
			// Presence of the field, not its value: an explicit null still
			// exists.
			want, _ := arg.(bool)
			if present != want {
				return false
			}
		default:
			// Unsupported operator: treated as no match rather than a
			// silent pass, so tests surface the gap.
			return false
		}
	}
	return true
}

// equalOrContains applies mongo equality semantics: an array field matches
// a scalar condition when it contains the value.
func equalOrContains(value, cond any) bool {
	if arr, ok := value.(primitive.A); ok {
		if _, condIsArr := cond.(primitive.A); !condIsArr {
			for _, item := range arr {
				if equalValues(item, cond) {
					return true
				}
			}
			// Fall through to whole-array equality below.
		}
	}
	return equalValues(value, cond)
}

func containsAny(candidates, value any) bool {
	var items []any
	switch arr := candidates.(type) {
	case primitive.A:
		items = arr
	case []any:
		items = arr
	default:
		return equalOrContains(value, candidates)
	}
	for _, item := range items {
		if equalOrContains(value, item) {
			return true
		}
	}
	return false
}

func equalValues(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two bson values when they are of comparable kinds.
// Numeric kinds (including primitive.DateTime) compare across types the way
// mongo compares them.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		if a == nil {
			return -1, true
		}
		return 1, true
	}

	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	case primitive.ObjectID:
		bv, ok := b.(primitive.ObjectID)
		if !ok {
			return 0, false
		}
		return bytes.Compare(av[:], bv[:]), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case primitive.DateTime:
		return float64(n), true
	}
	return 0, false
}

func sortDocs(docs []bson.M, keys bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			cmp, ok := compareValues(docs[i][key.Key], docs[j][key.Key])
			if !ok || cmp == 0 {
				continue
			}
			if dir, _ := toFloat(key.Value); dir < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// project applies an include- or exclude-mode projection. Mode is include
// when any field other than _id is truthy, matching mongo's rule.
func project(doc, projection bson.M) bson.M {
	include := false
	for field, v := range projection {
		if field != "_id" && truthy(v) {
			include = true
			break
		}
	}

	out := bson.M{}
	if include {
		for field, v := range projection {
			if !truthy(v) {
				continue
			}
			if value, ok := doc[field]; ok {
				out[field] = value
			}
		}
		if _, excluded := projection["_id"]; !excluded || truthy(projection["_id"]) {
			if id, ok := doc["_id"]; ok {
				out["_id"] = id
			}
		}
		return out
	}

	for field, value := range doc {
		if v, listed := projection[field]; listed && !truthy(v) {
			continue
		}
		out[field] = value
	}
	return out
}

func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return false
}

// applyUpdate mutates doc in place and reports whether anything changed.
func applyUpdate(doc, update bson.M) (bool, error) {
	changed := false
	for op, arg := range update {
		fields, ok := toFields(arg)
		if !ok {
			return changed, fmt.Errorf("update operator %s requires a document argument", op)
		}
		switch op {
		case "$set":
			for field, value := range fields {
				normalized := normalizeValue(value)
				if !equalValues(doc[field], normalized) {
					doc[field] = normalized
					changed = true
				}
			}
		case "$addToSet":
			for field, value := range fields {
				normalized := normalizeValue(value)
				arr, _ := doc[field].(primitive.A)
				exists := false
				for _, item := range arr {
					if equalValues(item, normalized) {
						exists = true
						break
					}
				}
				if !exists {
					doc[field] = append(arr, normalized)
					changed = true
				}
			}
		case "$pull":
			for field, value := range fields {
				normalized := normalizeValue(value)
				arr, ok := doc[field].(primitive.A)
				if !ok {
					continue
				}
				kept := make(primitive.A, 0, len(arr))
				for _, item := range arr {
					if equalValues(item, normalized) {
						changed = true
						continue
					}
					kept = append(kept, item)
				}
				doc[field] = kept
			}
		default:
			return changed, fmt.Errorf("unsupported update operator %s", op)
		}
	}
	return changed, nil
}

func toFields(arg any) (bson.M, bool) {
	switch fields := arg.(type) {
	case bson.M:
		return fields, true
	case map[string]any:
		return bson.M(fields), true
	}
	return nil, false
}

// Package mongomem is an in-memory stand-in for a single MongoDB collection.
// It implements the subset of *mongo.Collection used by the gateway and
// returns real driver result types, so callers cannot tell the difference
// for exact-match filters and $set updates.
package mongomem

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertHook runs before a document is stored. Returning an error fails the insert.
type InsertHook func(doc bson.M) error

// Collection keeps documents in insertion order. It is safe for concurrent use.
type Collection struct {
	mu   sync.RWMutex
	docs []bson.M

	insertHook     InsertHook
	omitInsertedID bool
}

type Option func(*Collection)

// WithInsertHook installs a hook called for every InsertOne.
func WithInsertHook(h InsertHook) Option {
	return func(c *Collection) { c.insertHook = h }
}

// WithoutInsertedID makes InsertOne store documents but report no id.
func WithoutInsertedID() Option {
	return func(c *Collection) { c.omitInsertedID = true }
}

func New(opts ...Option) *Collection {
	c := &Collection{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Put stores doc as is, bypassing hooks. Useful to seed corrupt documents.
func (c *Collection) Put(doc bson.M) error {
	m, err := normalize(doc)
	if err != nil {
		return err
	}
	if _, ok := m["_id"]; !ok {
		m["_id"] = primitive.NewObjectID()
	}
	c.mu.Lock()
	c.docs = append(c.docs, m)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored documents.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func (c *Collection) InsertOne(ctx context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := normalize(document)
	if err != nil {
		return nil, err
	}
	if c.insertHook != nil {
		if err := c.insertHook(doc); err != nil {
			return nil, err
		}
	}

	id, ok := doc["_id"]
	if !ok {
		id = primitive.NewObjectID()
		doc["_id"] = id
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.docs {
		if reflect.DeepEqual(existing["_id"], id) {
			return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{
				Code:    11000,
				Message: fmt.Sprintf("E11000 duplicate key error dup key: { _id: %v }", id),
			}}}
		}
	}
	c.docs = append(c.docs, doc)

	if c.omitInsertedID {
		return &mongo.InsertOneResult{}, nil
	}
	return &mongo.InsertOneResult{InsertedID: id}, nil
}

func (c *Collection) Find(ctx context.Context, filter interface{}, _ ...*options.FindOptions) (*mongo.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := normalize(filter)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	var found []interface{}
	for _, doc := range c.docs {
		if matches(doc, f) {
			found = append(found, copyDoc(doc))
		}
	}
	c.mu.RUnlock()

	return mongo.NewCursorFromDocuments(found, nil, nil)
}

func (c *Collection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, _ ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := normalize(filter)
	if err != nil {
		return nil, err
	}
	u, err := normalize(update)
	if err != nil {
		return nil, err
	}
	set, ok := asM(u["$set"])
	if !ok || len(u) != 1 {
		return nil, fmt.Errorf("mongomem: only {$set: {...}} updates are supported")
	}
	if _, ok := set["_id"]; ok {
		return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{
			Code:    66,
			Message: "Performing an update on the path '_id' would modify the immutable field '_id'",
		}}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, doc := range c.docs {
		if !matches(doc, f) {
			continue
		}
		changed := false
		for k, v := range set {
			if old, ok := doc[k]; !ok || !reflect.DeepEqual(old, v) {
				doc[k] = v
				changed = true
			}
		}
		res := &mongo.UpdateResult{MatchedCount: 1}
		if changed {
			res.ModifiedCount = 1
		}
		return res, nil
	}
	return &mongo.UpdateResult{}, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := normalize(filter)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, doc := range c.docs {
		if matches(doc, f) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return &mongo.DeleteResult{DeletedCount: 1}, nil
		}
	}
	return &mongo.DeleteResult{}, nil
}

// normalize round-trips v through BSON so stored values and filter values
// share the decoder's types.
func normalize(v interface{}) (bson.M, error) {
	if v == nil {
		return bson.M{}, nil
	}
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m bson.M
	if err := bson.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func asM(v interface{}) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case bson.D:
		return d.Map(), true
	}
	return nil, false
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func copyDoc(doc bson.M) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// Package gateway is the only path from the CLI to the users collection.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sandrolain/userkit/pkg/notify"
	"github.com/sandrolain/userkit/pkg/user"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	setOperator    = "$set"
	DefaultTimeout = 10 * time.Second
)

// Collection is the part of *mongo.Collection the gateway uses.
type Collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// Watcher is implemented by collections that support change streams.
type Watcher interface {
	Watch(ctx context.Context, pipeline interface{}, opts ...*options.ChangeStreamOptions) (*mongo.ChangeStream, error)
}

// Publisher receives an event after each successful write.
type Publisher interface {
	Publish(ctx context.Context, evt notify.Event) error
}

// Filter selects users by exact field equality. An empty filter matches all.
type Filter map[string]any

// Outcome reports how many documents an update or delete touched.
type Outcome struct {
	Matched  int64
	Affected int64
}

// Gateway performs storage operations on one collection. Its fields are fixed
// at construction, so a single Gateway may be shared by many goroutines.
type Gateway struct {
	client         *mongo.Client
	coll           Collection
	timeout        time.Duration
	logger         *slog.Logger
	publisher      Publisher
	cleanupOrphans bool
}

type Option func(*Gateway)

// WithTimeout bounds every storage round-trip. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithPublisher sends an event for every successful create, update and delete.
func WithPublisher(p Publisher) Option {
	return func(g *Gateway) { g.publisher = p }
}

// WithOrphanCleanup deletes a freshly inserted document again when the
// driver does not report a usable ObjectID for it.
func WithOrphanCleanup(enabled bool) Option {
	return func(g *Gateway) { g.cleanupOrphans = enabled }
}

// New wraps an existing collection. The caller keeps ownership of its connection.
func New(coll Collection, opts ...Option) *Gateway {
	g := &Gateway{
		coll:    coll,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Open connects to uri, verifies the connection and returns a Gateway that
// owns the client until Close.
func Open(ctx context.Context, uri, database, collection string, opts ...Option) (*Gateway, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, user.StorageFailure(fmt.Errorf("failed to connect to MongoDB: %w", err))
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, user.StorageFailure(fmt.Errorf("failed to ping MongoDB: %w", err))
	}

	g := New(client.Database(database).Collection(collection), opts...)
	g.client = client
	g.logger.Debug("Connected to MongoDB", "database", database, "collection", collection)
	return g, nil
}

// Close disconnects the client opened by Open. It is a no-op for New.
func (g *Gateway) Close(ctx context.Context) error {
	if g.client == nil {
		return nil
	}
	if err := g.client.Disconnect(ctx); err != nil {
		return user.StorageFailure(err)
	}
	return nil
}

func (g *Gateway) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// Create inserts the user described by text and returns it with its new id.
// Text carrying its own _id is rejected as MalformedInput.
//
// If the insert succeeds but no ObjectID comes back, the document stays in
// the collection unless orphan cleanup is enabled, and an
// IdentifierAssignment error is returned in both cases.
func (g *Gateway) Create(ctx context.Context, text string) (*user.User, error) {
	u, err := user.Parse(text)
	if err != nil {
		return nil, err
	}
	if u.ID != nil {
		return nil, user.Errorf(user.KindMalformedInput, "%s must not be set on create, got %s", user.IDField, u.ID.Hex())
	}
	doc, err := u.Document()
	if err != nil {
		return nil, err
	}

	opCtx, cancel := g.opContext(ctx)
	defer cancel()

	res, err := g.coll.InsertOne(opCtx, doc)
	if err != nil {
		return nil, user.StorageFailure(err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok || id.IsZero() {
		g.logger.Error("Inserted user has no usable ID", "insertedID", res.InsertedID, "name", u.Name)
		g.removeOrphan(ctx, res.InsertedID)
		return nil, user.Errorf(user.KindIdentifierAssignment, "failed to get inserted user ID (got %v)", res.InsertedID)
	}
	if err := u.AssignID(id); err != nil {
		return nil, err
	}

	g.logger.Debug("Created a new user", "user", u.String())
	g.publish(ctx, notify.NewEvent(notify.Created, u))
	return u, nil
}

func (g *Gateway) removeOrphan(ctx context.Context, insertedID interface{}) {
	if !g.cleanupOrphans || insertedID == nil {
		return
	}
	opCtx, cancel := g.opContext(ctx)
	defer cancel()
	res, err := g.coll.DeleteOne(opCtx, bson.M{user.IDField: insertedID})
	if err != nil {
		g.logger.Error("Failed to remove orphaned user", "insertedID", insertedID, "error", err)
		return
	}
	g.logger.Warn("Removed orphaned user", "insertedID", insertedID, "deleted", res.DeletedCount)
}

// Read returns every user matching filter, in storage order. A document that
// cannot be decoded aborts the read.
func (g *Gateway) Read(ctx context.Context, filter Filter) ([]*user.User, error) {
	f, err := toQuery(filter)
	if err != nil {
		return nil, err
	}

	opCtx, cancel := g.opContext(ctx)
	defer cancel()

	cur, err := g.coll.Find(opCtx, f)
	if err != nil {
		return nil, user.StorageFailure(err)
	}
	defer func() {
		if err := cur.Close(context.Background()); err != nil {
			g.logger.Warn("Failed to close cursor", "error", err)
		}
	}()

	users := []*user.User{}
	for cur.Next(opCtx) {
		u, err := user.FromDocument(cur.Current)
		if err != nil {
			return nil, user.DeserializationFailure(fmt.Errorf("document %v: %w", cur.Current.Lookup(user.IDField), err))
		}
		users = append(users, u)
	}
	if err := cur.Err(); err != nil {
		return nil, user.StorageFailure(err)
	}

	g.logger.Debug("Read users", "filter", f, "count", len(users))
	return users, nil
}

func toQuery(filter Filter) (bson.M, error) {
	q := bson.M{}
	for k, v := range filter {
		if s, ok := v.(string); ok && k == user.IDField {
			id, err := user.ParseID(s)
			if err != nil {
				return nil, err
			}
			v = id
		}
		q[k] = v
	}
	return q, nil
}

// Update replaces every field but the id of the user with the given id.
// A missing id is not an error; the Outcome reports zero matches.
func (g *Gateway) Update(ctx context.Context, idHex, text string) (Outcome, error) {
	id, err := user.ParseID(idHex)
	if err != nil {
		return Outcome{}, err
	}
	u, err := user.Parse(text)
	if err != nil {
		return Outcome{}, err
	}
	u.ID = nil
	doc, err := u.Document()
	if err != nil {
		return Outcome{}, err
	}

	opCtx, cancel := g.opContext(ctx)
	defer cancel()

	res, err := g.coll.UpdateOne(opCtx, bson.M{user.IDField: id}, bson.M{setOperator: doc})
	if err != nil {
		return Outcome{}, user.StorageFailure(err)
	}

	out := Outcome{Matched: res.MatchedCount, Affected: res.ModifiedCount}
	if out.Affected > 0 {
		g.logger.Debug("Update successful", "id", idHex, "modified", out.Affected)
		u.ID = &id
		g.publish(ctx, notify.NewEvent(notify.Updated, u))
	} else {
		g.logger.Debug("Update failed: no document modified", "id", idHex, "matched", out.Matched)
	}
	return out, nil
}

// Delete removes the user with the given id. A missing id is not an error.
func (g *Gateway) Delete(ctx context.Context, idHex string) (Outcome, error) {
	id, err := user.ParseID(idHex)
	if err != nil {
		return Outcome{}, err
	}

	opCtx, cancel := g.opContext(ctx)
	defer cancel()

	res, err := g.coll.DeleteOne(opCtx, bson.M{user.IDField: id})
	if err != nil {
		return Outcome{}, user.StorageFailure(err)
	}

	out := Outcome{Matched: res.DeletedCount, Affected: res.DeletedCount}
	if out.Affected > 0 {
		g.logger.Debug("Delete successful", "id", idHex, "deleted", out.Affected)
		g.publish(ctx, notify.Event{Type: notify.Deleted, ID: idHex, Time: time.Now().UTC()})
	} else {
		g.logger.Debug("Delete failed: no document deleted", "id", idHex)
	}
	return out, nil
}

// ChangeEvent is one entry of the collection's change stream.
type ChangeEvent struct {
	Operation string
	ID        string
	User      *user.User
}

type changeDoc struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.RawValue `bson:"fullDocument"`
}

var ErrWatchUnsupported = errors.New("collection does not support change streams")

// Watch streams changes to fn until ctx is cancelled or fn returns an error.
// It requires a replica set or sharded cluster.
func (g *Gateway) Watch(ctx context.Context, fn func(ChangeEvent) error) error {
	w, ok := g.coll.(Watcher)
	if !ok {
		return user.StorageFailure(ErrWatchUnsupported)
	}

	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	stream, err := w.Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return user.StorageFailure(fmt.Errorf("failed to create change stream: %w", err))
	}
	defer func() {
		if err := stream.Close(context.Background()); err != nil {
			g.logger.Warn("Failed to close change stream", "error", err)
		}
	}()

	for stream.Next(ctx) {
		var cd changeDoc
		if err := stream.Decode(&cd); err != nil {
			g.logger.Error("Failed to decode change", "error", err)
			continue
		}
		evt := ChangeEvent{Operation: cd.OperationType}
		if cd.FullDocument.Type == bsontype.EmbeddedDocument {
			u, err := user.FromDocument(cd.FullDocument.Document())
			if err != nil {
				g.logger.Error("Failed to decode changed user", "error", err)
			} else {
				evt.User = u
			}
		}
		if !cd.DocumentKey.ID.IsZero() {
			evt.ID = cd.DocumentKey.ID.Hex()
		}
		if err := fn(evt); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return user.StorageFailure(fmt.Errorf("change stream error: %w", err))
	}
	return nil
}

func (g *Gateway) publish(ctx context.Context, evt notify.Event) {
	if g.publisher == nil {
		return
	}
	if err := g.publisher.Publish(ctx, evt); err != nil {
		g.logger.Warn("Failed to publish user event", "type", evt.Type, "id", evt.ID, "error", err)
	}
}

package zenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DataList[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
}

// MongoRepository mediates every read and write against one collection. It
// stamps caller-supplied metadata on writes, hides soft-deleted documents on
// reads, and otherwise passes filters and updates through to the driver
// unchanged. An instance is bound to its (cluster, database, collection)
// triple for life; build a new one to target anything else.
type MongoRepository[T any] struct {
	client     *mongo.Client
	database   *mongo.Database
	collection *mongo.Collection
	userID     string
	username   string
	cache      Cache
	events     ChangePublisher
	logger     *Logger
	auditLog   bool
	debug      bool
}

func NewMongoRepository[T any](client *mongo.Client, database string, collection string) *MongoRepository[T] {
	return &MongoRepository[T]{
		client:     client,
		database:   client.Database(database),
		collection: client.Database(database).Collection(collection),
		logger:     NewNopLogger(),
		auditLog:   false,
	}
}

func (r *MongoRepository[T]) WithAuthor(userID string, username string) *MongoRepository[T] {
	clone := *r
	clone.userID = userID
	clone.username = username
	return &clone
}

func (r *MongoRepository[T]) WithCache(cache Cache) *MongoRepository[T] {
	clone := *r
	clone.cache = cache
	return &clone
}

func (r *MongoRepository[T]) WithEvents(events ChangePublisher) *MongoRepository[T] {
	clone := *r
	clone.events = events
	return &clone
}

func (r *MongoRepository[T]) WithLogger(logger *Logger) *MongoRepository[T] {
	clone := *r
	if logger != nil {
		clone.logger = logger
	}
	return &clone
}

func (r *MongoRepository[T]) WithDebug(enabled bool) *MongoRepository[T] {
	clone := *r
	clone.debug = enabled
	return &clone
}

func (r *MongoRepository[T]) Collection() *mongo.Collection {
	return r.collection
}

func (r *MongoRepository[T]) InsertOne(ctx context.Context, document T, opts *InsertOptions) (*mongo.InsertOneResult, error) {
	opts = opts.orDefault()

	payload, err := mergeDocument(document, produceMetadata(opts.CreateMeta))
	if err != nil {
		return nil, err
	}

	r.logOp(opts.Debug, "insert one")
	res, err := r.collection.InsertOne(operationContext(ctx, opts.Session), payload)
	if err != nil {
		return nil, err
	}

	r.logAudit(ctx, "insert", res.InsertedID, nil, payload)
	r.afterWrite(ctx, "insert", res.InsertedID, opts.Session)

	return res, nil
}

func (r *MongoRepository[T]) InsertMany(ctx context.Context, documents []T, opts *InsertOptions) (*mongo.InsertManyResult, error) {
	opts = opts.orDefault()

	payload := make([]interface{}, 0, len(documents))
	for _, document := range documents {
		// The producer runs once per element so each document gets its own
		// stamp values.
		merged, err := mergeDocument(document, produceMetadata(opts.CreateMeta))
		if err != nil {
			return nil, err
		}
		payload = append(payload, merged)
	}

	r.logOp(opts.Debug, "insert many", "count", len(payload))
	res, err := r.collection.InsertMany(operationContext(ctx, opts.Session), payload)
	if err != nil {
		return nil, err
	}

	r.afterWrite(ctx, "insert", nil, opts.Session)

	return res, nil
}

func (r *MongoRepository[T]) FindOne(ctx context.Context, filter bson.M, opts *FindOptions) (*T, error) {
	opts = opts.orDefault()
	scoped := withVisibility(filter, opts.IncludeDeleted)

	cacheKey := r.cacheKey(fmt.Sprintf("first:%v", scoped))
	if r.cache != nil && opts.Session == nil {
		if raw, ok := r.cache.Get(ctx, cacheKey); ok {
			var cached T
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	r.logOp(opts.Debug, "find one", "includeDeleted", opts.IncludeDeleted)

	var result T
	err := r.collection.FindOne(operationContext(ctx, opts.Session), scoped).Decode(&result)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if r.cache != nil && opts.Session == nil {
		if raw, err := json.Marshal(result); err == nil {
			r.cache.Set(ctx, cacheKey, raw, 0)
		}
	}

	return &result, nil
}

func (r *MongoRepository[T]) FindByID(ctx context.Context, id interface{}, opts *FindOptions) (*T, error) {
	return r.FindOne(ctx, bson.M{"_id": id}, opts)
}

// Find hands back the raw cursor for callers that stream large result sets.
func (r *MongoRepository[T]) Find(ctx context.Context, filter bson.M, opts *FindOptions, findOpts ...*options.FindOptions) (*mongo.Cursor, error) {
	opts = opts.orDefault()
	scoped := withVisibility(filter, opts.IncludeDeleted)

	r.logOp(opts.Debug, "find", "includeDeleted", opts.IncludeDeleted)

	return r.collection.Find(operationContext(ctx, opts.Session), scoped, findOpts...)
}

func (r *MongoRepository[T]) FindAll(ctx context.Context, filter bson.M, opts *FindOptions, findOpts ...*options.FindOptions) ([]T, error) {
	cursor, err := r.Find(ctx, filter, opts, findOpts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var results []T
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	return results, nil
}

func (r *MongoRepository[T]) FindPage(ctx context.Context, filter bson.M, skip int64, take int64, opts *FindOptions, findOpts ...*options.FindOptions) (*DataList[T], error) {
	pageOpts := options.Find().SetSkip(skip).SetLimit(take)
	if len(findOpts) > 0 && findOpts[0].Sort != nil {
		pageOpts.SetSort(findOpts[0].Sort)
	}

	items, err := r.FindAll(ctx, filter, opts, pageOpts)
	if err != nil {
		return nil, err
	}

	count, err := r.CountDocuments(ctx, filter, &CountOptions{
		IncludeDeleted: opts.orDefault().IncludeDeleted,
		Session:        opts.orDefault().Session,
	})
	if err != nil {
		return nil, err
	}

	return &DataList[T]{Items: items, TotalCount: count}, nil
}

func (r *MongoRepository[T]) UpdateOne(ctx context.Context, filter bson.M, update bson.M, opts *UpdateOptions) (*mongo.UpdateResult, error) {
	opts = opts.orDefault()
	merged := mergeUpdateSet(update, produceMetadata(opts.UpdateMeta))

	r.logOp(opts.Debug, "update one")
	res, err := r.collection.UpdateOne(operationContext(ctx, opts.Session), filter, merged)
	if err != nil {
		return nil, err
	}

	if res.MatchedCount > 0 {
		r.logAudit(ctx, "update", filter, nil, merged)
	}
	r.afterWrite(ctx, "update", filter, opts.Session)

	return res, nil
}

func (r *MongoRepository[T]) UpdateMany(ctx context.Context, filter bson.M, update bson.M, opts *UpdateOptions) (*mongo.UpdateResult, error) {
	opts = opts.orDefault()
	merged := mergeUpdateSet(update, produceMetadata(opts.UpdateMeta))

	r.logOp(opts.Debug, "update many")
	res, err := r.collection.UpdateMany(operationContext(ctx, opts.Session), filter, merged)
	if err != nil {
		return nil, err
	}

	if res.MatchedCount > 0 {
		r.logAudit(ctx, "update", filter, nil, merged)
	}
	r.afterWrite(ctx, "update", filter, opts.Session)

	return res, nil
}

// PatchOne sets the given fields on the first match. It is the same write
// path as UpdateOne with a caller-friendlier shape, not a different
// semantic.
func (r *MongoRepository[T]) PatchOne(ctx context.Context, filter bson.M, fields bson.M, opts *UpdateOptions) (*mongo.UpdateResult, error) {
	return r.UpdateOne(ctx, filter, bson.M{"$set": fields}, opts)
}

func (r *MongoRepository[T]) PatchByID(ctx context.Context, id interface{}, fields bson.M, opts *UpdateOptions) (*mongo.UpdateResult, error) {
	return r.PatchOne(ctx, bson.M{"_id": id}, fields, opts)
}

// ReplaceOne swaps the whole matched document for replacement. An empty
// replacement is a documented no-op returning (nil, nil) rather than an
// error: a zero-field replacement would silently wipe the document, which no
// caller has ever meant.
func (r *MongoRepository[T]) ReplaceOne(ctx context.Context, filter bson.M, replacement T, opts *ReplaceOptions) (*mongo.UpdateResult, error) {
	opts = opts.orDefault()

	empty, err := isEmptyDocument(replacement)
	if err != nil {
		return nil, err
	}
	if empty {
		r.logOp(opts.Debug, "replace one skipped: empty replacement")
		return nil, nil
	}

	payload, err := mergeDocument(replacement, produceMetadata(opts.CreateMeta))
	if err != nil {
		return nil, err
	}

	r.logOp(opts.Debug, "replace one")
	res, err := r.collection.ReplaceOne(operationContext(ctx, opts.Session), filter, payload)
	if err != nil {
		return nil, err
	}

	if res.MatchedCount > 0 {
		r.logAudit(ctx, "replace", filter, nil, payload)
	}
	r.afterWrite(ctx, "replace", filter, opts.Session)

	return res, nil
}

// DeleteOne removes the first match permanently. Soft-deleted documents are
// still matched: a hard delete is a hard delete.
func (r *MongoRepository[T]) DeleteOne(ctx context.Context, filter bson.M, opts *DeleteOptions) (*mongo.DeleteResult, error) {
	opts = opts.orDefault()

	r.logOp(opts.Debug, "delete one")
	res, err := r.collection.DeleteOne(operationContext(ctx, opts.Session), filter)
	if err != nil {
		return nil, err
	}

	if res.DeletedCount > 0 {
		r.logAudit(ctx, "delete", filter, nil, nil)
	}
	r.afterWrite(ctx, "delete", filter, opts.Session)

	return res, nil
}

func (r *MongoRepository[T]) DeleteMany(ctx context.Context, filter bson.M, opts *DeleteOptions) (*mongo.DeleteResult, error) {
	opts = opts.orDefault()

	r.logOp(opts.Debug, "delete many")
	res, err := r.collection.DeleteMany(operationContext(ctx, opts.Session), filter)
	if err != nil {
		return nil, err
	}

	if res.DeletedCount > 0 {
		r.logAudit(ctx, "delete", filter, nil, nil)
	}
	r.afterWrite(ctx, "delete", filter, opts.Session)

	return res, nil
}

// SoftDeleteOne stamps the deletion marker instead of removing anything. The
// document stays findable with IncludeDeleted and recoverable by unsetting
// the marker.
func (r *MongoRepository[T]) SoftDeleteOne(ctx context.Context, filter bson.M, opts *UpdateOptions) (*mongo.UpdateResult, error) {
	return r.UpdateOne(ctx, filter, softDeleteUpdate(time.Now()), opts)
}

func (r *MongoRepository[T]) SoftDeleteMany(ctx context.Context, filter bson.M, opts *UpdateOptions) (*mongo.UpdateResult, error) {
	return r.UpdateMany(ctx, filter, softDeleteUpdate(time.Now()), opts)
}

func softDeleteUpdate(now time.Time) bson.M {
	return bson.M{"$set": bson.M{FieldDeletedAt: now}}
}

func (r *MongoRepository[T]) CountDocuments(ctx context.Context, filter bson.M, opts *CountOptions) (int64, error) {
	opts = opts.orDefault()
	scoped := withVisibility(filter, opts.IncludeDeleted)

	r.logOp(opts.Debug, "count documents", "includeDeleted", opts.IncludeDeleted)

	return r.collection.CountDocuments(operationContext(ctx, opts.Session), scoped)
}

// The operations below pass straight through: no metadata, no visibility
// rule. Pipelines and bulk models reach the driver exactly as written.

func (r *MongoRepository[T]) Aggregate(ctx context.Context, pipeline interface{}, opts *RawOptions) (*mongo.Cursor, error) {
	opts = opts.orDefault()
	r.logOp(opts.Debug, "aggregate")
	return r.collection.Aggregate(operationContext(ctx, opts.Session), pipeline)
}

func (r *MongoRepository[T]) Distinct(ctx context.Context, fieldName string, filter bson.M, opts *RawOptions) ([]interface{}, error) {
	opts = opts.orDefault()
	r.logOp(opts.Debug, "distinct", "field", fieldName)
	return r.collection.Distinct(operationContext(ctx, opts.Session), fieldName, filter)
}

func (r *MongoRepository[T]) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts *RawOptions) (*mongo.BulkWriteResult, error) {
	opts = opts.orDefault()

	r.logOp(opts.Debug, "bulk write", "count", len(models))
	res, err := r.collection.BulkWrite(operationContext(ctx, opts.Session), models)
	if err != nil {
		return nil, err
	}

	r.afterWrite(ctx, "bulk", nil, opts.Session)

	return res, nil
}

func (r *MongoRepository[T]) CreateIndex(ctx context.Context, keys interface{}, indexOpts *options.IndexOptions, opts *RawOptions) (string, error) {
	opts = opts.orDefault()

	r.logOp(opts.Debug, "create index")
	return r.collection.Indexes().CreateOne(operationContext(ctx, opts.Session), mongo.IndexModel{
		Keys:    keys,
		Options: indexOpts,
	})
}

// SetExpireAfterInsert installs a TTL index on created_at so the server
// evicts documents the given number of seconds after insertion.
func (r *MongoRepository[T]) SetExpireAfterInsert(ctx context.Context, seconds int32) error {
	_, err := r.CreateIndex(ctx, bson.M{"created_at": 1}, options.Index().SetExpireAfterSeconds(seconds), nil)
	return err
}

func (r *MongoRepository[T]) cacheKey(key string) string {
	return r.collection.Name() + ":" + key
}

func (r *MongoRepository[T]) logOp(debug bool, msg string, args ...any) {
	if !r.debug && !debug {
		return
	}
	r.logger.Debug(msg, append([]any{"collection", r.collection.Name()}, args...)...)
}

// afterWrite runs the side effects of a successful write: cache invalidation
// for the whole collection and a change event. Writes inside a transaction
// skip the event since the caller may still abort; invalidation is safe
// either way.
func (r *MongoRepository[T]) afterWrite(ctx context.Context, action string, ref interface{}, txn *Transaction) {
	if r.cache != nil {
		r.cache.Delete(ctx, r.cacheKey("*"))
	}

	if r.events != nil && txn == nil {
		event := &ChangeEvent{
			Collection: r.collection.Name(),
			Action:     action,
			Reference:  ref,
			Timestamp:  time.Now(),
		}
		if err := r.events.PublishChange(ctx, event); err != nil {
			r.logger.Warn("change event publish failed", "collection", r.collection.Name(), "action", action, "error", err)
		}
	}
}

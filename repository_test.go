package zenstore

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// testClient builds a driver client without performing any I/O; the driver
// only dials once an operation runs, and these tests never run one.
func testClient(t *testing.T) *mongo.Client {
	t.Helper()
	client, err := mongo.NewClient(options.Client().ApplyURI("mongodb://localhost:27017"))
	if err != nil {
		t.Fatalf("failed to build client: %v", err)
	}
	return client
}

func TestNewMongoRepository_Binding(t *testing.T) {
	repo := NewMongoRepository[bson.M](testClient(t), "appdb", "users")

	if repo.Collection().Name() != "users" {
		t.Fatalf("expected collection users, got %s", repo.Collection().Name())
	}
	if repo.database.Name() != "appdb" {
		t.Fatalf("expected database appdb, got %s", repo.database.Name())
	}
}

func TestWithBuilders_CloneNotMutate(t *testing.T) {
	repo := NewMongoRepository[bson.M](testClient(t), "appdb", "users")

	authored := repo.WithAuthor("u1", "Alice")
	audited := authored.WithAudit(true)
	debugged := audited.WithDebug(true)

	if repo.userID != "" || repo.auditLog || repo.debug {
		t.Fatal("builders mutated the original repository")
	}
	if authored.userID != "u1" || authored.username != "Alice" {
		t.Fatalf("WithAuthor not applied: %q/%q", authored.userID, authored.username)
	}
	if !audited.auditLog {
		t.Fatal("WithAudit not applied")
	}
	if !debugged.debug {
		t.Fatal("WithDebug not applied")
	}
	if debugged.Collection().Name() != "users" {
		t.Fatal("clone lost its collection binding")
	}
}

func TestReplaceOne_EmptyReplacementIsNoop(t *testing.T) {
	repo := NewMongoRepository[bson.M](testClient(t), "appdb", "users")

	res, err := repo.ReplaceOne(context.Background(), bson.M{"name": "Alice"}, bson.M{}, nil)
	if err != nil {
		t.Fatalf("expected silent no-op, got error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil result, got %v", res)
	}

	// same outcome when a metadata producer is configured: emptiness is
	// judged on the caller's replacement, before stamping
	res, err = repo.ReplaceOne(context.Background(), bson.M{"name": "Alice"}, bson.M{}, &ReplaceOptions{
		CreateMeta: CreateStamp("u1"),
	})
	if err != nil || res != nil {
		t.Fatalf("expected no-op with producer set, got %v, %v", res, err)
	}
}

func TestSoftDeleteUpdate_Shape(t *testing.T) {
	now := time.Now()
	update := softDeleteUpdate(now)

	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatalf("expected $set clause, got %v", update)
	}
	if set[FieldDeletedAt] != now {
		t.Fatalf("expected %s=%v, got %v", FieldDeletedAt, now, set[FieldDeletedAt])
	}
	if len(set) != 1 {
		t.Fatalf("soft delete must only touch the marker, got %v", set)
	}
}

func TestCacheKey_CollectionScoped(t *testing.T) {
	users := NewMongoRepository[bson.M](testClient(t), "appdb", "users")
	orders := NewMongoRepository[bson.M](testClient(t), "appdb", "orders")

	if users.cacheKey("first:x") == orders.cacheKey("first:x") {
		t.Fatal("cache keys must be collection scoped")
	}
}

func TestAfterWrite_InvalidatesCollectionEntries(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	repo := NewMongoRepository[bson.M](testClient(t), "appdb", "users").WithCache(cache)

	ctx := context.Background()
	cache.Set(ctx, repo.cacheKey("first:a"), []byte("x"), time.Minute)
	cache.Set(ctx, "orders:first:a", []byte("y"), time.Minute)

	repo.afterWrite(ctx, "update", nil, nil)

	if _, ok := cache.Get(ctx, repo.cacheKey("first:a")); ok {
		t.Fatal("expected own collection entries invalidated")
	}
	if _, ok := cache.Get(ctx, "orders:first:a"); !ok {
		t.Fatal("other collections must keep their entries")
	}
}

type capturingPublisher struct {
	events []*ChangeEvent
}

func (p *capturingPublisher) PublishChange(ctx context.Context, event *ChangeEvent) error {
	p.events = append(p.events, event)
	return nil
}

func TestAfterWrite_Events(t *testing.T) {
	pub := &capturingPublisher{}
	repo := NewMongoRepository[bson.M](testClient(t), "appdb", "users").WithEvents(pub)

	repo.afterWrite(context.Background(), "insert", "id1", nil)
	if len(pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(pub.events))
	}
	if pub.events[0].Action != "insert" || pub.events[0].Collection != "users" {
		t.Fatalf("unexpected event: %+v", pub.events[0])
	}

	// writes joined to a transaction stay silent until the caller commits
	repo.afterWrite(context.Background(), "update", nil, &Transaction{})
	if len(pub.events) != 1 {
		t.Fatal("transactional write must not publish an event")
	}
}

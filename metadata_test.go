package zenstore

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func TestMergeDocument_NoMetadata(t *testing.T) {
	doc := bson.M{"name": "Alice", "age": 30}

	merged, err := mergeDocument(doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, ok := merged.(bson.M)
	if !ok {
		t.Fatalf("expected pass-through bson.M, got %T", merged)
	}
	if out["name"] != "Alice" || out["age"] != 30 {
		t.Fatalf("document changed without metadata: %v", out)
	}
}

func TestMergeDocument_MetadataWins(t *testing.T) {
	doc := bson.M{"name": "Alice", "age": 30}
	meta := bson.M{"age": 31, "editedBy": "system"}

	merged, err := mergeDocument(doc, meta)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, ok := merged.(bson.M)
	if !ok {
		t.Fatalf("expected bson.M, got %T", merged)
	}
	if out["name"] != "Alice" {
		t.Fatalf("expected name=Alice, got %v", out["name"])
	}
	if out["age"] != 31 {
		t.Fatalf("expected metadata to win on age, got %v", out["age"])
	}
	if out["editedBy"] != "system" {
		t.Fatalf("expected editedBy=system, got %v", out["editedBy"])
	}
}

func TestMergeDocument_StructInput(t *testing.T) {
	type user struct {
		Name string `bson:"name"`
		Age  int    `bson:"age"`
	}

	merged, err := mergeDocument(user{Name: "Ken", Age: 40}, bson.M{"created_by": "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out, ok := merged.(bson.M)
	if !ok {
		t.Fatalf("expected bson.M, got %T", merged)
	}
	if out["name"] != "Ken" {
		t.Fatalf("expected name=Ken, got %v", out["name"])
	}
	if out["created_by"] != "u1" {
		t.Fatalf("expected created_by=u1, got %v", out["created_by"])
	}
}

func TestMergeUpdateSet(t *testing.T) {
	update := bson.M{"$set": bson.M{"age": 31}, "$unset": bson.M{"nick": ""}}
	meta := bson.M{"updated_by": "system", "age": 32}

	merged := mergeUpdateSet(update, meta)

	set, ok := merged["$set"].(bson.M)
	if !ok {
		t.Fatalf("expected $set clause, got %T", merged["$set"])
	}
	if set["age"] != 32 {
		t.Fatalf("expected metadata to win on age, got %v", set["age"])
	}
	if set["updated_by"] != "system" {
		t.Fatalf("expected updated_by=system, got %v", set["updated_by"])
	}
	if _, ok := merged["$unset"]; !ok {
		t.Fatal("expected $unset clause preserved")
	}

	// caller's maps stay untouched
	if originalSet := update["$set"].(bson.M); originalSet["age"] != 31 {
		t.Fatalf("caller's $set mutated: %v", originalSet)
	}
	if _, ok := update["$set"].(bson.M)["updated_by"]; ok {
		t.Fatal("caller's $set gained metadata")
	}
}

func TestMergeUpdateSet_NoSetClause(t *testing.T) {
	merged := mergeUpdateSet(bson.M{"$inc": bson.M{"count": 1}}, bson.M{"updated_by": "system"})

	set, ok := merged["$set"].(bson.M)
	if !ok {
		t.Fatalf("expected synthesized $set clause, got %T", merged["$set"])
	}
	if set["updated_by"] != "system" {
		t.Fatalf("expected updated_by=system, got %v", set["updated_by"])
	}
}

func TestMergeUpdateSet_NoMetadata(t *testing.T) {
	update := bson.M{"$set": bson.M{"age": 31}}
	merged := mergeUpdateSet(update, nil)
	if len(merged) != 1 {
		t.Fatalf("expected update unchanged, got %v", merged)
	}
}

func TestWithVisibility_Default(t *testing.T) {
	filter := bson.M{"name": "Alice"}

	scoped := withVisibility(filter, false)

	marker, ok := scoped[FieldDeletedAt].(bson.M)
	if !ok {
		t.Fatalf("expected soft-delete predicate, got %v", scoped[FieldDeletedAt])
	}
	if marker["$exists"] != false {
		t.Fatalf("expected $exists=false, got %v", marker)
	}
	if _, ok := filter[FieldDeletedAt]; ok {
		t.Fatal("caller's filter mutated")
	}
}

func TestWithVisibility_IncludeDeleted(t *testing.T) {
	scoped := withVisibility(bson.M{"name": "Alice"}, true)
	if _, ok := scoped[FieldDeletedAt]; ok {
		t.Fatal("includeDeleted must not add the marker predicate")
	}
}

func TestWithVisibility_CallerPredicateKept(t *testing.T) {
	scoped := withVisibility(bson.M{FieldDeletedAt: bson.M{"$exists": true}}, false)

	marker := scoped[FieldDeletedAt].(bson.M)
	if marker["$exists"] != true {
		t.Fatalf("caller's own marker predicate was overridden: %v", marker)
	}
}

func TestIsEmptyDocument(t *testing.T) {
	cases := []struct {
		name string
		doc  interface{}
		want bool
	}{
		{"nil", nil, true},
		{"nil map", bson.M(nil), true},
		{"empty map", bson.M{}, true},
		{"empty struct", struct{}{}, true},
		{"populated map", bson.M{"name": "Alice"}, false},
		{"populated struct", struct {
			Name string `bson:"name"`
		}{Name: "Alice"}, false},
	}

	for _, tc := range cases {
		got, err := isEmptyDocument(tc.doc)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestApplyMetadata(t *testing.T) {
	type user struct {
		Name string
		BaseDocument
	}

	u := &user{Name: "Alice"}
	ApplyMetadata(u, false, "u1")

	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Fatal("expected creation timestamps stamped")
	}
	if u.CreatedBy != "u1" {
		t.Fatalf("expected created_by=u1, got %q", u.CreatedBy)
	}

	created := u.CreatedAt
	time.Sleep(time.Millisecond)
	ApplyMetadata(u, true, "u2")

	if !u.CreatedAt.Equal(created) {
		t.Fatal("update must not touch created_at")
	}
	if !u.UpdatedAt.After(created) {
		t.Fatal("expected updated_at to advance")
	}
	if u.UpdatedBy != "u2" {
		t.Fatalf("expected updated_by=u2, got %q", u.UpdatedBy)
	}
}

func TestStockProducers(t *testing.T) {
	meta := CreateStamp("u1")()
	if _, ok := meta["created_at"]; !ok {
		t.Fatal("expected created_at from CreateStamp")
	}
	if meta["created_by"] != "u1" {
		t.Fatalf("expected created_by=u1, got %v", meta["created_by"])
	}

	meta = UpdateStamp("")()
	if _, ok := meta["updated_at"]; !ok {
		t.Fatal("expected updated_at from UpdateStamp")
	}
	if _, ok := meta["updated_by"]; ok {
		t.Fatal("anonymous UpdateStamp must not set updated_by")
	}
}

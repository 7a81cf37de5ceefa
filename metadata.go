package zenstore

import (
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
)

// MetadataProducer returns a partial document merged into writes. Producers
// for inserts and replacements stamp creation metadata; producers for updates
// stamp edit metadata. A producer is invoked at most once per operation and
// its fields win on key collision with caller data.
type MetadataProducer func() bson.M

// FieldDeletedAt marks a document as logically deleted. A document without
// the field is live; SoftDeleteOne/SoftDeleteMany set it and the default read
// visibility excludes documents that carry it.
const FieldDeletedAt = "deleted_at"

func produceMetadata(p MetadataProducer) bson.M {
	if p == nil {
		return nil
	}
	return p()
}

// mergeDocument overlays meta onto doc. With no metadata the document passes
// through untouched so the driver sees the caller's original value.
func mergeDocument[T any](doc T, meta bson.M) (interface{}, error) {
	if len(meta) == 0 {
		return doc, nil
	}

	raw, err := MarshalWithRegistry(doc)
	if err != nil {
		return nil, err
	}

	merged := bson.M{}
	if err := UnmarshalWithRegistry(raw, &merged); err != nil {
		return nil, err
	}

	for k, v := range meta {
		merged[k] = v
	}

	return merged, nil
}

// mergeUpdateSet merges meta into the $set clause of update without mutating
// the caller's maps.
func mergeUpdateSet(update bson.M, meta bson.M) bson.M {
	if len(meta) == 0 {
		return update
	}

	merged := bson.M{}
	for k, v := range update {
		merged[k] = v
	}

	set := bson.M{}
	switch existing := merged["$set"].(type) {
	case bson.M:
		for k, v := range existing {
			set[k] = v
		}
	case map[string]interface{}:
		for k, v := range existing {
			set[k] = v
		}
	}

	for k, v := range meta {
		set[k] = v
	}

	merged["$set"] = set
	return merged
}

// withVisibility conjoins the soft-delete rule onto filter. A caller that
// already filters on the marker field keeps its own predicate.
func withVisibility(filter bson.M, includeDeleted bool) bson.M {
	scoped := bson.M{}
	for k, v := range filter {
		scoped[k] = v
	}

	if includeDeleted {
		return scoped
	}

	if _, hasMarkerFilter := scoped[FieldDeletedAt]; !hasMarkerFilter {
		scoped[FieldDeletedAt] = bson.M{"$exists": false}
	}

	return scoped
}

func isEmptyDocument(doc interface{}) (bool, error) {
	if doc == nil {
		return true, nil
	}

	rv := reflect.ValueOf(doc)
	if (rv.Kind() == reflect.Map || rv.Kind() == reflect.Ptr) && rv.IsNil() {
		return true, nil
	}

	raw, err := MarshalWithRegistry(doc)
	if err != nil {
		return false, err
	}

	elements, err := bson.Raw(raw).Elements()
	if err != nil {
		return false, err
	}

	return len(elements) == 0, nil
}

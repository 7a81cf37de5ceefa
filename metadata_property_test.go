package zenstore

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.mongodb.org/mongo-driver/bson"
)

// Property: for every document D and metadata M, the merged write holds M's
// value for every key M names and D's value for every other key, and the
// producer contributes nothing else.
func TestProperty_MetadataMergePrecedence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("metadata wins on collision, document otherwise", prop.ForAll(
		func(doc map[string]string, meta map[string]string) bool {
			docM := bson.M{}
			for k, v := range doc {
				docM[k] = v
			}
			metaM := bson.M{}
			for k, v := range meta {
				metaM[k] = v
			}

			merged, err := mergeDocument(docM, metaM)
			if err != nil {
				return false
			}

			out, ok := merged.(bson.M)
			if !ok {
				return false
			}

			for k, v := range meta {
				if out[k] != v {
					return false
				}
			}
			for k, v := range doc {
				if _, overridden := meta[k]; overridden {
					continue
				}
				if out[k] != v {
					return false
				}
			}
			return len(out) <= len(doc)+len(meta)
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.Property("soft-delete predicate conjoined exactly once", prop.ForAll(
		func(filter map[string]string) bool {
			filterM := bson.M{}
			for k, v := range filter {
				filterM[k] = v
			}

			scoped := withVisibility(filterM, false)

			marker, ok := scoped[FieldDeletedAt].(bson.M)
			if _, callerOwned := filter[FieldDeletedAt]; callerOwned {
				return scoped[FieldDeletedAt] == filterM[FieldDeletedAt]
			}
			return ok && marker["$exists"] == false && len(scoped) == len(filter)+1
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}

package zenstore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

type BaseDocument struct {
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
	CreatedBy string     `bson:"created_by,omitempty" json:"created_by,omitempty"`
	UpdatedBy string     `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
}

func (b *BaseDocument) SetCreatedAt(t time.Time)   { b.CreatedAt = t }
func (b *BaseDocument) SetUpdatedAt(t time.Time)   { b.UpdatedAt = t }
func (b *BaseDocument) SetCreatedBy(userID string) { b.CreatedBy = userID }
func (b *BaseDocument) SetUpdatedBy(userID string) { b.UpdatedBy = userID }

type Timestampable interface {
	SetCreatedAt(time.Time)
	SetUpdatedAt(time.Time)
}

type Authorable interface {
	SetCreatedBy(string)
	SetUpdatedBy(string)
}

type Documentable interface {
	Timestampable
	Authorable
}

// ApplyMetadata stamps doc in place through the optional interfaces above.
// Callers that keep audit fields on their structs get stamping without a
// producer callback.
func ApplyMetadata[T any](doc T, isUpdate bool, userID string) T {
	now := time.Now()

	if ts, ok := any(doc).(Timestampable); ok {
		if !isUpdate {
			ts.SetCreatedAt(now)
		}
		ts.SetUpdatedAt(now)
	}

	if auth, ok := any(doc).(Authorable); ok && userID != "" {
		if !isUpdate {
			auth.SetCreatedBy(userID)
		} else {
			auth.SetUpdatedBy(userID)
		}
	}

	return doc
}

// CreateStamp is a stock create-metadata producer: creation and update
// timestamps plus the acting user when known.
func CreateStamp(userID string) MetadataProducer {
	return func() bson.M {
		now := time.Now()
		meta := bson.M{"created_at": now, "updated_at": now}
		if userID != "" {
			meta["created_by"] = userID
		}
		return meta
	}
}

// UpdateStamp is the stock update-metadata producer counterpart.
func UpdateStamp(userID string) MetadataProducer {
	return func() bson.M {
		meta := bson.M{"updated_at": time.Now()}
		if userID != "" {
			meta["updated_by"] = userID
		}
		return meta
	}
}

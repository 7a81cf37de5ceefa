package zenstore

import (
	"context"
	"fmt"
	"time"
)

// AuditCollection receives one row per audited write, in the same database
// as the repository's own collection.
const AuditCollection = "audit_logs"

type AuditLog struct {
	ID         string                 `bson:"_id,omitempty" json:"id"`
	Action     string                 `bson:"action" json:"action"`
	Collection string                 `bson:"collection" json:"collection"`
	RecordID   string                 `bson:"record_id" json:"record_id"`
	UserID     string                 `bson:"user_id" json:"user_id"`
	Username   string                 `bson:"username" json:"username"`
	Changes    map[string]interface{} `bson:"changes" json:"changes"`
	Timestamp  time.Time              `bson:"timestamp" json:"timestamp"`
}

// WithAudit returns a repository that records every write into the
// audit_logs collection alongside the data itself.
func (r *MongoRepository[T]) WithAudit(enabled bool) *MongoRepository[T] {
	clone := *r
	clone.auditLog = enabled
	return &clone
}

func (r *MongoRepository[T]) logAudit(ctx context.Context, action string, id interface{}, oldData, newData interface{}) {
	if !r.auditLog {
		return
	}

	audit := AuditLog{
		Action:     action,
		Collection: r.collection.Name(),
		RecordID:   toString(id),
		UserID:     r.userID,
		Username:   r.username,
		Changes:    extractChanges(oldData, newData),
		Timestamp:  time.Now(),
	}

	// Audit rows are best effort; a failed insert never fails the write
	// being audited.
	_, _ = r.database.Collection(AuditCollection).InsertOne(ctx, audit)
}

func toString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func extractChanges(oldData, newData interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	if oldData != nil {
		result["old"] = oldData
	}
	if newData != nil {
		result["new"] = newData
	}
	return result
}

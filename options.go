package zenstore

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// Every operation takes a pointer to one of the option structs below. A nil
// pointer means all defaults: no metadata stamped, no transaction joined,
// soft-deleted documents hidden, logging at the repository's own level.

type InsertOptions struct {
	// CreateMeta is merged over each inserted document.
	CreateMeta MetadataProducer
	// Session joins the write to a caller-owned transaction.
	Session *Transaction
	// Debug forces debug logging for this call regardless of the
	// repository-level setting.
	Debug bool
}

type FindOptions struct {
	// IncludeDeleted bypasses the soft-delete visibility rule.
	IncludeDeleted bool
	Session        *Transaction
	Debug          bool
}

type UpdateOptions struct {
	// UpdateMeta is merged into the update's $set clause.
	UpdateMeta MetadataProducer
	Session    *Transaction
	Debug      bool
}

type ReplaceOptions struct {
	// CreateMeta is merged over the replacement document, mirroring inserts.
	CreateMeta MetadataProducer
	Session    *Transaction
	Debug      bool
}

type DeleteOptions struct {
	Session *Transaction
	Debug   bool
}

type CountOptions struct {
	IncludeDeleted bool
	Session        *Transaction
	Debug          bool
}

// RawOptions covers the pass-through operations (BulkWrite, Aggregate,
// Distinct, CreateIndex) which apply no metadata or visibility policy.
type RawOptions struct {
	Session *Transaction
	Debug   bool
}

func (o *InsertOptions) orDefault() *InsertOptions {
	if o == nil {
		return &InsertOptions{}
	}
	return o
}

func (o *FindOptions) orDefault() *FindOptions {
	if o == nil {
		return &FindOptions{}
	}
	return o
}

func (o *UpdateOptions) orDefault() *UpdateOptions {
	if o == nil {
		return &UpdateOptions{}
	}
	return o
}

func (o *ReplaceOptions) orDefault() *ReplaceOptions {
	if o == nil {
		return &ReplaceOptions{}
	}
	return o
}

func (o *DeleteOptions) orDefault() *DeleteOptions {
	if o == nil {
		return &DeleteOptions{}
	}
	return o
}

func (o *CountOptions) orDefault() *CountOptions {
	if o == nil {
		return &CountOptions{}
	}
	return o
}

func (o *RawOptions) orDefault() *RawOptions {
	if o == nil {
		return &RawOptions{}
	}
	return o
}

// operationContext binds ctx to the transaction's server session when one was
// supplied. Membership is never inferred: no session option, no transaction.
func operationContext(ctx context.Context, txn *Transaction) context.Context {
	if txn == nil || txn.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, txn.session)
}

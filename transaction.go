package zenstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Transaction is a caller-owned handle over a server session with an open
// transaction. Operations join it only when passed through the Session
// option; nothing here enrolls an operation implicitly. Commit or Abort ends
// the session either way; using the handle afterwards is a caller error the
// driver reports.
type Transaction struct {
	session mongo.Session
}

// StartTransaction opens a session on the repository's client and starts a
// transaction on it.
func (r *MongoRepository[T]) StartTransaction(ctx context.Context, txnOpts ...*options.TransactionOptions) (*Transaction, error) {
	sess, err := r.client.StartSession()
	if err != nil {
		return nil, err
	}

	if err := sess.StartTransaction(txnOpts...); err != nil {
		sess.EndSession(ctx)
		return nil, err
	}

	return &Transaction{session: sess}, nil
}

func (t *Transaction) Commit(ctx context.Context) error {
	if t == nil || t.session == nil {
		return errors.New("zenstore: commit on nil transaction")
	}
	defer t.session.EndSession(ctx)
	return t.session.CommitTransaction(ctx)
}

// Abort discards every write performed under this transaction's session.
func (t *Transaction) Abort(ctx context.Context) error {
	if t == nil || t.session == nil {
		return errors.New("zenstore: abort on nil transaction")
	}
	defer t.session.EndSession(ctx)
	return t.session.AbortTransaction(ctx)
}

// Session exposes the underlying driver session for callers that need
// driver-level control.
func (t *Transaction) Session() mongo.Session {
	if t == nil {
		return nil
	}
	return t.session
}

// WithTransaction runs fn inside a driver-managed transaction: committed when
// fn returns nil, aborted otherwise, with the driver's own retry handling for
// transient errors. Operations inside fn must use the given session context.
func (r *MongoRepository[T]) WithTransaction(ctx context.Context, fn func(sessCtx mongo.SessionContext) (interface{}, error), txnOpts ...*options.TransactionOptions) (interface{}, error) {
	sess, err := r.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer sess.EndSession(ctx)

	return sess.WithTransaction(ctx, fn, txnOpts...)
}

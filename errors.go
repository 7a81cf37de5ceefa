package zenstore

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// ConnectionError reports a failed handshake against a cluster. The registry
// never caches a client after one of these, so the next lookup retries.
type ConnectionError struct {
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("zenstore: connect %q: %v", e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Write and query failures are surfaced verbatim from the driver: no
// translation, no retries. The helpers below only classify.

func IsDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

func IsWriteError(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		return true
	}
	var bwe mongo.BulkWriteException
	return errors.As(err, &bwe)
}

func IsQueryError(err error) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce)
}

// IsTransient reports whether the server labelled the failure as a transient
// transaction error, i.e. the caller may abort and run the transaction again.
func IsTransient(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorLabel("TransientTransactionError")
}

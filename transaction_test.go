package zenstore

import (
	"context"
	"testing"
)

func TestTransaction_NilHandleGuards(t *testing.T) {
	var txn *Transaction

	if err := txn.Commit(context.Background()); err == nil {
		t.Fatal("expected error committing nil transaction")
	}
	if err := txn.Abort(context.Background()); err == nil {
		t.Fatal("expected error aborting nil transaction")
	}
	if txn.Session() != nil {
		t.Fatal("expected nil session from nil transaction")
	}
}

func TestTransaction_EmptyHandleGuards(t *testing.T) {
	txn := &Transaction{}

	if err := txn.Commit(context.Background()); err == nil {
		t.Fatal("expected error committing without a session")
	}
	if err := txn.Abort(context.Background()); err == nil {
		t.Fatal("expected error aborting without a session")
	}
	if txn.Session() != nil {
		t.Fatal("expected nil session from empty transaction")
	}
}

package zenstore

import "testing"

func TestNewLogger(t *testing.T) {
	l := NewLogger(true)
	if l == nil {
		t.Fatal("expected logger")
	}
	l.Debug("debug message", "key", "value")
	l.Info("info message")

	child := l.With("component", "tests")
	if child == l {
		t.Fatal("expected With to return a new logger")
	}
	child.Warn("warn message")
}

func TestNewNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("dropped")
	l.Error("dropped")
	if err := l.Sync(); err != nil {
		t.Fatalf("unexpected sync error: %v", err)
	}
}

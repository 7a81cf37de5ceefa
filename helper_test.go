package zenstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGetContextHeader_PlainContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), XAUTHOR, "ana")

	if got := GetContextHeader(ctx, XAUTHOR); got != "ana" {
		t.Fatalf("expected ana, got %q", got)
	}
	if got := GetContextHeader(ctx, XAUTHORID); got != "" {
		t.Fatalf("expected empty for missing key, got %q", got)
	}
	if got := GetContextHeader(ctx, XAUTHORID, XAUTHOR); got != "ana" {
		t.Fatalf("expected fallback to second key, got %q", got)
	}
}

func TestGetContextHeader_PubSubContext(t *testing.T) {
	ctx := &PubSubContext{
		Context: context.Background(),
		Msg: &PubSubMessage{
			Attributes: map[string]string{XAUTHORID: "42"},
		},
	}

	if got := GetContextHeader(ctx, XAUTHORID); got != "42" {
		t.Fatalf("expected 42, got %q", got)
	}
}

func TestEventAttributes_SeedsCorrelationAndTimestamp(t *testing.T) {
	attrs := eventAttributes(context.Background(), nil)

	if _, err := uuid.Parse(attrs[XCORRELATIONID]); err != nil {
		t.Fatalf("expected correlation id to be a uuid: %v", err)
	}
	if _, err := time.Parse(time.RFC3339, attrs[XCREATEDAT]); err != nil {
		t.Fatalf("expected RFC3339 created-at: %v", err)
	}
}

func TestEventAttributes_PreservesProvided(t *testing.T) {
	attrs := eventAttributes(context.Background(), map[string]string{
		XCORRELATIONID: "corr-1",
		XCREATEDAT:     "2026-01-02T03:04:05Z",
	})

	if attrs[XCORRELATIONID] != "corr-1" {
		t.Fatalf("expected provided correlation kept, got %q", attrs[XCORRELATIONID])
	}
	if attrs[XCREATEDAT] != "2026-01-02T03:04:05Z" {
		t.Fatalf("expected provided created-at kept, got %q", attrs[XCREATEDAT])
	}
}

func TestEventAttributes_CopiesAuthorFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), XAUTHOR, "ana")
	ctx = context.WithValue(ctx, XAUTHORID, "42")

	attrs := eventAttributes(ctx, nil)

	if attrs[XAUTHOR] != "ana" || attrs[XAUTHORID] != "42" {
		t.Fatalf("expected author headers copied, got %v", attrs)
	}
}

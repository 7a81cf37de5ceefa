package zenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	XAUTHOR        string = "X-Author"
	XAUTHORID      string = "X-Author-Id"
	XCORRELATIONID string = "X-Correlation-Id"
	XCREATEDAT     string = "X-CreatedAt"
)

// GetContextHeader resolves the first non-empty value for keys from whatever
// context flavor the call arrived on: a gin request, a Pub/Sub delivery, or
// a plain context carrying values.
func GetContextHeader(c context.Context, keys ...string) string {
	for _, key := range keys {
		switch c := c.(type) {
		case *gin.Context:
			if v := c.Request.Header.Get(key); v != "" {
				return v
			}
		case *PubSubContext:
			if v, ok := c.Msg.Attributes[key]; ok && v != "" {
				return v
			}
		default:
			if v := c.Value(key); v != nil {
				if s := fmt.Sprint(v); s != "" {
					return s
				}
			}
		}
	}

	return ""
}

// eventAttributes seeds correlation and timestamp attributes for an outgoing
// change event and copies author headers forward from the context.
func eventAttributes(ctx context.Context, attributes map[string]string) map[string]string {
	if attributes == nil {
		attributes = make(map[string]string)
	}

	if _, ok := attributes[XCORRELATIONID]; !ok {
		attributes[XCORRELATIONID] = uuid.NewString()
	}
	if _, ok := attributes[XCREATEDAT]; !ok {
		attributes[XCREATEDAT] = time.Now().Format(time.RFC3339)
	}

	for _, header := range []string{XAUTHOR, XAUTHORID} {
		if attributes[header] != "" {
			continue
		}
		if value := GetContextHeader(ctx, header); value != "" {
			attributes[header] = value
		}
	}

	return attributes
}

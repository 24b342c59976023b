package admin

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type requestIDKey struct{}

// TokenHeader returns the header name packsync admin clients must present
// their token in.
func TokenHeader() string {
	return tokenHeader
}

// newRequestID generates the id that ties a manifest operation's log line to
// its response headers.
func newRequestID() string {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(raw)
}

func withRequestID(ctx context.Context, reqID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, reqID)
}

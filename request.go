package main

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const requestIDKey contextKey = iota

func withRequestID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// requestIDFrom returns the id assigned by the request middleware, or a
// fresh one for contexts that never passed through it.
func requestIDFrom(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(requestIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.New()
}

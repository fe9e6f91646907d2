package worker

import (
	"context"
	"fmt"
)

// Identity of a pool worker, e.g. "agent-1-worker-3".
// Workers run one task at a time and are reused for the lifetime of the pool.
type ID string

type idKey struct{}

// Returns a copy of ctx carrying the identity of the worker running the task.
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// Returns the worker identity carried by ctx, if any.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(idKey{}).(ID)
	return id, ok && id != ""
}

// Formats the identity of the n:th worker of the k:th pool created with
// the given name. Pool numbers are process-wide so that concurrently
// running pools sharing a name never share worker identities.
func NewID(pool string, k int64, n int) ID {
	return ID(fmt.Sprintf("%s-%d-worker-%d", pool, k, n))
}

func (id ID) String() string {
	return string(id)
}

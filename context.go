package apiclient

import "context"

type contextKey[T any] struct{}

func withValue[T any](ctx context.Context, val T) context.Context {
	return context.WithValue(ctx, contextKey[T]{}, val)
}

func valueFrom[T any](ctx context.Context) (T, bool) {
	val, ok := ctx.Value(contextKey[T]{}).(T)
	return val, ok
}

// InvocationFrom returns the invocation a transport request belongs to. It
// is set on the context passed to Transport.Dispatch, so middleware can see
// which method is being called.
func InvocationFrom(ctx context.Context) (*Invocation, bool) {
	return valueFrom[*Invocation](ctx)
}

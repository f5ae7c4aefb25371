package context

import "context"

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	actorRoleKey ctxKey = "actor_role"
	actorIDKey   ctxKey = "actor_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithActor stores the upstream-authenticated actor on the context.
func WithActor(ctx context.Context, role, id string) context.Context {
	ctx = context.WithValue(ctx, actorRoleKey, role)
	return context.WithValue(ctx, actorIDKey, id)
}

func ActorFromContext(ctx context.Context) (role string, id string) {
	role, _ = ctx.Value(actorRoleKey).(string)
	id, _ = ctx.Value(actorIDKey).(string)
	return role, id
}

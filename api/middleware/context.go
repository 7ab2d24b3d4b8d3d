package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/pkg/enums"
)

type contextKey string

const (
	ctxSubjectID contextKey = "subject_id"
	ctxActorID   contextKey = "actor_id"
	ctxRole      contextKey = "actor_role"
)

func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSubjectID).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext returns the buyer/seller row id seeded by Auth. Admins
// carry the zero uuid.
func ActorFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxActorID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ActorRole); ok {
		return v
	}
	return ""
}

// WithActor injects the actor identity into the context. Used by Auth and by
// handler tests.
func WithActor(ctx context.Context, subjectID string, actorID uuid.UUID, role enums.ActorRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSubjectID, subjectID)
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	return context.WithValue(ctx, ctxRole, role)
}

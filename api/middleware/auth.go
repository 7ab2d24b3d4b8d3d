package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dealcrest/dealcrest-backend/api/responses"
	pkgauth "github.com/dealcrest/dealcrest-backend/pkg/auth"
	"github.com/dealcrest/dealcrest-backend/pkg/config"
	"github.com/dealcrest/dealcrest-backend/pkg/enums"
	pkgerrors "github.com/dealcrest/dealcrest-backend/pkg/errors"
	"github.com/dealcrest/dealcrest-backend/pkg/logger"
)

// ActorResolver maps identity claims to the local actor row. Satisfied by
// users.Service.
type ActorResolver interface {
	ResolveActor(ctx context.Context, subjectID, email, displayName string, role enums.ActorRole) (uuid.UUID, error)
}

// Auth validates a bearer token and seeds the request context with the
// resolved actor.
func Auth(cfg config.JWTConfig, resolver ActorResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if claims.Subject == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity subject"))
				return
			}
			if !claims.Role.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown actor role"))
				return
			}

			actorID := uuid.Nil
			if resolver != nil {
				actorID, err = resolver.ResolveActor(r.Context(), claims.Subject, claims.Email, claims.Name, claims.Role)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
			}

			ctx := WithActor(r.Context(), claims.Subject, actorID, claims.Role)
			if logg != nil {
				ctx = logg.WithFields(ctx, map[string]any{
					"subject_id": claims.Subject,
					"actor_role": claims.Role.String(),
				})
				if actorID != uuid.Nil {
					ctx = logg.WithUserID(ctx, actorID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

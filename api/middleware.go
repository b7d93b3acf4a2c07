package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/creative-boost/credits"
)

// Actor headers set by the authenticating proxy in front of the API.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
)

type actorKey struct{}

// ActorMiddleware stores the request's actor in the context. Requests without
// an actor header are attributed to credits.SystemActor.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := credits.SystemActor
		if id := strings.TrimSpace(r.Header.Get(HeaderActorID)); id != "" {
			actor = credits.Actor{ID: id, FullName: strings.TrimSpace(r.Header.Get(HeaderActorName))}
			if actor.FullName == "" {
				actor.FullName = id
			}
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func WithActor(ctx context.Context, actor credits.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by ActorMiddleware, or SystemActor.
func ActorFrom(ctx context.Context) credits.Actor {
	if actor, ok := ctx.Value(actorKey{}).(credits.Actor); ok {
		return actor
	}
	return credits.SystemActor
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				logger.Error("request", fields...)
				return
			}
			logger.Info("request", fields...)
		})
	}
}

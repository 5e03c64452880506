package middleware

import (
	"context"
	"net/http"
	"strings"

	"makerdesk/pkg/logger"
	"makerdesk/pkg/model"
	"makerdesk/pkg/permission"
)

const ActorKey contextKey = "actor"

// Identity headers set by the upstream identity service. The engine trusts
// them and performs no authentication of its own.
const (
	HeaderUserID         = "X-User-ID"
	HeaderMakerspaceID   = "X-Makerspace-ID"
	HeaderRole           = "X-Role"
	HeaderCertifications = "X-Certifications"
)

// ActorContext resolves the request to its (user, makerspace, role,
// certifications) tuple. Requests without a user or makerspace are rejected
// before reaching any handler.
func ActorContext(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
			makerspaceID := strings.TrimSpace(r.Header.Get(HeaderMakerspaceID))

			if userID == "" || makerspaceID == "" {
				log.Warn("Request without identity headers",
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"missing identity headers"}`))
				return
			}

			actor := model.Actor{
				UserID:         userID,
				MakerspaceID:   makerspaceID,
				Role:           permission.ParseRole(strings.TrimSpace(r.Header.Get(HeaderRole))),
				Certifications: parseCertifications(r.Header.Get(HeaderCertifications)),
			}

			ctx := context.WithValue(r.Context(), ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseCertifications(header string) map[string]string {
	certs := map[string]string{}
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// optional "name=level" form; bare names map to an empty level
		if name, level, found := strings.Cut(part, "="); found {
			certs[name] = level
		} else {
			certs[part] = ""
		}
	}
	return certs
}

// ActorFromContext returns the actor resolved by ActorContext. The second
// return is false on paths mounted without the middleware.
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(model.Actor)
	return actor, ok
}

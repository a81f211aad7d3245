package middleware

import (
	"net/http"
	"strings"

	"billing/pkg/requestcontext"
)

// HeaderActor names the user performing the request. The service has no
// authentication; the header only feeds audit fields.
const HeaderActor = "X-Actor"

const maxActorLength = 128

// Actor copies the X-Actor header into the request context. Commands that
// need an actor reject requests without one.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(HeaderActor))
		if len(actor) > maxActorLength {
			actor = actor[:maxActorLength]
		}
		if actor == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(r.Context(), actor)))
	})
}

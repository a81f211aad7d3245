package testutil

import (
	"net/http"

	"billing/pkg/requestcontext"
)

// WithActor adds the acting user to the request context.
// This simulates what the actor middleware does for the X-Actor header.
func WithActor(req *http.Request, actor string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

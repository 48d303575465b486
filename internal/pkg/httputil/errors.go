package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/storefront-auth/internal/pkg/ctxlog"
)

// ErrorMapping maps a sentinel error to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
	// Log records the error at error level before responding. Use it for
	// mapped server-side failures whose detail must stay out of the body.
	Log bool
}

// HandleError writes the first mapping matching err via errors.Is.
// Unmapped errors are logged and reported as 500.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if !errors.Is(err, m.Error) {
			continue
		}
		if m.Log {
			ctxlog.FromContext(ctx).Error("request failed", "status", m.Status, "error", err)
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		Error(w, m.Status, msg)
		return
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}

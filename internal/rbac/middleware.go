package rbac

import (
	"log/slog"
	"net/http"

	"github.com/learnhub/learnhub/internal/platform/httpx"
	"github.com/learnhub/learnhub/internal/shared"
)

// Middleware wires permission gates for HTTP handlers.
type Middleware struct {
	Engine    *Engine
	Localizer *Localizer
	Logger    *slog.Logger
}

// RequireAction lets the request through only when the current actor may perform action.
func (m Middleware) RequireAction(action Action) func(http.Handler) http.Handler {
	return m.RequireAll(action)
}

// RequireAny ensures the current actor is allowed at least one of the actions.
func (m Middleware) RequireAny(actions ...Action) func(http.Handler) http.Handler {
	return m.gate(actions, func(decisions []Decision) (Decision, bool) {
		for _, d := range decisions {
			if d.Allowed {
				return d, true
			}
		}
		return decisions[0], false
	})
}

// RequireAll ensures the current actor is allowed every action.
func (m Middleware) RequireAll(actions ...Action) func(http.Handler) http.Handler {
	return m.gate(actions, func(decisions []Decision) (Decision, bool) {
		for _, d := range decisions {
			if !d.Allowed {
				return d, false
			}
		}
		return Allow(), true
	})
}

func (m Middleware) gate(actions []Action, combine func([]Decision) (Decision, bool)) func(http.Handler) http.Handler {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, string(a))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(names) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actor := shared.ActorFromContext(r.Context())
			batch := m.Engine.CheckMultiple(r.Context(), actor, names)
			decisions := make([]Decision, 0, len(names))
			for _, name := range names {
				decisions = append(decisions, batch[name])
			}
			denied, ok := combine(decisions)
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Info("rbac gate denied",
					slog.String("actor", actor),
					slog.String("path", r.URL.Path),
					slog.String("reason", denied.Reason))
			}
			denied = m.Localizer.Localize(m.Localizer.Match(r.Header.Get("Accept-Language")), denied)
			httpx.Problem(w, http.StatusForbidden, http.StatusText(http.StatusForbidden), denied.Reason)
		})
	}
}

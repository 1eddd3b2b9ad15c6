package rbac

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learnhub/internal/platform/httpx"
)

func newGatedRouter(t *testing.T, source GrantSource, gate func(Middleware) func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	loc, err := NewLocalizer()
	require.NoError(t, err)
	mw := Middleware{Engine: NewEngine(NewResolver(source), nil, nil), Localizer: loc}

	r := chi.NewRouter()
	r.Use(withActor)
	r.With(gate(mw)).Get("/admin", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func decodeProblem(t *testing.T, body []byte) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

func TestRequireActionAllowsAdmin(t *testing.T) {
	router := newGatedRouter(t, newFakeSource(), func(m Middleware) func(http.Handler) http.Handler {
		return m.RequireAction(ActionAccessAdmin)
	})

	rr := doRequest(t, router, http.MethodGet, "/admin", "admin-test-user-id", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequireActionDeniesWithReason(t *testing.T) {
	router := newGatedRouter(t, newFakeSource(), func(m Middleware) func(http.Handler) http.Handler {
		return m.RequireAction(ActionAccessAdmin)
	})

	rr := doRequest(t, router, http.MethodGet, "/admin", "member-test-user-id", "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, ReasonAccessAdminDenied, decodeProblem(t, rr.Body.Bytes()).Detail)

	rr = doRequest(t, router, http.MethodGet, "/admin", "", "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, ReasonAccessAdminGuest, decodeProblem(t, rr.Body.Bytes()).Detail)

	rr = doRequest(t, router, http.MethodGet, "/admin", "member-test-user-id", "", "Accept-Language", "id")
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, indonesianReasons[ReasonAccessAdminDenied], decodeProblem(t, rr.Body.Bytes()).Detail)
}

func TestRequireActionFailsClosedOnLookupError(t *testing.T) {
	source := newFakeSource()
	source.failWith(errors.New("db unavailable"))
	router := newGatedRouter(t, source, func(m Middleware) func(http.Handler) http.Handler {
		return m.RequireAction(ActionAccessAdmin)
	})

	rr := doRequest(t, router, http.MethodGet, "/admin", "admin-test-user-id", "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, ReasonVerifyFailed, decodeProblem(t, rr.Body.Bytes()).Detail)
}

func TestRequireAnyAndAll(t *testing.T) {
	source := newFakeSource()
	anyRouter := newGatedRouter(t, source, func(m Middleware) func(http.Handler) http.Handler {
		return m.RequireAny(ActionManageGroups, ActionViewMembers)
	})
	allRouter := newGatedRouter(t, source, func(m Middleware) func(http.Handler) http.Handler {
		return m.RequireAll(ActionManageGroups, ActionViewMembers)
	})

	assert.Equal(t, http.StatusNoContent, doRequest(t, anyRouter, http.MethodGet, "/admin", "member-test-user-id", "").Code)
	assert.Equal(t, http.StatusForbidden, doRequest(t, anyRouter, http.MethodGet, "/admin", "", "").Code)

	rr := doRequest(t, allRouter, http.MethodGet, "/admin", "member-test-user-id", "")
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, ReasonManageGroupsDenied, decodeProblem(t, rr.Body.Bytes()).Detail)
	assert.Equal(t, http.StatusNoContent, doRequest(t, allRouter, http.MethodGet, "/admin", "admin-test-user-id", "").Code)
}

func TestRequireAllWithNoActionsPassesThrough(t *testing.T) {
	source := newFakeSource()
	router := newGatedRouter(t, source, func(m Middleware) func(http.Handler) http.Handler {
		return m.RequireAll()
	})

	assert.Equal(t, http.StatusNoContent, doRequest(t, router, http.MethodGet, "/admin", "", "").Code)
	assert.Zero(t, source.totalCalls())
}

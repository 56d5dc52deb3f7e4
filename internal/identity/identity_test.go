package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, req *http.Request) (user, session string, rec *httptest.ResponseRecorder) {
	t.Helper()
	rec = httptest.NewRecorder()
	Middleware(true)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		user = UserIDFromContext(r.Context())
		session = SessionIDFromContext(r.Context())
	})).ServeHTTP(rec, req)
	return user, session, rec
}

func TestMiddlewareUsesHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeaderName, "alice")
	req.Header.Set(SessionHeaderName, "sess-1")

	user, session, rec := serve(t, req)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "sess-1", session)
	assert.Empty(t, rec.Result().Cookies())
}

func TestMiddlewareIssuesAnonCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?session_id=from-query", nil)

	user, session, rec := serve(t, req)
	assert.True(t, isValidAnonID(user), user)
	assert.Equal(t, "from-query", session)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, AnonCookieName, cookies[0].Name)
	assert.Equal(t, user, cookies[0].Value)

	again := httptest.NewRequest(http.MethodGet, "/", nil)
	again.AddCookie(cookies[0])
	user2, session2, _ := serve(t, again)
	assert.Equal(t, user, user2)
	assert.Empty(t, session2)
}

func TestMiddlewareRejectsMalformedIDs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserHeaderName, "bad user/../")
	req.Header.Set(SessionHeaderName, "has space")

	user, session, _ := serve(t, req)
	assert.True(t, isValidAnonID(user), "malformed header falls back to the cookie identity")
	assert.Empty(t, session)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpayroll/internal/domain/auth"
	"hrpayroll/internal/requestctx"
)

func TestAuthMiddlewareSetsUser(t *testing.T) {
	secret := "test-secret"
	token, err := auth.GenerateToken(secret, auth.Claims{UserID: "u1", RoleName: auth.RolePayrollManager}, time.Hour)
	require.NoError(t, err)

	called := false
	handler := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		user, ok := GetUser(r.Context())
		require.True(t, ok)
		assert.Equal(t, "u1", user.UserID)
		assert.Equal(t, auth.RolePayrollManager, user.RoleName)
		assert.Equal(t, "u1", requestctx.GetActorID(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, called)
}

func TestAuthMiddlewareIgnoresBadTokens(t *testing.T) {
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := GetUser(r.Context())
		assert.False(t, ok)
	}))

	for _, header := range []string{"", "Basic abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}

type staticChecker map[string][]string

func (c staticChecker) Allowed(role, permission string) (bool, error) {
	for _, perm := range c[role] {
		if perm == permission {
			return true, nil
		}
	}
	return false, nil
}

func TestRequirePermission(t *testing.T) {
	protected := RequirePermission(auth.PermPayrollFinance, staticChecker(auth.RolePermissions))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	anonymous := httptest.NewRecorder()
	protected.ServeHTTP(anonymous, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, anonymous.Code)

	managerReq := httptest.NewRequest(http.MethodPost, "/", nil)
	managerReq = managerReq.WithContext(WithUser(managerReq.Context(), auth.UserContext{UserID: "m1", RoleName: auth.RolePayrollManager}))
	manager := httptest.NewRecorder()
	protected.ServeHTTP(manager, managerReq)
	assert.Equal(t, http.StatusForbidden, manager.Code)

	financeReq := httptest.NewRequest(http.MethodPost, "/", nil)
	financeReq = financeReq.WithContext(WithUser(financeReq.Context(), auth.UserContext{UserID: "f1", RoleName: auth.RoleFinanceStaff}))
	finance := httptest.NewRecorder()
	protected.ServeHTTP(finance, financeReq)
	assert.Equal(t, http.StatusNoContent, finance.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r.Context()))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestBodyLimitRejectsOversizedPayload(t *testing.T) {
	handler := BodyLimit(16)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"entity":"a very long entity name"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	get := httptest.NewRecorder()
	handler.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, get.Code)
}

type countingRecorder struct {
	statuses []int
}

func (c *countingRecorder) Record(status int, _ time.Duration) {
	c.statuses = append(c.statuses, status)
}

func TestMetricsRecordsStatus(t *testing.T) {
	recorder := &countingRecorder{}
	handler := Metrics(recorder)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, []int{http.StatusConflict}, recorder.statuses)
}

func TestRequestHashDeterministic(t *testing.T) {
	assert.Equal(t, RequestHash([]byte("payload")), RequestHash([]byte("payload")))
	assert.NotEqual(t, RequestHash([]byte("payload")), RequestHash([]byte("other")))
}

func TestIdempotencyStoreWithoutDatabase(t *testing.T) {
	var store *IdempotencyStore
	_, found, err := store.Check(t.Context(), "u1", "finance", "k1", "h")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, store.Save(t.Context(), "u1", "finance", "k1", "h", []byte(`{}`)))
}

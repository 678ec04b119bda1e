package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"caseflow/pkg/authtoken"
	"caseflow/pkg/config"
)

func testConfig(env string) config.Config {
	return config.Config{
		AppEnv: env,
		Auth:   config.AuthConfig{TokenSecret: "secret", Audience: "caseflow"},
	}
}

func whoAmI(w http.ResponseWriter, r *http.Request) {
	s := StaffFromContext(r.Context())
	WriteJSON(w, http.StatusOK, map[string]any{"id": s.ID, "role": s.Role})
}

func TestStaffAuth_BearerToken(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tok, err := authtoken.Issue(authtoken.Staff{ID: "u-7", Role: authtoken.RoleAdmin}, "caseflow", "secret", now, time.Hour)
	require.NoError(t, err)

	h := StaffAuth(testConfig("prod"), zap.NewNop(), func() time.Time { return now })(http.HandlerFunc(whoAmI))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "u-7", body["id"])
	assert.Equal(t, "admin", body["role"])
}

func TestStaffAuth_InvalidToken(t *testing.T) {
	h := StaffAuth(testConfig("dev"), zap.NewNop(), nil)(http.HandlerFunc(whoAmI))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaffAuth_DevHeaderFallback(t *testing.T) {
	h := StaffAuth(testConfig("dev"), zap.NewNop(), nil)(http.HandlerFunc(whoAmI))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Staff-Id", "local-dev")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "case_manager", body["role"])
}

func TestStaffAuth_NoDevFallbackInProd(t *testing.T) {
	h := StaffAuth(testConfig("prod"), zap.NewNop(), nil)(http.HandlerFunc(whoAmI))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Staff-Id", "local-dev")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	h := StaffAuth(testConfig("dev"), zap.NewNop(), nil)(RequireAdmin(http.HandlerFunc(whoAmI)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Staff-Id", "cm")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Staff-Id", "boss")
	req.Header.Set("X-Staff-Role", "admin")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	h := CORSMiddleware(CORSOptions{AllowedOrigins: []string{"http://localhost:5173"}})(http.HandlerFunc(whoAmI))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestParseID(t *testing.T) {
	id, ok := ParseID("6F9619FF-8B86-D011-B42D-00CF4FC964FF")
	require.True(t, ok)
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00cf4fc964ff", id)

	_, ok = ParseID("42")
	assert.False(t, ok)
}

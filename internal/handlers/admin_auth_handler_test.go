package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func postLogin(t *testing.T, h *AdminAuthHandler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/admin/login", h.AdminLoginHandler)

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestAdminLoginAndTokenValidation(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "correct-horse")
	t.Setenv("ADMIN_JWT_SECRET", "test-secret")
	h := NewAdminAuthHandler()

	recorder := postLogin(t, h, AdminLoginRequest{Username: "admin", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp AdminLoginResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)

	claims, err := ValidateAdminJWTToken(resp.Token)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Username)
	require.Equal(t, "admin", claims.Role)
	require.Equal(t, "settlement-backend-admin", claims.Issuer)
}

func TestAdminLoginRejectsBadCredentials(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "correct-horse")
	t.Setenv("ADMIN_JWT_SECRET", "test-secret")
	h := NewAdminAuthHandler()

	recorder := postLogin(t, h, AdminLoginRequest{Username: "admin", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = postLogin(t, h, AdminLoginRequest{Username: "intruder", Password: "correct-horse"})
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	// Missing fields fail binding.
	recorder = postLogin(t, h, map[string]string{"username": "admin"})
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestAdminLoginWithoutPasswordConfigured(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")
	h := NewAdminAuthHandler()

	recorder := postLogin(t, h, AdminLoginRequest{Username: "admin", Password: "anything"})
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestValidateAdminJWTTokenRejectsGarbage(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "test-secret")
	_, err := ValidateAdminJWTToken("not-a-jwt")
	require.Error(t, err)
}

func TestValidateAdminJWTTokenRejectsWrongSecret(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "correct-horse")
	t.Setenv("ADMIN_JWT_SECRET", "secret-one")
	h := NewAdminAuthHandler()
	recorder := postLogin(t, h, AdminLoginRequest{Username: "admin", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp AdminLoginResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))

	t.Setenv("ADMIN_JWT_SECRET", "secret-two")
	_, err := ValidateAdminJWTToken(resp.Token)
	require.Error(t, err)
}

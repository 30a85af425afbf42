package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/charlesng35/accountd/internal/app"
	"github.com/charlesng35/accountd/internal/auth"
	"github.com/charlesng35/accountd/internal/database"
	"github.com/charlesng35/accountd/internal/services"
	"github.com/charlesng35/accountd/pkg/response"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name)

	handle, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(handle))

	sqlDB, err := handle.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := database.NewFromHandle(handle)

	accounts, err := services.NewAccountService(db)
	require.NoError(t, err)
	credentials, err := services.NewCredentialService(db)
	require.NoError(t, err)
	changes, err := services.NewChangeService(db, credentials)
	require.NoError(t, err)
	directory, err := services.NewDirectoryService(db, accounts, credentials, changes)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: "test-secret"}, directory)
	require.NoError(t, err)

	cfg := &app.Config{}
	router, err := NewRouter(cfg, db, directory, changes, accounts, tokens)
	require.NoError(t, err)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, payload any) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()

	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return rec, parsed
}

func register(t *testing.T, router *gin.Engine, nickname, email, password string) map[string]any {
	t.Helper()

	rec, parsed := doJSON(t, router, http.MethodPost, "/api/accounts", gin.H{
		"nickname": nickname,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, parsed.Success)
	return parsed.Data.(map[string]any)
}

func TestRegisterEndpoint(t *testing.T) {
	router := newTestRouter(t)

	data := register(t, router, "tester1", "a@b.com", "secret123")
	require.Equal(t, "tester1", data["nickname"])
	require.Equal(t, "a@b.com", data["email"])
	require.Equal(t, false, data["verified"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	router := newTestRouter(t)

	register(t, router, "tester1", "a@b.com", "secret123")

	rec, parsed := doJSON(t, router, http.MethodPost, "/api/accounts", gin.H{
		"nickname": "tester2",
		"email":    "a@b.com",
		"password": "secret456",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, parsed.Success)
	require.Equal(t, "DUPLICATE_EMAIL", parsed.Error.Code)
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t)

	rec, parsed := doJSON(t, router, http.MethodPost, "/api/accounts", gin.H{
		"nickname": "tester1",
		"email":    "not-an-address",
		"password": "secret123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, parsed.Success)
}

func TestGetUnknownAccount(t *testing.T) {
	router := newTestRouter(t)

	rec, parsed := doJSON(t, router, http.MethodGet, "/api/accounts/42", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "ACCOUNT_NOT_FOUND", parsed.Error.Code)
}

func TestLoginEndpoint(t *testing.T) {
	router := newTestRouter(t)

	register(t, router, "tester1", "a@b.com", "secret123")

	rec, parsed := doJSON(t, router, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "a@b.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	data := parsed.Data.(map[string]any)
	require.NotEmpty(t, data["session_token"])

	rec, parsed = doJSON(t, router, http.MethodPost, "/api/auth/login", gin.H{
		"email":    "a@b.com",
		"password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_CREDENTIALS", parsed.Error.Code)
}

func TestChangeLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)

	data := register(t, router, "tester1", "a@b.com", "secret123")
	id := int64(data["id"].(float64))

	// Fresh accounts report the pending verification.
	rec, parsed := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/accounts/%d/change", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "verify_account", parsed.Data.(map[string]any)["pending_change"])

	// A second change cannot be opened while verification is pending.
	rec, parsed = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/accounts/%d/email", id), gin.H{
		"email": "c@d.com",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CHANGE_IN_PROGRESS", parsed.Error.Code)
}

func TestValidateChangeEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec, parsed := doJSON(t, router, http.MethodPost, "/api/changes/validate", gin.H{
		"token": "bogus",
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "INVALID_CHANGE_TOKEN", parsed.Error.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	router := newTestRouter(t)

	data := register(t, router, "tester1", "a@b.com", "secret123")
	id := int64(data["id"].(float64))

	rec, _ := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/accounts/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/accounts/%d", id), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec, parsed := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", parsed.Data.(map[string]any)["status"])
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reedcms/reed/auth"
	"github.com/reedcms/reed/hotstore"
	"github.com/reedcms/reed/rbac"
	"github.com/reedcms/reed/snippet"
)

type memUserStore struct {
	byID       map[string]*auth.User
	byUsername map[string]*auth.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{byID: map[string]*auth.User{}, byUsername: map[string]*auth.User{}}
}
func (m *memUserStore) CreateUser(u *auth.User) error {
	m.byID[u.ID] = u
	m.byUsername[u.Username] = u
	return nil
}
func (m *memUserStore) GetUser(id string) (*auth.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}
func (m *memUserStore) GetUserByUsername(username string) (*auth.User, error) {
	u, ok := m.byUsername[username]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	return u, nil
}
func (m *memUserStore) GetUserByEmail(email string) (*auth.User, error) { return nil, auth.ErrUserNotFound }
func (m *memUserStore) UpdateUser(u *auth.User) error                   { m.byID[u.ID] = u; return nil }
func (m *memUserStore) DeleteUser(id string) error                     { delete(m.byID, id); return nil }
func (m *memUserStore) ListUsers() ([]*auth.User, error)                { return nil, nil }

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hot := hotstore.NewWithClient(client, map[hotstore.Class]time.Duration{
		hotstore.ClassSession: time.Hour,
		hotstore.ClassRevoked: time.Hour,
	})
	sessions := auth.NewSessionStore(hot, time.Hour)

	cfg := auth.DefaultConfig()
	cfg.JWTSecret = "test-secret"
	cfg.AuditEnabled = false

	svc := auth.NewAuthService(cfg, newMemUserStore(), sessions, nil, nil)
	roles := rbac.NewRoleRegistry()
	roles.Register(rbac.Role{Name: auth.RoleViewer, Permissions: []string{"content:read"}})

	return &Handlers{Auth: svc, Roles: roles}
}

func TestLoginSuccess(t *testing.T) {
	h := newTestHandlers(t)
	_, err := h.Auth.CreateUser(auth.CreateUserRequest{Username: "alice", Password: "correct-horse-battery"})
	require.NoError(t, err)

	e := echo.New()
	body := `{"username":"alice","password":"correct-horse-battery"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Login(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["access_token"])
	assert.NotEmpty(t, resp["refresh_token"])

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "reed_session" {
			found = true
		}
	}
	assert.True(t, found, "expected reed_session cookie to be set")
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newTestHandlers(t)
	_, err := h.Auth.CreateUser(auth.CreateUserRequest{Username: "alice", Password: "correct-horse-battery"})
	require.NoError(t, err)

	e := echo.New()
	body := `{"username":"alice","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err = h.Login(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestLoginMalformedBody(t *testing.T) {
	h := newTestHandlers(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("not json"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Login(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	h := newTestHandlers(t)
	_, err := h.Auth.CreateUser(auth.CreateUserRequest{Username: "bob", Password: "correct-horse-battery"})
	require.NoError(t, err)

	e := echo.New()
	loginBody := `{"username":"bob","password":"correct-horse-battery"}`
	loginReq := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(loginBody))
	loginReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	loginRec := httptest.NewRecorder()
	loginCtx := e.NewContext(loginReq, loginRec)
	require.NoError(t, h.Login(loginCtx))

	var loginResp map[string]interface{}
	require.NoError(t, json.Unmarshal(loginRec.Body.Bytes(), &loginResp))
	refreshToken, _ := loginResp["refresh_token"].(string)
	require.NotEmpty(t, refreshToken)

	refreshBody := `{"refresh_token":"` + refreshToken + `"}`
	refreshReq := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(refreshBody))
	refreshReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	refreshRec := httptest.NewRecorder()
	refreshCtx := e.NewContext(refreshReq, refreshRec)
	require.NoError(t, h.Refresh(refreshCtx))
	assert.Equal(t, http.StatusOK, refreshRec.Code)

	var sessionCookie *http.Cookie
	for _, c := range loginRec.Result().Cookies() {
		if c.Name == "reed_session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)

	logoutReq := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logoutReq.AddCookie(sessionCookie)
	logoutRec := httptest.NewRecorder()
	logoutCtx := e.NewContext(logoutReq, logoutRec)
	require.NoError(t, h.Logout(logoutCtx))
	assert.Equal(t, http.StatusNoContent, logoutRec.Code)
}

func TestLogoutWithoutCookieIsNoop(t *testing.T) {
	h := newTestHandlers(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Logout(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIssueAPIKeyRequiresPrincipal(t *testing.T) {
	h := newTestHandlers(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/api-key", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.IssueAPIKey(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestIssueAPIKeyWithPrincipal(t *testing.T) {
	h := newTestHandlers(t)
	user, err := h.Auth.CreateUser(auth.CreateUserRequest{Username: "carol", Password: "correct-horse-battery"})
	require.NoError(t, err)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/api-key", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	rbac.SetPrincipal(c, rbac.Principal{ID: user.ID, Roles: []string{auth.RoleViewer}})

	require.NoError(t, h.IssueAPIKey(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["api_key"])
}

func TestSchemasListsRegisteredSchemas(t *testing.T) {
	h := newTestHandlers(t)
	h.Snippets = snippet.NewRegistry()
	h.Snippets.Register(snippet.SchemaDef{Name: "article", Fields: []snippet.FieldDef{{Name: "title", Type: snippet.FieldString, Required: true}}})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/schemas", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Schemas(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]snippet.SchemaDef
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	_, ok := resp["article"]
	assert.True(t, ok, "expected article schema in response")
}

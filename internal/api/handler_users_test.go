package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/mw"
	"ecoshower-backend/internal/store"
	"ecoshower-backend/internal/store/storetest"
)

func setupUserRouter(users *storetest.Users) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewHandler(&store.Store{Users: users}, nil, nil, nil, nil, "test-vapid-key")

	r := gin.New()
	authed := r.Group("/api", mw.Identity())
	authed.GET("/users/me", handler.GetProfile)
	authed.GET("/settings", handler.GetSettings)
	authed.PUT("/users/me/subscription", handler.PutSubscription)
	authed.DELETE("/users/me/subscription", handler.DeleteSubscription)
	authed.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	return r
}

func asUser(req *http.Request, id string) *http.Request {
	req.Header.Set("X-User-ID", id)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestPutSubscription(t *testing.T) {
	users := storetest.NewUsers(model.User{ID: "user-1"})
	router := setupUserRouter(users)

	body := `{"endpoint":"https://push.example/sub","keys":{"p256dh":"k","auth":"a"}}`
	w := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/users/me/subscription", strings.NewReader(body)), "user-1")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	stored, err := users.Get(req.Context(), "user-1")
	require.NoError(t, err)
	var ref struct {
		Endpoint string `json:"endpoint"`
	}
	require.NoError(t, json.Unmarshal([]byte(stored.NotificationChannel), &ref))
	assert.Equal(t, "https://push.example/sub", ref.Endpoint)
}

func TestPutSubscriptionRejectsIncomplete(t *testing.T) {
	router := setupUserRouter(storetest.NewUsers(model.User{ID: "user-1"}))

	// Missing keys must not clobber an existing channel.
	w := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodPut, "/api/users/me/subscription", strings.NewReader(`{"endpoint":"https://push.example/sub"}`)), "user-1")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteSubscription(t *testing.T) {
	users := storetest.NewUsers(model.User{ID: "user-1", NotificationChannel: `{"endpoint":"x"}`})
	router := setupUserRouter(users)

	w := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodDelete, "/api/users/me/subscription", nil), "user-1")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	stored, err := users.Get(req.Context(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, stored.NotificationChannel)
}

func TestGetProfileSelfHeals(t *testing.T) {
	users := storetest.NewUsers()
	router := setupUserRouter(users)

	w := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), "user-new")
	req.Header.Set("X-User-Email", "new@example.com")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	created, err := users.Get(req.Context(), "user-new")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", created.Email)
	assert.Equal(t, "new", created.Name)
	assert.Equal(t, model.RoleUser, created.Role)
	assert.Equal(t, model.UnitCelsius, created.System.TemperatureUnit)
}

func TestGetProfileUnknownWithoutEmail(t *testing.T) {
	router := setupUserRouter(storetest.NewUsers())

	w := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), "user-ghost")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSettingsOmitsChannel(t *testing.T) {
	users := storetest.NewUsers(model.User{
		ID:                  "user-1",
		Email:               "user@example.com",
		NotificationChannel: `{"endpoint":"secret"}`,
	})
	router := setupUserRouter(users)

	w := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/settings", nil), "user-1")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestGetVAPIDPublicKey(t *testing.T) {
	router := setupUserRouter(storetest.NewUsers())

	w := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/vapid_public_key", nil), "user-1")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"public_key":"test-vapid-key"}`, w.Body.String())
}

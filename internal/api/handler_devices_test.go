package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ecoshower-backend/internal/model"
	"ecoshower-backend/internal/mw"
	"ecoshower-backend/internal/store"
)

func newSQLiteStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Device{}, &model.Session{}, &model.TelemetryReading{}))
	return store.NewGormStore(db)
}

func TestListDevicesRecomputesOwnStatsOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, s.Devices.Put(ctx, &model.Device{
		ID:     "dev-mine",
		UserID: "user-1",
		Name:   "Mine",
		Status: model.DeviceStatusReady,
		// Stale stored counters, to prove the recompute wins.
		TotalWaterSaved: decimal.NewFromInt(999),
		TotalSessions:   99,
	}))
	require.NoError(t, s.Devices.Put(ctx, &model.Device{
		ID:     "dev-theirs",
		UserID: "user-2",
		Name:   "Theirs",
		Status: model.DeviceStatusReady,
	}))

	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.Sessions.Put(ctx, &model.Session{
		ID:        "s-mine-1",
		DeviceID:  "dev-mine",
		UserID:    "user-1",
		Status:    model.SessionStatusCompleted,
		StartTime: start,
		WaterUsed: decimal.NewFromInt(40),
	}))
	require.NoError(t, s.Sessions.Put(ctx, &model.Session{
		ID:        "s-mine-2",
		DeviceID:  "dev-mine",
		UserID:    "user-1",
		Status:    model.SessionStatusCompleted,
		StartTime: start.Add(time.Hour),
		WaterUsed: decimal.NewFromInt(20),
	}))
	require.NoError(t, s.Sessions.Put(ctx, &model.Session{
		ID:        "s-theirs",
		DeviceID:  "dev-theirs",
		UserID:    "user-2",
		Status:    model.SessionStatusCompleted,
		StartTime: start,
		WaterUsed: decimal.NewFromInt(500),
	}))

	handler := NewHandler(s, nil, nil, nil, nil, "")
	r := gin.New()
	r.GET("/api/devices", mw.Identity(), handler.ListDevices)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.Header.Set("X-User-ID", "user-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Devices []model.Device `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Devices, 1)
	assert.Equal(t, "dev-mine", resp.Devices[0].ID)
	assert.Equal(t, int64(2), resp.Devices[0].TotalSessions)
	assert.Equal(t, "60", resp.Devices[0].TotalWaterSaved.String())
}

func TestListDevicesEmptyFleet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := newSQLiteStore(t)

	handler := NewHandler(s, nil, nil, nil, nil, "")
	r := gin.New()
	r.GET("/api/devices", mw.Identity(), handler.ListDevices)

	req := httptest.NewRequest(http.MethodGet, "/api/devices", nil)
	req.Header.Set("X-User-ID", "user-empty")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"devices":[]}`, w.Body.String())
}

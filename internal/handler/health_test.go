package handler

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	h := NewHealthHandler(db, rdb)

	mock.ExpectPing()
	rec := call(h.Health, http.MethodGet, "/healthz", "", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"status": "ok", "db": "ok", "redis": "ok"}, decode(t, rec))

	mock.ExpectPing().WillReturnError(assert.AnError)
	mr.Close()
	rec = call(h.Health, http.MethodGet, "/healthz", "", 0, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "down", body["db"])
	assert.Equal(t, "down", body["redis"])
}

func TestHealth_WithoutRedis(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	rec := call(NewHealthHandler(db, nil).Health, http.MethodGet, "/healthz", "", 0, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", decode(t, rec)["redis"])
}

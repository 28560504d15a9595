package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/checkin-kiosk/internal/handler/handlertest"
)

func TestLiveness(t *testing.T) {
	r := handlertest.Engine(0, nil)
	NewHandler(nil).RegisterRoutes(&r.RouterGroup)

	w := handlertest.Do(r, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
}

func TestReadiness(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	redisErr := error(nil)
	r := handlertest.Engine(0, nil)
	NewHandler(map[string]Pinger{
		"database": sqlx.NewDb(db, "postgres"),
		"redis":    PingerFunc(func(context.Context) error { return redisErr }),
	}).RegisterRoutes(&r.RouterGroup)

	mock.ExpectPing()
	w := handlertest.Do(r, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP","checks":{"database":"UP","redis":"UP"}}`, w.Body.String())

	mock.ExpectPing()
	redisErr = errors.New("connection refused")
	w = handlertest.Do(r, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"DOWN","checks":{"database":"UP","redis":"DOWN"}}`, w.Body.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}

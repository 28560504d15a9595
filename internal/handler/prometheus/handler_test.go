package prometheus

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/checkin-kiosk/internal/handler/handlertest"
	"github.com/jwalitptl/checkin-kiosk/pkg/metrics"
)

func TestHandler(t *testing.T) {
	h := New()
	m := metrics.New("checkin")
	require.NoError(t, m.Register(h.Registry()))
	m.Checkin("matched")

	r := handlertest.Engine(0, nil)
	r.GET("/metrics", h.Handler())

	w := handlertest.Do(r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `checkin_kiosk_checkins_total{result="matched"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestHandler_RegistryIsIsolated(t *testing.T) {
	a, b := New(), New()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "only_here_total"})
	require.NoError(t, a.Registry().Register(c))
	assert.NoError(t, b.Registry().Register(c))
}

package telemetry

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberbrick-rc/brickrx/internal/protocol"
	"github.com/cyberbrick-rc/brickrx/internal/session"
)

func TestMetrics_Observer(t *testing.T) {
	m := NewMetrics("truck")
	now := time.Now()

	assert.Equal(t, 0.0, testutil.ToFloat64(m.state))

	m.OnTransition(protocol.LinkStateFailsafe, protocol.LinkStateActive, now)
	m.OnCycle(session.OutcomeFrame, now)
	m.OnCycle(session.OutcomeFrame, now)
	m.OnCycle(session.OutcomeMalformed, now)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.state))

	m.OnTransition(protocol.LinkStateActive, protocol.LinkStateFailsafe, now)
	m.OnCycle(session.OutcomeTimeout, now)
	m.OnCycle(session.OutcomeTransportError, now)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.state))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles.WithLabelValues("frame")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("malformed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resets))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failsafes))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("bulldozer")
	m.OnCycle(session.OutcomeBind, time.Now())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `brickrx_cycles_total{outcome="bind"} 1`)
	assert.Contains(t, body, `brickrx_profile_info{profile="bulldozer"} 1`)
	assert.Contains(t, body, "brickrx_session_resets_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_Serve(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	m := NewMetrics("debug")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, addr, log.New(io.Discard)) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(b), "brickrx_link_state")
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

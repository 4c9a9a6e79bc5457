package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/homegw/homegw-rt/internal/api/models"
	"github.com/homegw/homegw-rt/internal/bridge"
	"github.com/homegw/homegw-rt/internal/metrics"
)

type fakeLoop struct {
	resetErr  error
	statusErr error
	status    bridge.Status

	resets []string
	holds  []time.Duration
}

func (l *fakeLoop) Reset(_ context.Context, pin string, hold time.Duration) error {
	l.resets = append(l.resets, pin)
	l.holds = append(l.holds, hold)
	return l.resetErr
}

func (l *fakeLoop) Status(context.Context) (bridge.Status, error) {
	return l.status, l.statusErr
}

func fixedMemory(context.Context) (*mem.VirtualMemoryStat, error) {
	return &mem.VirtualMemoryStat{Used: 256, Total: 1024}, nil
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestPinReset(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{name: "ok", wantStatus: http.StatusOK, wantBody: `{"pin":"modem","status":"ok"}`},
		{name: "unknown pin", err: bridge.ErrUnknownPin, wantStatus: http.StatusNotFound, wantBody: `{"details":"unknown pin"}`},
		{name: "already resetting", err: bridge.ErrAlreadyResetting, wantStatus: http.StatusConflict},
		{name: "heap full", err: bridge.ErrHeapFull, wantStatus: http.StatusServiceUnavailable},
		{name: "loop stopped", err: bridge.ErrStopped, wantStatus: http.StatusServiceUnavailable},
		{name: "line write", err: bridge.ErrLineWrite, wantStatus: http.StatusInternalServerError},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			loop := &fakeLoop{resetErr: tc.err}
			router := NewHTTPRouter(loop, Options{})

			rec := serve(router, http.MethodPost, "/v1/pins/modem/reset")
			require.Equal(t, tc.wantStatus, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tc.wantBody != "" {
				require.JSONEq(t, tc.wantBody, rec.Body.String())
			}
			require.Equal(t, []string{"modem"}, loop.resets)
			require.Equal(t, []time.Duration{time.Second}, loop.holds)
		})
	}
}

func TestPinResetRequiresPost(t *testing.T) {
	loop := &fakeLoop{}
	rec := serve(NewHTTPRouter(loop, Options{}), http.MethodGet, "/v1/pins/modem/reset")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Empty(t, loop.resets)
}

func TestLegacyReset(t *testing.T) {
	loop := &fakeLoop{}
	router := NewHTTPRouter(loop, Options{ResetHold: 2 * time.Second})

	rec := serve(router, http.MethodGet, "/ext_reset/modem")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
	require.Equal(t, []time.Duration{2 * time.Second}, loop.holds)

	loop.resetErr = bridge.ErrUnknownPin
	rec = serve(router, http.MethodGet, "/ext_reset/nope")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "unknown pin", rec.Body.String())
}

func TestHello(t *testing.T) {
	rec := serve(NewHTTPRouter(&fakeLoop{}, Options{}), http.MethodGet, "/hello/gateway")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Hello, gateway!", rec.Body.String())
}

func TestStatus(t *testing.T) {
	loop := &fakeLoop{status: bridge.Status{
		ResetPins:  []string{"modem"},
		BlinkLines: 1,
		Pending:    []bridge.PendingReset{{Pin: "modem", Remaining: 500 * time.Millisecond}},
		Iterations: 7,
	}}
	router := NewHTTPRouter(loop, Options{ReadMemory: fixedMemory})

	rec := serve(router, http.MethodGet, "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, loop.status, got.Status)
	require.Equal(t, &models.MemoryResponse{Used: 256, Total: 1024}, got.Memory)
}

func TestStatusWithoutMemory(t *testing.T) {
	router := NewHTTPRouter(&fakeLoop{}, Options{ReadMemory: func(context.Context) (*mem.VirtualMemoryStat, error) {
		return nil, errors.New("no /proc/meminfo")
	}})

	rec := serve(router, http.MethodGet, "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "memory")
}

func TestStatusLoopStopped(t *testing.T) {
	router := NewHTTPRouter(&fakeLoop{statusErr: bridge.ErrStopped}, Options{ReadMemory: fixedMemory})
	rec := serve(router, http.MethodGet, "/v1/status")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVersion(t *testing.T) {
	rec := serve(NewHTTPRouter(&fakeLoop{}, Options{Version: "1.2.3"}), http.MethodGet, "/v1/version")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"version":"1.2.3"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.LoopIterations.Add(5)

	rec := serve(NewHTTPRouter(&fakeLoop{}, Options{Gatherer: reg}), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "homegw_rt_loop_iterations_total 5"))

	rec = serve(NewHTTPRouter(&fakeLoop{}, Options{}), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLegacyRoutesAcceptAnyMethod(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut} {
		t.Run(method, func(t *testing.T) {
			loop := &fakeLoop{}
			router := NewHTTPRouter(loop, Options{})

			rec := serve(router, method, "/ext_reset/modem")
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "OK", rec.Body.String())
			require.Equal(t, []string{"modem"}, loop.resets)

			rec = serve(router, method, "/hello/gateway")
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "Hello, gateway!", rec.Body.String())
		})
	}
}

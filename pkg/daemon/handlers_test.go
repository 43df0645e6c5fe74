package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battrem/pkg/config"
	"github.com/charlie0129/battrem/pkg/powerinfo"
	"github.com/charlie0129/battrem/pkg/reminder"
	"github.com/charlie0129/battrem/pkg/types"
)

func newTestServer(f *monitorFixture) http.Handler {
	s := &server{
		monitor: f.monitor,
		conf:    f.conf,
		reader:  f.reader,
		hub:     f.hub,
	}
	return s.setupRoutes()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandlersSettings(t *testing.T) {
	f := startMonitor(t, 50, false)
	h := newTestServer(f)

	w := do(h, http.MethodPut, "/min-threshold", "60")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res types.Evaluation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, reminder.Low, res.Decision)

	w = do(h, http.MethodPut, "/max-threshold", "30")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 80, f.conf.MaxThreshold())

	w = do(h, http.MethodPut, "/reminder-frequency", "61")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPut, "/reminder-frequency", "not a number")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	var fc config.RawFileConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fc))
	require.NotNil(t, fc.MinThreshold)
	assert.Equal(t, 60, *fc.MinThreshold)
}

func TestHandlersReading(t *testing.T) {
	f := startMonitor(t, 42, true)
	h := newTestServer(f)

	w := do(h, http.MethodGet, "/reading", "")
	require.Equal(t, http.StatusOK, w.Code)
	var r powerinfo.Reading
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, powerinfo.Reading{Percent: 42, IsCharging: true}, r)

	f.reader.fail(fmt.Errorf("%w: no battery", powerinfo.ErrHardwareUnavailable))
	w = do(h, http.MethodGet, "/reading", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandlersReminderAndEvaluate(t *testing.T) {
	f := startMonitor(t, 90, true)
	h := newTestServer(f)

	w := do(h, http.MethodGet, "/reminder", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st reminder.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, reminder.High, st.Kind)
	assert.True(t, st.Active)

	w = do(h, http.MethodPost, "/evaluate", "")
	require.Equal(t, http.StatusOK, w.Code)
	var res types.Evaluation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, types.TriggerManual, res.Trigger)
	assert.NotEqual(t, st.ID, res.Reminder.ID)

	w = do(h, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

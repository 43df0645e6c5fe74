package client

import (
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie0129/battrem/pkg/reminder"
)

func serveUnix(t *testing.T, h http.Handler) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "battrem")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	sock := filepath.Join(dir, "d.sock")
	l, err := net.Listen("unix", sock)
	require.NoError(t, err)

	srv := &http.Server{Handler: h}
	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() { _ = srv.Close() })

	return sock
}

func TestClientDaemonNotRunning(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	_, err := c.GetVersion()
	assert.ErrorIs(t, err, ErrDaemonNotRunning)
}

func TestClientAPIs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"v1.2.3"`))
	})
	mux.HandleFunc("/min-threshold", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`"invalid threshold: minimum threshold must be between 1 and 100, got 0"`))
	})
	mux.HandleFunc("/reminder", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"identifier":"BatteryReminder","kind":"low","active":true,"percent":12}`))
	})
	mux.HandleFunc("/reading", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`"battery hardware unavailable"`))
	})
	c := NewClient(serveUnix(t, mux))

	v, err := c.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "v1.2.3", v)

	_, err = c.SetMinThreshold(0)
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Contains(t, err.Error(), "between 1 and 100")

	st, err := c.GetReminder()
	require.NoError(t, err)
	assert.Equal(t, reminder.Low, st.Kind)
	assert.True(t, st.Active)
	assert.Equal(t, 12, st.Percent)

	_, err = c.GetReading()
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = c.Evaluate()
	assert.ErrorIs(t, err, ErrNotFound)
}

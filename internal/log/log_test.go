package log

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xrdquant.log")
	require.NoError(t, InitFile(false, path))
	t.Cleanup(func() { require.NoError(t, Init(false)) })

	Debugw("hidden", "sample", "s1")
	Infow("fitted", "sample", "s1", "rwp", 0.12)
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "fitted", entry["msg"])
	assert.Equal(t, "s1", entry["sample"])
	assert.Equal(t, "info", entry["level"])
}

func TestHTTPMiddlewareRecordsStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "http.log")
	require.NoError(t, InitFile(true, path))
	t.Cleanup(func() { require.NoError(t, Init(false)) })

	h := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/libraries", nil))
	Sync()

	assert.Equal(t, http.StatusTeapot, rec.Code)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "/libraries")
}

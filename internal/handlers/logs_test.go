package handlers

import (
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(ts, level, msg string) string {
	return `{"level":"` + level + `","time":"` + ts + `","message":"` + msg + `"}`
}

func writeLogs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// ротированный файл за прошлые дни, сжатый lumberjack
	f, err := os.Create(filepath.Join(dir, "app-2024-05-02T00-00-00.000.log.gz"))
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join([]string{
		logLine("2024-04-01T09:00:00.000+0300", "INFO", "too old"),
		logLine("2024-05-01T09:15:00.000+0300", "INFO", "Успешный вход"),
		logLine("2024-05-01T09:20:00.000+0300", "WARN", "Запрос отклонён"),
		"not json at all",
	}, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	current := strings.Join([]string{
		logLine("2024-05-01T23:59:00.000+0300", "ERROR", "Ошибка обработки запроса"),
		logLine("2024-05-02T10:00:00.000+0300", "INFO", "HTTP-запрос"),
		"2024-05-02T10:00:01.000+0300\tINFO\tconsole line",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.log"), []byte(current), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte(logLine("2024-05-02T10:00:00.000+0300", "INFO", "x")), 0o600))
	return dir
}

func newLogsHandler(t *testing.T) *AdminLogsHandler {
	h := NewAdminLogsHandler(writeLogs(t), 14)
	h.now = func() time.Time { return time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC) }
	return h
}

type logsEnvelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func call(t *testing.T, fn http.HandlerFunc, target string) (int, logsEnvelope) {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, target, nil))
	var env logsEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestAdminLogs_ListDays(t *testing.T) {
	h := newLogsHandler(t)

	status, env := call(t, h.ListDays, "/admins/logs/days")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"days":["2024-05-01","2024-05-02"]}`, string(env.Data))

	empty := NewAdminLogsHandler(filepath.Join(t.TempDir(), "missing"), 14)
	status, env = call(t, empty.ListDays, "/admins/logs/days")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"days":[]}`, string(env.Data))
}

func TestAdminLogs_GetLogs(t *testing.T) {
	h := newLogsHandler(t)

	type page struct {
		Day        string            `json:"day"`
		Items      []json.RawMessage `json:"items"`
		NextCursor int               `json:"nextCursor"`
	}
	get := func(query string) (int, page, string) {
		status, env := call(t, h.GetLogs, "/admins/logs?"+query)
		var p page
		if status == http.StatusOK {
			require.NoError(t, json.Unmarshal(env.Data, &p))
		}
		return status, p, env.Message
	}

	status, p, _ := get("day=2024-05-01")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, p.Items, 3)
	assert.Contains(t, string(p.Items[0]), "Успешный вход")
	assert.Contains(t, string(p.Items[2]), "Ошибка обработки запроса")
	assert.Equal(t, 3, p.NextCursor)

	_, p, _ = get("day=2024-05-01&level=warn,error")
	assert.Len(t, p.Items, 2)

	_, p, _ = get("day=2024-05-01&hour=23")
	require.Len(t, p.Items, 1)
	assert.Contains(t, string(p.Items[0]), "ERROR")

	_, p, _ = get("day=2024-05-01&q=ОТКЛОНЁН")
	assert.Len(t, p.Items, 1)

	_, p, _ = get("day=2024-05-01&limit=1")
	require.Len(t, p.Items, 1)
	assert.Equal(t, 1, p.NextCursor)

	_, p, _ = get("day=2024-05-01&limit=1&cursor=1")
	require.Len(t, p.Items, 1)
	assert.Contains(t, string(p.Items[0]), "Запрос отклонён")
	assert.Equal(t, 2, p.NextCursor)

	status, _, msg := get("day=2024-05-03")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "No logs for day 2024-05-03", msg)

	status, _, _ = get("day=yesterday")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminLogs_Stats(t *testing.T) {
	h := newLogsHandler(t)

	status, env := call(t, h.Stats, "/admins/logs/stats?day=2024-05-01")
	require.Equal(t, http.StatusOK, status)

	var out struct {
		Stats map[string]map[string]int `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.Len(t, out.Stats, 24)
	assert.Equal(t, 1, out.Stats["9"]["INFO"])
	assert.Equal(t, 1, out.Stats["9"]["WARN"])
	assert.Equal(t, 1, out.Stats["23"]["ERROR"])
	assert.Empty(t, out.Stats["10"])
}

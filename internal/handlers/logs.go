package handlers

import (
	"accountsvc/internal/logger"
	"accountsvc/internal/utils/helpers"
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AdminLogsHandler: просмотр JSON-логов сервиса администратором.
// Читает текущий app.log и ротированные lumberjack-файлы app-<timestamp>.log[.gz],
// день строки берётся из её поля time.
type AdminLogsHandler struct {
	LogDir    string
	Retention int // дней

	now func() time.Time
}

func NewAdminLogsHandler(logDir string, retention int) *AdminLogsHandler {
	if retention <= 0 {
		retention = 14
	}
	return &AdminLogsHandler{LogDir: logDir, Retention: retention, now: time.Now}
}

// ListDays
// @Summary      Дни, за которые есть логи
// @Tags         admin-logs
// @Security     ApiKeyAuth
// @Produce      json
// @Success      200 {object} helpers.Response
// @Failure      401 {object} helpers.Response
// @Router       /admins/logs/days [get]
func (h *AdminLogsHandler) ListDays(w http.ResponseWriter, r *http.Request) {
	oldest := h.now().AddDate(0, 0, -h.Retention+1).Format(dayLayout)

	seen := map[string]bool{}
	err := h.scan(func(e logEntry) bool {
		if e.day >= oldest {
			seen[e.day] = true
		}
		return true
	})
	if err != nil {
		logger.WithCtx(r.Context()).Error("Ошибка чтения логов", zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}

	days := make([]string, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Strings(days)
	helpers.JSON(w, http.StatusOK, "Log days retrieved successfully", map[string]any{"days": days})
}

// GetLogs
// @Summary      Логи за день
// @Description  Фильтры: level (CSV), hour (0-23), q (подстрока). Пагинация по cursor.
// @Tags         admin-logs
// @Security     ApiKeyAuth
// @Produce      json
// @Param        day    query string true  "Дата (YYYY-MM-DD)"
// @Param        level  query string false "CSV уровней: debug,info,warn,error"
// @Param        hour   query int    false "Час (0-23)"
// @Param        q      query string false "Поиск по подстроке"
// @Param        limit  query int    false "Лимит (по умолч. 200, макс. 1000)"
// @Param        cursor query int    false "Сколько строк дня пропустить"
// @Success      200 {object} helpers.Response
// @Failure      400 {object} helpers.Response
// @Failure      404 {object} helpers.Response
// @Router       /admins/logs [get]
func (h *AdminLogsHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	day := query.Get("day")
	if !reDay.MatchString(day) {
		helpers.Error(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	levels := levelSet(query.Get("level"))
	needle := []byte(strings.ToLower(strings.TrimSpace(query.Get("q"))))
	hour := -1
	if hv, err := strconv.Atoi(query.Get("hour")); err == nil && hv >= 0 && hv <= 23 {
		hour = hv
	}
	limit := clampAtoi(query.Get("limit"), 200, 1, 1000)
	cursor := clampAtoi(query.Get("cursor"), 0, 0, 10_000_000)

	position := 0
	items := make([]json.RawMessage, 0)
	err := h.scan(func(e logEntry) bool {
		if e.day != day {
			return true
		}
		position++
		if position <= cursor {
			return true
		}
		if len(levels) > 0 && !levels[e.level] {
			return true
		}
		if hour >= 0 && e.hour != hour {
			return true
		}
		if len(needle) > 0 && !bytes.Contains(bytes.ToLower(e.raw), needle) {
			return true
		}
		items = append(items, json.RawMessage(e.raw))
		return len(items) < limit
	})
	if err != nil {
		logger.WithCtx(r.Context()).Error("Ошибка чтения логов", zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if position == 0 {
		helpers.Error(w, http.StatusNotFound, "No logs for day "+day)
		return
	}

	helpers.JSON(w, http.StatusOK, "Logs retrieved successfully", map[string]any{
		"day":        day,
		"items":      items,
		"nextCursor": position,
	})
}

// Stats
// @Summary      Количество записей по часам и уровням
// @Tags         admin-logs
// @Security     ApiKeyAuth
// @Produce      json
// @Param        day query string true "Дата (YYYY-MM-DD)"
// @Success      200 {object} helpers.Response
// @Failure      400 {object} helpers.Response
// @Router       /admins/logs/stats [get]
func (h *AdminLogsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if !reDay.MatchString(day) {
		helpers.Error(w, http.StatusBadRequest, "day must be YYYY-MM-DD")
		return
	}

	stats := make(map[int]map[string]int, 24)
	for hr := 0; hr < 24; hr++ {
		stats[hr] = map[string]int{}
	}
	err := h.scan(func(e logEntry) bool {
		if e.day == day && e.level != "" {
			stats[e.hour][e.level]++
		}
		return true
	})
	if err != nil {
		logger.WithCtx(r.Context()).Error("Ошибка чтения логов", zap.Error(err))
		helpers.Error(w, http.StatusInternalServerError, msgInternal)
		return
	}

	helpers.JSON(w, http.StatusOK, "Log stats retrieved successfully", map[string]any{
		"day":   day,
		"stats": stats,
	})
}

const (
	dayLayout = "2006-01-02"
	// формат zapcore.ISO8601TimeEncoder
	zapTimeLayout = "2006-01-02T15:04:05.000Z0700"
)

var reDay = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type logEntry struct {
	raw   []byte
	day   string
	hour  int
	level string
}

func parseEntry(raw []byte) (logEntry, bool) {
	var line struct {
		Time  string `json:"time"`
		Level string `json:"level"`
	}
	if err := json.Unmarshal(raw, &line); err != nil || line.Time == "" {
		return logEntry{}, false
	}
	t, err := time.Parse(zapTimeLayout, line.Time)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, line.Time); err != nil {
			return logEntry{}, false
		}
	}
	return logEntry{
		raw:   raw,
		day:   t.Format(dayLayout),
		hour:  t.Hour(),
		level: strings.ToUpper(line.Level),
	}, true
}

// files: ротированные файлы по возрастанию времени, текущий app.log последним.
func (h *AdminLogsHandler) files() ([]string, error) {
	entries, err := os.ReadDir(h.LogDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(logger.FileName, filepath.Ext(logger.FileName))
	var rotated []string
	current := ""
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir():
		case name == logger.FileName:
			current = filepath.Join(h.LogDir, name)
		case strings.HasPrefix(name, base+"-") &&
			(strings.HasSuffix(name, ".log") || strings.HasSuffix(name, ".log.gz")):
			rotated = append(rotated, filepath.Join(h.LogDir, name))
		}
	}
	sort.Strings(rotated)
	if current != "" {
		rotated = append(rotated, current)
	}
	return rotated, nil
}

// scan проходит по всем JSON-строкам логов, пока handle возвращает true.
// Строки не в JSON (консольный формат) пропускаются.
func (h *AdminLogsHandler) scan(handle func(logEntry) bool) error {
	paths, err := h.files()
	if err != nil {
		return err
	}
	for _, path := range paths {
		keep, err := scanFile(path, handle)
		if err != nil {
			logger.Log.Warn("Не удалось прочитать лог-файл", zap.String("path", path), zap.Error(err))
			continue
		}
		if !keep {
			return nil
		}
	}
	return nil
}

func scanFile(path string, handle func(logEntry) bool) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return true, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return true, err
		}
		defer gz.Close()
		reader = gz
	}

	sc := bufio.NewScanner(reader)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		e, ok := parseEntry(sc.Bytes())
		if !ok {
			continue
		}
		e.raw = append([]byte(nil), e.raw...)
		if !handle(e) {
			return false, nil
		}
	}
	return true, sc.Err()
}

func levelSet(csv string) map[string]bool {
	out := map[string]bool{}
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out[strings.ToUpper(p)] = true
		}
	}
	return out
}

func clampAtoi(s string, def, min, max int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

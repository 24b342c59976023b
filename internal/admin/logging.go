package admin

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/kk-code-lab/packsync/internal/clock"
)

func LoggingMiddleware(next http.Handler, clk clock.Clock) http.Handler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := clk.Now()
		body, summary := readAndSummarizeBody(r)
		if body != nil {
			r.Body = io.NopCloser(bytes.NewReader(body))
		}
		reqID := newRequestID()
		rw := &responseWithReqID{ResponseWriter: w, reqID: reqID, status: http.StatusOK}
		next.ServeHTTP(rw, r.WithContext(withRequestID(r.Context(), reqID)))
		end := clk.Now()
		log.Printf("admin method=%s path=%s status=%d dur_ms=%d req_id=%s %s", r.Method, r.URL.Path, rw.status, end.Sub(start).Milliseconds(), reqID, summary)
	})
}

func readAndSummarizeBody(r *http.Request) ([]byte, string) {
	if r == nil || r.Body == nil {
		return nil, "summary=none"
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		return nil, "summary=read_error"
	}
	if len(data) == 0 {
		return data, "summary=empty"
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return data, "summary=non_json"
	}
	parts := make([]string, 0, 3)
	if action, ok := payloadString(payload, "action"); ok {
		parts = append(parts, "action="+action)
	}
	if name, ok := payloadString(payload, "name"); ok {
		parts = append(parts, "name="+name)
	}
	if ts, ok := payload["last_update_ms"]; ok {
		if num, isNum := ts.(float64); isNum {
			parts = append(parts, "last_update_ms="+jsonNumber(num))
		}
	}
	if len(parts) == 0 {
		return data, "summary=json"
	}
	return data, "summary=" + strings.Join(parts, ",")
}

func payloadString(payload map[string]any, key string) (string, bool) {
	val, ok := payload[key]
	if !ok || val == nil {
		return "", false
	}
	switch v := val.(type) {
	case string:
		if v == "" {
			return "", false
		}
		return v, true
	default:
		return "", false
	}
}

func jsonNumber(v float64) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "?"
	}
	return string(data)
}

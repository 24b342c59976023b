package admin

import "net/http"

// responseWithReqID stamps the packsync request id on every admin response
// and keeps the final status code for the request log line.
type responseWithReqID struct {
	http.ResponseWriter
	reqID  string
	status int
}

func (w *responseWithReqID) WriteHeader(code int) {
	w.status = code
	if w.reqID != "" {
		w.Header().Set("X-Request-Id", w.reqID)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWithReqID) Write(p []byte) (int, error) {
	// A handler that writes without an explicit WriteHeader implies 200.
	if w.status == 0 {
		w.status = http.StatusOK
		if w.reqID != "" {
			w.Header().Set("X-Request-Id", w.reqID)
		}
	}
	return w.ResponseWriter.Write(p)
}

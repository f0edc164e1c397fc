package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"finapi/internal/api"
)

// requestToEnvelope flattens r the way API Gateway does: the first value of
// each header and query parameter wins.
func requestToEnvelope(w http.ResponseWriter, r *http.Request) (api.Envelope, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			return api.Envelope{}, fmt.Errorf("read body: %w", err)
		}
	}

	headers := make(api.Headers, len(r.Header))
	for k, vs := range r.Header {
		if len(vs) > 0 {
			headers[k] = vs[0]
		}
	}

	query := make(map[string]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}

	return api.Envelope{
		Method:                r.Method,
		Path:                  r.URL.Path,
		Headers:               headers,
		Body:                  string(body),
		QueryStringParameters: query,
	}, nil
}

func writeResponse(w http.ResponseWriter, resp api.Response) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

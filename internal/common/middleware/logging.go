// internal/common/middleware/logging.go
package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"intake-crm/internal/common/logger"
	"intake-crm/internal/common/metrics"

	"github.com/gin-gonic/gin"
)

const (
	redacted       = "[REDACTED]"
	maxLoggedBody  = 64 << 10
	unmatchedRoute = "unmatched"
)

var sensitiveKeys = []string{"ssn", "socialsecuritynumber", "ssnlast4", "creditcard", "cardnumber", "cvv", "password", "dob"}

// Sanitize returns a copy of payload with sensitive keys redacted at any depth.
func Sanitize(payload interface{}) interface{} {
	switch v := payload.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, val := range v {
			if isSensitive(key) {
				out[key] = redacted
				continue
			}
			out[key] = Sanitize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, val := range v {
			out[i] = Sanitize(val)
		}
		return out
	default:
		return payload
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// RequestLogger logs every request on arrival and completion with a sanitized
// payload, and records the request duration histogram.
func RequestLogger(log logger.Logger, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request
		payload := capturePayload(c)

		base := map[string]interface{}{
			"component": service,
			"route":     req.URL.RequestURI(),
			"method":    req.Method,
			"frontend": map[string]interface{}{
				"origin":       req.Header.Get("Origin"),
				"referer":      req.Header.Get("Referer"),
				"userAgent":    req.UserAgent(),
				"forwardedFor": req.Header.Get("X-Forwarded-For"),
				"host":         req.Host,
			},
		}
		if payload != nil {
			base["payload"] = payload
		}

		log.Info("Incoming request", withEvent(base, "request_received"))

		c.Next()

		status := c.Writer.Status()
		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(service, req.Method, route, strconv.Itoa(status)).
			Observe(elapsed.Seconds())

		done := withEvent(base, "request_completed")
		done["statusCode"] = status
		done["status"] = statusClass(status)
		done["duration_ms"] = elapsed.Milliseconds()
		log.Info("Request completed", done)
	}
}

func capturePayload(c *gin.Context) interface{} {
	req := c.Request
	if req.Method == http.MethodGet || req.Method == http.MethodDelete {
		if len(req.URL.Query()) == 0 {
			return nil
		}
		query := make(map[string]interface{}, len(req.URL.Query()))
		for k, v := range req.URL.Query() {
			query[k] = strings.Join(v, ",")
		}
		return Sanitize(query)
	}

	if req.Body == nil || !strings.HasPrefix(c.ContentType(), "application/json") {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxLoggedBody+1))
	if err != nil {
		return nil
	}
	// the handler still needs the full body
	req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), req.Body))
	if len(raw) > maxLoggedBody {
		return "[TRUNCATED]"
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil
	}
	return Sanitize(decoded)
}

func withEvent(base map[string]interface{}, event string) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+4)
	for k, v := range base {
		out[k] = v
	}
	out["event"] = event
	return out
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "success"
	case code >= 400 && code < 500:
		return "client_error"
	case code >= 500:
		return "server_error"
	default:
		return "unknown"
	}
}

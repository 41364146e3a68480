package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthInfo is static deployment information reported by GET /health.
type HealthInfo struct {
	Storage string `json:"storage"`
	Mode    string `json:"mode"`
	Monitor string `json:"monitor"`
}

// HealthCheck checks one backing dependency, such as the Redis or Postgres connection.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResponse struct {
	Status string `json:"status"`
	HealthInfo
	Checks map[string]string `json:"checks,omitempty"`
}

// NewHealthHandler returns GET /health handler. Any failing check turns the response into a 503.
func NewHealthHandler(info HealthInfo, checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", HealthInfo: info}
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[c.Name] = err.Error()
				continue
			}
			resp.Checks[c.Name] = "ok"
		}

		code := http.StatusOK
		if resp.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}

// Package health provides shared types for health check responses.
package health

// Response mirrors the server's GET /health body.
type Response struct {
	Service   string `json:"service"`
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	UptimeSec int64  `json:"uptime_sec"`
	Error     string `json:"error,omitempty"`
}

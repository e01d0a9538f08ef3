package httpapi

import (
	"net/http"
	"time"
)

// platformInfo describes this deployment's capabilities to a client before
// it authenticates — used by integration tooling to confirm it's talking
// to a compatible server version.
type platformInfo struct {
	APIVersion string `json:"apiVersion"`
	ServerTime string `json:"serverTime"`
}

// Info handles GET /v1/info, an unauthenticated capability/version probe.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, platformInfo{
		APIVersion: "1.0",
		ServerTime: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

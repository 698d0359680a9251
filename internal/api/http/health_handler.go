package http

import "net/http"

type healthResponse struct {
	Status string `json:"status"`
}

// healthHandler answers 503 while draining is reported, 200 otherwise.
func healthHandler(draining func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if draining != nil && draining() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "draining"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

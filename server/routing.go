package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP handlers on the server's own mux.
func (s *Server) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.corsMiddleware(s.HandleHealth))
	mux.HandleFunc("/api/state", s.corsMiddleware(s.HandleState))
	mux.HandleFunc("/api/events", s.corsMiddleware(s.HandleEvents))
	mux.HandleFunc("/api/events/now", s.corsMiddleware(s.HandleEventsNow))
	mux.HandleFunc("/api/events/log", s.corsMiddleware(s.HandleEventsLog))
	mux.HandleFunc("/api/simulate/day", s.corsMiddleware(s.HandleSimulateDay))
	mux.HandleFunc("/api/realtime/start", s.corsMiddleware(s.HandleRealtimeStart))
	mux.HandleFunc("/api/realtime/stop", s.corsMiddleware(s.HandleRealtimeStop))
	mux.HandleFunc("/api/realtime/state", s.corsMiddleware(s.HandleRealtimeState))
	mux.HandleFunc("/api/realtime/hourly", s.corsMiddleware(s.HandleRealtimeHourly))
	mux.HandleFunc("/api/work-orders", s.corsMiddleware(s.HandleWorkOrders))
	mux.HandleFunc("/api/setup-matrix", s.corsMiddleware(s.HandleSetupMatrix))
	mux.HandleFunc("/api/plan", s.corsMiddleware(s.HandlePlan))
	mux.HandleFunc("/api/plan/export.csv", s.corsMiddleware(s.HandlePlanExport))
	mux.HandleFunc("/api/plan/recompute", s.corsMiddleware(s.HandlePlanRecompute))
	mux.HandleFunc("/api/history/journal", s.corsMiddleware(s.HandleHistoryJournal))
	mux.HandleFunc("/api/history/runs", s.corsMiddleware(s.HandleHistoryRuns))
	mux.HandleFunc("/api/history/reports", s.corsMiddleware(s.HandleHistoryReports))
	mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))

	s.mux = mux
}

// corsMiddleware adds CORS headers using the configured allowed
// origins. The same origin validation covers WebSocket upgrades.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// checkOrigin validates a request origin against the configured
// allowed origins. Prefix matching allows any port on an allowed
// host. Requests with no Origin header (curl, direct WebSocket
// clients) are accepted.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) == 0 {
		return strings.HasPrefix(origin, "http://localhost") ||
			strings.HasPrefix(origin, "https://localhost")
	}

	for _, allowed := range s.allowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

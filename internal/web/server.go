/*

This file contains the HTTP surface: position state and derived metrics,
per-action input fields with live guard verdicts, action submission, the
action journal, and Prometheus metrics. Action execution runs in the
background; callers poll the pending states and the notification slot for
the outcome, mirroring how the flows surface progress to a user.

*/

package web

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/borrowfi/borrowfi-go/internal/fixedpoint"
	"github.com/borrowfi/borrowfi-go/internal/guards"
	"github.com/borrowfi/borrowfi-go/internal/ledgersync"
	"github.com/borrowfi/borrowfi-go/internal/logger"
	"github.com/borrowfi/borrowfi-go/internal/notify"
	"github.com/borrowfi/borrowfi-go/internal/orchestrator"
	"github.com/borrowfi/borrowfi-go/internal/risk"
	"github.com/borrowfi/borrowfi-go/internal/state"
	"github.com/borrowfi/borrowfi-go/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

// WebServer handles HTTP requests for position data and action submission.
type WebServer struct {
	router *mux.Router
	port   string

	store    *ledgersync.Store
	orch     *orchestrator.Orchestrator
	notifier *notify.Center

	inputMu sync.Mutex
	inputs  map[types.ActionKind]string
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, store *ledgersync.Store, orch *orchestrator.Orchestrator, notifier *notify.Center) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:   mux.NewRouter(),
		port:     port,
		store:    store,
		orch:     orch,
		notifier: notifier,
		inputs:   make(map[types.ActionKind]string),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes.
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/position", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/guards", ws.handleGetGuards).Methods("GET")
	api.HandleFunc("/inputs/{kind}", ws.handleSetInput).Methods("PUT")
	api.HandleFunc("/inputs/{kind}/max", ws.handleSeedMax).Methods("POST")
	api.HandleFunc("/actions/{kind}", ws.handleSubmitAction).Methods("POST")
	api.HandleFunc("/actions", ws.handleGetActions).Methods("GET")
	api.HandleFunc("/history", ws.handleGetHistory).Methods("GET")
	api.HandleFunc("/pending", ws.handleGetPending).Methods("GET")
	api.HandleFunc("/notification", ws.handleGetNotification).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

var kindsByName = map[string]types.ActionKind{
	"add":      types.ActionAdd,
	"withdraw": types.ActionWithdraw,
	"borrow":   types.ActionBorrow,
	"repay":    types.ActionRepay,
}

func actionKindFromRequest(r *http.Request) (types.ActionKind, bool) {
	kind, ok := kindsByName[mux.Vars(r)["kind"]]
	return kind, ok
}

func (ws *WebServer) input(kind types.ActionKind) string {
	ws.inputMu.Lock()
	defer ws.inputMu.Unlock()
	return ws.inputs[kind]
}

func (ws *WebServer) setInput(kind types.ActionKind, value string) {
	ws.inputMu.Lock()
	defer ws.inputMu.Unlock()
	ws.inputs[kind] = value
}

// handleHealth returns server health and sync freshness.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	syncedAt := ws.store.SyncedAt()
	status := "OK"
	if syncedAt.IsZero() {
		status = "SYNCING"
	} else if time.Since(syncedAt) > 5*time.Minute {
		status = "STALE"
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"synced_at": syncedAt,
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"heap_alloc_bytes": memStats.HeapAlloc,
		},
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetPosition returns the cached snapshot, derived metrics and the
// display strings for each value.
func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	snap := ws.store.Snapshot()
	derived := ws.store.Metrics()

	maxWithdraw, err := risk.MaxWithdraw(
		snap.Position.Collateral,
		snap.Position.Loan,
		snap.Globals.HealthThreshold,
		snap.Globals.RatioScale,
	)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute max withdrawal")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute position metrics")
		return
	}

	utilization, err := risk.Utilization(
		snap.Globals.TotalBorrowed,
		snap.Globals.TotalCollateral,
		snap.Globals.RatioScale,
	)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to compute utilization")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute position metrics")
		return
	}

	response := map[string]interface{}{
		"snapshot": snap,
		"derived":  derived,
		"display": map[string]string{
			"collateral":   fixedpoint.FormatRoundedSnap(snap.Position.Collateral),
			"loan":         fixedpoint.FormatRoundedSnap(snap.Position.Loan),
			"user_clt":     fixedpoint.FormatRounded(snap.Balances.UserCLT, snap.Globals.CLTDecimals),
			"user_bfi":     fixedpoint.FormatRounded(snap.Balances.UserBFI, snap.Globals.BFIDecimals),
			"borrowable":   fixedpoint.FormatBorrowable(derived.Borrowable),
			"max_withdraw": fixedpoint.FormatFloor(maxWithdraw, snap.Globals.CLTDecimals),
		},
		"utilization": utilization,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetGuards evaluates all four guards against the current inputs.
func (ws *WebServer) handleGetGuards(w http.ResponseWriter, r *http.Request) {
	snap := ws.store.Snapshot()

	verdicts := make(map[string]guards.Verdict, 4)
	for name, kind := range kindsByName {
		verdict, err := ws.evaluate(kind, snap)
		if err != nil {
			webLogger.Error().Err(err).Str("kind", string(kind)).Msg("Guard evaluation failed")
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Guard evaluation failed")
			return
		}
		verdicts[name] = verdict
	}
	ws.writeJSONResponse(w, http.StatusOK, verdicts)
}

func (ws *WebServer) evaluate(kind types.ActionKind, snap types.Snapshot) (guards.Verdict, error) {
	input := ws.input(kind)
	switch kind {
	case types.ActionAdd:
		return guards.EvaluateAdd(snap, input)
	case types.ActionWithdraw:
		return guards.EvaluateWithdraw(snap, input)
	case types.ActionBorrow:
		return guards.EvaluateBorrow(snap, input, nil)
	default:
		return guards.EvaluateRepay(snap, input)
	}
}

// handleSetInput stores the input text for one action and returns the
// resulting guard verdict.
func (ws *WebServer) handleSetInput(w http.ResponseWriter, r *http.Request) {
	kind, ok := actionKindFromRequest(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Unknown action kind")
		return
	}

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ws.setInput(kind, fixedpoint.SanitizeDecimalInput(body.Value, 2))

	verdict, err := ws.evaluate(kind, ws.store.Snapshot())
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Guard evaluation failed")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, verdict)
}

// handleSeedMax fills an action's input with its Max suggestion. Every
// suggestion floors so the seeded value always passes the guard.
func (ws *WebServer) handleSeedMax(w http.ResponseWriter, r *http.Request) {
	kind, ok := actionKindFromRequest(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Unknown action kind")
		return
	}

	snap := ws.store.Snapshot()
	derived := ws.store.Metrics()

	var seeded string
	switch kind {
	case types.ActionAdd:
		seeded = fixedpoint.FormatFloor(snap.Balances.UserCLT, snap.Globals.CLTDecimals)
	case types.ActionWithdraw:
		maxWithdraw, err := risk.MaxWithdraw(
			snap.Position.Collateral,
			snap.Position.Loan,
			snap.Globals.HealthThreshold,
			snap.Globals.RatioScale,
		)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to compute max withdrawal")
			return
		}
		seeded = fixedpoint.FormatFloor(maxWithdraw, snap.Globals.CLTDecimals)
	case types.ActionBorrow:
		seeded = fixedpoint.FormatBorrowable(derived.Borrowable)
	case types.ActionRepay:
		repayable := snap.Position.Loan
		if snap.Balances.UserBFI.LT(repayable) {
			repayable = snap.Balances.UserBFI
		}
		seeded = fixedpoint.FormatFloor(repayable, snap.Globals.BFIDecimals)
	}
	if seeded == "0" {
		seeded = ""
	}
	ws.setInput(kind, seeded)

	verdict, err := ws.evaluate(kind, snap)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Guard evaluation failed")
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"value":   seeded,
		"verdict": verdict,
	})
}

// handleSubmitAction starts one action flow in the background. Progress is
// observable via /api/pending and /api/notification.
func (ws *WebServer) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	kind, ok := actionKindFromRequest(r)
	if !ok {
		ws.writeErrorResponse(w, http.StatusNotFound, "Unknown action kind")
		return
	}

	input := ws.input(kind)
	go func() {
		_, err := ws.orch.Execute(context.Background(), kind, input)
		if err != nil {
			return
		}
		// A confirmed add also consumed its approval; clear the field so a
		// stale amount is not resubmitted by accident.
		if kind == types.ActionAdd {
			ws.setInput(kind, "")
		}
	}()

	ws.writeJSONResponse(w, http.StatusAccepted, map[string]interface{}{
		"kind":      string(kind),
		"submitted": true,
	})
}

// handleGetActions returns recent journal records.
func (ws *WebServer) handleGetActions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 500 {
			limit = parsedLimit
		}
	}

	records, err := state.GetRecentActions(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get action records")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to load action history")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"actions": records,
		"count":   len(records),
	})
}

// handleGetHistory returns persisted position history for charting.
func (ws *WebServer) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if hoursStr := r.URL.Query().Get("hours"); hoursStr != "" {
		if parsedHours, err := strconv.Atoi(hoursStr); err == nil && parsedHours > 0 && parsedHours <= 24*30 {
			hours = parsedHours
		}
	}

	points, err := state.GetSyncHistory(time.Now().Add(-time.Duration(hours) * time.Hour))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get sync history")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to load position history")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"points": points,
		"count":  len(points),
	})
}

// handleGetPending returns the transient per-action states.
func (ws *WebServer) handleGetPending(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, ws.orch.Pending())
}

// handleGetNotification returns the visible notification, if any.
func (ws *WebServer) handleGetNotification(w http.ResponseWriter, r *http.Request) {
	current := ws.notifier.Current()
	if current == nil {
		ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"visible": false})
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"visible":      true,
		"notification": current,
	})
}

// writeJSONResponse writes a JSON response.
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response.
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers.
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

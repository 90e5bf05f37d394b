package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"ztbus-analyser/internal/auth"
	simapp "ztbus-analyser/internal/simulator/application"
)

// TickHandler advances the simulated clock on POST.
type TickHandler struct {
	clock  *simapp.Clock
	logger *log.Logger
}

// NewTickHandler constructs the handler.
func NewTickHandler(clock *simapp.Clock, logger *log.Logger) (*TickHandler, error) {
	if clock == nil {
		return nil, errors.New("tick handler: nil clock")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TickHandler{clock: clock, logger: logger}, nil
}

// ServeHTTP advances the clock and returns the emitted window.
func (h *TickHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	subject := auth.SubjectFromContext(r.Context())
	window, err := h.clock.Advance(r.Context())
	if err != nil {
		h.logger.Printf("simulator tick: subject=%s err=%v", subject, err)
		http.Error(w, "tick error", http.StatusInternalServerError)
		return
	}
	h.logger.Printf("simulator tick: subject=%s time_from=%s", subject, window.TimeFrom.Format(time.RFC3339))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"name":     window.Type.Name,
		"version":  window.Type.Version,
		"origin":   window.Origin,
		"timeFrom": window.TimeFrom.Format(time.RFC3339),
		"timeTo":   window.TimeTo.Format(time.RFC3339),
		"key":      window.Key(),
	})
}

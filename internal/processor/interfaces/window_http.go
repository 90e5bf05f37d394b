package interfaces

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"ztbus-analyser/internal/auth"
	"ztbus-analyser/internal/observability/metrics"
	windows "ztbus-analyser/internal/windows/domain"
)

const maxWindowBody = 1 << 16

// WindowHandler accepts windows over HTTP and hands them to an emitter.
type WindowHandler struct {
	emitter windows.Emitter
	limiter *rate.Limiter
	logger  *log.Logger
}

// WindowHandlerOption configures the handler.
type WindowHandlerOption func(*WindowHandler)

// WithRateLimit caps accepted requests per second with the given burst.
func WithRateLimit(perSecond float64, burst int) WindowHandlerOption {
	return func(h *WindowHandler) {
		if perSecond > 0 && burst > 0 {
			h.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger *log.Logger) WindowHandlerOption {
	return func(h *WindowHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewWindowHandler constructs the handler.
func NewWindowHandler(emitter windows.Emitter, opts ...WindowHandlerOption) (*WindowHandler, error) {
	if emitter == nil {
		return nil, errors.New("window handler: nil emitter")
	}
	h := &WindowHandler{emitter: emitter, logger: log.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP emits the posted window.
func (h *WindowHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if r.Method != http.MethodPost {
		metrics.IncWindowTrigger(metrics.ResultError)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.limiter != nil && !h.limiter.Allow() {
		metrics.IncWindowTrigger("throttled")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWindowBody))
	if err != nil {
		metrics.IncWindowTrigger(metrics.ResultError)
		h.logger.Printf("window handler: read body error: %v", err)
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req windowRequest
	if err := json.Unmarshal(body, &req); err != nil {
		metrics.IncWindowTrigger(metrics.ResultError)
		h.logger.Printf("window handler: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	window, err := req.resolveWindow()
	if err != nil {
		metrics.IncWindowTrigger(metrics.ResultError)
		h.logger.Printf("window handler: invalid payload: %v", err)
		http.Error(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.emitter.Emit(r.Context(), window); err != nil {
		metrics.IncWindowTrigger(metrics.ResultError)
		h.logger.Printf("window handler: emit error: %v", err)
		http.Error(w, "emit error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "accepted",
		"key":      window.Key(),
		"timeFrom": window.TimeFrom.Format(time.RFC3339),
		"timeTo":   window.TimeTo.Format(time.RFC3339),
	})
	metrics.IncWindowTrigger(metrics.ResultSuccess)
	h.logger.Printf("window_trigger duration_ms=%d subject=%s type=%s origin=%s time_from=%s time_to=%s",
		time.Since(start).Milliseconds(),
		auth.SubjectFromContext(r.Context()),
		window.Type,
		window.Origin,
		window.TimeFrom.Format(time.RFC3339),
		window.TimeTo.Format(time.RFC3339),
	)
}

type windowRequest struct {
	TimeFrom string         `json:"timeFrom"`
	TimeTo   string         `json:"timeTo"`
	Name     string         `json:"name"`
	Version  string         `json:"version"`
	Origin   string         `json:"origin"`
	Metadata map[string]any `json:"metadata"`
}

func (r windowRequest) resolveWindow() (windows.Window, error) {
	if r.TimeFrom == "" || r.TimeTo == "" {
		return windows.Window{}, errors.New("missing timeFrom or timeTo")
	}
	from, err := time.Parse(time.RFC3339, r.TimeFrom)
	if err != nil {
		return windows.Window{}, err
	}
	to, err := time.Parse(time.RFC3339, r.TimeTo)
	if err != nil {
		return windows.Window{}, err
	}

	windowType := windows.WindowType{Name: strings.TrimSpace(r.Name), Version: strings.TrimSpace(r.Version)}
	if known, ok := windows.Lookup(windowType.Name); ok {
		if windowType.Version == "" {
			windowType.Version = known.Version
		}
		known.Version = windowType.Version
		windowType = known
	}
	origin := r.Origin
	if origin == "" {
		origin = "http"
	}
	window := windows.Window{
		TimeFrom: from.UTC(),
		TimeTo:   to.UTC(),
		Type:     windowType,
		Origin:   origin,
		Metadata: r.Metadata,
	}
	if err := window.Validate(); err != nil {
		return windows.Window{}, err
	}
	for _, field := range windowType.MetadataFields {
		if field == windows.MetadataTripID {
			if _, err := window.TripID(); err != nil {
				return windows.Window{}, err
			}
		}
	}
	return window, nil
}

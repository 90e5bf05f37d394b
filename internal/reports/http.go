package reports

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

// Handler serves /reports/runs.xlsx and /reports/runs.pdf.
type Handler struct {
	source EnvelopeSource
	logger *log.Logger
}

// NewHandler constructs the report handler.
func NewHandler(source EnvelopeSource, logger *log.Logger) (*Handler, error) {
	if source == nil {
		return nil, errors.New("reports handler: nil envelope source")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{source: source, logger: logger}, nil
}

// ServeHTTP renders the runs emitted between the from and to query parameters.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	format := strings.TrimPrefix(r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:], "runs.")
	contentType := ""
	switch format {
	case FormatXLSX:
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		contentType = "application/pdf"
	default:
		http.NotFound(w, r)
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "invalid from", http.StatusBadRequest)
		return
	}
	to, err := time.Parse(time.RFC3339, r.URL.Query().Get("to"))
	if err != nil {
		http.Error(w, "invalid to", http.StatusBadRequest)
		return
	}

	report, err := LoadRunReport(r.Context(), h.source, from, to)
	if errors.Is(err, ErrInvalidRange) {
		http.Error(w, "invalid range", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Printf("reports: load err=%v", err)
		http.Error(w, "report error", http.StatusInternalServerError)
		return
	}
	data, err := Build(report, format)
	if err != nil {
		h.logger.Printf("reports: build format=%s err=%v", format, err)
		http.Error(w, "report error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename=runs."+format)
	_, _ = w.Write(data)
}

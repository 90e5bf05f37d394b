package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"ztbus-analyser/internal/eventing"
	"ztbus-analyser/internal/eventing/eventbus"
	"ztbus-analyser/internal/processor/events"
	windows "ztbus-analyser/internal/windows/domain"
)

// ErrInvalidRange is returned when a report range is empty.
var ErrInvalidRange = errors.New("reports: invalid range")

// RunRow is one detected brake run.
type RunRow struct {
	Key      string
	Type     string
	TripID   int64
	BusID    int64
	RouteID  int64
	TimeFrom time.Time
	TimeTo   time.Time
}

// Duration is the run length with inclusive sample bounds.
func (r RunRow) Duration() time.Duration {
	return r.TimeTo.Sub(r.TimeFrom) + time.Second
}

// TypeSummary aggregates the runs of one window type.
type TypeSummary struct {
	Type  string
	Count int
	Total time.Duration
	Max   time.Duration
}

// Mean is the mean run duration.
func (s TypeSummary) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// RunReport lists the brake runs emitted in a range.
type RunReport struct {
	From time.Time
	To   time.Time
	Runs []RunRow
}

// Summaries returns per-type aggregates ordered by type name.
func (r RunReport) Summaries() []TypeSummary {
	byType := make(map[string]*TypeSummary)
	for _, run := range r.Runs {
		summary, ok := byType[run.Type]
		if !ok {
			summary = &TypeSummary{Type: run.Type}
			byType[run.Type] = summary
		}
		d := run.Duration()
		summary.Count++
		summary.Total += d
		if d > summary.Max {
			summary.Max = d
		}
	}
	result := make([]TypeSummary, 0, len(byType))
	for _, summary := range byType {
		result = append(result, *summary)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// EnvelopeSource lists stored envelopes of one event type.
type EnvelopeSource interface {
	ListByEventType(ctx context.Context, eventType string, from, to time.Time) ([]eventing.Envelope, error)
}

// LoadRunReport reads the brake windows emitted within [from, to).
func LoadRunReport(ctx context.Context, source EnvelopeSource, from, to time.Time) (RunReport, error) {
	if source == nil {
		return RunReport{}, errors.New("reports: nil envelope source")
	}
	if !to.After(from) {
		return RunReport{}, ErrInvalidRange
	}
	envs, err := source.ListByEventType(ctx, eventbus.EventTypeOf[events.WindowEmitted](), from, to)
	if err != nil {
		return RunReport{}, fmt.Errorf("reports: list windows: %w", err)
	}
	report, err := FromEnvelopes(envs)
	if err != nil {
		return RunReport{}, err
	}
	report.From, report.To = from.UTC(), to.UTC()
	return report, nil
}

// FromEnvelopes keeps the brake run windows of envs, ordered by start.
func FromEnvelopes(envs []eventing.Envelope) (RunReport, error) {
	var report RunReport
	seen := make(map[string]struct{}, len(envs))
	for _, env := range envs {
		var evt events.WindowEmitted
		if err := json.Unmarshal(env.Payload, &evt); err != nil {
			return RunReport{}, fmt.Errorf("reports: decode %s: %w", env.EventID, err)
		}
		if evt.TypeName != windows.HaltBrakeApplied.Name && evt.TypeName != windows.ParkBrakeApplied.Name {
			continue
		}
		if _, dup := seen[evt.WindowKey]; dup {
			continue
		}
		seen[evt.WindowKey] = struct{}{}
		window, err := evt.Window()
		if err != nil {
			return RunReport{}, err
		}
		row := RunRow{
			Key:      evt.WindowKey,
			Type:     evt.TypeName,
			TimeFrom: window.TimeFrom.UTC(),
			TimeTo:   window.TimeTo.UTC(),
		}
		row.TripID, _ = window.MetadataInt(windows.MetadataTripID)
		row.BusID, _ = window.MetadataInt(windows.MetadataBusID)
		row.RouteID, _ = window.MetadataInt(windows.MetadataRouteID)
		report.Runs = append(report.Runs, row)
	}
	sort.SliceStable(report.Runs, func(i, j int) bool {
		if !report.Runs[i].TimeFrom.Equal(report.Runs[j].TimeFrom) {
			return report.Runs[i].TimeFrom.Before(report.Runs[j].TimeFrom)
		}
		return report.Runs[i].TripID < report.Runs[j].TripID
	})
	return report, nil
}

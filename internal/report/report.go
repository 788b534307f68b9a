// Package report runs one fetch cycle per report view: resolve locations,
// fetch the payload, build series and derive the summary numbers.
//
// Fetch failures never escape as errors. They become Alerts on the returned
// view, whose data is left empty, so callers can always render something.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kebunops/opsreport/internal/location"
	"github.com/kebunops/opsreport/internal/metric"
	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/opsapi"
	"github.com/kebunops/opsreport/internal/series"
)

// Fetcher is the subset of the API client the service needs.
type Fetcher interface {
	Locations(ctx context.Context) ([]model.LocationRecord, error)
	HPT(ctx context.Context, p opsapi.ReportParams) (*opsapi.ReportPayload, error)
	Production(ctx context.Context, p opsapi.ReportParams) (*opsapi.ReportPayload, error)
	Productivity(ctx context.Context, p opsapi.ReportParams) (*opsapi.ReportPayload, error)
}

// Options configures a Service.
type Options struct {
	Policy metric.ZeroBasePolicy
	// RefLocations are merged into every resolver (see refdata).
	RefLocations []model.LocationRecord
	// PestUnits maps pest ID to display unit.
	PestUnits map[string]string
	PageSize  int
}

// Service produces report views.
type Service struct {
	client Fetcher
	opts   Options
}

// NewService creates a Service.
func NewService(client Fetcher, opts Options) *Service {
	if opts.Policy == "" {
		opts.Policy = metric.ZeroBaseFlat
	}
	return &Service{client: client, opts: opts}
}

// Policy returns the zero-base policy in effect.
func (s *Service) Policy() metric.ZeroBasePolicy { return s.opts.Policy }

// Filter is the user's report selection.
type Filter struct {
	// Locations are display names. Nil selects every location.
	Locations []string `json:"locations"`
	Start     string   `json:"start,omitempty"`
	End       string   `json:"end,omitempty"`
	PestID    string   `json:"pest_id,omitempty"`
	VariantID string   `json:"variant_id,omitempty"`
}

// ─── Alerts ──────────────────────────────────────────────────────────────────

// AlertKind classifies a fetch failure.
type AlertKind string

const (
	AlertTransport AlertKind = "transport"
	AlertStatus    AlertKind = "status"
	AlertDecode    AlertKind = "decode"
	AlertEmpty     AlertKind = "empty"
	AlertOffline   AlertKind = "offline"
)

// Alert is a user-facing fetch failure.
type Alert struct {
	Kind    AlertKind `json:"kind"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
}

func (a Alert) String() string {
	return fmt.Sprintf("%s: %s", a.Source, a.Message)
}

// alertFor converts a fetch error into an Alert.
func alertFor(source string, err error) Alert {
	a := Alert{Source: source, Message: err.Error()}
	var se *opsapi.StatusError
	switch {
	case errors.As(err, &se):
		a.Kind = AlertStatus
	case errors.Is(err, opsapi.ErrEmpty):
		a.Kind = AlertEmpty
		a.Message = "no data for the selected filters"
	case errors.Is(err, opsapi.ErrDecode):
		a.Kind = AlertDecode
	case errors.Is(err, opsapi.ErrNotCached):
		a.Kind = AlertOffline
	default:
		a.Kind = AlertTransport
	}
	slog.Warn("report fetch failed", "source", source, "kind", a.Kind, "err", err)
	return a
}

// ─── Locations ───────────────────────────────────────────────────────────────

// LocationsView is the resolved location list.
type LocationsView struct {
	Records   []model.LocationRecord `json:"records"`
	Names     []string               `json:"names"`
	Selection []string               `json:"selection"`
	IDQuery   string                 `json:"id_query"`
	Alerts    []Alert                `json:"alerts,omitempty"`
}

// LoadLocations fetches the dropdown and merges reference locations.
func (s *Service) LoadLocations(ctx context.Context) (*location.Resolver, []Alert) {
	recs, err := s.client.Locations(ctx)
	var alerts []Alert
	if err != nil {
		alerts = append(alerts, alertFor("locations", err))
	}
	r := location.NewResolver(recs)
	r.Merge(s.opts.RefLocations)
	return r, alerts
}

// Locations builds a LocationsView for selected (nil = default selection).
func (s *Service) Locations(ctx context.Context, selected []string) *LocationsView {
	r, alerts := s.LoadLocations(ctx)
	if selected == nil {
		selected = r.DefaultSelection()
	}
	return &LocationsView{
		Records:   r.Records(),
		Names:     r.Names(),
		Selection: selected,
		IDQuery:   r.IDQuery(selected),
		Alerts:    alerts,
	}
}

// resolve runs the location step shared by every report.
func (s *Service) resolve(ctx context.Context, f Filter) (opsapi.ReportParams, series.Options, []Alert) {
	r, alerts := s.LoadLocations(ctx)
	selected := f.Locations
	if selected == nil {
		selected = r.DefaultSelection()
	}
	params := opsapi.ReportParams{
		LocationIDs: r.IDQuery(selected),
		Start:       f.Start,
		End:         f.End,
		PestID:      f.PestID,
		VariantID:   f.VariantID,
		PageSize:    s.opts.PageSize,
	}
	// A nil filter selection leaves the series unfiltered so a failed
	// location fetch does not blank the report.
	opts := series.Options{Selected: f.Locations, Hidden: r.HiddenNames()}
	return params, opts, alerts
}

// selectsNothing reports whether an explicit selection resolved to no IDs.
// The backend reads a missing location_id as every location, so such a
// report must not be fetched.
func selectsNothing(f Filter, params opsapi.ReportParams) bool {
	return f.Locations != nil && params.LocationIDs == ""
}

func noLocationAlert(source string) Alert {
	return Alert{Kind: AlertEmpty, Source: source, Message: "no selected location has an ID"}
}

// ─── Views ───────────────────────────────────────────────────────────────────

// Summary is a KPI card.
type Summary struct {
	model.SummaryMetric
	ChangePercent   float64 `json:"change_percent"`
	Lowest          float64 `json:"lowest"`
	Highest         float64 `json:"highest"`
	LowestLocation  string  `json:"lowest_location,omitempty"`
	HighestLocation string  `json:"highest_location,omitempty"`
}

func (s *Service) summarize(kpi *model.KPIBlock) (Summary, []model.DetailRow) {
	if kpi == nil {
		return Summary{}, []model.DetailRow{}
	}
	sum := Summary{SummaryMetric: metric.Summary(kpi.Actual, kpi.LastActual)}
	sum.ChangePercent = metric.Change(sum.SummaryMetric, s.opts.Policy)
	if model.Usable(kpi.Lowest) {
		sum.Lowest = *kpi.Lowest
		sum.LowestLocation = kpi.LowestLocation
	}
	if model.Usable(kpi.Highest) {
		sum.Highest = *kpi.Highest
		sum.HighestLocation = kpi.HighestLocation
	}
	rows := metric.DetailRows(*kpi)
	// Fill extremes from rows when the KPI sent sentinels.
	for _, r := range rows {
		if r.Lowest && sum.LowestLocation == "" {
			sum.Lowest, sum.LowestLocation = r.Actual, r.Location
		}
		if r.Highest && sum.HighestLocation == "" {
			sum.Highest, sum.HighestLocation = r.Actual, r.Location
		}
	}
	return sum, rows
}

// HPTView is the pest/disease report.
type HPTView struct {
	Filter      Filter                 `json:"filter"`
	PestUnit    string                 `json:"pest_unit,omitempty"`
	Summary     Summary                `json:"summary"`
	Detail      []model.DetailRow      `json:"detail"`
	Series      []model.LocationSeries `json:"series"`
	Alerts      []Alert                `json:"alerts,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// HPT runs the pest/disease report.
func (s *Service) HPT(ctx context.Context, f Filter) *HPTView {
	params, opts, alerts := s.resolve(ctx, f)
	v := &HPTView{
		Filter:      f,
		PestUnit:    s.opts.PestUnits[f.PestID],
		Detail:      []model.DetailRow{},
		Series:      []model.LocationSeries{},
		Alerts:      alerts,
		GeneratedAt: time.Now().UTC(),
	}
	if selectsNothing(f, params) {
		v.Alerts = append(v.Alerts, noLocationAlert("hpt"))
		return v
	}
	payload, err := s.client.HPT(ctx, params)
	if err != nil {
		v.Alerts = append(v.Alerts, alertFor("hpt", err))
		return v
	}
	if ls := series.LocationSeries(payload.Trend, opts); ls != nil {
		v.Series = ls
	}
	v.Summary, v.Detail = s.summarize(payload.KPI)
	return v
}

// ProductionView is the production report.
type ProductionView struct {
	Filter      Filter            `json:"filter"`
	Summary     Summary           `json:"summary"`
	Detail      []model.DetailRow `json:"detail"`
	Alerts      []Alert           `json:"alerts,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Production runs the production report. Detail rows carry reject ratios
// when the backend sends reject figures.
func (s *Service) Production(ctx context.Context, f Filter) *ProductionView {
	params, _, alerts := s.resolve(ctx, f)
	v := &ProductionView{
		Filter:      f,
		Detail:      []model.DetailRow{},
		Alerts:      alerts,
		GeneratedAt: time.Now().UTC(),
	}
	if selectsNothing(f, params) {
		v.Alerts = append(v.Alerts, noLocationAlert("production"))
		return v
	}
	payload, err := s.client.Production(ctx, params)
	if err != nil {
		v.Alerts = append(v.Alerts, alertFor("production", err))
		return v
	}
	v.Summary, v.Detail = s.summarize(payload.KPI)
	return v
}

// ProductivityView is the productivity heatmap report.
type ProductivityView struct {
	Filter      Filter              `json:"filter"`
	Trends      []model.TrendSeries `json:"trends"`
	Pagination  *model.Pagination   `json:"pagination,omitempty"`
	Alerts      []Alert             `json:"alerts,omitempty"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// Overall returns the aggregate trend, if present.
func (v *ProductivityView) Overall() (model.TrendSeries, bool) {
	for _, t := range v.Trends {
		if t.Overall {
			return t, true
		}
	}
	return model.TrendSeries{}, false
}

// Productivity runs the productivity report.
func (s *Service) Productivity(ctx context.Context, f Filter) *ProductivityView {
	params, opts, alerts := s.resolve(ctx, f)
	v := &ProductivityView{
		Filter:      f,
		Trends:      []model.TrendSeries{},
		Alerts:      alerts,
		GeneratedAt: time.Now().UTC(),
	}
	if selectsNothing(f, params) {
		v.Alerts = append(v.Alerts, noLocationAlert("productivity"))
		return v
	}
	payload, err := s.client.Productivity(ctx, params)
	if payload != nil {
		v.Trends = series.BuildTrends(payload.Trends, opts)
		v.Pagination = payload.Pagination
	}
	if err != nil {
		v.Alerts = append(v.Alerts, alertFor("productivity", err))
	}
	return v
}

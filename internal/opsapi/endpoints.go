package opsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/kebunops/opsreport/internal/location"
	"github.com/kebunops/opsreport/internal/model"
	"github.com/kebunops/opsreport/internal/series"
)

// Endpoint paths relative to the base URL.
const (
	PathLocations    = "location/dropdown"
	PathPests        = "hama"
	PathVariants     = "variant"
	PathHPT          = "report/ops/hpt"
	PathProduction   = "report/ops/production"
	PathProductivity = "report/ops/productivity/heatmap"
)

// ReportParams are the query filters shared by the report endpoints.
type ReportParams struct {
	// LocationIDs is the comma-joined ID query built by location.Resolver.
	LocationIDs string
	Start       string // YYYY-MM-DD
	End         string // YYYY-MM-DD
	PestID      string
	VariantID   string
	Page        int
	PageSize    int
}

// ReportPayload is the union of fields any report endpoint may return.
// Fields a given endpoint does not send stay at their zero value.
type ReportPayload struct {
	KPI        *model.KPIBlock   `json:"kpi,omitempty"`
	Trend      []series.RawGroup `json:"trend,omitempty"`
	Trends     []series.RawTrend `json:"trends,omitempty"`
	Pagination *model.Pagination `json:"pagination,omitempty"`
}

// empty reports whether the payload carries none of the expected sections.
func (p *ReportPayload) empty() bool {
	return p.KPI == nil && len(p.Trend) == 0 && len(p.Trends) == 0
}

// ─── Reference lists ─────────────────────────────────────────────────────────

// Locations fetches and normalises the location dropdown.
func (c *Client) Locations(ctx context.Context) ([]model.LocationRecord, error) {
	items, err := c.list(ctx, PathLocations)
	if err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}
	return location.Normalize(items), nil
}

// Pests fetches the pest (hama) list.
func (c *Client) Pests(ctx context.Context) ([]model.NamedRecord, error) {
	items, err := c.list(ctx, PathPests)
	if err != nil {
		return nil, fmt.Errorf("pests: %w", err)
	}
	return namedRecords(items), nil
}

// Variants fetches the crop variant list.
func (c *Client) Variants(ctx context.Context) ([]model.NamedRecord, error) {
	items, err := c.list(ctx, PathVariants)
	if err != nil {
		return nil, fmt.Errorf("variants: %w", err)
	}
	return namedRecords(items), nil
}

// list fetches an endpoint that returns either a bare array or {data: [...]}.
func (c *Client) list(ctx context.Context, endpoint string) ([]any, error) {
	body, err := c.getRaw(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return decodeList(body)
}

func decodeList(body []byte) ([]any, error) {
	var v any
	if err := decode(body, &v); err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if data, ok := t["data"].([]any); ok {
			return data, nil
		}
		if t["data"] == nil {
			return nil, ErrEmpty
		}
	}
	return nil, fmt.Errorf("%w: expected array or {data: [...]}", ErrDecode)
}

// namedRecords reuses the location field priorities for pests and variants,
// which the backend sends in the same loose shapes.
func namedRecords(items []any) []model.NamedRecord {
	locs := location.Normalize(items)
	out := make([]model.NamedRecord, 0, len(locs))
	for i, l := range locs {
		r := model.NamedRecord{ID: l.ID, Name: l.Name}
		if m, ok := items[i].(map[string]any); ok {
			if u, ok := m["unit"].(string); ok {
				r.Unit = u
			} else if u, ok := m["satuan"].(string); ok {
				r.Unit = u
			}
		}
		out = append(out, r)
	}
	return out
}

// ─── Reports ─────────────────────────────────────────────────────────────────

// HPT fetches the pest/disease report.
func (c *Client) HPT(ctx context.Context, p ReportParams) (*ReportPayload, error) {
	return c.report(ctx, PathHPT, p.values("startDate", "endDate"))
}

// Production fetches the production report.
func (c *Client) Production(ctx context.Context, p ReportParams) (*ReportPayload, error) {
	return c.report(ctx, PathProduction, p.values("start_date", "end_date"))
}

// Productivity fetches the productivity heatmap, following pagination until
// every page has been read. Trends from all pages are concatenated in order.
func (c *Client) Productivity(ctx context.Context, p ReportParams) (*ReportPayload, error) {
	page := p.Page
	if page < 1 {
		page = 1
	}
	var all *ReportPayload
	for {
		p.Page = page
		payload, err := c.report(ctx, PathProductivity, p.values("start_date", "end_date"))
		if err != nil {
			if all != nil {
				return all, fmt.Errorf("page %d: %w", page, err)
			}
			return nil, err
		}
		if all == nil {
			all = payload
		} else {
			all.Trends = append(all.Trends, payload.Trends...)
			all.Pagination = payload.Pagination
		}
		pg := payload.Pagination
		if pg == nil || pg.TotalPages <= page || len(payload.Trends) == 0 {
			break
		}
		page++
	}
	return all, nil
}

func (c *Client) report(ctx context.Context, endpoint string, params url.Values) (*ReportPayload, error) {
	body, err := c.getRaw(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	payload, err := decodeReport(body)
	if err != nil {
		return nil, err
	}
	if payload.empty() {
		return nil, ErrEmpty
	}
	return payload, nil
}

// decodeReport accepts the payload at the top level or wrapped in "data".
func decodeReport(body []byte) (*ReportPayload, error) {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	raw := body
	if d := bytes.TrimSpace(wrapper.Data); len(d) > 0 && d[0] == '{' {
		raw = d
	}
	var p ReportPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if p.Pagination == nil {
		var outer struct {
			Pagination *model.Pagination `json:"pagination"`
		}
		if json.Unmarshal(body, &outer) == nil {
			p.Pagination = outer.Pagination
		}
	}
	return &p, nil
}

// values builds the query string; HPT and the other reports disagree on the
// date parameter names, so the caller supplies them.
func (p ReportParams) values(startKey, endKey string) url.Values {
	v := url.Values{}
	if p.LocationIDs != "" {
		v.Set("location_id", p.LocationIDs)
	}
	if p.Start != "" {
		v.Set(startKey, p.Start)
	}
	if p.End != "" {
		v.Set(endKey, p.End)
	}
	v.Set("period", "daily")
	if p.PestID != "" {
		v.Set("hama_id", p.PestID)
	}
	if p.VariantID != "" {
		v.Set("variant_id", p.VariantID)
	}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	return v
}

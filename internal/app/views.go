package app

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mrcode/health-manager/internal/catalog"
	"github.com/mrcode/health-manager/internal/chart"
	"github.com/mrcode/health-manager/internal/models"
	"github.com/mrcode/health-manager/internal/reshape"
)

const dateLayout = "2006-01-02"

// RecordTypeInfo describes a record type for the entry form
type RecordTypeInfo struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Arity  int      `json:"arity"`
	Help   string   `json:"help"`
	// Default marks the type preselected in the entry form
	Default bool `json:"default"`
}

// RecordTypes lists the record types in entry form order
func (s *HealthService) RecordTypes() []RecordTypeInfo {
	types := catalog.RecordTypes()
	out := make([]RecordTypeInfo, 0, len(types))
	for _, rt := range types {
		out = append(out, RecordTypeInfo{
			Name:    rt.Name,
			Fields:  append([]string(nil), rt.Fields...),
			Arity:   rt.Arity(),
			Help:    rt.Help,
			Default: rt.Name == catalog.DefaultRecordTypeName,
		})
	}
	return out
}

// ViewRequest selects the measurements and dates of a view. Range names a
// range preset; when empty, Start and End (YYYY-MM-DD, optional) are used.
type ViewRequest struct {
	Names         []string `json:"names"`
	Range         string   `json:"range"`
	Start         string   `json:"start"`
	End           string   `json:"end"`
	Aggregate     string   `json:"aggregate"`
	ForwardFill   bool     `json:"forwardFill"`
	MovingAverage bool     `json:"movingAverage"`
}

// ViewResponse is a reshaped view in long form, ready for the chart widget
type ViewResponse struct {
	Columns  []string        `json:"columns"`
	Start    string          `json:"start"`
	End      string          `json:"end"`
	Points   []reshape.Point `json:"points"`
	Smoothed []reshape.Point `json:"smoothed,omitempty"`
}

// query resolves a request against the current table
func (s *HealthService) query(req ViewRequest) (reshape.Result, time.Time, time.Time, error) {
	table, err := s.snapshot()
	if err != nil {
		return reshape.Result{}, time.Time{}, time.Time{}, err
	}

	names := req.Names
	if len(names) == 0 {
		_, settings, err := s.active()
		if err != nil {
			return reshape.Result{}, time.Time{}, time.Time{}, err
		}
		names = reshape.Select(table, settings.Clone().Selection)
	}

	var start, end time.Time
	switch {
	case req.Range != "":
		start, end, err = reshape.DateRange(table, req.Range, s.now())
	default:
		start, end, err = parseRange(req.Start, req.End)
	}
	if err != nil {
		return reshape.Result{}, time.Time{}, time.Time{}, err
	}

	q := reshape.Query{
		Names:       names,
		Start:       start,
		End:         end,
		Aggregate:   reshape.ParseAggregate(req.Aggregate),
		ForwardFill: req.ForwardFill,
	}
	if req.MovingAverage {
		q.Window = reshape.DefaultWindow
	}
	return reshape.Reshape(table, q), start, end, nil
}

func parseRange(startStr, endStr string) (start, end time.Time, err error) {
	if startStr != "" {
		if start, err = time.ParseInLocation(dateLayout, startStr, time.Local); err != nil {
			return start, end, fmt.Errorf("invalid start date %q", startStr)
		}
	}
	if endStr != "" {
		if end, err = time.ParseInLocation(dateLayout, endStr, time.Local); err != nil {
			return start, end, fmt.Errorf("invalid end date %q", endStr)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("end date %s is before start date %s", endStr, startStr)
	}
	return start, end, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// GetView returns the selected measurements as a long-form day series
func (s *HealthService) GetView(req ViewRequest) (*ViewResponse, error) {
	res, start, end, err := s.query(req)
	if err != nil {
		return nil, err
	}

	resp := &ViewResponse{
		Columns: res.View.Columns,
		Start:   formatDate(start),
		End:     formatDate(end),
		Points:  res.View.Melt(),
	}
	if res.Smoothed != nil {
		resp.Smoothed = res.Smoothed.Melt()
	}
	return resp, nil
}

// GetChart renders the view as a PNG data URL. Zero sizes use the default.
func (s *HealthService) GetChart(req ViewRequest, width, height int) (string, error) {
	png, err := s.ChartPNG(req, chart.Options{Width: width, Height: height})
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// ChartPNG renders the view as PNG bytes
func (s *HealthService) ChartPNG(req ViewRequest, opts chart.Options) ([]byte, error) {
	res, _, _, err := s.query(req)
	if err != nil {
		return nil, err
	}
	return chart.Render(res.View, res.Smoothed, opts)
}

// GetTable returns the view formatted for display, newest day first
func (s *HealthService) GetTable(req ViewRequest) (*reshape.Table, error) {
	res, _, _, err := s.query(req)
	if err != nil {
		return nil, err
	}
	t := reshape.Display(res.View)
	return &t, nil
}

// PresetsInfo lists the selections offered above the chart
type PresetsInfo struct {
	Measurements []reshape.Preset      `json:"measurements"`
	Ranges       []reshape.RangePreset `json:"ranges"`
	Available    []string              `json:"available"`
	Selected     []string              `json:"selected"`
	DefaultRange string                `json:"defaultRange"`
}

// GetPresets returns the presets plus the measurements the user has recorded
func (s *HealthService) GetPresets() (*PresetsInfo, error) {
	table, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	_, settings, err := s.active()
	if err != nil {
		return nil, err
	}
	cfg := settings.Clone()

	defaultRange := cfg.DefaultRange
	if defaultRange == "" {
		defaultRange = reshape.DefaultRange
	}
	return &PresetsInfo{
		Measurements: reshape.Presets,
		Ranges:       reshape.RangePresets,
		Available:    reshape.OrderColumns(table.Names()),
		Selected:     reshape.Select(table, cfg.Selection),
		DefaultRange: defaultRange,
	}, nil
}

// Measurements returns a copy of the logged-in user's rows, oldest first
func (s *HealthService) Measurements() (models.Table, error) {
	table, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	return table.Sorted(), nil
}

package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// Results of GetAlerts when there is nothing to format.
const (
	NoDataMessage   = "Unable to fetch alerts"
	NoAlertsMessage = "No active alerts"
	AlertSeparator  = "\n---\n"
)

// States are the two-letter codes accepted by GetAlerts.
var States = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
}

// ErrInvalidState is returned for codes that are not US states.
var ErrInvalidState = errors.New("invalid state code")

// NormalizeState upper-cases and validates the state code.
func NormalizeState(state string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(state))
	if !slices.Contains(States, s) {
		return "", errors.WithMessagef(ErrInvalidState, "%q, use a two-letter US state code such as CA or NY", state)
	}
	return s, nil
}

// AlertProperties are the fields of an alert feature used in the report.
type AlertProperties struct {
	Event       string `json:"event"`
	AreaDesc    string `json:"areaDesc"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
}

// FormatAlert renders one alert.
func FormatAlert(p AlertProperties) string {
	return fmt.Sprintf("Event: %s\nArea: %s\nSeverity: %s\nDescription: %s\nInstructions: %s\n",
		orDefault(p.Event, "unknown"),
		orDefault(p.AreaDesc, "Unknown"),
		orDefault(p.Severity, "Unknown"),
		orDefault(p.Description, "No description available"),
		orDefault(p.Instruction, "No specific instructions provided"),
	)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// GetAlerts returns the active alerts for the state.
func (c *Client) GetAlerts(ctx context.Context, state string) (string, error) {
	st, err := NormalizeState(state)
	if err != nil {
		return "", err
	}

	data := c.get(ctx, "alerts", fmt.Sprintf("%s/alerts/active/area/%s", c.baseURL, st))
	if data == nil || !gjson.ValidBytes(data) {
		return NoDataMessage, nil
	}
	features := gjson.GetBytes(data, "features")
	if !features.Exists() {
		return NoDataMessage, nil
	}
	list := features.Array()
	if len(list) == 0 {
		return NoAlertsMessage, nil
	}

	alerts := make([]string, 0, len(list))
	for _, f := range list {
		var p AlertProperties
		if raw := f.Get("properties").Raw; raw != "" {
			_ = json.Unmarshal([]byte(raw), &p)
		}
		alerts = append(alerts, FormatAlert(p))
	}
	return strings.Join(alerts, AlertSeparator), nil
}

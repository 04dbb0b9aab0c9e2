package dashboard

import (
	"strings"

	"github.com/effective-security/mcpagent/mcp/weather"
)

// Severity classes of an alert card
const (
	SeveritySevere   = "severe"
	SeverityModerate = "moderate"
	SeverityMinor    = "minor"
)

// Alert is one alert card.
type Alert struct {
	Event        string
	Area         string
	Severity     string
	Description  string
	Instructions string
	// Class is the CSS severity class
	Class string
	Icon  string
}

// ParseAlert splits the "key: value" lines of an alert.
// Lines without a colon are ignored, the value keeps any further colons.
func ParseAlert(text string) map[string]string {
	data := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		data[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return data
}

// Severity maps the NWS severity to the card class.
func Severity(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "extreme"), strings.Contains(s, "severe"):
		return SeveritySevere
	case strings.Contains(s, "moderate"):
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

var severityIcons = map[string]string{
	SeveritySevere:   "🔴",
	SeverityModerate: "🟡",
	SeverityMinor:    "🟢",
}

// NewAlert parses the alert text into a card.
func NewAlert(text string) Alert {
	data := ParseAlert(text)
	a := Alert{
		Event:        valueOr(data, "Event", "Alert"),
		Area:         valueOr(data, "Area", "Unknown"),
		Severity:     valueOr(data, "Severity", "Unknown"),
		Description:  valueOr(data, "Description", "N/A"),
		Instructions: valueOr(data, "Instructions", "N/A"),
	}
	a.Class = Severity(a.Severity)
	a.Icon = severityIcons[a.Class]
	return a
}

func valueOr(data map[string]string, key, def string) string {
	if v, ok := data[key]; ok && v != "" {
		return v
	}
	return def
}

// SplitAlerts splits the get_alerts result into individual alerts.
func SplitAlerts(text string) []string {
	if !strings.Contains(text, "---") {
		return []string{text}
	}
	return strings.Split(text, "---")
}

// CountAlerts returns the number of real alerts in the get_alerts result.
func CountAlerts(text string) int {
	count := 0
	for _, part := range SplitAlerts(text) {
		if strings.TrimSpace(part) == "" ||
			strings.Contains(part, "No active") ||
			strings.Contains(part, "Error") {
			continue
		}
		count++
	}
	return count
}

// isClear reports a successful result without alerts.
func isClear(text string) bool {
	return strings.Contains(text, weather.NoAlertsMessage)
}

// isFailed reports a result that could not be fetched.
func isFailed(text string) bool {
	return strings.Contains(text, "Error") || strings.TrimSpace(text) == weather.NoDataMessage
}

package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// Results of GetForecast when the API has no data.
const (
	NoPointMessage    = "Unable to fetch forecast data for this location."
	NoForecastMessage = "Unable to fetch detailed forecast."
)

// ForecastPeriods is the number of periods in the report.
const ForecastPeriods = 5

// GetForecast returns the forecast for the location.
func (c *Client) GetForecast(ctx context.Context, latitude, longitude float64) (string, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return "", errors.Newf("invalid location: %v,%v", latitude, longitude)
	}

	points := c.get(ctx, "points", fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, latitude, longitude))
	forecastURL := gjson.GetBytes(points, "properties.forecast").String()
	if points == nil || forecastURL == "" {
		return NoPointMessage, nil
	}

	forecast := c.get(ctx, "forecast", forecastURL)
	periods := gjson.GetBytes(forecast, "properties.periods")
	if forecast == nil || !periods.IsArray() {
		return NoForecastMessage, nil
	}

	var list []string
	for i, p := range periods.Array() {
		if i == ForecastPeriods {
			break
		}
		list = append(list, fmt.Sprintf("%s:\nTemperature: %s°%s\nWind: %s %s\nForecast: %s\n",
			p.Get("name").String(),
			p.Get("temperature").String(),
			p.Get("temperatureUnit").String(),
			p.Get("windSpeed").String(),
			p.Get("windDirection").String(),
			p.Get("detailedForecast").String(),
		))
	}
	return strings.Join(list, AlertSeparator), nil
}

package tools

import (
	"context"
	"fmt"
	"strings"
)

// WeatherParams is the reflected parameter shape for the weather tool.
type WeatherParams struct {
	City string `json:"city" jsonschema:"description=City name to forecast for.,required"`
	Date string `json:"date" jsonschema:"description=Date to forecast for, e.g. 'tomorrow' or an ISO date.,required"`
}

// weatherForecast is a deterministic canned forecast keyed by city, used by
// end-to-end scenario 2 of §8 so the tool loop is testable without a live
// network dependency.
type weatherForecast struct {
	Condition   string
	TempCelsius int
	RainChance  int
}

var cannedForecasts = map[string]weatherForecast{
	"singapore": {Condition: "thunderstorms", TempCelsius: 29, RainChance: 80},
	"london":    {Condition: "overcast", TempCelsius: 14, RainChance: 40},
	"tokyo":     {Condition: "clear skies", TempCelsius: 22, RainChance: 5},
}

var defaultForecast = weatherForecast{Condition: "partly cloudy", TempCelsius: 20, RainChance: 20}

// weatherTool is a deterministic mock returning a canned forecast; a
// production deployment swaps it for a real provider behind the same Tool
// interface (§4.10).
type weatherTool struct {
	Definition
}

func NewWeatherTool() Tool {
	return &weatherTool{Definition: NewDefinition(
		"weather", "weather", "information",
		"Returns a weather forecast for a city and date.",
		&WeatherParams{},
	)}
}

func (w *weatherTool) Invoke(ctx context.Context, params map[string]any) (string, error) {
	var p WeatherParams
	if err := ValidateAgainstSchema(params, &p); err != nil {
		return "", err
	}
	forecast, ok := cannedForecasts[strings.ToLower(strings.TrimSpace(p.City))]
	if !ok {
		forecast = defaultForecast
	}
	umbrella := "no umbrella needed"
	if forecast.RainChance >= 50 {
		umbrella = "bring an umbrella"
	}
	return fmt.Sprintf("Forecast for %s on %s: %s, %d°C, %d%% chance of rain (%s).",
		p.City, p.Date, forecast.Condition, forecast.TempCelsius, forecast.RainChance, umbrella), nil
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nugget/chatur/internal/intent"
	"github.com/nugget/chatur/internal/weather"
)

// WeatherSource reports current conditions. An empty place means the
// configured home location.
type WeatherSource interface {
	Current(ctx context.Context, place string) (weather.Current, error)
}

// Weather reads out current conditions.
type Weather struct {
	handles
	source WeatherSource
}

// NewWeather creates the weather handler.
func NewWeather(source WeatherSource) *Weather {
	return &Weather{handles: handles(intent.Weather), source: source}
}

// Handle implements [Handler].
func (h *Weather) Handle(ctx context.Context, in intent.Intent) (string, error) {
	if h.source == nil {
		return "", fail(ErrUnavailable, "weather", nil)
	}
	place := strings.TrimSpace(in.Param(intent.ParamLocation))
	cur, err := h.source.Current(ctx, place)
	switch {
	case errors.Is(err, weather.ErrUnknownPlace):
		return "", fail(ErrNotFound, place, err)
	case err != nil:
		return "", fail(ErrTransient, "getting the weather", err)
	}

	if in.ResponseLanguage() == intent.Hindi {
		return fmt.Sprintf("%s में अभी तापमान %.0f डिग्री है। नमी %d%% है।",
			cur.Place, cur.Temperature, cur.Humidity), nil
	}
	return cur.Speech(), nil
}

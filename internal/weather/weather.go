// Package weather fetches current conditions from Open-Meteo, which
// needs no API key. Place names are resolved with the Open-Meteo
// geocoding API. Responses are cached per location.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nugget/chatur/internal/httpkit"
)

// ErrUnknownPlace is returned when geocoding finds no match.
var ErrUnknownPlace = errors.New("unknown place")

// Config lives under the "weather" YAML key.
type Config struct {
	// City names the default location in replies.
	City      string  `yaml:"city"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	// Units is "metric" or "imperial".
	Units    string        `yaml:"units"`
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Base URLs; tests point these at httptest servers.
	ForecastURL  string `yaml:"forecast_url"`
	GeocodingURL string `yaml:"geocoding_url"`
}

// ApplyDefaults fills zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Units == "" {
		c.Units = "metric"
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Minute
	}
	if c.ForecastURL == "" {
		c.ForecastURL = "https://api.open-meteo.com/v1/forecast"
	}
	if c.GeocodingURL == "" {
		c.GeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	}
}

// Current is one observation.
type Current struct {
	Place       string
	Temperature float64
	FeelsLike   float64
	Humidity    int
	WindSpeed   float64
	Code        int
	Units       string
}

// Description names the WMO weather code in plain words.
func (c Current) Description() string {
	return describeCode(c.Code)
}

// Speech renders c as a sentence to read aloud.
func (c Current) Speech() string {
	unit := "°C"
	if c.Units == "imperial" {
		unit = "°F"
	}
	return fmt.Sprintf("In %s, it's currently %d%s and %s. It feels like %d%s. Humidity is %d%%.",
		c.Place, round(c.Temperature), unit, c.Description(), round(c.FeelsLike), unit, c.Humidity)
}

// Client is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	cache  *expirable.LRU[string, Current]
	logger *slog.Logger
}

// NewClient applies defaults to cfg.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   httpkit.NewClient(httpkit.WithTimeout(10 * time.Second)),
		cache:  expirable.NewLRU[string, Current](64, nil, cfg.CacheTTL),
		logger: logger,
	}
}

// Current returns conditions for place, or for the configured location
// when place is empty.
func (c *Client) Current(ctx context.Context, place string) (Current, error) {
	key := strings.ToLower(strings.TrimSpace(place))
	if cur, ok := c.cache.Get(key); ok {
		return cur, nil
	}

	lat, lon, name := c.cfg.Latitude, c.cfg.Longitude, c.cfg.City
	if key != "" {
		var err error
		if lat, lon, name, err = c.geocode(ctx, place); err != nil {
			return Current{}, err
		}
	}
	if name == "" {
		name = "your area"
	}

	cur, err := c.fetch(ctx, lat, lon)
	if err != nil {
		return Current{}, err
	}
	cur.Place = name
	c.cache.Add(key, cur)
	c.logger.Info("weather fetched", "place", name, "temperature", cur.Temperature)
	return cur, nil
}

func (c *Client) geocode(ctx context.Context, place string) (lat, lon float64, name string, err error) {
	q := url.Values{"name": {place}, "count": {"1"}, "format": {"json"}}
	var out struct {
		Results []struct {
			Name      string  `json:"name"`
			Country   string  `json:"country"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := c.getJSON(ctx, c.cfg.GeocodingURL+"?"+q.Encode(), &out); err != nil {
		return 0, 0, "", fmt.Errorf("geocode %q: %w", place, err)
	}
	if len(out.Results) == 0 {
		return 0, 0, "", fmt.Errorf("%w: %s", ErrUnknownPlace, place)
	}
	r := out.Results[0]
	return r.Latitude, r.Longitude, r.Name, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64) (Current, error) {
	q := url.Values{
		"latitude":  {strconv.FormatFloat(lat, 'f', 4, 64)},
		"longitude": {strconv.FormatFloat(lon, 'f', 4, 64)},
		"current":   {"temperature_2m,apparent_temperature,relative_humidity_2m,weather_code,wind_speed_10m"},
	}
	if c.cfg.Units == "imperial" {
		q.Set("temperature_unit", "fahrenheit")
		q.Set("wind_speed_unit", "mph")
	}
	var out struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			Apparent    float64 `json:"apparent_temperature"`
			Humidity    int     `json:"relative_humidity_2m"`
			Code        int     `json:"weather_code"`
			Wind        float64 `json:"wind_speed_10m"`
		} `json:"current"`
	}
	if err := c.getJSON(ctx, c.cfg.ForecastURL+"?"+q.Encode(), &out); err != nil {
		return Current{}, fmt.Errorf("fetch weather: %w", err)
	}
	return Current{
		Temperature: out.Current.Temperature,
		FeelsLike:   out.Current.Apparent,
		Humidity:    out.Current.Humidity,
		WindSpeed:   out.Current.Wind,
		Code:        out.Current.Code,
		Units:       c.cfg.Units,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer httpkit.DrainAndClose(resp.Body, 4096)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func round(f float64) int {
	return int(math.Round(f))
}

// describeCode maps WMO weather interpretation codes.
func describeCode(code int) string {
	switch {
	case code == 0:
		return "clear sky"
	case code <= 2:
		return "partly cloudy"
	case code == 3:
		return "overcast"
	case code == 45 || code == 48:
		return "foggy"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95:
		return "thunderstorms"
	}
	return "mixed conditions"
}

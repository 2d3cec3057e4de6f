package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/cache"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
)

const (
	defaultIPAPIURL     = "http://ip-api.com/json"
	defaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	defaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

	nominatimUserAgent = "Stormhacks/1.0 (contact: none)"
)

type LocationTTLs struct {
	Geo     time.Duration
	IP      time.Duration
	Weather time.Duration
}

// LocationEndpoints overrides upstream base URLs.
type LocationEndpoints struct {
	IPAPI     string
	Nominatim string
	OpenMeteo string
}

type LocationOption func(*LocationService)

func WithEndpoints(e LocationEndpoints) LocationOption {
	return func(s *LocationService) {
		if e.IPAPI != "" {
			s.endpoints.IPAPI = e.IPAPI
		}
		if e.Nominatim != "" {
			s.endpoints.Nominatim = e.Nominatim
		}
		if e.OpenMeteo != "" {
			s.endpoints.OpenMeteo = e.OpenMeteo
		}
	}
}

func WithHTTPClient(c *http.Client) LocationOption {
	return func(s *LocationService) { s.http = c }
}

// LocationService proxies IP geolocation, city geocoding and current weather
// lookups through the shared TTL cache.
type LocationService struct {
	cache     *cache.Cache
	ttls      LocationTTLs
	endpoints LocationEndpoints
	http      *http.Client
}

func NewLocationService(c *cache.Cache, ttls LocationTTLs, opts ...LocationOption) *LocationService {
	s := &LocationService{
		cache: c,
		ttls:  ttls,
		endpoints: LocationEndpoints{
			IPAPI:     defaultIPAPIURL,
			Nominatim: defaultNominatimURL,
			OpenMeteo: defaultOpenMeteoURL,
		},
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LookupIP resolves an address via ip-api. An empty ip asks ip-api to use the
// caller's own address. Only successful lookups are cached; an answer with a
// non-success status comes back as *IPLookupError.
func (s *LocationService) LookupIP(ctx context.Context, ip string) (*models.IPLocation, error) {
	return cache.Cached(ctx, s.cache, "ip:"+ip, s.ttls.IP, func(ctx context.Context) (*models.IPLocation, error) {
		endpoint := strings.TrimRight(s.endpoints.IPAPI, "/")
		if ip != "" {
			endpoint += "/" + url.PathEscape(ip)
		}

		var loc models.IPLocation
		if err := s.getJSON(ctx, endpoint, nil, &loc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrIPProvider, err)
		}
		if loc.Status != "success" {
			return nil, &IPLookupError{Location: &loc}
		}
		return &loc, nil
	})
}

// Geocode returns the best Nominatim match for city, or nil when there is none.
// Misses are cached like hits.
func (s *LocationService) Geocode(ctx context.Context, city string) (*models.GeoResult, error) {
	key := "geo:" + strings.ToLower(strings.TrimSpace(city))
	return cache.Cached(ctx, s.cache, key, s.ttls.Geo, func(ctx context.Context) (*models.GeoResult, error) {
		q := url.Values{}
		q.Set("q", city)
		q.Set("format", "json")
		q.Set("limit", "1")

		var hits []struct {
			Lat         string `json:"lat"`
			Lon         string `json:"lon"`
			DisplayName string `json:"display_name"`
		}
		headers := map[string]string{"User-Agent": nominatimUserAgent}
		if err := s.getJSON(ctx, s.endpoints.Nominatim+"?"+q.Encode(), headers, &hits); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeocodingProvider, err)
		}
		if len(hits) == 0 {
			return nil, nil
		}

		lat, errLat := strconv.ParseFloat(hits[0].Lat, 64)
		lon, errLon := strconv.ParseFloat(hits[0].Lon, 64)
		if errLat != nil || errLon != nil {
			return nil, fmt.Errorf("%w: malformed coordinates %q,%q", ErrGeocodingProvider, hits[0].Lat, hits[0].Lon)
		}
		return &models.GeoResult{Lat: lat, Lon: lon, DisplayName: hits[0].DisplayName}, nil
	})
}

// Weather fetches the Open-Meteo forecast document for the coordinates.
func (s *LocationService) Weather(ctx context.Context, lat, lon float64) (map[string]any, error) {
	key := fmt.Sprintf("weather:%.3f:%.3f", lat, lon)
	return cache.Cached(ctx, s.cache, key, s.ttls.Weather, func(ctx context.Context) (map[string]any, error) {
		q := url.Values{}
		q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
		q.Set("current_weather", "true")
		q.Set("timezone", "auto")
		q.Set("temperature_unit", "celsius")
		q.Set("windspeed_unit", "kmh")

		var doc map[string]any
		if err := s.getJSON(ctx, s.endpoints.OpenMeteo+"?"+q.Encode(), nil, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWeatherProvider, err)
		}
		return doc, nil
	})
}

// CurrentWeatherFrom picks the current_weather block out of a forecast
// document, falling back to the document itself.
func CurrentWeatherFrom(doc map[string]any) *models.CurrentWeather {
	if doc == nil {
		return nil
	}
	var src any = doc
	if cw, ok := doc["current_weather"]; ok && cw != nil {
		src = cw
	}

	raw, err := json.Marshal(src)
	if err != nil {
		return nil
	}
	var cw models.CurrentWeather
	if err := json.Unmarshal(raw, &cw); err != nil {
		return nil
	}
	return &cw
}

func (s *LocationService) getJSON(ctx context.Context, endpoint string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &UpstreamError{Provider: req.URL.Host, Status: resp.StatusCode, Body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

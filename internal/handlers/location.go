package handlers

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/middleware"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/models"
	"github.com/Rubber-Duck-Productions/Stormhacks-2025/internal/services"
)

type locationService interface {
	LookupIP(ctx context.Context, ip string) (*models.IPLocation, error)
	Geocode(ctx context.Context, city string) (*models.GeoResult, error)
	Weather(ctx context.Context, lat, lon float64) (map[string]any, error)
}

type LocationHandler struct {
	locations locationService
}

func NewLocationHandler(locations locationService) *LocationHandler {
	return &LocationHandler{locations: locations}
}

// Location reports where an IP address (the caller's by default) is located.
func (h *LocationHandler) Location(w http.ResponseWriter, r *http.Request) {
	ip := r.URL.Query().Get("ip")
	if ip == "" {
		ip = middleware.ClientIP(r)
	}

	loc, err := h.locations.LookupIP(r.Context(), ip)
	if err != nil {
		var lookupErr *services.IPLookupError
		if !errors.As(err, &lookupErr) {
			log.Printf("location lookup for %q failed: %v", ip, err)
			writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "Failed to fetch location", r))
			return
		}
		loc = lookupErr.Location
	}

	writeJSON(w, http.StatusOK, conciseLocation(loc, ip))
}

// Weather resolves coordinates from lat+lon, then city, then ip, then the
// caller's address, and returns the current conditions there.
func (h *LocationHandler) Weather(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var (
		lat, lon float64
		name     string
	)

	latStr, lonStr := q.Get("lat"), q.Get("lon")
	switch {
	case latStr != "" && lonStr != "":
		var errLat, errLon error
		lat, errLat = strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		lon, errLon = strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if errLat != nil || errLon != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid coordinates", r))
			return
		}
		name = q.Get("city")

	case q.Get("city") != "":
		city := q.Get("city")
		geo, err := h.locations.Geocode(ctx, city)
		if err != nil {
			log.Printf("weather: geocoding %q failed: %v", city, err)
			writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "Geocoding provider error", r))
			return
		}
		if geo == nil {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Location not found (geocoding)", r))
			return
		}
		lat, lon, name = geo.Lat, geo.Lon, city

	default:
		ip := q.Get("ip")
		if ip == "" {
			ip = middleware.ClientIP(r)
		}
		loc, err := h.locations.LookupIP(ctx, ip)
		if err != nil {
			log.Printf("weather: ip lookup for %q failed: %v", ip, err)
			if errors.Is(err, services.ErrIPLookupUnresolved) {
				writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "IP location lookup failed", r))
			} else {
				writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "IP location provider error", r))
			}
			return
		}
		lat, lon = loc.Lat, loc.Lon
		name = firstNonEmpty(loc.City, loc.RegionName, loc.Country)
	}

	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid coordinates", r))
		return
	}

	doc, err := h.locations.Weather(ctx, lat, lon)
	if err != nil {
		log.Printf("weather: forecast for %.3f,%.3f failed: %v", lat, lon, err)
		if errors.Is(err, services.ErrWeatherProvider) {
			writeJSON(w, http.StatusBadGateway, errorResp("UPSTREAM_ERROR", "Weather provider error", r))
		} else {
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Internal error", r))
		}
		return
	}

	resp := models.WeatherResponse{
		Location: models.WeatherLocation{Lat: lat, Lon: lon},
		Weather:  services.CurrentWeatherFrom(doc),
		Raw:      doc,
	}
	if name != "" {
		resp.Location.Name = &name
	}
	writeJSON(w, http.StatusOK, resp)
}

func conciseLocation(loc *models.IPLocation, requested string) models.LocationResponse {
	resp := models.LocationResponse{
		Status:  loc.Status,
		Country: loc.Country,
		Region:  firstNonEmpty(loc.RegionName, loc.Region),
		City:    loc.City,
		Lat:     loc.Lat,
		Lon:     loc.Lon,
		ISP:     loc.ISP,
	}
	if ip := firstNonEmpty(loc.Query, requested); ip != "" {
		resp.IP = &ip
	}
	return resp
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package models

// IPLocation is the subset of the ip-api.com payload the proxy relies on.
type IPLocation struct {
	Query      string  `json:"query"`
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	Country    string  `json:"country"`
	Region     string  `json:"region"`
	RegionName string  `json:"regionName"`
	City       string  `json:"city"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	ISP        string  `json:"isp"`
}

// LocationResponse is returned by GET /api/location.
type LocationResponse struct {
	IP      *string `json:"ip"`
	Status  string  `json:"status"`
	Country string  `json:"country"`
	Region  string  `json:"region"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	ISP     string  `json:"isp"`
}

// GeoResult is the first Nominatim match for a city query.
type GeoResult struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
}

// CurrentWeather mirrors Open-Meteo's current_weather block.
type CurrentWeather struct {
	Temperature   float64 `json:"temperature"`
	Windspeed     float64 `json:"windspeed"`
	Winddirection float64 `json:"winddirection"`
	Weathercode   int     `json:"weathercode"`
	Time          string  `json:"time"`
}

type WeatherLocation struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name *string `json:"name"`
}

// WeatherResponse is returned by GET /api/weather. Raw carries the untouched
// upstream document.
type WeatherResponse struct {
	Location WeatherLocation `json:"location"`
	Weather  *CurrentWeather `json:"weather"`
	Raw      map[string]any  `json:"raw"`
}

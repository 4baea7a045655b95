package models

// Location is a named geographic point. Locations are defined once at startup and never mutated.
type Location struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Icon is the display category derived from a short forecast description.
type Icon string

const (
	IconRain  Icon = "rain"
	IconSnow  Icon = "snow"
	IconCloud Icon = "cloud"
	IconWind  Icon = "wind"
	IconSun   Icon = "sun"
)

// ConditionsReport is built fresh for every resolution and owned by the caller.
type ConditionsReport struct {
	Location              string `json:"location"`
	TemperatureFahrenheit int    `json:"temperatureFahrenheit"`
	ShortDescription      string `json:"shortDescription"`
	DetailedDescription   string `json:"detailedDescription"`
	Icon                  Icon   `json:"icon"`
	OutdoorFavorable      bool   `json:"outdoorFavorable"`
	IsFallback            bool   `json:"isFallback"`
}

// Period is one forecast entry from the upstream provider.
type Period struct {
	Name             string `json:"name"`
	Temperature      int    `json:"temperature"`
	TemperatureUnit  string `json:"temperatureUnit"`
	ShortForecast    string `json:"shortForecast"`
	DetailedForecast string `json:"detailedForecast"`
}

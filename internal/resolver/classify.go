package resolver

import (
	"strings"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/models"
)

// Inclusive porch-worthy temperature band in °F.
const (
	favorableMinF = 60
	favorableMaxF = 85
)

// Fallback report values served when live data cannot be obtained.
const (
	FallbackTemperatureF        = 72
	FallbackShortDescription    = "Partly Cloudy"
	FallbackDetailedDescription = "Live weather data is temporarily unavailable. Showing typical conditions."
)

// iconRules are checked in order; the first rule with a matching term wins.
var iconRules = []struct {
	icon  models.Icon
	terms []string
}{
	{models.IconRain, []string{"rain", "shower", "storm", "drizzle", "thunder"}},
	{models.IconSnow, []string{"snow", "sleet", "flurr", "blizzard"}},
	{models.IconCloud, []string{"cloud", "overcast", "fog"}},
	{models.IconWind, []string{"wind", "breez", "gust"}},
	{models.IconSun, []string{"sun", "clear", "fair"}},
}

// unfavorableTerms disqualify a forecast from being porch-worthy regardless of temperature.
var unfavorableTerms = []string{"rain", "storm", "snow"}

// ClassifyIcon maps a short forecast to its display icon. Matching is case-insensitive;
// descriptions with no recognised term get the cloud icon.
func ClassifyIcon(shortDescription string) models.Icon {
	desc := strings.ToLower(shortDescription)
	for _, rule := range iconRules {
		if containsAny(desc, rule.terms) {
			return rule.icon
		}
	}
	return models.IconCloud
}

// IsOutdoorFavorable reports whether conditions are porch-worthy: temperature within
// 60–85°F inclusive and no rain, storm or snow in the description.
func IsOutdoorFavorable(temperatureF int, shortDescription string) bool {
	if temperatureF < favorableMinF || temperatureF > favorableMaxF {
		return false
	}
	return !containsAny(strings.ToLower(shortDescription), unfavorableTerms)
}

// BuildReport classifies a live forecast period for a location.
func BuildReport(location string, p models.Period) models.ConditionsReport {
	return models.ConditionsReport{
		Location:              location,
		TemperatureFahrenheit: p.Temperature,
		ShortDescription:      p.ShortForecast,
		DetailedDescription:   p.DetailedForecast,
		Icon:                  ClassifyIcon(p.ShortForecast),
		OutdoorFavorable:      IsOutdoorFavorable(p.Temperature, p.ShortForecast),
		IsFallback:            false,
	}
}

// FallbackReport returns the fixed default report for a location.
func FallbackReport(location string) models.ConditionsReport {
	return models.ConditionsReport{
		Location:              location,
		TemperatureFahrenheit: FallbackTemperatureF,
		ShortDescription:      FallbackShortDescription,
		DetailedDescription:   FallbackDetailedDescription,
		Icon:                  ClassifyIcon(FallbackShortDescription),
		OutdoorFavorable:      true,
		IsFallback:            true,
	}
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

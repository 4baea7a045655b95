// Package towns holds the static Central Indiana catalog: coordinates, weekend events
// and maintenance tips for each supported town.
package towns

import (
	"errors"
	"strings"

	"github.com/kjstillabower/hoosier-weekend-helper/internal/models"
)

// ErrTownNotFound is returned when a name does not match a catalog entry.
var ErrTownNotFound = errors.New("town not found")

var catalog = []models.Town{
	{
		Location: models.Location{Name: "Carmel", Latitude: 39.9784, Longitude: -86.1180},
		Color:    "from-blue-400 to-blue-600",
		Events: []models.Event{
			{Name: "Carmel Farmers Market", Time: "Saturday 8am-12pm", Venue: "Carter Green"},
			{Name: "Arts & Design District Walk", Time: "Sunday 2pm-5pm", Venue: "Main Street"},
		},
		MaintenanceTip: "Check your sump pump - spring rains are coming!",
	},
	{
		Location: models.Location{Name: "Fishers", Latitude: 39.9568, Longitude: -86.0134},
		Color:    "from-green-400 to-green-600",
		Events: []models.Event{
			{Name: "Nickel Plate District Block Party", Time: "Saturday 6pm-10pm", Venue: "Municipal Drive"},
			{Name: "Fishers Test Kitchen Food Tour", Time: "Sunday 12pm-3pm", Venue: "Downtown Fishers"},
		},
		MaintenanceTip: "Perfect weekend to clean those gutters",
	},
	{
		Location: models.Location{Name: "Noblesville", Latitude: 40.0456, Longitude: -86.0086},
		Color:    "from-purple-400 to-purple-600",
		Events: []models.Event{
			{Name: "Noblesville Farmers Market", Time: "Saturday 8am-12pm", Venue: "Federal Hill Commons"},
			{Name: "Forest Park Concert", Time: "Sunday 7pm-9pm", Venue: "Forest Park"},
		},
		MaintenanceTip: "Time to check your HVAC filters",
	},
	{
		Location: models.Location{Name: "Zionsville", Latitude: 39.9509, Longitude: -86.2619},
		Color:    "from-amber-400 to-amber-600",
		Events: []models.Event{
			{Name: "Village Shopping Walk", Time: "Saturday 10am-5pm", Venue: "Main Street"},
			{Name: "SullivanMunce Cultural Center", Time: "Sunday 1pm-4pm", Venue: "W Hawthorne St"},
		},
		MaintenanceTip: "Great weather for exterior painting projects",
	},
	{
		Location: models.Location{Name: "Westfield", Latitude: 40.0428, Longitude: -86.1275},
		Color:    "from-red-400 to-red-600",
		Events: []models.Event{
			{Name: "Grand Junction Plaza Events", Time: "Saturday 5pm-9pm", Venue: "Grand Junction"},
			{Name: "Grand Park Sports Complex", Time: "All Weekend", Venue: "Grand Park"},
		},
		MaintenanceTip: "Check your roof for winter damage",
	},
	{
		Location: models.Location{Name: "Indianapolis", Latitude: 39.7684, Longitude: -86.1581},
		Color:    "from-indigo-400 to-indigo-600",
		Events: []models.Event{
			{Name: "Broad Ripple Art Fair", Time: "Saturday 10am-6pm", Venue: "Broad Ripple Village"},
			{Name: "Mass Ave Arts District", Time: "All Weekend", Venue: "Massachusetts Avenue"},
			{Name: "Indianapolis City Market", Time: "Saturday 9am-2pm", Venue: "Downtown"},
		},
		MaintenanceTip: "Power wash your deck - porch season is here!",
	},
}

var byKey = func() map[string]int {
	index := make(map[string]int, len(catalog))
	for i, t := range catalog {
		index[normalizeName(t.Name)] = i
	}
	return index
}()

// All returns every town in display order. The returned slice is a copy; events are shared read-only.
func All() []models.Town {
	out := make([]models.Town, len(catalog))
	copy(out, catalog)
	return out
}

// Names returns town names in display order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for _, t := range catalog {
		names = append(names, t.Name)
	}
	return names
}

// Lookup finds a town by name, ignoring case and surrounding whitespace.
func Lookup(name string) (models.Town, error) {
	i, ok := byKey[normalizeName(name)]
	if !ok {
		return models.Town{}, ErrTownNotFound
	}
	return catalog[i], nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

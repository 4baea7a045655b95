package models

// Event is a static weekend listing for a town.
type Event struct {
	Name  string `json:"name"`
	Time  string `json:"time"`
	Venue string `json:"location"`
}

// Town bundles a Location with the static weekend content shown for it.
type Town struct {
	Location
	Color          string  `json:"color"`
	Events         []Event `json:"events"`
	MaintenanceTip string  `json:"maintenanceTip"`
}

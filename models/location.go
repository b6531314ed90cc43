package models

// Location is one scrape target: a retailer's menu page. Locations are
// deploy-time configuration and read-only at runtime.
type Location struct {
	// RetailerSlug is the stable identifier used downstream.
	RetailerSlug string `json:"retailerSlug"`

	// Name is the human-readable display name.
	Name string `json:"name"`

	// MenuURL is the JavaScript-rendered listing page.
	MenuURL string `json:"menuUrl"`

	// Region groups locations geographically (e.g. "phx-metro").
	Region string `json:"region"`

	// Disabled excludes the location from batches. DisabledReason
	// documents why (site redesign, retailer closed, ...).
	Disabled       bool   `json:"disabled,omitempty"`
	DisabledReason string `json:"disabledReason,omitempty"`
}

// ActiveLocations filters out disabled entries.
func ActiveLocations(all []Location) []Location {
	active := make([]Location, 0, len(all))
	for _, loc := range all {
		if !loc.Disabled {
			active = append(active, loc)
		}
	}
	return active
}

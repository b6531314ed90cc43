package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/leafsignal/menuwatch/models"
)

// defaultLocations is the embedded location set used when no file is
// configured. Deployments override it with MENUWATCH_LOCATIONS_FILE.
var defaultLocations = []models.Location{
	{
		RetailerSlug: "desert-bloom-tempe",
		Name:         "Desert Bloom Tempe",
		MenuURL:      "https://shop.desertbloomaz.example/menu",
		Region:       "phx-metro",
	},
	{
		RetailerSlug: "high-tide-mesa",
		Name:         "High Tide Mesa",
		MenuURL:      "https://hightide.example/stores/mesa/menu",
		Region:       "phx-metro",
	},
	{
		RetailerSlug: "emerald-row-flagstaff",
		Name:         "Emerald Row Flagstaff",
		MenuURL:      "https://emeraldrow.example/flagstaff",
		Region:       "northern-az",
		Disabled:     true,
		DisabledReason: "menu moved behind login wall 2026-07; pending " +
			"new listing selectors",
	},
}

// LoadLocations returns the configured location list. When path is
// empty the embedded defaults are returned.
func LoadLocations(path string) ([]models.Location, error) {
	if path == "" {
		return defaultLocations, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read locations file: %w", err)
	}

	var locations []models.Location
	if err := json.Unmarshal(data, &locations); err != nil {
		return nil, fmt.Errorf("config: parse locations file: %w", err)
	}

	for i, loc := range locations {
		if loc.RetailerSlug == "" || loc.MenuURL == "" {
			return nil, fmt.Errorf("config: location %d missing retailerSlug or menuUrl", i)
		}
	}
	return locations, nil
}

package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/leafsignal/menuwatch/models"
)

// quantityPatterns is the fixed, ordered regex list scanned against
// rendered text. First match wins.
var quantityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s+left in stock`),
	regexp.MustCompile(`(?i)only\s+(\d+)\s+left`),
	regexp.MustCompile(`(?i)(\d+)\s+remaining`),
	regexp.MustCompile(`(?i)(\d+)\s+available`),
	regexp.MustCompile(`(?i)limited:\s*(\d+)`),
	regexp.MustCompile(`(?i)low stock:\s*(\d+)`),
	regexp.MustCompile(`(?i)hurry,?\s*only\s+(\d+)`),
}

// outOfStockTexts mark a product unavailable regardless of any
// quantity text elsewhere.
var outOfStockTexts = []string{"out of stock", "sold out", "unavailable"}

// maxPlausibleQuantity rejects pattern matches that cannot be real
// inventory (order numbers, SKUs rendered into text).
const maxPlausibleQuantity = 10000

// matchQuantityText scans text against the pattern list and returns the
// first extracted quantity with the matched snippet, or (nil, "").
func matchQuantityText(text string) (*int, string) {
	for _, re := range quantityPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 0 || n > maxPlausibleQuantity {
			continue
		}
		return &n, strings.TrimSpace(m[0])
	}
	return nil, ""
}

// hasOutOfStockText reports whether text carries an unavailability phrase.
func hasOutOfStockText(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range outOfStockTexts {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// outOfStockResult is the heuristic chain's step-1 outcome.
func outOfStockResult() models.InventoryResult {
	zero := 0
	return models.InventoryResult{
		Quantity:   &zero,
		InStock:    false,
		Source:     models.InventorySourceBadge,
		Confidence: models.ConfidenceExact,
	}
}

// textResult wraps a page-text pattern match.
func textResult(quantity int, warning string) models.InventoryResult {
	res := models.InventoryResult{
		Quantity:   &quantity,
		InStock:    quantity > 0,
		Source:     models.InventorySourcePageText,
		Confidence: models.ConfidenceExact,
	}
	if warning != "" {
		res.QuantityWarning = &warning
	}
	return res
}

// booleanResult is the terminal fallback: in stock, count unknown.
func booleanResult() models.InventoryResult {
	return models.InventoryResult{
		InStock:    true,
		Source:     models.InventorySourceUnknown,
		Confidence: models.ConfidenceBoolean,
	}
}

// detailProbe is the raw material scriptDetailProbe returns.
type detailProbe struct {
	HasBadge    bool   `json:"hasBadge"`
	BodyText    string `json:"bodyText"`
	DropdownMax *int   `json:"dropdownMax"`
}

// resolveInventory runs the ordered fallback chain over a detail-page
// probe: badge, text pattern, quantity-selector max, boolean. The
// cart-hack step sits between the selector max and the boolean fallback
// and is applied separately because it is slow (see runCartHack).
func resolveInventory(probe detailProbe, dropdownCeiling int) models.InventoryResult {
	if probe.HasBadge || hasOutOfStockText(probe.BodyText) {
		return outOfStockResult()
	}
	if qty, warning := matchQuantityText(probe.BodyText); qty != nil {
		if *qty == 0 {
			return outOfStockResult()
		}
		return textResult(*qty, warning)
	}
	if probe.DropdownMax != nil {
		max := *probe.DropdownMax
		// Large maxima are UI conveniences, not inventory counts.
		if max > 0 && max < dropdownCeiling {
			return models.InventoryResult{
				Quantity:   &max,
				InStock:    true,
				Source:     models.InventorySourceDropdown,
				Confidence: models.ConfidenceEstimated,
			}
		}
	}
	return booleanResult()
}

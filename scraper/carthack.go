package scraper

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/leafsignal/menuwatch/models"
)

// cartLimitPatterns parse the validation message provoked by the cart
// probe. Ordered; first match wins.
var cartLimitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)max(?:imum)?\s+is\s+(\d+)`),
	regexp.MustCompile(`(?i)only\s+(\d+)\s+available`),
	regexp.MustCompile(`(?i)cannot add more than\s+(\d+)`),
	regexp.MustCompile(`(?i)adjusted to\s+(\d+)`),
	regexp.MustCompile(`(?i)only\s+(\d+)\s+left`),
	regexp.MustCompile(`(?i)limit(?:ed)? to\s+(\d+)`),
}

// cartProbe is the raw material scriptCartProbe returns.
type cartProbe struct {
	HadInput       bool   `json:"hadInput"`
	ValidationText string `json:"validationText"`
	CorrectedValue *int   `json:"correctedValue"`
}

// parseCartLimit extracts a quantity limit from validation text,
// returning the limit and the matched snippet, or (nil, "").
func parseCartLimit(text string) (*int, string) {
	for _, re := range cartLimitPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || n > maxPlausibleQuantity {
			continue
		}
		return &n, strings.TrimSpace(m[0])
	}
	return nil, ""
}

// interpretCartProbe turns a probe outcome into an InventoryResult. A
// parsed limit message is exact; an input that auto-corrected to a
// small value is only an estimate; anything else is no signal.
func interpretCartProbe(probe cartProbe) (models.InventoryResult, bool) {
	if limit, warning := parseCartLimit(probe.ValidationText); limit != nil {
		res := models.InventoryResult{
			Quantity:   limit,
			InStock:    true,
			Source:     models.InventorySourceCartHack,
			Confidence: models.ConfidenceExact,
		}
		if warning != "" {
			res.QuantityWarning = &warning
		}
		return res, true
	}
	if probe.CorrectedValue != nil {
		return models.InventoryResult{
			Quantity:   probe.CorrectedValue,
			InStock:    true,
			Source:     models.InventorySourceCartHack,
			Confidence: models.ConfidenceEstimated,
		}, true
	}
	return models.InventoryResult{}, false
}

// runCartHack executes the cart probe on page and interprets the
// outcome. The script restores the quantity input before returning, so
// the page is unchanged whether or not a limit was found.
func runCartHack(ctx context.Context, page Page, sentinel int) (models.InventoryResult, bool, error) {
	var probe cartProbe
	if err := page.Call(ctx, scriptCartProbe, &probe, sentinel, sentinel); err != nil {
		return models.InventoryResult{}, false, err
	}
	res, ok := interpretCartProbe(probe)
	return res, ok, nil
}

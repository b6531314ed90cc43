package models

import "time"

// Confidence ranks how trustworthy an inventory signal is. The ordering
// is total: exact > estimated > boolean. A recorded value may only be
// overwritten by a result of higher or equal confidence.
type Confidence int

const (
	ConfidenceBoolean Confidence = iota
	ConfidenceEstimated
	ConfidenceExact
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceExact:
		return "exact"
	case ConfidenceEstimated:
		return "estimated"
	default:
		return "boolean"
	}
}

// Quantity sources reported downstream on ScrapedProduct.
const (
	QuantitySourceTextPattern = "text_pattern"
	QuantitySourceCartHack    = "cart_hack"
	QuantitySourceDropdown    = "dropdown"
	QuantitySourceInferred    = "inferred"
	QuantitySourceNone        = "none"
)

// ScrapedProduct is one extracted menu item. InStock is always
// populated; Quantity only when one of the heuristics succeeded.
type ScrapedProduct struct {
	Name          string  `json:"name"`
	Brand         string  `json:"brand,omitempty"`
	Category      string  `json:"category,omitempty"`
	Price         float64 `json:"price,omitempty"`
	OriginalPrice float64 `json:"originalPrice,omitempty"`
	Image         string  `json:"image,omitempty"`
	Potency       string  `json:"potency,omitempty"`

	SourceURL      string    `json:"sourceUrl"`
	SourcePlatform string    `json:"sourcePlatform,omitempty"`
	ScrapedAt      time.Time `json:"scrapedAt"`

	InStock         bool    `json:"inStock"`
	Quantity        *int    `json:"quantity"`
	QuantityWarning *string `json:"quantityWarning"`
	QuantitySource  string  `json:"quantitySource"`

	// confidence backs the merge rule; it is not serialized downstream.
	Confidence Confidence `json:"-"`
}

// Heuristic-level sources carried on InventoryResult. These name the
// step of the fallback chain that produced the signal; they are mapped
// to the downstream QuantitySource* enum when merged into a product.
const (
	InventorySourceBadge    = "out-of-stock-badge"
	InventorySourcePageText = "page-text"
	InventorySourceDropdown = "quantity-dropdown"
	InventorySourceCartHack = "cart-hack"
	InventorySourceUnknown  = "unknown"
)

// InventoryResult is the uniform output of every extraction heuristic.
type InventoryResult struct {
	Quantity        *int
	QuantityWarning *string
	InStock         bool
	Source          string
	Confidence      Confidence
}

// QuantitySource maps the heuristic source to the downstream enum.
func (r InventoryResult) QuantitySource() string {
	switch r.Source {
	case InventorySourcePageText, InventorySourceBadge:
		return QuantitySourceTextPattern
	case InventorySourceDropdown:
		return QuantitySourceDropdown
	case InventorySourceCartHack:
		return QuantitySourceCartHack
	default:
		if r.Quantity != nil {
			return QuantitySourceInferred
		}
		return QuantitySourceNone
	}
}

// Merge applies res onto p if the confidence rule allows it: a new
// result only wins at higher-or-equal confidence, so a cheap
// listing-page signal is never degraded by a noisier detail-page guess.
func (p *ScrapedProduct) Merge(res InventoryResult) bool {
	if res.Confidence < p.Confidence {
		return false
	}
	p.InStock = res.InStock
	p.Quantity = res.Quantity
	p.QuantityWarning = res.QuantityWarning
	p.QuantitySource = res.QuantitySource()
	p.Confidence = res.Confidence
	return true
}

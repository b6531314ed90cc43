package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/leafsignal/menuwatch/models"
)

// cardSelectors is the ordered list of container patterns tried by the
// listing collector. Site-specific selectors are configuration layered
// on top of these generic ones.
var cardSelectors = []string{
	".product-card",
	".product-item",
	"[class*='product-card']",
	"[class*='productCard']",
	"[class*='product-tile']",
	"[data-testid*='product']",
	"li[class*='product']",
	"article",
}

// Field selector cascades, tried in order per card.
var (
	nameSelectors  = []string{".product-name", "[class*='product-name']", "[class*='productName']", "h2", "h3", "h4", "[class*='title']"}
	brandSelectors = []string{".brand", "[class*='brand']", "[data-testid*='brand']"}
	catSelectors   = []string{".category", "[class*='category']", "[data-testid*='category']"}
	priceSelectors = []string{".price", "[class*='price']", "[data-testid*='price']"}
)

var (
	dollarPattern  = regexp.MustCompile(`\$\s?(\d+(?:\.\d{1,2})?)`)
	potencyPattern = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*%\s*(?:THC|CBD)`)
)

// cardData is the raw material scriptCollectCards returns per card.
type cardData struct {
	HTML  string     `json:"html"`
	Text  string     `json:"text"`
	Links []pageLink `json:"links"`
}

type pageLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// listingItem pairs a parsed product with its detail-resolution state.
type listingItem struct {
	product   models.ScrapedProduct
	detailURL string

	// needsDetail marks in-stock products without a quantity signal.
	needsDetail bool
}

// parseCard extracts one product from a collected card. Returns false
// when the card yields nothing usable (no name and no price).
func parseCard(card cardData, loc models.Location, now time.Time) (listingItem, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(card.HTML))
	if err != nil {
		return listingItem{}, false
	}

	product := models.ScrapedProduct{
		SourceURL:      loc.MenuURL,
		SourcePlatform: loc.RetailerSlug,
		ScrapedAt:      now,
		QuantitySource: models.QuantitySourceNone,
	}

	product.Name = firstText(doc, nameSelectors)
	if product.Name == "" {
		product.Name = firstAttr(doc, "a[title]", "title")
	}
	product.Brand = firstText(doc, brandSelectors)
	product.Category = firstText(doc, catSelectors)
	product.Image = firstAttr(doc, "img", "src")
	if product.Image == "" {
		product.Image = firstAttr(doc, "img", "data-src")
	}
	if m := potencyPattern.FindString(card.Text); m != "" {
		product.Potency = m
	}

	product.Price, product.OriginalPrice = extractPrices(doc, card.Text)
	if product.Name == "" && product.Price == 0 {
		return listingItem{}, false
	}
	if product.Name == "" {
		product.Name = firstLine(card.Text)
	}

	item := listingItem{product: product, detailURL: detailURL(card, product.Name)}

	// Stock signals directly from the card: a badge wins outright, then
	// the quantity text patterns, else the product needs a detail visit.
	switch {
	case hasOutOfStockText(card.Text):
		item.product.Merge(outOfStockResult())
	default:
		item.product.InStock = true
		if qty, warning := matchQuantityText(card.Text); qty != nil {
			if *qty == 0 {
				item.product.Merge(outOfStockResult())
			} else {
				item.product.Merge(textResult(*qty, warning))
			}
		} else {
			item.needsDetail = true
		}
	}
	return item, true
}

// extractPrices reads price and original price from a card. Selector
// hits are preferred; the last resort takes the smallest dollar amount
// in the card text, since sale prices are typically the minimum. A
// larger second amount becomes the original price.
func extractPrices(doc *goquery.Document, cardText string) (price, original float64) {
	text := firstText(doc, priceSelectors)
	if text == "" {
		text = cardText
	}

	amounts := []float64{}
	for _, m := range dollarPattern.FindAllStringSubmatch(text, -1) {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			amounts = append(amounts, v)
		}
	}
	if len(amounts) == 0 {
		return 0, 0
	}

	price = amounts[0]
	max := amounts[0]
	for _, v := range amounts[1:] {
		if v < price {
			price = v
		}
		if v > max {
			max = v
		}
	}
	if max > price {
		original = max
	}
	return price, original
}

// detailURL picks the card link most likely to be the product page: a
// link whose text overlaps the product name, else the first href.
func detailURL(card cardData, name string) string {
	lowerName := strings.ToLower(name)
	for _, link := range card.Links {
		if link.Href == "" {
			continue
		}
		lowerText := strings.ToLower(link.Text)
		if lowerName != "" && lowerText != "" &&
			(strings.Contains(lowerText, lowerName) || strings.Contains(lowerName, lowerText)) {
			return link.Href
		}
	}
	if len(card.Links) > 0 {
		return card.Links[0].Href
	}
	return ""
}

// matchDetailURL matches a product name against page-wide links by
// substring, used when the card itself carried no usable href.
func matchDetailURL(name string, links []pageLink) string {
	lowerName := strings.ToLower(name)
	if lowerName == "" {
		return ""
	}
	for _, link := range links {
		lowerText := strings.ToLower(link.Text)
		if lowerText != "" && (strings.Contains(lowerText, lowerName) || strings.Contains(lowerName, lowerText)) {
			return link.Href
		}
	}
	return ""
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstAttr(doc *goquery.Document, selector, attr string) string {
	value, _ := doc.Find(selector).First().Attr(attr)
	return strings.TrimSpace(value)
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

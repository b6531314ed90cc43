package scraper

import (
	"testing"
	"time"

	"github.com/leafsignal/menuwatch/models"
)

var testLocation = models.Location{
	RetailerSlug: "desert-bloom-phx",
	Name:         "Desert Bloom Phoenix",
	MenuURL:      "https://menu.test/desert-bloom",
	Region:       "AZ",
}

func card(html, text string, links ...pageLink) cardData {
	return cardData{HTML: html, Text: text, Links: links}
}

func TestParseCard_BasicFields(t *testing.T) {
	c := card(
		`<div class="product-card">
			<img src="https://cdn.test/gelato.jpg"/>
			<h3 class="product-name">Gelato 41</h3>
			<span class="brand">Sunset Farms</span>
			<span class="category">Flower</span>
			<span class="price">$45.00</span>
		</div>`,
		"Gelato 41\nSunset Farms\nFlower\n$45.00\n22.4% THC",
	)

	item, ok := parseCard(c, testLocation, time.Now())
	if !ok {
		t.Fatal("card not parsed")
	}
	p := item.product
	if p.Name != "Gelato 41" {
		t.Errorf("name = %q", p.Name)
	}
	if p.Brand != "Sunset Farms" {
		t.Errorf("brand = %q", p.Brand)
	}
	if p.Category != "Flower" {
		t.Errorf("category = %q", p.Category)
	}
	if p.Price != 45 {
		t.Errorf("price = %v", p.Price)
	}
	if p.Image != "https://cdn.test/gelato.jpg" {
		t.Errorf("image = %q", p.Image)
	}
	if p.Potency != "22.4% THC" {
		t.Errorf("potency = %q", p.Potency)
	}
	if p.SourcePlatform != "desert-bloom-phx" {
		t.Errorf("sourcePlatform = %q", p.SourcePlatform)
	}
}

func TestParseCard_SalePriceIsMinimum(t *testing.T) {
	c := card(
		`<div class="product-card"><h3>Blue Dream</h3><span class="price">$35.00 $50.00</span></div>`,
		"Blue Dream\n$35.00 $50.00",
	)

	item, ok := parseCard(c, testLocation, time.Now())
	if !ok {
		t.Fatal("card not parsed")
	}
	if item.product.Price != 35 {
		t.Errorf("price = %v, want 35 (smallest dollar amount)", item.product.Price)
	}
	if item.product.OriginalPrice != 50 {
		t.Errorf("originalPrice = %v, want 50", item.product.OriginalPrice)
	}
}

func TestParseCard_PriceFallbackFromCardText(t *testing.T) {
	c := card(
		`<div><h3>Mystery Pre-roll</h3></div>`,
		"Mystery Pre-roll\nnow $12.50, was $18",
	)

	item, ok := parseCard(c, testLocation, time.Now())
	if !ok {
		t.Fatal("card not parsed")
	}
	if item.product.Price != 12.5 {
		t.Errorf("price = %v, want 12.5", item.product.Price)
	}
	if item.product.OriginalPrice != 18 {
		t.Errorf("originalPrice = %v, want 18", item.product.OriginalPrice)
	}
}

func TestParseCard_UselessCardSkipped(t *testing.T) {
	if _, ok := parseCard(card(`<div><span>Filters</span></div>`, "Filters"), testLocation, time.Now()); ok {
		t.Error("card with no name and no price should be skipped")
	}
}

func TestParseCard_OutOfStockBadgeWinsOverQuantityText(t *testing.T) {
	c := card(
		`<div class="product-card"><h3>OG Kush</h3><span class="price">$40</span></div>`,
		"OG Kush\n$40\nSOLD OUT\nOnly 3 left", // contradictory; badge wins
	)

	item, ok := parseCard(c, testLocation, time.Now())
	if !ok {
		t.Fatal("card not parsed")
	}
	p := item.product
	if p.InStock {
		t.Error("InStock = true, want false")
	}
	if p.Quantity == nil || *p.Quantity != 0 {
		t.Errorf("quantity = %v, want 0", p.Quantity)
	}
	if item.needsDetail {
		t.Error("out-of-stock product should not need a detail visit")
	}
}

// The three-card listing scenario: in stock without quantity text, in
// stock with quantity text, out of stock.
func TestParseCard_ListingScenario(t *testing.T) {
	now := time.Now()
	cards := []cardData{
		card(`<div class="product-card"><h3>Card A</h3><span class="price">$40</span></div>`,
			"Card A\n$40"),
		card(`<div class="product-card"><h3>Card B</h3><span class="price">$35</span></div>`,
			"Card B\n$35\nOnly 2 left"),
		card(`<div class="product-card"><h3>Card C</h3><span class="price">$30</span></div>`,
			"Card C\n$30\nOut of Stock"),
	}

	items := make([]listingItem, 0, len(cards))
	for _, c := range cards {
		item, ok := parseCard(c, testLocation, now)
		if !ok {
			t.Fatalf("card %q not parsed", c.Text)
		}
		items = append(items, item)
	}

	a, b, c := items[0].product, items[1].product, items[2].product

	if a.Quantity != nil || a.QuantitySource != models.QuantitySourceNone || !a.InStock {
		t.Errorf("card A = {qty:%v source:%s inStock:%v}, want {nil none true}", a.Quantity, a.QuantitySource, a.InStock)
	}
	if !items[0].needsDetail {
		t.Error("card A should be queued for detail resolution")
	}

	if b.Quantity == nil || *b.Quantity != 2 || b.QuantitySource != models.QuantitySourceTextPattern {
		t.Errorf("card B = {qty:%v source:%s}, want {2 text_pattern}", b.Quantity, b.QuantitySource)
	}
	if items[1].needsDetail {
		t.Error("card B already has a quantity signal")
	}

	if c.Quantity == nil || *c.Quantity != 0 || c.InStock {
		t.Errorf("card C = {qty:%v inStock:%v}, want {0 false}", c.Quantity, c.InStock)
	}
}

func TestDetailURL_PrefersNameMatchingLink(t *testing.T) {
	c := card(`<div></div>`, "",
		pageLink{Text: "Add to cart", Href: "https://menu.test/cart"},
		pageLink{Text: "Gelato 41", Href: "https://menu.test/products/gelato-41"},
	)

	url := detailURL(c, "Gelato 41")
	if url != "https://menu.test/products/gelato-41" {
		t.Errorf("detailURL = %q", url)
	}
}

func TestDetailURL_FallsBackToFirstLink(t *testing.T) {
	c := card(`<div></div>`, "",
		pageLink{Text: "View", Href: "https://menu.test/products/123"},
	)
	if url := detailURL(c, "Unrelated Name"); url != "https://menu.test/products/123" {
		t.Errorf("detailURL = %q", url)
	}
}

func TestMatchDetailURL_ByNameSubstring(t *testing.T) {
	links := []pageLink{
		{Text: "Home", Href: "https://menu.test/"},
		{Text: "Gelato 41 | 3.5g", Href: "https://menu.test/products/gelato-41"},
	}

	if url := matchDetailURL("Gelato 41", links); url != "https://menu.test/products/gelato-41" {
		t.Errorf("matchDetailURL = %q", url)
	}
	if url := matchDetailURL("Nonexistent", links); url != "" {
		t.Errorf("matchDetailURL for unknown name = %q, want empty", url)
	}
}

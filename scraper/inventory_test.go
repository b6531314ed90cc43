package scraper

import (
	"testing"

	"github.com/leafsignal/menuwatch/models"
)

func TestMatchQuantityText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
		none bool
	}{
		{"left in stock", "Only 3 left in stock", 3, false},
		{"only n left", "Hurry! only 7 left", 7, false},
		{"remaining", "12 remaining at this price", 12, false},
		{"available", "24 available", 24, false},
		{"limited", "Limited: 4", 4, false},
		{"low stock", "Low stock: 2", 2, false},
		{"hurry only", "Hurry, only 5", 5, false},
		{"no signal", "Premium flower, $40.00", 0, true},
		{"implausible", "order #99999 left in stock", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := matchQuantityText(tt.text)
			if tt.none {
				if got != nil {
					t.Errorf("matchQuantityText(%q) = %d, want no match", tt.text, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("matchQuantityText(%q) found nothing, want %d", tt.text, tt.want)
			}
			if *got != tt.want {
				t.Errorf("matchQuantityText(%q) = %d, want %d", tt.text, *got, tt.want)
			}
		})
	}
}

func TestMatchQuantityText_ReturnsMatchedSnippet(t *testing.T) {
	qty, warning := matchQuantityText("Great deal! Only 3 left at this location.")
	if qty == nil || *qty != 3 {
		t.Fatalf("quantity = %v, want 3", qty)
	}
	if warning != "only 3 left" && warning != "Only 3 left" {
		t.Errorf("warning = %q, want the matched snippet", warning)
	}
}

func TestResolveInventory_TextPattern(t *testing.T) {
	res := resolveInventory(detailProbe{BodyText: "Only 3 left in stock"}, 50)

	if res.Quantity == nil || *res.Quantity != 3 {
		t.Fatalf("quantity = %v, want 3", res.Quantity)
	}
	if res.Confidence != models.ConfidenceExact {
		t.Errorf("confidence = %s, want exact", res.Confidence)
	}
	if res.Source != models.InventorySourcePageText {
		t.Errorf("source = %s, want %s", res.Source, models.InventorySourcePageText)
	}
	if !res.InStock {
		t.Error("InStock = false, want true")
	}
}

func TestResolveInventory_BadgeWinsOverTextPattern(t *testing.T) {
	probe := detailProbe{HasBadge: true, BodyText: "Only 3 left in stock"}
	res := resolveInventory(probe, 50)

	if res.Quantity == nil || *res.Quantity != 0 {
		t.Fatalf("quantity = %v, want 0", res.Quantity)
	}
	if res.InStock {
		t.Error("InStock = true, want false")
	}
	if res.Confidence != models.ConfidenceExact {
		t.Errorf("confidence = %s, want exact", res.Confidence)
	}
	if res.Source != models.InventorySourceBadge {
		t.Errorf("source = %s, want %s", res.Source, models.InventorySourceBadge)
	}
}

func TestResolveInventory_OutOfStockText(t *testing.T) {
	res := resolveInventory(detailProbe{BodyText: "This item is Sold Out"}, 50)
	if res.InStock {
		t.Error("InStock = true for sold-out text")
	}
	if res.Quantity == nil || *res.Quantity != 0 {
		t.Errorf("quantity = %v, want 0", res.Quantity)
	}
}

func TestResolveInventory_DropdownBelowCeiling(t *testing.T) {
	max := 8
	res := resolveInventory(detailProbe{BodyText: "Add to cart", DropdownMax: &max}, 50)

	if res.Quantity == nil || *res.Quantity != 8 {
		t.Fatalf("quantity = %v, want 8", res.Quantity)
	}
	if res.Confidence != models.ConfidenceEstimated {
		t.Errorf("confidence = %s, want estimated", res.Confidence)
	}
	if res.Source != models.InventorySourceDropdown {
		t.Errorf("source = %s, want %s", res.Source, models.InventorySourceDropdown)
	}
}

func TestResolveInventory_DropdownAtCeilingRejected(t *testing.T) {
	max := 50
	res := resolveInventory(detailProbe{BodyText: "Add to cart", DropdownMax: &max}, 50)

	if res.Quantity != nil {
		t.Errorf("quantity = %d, want nil (ceiling maxima are not inventory)", *res.Quantity)
	}
	if res.Confidence != models.ConfidenceBoolean {
		t.Errorf("confidence = %s, want boolean", res.Confidence)
	}
}

func TestResolveInventory_BooleanFallback(t *testing.T) {
	res := resolveInventory(detailProbe{BodyText: "Premium flower, lab tested"}, 50)

	if res.Quantity != nil {
		t.Errorf("quantity = %d, want nil", *res.Quantity)
	}
	if !res.InStock {
		t.Error("InStock = false, want true")
	}
	if res.Confidence != models.ConfidenceBoolean {
		t.Errorf("confidence = %s, want boolean", res.Confidence)
	}
	if res.Source != models.InventorySourceUnknown {
		t.Errorf("source = %s, want %s", res.Source, models.InventorySourceUnknown)
	}
}

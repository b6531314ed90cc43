package models

import "testing"

func intPtr(n int) *int { return &n }

func TestMerge_HigherConfidenceWins(t *testing.T) {
	p := &ScrapedProduct{InStock: true, Confidence: ConfidenceBoolean, QuantitySource: QuantitySourceNone}

	merged := p.Merge(InventoryResult{
		Quantity:   intPtr(5),
		InStock:    true,
		Source:     InventorySourcePageText,
		Confidence: ConfidenceExact,
	})

	if !merged {
		t.Fatal("exact result should merge over boolean")
	}
	if *p.Quantity != 5 {
		t.Errorf("quantity = %d, want 5", *p.Quantity)
	}
	if p.QuantitySource != QuantitySourceTextPattern {
		t.Errorf("quantitySource = %q, want text_pattern", p.QuantitySource)
	}
	if p.Confidence != ConfidenceExact {
		t.Errorf("confidence = %s, want exact", p.Confidence)
	}
}

func TestMerge_LowerConfidenceRejected(t *testing.T) {
	p := &ScrapedProduct{
		InStock:        true,
		Quantity:       intPtr(2),
		QuantitySource: QuantitySourceTextPattern,
		Confidence:     ConfidenceExact,
	}

	merged := p.Merge(InventoryResult{
		Quantity:   intPtr(9),
		InStock:    true,
		Source:     InventorySourceDropdown,
		Confidence: ConfidenceEstimated,
	})

	if merged {
		t.Fatal("estimated result must not overwrite an exact one")
	}
	if *p.Quantity != 2 {
		t.Errorf("quantity = %d, want 2 (unchanged)", *p.Quantity)
	}
}

func TestMerge_EqualConfidenceOverwrites(t *testing.T) {
	p := &ScrapedProduct{
		InStock:        true,
		Quantity:       intPtr(2),
		QuantitySource: QuantitySourceTextPattern,
		Confidence:     ConfidenceExact,
	}

	if !p.Merge(InventoryResult{
		Quantity:   intPtr(1),
		InStock:    true,
		Source:     InventorySourceCartHack,
		Confidence: ConfidenceExact,
	}) {
		t.Fatal("equal confidence should merge")
	}
	if *p.Quantity != 1 || p.QuantitySource != QuantitySourceCartHack {
		t.Errorf("product = {%d %s}, want {1 cart_hack}", *p.Quantity, p.QuantitySource)
	}
}

func TestConfidenceOrdering(t *testing.T) {
	if !(ConfidenceExact > ConfidenceEstimated && ConfidenceEstimated > ConfidenceBoolean) {
		t.Error("confidence ordering must be exact > estimated > boolean")
	}
}

func TestInventoryResult_QuantitySourceMapping(t *testing.T) {
	tests := []struct {
		source   string
		quantity *int
		want     string
	}{
		{InventorySourcePageText, intPtr(3), QuantitySourceTextPattern},
		{InventorySourceBadge, intPtr(0), QuantitySourceTextPattern},
		{InventorySourceDropdown, intPtr(8), QuantitySourceDropdown},
		{InventorySourceCartHack, intPtr(4), QuantitySourceCartHack},
		{InventorySourceUnknown, intPtr(1), QuantitySourceInferred},
		{InventorySourceUnknown, nil, QuantitySourceNone},
	}

	for _, tt := range tests {
		res := InventoryResult{Source: tt.source, Quantity: tt.quantity}
		if got := res.QuantitySource(); got != tt.want {
			t.Errorf("QuantitySource(%s, qty=%v) = %q, want %q", tt.source, tt.quantity, got, tt.want)
		}
	}
}

func TestActiveLocations(t *testing.T) {
	locations := []Location{
		{RetailerSlug: "a"},
		{RetailerSlug: "b", Disabled: true, DisabledReason: "site redesign"},
		{RetailerSlug: "c"},
	}

	active := ActiveLocations(locations)
	if len(active) != 2 {
		t.Fatalf("len = %d, want 2", len(active))
	}
	if active[0].RetailerSlug != "a" || active[1].RetailerSlug != "c" {
		t.Errorf("active = %v", active)
	}
}

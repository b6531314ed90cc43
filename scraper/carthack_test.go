package scraper

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/leafsignal/menuwatch/cdp"
	"github.com/leafsignal/menuwatch/models"
)

func TestParseCartLimit(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
		none bool
	}{
		{"max is", "Sorry, the max is 6 per customer", 6, false},
		{"maximum is", "Maximum is 4", 4, false},
		{"only available", "Only 3 available at this store", 3, false},
		{"cannot add more", "You cannot add more than 10 of this item", 10, false},
		{"adjusted to", "Quantity adjusted to 2", 2, false},
		{"only left", "Only 5 left", 5, false},
		{"limited to", "Limited to 8 per order", 8, false},
		{"no limit text", "Added to cart!", 0, true},
		{"zero rejected", "max is 0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := parseCartLimit(tt.text)
			if tt.none {
				if got != nil {
					t.Errorf("parseCartLimit(%q) = %d, want no match", tt.text, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("parseCartLimit(%q) found nothing, want %d", tt.text, tt.want)
			}
			if *got != tt.want {
				t.Errorf("parseCartLimit(%q) = %d, want %d", tt.text, *got, tt.want)
			}
		})
	}
}

func TestInterpretCartProbe_LimitMessageIsExact(t *testing.T) {
	res, ok := interpretCartProbe(cartProbe{
		HadInput:       true,
		ValidationText: "Sorry, only 4 available",
	})
	if !ok {
		t.Fatal("expected a signal")
	}
	if res.Quantity == nil || *res.Quantity != 4 {
		t.Fatalf("quantity = %v, want 4", res.Quantity)
	}
	if res.Confidence != models.ConfidenceExact {
		t.Errorf("confidence = %s, want exact", res.Confidence)
	}
	if res.Source != models.InventorySourceCartHack {
		t.Errorf("source = %s, want %s", res.Source, models.InventorySourceCartHack)
	}
}

func TestInterpretCartProbe_AutoCorrectionIsEstimated(t *testing.T) {
	corrected := 6
	res, ok := interpretCartProbe(cartProbe{
		HadInput:       true,
		ValidationText: "Added to cart",
		CorrectedValue: &corrected,
	})
	if !ok {
		t.Fatal("expected a signal")
	}
	if res.Quantity == nil || *res.Quantity != 6 {
		t.Fatalf("quantity = %v, want 6", res.Quantity)
	}
	if res.Confidence != models.ConfidenceEstimated {
		t.Errorf("confidence = %s, want estimated", res.Confidence)
	}
}

func TestInterpretCartProbe_NoSignal(t *testing.T) {
	_, ok := interpretCartProbe(cartProbe{HadInput: true, ValidationText: "Added to cart"})
	if ok {
		t.Error("expected no signal without a limit message or correction")
	}
}

// scriptedPage answers Call invocations with canned JSON per script.
type scriptedPage struct {
	responses map[string]string
	navigated []string
	callErr   error
}

func (p *scriptedPage) Navigate(ctx context.Context, url string, opts cdp.NavigateOptions) error {
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *scriptedPage) Call(ctx context.Context, script string, out any, args ...any) error {
	if p.callErr != nil {
		return p.callErr
	}
	body, ok := p.responses[script]
	if !ok {
		return nil
	}
	return json.Unmarshal([]byte(body), out)
}

func (p *scriptedPage) Close(ctx context.Context) error { return nil }

func TestRunCartHack_ParsesLimitFromProbe(t *testing.T) {
	page := &scriptedPage{responses: map[string]string{
		scriptCartProbe: `{"hadInput":true,"validationText":"cannot add more than 7","correctedValue":null}`,
	}}

	res, ok, err := runCartHack(context.Background(), page, 999)
	if err != nil {
		t.Fatalf("runCartHack: %v", err)
	}
	if !ok {
		t.Fatal("expected a signal")
	}
	if res.Quantity == nil || *res.Quantity != 7 {
		t.Fatalf("quantity = %v, want 7", res.Quantity)
	}
	if res.Confidence != models.ConfidenceExact {
		t.Errorf("confidence = %s, want exact", res.Confidence)
	}
}

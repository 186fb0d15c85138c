package price

import (
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		host string
		want float64
		ok   bool
	}{
		{"dollar dot decimal", "$12.50", "amazon.com", 12.50, true},
		{"euro comma decimal", "12,50 €", "amazon.de", 12.50, true},
		{"grouping dot comma decimal", "1.234,56", "amazon.de", 1234.56, true},
		{"grouping comma dot decimal", "1,234.56", "amazon.com", 1234.56, true},
		{"www prefix host", "12,50 €", "www.amazon.fr", 12.50, true},
		{"lone comma two digits unknown host", "12,50", "shop.example", 12.50, true},
		{"lone comma grouping", "1,234", "amazon.com", 1234, true},
		{"lone dot decimal host", "9.99", "amazon.co.uk", 9.99, true},
		{"lone dot three digits unknown host", "1.234", "shop.example", 1234, true},
		{"yen no decimals", "¥1,980", "amazon.co.jp", 1980, true},
		{"integer only", "880", "amazon.co.jp", 880, true},
		{"no digits", "N/A", "amazon.com", 0, false},
		{"empty", "", "amazon.com", 0, false},
		{"separators only", ".,", "amazon.com", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw, tt.host)
			if ok != tt.ok {
				t.Fatalf("Parse(%q, %q) ok = %v, want %v", tt.raw, tt.host, ok, tt.ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Parse(%q, %q) = %v, want %v", tt.raw, tt.host, got, tt.want)
			}
		})
	}
}

func TestCurrency(t *testing.T) {
	tests := []struct {
		raw  string
		host string
		want string
	}{
		{"$12.50", "amazon.com", "USD"},
		{"CA$22.49", "amazon.ca", "CAD"},
		{"C$22.49", "amazon.ca", "CAD"},
		{"£7.99", "amazon.co.uk", "GBP"},
		{"12,50 €", "amazon.de", "EUR"},
		{"¥880", "amazon.co.jp", "JPY"},
		// No symbol: fall back to the host table.
		{"12,50", "amazon.fr", "EUR"},
		{"9.99", "www.amazon.com", "USD"},
		{"9.99", "shop.example", ""},
	}

	for _, tt := range tests {
		if got := Currency(tt.raw, tt.host); got != tt.want {
			t.Errorf("Currency(%q, %q) = %q, want %q", tt.raw, tt.host, got, tt.want)
		}
	}
}

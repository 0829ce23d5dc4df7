package numeric

import "testing"

func TestFormatSizeTruncates(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		qty        string
		szDecimals int
		want       string
	}{
		{"exact", "0.01", 4, "0.01"},
		{"truncates extra digits", "0.013379", 4, "0.0133"},
		{"negative treated as abs", "-0.0335", 4, "0.0335"},
		{"integer", "5", 0, "5"},
		{"trims trailing zeros", "1.200000", 4, "1.2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := FormatSize(tc.qty, tc.szDecimals)
			if err != nil {
				t.Fatalf("FormatSize(%q, %d) error: %v", tc.qty, tc.szDecimals, err)
			}
			if got != tc.want {
				t.Errorf("FormatSize(%q, %d) = %q, want %q", tc.qty, tc.szDecimals, got, tc.want)
			}
		})
	}
}

func TestFormatSizeIdempotent(t *testing.T) {
	t.Parallel()
	inputs := []struct {
		qty        string
		szDecimals int
	}{
		{"0.0335", 4}, {"12345.678912", 5}, {"1", 0}, {"0.000001", 6},
	}
	for _, in := range inputs {
		first, err := FormatSize(in.qty, in.szDecimals)
		if err != nil {
			t.Fatalf("FormatSize(%q, %d) error: %v", in.qty, in.szDecimals, err)
		}
		second, err := FormatSize(first, in.szDecimals)
		if err != nil {
			t.Fatalf("FormatSize(%q, %d) round 2 error: %v", first, in.szDecimals, err)
		}
		if first != second {
			t.Errorf("FormatSize not idempotent: %q -> %q -> %q", in.qty, first, second)
		}
	}
}

func TestFormatPriceMarketOpen(t *testing.T) {
	t.Parallel()
	// scenario 1: mid "3000.0" * 1.05 slippage = "3150.0", szDecimals 4, perp.
	got, err := FormatPrice("3150.0", 4, false)
	if err != nil {
		t.Fatalf("FormatPrice error: %v", err)
	}
	if got != "3150.0" {
		t.Errorf("FormatPrice(3150.0, 4, perp) = %q, want %q", got, "3150.0")
	}
}

func TestFormatPriceLimitOrderRounding(t *testing.T) {
	t.Parallel()
	// scenario 2: "12345.678912" with szDecimals 5 -> 5 sig figs rounds to
	// the integer 12346 (0 decimal places needed); maxDecimals 6-5=1 never
	// forces a fractional zero back in, since the sig-fig floor is 0.
	got, err := FormatPrice("12345.678912", 5, false)
	if err != nil {
		t.Fatalf("FormatPrice error: %v", err)
	}
	if got != "12346" {
		t.Errorf("FormatPrice(12345.678912, 5, perp) = %q, want %q", got, "12346")
	}
}

func TestFormatPriceCloseMarketInference(t *testing.T) {
	t.Parallel()
	// scenario 3: mid "2986.3" * 1.05 = 3135.615, 5 sig figs -> 3135.6, 2 dp (8-4=... wait perp maxDecimals 6-4=2).
	got, err := FormatPrice("3135.615", 4, false)
	if err != nil {
		t.Fatalf("FormatPrice error: %v", err)
	}
	if got != "3135.6" {
		t.Errorf("FormatPrice(3135.615, 4, perp) = %q, want %q", got, "3135.6")
	}
}

func TestFormatPriceIdempotent(t *testing.T) {
	t.Parallel()
	inputs := []struct {
		px         string
		szDecimals int
		isSpot     bool
	}{
		{"3150.0", 4, false}, {"12346.0", 5, false}, {"3135.6", 4, false}, {"0.00001234", 2, true},
	}
	for _, in := range inputs {
		first, err := FormatPrice(in.px, in.szDecimals, in.isSpot)
		if err != nil {
			t.Fatalf("FormatPrice(%q) error: %v", in.px, err)
		}
		second, err := FormatPrice(first, in.szDecimals, in.isSpot)
		if err != nil {
			t.Fatalf("FormatPrice(%q) round 2 error: %v", first, err)
		}
		if first != second {
			t.Errorf("FormatPrice not idempotent: %q -> %q -> %q", in.px, first, second)
		}
	}
}

func TestFloatToUsdInt(t *testing.T) {
	t.Parallel()
	cases := []struct {
		x    string
		want int64
	}{
		{"1.5", 1_500_000}, {"0", 0}, {"-2.25", -2_250_000}, {"100", 100_000_000},
	}
	for _, tc := range cases {
		got, err := FloatToUsdInt(tc.x)
		if err != nil {
			t.Fatalf("FloatToUsdInt(%q) error: %v", tc.x, err)
		}
		if got != tc.want {
			t.Errorf("FloatToUsdInt(%q) = %d, want %d", tc.x, got, tc.want)
		}
	}
}

func TestFloatToIntForHashing(t *testing.T) {
	t.Parallel()
	got, err := FloatToIntForHashing("1.5")
	if err != nil {
		t.Fatalf("FloatToIntForHashing error: %v", err)
	}
	if want := int64(1_500_000_000); got != want {
		t.Errorf("FloatToIntForHashing(1.5) = %d, want %d", got, want)
	}
}

func TestFormatSizeBadInput(t *testing.T) {
	t.Parallel()
	if _, err := FormatSize("not-a-number", 4); err == nil {
		t.Error("expected error for invalid decimal string")
	}
}

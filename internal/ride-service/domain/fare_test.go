package domain

import "testing"

func defaultFactors() PriceFactors {
	return PriceFactors{
		BasePrice:     2.5,
		PerKmRate:     1.25,
		PerMinuteRate: 0.35,
		MinimumFare:   5.0,
		SurgePricing:  1.0,
	}
}

func TestCalculateFare(t *testing.T) {
	comfort := RideType{ID: "comfort", PriceMultiplier: 1.3}
	economy := RideType{ID: "economy", PriceMultiplier: 1.0}

	tests := []struct {
		name     string
		distance float64
		duration float64
		rideType RideType
		factors  func(PriceFactors) PriceFactors
		want     float64
	}{
		{
			name:     "multiplier applied to subtotal",
			distance: 5, duration: 15, rideType: comfort,
			want: 18.20,
		},
		{
			name:     "short trip floors at minimum fare",
			distance: 0.5, duration: 1, rideType: economy,
			want: 5.00,
		},
		{
			name:     "surge multiplies after ride type",
			distance: 5, duration: 15, rideType: comfort,
			factors: func(f PriceFactors) PriceFactors { f.SurgePricing = 1.5; return f },
			want:    27.30,
		},
		{
			name:     "surge below one is ignored",
			distance: 5, duration: 15, rideType: economy,
			factors: func(f PriceFactors) PriceFactors { f.SurgePricing = 0.5; return f },
			want:    14.00,
		},
		{
			name:     "negative inputs are clamped",
			distance: -3, duration: -10, rideType: economy,
			want: 5.00,
		},
		{
			name:     "rounds half up to cents",
			distance: 1.001, duration: 0, rideType: economy,
			factors: func(f PriceFactors) PriceFactors { f.BasePrice = 10; f.PerKmRate = 5; return f },
			want:    15.01,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := defaultFactors()
			if tt.factors != nil {
				f = tt.factors(f)
			}
			got := CalculateFare(tt.distance, tt.duration, tt.rideType, f)
			if got != tt.want {
				t.Fatalf("CalculateFare() = %v, want %v", got, tt.want)
			}
			if got < f.MinimumFare {
				t.Fatalf("fare %v below minimum %v", got, f.MinimumFare)
			}
			if again := CalculateFare(tt.distance, tt.duration, tt.rideType, f); again != got {
				t.Fatalf("fare is not deterministic: %v then %v", got, again)
			}
		})
	}
}

func TestCalculateFare_NeverBelowMinimum(t *testing.T) {
	f := defaultFactors()
	for _, multiplier := range []float64{0, 0.5, 1, 1.3, 2} {
		for d := 0.0; d <= 20; d += 2.5 {
			for m := 0.0; m <= 60; m += 7.5 {
				got := CalculateFare(d, m, RideType{PriceMultiplier: multiplier}, f)
				if got < f.MinimumFare {
					t.Fatalf("d=%v m=%v x%v: fare %v below minimum", d, m, multiplier, got)
				}
			}
		}
	}
}

func TestFareCalculator_Quote(t *testing.T) {
	fc := NewFareCalculator(defaultFactors())
	route := &Route{DistanceMeters: 5000, DurationSeconds: 900}
	types := []RideType{
		{ID: "economy", PriceMultiplier: 1.0},
		{ID: "comfort", PriceMultiplier: 1.3},
	}

	quotes := fc.Quote(route, types)
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[0].Fare != 14.00 || quotes[1].Fare != 18.20 {
		t.Fatalf("unexpected quotes: %+v", quotes)
	}
	if quotes[1].DistanceKm != 5 || quotes[1].DurationMinutes != 15 {
		t.Fatalf("quote should carry route metrics: %+v", quotes[1])
	}
}

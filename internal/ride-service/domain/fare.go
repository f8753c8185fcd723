package domain

import "math"

// PriceFactors is the tariff applied to every ride type
type PriceFactors struct {
	BasePrice     float64 `json:"base_price"`
	PerKmRate     float64 `json:"per_km_rate"`
	PerMinuteRate float64 `json:"per_minute_rate"`
	MinimumFare   float64 `json:"minimum_fare"`
	SurgePricing  float64 `json:"surge_pricing"`
}

// FareQuote is the estimated price of one ride type for a route
type FareQuote struct {
	RideType        RideType `json:"ride_type"`
	DistanceKm      float64  `json:"distance_km"`
	DurationMinutes float64  `json:"duration_minutes"`
	Fare            float64  `json:"fare"`
}

// CalculateFare returns the fare for a trip rounded to 2 decimal places.
//
//	subtotal = base + distance*perKm + duration*perMinute
//	fare     = max(subtotal * multiplier * surge, minimumFare)
//
// The minimum fare floor is not scaled by the ride type multiplier.
func CalculateFare(distanceKm, durationMin float64, rideType RideType, f PriceFactors) float64 {
	distanceKm = math.Max(distanceKm, 0)
	durationMin = math.Max(durationMin, 0)

	surge := f.SurgePricing
	if surge < 1 {
		surge = 1
	}
	multiplier := math.Max(rideType.PriceMultiplier, 0)

	subtotal := f.BasePrice + distanceKm*f.PerKmRate + durationMin*f.PerMinuteRate
	withMultiplier := subtotal * multiplier
	withSurge := withMultiplier * surge

	final := math.Max(withSurge, f.MinimumFare)
	return roundFare(math.Max(final, 0))
}

// roundFare rounds half up to cents
func roundFare(v float64) float64 {
	return math.Floor(v*100+0.5) / 100
}

// FareCalculator is a domain service for calculating ride fares
// Domain services contain business logic that doesn't naturally fit in an entity
type FareCalculator struct {
	factors PriceFactors
}

// NewFareCalculator creates a fare calculator for a tariff
func NewFareCalculator(factors PriceFactors) *FareCalculator {
	return &FareCalculator{factors: factors}
}

// Factors returns the tariff used by the calculator
func (fc *FareCalculator) Factors() PriceFactors {
	return fc.factors
}

// Calculate calculates the fare for a known route
func (fc *FareCalculator) Calculate(route *Route, rideType RideType) float64 {
	if route == nil {
		return CalculateFare(0, 0, rideType, fc.factors)
	}
	return CalculateFare(route.DistanceKm(), route.DurationMinutes(), rideType, fc.factors)
}

// Quote prices a route for every offered ride type, in catalog order
func (fc *FareCalculator) Quote(route *Route, rideTypes []RideType) []FareQuote {
	quotes := make([]FareQuote, 0, len(rideTypes))
	for _, rt := range rideTypes {
		q := FareQuote{
			RideType: rt,
			Fare:     fc.Calculate(route, rt),
		}
		if route != nil {
			q.DistanceKm = route.DistanceKm()
			q.DurationMinutes = route.DurationMinutes()
		}
		quotes = append(quotes, q)
	}
	return quotes
}

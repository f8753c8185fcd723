package domain

// RideType is a vehicle category offered to the passenger.
type RideType struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	Capacity               int     `json:"capacity"`
	PriceMultiplier        float64 `json:"price_multiplier"`
	Icon                   string  `json:"icon"`
	EstimatedPickupMinutes *int    `json:"estimated_pickup_minutes,omitempty"`
}

// PaymentMethod is a way the passenger pays for a ride.
type PaymentMethod struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
}

// CancellationReason is one entry of the cancel-reason list shown to users.
type CancellationReason struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

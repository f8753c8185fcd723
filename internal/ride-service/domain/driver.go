package domain

import "ride-sim/pkg/geo"

// Driver is a simulated driver that can be dispatched to a ride.
type Driver struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Vehicle   string    `json:"vehicle"`
	Plate     string    `json:"plate"`
	Rating    float64   `json:"rating"`
	Location  geo.Point `json:"location"`
	Available bool      `json:"available"`
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activeStatuses = `('REQUESTED', 'ACCEPTED', 'ARRIVING', 'IN_PROGRESS')`

type OverviewMetrics struct {
	ActiveRides         int     `json:"active_rides"`
	CompletedToday      int     `json:"completed_today"`
	CancelledToday      int     `json:"cancelled_today"`
	RevenueToday        float64 `json:"revenue_today"`
	AverageWaitTime     float64 `json:"average_wait_time_minutes"`
	AverageRideDuration float64 `json:"average_ride_duration_minutes"`
}

type RideSummary struct {
	RideID             string     `json:"ride_id"`
	Status             string     `json:"status"`
	PassengerID        string     `json:"passenger_id"`
	DriverID           string     `json:"driver_id,omitempty"`
	RideType           string     `json:"ride_type"`
	Fare               float64    `json:"fare"`
	PickupAddress      string     `json:"pickup_address"`
	DestinationAddress string     `json:"destination_address"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CancelReason       string     `json:"cancel_reason,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
}

// Store reads the rides table written by the ride service.
type Store interface {
	Overview(ctx context.Context, since time.Time) (OverviewMetrics, error)
	ActiveRides(ctx context.Context, limit, offset int) ([]RideSummary, int, error)
	History(ctx context.Context, limit, offset int) ([]RideSummary, int, error)
}

type pgStore struct {
	pool *pgxpool.Pool
}

func newPGStore(pool *pgxpool.Pool) *pgStore {
	return &pgStore{pool: pool}
}

func (s *pgStore) Overview(ctx context.Context, since time.Time) (OverviewMetrics, error) {
	var m OverviewMetrics

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return m, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	queries := []struct {
		name string
		sql  string
		dest interface{}
	}{
		{"active_rides", `SELECT COUNT(*) FROM rides WHERE status IN ` + activeStatuses, &m.ActiveRides},
		{"completed_today", `SELECT COUNT(*) FROM rides WHERE status = 'COMPLETED' AND completed_at >= $1`, &m.CompletedToday},
		{"cancelled_today", `SELECT COUNT(*) FROM rides WHERE status = 'CANCELLED' AND cancelled_at >= $1`, &m.CancelledToday},
		{"revenue_today", `SELECT COALESCE(SUM(fare), 0)::float8 FROM rides WHERE status = 'COMPLETED' AND completed_at >= $1`, &m.RevenueToday},
		{"average_wait", `
			SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (started_at - created_at))) / 60, 0)::float8
			FROM rides WHERE started_at IS NOT NULL AND created_at >= $1`, &m.AverageWaitTime},
		{"average_duration", `
			SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - started_at))) / 60, 0)::float8
			FROM rides WHERE status = 'COMPLETED' AND completed_at >= $1`, &m.AverageRideDuration},
	}

	for _, q := range queries {
		var args []interface{}
		if q.name != "active_rides" {
			args = append(args, since)
		}
		if err := tx.QueryRow(ctx, q.sql, args...).Scan(q.dest); err != nil {
			return m, fmt.Errorf("query %s: %w", q.name, err)
		}
	}

	return m, tx.Commit(ctx)
}

const selectSummary = `
	SELECT
		r.id, r.status, r.passenger_id, COALESCE(r.driver_id, ''), r.ride_type_id, r.fare::float8,
		COALESCE(pickup.address, 'N/A'), COALESCE(destination.address, 'N/A'),
		r.created_at, r.updated_at, COALESCE(r.cancellation_reason, ''), r.started_at
	FROM rides AS r
	LEFT JOIN coordinates pickup ON r.pickup_coordinate_id = pickup.id
	LEFT JOIN coordinates destination ON r.destination_coordinate_id = destination.id
`

func (s *pgStore) ActiveRides(ctx context.Context, limit, offset int) ([]RideSummary, int, error) {
	return s.page(ctx, `r.status IN `+activeStatuses, `r.created_at DESC`, limit, offset)
}

func (s *pgStore) History(ctx context.Context, limit, offset int) ([]RideSummary, int, error) {
	return s.page(ctx, `r.status IN ('COMPLETED', 'CANCELLED')`, `r.updated_at DESC`, limit, offset)
}

func (s *pgStore) page(ctx context.Context, where, order string, limit, offset int) ([]RideSummary, int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM rides AS r WHERE `+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rides: %w", err)
	}

	rides := make([]RideSummary, 0)
	if total == 0 {
		return rides, 0, tx.Commit(ctx)
	}

	rows, err := tx.Query(ctx, selectSummary+` WHERE `+where+` ORDER BY `+order+` LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query rides: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r RideSummary
		if err := rows.Scan(
			&r.RideID, &r.Status, &r.PassengerID, &r.DriverID, &r.RideType, &r.Fare,
			&r.PickupAddress, &r.DestinationAddress,
			&r.CreatedAt, &r.UpdatedAt, &r.CancelReason, &r.StartedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rides: %w", err)
	}
	rows.Close()

	return rides, total, tx.Commit(ctx)
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ride-sim/internal/ride-service/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS coordinates (
	id          BIGSERIAL PRIMARY KEY,
	entity_id   TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	is_current  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rides (
	id                        TEXT PRIMARY KEY,
	passenger_id              TEXT NOT NULL,
	driver_id                 TEXT,
	status                    TEXT NOT NULL,
	ride_type_id              TEXT NOT NULL,
	payment_method_id         TEXT NOT NULL,
	fare                      NUMERIC(10, 2) NOT NULL,
	route                     JSONB,
	pickup_coordinate_id      BIGINT REFERENCES coordinates (id),
	destination_coordinate_id BIGINT REFERENCES coordinates (id),
	created_at                TIMESTAMPTZ NOT NULL,
	updated_at                TIMESTAMPTZ NOT NULL,
	estimated_arrival         TIMESTAMPTZ,
	started_at                TIMESTAMPTZ,
	completed_at              TIMESTAMPTZ,
	cancelled_at              TIMESTAMPTZ,
	cancellation_reason       TEXT
);

CREATE INDEX IF NOT EXISTS rides_passenger_created_idx ON rides (passenger_id, created_at DESC);
`

const selectRide = `
	SELECT
		r.id, r.passenger_id, r.driver_id, r.status, r.ride_type_id, r.payment_method_id,
		r.fare::float8, r.route, r.created_at, r.updated_at, r.estimated_arrival,
		r.started_at, r.completed_at, r.cancelled_at, COALESCE(r.cancellation_reason, ''),
		COALESCE(cp.latitude, 0), COALESCE(cp.longitude, 0), COALESCE(cp.address, ''),
		COALESCE(cd.latitude, 0), COALESCE(cd.longitude, 0), COALESCE(cd.address, '')
	FROM rides r
	LEFT JOIN coordinates cp ON r.pickup_coordinate_id = cp.id
	LEFT JOIN coordinates cd ON r.destination_coordinate_id = cd.id
`

// PostgresRideRepository implements domain.RideRepository on PostgreSQL
type PostgresRideRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRideRepository creates a new PostgreSQL repository
func NewPostgresRideRepository(db *pgxpool.Pool) *PostgresRideRepository {
	return &PostgresRideRepository{
		db: db,
	}
}

// EnsureSchema creates the rides and coordinates tables when missing
func (r *PostgresRideRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save persists a new ride
func (r *PostgresRideRepository) Save(ctx context.Context, ride *domain.Ride) error {
	routeJSON, err := marshalRoute(ride.Route())
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO rides (
			id, passenger_id, status, ride_type_id, payment_method_id,
			fare, route, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		ride.ID(),
		ride.PassengerID(),
		ride.Status().String(),
		ride.RideTypeID(),
		ride.PaymentMethodID(),
		ride.Fare(),
		routeJSON,
		ride.CreatedAt(),
		ride.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}

	pickupCoordID, err := insertCoordinate(ctx, tx, ride.PassengerID(), ride.PickupLocation(), true)
	if err != nil {
		return fmt.Errorf("insert pickup coordinate: %w", err)
	}
	destCoordID, err := insertCoordinate(ctx, tx, ride.PassengerID(), ride.DestLocation(), false)
	if err != nil {
		return fmt.Errorf("insert destination coordinate: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE rides
		SET pickup_coordinate_id = $1, destination_coordinate_id = $2
		WHERE id = $3
	`, pickupCoordID, destCoordID, ride.ID())
	if err != nil {
		return fmt.Errorf("update ride coordinates: %w", err)
	}

	return tx.Commit(ctx)
}

func insertCoordinate(ctx context.Context, tx pgx.Tx, passengerID string, c domain.Coordinate, current bool) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO coordinates (
			entity_id, entity_type, address, latitude, longitude, is_current
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		passengerID,
		"passenger",
		c.Address(),
		c.Latitude(),
		c.Longitude(),
		current,
	).Scan(&id)
	return id, err
}

// Update writes the mutable part of a ride
func (r *PostgresRideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE rides
		SET
			status = $1,
			driver_id = $2,
			fare = $3,
			estimated_arrival = $4,
			started_at = $5,
			completed_at = $6,
			cancelled_at = $7,
			cancellation_reason = $8,
			updated_at = $9
		WHERE id = $10
	`,
		ride.Status().String(),
		ride.DriverID(),
		ride.Fare(),
		ride.EstimatedArrival(),
		ride.StartedAt(),
		ride.CompletedAt(),
		ride.CancelledAt(),
		ride.CancelReason(),
		ride.UpdatedAt(),
		ride.ID(),
	)
	if err != nil {
		return fmt.Errorf("update ride: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRideNotFound
	}

	return nil
}

// FindByID retrieves a ride by its ID
func (r *PostgresRideRepository) FindByID(ctx context.Context, rideID string) (*domain.Ride, error) {
	ride, err := scanRide(r.db.QueryRow(ctx, selectRide+` WHERE r.id = $1`, rideID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRideNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query ride: %w", err)
	}
	return ride, nil
}

// ListHistory returns finished rides of a passenger, newest first
func (r *PostgresRideRepository) ListHistory(ctx context.Context, passengerID string, limit int) ([]*domain.Ride, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, selectRide+`
		WHERE r.passenger_id = $1 AND r.status IN ('COMPLETED', 'CANCELLED')
		ORDER BY r.updated_at DESC
		LIMIT $2
	`, passengerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query ride history: %w", err)
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ride history: %w", err)
	}

	return rides, nil
}

// scanRide reads one row produced by selectRide
func scanRide(row pgx.Row) (*domain.Ride, error) {
	var (
		v         domain.RideView
		status    string
		routeJSON []byte
	)

	err := row.Scan(
		&v.ID, &v.PassengerID, &v.DriverID, &status, &v.RideTypeID, &v.PaymentMethodID,
		&v.Fare, &routeJSON, &v.CreatedAt, &v.UpdatedAt, &v.EstimatedArrival,
		&v.StartedAt, &v.CompletedAt, &v.CancelledAt, &v.CancelReason,
		&v.Pickup.Latitude, &v.Pickup.Longitude, &v.Pickup.Address,
		&v.Destination.Latitude, &v.Destination.Longitude, &v.Destination.Address,
	)
	if err != nil {
		return nil, err
	}

	v.Status = domain.RideStatus(status)
	if v.Route, err = unmarshalRoute(routeJSON); err != nil {
		return nil, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	v.UpdatedAt = v.UpdatedAt.UTC()

	return domain.RestoreRide(v)
}

func marshalRoute(route *domain.Route) ([]byte, error) {
	if route == nil {
		return nil, nil
	}
	b, err := json.Marshal(route)
	if err != nil {
		return nil, fmt.Errorf("marshal route: %w", err)
	}
	return b, nil
}

func unmarshalRoute(b []byte) (*domain.Route, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var route domain.Route
	if err := json.Unmarshal(b, &route); err != nil {
		return nil, fmt.Errorf("unmarshal route: %w", err)
	}
	return &route, nil
}

// CancelStale cancels rides left active by a previous process. Sessions live
// in memory, so anything still active at startup can never progress.
func (r *PostgresRideRepository) CancelStale(ctx context.Context, now time.Time, age time.Duration) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE rides
		SET status = 'CANCELLED', cancelled_at = $1, updated_at = $1,
			cancellation_reason = 'service_restarted'
		WHERE status NOT IN ('COMPLETED', 'CANCELLED') AND updated_at < $2
	`, now, now.Add(-age))
	if err != nil {
		return 0, fmt.Errorf("cancel stale rides: %w", err)
	}
	return tag.RowsAffected(), nil
}

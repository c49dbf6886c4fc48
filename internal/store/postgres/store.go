package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"hauntq/internal/models"
	"hauntq/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	uniqueViolation   = "23505"
	defaultMaxRetries = 3
)

var tracer trace.Tracer = otel.Tracer("hauntq/store/postgres")

const reservationColumns = `id, ticket_no, email, count, age, status, channel, user_agent, to_char(business_day, 'YYYY-MM-DD'), created_at, called_at`

type Store struct {
	pool       *pgxpool.Pool
	maxRetries int
}

type Options struct {
	// MaxRetries bounds how often a ticket insert is retried after losing a
	// race on the (business_day, ticket_no) unique index.
	MaxRetries int
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	retries := options.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &Store{pool: pool, maxRetries: retries}
}

func (s *Store) CreateReservation(ctx context.Context, input store.CreateReservationInput) (models.Reservation, error) {
	input = store.NormalizeCreate(input)
	if err := store.ValidateCreate(input); err != nil {
		return models.Reservation{}, err
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now().UTC()
	}

	ctx, span := tracer.Start(ctx, "reservations.create")
	defer span.End()
	span.SetAttributes(attribute.String("business_day", input.BusinessDay), attribute.String("channel", input.Channel))

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		reservation, err := s.createOnce(ctx, input)
		if err == nil {
			return reservation, nil
		}
		if !isUniqueViolation(err) {
			span.RecordError(err)
			return models.Reservation{}, err
		}
		lastErr = err
	}
	return models.Reservation{}, fmt.Errorf("%w: ticket number assignment: %v", store.ErrConflict, lastErr)
}

func (s *Store) createOnce(ctx context.Context, input store.CreateReservationInput) (models.Reservation, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return models.Reservation{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serializes ticket assignment for one business day across connections.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, dayLockKey(input.BusinessDay)); err != nil {
		return models.Reservation{}, err
	}

	var next int
	row := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(ticket_no), 0) + 1
		FROM reservations
		WHERE business_day = $1::date
	`, input.BusinessDay)
	if err := row.Scan(&next); err != nil {
		return models.Reservation{}, err
	}

	row = tx.QueryRow(ctx, `
		INSERT INTO reservations (ticket_no, email, count, age, status, channel, user_agent, business_day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9)
		RETURNING `+reservationColumns,
		next, input.Email, input.Count, input.Age, models.StatusNotCalled, input.Channel, nullIfEmpty(input.UserAgent), input.BusinessDay, input.CreatedAt)
	reservation, err := scanReservation(row)
	if err != nil {
		return models.Reservation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Reservation{}, err
	}
	return reservation, nil
}

func (s *Store) ListReservations(ctx context.Context, businessDay string) ([]models.Reservation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE business_day = $1::date
		ORDER BY created_at ASC, id ASC
	`, businessDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (s *Store) UpdateStatus(ctx context.Context, input store.UpdateStatusInput) (models.Reservation, error) {
	if err := store.ValidateStatus(input.Status); err != nil {
		return models.Reservation{}, err
	}
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	ctx, span := tracer.Start(ctx, "reservations.update_status")
	defer span.End()

	keyColumn := "id"
	if input.Lookup == store.LookupByTicket {
		keyColumn = "ticket_no"
	}

	// Re-applying the current status leaves called_at untouched.
	row := s.pool.QueryRow(ctx, `
		UPDATE reservations
		SET status = $1,
			called_at = CASE
				WHEN status = $1 THEN called_at
				WHEN $1 = '`+models.StatusNotCalled+`' THEN NULL
				ELSE $2
			END
		WHERE `+keyColumn+` = $3 AND business_day = $4::date
		RETURNING `+reservationColumns,
		input.Status, occurredAt, input.Key, input.BusinessDay)
	reservation, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Reservation{}, store.ErrReservationNotFound
		}
		span.RecordError(err)
		return models.Reservation{}, err
	}
	return reservation, nil
}

func (s *Store) DeleteReservation(ctx context.Context, input store.DeleteInput) (models.Reservation, error) {
	var row pgx.Row
	if input.Lookup == store.LookupByTicket {
		row = s.pool.QueryRow(ctx, `
			DELETE FROM reservations
			WHERE ticket_no = $1 AND business_day = $2::date
			RETURNING `+reservationColumns, input.Key, input.BusinessDay)
	} else {
		row = s.pool.QueryRow(ctx, `
			DELETE FROM reservations
			WHERE id = $1
			RETURNING `+reservationColumns, input.Key)
	}
	reservation, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Reservation{}, store.ErrReservationNotFound
		}
		return models.Reservation{}, err
	}
	return reservation, nil
}

func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "reservations.clear_all")
	defer span.End()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var deleted int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM reservations`).Scan(&deleted); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `TRUNCATE reservations RESTART IDENTITY`); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return deleted, nil
}

func (s *Store) MaxTicketNo(ctx context.Context, businessDay string) (int, error) {
	var max int
	row := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(ticket_no), 0)
		FROM reservations
		WHERE business_day = $1::date
	`, businessDay)
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

func (s *Store) ListUpcoming(ctx context.Context, businessDay string, fromTicket, limit int) ([]models.Reservation, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE business_day = $1::date AND status = $2 AND ticket_no >= $3
		ORDER BY ticket_no ASC
		LIMIT $4
	`, businessDay, models.StatusNotCalled, fromTicket, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func collectReservations(rows pgx.Rows) ([]models.Reservation, error) {
	var reservations []models.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reservations, nil
}

func scanReservation(row pgx.Row) (models.Reservation, error) {
	var reservation models.Reservation
	var userAgentNull sql.NullString
	var calledAtNull sql.NullTime
	if err := row.Scan(
		&reservation.ID,
		&reservation.TicketNo,
		&reservation.Email,
		&reservation.Count,
		&reservation.Age,
		&reservation.Status,
		&reservation.Channel,
		&userAgentNull,
		&reservation.BusinessDay,
		&reservation.CreatedAt,
		&calledAtNull,
	); err != nil {
		return models.Reservation{}, err
	}
	if userAgentNull.Valid {
		reservation.UserAgent = userAgentNull.String
	}
	reservation.CalledAt = nullTimePtr(calledAtNull)
	return reservation, nil
}

func dayLockKey(businessDay string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("reservations:" + businessDay))
	return int64(h.Sum64())
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

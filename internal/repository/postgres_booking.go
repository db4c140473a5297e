package repository

import (
	"context"
	"errors"
	"time"

	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// bookingStatusExpr folds lazy expiry into every read: a pending booking past
// its deadline is reported as expired even before the sweeper has run.
const bookingStatusExpr = `
	CASE
		WHEN b.status = 'pending' AND b.expires_at IS NOT NULL AND b.expires_at <= NOW()
			THEN 'expired'
		ELSE b.status
	END
`

type PostgresBookingRepository struct {
	db *pgxpool.Pool
}

func NewPostgresBookingRepository(db *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db: db,
	}
}

func (p *PostgresBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		// Reads already fold a due pending booking to expired, but its seat
		// rows keep blocking the unique index until the sweeper runs.
		// Release them up front so the index only arbitrates live claims.
		releaseDue := `
			UPDATE booking_seats bs
			SET released = TRUE
			FROM bookings b
			WHERE bs.booking_id = b.id
				AND bs.showtime_id = $1
				AND NOT bs.released
				AND b.status = 'pending'
				AND b.expires_at IS NOT NULL
				AND b.expires_at <= NOW()
		`

		_, err := tx.Exec(ctx, releaseDue, booking.ShowtimeID)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO bookings (reference, user_id, showtime_id, status, total_amount, seat_count, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at
		`

		err = tx.QueryRow(
			ctx,
			query,
			booking.Reference,
			booking.UserID,
			booking.ShowtimeID,
			booking.Status,
			booking.TotalAmount,
			len(booking.Seats),
			booking.ExpiresAt,
		).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

		if err != nil {
			return err
		}

		rows := make([][]any, 0, len(booking.Seats))
		for _, seat := range booking.Seats {
			rows = append(rows, []any{
				booking.ID,
				booking.ShowtimeID,
				seat.SeatID,
				seat.Price,
			})
		}

		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"booking_seats"},
			[]string{"booking_id", "showtime_id", "seat_id", "price"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrSeatsUnavailable
			}

			return err
		}

		return nil
	})
}

func (p *PostgresBookingRepository) GetById(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	return p.getBooking(ctx, "b.id = $1", bookingID)
}

func (p *PostgresBookingRepository) GetByReference(ctx context.Context, reference string) (*domain.Booking, error) {
	return p.getBooking(ctx, "b.reference = $1", reference)
}

func (p *PostgresBookingRepository) getBooking(ctx context.Context, where string, arg any) (*domain.Booking, error) {
	query := `
		SELECT
			b.id,
			b.reference,
			b.user_id,
			b.showtime_id,
			` + bookingStatusExpr + ` AS status,
			b.total_amount,
			b.created_at,
			b.updated_at,
			b.expires_at,
			sh.movie_title,
			sh.starts_at,
			sc.name,
			t.name
		FROM bookings b
		JOIN showtimes sh ON b.showtime_id = sh.id
		JOIN screens sc ON sh.screen_id = sc.id
		JOIN theaters t ON sc.theater_id = t.id
		WHERE ` + where

	var booking domain.Booking

	err := p.db.QueryRow(ctx, query, arg).Scan(
		&booking.ID,
		&booking.Reference,
		&booking.UserID,
		&booking.ShowtimeID,
		&booking.Status,
		&booking.TotalAmount,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&booking.ExpiresAt,
		&booking.MovieTitle,
		&booking.StartsAt,
		&booking.ScreenName,
		&booking.TheaterName,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	seats, err := p.retrieveBookingSeats(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	booking.Seats = seats

	payment, err := p.retrievePayment(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	booking.Payment = payment

	return &booking, nil
}

func (p *PostgresBookingRepository) retrieveBookingSeats(
	ctx context.Context,
	bookingID int64) ([]domain.BookingSeat, error) {

	query := `
		SELECT bs.seat_id, s.seat_row, s.seat_number, s.category, bs.price
		FROM booking_seats bs
		JOIN seats s ON bs.seat_id = s.id
		WHERE bs.booking_id = $1
		ORDER BY s.seat_row, s.seat_number
	`

	rows, err := p.db.Query(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.BookingSeat, 0)

	for rows.Next() {
		var seat domain.BookingSeat

		err := rows.Scan(&seat.SeatID, &seat.Row, &seat.Number, &seat.Category, &seat.Price)
		if err != nil {
			return nil, err
		}

		seats = append(seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return seats, nil
}

// retrievePayment returns the settled payment when one exists, otherwise the
// most recent attempt. A booking with no payment attempts yields nil.
func (p *PostgresBookingRepository) retrievePayment(
	ctx context.Context,
	bookingID int64) (*domain.Payment, error) {

	query := `
		SELECT id, booking_id, amount, status, transaction_id, method, created_at, updated_at
		FROM payments
		WHERE booking_id = $1
		ORDER BY
			CASE WHEN status IN ('success', 'refunded') THEN 0 ELSE 1 END,
			created_at DESC
		LIMIT 1
	`

	var payment domain.Payment

	err := p.db.QueryRow(ctx, query, bookingID).Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.Amount,
		&payment.Status,
		&payment.TransactionID,
		&payment.Method,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &payment, nil
}

// GetActiveSeatsByShowtimeId returns the seat ids claimed by bookings that
// still block availability: confirmed, or pending and not yet past deadline.
func (p *PostgresBookingRepository) GetActiveSeatsByShowtimeId(
	ctx context.Context,
	showtimeID int64) ([]int64, error) {

	query := `
		SELECT bs.seat_id
		FROM booking_seats bs
		JOIN bookings b ON bs.booking_id = b.id
		WHERE bs.showtime_id = $1
			AND NOT bs.released
			AND (
				b.status = 'confirmed'
				OR (b.status = 'pending' AND (b.expires_at IS NULL OR b.expires_at > NOW()))
			)
	`

	rows, err := p.db.Query(ctx, query, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seatIDs := make([]int64, 0)

	for rows.Next() {
		var seatID int64

		err := rows.Scan(&seatID)
		if err != nil {
			return nil, err
		}

		seatIDs = append(seatIDs, seatID)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return seatIDs, nil
}

func (p *PostgresBookingRepository) GetSummariesByUserId(
	ctx context.Context,
	userID int64,
	pagination domain.Pagination) ([]domain.BookingSummary, *domain.Metadata, error) {

	query := `
		SELECT
			COUNT(*) OVER(),
			b.id,
			b.reference,
			` + bookingStatusExpr + ` AS status,
			b.total_amount,
			b.seat_count,
			sh.movie_title,
			t.name,
			sh.starts_at,
			b.created_at
		FROM bookings b
		JOIN showtimes sh ON b.showtime_id = sh.id
		JOIN screens sc ON sh.screen_id = sc.id
		JOIN theaters t ON sc.theater_id = t.id
		WHERE b.user_id = $1
		ORDER BY b.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, userID, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	summaries := make([]domain.BookingSummary, 0)
	totalRecords := 0

	for rows.Next() {
		var summary domain.BookingSummary

		err := rows.Scan(
			&totalRecords,
			&summary.ID,
			&summary.Reference,
			&summary.Status,
			&summary.TotalAmount,
			&summary.SeatCount,
			&summary.MovieTitle,
			&summary.TheaterName,
			&summary.StartsAt,
			&summary.CreatedAt,
		)
		if err != nil {
			return nil, nil, err
		}

		summaries = append(summaries, summary)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	metadata := domain.NewMetadata(totalRecords, pagination.Page, pagination.PageSize)

	return summaries, metadata, nil
}

// ConfirmWithPayment applies pending -> confirmed and records the success
// payment in one transaction. The status predicate is the compare-and-swap
// that makes duplicate deliveries lose: the second caller matches no row.
func (p *PostgresBookingRepository) ConfirmWithPayment(
	ctx context.Context,
	bookingID int64,
	payment *domain.Payment) error {

	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings
			SET status = 'confirmed', expires_at = NULL, updated_at = NOW()
			WHERE id = $1
				AND status = 'pending'
				AND (expires_at IS NULL OR expires_at > NOW())
		`

		tag, err := tx.Exec(ctx, query, bookingID)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return p.classifyMissedSwap(ctx, tx, bookingID)
		}

		query = `
			INSERT INTO payments (booking_id, amount, status, transaction_id, method)
			VALUES ($1, $2, 'success', $3, $4)
			RETURNING id, created_at, updated_at
		`

		err = tx.QueryRow(
			ctx,
			query,
			bookingID,
			payment.Amount,
			payment.TransactionID,
			payment.Method,
		).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)

		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrAlreadyFinalized
			}

			return err
		}

		payment.BookingID = bookingID
		payment.Status = domain.PaymentStatusSuccess

		return nil
	})
}

func (p *PostgresBookingRepository) RecordFailedPayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (booking_id, amount, status, method)
		VALUES ($1, $2, 'failed', $3)
		RETURNING id, created_at, updated_at
	`

	err := p.db.QueryRow(
		ctx,
		query,
		payment.BookingID,
		payment.Amount,
		payment.Method,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)

	if err != nil {
		return err
	}

	payment.Status = domain.PaymentStatusFailed

	return nil
}

// Cancel applies pending|confirmed -> cancelled, releases the seats, and,
// when a refund is given, flips the success payment to refunded and persists
// the refund record, all in one transaction.
func (p *PostgresBookingRepository) Cancel(
	ctx context.Context,
	bookingID int64,
	refund *domain.Refund) error {

	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings
			SET status = 'cancelled', expires_at = NULL, updated_at = NOW()
			WHERE id = $1
				AND (
					status = 'confirmed'
					OR (status = 'pending' AND (expires_at IS NULL OR expires_at > NOW()))
				)
		`

		tag, err := tx.Exec(ctx, query, bookingID)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return p.classifyMissedSwap(ctx, tx, bookingID)
		}

		_, err = tx.Exec(ctx, `UPDATE booking_seats SET released = TRUE WHERE booking_id = $1`, bookingID)
		if err != nil {
			return err
		}

		if refund == nil {
			return nil
		}

		query = `
			UPDATE payments
			SET status = 'refunded', updated_at = NOW()
			WHERE booking_id = $1 AND status = 'success'
		`

		_, err = tx.Exec(ctx, query, bookingID)
		if err != nil {
			return err
		}

		query = `
			INSERT INTO refunds (reference, booking_id, original_transaction_id, amount, status, processed_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`

		err = tx.QueryRow(
			ctx,
			query,
			refund.Reference,
			bookingID,
			refund.OriginalTransactionID,
			refund.Amount,
			refund.Status,
			refund.ProcessedAt,
		).Scan(&refund.ID)

		if err != nil {
			return err
		}

		refund.BookingID = bookingID

		return nil
	})
}

// ExpireDue flips pending bookings past their deadline to expired and
// releases their seats. Returns the ids it expired.
func (p *PostgresBookingRepository) ExpireDue(ctx context.Context, now time.Time) ([]int64, error) {
	var expired []int64

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings
			SET status = 'expired', updated_at = NOW()
			WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= $1
			RETURNING id
		`

		rows, err := tx.Query(ctx, query, now)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int64

			err := rows.Scan(&id)
			if err != nil {
				return err
			}

			expired = append(expired, id)
		}

		if err = rows.Err(); err != nil {
			return err
		}

		if len(expired) == 0 {
			return nil
		}

		_, err = tx.Exec(ctx, `UPDATE booking_seats SET released = TRUE WHERE booking_id = ANY($1)`, expired)

		return err
	})

	if err != nil {
		return nil, err
	}

	return expired, nil
}

// classifyMissedSwap turns a zero-row CAS into the precise state violation.
func (p *PostgresBookingRepository) classifyMissedSwap(ctx context.Context, tx pgx.Tx, bookingID int64) error {
	query := `SELECT ` + bookingStatusExpr + ` FROM bookings b WHERE b.id = $1`

	var status domain.BookingStatus

	err := tx.QueryRow(ctx, query, bookingID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRecordNotFound
		}

		return err
	}

	switch status {
	case domain.BookingStatusExpired:
		return domain.ErrBookingExpired
	case domain.BookingStatusCancelled:
		return domain.ErrInvalidState
	default:
		return domain.ErrAlreadyFinalized
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

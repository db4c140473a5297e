package repository

import (
	"context"
	"errors"

	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresSeatRepository struct {
	db *pgxpool.Pool
}

func NewPostgresSeatRepository(db *pgxpool.Pool) *PostgresSeatRepository {
	return &PostgresSeatRepository{
		db: db,
	}
}

func (p *PostgresSeatRepository) GetSeatMapByShowtime(
	ctx context.Context,
	showtimeID int64) (*domain.SeatMap, error) {

	seatMap, err := p.getShowtimeHeader(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, seat_row, seat_number, category, base_price
		FROM seats
		WHERE screen_id = $1
		ORDER BY seat_row, seat_number
	`

	rows, err := p.db.Query(ctx, query, seatMap.ScreenID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	err = scanSeats(rows, seatMap)
	if err != nil {
		return nil, err
	}

	return seatMap, nil
}

func (p *PostgresSeatRepository) GetSeatsByShowtimeAndSeatIds(
	ctx context.Context,
	showtimeID int64,
	seatIDs []int64) (*domain.SeatMap, error) {

	seatMap, err := p.getShowtimeHeader(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, seat_row, seat_number, category, base_price
		FROM seats
		WHERE screen_id = $1 AND id = ANY($2)
		ORDER BY seat_row, seat_number
	`

	rows, err := p.db.Query(ctx, query, seatMap.ScreenID, seatIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	err = scanSeats(rows, seatMap)
	if err != nil {
		return nil, err
	}

	return seatMap, nil
}

func (p *PostgresSeatRepository) getShowtimeHeader(
	ctx context.Context,
	showtimeID int64) (*domain.SeatMap, error) {

	query := `
		SELECT
			sh.id,
			sh.movie_title,
			sh.starts_at,
			sh.price_multiplier,
			sc.id AS screen_id,
			sc.name AS screen_name,
			t.id AS theater_id,
			t.name AS theater_name
		FROM showtimes sh
		JOIN screens sc ON sh.screen_id = sc.id
		JOIN theaters t ON sc.theater_id = t.id
		WHERE sh.id = $1
	`

	var seatMap domain.SeatMap

	err := p.db.QueryRow(ctx, query, showtimeID).Scan(
		&seatMap.ShowtimeID,
		&seatMap.MovieTitle,
		&seatMap.StartsAt,
		&seatMap.PriceMultiplier,
		&seatMap.ScreenID,
		&seatMap.ScreenName,
		&seatMap.TheaterID,
		&seatMap.TheaterName,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &seatMap, nil
}

func scanSeats(rows pgx.Rows, seatMap *domain.SeatMap) error {
	seatMap.Seats = make([]domain.Seat, 0)

	for rows.Next() {
		seat := domain.Seat{Available: true}

		err := rows.Scan(
			&seat.ID,
			&seat.Row,
			&seat.Number,
			&seat.Category,
			&seat.BasePrice,
		)
		if err != nil {
			return err
		}

		seatMap.Seats = append(seatMap.Seats, seat)
	}

	return rows.Err()
}

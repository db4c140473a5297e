package repository

import (
	"context"

	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresTheaterRepository struct {
	db *pgxpool.Pool
}

func NewPostgresTheaterRepository(db *pgxpool.Pool) *PostgresTheaterRepository {
	return &PostgresTheaterRepository{
		db: db,
	}
}

func (p *PostgresTheaterRepository) GetTheatersByCity(
	ctx context.Context,
	city string,
	pagination domain.Pagination) ([]domain.Theater, *domain.Metadata, error) {

	query := `
		SELECT
			COUNT(*) OVER(),
			id,
			name,
			address,
			city,
			latitude,
			longitude
		FROM theaters
		WHERE $1 = '' OR city ILIKE $1
		ORDER BY name
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, city, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	theaters := make([]domain.Theater, 0)
	totalRecords := 0

	for rows.Next() {
		var theater domain.Theater

		err := rows.Scan(
			&totalRecords,
			&theater.ID,
			&theater.Name,
			&theater.Address,
			&theater.City,
			&theater.Latitude,
			&theater.Longitude,
		)
		if err != nil {
			return nil, nil, err
		}

		theaters = append(theaters, theater)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	metadata := domain.NewMetadata(totalRecords, pagination.Page, pagination.PageSize)

	return theaters, metadata, nil
}

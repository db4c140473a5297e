package mocks

import (
	"context"

	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockTheaterRepo struct {
	mock.Mock
	domain.TheaterRepository
}

func (m *MockTheaterRepo) GetTheatersByCity(
	ctx context.Context,
	city string,
	pagination domain.Pagination) ([]domain.Theater, *domain.Metadata, error) {

	args := m.Called(ctx, city, pagination)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.Theater), args.Get(1).(*domain.Metadata), args.Error(2)
}

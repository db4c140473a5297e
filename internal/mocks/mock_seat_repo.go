package mocks

import (
	"context"

	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockSeatRepo struct {
	mock.Mock
	domain.SeatRepository
}

func (m *MockSeatRepo) GetSeatMapByShowtime(ctx context.Context, showtimeID int64) (*domain.SeatMap, error) {
	args := m.Called(ctx, showtimeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatMap), args.Error(1)
}

func (m *MockSeatRepo) GetSeatsByShowtimeAndSeatIds(
	ctx context.Context,
	showtimeID int64,
	seatIDs []int64) (*domain.SeatMap, error) {

	args := m.Called(ctx, showtimeID, seatIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatMap), args.Error(1)
}

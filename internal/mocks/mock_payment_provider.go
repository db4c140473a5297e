package mocks

import (
	"context"

	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/cinetix/booking-engine/internal/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockPaymentProvider struct {
	mock.Mock
	payment.Provider
}

func (m *MockPaymentProvider) Charge(
	ctx context.Context,
	booking *domain.Booking,
	method string) (*payment.Transaction, error) {

	args := m.Called(ctx, booking, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockPaymentProvider) Refund(
	ctx context.Context,
	originalTransactionID *string,
	amount decimal.Decimal) (*domain.Refund, error) {

	args := m.Called(ctx, originalTransactionID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Refund), args.Error(1)
}

package payment

import (
	"context"
	"time"

	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// Transaction is the processor's answer to a charge attempt.
type Transaction struct {
	ID        string
	Amount    decimal.Decimal
	Method    string
	ChargedAt time.Time
}

// Provider is the boundary to the payment processor. A declined charge is
// reported as domain.ErrPaymentDeclined; any other error is an upstream
// failure and equally retriable by the caller.
type Provider interface {
	Charge(ctx context.Context, booking *domain.Booking, method string) (*Transaction, error)
	Refund(ctx context.Context, originalTransactionID *string, amount decimal.Decimal) (*domain.Refund, error)
}

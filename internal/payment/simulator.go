package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Simulator stands in for a real payment processor. Charges succeed unless a
// decline hook says otherwise, and refunds always succeed.
type Simulator struct {
	// DeclineFunc, when set, is consulted per charge. Used to exercise the
	// declined-payment path.
	DeclineFunc func(booking *domain.Booking, method string) bool
}

func NewSimulator() *Simulator {
	return &Simulator{}
}

func (s *Simulator) Charge(ctx context.Context, booking *domain.Booking, method string) (*Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("charge aborted: %w", err)
	}

	if s.DeclineFunc != nil && s.DeclineFunc(booking, method) {
		return nil, domain.ErrPaymentDeclined
	}

	return &Transaction{
		ID:        newTransactionID(),
		Amount:    booking.TotalAmount,
		Method:    method,
		ChargedAt: time.Now(),
	}, nil
}

func (s *Simulator) Refund(
	ctx context.Context,
	originalTransactionID *string,
	amount decimal.Decimal) (*domain.Refund, error) {

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refund aborted: %w", err)
	}

	return &domain.Refund{
		Reference:             newRefundReference(),
		OriginalTransactionID: originalTransactionID,
		Amount:                amount,
		Status:                domain.RefundStatusProcessed,
		ProcessedAt:           time.Now(),
	}, nil
}

func newTransactionID() string {
	return fmt.Sprintf("TXN%s", randomHex(12))
}

func newRefundReference() string {
	return fmt.Sprintf("RF%s", randomHex(10))
}

func randomHex(n int) string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:n])
}

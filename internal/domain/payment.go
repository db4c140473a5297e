package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type Payment struct {
	ID            int64
	BookingID     int64
	Amount        decimal.Decimal
	Status        PaymentStatus
	TransactionID *string
	Method        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type RefundStatus string

const RefundStatusProcessed RefundStatus = "processed"

// Refund is the compensating record for a confirmed booking that was
// cancelled before its showtime started.
type Refund struct {
	ID                    int64
	Reference             string
	BookingID             int64
	OriginalTransactionID *string
	Amount                decimal.Decimal
	Status                RefundStatus
	ProcessedAt           time.Time
}

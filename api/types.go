// Package api declares the request and response schemas of the booking
// engine's HTTP surface. Fields are explicit and versioned with the handlers;
// optional fields are pointers.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validationErrors"`
	RequestId        string            `json:"requestId,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type Metadata struct {
	CurrentPage  int `json:"currentPage"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
}

type Seat struct {
	Id        int64           `json:"id"`
	Row       string          `json:"row"`
	Number    int             `json:"number"`
	Category  string          `json:"category"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

type SeatRow struct {
	Row   string `json:"row"`
	Seats []Seat `json:"seats"`
}

type SeatMapResponse struct {
	ShowtimeId  int64     `json:"showtimeId"`
	MovieTitle  string    `json:"movieTitle"`
	TheaterId   int64     `json:"theaterId"`
	TheaterName string    `json:"theaterName"`
	ScreenName  string    `json:"screenName"`
	StartsAt    time.Time `json:"startsAt"`
	SeatRows    []SeatRow `json:"seatRows"`
}

type CreateHoldRequest struct {
	SeatIdList []int64 `json:"seatIds" validate:"required,min=1,max=10,unique,dive,gt=0"`
}

type HeldSeat struct {
	Id       int64           `json:"id"`
	Row      string          `json:"row"`
	Number   int             `json:"number"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

type HoldResponse struct {
	HoldId     string          `json:"holdId"`
	ShowtimeId int64           `json:"showtimeId"`
	Seats      []HeldSeat      `json:"seats"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	HoldTime   int             `json:"holdTime"`
	ExpiresAt  time.Time       `json:"expiresAt"`
}

type SeatConflictResponse struct {
	Message            string    `json:"message"`
	ConflictingSeatIds []int64   `json:"conflictingSeatIds"`
	RequestId          string    `json:"requestId,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

type CreateBookingRequest struct {
	HoldId string `json:"holdId" validate:"required,uuid4"`
}

type BookingSeat struct {
	Id       int64           `json:"id"`
	Row      string          `json:"row"`
	Number   int             `json:"number"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

type Payment struct {
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	TransactionId *string         `json:"transactionId,omitempty"`
	Method        string          `json:"method,omitempty"`
}

type BookingResponse struct {
	Id          int64           `json:"id"`
	Reference   string          `json:"reference"`
	Status      string          `json:"status"`
	ShowtimeId  int64           `json:"showtimeId"`
	MovieTitle  string          `json:"movieTitle"`
	TheaterName string          `json:"theaterName"`
	ScreenName  string          `json:"screenName"`
	StartsAt    time.Time       `json:"startsAt"`
	Seats       []BookingSeat   `json:"seats"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Payment     *Payment        `json:"payment,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExpiresAt   *time.Time      `json:"expiresAt,omitempty"`
}

type ProcessPaymentRequest struct {
	Method       string  `json:"method" validate:"required,oneof=card wallet upi netbanking"`
	ReceiptEmail *string `json:"receiptEmail,omitempty" validate:"omitempty,email"`
}

type CancelBookingRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type Refund struct {
	Reference             string          `json:"reference"`
	OriginalTransactionId *string         `json:"originalTransactionId,omitempty"`
	Amount                decimal.Decimal `json:"amount"`
	Status                string          `json:"status"`
	ProcessedAt           time.Time       `json:"processedAt"`
}

type CancelBookingResponse struct {
	Booking BookingResponse `json:"booking"`
	Refund  *Refund         `json:"refund,omitempty"`
	Message string          `json:"message"`
}

type BookingSummary struct {
	Id          int64           `json:"id"`
	Reference   string          `json:"reference"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	SeatCount   int             `json:"seatCount"`
	MovieTitle  string          `json:"movieTitle"`
	TheaterName string          `json:"theaterName"`
	StartsAt    time.Time       `json:"startsAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type UserBookingsResponse struct {
	Bookings []BookingSummary `json:"bookings"`
	Metadata Metadata         `json:"metadata"`
}

type Theater struct {
	Id         int64    `json:"id"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

type TheaterListResponse struct {
	Theaters []Theater `json:"theaters"`
	Metadata Metadata  `json:"metadata"`
}

type TheaterListParams struct {
	Page      *int     `validate:"omitempty,gte=1"`
	PageSize  *int     `validate:"omitempty,gte=1,lte=100"`
	City      *string  `validate:"omitempty,max=100"`
	Latitude  *float64 `validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `validate:"omitempty,gte=-180,lte=180"`
}

type UserBookingsParams struct {
	Page     *int `validate:"omitempty,gte=1"`
	PageSize *int `validate:"omitempty,gte=1,lte=100"`
}

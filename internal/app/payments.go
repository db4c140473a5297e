package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cinetix/booking-engine/api"
	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/cinetix/booking-engine/internal/payment"
)

func (app *Application) ProcessPaymentHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	bookingID, err := app.readIDParam(r, "bookingID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input api.ProcessPaymentRequest

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	booking, err := app.getOwnedBooking(w, r, bookingID)
	if booking == nil || err != nil {
		return
	}

	switch booking.Status {
	case domain.BookingStatusConfirmed:
		app.editConflictResponseWithErr(w, r, domain.ErrAlreadyFinalized)
		return
	case domain.BookingStatusExpired:
		app.editConflictResponseWithErr(w, r, domain.ErrBookingExpired)
		return
	case domain.BookingStatusCancelled:
		app.editConflictResponseWithErr(w, r, domain.ErrInvalidState)
		return
	}

	chargeCtx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	txn, err := app.paymentProvider.Charge(chargeCtx, booking, input.Method)
	if err != nil {
		// A charge that timed out is a payment failure, not a booking
		// failure; the booking stays pending and retriable.
		if errors.Is(err, domain.ErrPaymentDeclined) || errors.Is(err, context.DeadlineExceeded) {
			failed := &domain.Payment{
				BookingID: booking.ID,
				Amount:    booking.TotalAmount,
				Status:    domain.PaymentStatusFailed,
				Method:    input.Method,
			}

			recordErr := app.bookingRepo.RecordFailedPayment(r.Context(), failed)
			if recordErr != nil {
				logger.Error("failed to record declined payment", "booking_id", booking.ID, "error", recordErr.Error())
			}

			app.paymentDeclinedResponse(w, r, err)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	payment := &domain.Payment{
		BookingID:     booking.ID,
		Amount:        booking.TotalAmount,
		Status:        domain.PaymentStatusSuccess,
		TransactionID: &txn.ID,
		Method:        input.Method,
	}

	err = app.bookingRepo.ConfirmWithPayment(r.Context(), booking.ID, payment)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrAlreadyFinalized),
			errors.Is(err, domain.ErrBookingExpired),
			errors.Is(err, domain.ErrInvalidState):
			// The charge was captured but the booking was finalized or
			// expired out from under us. The money must come back.
			app.refundOrphanedCharge(r.Context(), logger, booking, txn)
			app.editConflictResponseWithErr(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	booking.Status = domain.BookingStatusConfirmed
	booking.Payment = payment

	logger.Info("confirmed booking",
		"booking_id", booking.ID,
		"reference", booking.Reference,
		"transaction_id", txn.ID,
		"method", input.Method,
	)

	if input.ReceiptEmail != nil {
		app.sendConfirmationEmail(*input.ReceiptEmail, booking)
	}

	err = app.writeJSON(w, http.StatusOK, toBookingResponse(booking), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// refundOrphanedCharge compensates a captured charge whose booking could not
// be confirmed. No payment row exists for it, so without the refund the
// processor would simply keep the money.
func (app *Application) refundOrphanedCharge(ctx context.Context, logger *slog.Logger, booking *domain.Booking, txn *payment.Transaction) {
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	refund, err := app.paymentProvider.Refund(refundCtx, &txn.ID, txn.Amount)
	if err != nil {
		logger.Error("failed to refund orphaned charge",
			"booking_id", booking.ID,
			"transaction_id", txn.ID,
			"error", err.Error(),
		)
		return
	}

	logger.Warn("refunded orphaned charge",
		"booking_id", booking.ID,
		"transaction_id", txn.ID,
		"refund_reference", refund.Reference,
	)
}

func (app *Application) sendConfirmationEmail(recipient string, booking *domain.Booking) {
	seatLabels := make([]string, len(booking.Seats))
	for i, seat := range booking.Seats {
		seatLabels[i] = fmt.Sprintf("%s%d", seat.Row, seat.Number)
	}

	data := map[string]any{
		"Reference":   booking.Reference,
		"MovieTitle":  booking.MovieTitle,
		"TheaterName": booking.TheaterName,
		"ScreenName":  booking.ScreenName,
		"StartsAt":    booking.StartsAt.Format("Mon, 02 Jan 2006 15:04"),
		"SeatList":    strings.Join(seatLabels, ", "),
		"TotalAmount": booking.TotalAmount.StringFixed(2),
	}

	app.background(func() {
		err := app.mailer.Send(recipient, "booking_confirmation.tmpl", data)
		if err != nil {
			app.logger.Error("failed to send confirmation email", "booking_id", booking.ID, "error", err.Error())
		}
	})
}

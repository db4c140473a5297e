package app

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cinetix/booking-engine/api"
	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/go-chi/chi/v5"
)

func (app *Application) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	var input api.CreateBookingRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	hold, err := app.getHold(r.Context(), input.HoldId)
	if err != nil {
		if errors.Is(err, domain.ErrHoldExpired) {
			app.notFoundResponseWithErr(w, r, errors.New("The hold does not exist or has expired"))
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	if hold.HolderID != app.sessionManager.Token(r.Context()) {
		app.notFoundResponse(w, r)
		return
	}

	// The hold body and its lock keys expire independently; only a hold whose
	// locks are all still in place may convert.
	locksValid, err := app.verifyHoldLocks(r.Context(), *hold)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if !locksValid {
		app.notFoundResponseWithErr(w, r, errors.New("The hold does not exist or has expired"))
		return
	}

	userID := app.contextGetUserId(r)

	booking := domain.NewBooking(*hold, userID, app.pricing, app.config.Booking.BookingTTL)

	err = app.bookingRepo.Create(r.Context(), &booking)
	if err != nil {
		if errors.Is(err, domain.ErrSeatsUnavailable) {
			app.seatConflictResponse(w, r, "Some of the selected seats were booked by another customer", hold.SeatIDs())
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	// The booking row now guards the seats; the Redis locks are redundant.
	err = app.releaseHold(r.Context(), *hold)
	if err != nil {
		logger.Error("failed to release hold after booking", "hold_id", hold.ID, "error", err.Error())
	}

	logger.Info("created booking",
		"booking_id", booking.ID,
		"reference", booking.Reference,
		"showtime_id", booking.ShowtimeID,
		"total_amount", booking.TotalAmount.String(),
	)

	// Re-read through the repository to pick up the showtime display fields
	// the insert does not return.
	created, err := app.bookingRepo.GetById(r.Context(), booking.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := toBookingResponse(created)

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/bookings/%d", booking.ID))

	err = app.writeJSON(w, http.StatusCreated, resp, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	bookingID, err := app.readIDParam(r, "bookingID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	booking, err := app.getOwnedBooking(w, r, bookingID)
	if booking == nil || err != nil {
		return
	}

	err = app.writeJSON(w, http.StatusOK, toBookingResponse(booking), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetBookingByReferenceHandler(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")

	err := app.validator.Var(reference, "required,alphanum,min=10,max=20")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid reference parameter"))
		return
	}

	booking, err := app.bookingRepo.GetByReference(r.Context(), reference)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.notFoundResponse(w, r)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	if booking.UserID != app.contextGetUserId(r) {
		app.notFoundResponse(w, r)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toBookingResponse(booking), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetUserBookingsHandler(w http.ResponseWriter, r *http.Request) {
	params, err := parseUserBookingsParams(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(params)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	pagination := domain.Pagination{Page: 1, PageSize: 20}
	if params.Page != nil {
		pagination.Page = *params.Page
	}
	if params.PageSize != nil {
		pagination.PageSize = *params.PageSize
	}

	userID := app.contextGetUserId(r)

	summaries, metadata, err := app.bookingRepo.GetSummariesByUserId(r.Context(), userID, pagination)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.UserBookingsResponse{
		Bookings: make([]api.BookingSummary, 0, len(summaries)),
		Metadata: toMetadata(metadata),
	}

	for _, s := range summaries {
		resp.Bookings = append(resp.Bookings, api.BookingSummary{
			Id:          s.ID,
			Reference:   s.Reference,
			Status:      string(s.Status),
			TotalAmount: s.TotalAmount,
			SeatCount:   s.SeatCount,
			MovieTitle:  s.MovieTitle,
			TheaterName: s.TheaterName,
			StartsAt:    s.StartsAt,
			CreatedAt:   s.CreatedAt,
		})
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	bookingID, err := app.readIDParam(r, "bookingID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input api.CancelBookingRequest

	if r.ContentLength > 0 {
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
	}

	booking, err := app.getOwnedBooking(w, r, bookingID)
	if booking == nil || err != nil {
		return
	}

	if booking.Status.Terminal() {
		app.editConflictResponseWithErr(w, r, fmt.Errorf("The booking is already %s", booking.Status))
		return
	}

	cutoff := booking.StartsAt.Add(-app.config.Booking.CancelCutoff)
	if !time.Now().Before(cutoff) {
		app.editConflictResponseWithErr(w, r, domain.ErrCancellationWindowClosed)
		return
	}

	var refund *domain.Refund

	if booking.Status == domain.BookingStatusConfirmed &&
		booking.Payment != nil && booking.Payment.Status == domain.PaymentStatusSuccess {

		refund, err = app.paymentProvider.Refund(r.Context(), booking.Payment.TransactionID, booking.TotalAmount)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}

		refund.BookingID = booking.ID
	}

	err = app.bookingRepo.Cancel(r.Context(), booking.ID, refund)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			app.notFoundResponse(w, r)
		case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrBookingExpired):
			app.editConflictResponseWithErr(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	booking.Status = domain.BookingStatusCancelled
	if refund != nil && booking.Payment != nil {
		booking.Payment.Status = domain.PaymentStatusRefunded
	}

	logger.Info("cancelled booking",
		"booking_id", booking.ID,
		"reference", booking.Reference,
		"refunded", refund != nil,
	)

	message := "Booking cancelled"
	if refund != nil {
		message = fmt.Sprintf("Booking cancelled. %s will be refunded to the original payment method.", refund.Amount.StringFixed(2))
	}
	if input.Reason != nil && *input.Reason != "" {
		logger.Info("cancellation reason", "booking_id", booking.ID, "reason", *input.Reason)
	}

	resp := api.CancelBookingResponse{
		Booking: toBookingResponse(booking),
		Refund:  toRefundResponse(refund),
		Message: message,
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// getOwnedBooking loads a booking and enforces that it belongs to the
// authenticated user. It writes the error response itself; callers bail out
// on a nil booking. Foreign bookings read as not found rather than forbidden.
func (app *Application) getOwnedBooking(w http.ResponseWriter, r *http.Request, bookingID int64) (*domain.Booking, error) {
	booking, err := app.bookingRepo.GetById(r.Context(), bookingID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.notFoundResponse(w, r)
			return nil, nil
		}

		app.serverErrorResponse(w, r, err)
		return nil, err
	}

	if booking.UserID != app.contextGetUserId(r) {
		app.notFoundResponse(w, r)
		return nil, nil
	}

	return booking, nil
}

func parseUserBookingsParams(r *http.Request) (api.UserBookingsParams, error) {
	var params api.UserBookingsParams
	var err error

	params.Page, err = readIntQuery(r, "page")
	if err != nil {
		return params, err
	}

	params.PageSize, err = readIntQuery(r, "pageSize")
	if err != nil {
		return params, err
	}

	return params, nil
}

func toBookingResponse(booking *domain.Booking) api.BookingResponse {
	seats := make([]api.BookingSeat, len(booking.Seats))
	for i, seat := range booking.Seats {
		seats[i] = api.BookingSeat{
			Id:       seat.SeatID,
			Row:      seat.Row,
			Number:   seat.Number,
			Category: string(seat.Category),
			Price:    seat.Price,
		}
	}

	resp := api.BookingResponse{
		Id:          booking.ID,
		Reference:   booking.Reference,
		Status:      string(booking.Status),
		ShowtimeId:  booking.ShowtimeID,
		MovieTitle:  booking.MovieTitle,
		TheaterName: booking.TheaterName,
		ScreenName:  booking.ScreenName,
		StartsAt:    booking.StartsAt,
		Seats:       seats,
		TotalAmount: booking.TotalAmount,
		CreatedAt:   booking.CreatedAt,
	}

	if booking.Status == domain.BookingStatusPending {
		resp.ExpiresAt = booking.ExpiresAt
	}

	if booking.Payment != nil {
		resp.Payment = &api.Payment{
			Amount:        booking.Payment.Amount,
			Status:        string(booking.Payment.Status),
			TransactionId: booking.Payment.TransactionID,
			Method:        booking.Payment.Method,
		}
	}

	return resp
}

func toRefundResponse(refund *domain.Refund) *api.Refund {
	if refund == nil {
		return nil
	}

	return &api.Refund{
		Reference:             refund.Reference,
		OriginalTransactionId: refund.OriginalTransactionID,
		Amount:                refund.Amount,
		Status:                string(refund.Status),
		ProcessedAt:           refund.ProcessedAt,
	}
}

func toMetadata(metadata *domain.Metadata) api.Metadata {
	if metadata == nil {
		return api.Metadata{}
	}

	return api.Metadata{
		CurrentPage:  metadata.CurrentPage,
		FirstPage:    metadata.FirstPage,
		LastPage:     metadata.LastPage,
		PageSize:     metadata.PageSize,
		TotalRecords: metadata.TotalRecords,
	}
}

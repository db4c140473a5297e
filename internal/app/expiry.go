package app

import (
	"context"
	"time"
)

// runExpirySweeper periodically flips overdue pending bookings to expired and
// frees their seats. Reads already treat overdue rows as expired; the sweep
// keeps the stored rows honest and runs until the context is cancelled.
func (app *Application) runExpirySweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.Booking.SweepInterval)
	defer ticker.Stop()

	app.logger.Info("starting expiry sweeper", "interval", app.config.Booking.SweepInterval.String())

	for {
		select {
		case <-ctx.Done():
			app.logger.Info("stopping expiry sweeper")
			return
		case <-ticker.C:
			app.sweepExpiredBookings(ctx)
		}
	}
}

func (app *Application) sweepExpiredBookings(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	expired, err := app.bookingRepo.ExpireDue(sweepCtx, time.Now())
	if err != nil {
		app.logger.Error("expiry sweep failed", "error", err.Error())
		return
	}

	if len(expired) > 0 {
		app.logger.Info("expired overdue bookings", "count", len(expired), "booking_ids", expired)
	}
}

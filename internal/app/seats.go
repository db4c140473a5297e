package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cinetix/booking-engine/api"
	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Redis Lua script to clean up expired seat locks and return currently valid locked seat IDs.
var filterValidLockSeats = redis.NewScript(`
	local setKey = KEYS[1]
	local showtimeId = ARGV[1]
	local cursor = "0"
	local batchSize = 100
	local expiredSeats = {}
	local validSeats = {}

	repeat
		local result = redis.call("SSCAN", setKey, cursor, "COUNT", batchSize)
		cursor = result[1]
		local seatIds = result[2]

		for _, seatId in ipairs(seatIds) do
			local lockKey = "seat_lock:" .. showtimeId .. ":" .. seatId
			if redis.call("EXISTS", lockKey) == 0 then
				table.insert(expiredSeats, seatId)
			else
				table.insert(validSeats, seatId)
			end
		end
	until cursor == "0"

	if #expiredSeats > 0 then
		redis.call("SREM", setKey, unpack(expiredSeats))
	end

	return validSeats
`)

func (app *Application) GetSeatMapByShowtime(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showtimeID, err := app.readIDParam(r, "showtimeID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	seatMap, err := app.seatRepo.GetSeatMapByShowtime(r.Context(), showtimeID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			logger.Warn("seat map requested for unknown showtime", "showtime_id", showtimeID)
			app.notFoundResponse(w, r)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.updateSeatAvailability(r.Context(), showtimeID, seatMap)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := toSeatMapResponse(seatMap)

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateSeatAvailability merges the two sources of unavailability: live seat
// locks in Redis and seats claimed by active bookings in the database.
func (app *Application) updateSeatAvailability(ctx context.Context, showtimeID int64, seatMap *domain.SeatMap) error {
	cmd := filterValidLockSeats.Run(ctx, app.redis, []string{seatSetKey(showtimeID)}, showtimeID)
	lockedSeatIds, err := cmd.Int64Slice()
	if err != nil {
		return fmt.Errorf("failed to run filterValidLockSeats script: %w", err)
	}

	bookedSeatIds, err := app.bookingRepo.GetActiveSeatsByShowtimeId(ctx, showtimeID)
	if err != nil {
		return fmt.Errorf("failed to get booked seats from DB: %w", err)
	}

	unavailableSeats := make(map[int64]bool)

	for _, seatId := range lockedSeatIds {
		unavailableSeats[seatId] = true
	}

	for _, seatId := range bookedSeatIds {
		unavailableSeats[seatId] = true
	}

	for i := range seatMap.Seats {
		if unavailableSeats[seatMap.Seats[i].ID] {
			seatMap.Seats[i].Available = false
		}
	}

	return nil
}

func toSeatMapResponse(seatMap *domain.SeatMap) api.SeatMapResponse {
	return api.SeatMapResponse{
		ShowtimeId:  seatMap.ShowtimeID,
		MovieTitle:  seatMap.MovieTitle,
		TheaterId:   seatMap.TheaterID,
		TheaterName: seatMap.TheaterName,
		ScreenName:  seatMap.ScreenName,
		StartsAt:    seatMap.StartsAt,
		SeatRows:    toSeatRows(seatMap),
	}
}

func toSeatRows(seatMap *domain.SeatMap) []api.SeatRow {
	// Seats are pre-sorted by (row, number), so a single pass groups them.

	seatRows := make([]api.SeatRow, 0)

	for _, v := range seatMap.Seats {
		if len(seatRows) == 0 || seatRows[len(seatRows)-1].Row != v.Row {
			seatRows = append(seatRows, api.SeatRow{Row: v.Row})
		}

		current := &seatRows[len(seatRows)-1]
		current.Seats = append(current.Seats, api.Seat{
			Id:        v.ID,
			Row:       v.Row,
			Number:    v.Number,
			Category:  string(v.Category),
			Price:     v.Price(seatMap.PriceMultiplier),
			Available: v.Available,
		})
	}

	return seatRows
}

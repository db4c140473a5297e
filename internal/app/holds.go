package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cinetix/booking-engine/api"
	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// Redis Lua script that claims every requested seat or none of them. KEYS are
// the per-seat lock keys; ARGV[1] is the hold id, ARGV[2] the TTL in seconds,
// ARGV[3..] the seat ids aligned with KEYS. Returns the seat ids already
// locked by someone else; an empty reply means all locks were taken.
var lockSeatsScript = redis.NewScript(`
	local holdId = ARGV[1]
	local ttl = tonumber(ARGV[2])
	local conflicts = {}

	for i, key in ipairs(KEYS) do
		local owner = redis.call("GET", key)
		if owner and owner ~= holdId then
			table.insert(conflicts, ARGV[i + 2])
		end
	end

	if #conflicts > 0 then
		return conflicts
	end

	for _, key in ipairs(KEYS) do
		redis.call("SET", key, holdId, "EX", ttl)
	end

	return conflicts
`)

// Redis Lua script that tears down a hold. Lock keys are deleted only when
// still owned by the hold, so a lock re-acquired by a newer hold survives.
// KEYS[1] is the hold key, KEYS[2] the showtime seat set, KEYS[3] the session
// index, KEYS[4..] the lock keys; ARGV[1] is the hold id, ARGV[2..] the seat
// ids aligned with the lock keys.
var releaseHoldScript = redis.NewScript(`
	local holdId = ARGV[1]
	local released = {}

	for i = 4, #KEYS do
		local owner = redis.call("GET", KEYS[i])
		if owner == holdId then
			redis.call("DEL", KEYS[i])
			table.insert(released, ARGV[i - 2])
		end
	end

	if #released > 0 then
		redis.call("SREM", KEYS[2], unpack(released))
	end

	redis.call("DEL", KEYS[1])

	if redis.call("GET", KEYS[3]) == holdId then
		redis.call("DEL", KEYS[3])
	end

	return #released
`)

func seatLockKey(showtimeID, seatID int64) string {
	return fmt.Sprintf("seat_lock:%d:%d", showtimeID, seatID)
}

func seatSetKey(showtimeID int64) string {
	return fmt.Sprintf("seat_locks:%d", showtimeID)
}

func holdKey(holdID string) string {
	return fmt.Sprintf("hold:%s", holdID)
}

func holdSessionKey(sessionToken string) string {
	return fmt.Sprintf("hold_session:%s", sessionToken)
}

func (app *Application) CreateHoldHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showtimeID, err := app.readIDParam(r, "showtimeID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input api.CreateHoldRequest

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

	holderID := app.sessionManager.Token(r.Context())

	activeHoldID, err := app.activeHoldForSession(r.Context(), holderID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}
	if activeHoldID != "" {
		app.errorResponse(w, r, http.StatusConflict, "An active hold already exists for this session. Release it before creating a new one.")
		return
	}

	seatMap, err := app.seatRepo.GetSeatsByShowtimeAndSeatIds(r.Context(), showtimeID, input.SeatIdList)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.notFoundResponse(w, r)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	if len(seatMap.Seats) != len(input.SeatIdList) {
		app.notFoundResponseWithErr(w, r, errors.New("one or more requested seats do not exist for this showtime"))
		return
	}

	if !time.Now().Before(seatMap.StartsAt) {
		app.errorResponse(w, r, http.StatusConflict, "The showtime has already started")
		return
	}

	bookedSeatIds, err := app.bookingRepo.GetActiveSeatsByShowtimeId(r.Context(), showtimeID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if conflicts := intersectSeatIds(input.SeatIdList, bookedSeatIds); len(conflicts) > 0 {
		app.seatConflictResponse(w, r, "Some of the selected seats are already booked", conflicts)
		return
	}

	hold := domain.NewHold(showtimeID, holderID, seatMap, app.config.Booking.HoldTTL)

	conflicts, err := app.tryLockSeats(r.Context(), hold)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if len(conflicts) > 0 {
		app.seatConflictResponse(w, r, "Some of the selected seats are held by another customer", conflicts)
		return
	}

	err = app.storeHold(r.Context(), hold)
	if err != nil {
		app.rollbackSeatLocks(r.Context(), hold)
		app.serverErrorResponse(w, r, err)
		return
	}

	logger.Info("created seat hold",
		"hold_id", hold.ID,
		"showtime_id", showtimeID,
		"seat_count", len(hold.Seats),
	)

	resp := toHoldResponse(hold, app.config.Booking.HoldTTL)

	err = app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) ReleaseHoldHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	holdID := chi.URLParam(r, "holdID")

	err := app.validator.Var(holdID, "required,uuid4")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid holdID parameter"))
		return
	}

	hold, err := app.getHold(r.Context(), holdID)
	if err != nil {
		if errors.Is(err, domain.ErrHoldExpired) {
			// Releasing a hold that is already gone is a no-op.
			w.WriteHeader(http.StatusNoContent)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	if hold.HolderID != app.sessionManager.Token(r.Context()) {
		app.notFoundResponse(w, r)
		return
	}

	err = app.releaseHold(r.Context(), *hold)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	logger.Info("released seat hold", "hold_id", holdID, "showtime_id", hold.ShowtimeID)

	w.WriteHeader(http.StatusNoContent)
}

// activeHoldForSession returns the id of the session's live hold, or "" when
// none exists. A dangling session index pointing at an expired hold is
// treated as no hold.
func (app *Application) activeHoldForSession(ctx context.Context, sessionToken string) (string, error) {
	holdID, err := app.redis.Get(ctx, holdSessionKey(sessionToken)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up session hold: %w", err)
	}

	exists, err := app.redis.Exists(ctx, holdKey(holdID)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to check hold existence: %w", err)
	}
	if exists == 0 {
		return "", nil
	}

	return holdID, nil
}

func (app *Application) tryLockSeats(ctx context.Context, hold domain.Hold) ([]int64, error) {
	seatIDs := hold.SeatIDs()

	keys := make([]string, len(seatIDs))
	args := make([]any, 0, len(seatIDs)+2)
	args = append(args, hold.ID, int(app.config.Booking.HoldTTL.Seconds()))

	for i, seatID := range seatIDs {
		keys[i] = seatLockKey(hold.ShowtimeID, seatID)
		args = append(args, seatID)
	}

	cmd := lockSeatsScript.Run(ctx, app.redis, keys, args...)
	conflicts, err := cmd.Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run lockSeats script: %w", err)
	}

	return conflicts, nil
}

// storeHold writes the hold body, the showtime seat index and the per-session
// index in one pipeline. All keys share the hold TTL.
func (app *Application) storeHold(ctx context.Context, hold domain.Hold) error {
	data, err := json.Marshal(hold)
	if err != nil {
		return fmt.Errorf("failed to marshal hold: %w", err)
	}

	seatIDs := hold.SeatIDs()
	members := make([]any, len(seatIDs))
	for i, seatID := range seatIDs {
		members[i] = seatID
	}

	ttl := app.config.Booking.HoldTTL

	pipe := app.redis.TxPipeline()
	pipe.SAdd(ctx, seatSetKey(hold.ShowtimeID), members...)
	pipe.Set(ctx, holdKey(hold.ID), data, ttl)
	pipe.Set(ctx, holdSessionKey(hold.HolderID), hold.ID, ttl)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store hold: %w", err)
	}

	return nil
}

// getHold loads a hold by id. A missing key means the hold expired or never
// existed; both map to ErrHoldExpired.
func (app *Application) getHold(ctx context.Context, holdID string) (*domain.Hold, error) {
	data, err := app.redis.Get(ctx, holdKey(holdID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrHoldExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hold: %w", err)
	}

	var hold domain.Hold
	err = json.Unmarshal(data, &hold)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal hold: %w", err)
	}

	hold.ID = holdID

	return &hold, nil
}

func (app *Application) releaseHold(ctx context.Context, hold domain.Hold) error {
	seatIDs := hold.SeatIDs()

	keys := make([]string, 0, len(seatIDs)+3)
	keys = append(keys, holdKey(hold.ID), seatSetKey(hold.ShowtimeID), holdSessionKey(hold.HolderID))

	args := make([]any, 0, len(seatIDs)+1)
	args = append(args, hold.ID)

	for _, seatID := range seatIDs {
		keys = append(keys, seatLockKey(hold.ShowtimeID, seatID))
		args = append(args, seatID)
	}

	err := releaseHoldScript.Run(ctx, app.redis, keys, args...).Err()
	if err != nil {
		return fmt.Errorf("failed to run releaseHold script: %w", err)
	}

	return nil
}

// rollbackSeatLocks undoes a successful lock when the follow-up hold write
// fails. Best effort, the TTL reclaims anything left behind.
func (app *Application) rollbackSeatLocks(ctx context.Context, hold domain.Hold) {
	err := app.releaseHold(ctx, hold)
	if err != nil {
		app.logger.Error("failed to roll back seat locks", "hold_id", hold.ID, "error", err.Error())
	}
}

// verifyHoldLocks checks that every seat lock is still owned by the hold.
// Guards against a hold body outliving its lock keys by a scheduling hiccup.
func (app *Application) verifyHoldLocks(ctx context.Context, hold domain.Hold) (bool, error) {
	keys := make([]string, len(hold.Seats))
	for i, seat := range hold.Seats {
		keys[i] = seatLockKey(hold.ShowtimeID, seat.SeatID)
	}

	owners, err := app.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("failed to verify hold locks: %w", err)
	}

	for _, owner := range owners {
		ownerStr, ok := owner.(string)
		if !ok || ownerStr != hold.ID {
			return false, nil
		}
	}

	return true, nil
}

func intersectSeatIds(requested, taken []int64) []int64 {
	takenSet := make(map[int64]bool, len(taken))
	for _, id := range taken {
		takenSet[id] = true
	}

	var conflicts []int64
	for _, id := range requested {
		if takenSet[id] {
			conflicts = append(conflicts, id)
		}
	}

	return conflicts
}

func toHoldResponse(hold domain.Hold, ttl time.Duration) api.HoldResponse {
	seats := make([]api.HeldSeat, len(hold.Seats))
	for i, seat := range hold.Seats {
		seats[i] = api.HeldSeat{
			Id:       seat.SeatID,
			Row:      seat.Row,
			Number:   seat.Number,
			Category: string(seat.Category),
			Price:    seat.Price,
		}
	}

	return api.HoldResponse{
		HoldId:     hold.ID,
		ShowtimeId: hold.ShowtimeID,
		Seats:      seats,
		Subtotal:   hold.Subtotal(),
		HoldTime:   int(ttl.Seconds()),
		ExpiresAt:  hold.ExpiresAt,
	}
}

package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cinetix/booking-engine/api"
	"github.com/cinetix/booking-engine/internal/domain"
	"github.com/cinetix/booking-engine/internal/mocks"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const testShowtimeID = int64(1)

var testSeatIDs = []int64{1, 2, 3}

func futureSeatMap() *domain.SeatMap {
	return &domain.SeatMap{
		ShowtimeID:      testShowtimeID,
		ScreenID:        2,
		ScreenName:      "Screen 2",
		TheaterID:       1,
		TheaterName:     "Grand Cinema",
		MovieTitle:      "Arrival",
		StartsAt:        time.Now().Add(3 * time.Hour),
		PriceMultiplier: decimal.NewFromInt(1),
		Seats: []domain.Seat{
			{ID: 1, Row: "A", Number: 1, Category: domain.SeatCategoryStandard, BasePrice: decimal.NewFromInt(10), Available: true},
			{ID: 2, Row: "A", Number: 2, Category: domain.SeatCategoryStandard, BasePrice: decimal.NewFromInt(10), Available: true},
			{ID: 3, Row: "A", Number: 3, Category: domain.SeatCategoryVIP, BasePrice: decimal.NewFromInt(18), Available: true},
		},
	}
}

type HoldsTestSuite struct {
	suite.Suite
	app           *Application
	seatRepo      *mocks.MockSeatRepo
	bookingRepo   *mocks.MockBookingRepo
	redisClient   *mocks.MockRedisClient
	redisPipeline *mocks.MockTxPipeline
}

func (s *HoldsTestSuite) SetupTest() {
	s.seatRepo = new(mocks.MockSeatRepo)
	s.bookingRepo = new(mocks.MockBookingRepo)
	s.redisClient = new(mocks.MockRedisClient)
	s.redisPipeline = new(mocks.MockTxPipeline)

	s.app = newTestApplication(func(a *Application) {
		a.seatRepo = s.seatRepo
		a.bookingRepo = s.bookingRepo
		a.redis = s.redisClient
	})
}

func TestHoldsSuite(t *testing.T) {
	suite.Run(t, new(HoldsTestSuite))
}

func (s *HoldsTestSuite) lockKeys() []string {
	keys := make([]string, len(testSeatIDs))
	for i, id := range testSeatIDs {
		keys[i] = seatLockKey(testShowtimeID, id)
	}
	return keys
}

func (s *HoldsTestSuite) expectNoActiveHold() {
	s.redisClient.On("Get", mock.Anything, holdSessionKey("")).
		Return(redis.NewStringResult("", redis.Nil))
}

func (s *HoldsTestSuite) TestCreateHoldHandler() {
	holdTTLSeconds := 300

	tests := []struct {
		name           string
		showtimeID     string
		input          api.CreateHoldRequest
		setupMocks     func()
		wantStatus     int
		wantErrMessage string
		wantConflicts  []int64
		wantResponse   *api.HoldResponse
	}{
		{
			name:           "should fail when showtime ID is zero or negative",
			showtimeID:     "0",
			wantStatus:     http.StatusBadRequest,
			wantErrMessage: "invalid showtimeID parameter",
		},
		{
			name:           "should fail when seat list is empty",
			showtimeID:     "1",
			input:          api.CreateHoldRequest{SeatIdList: []int64{}},
			wantStatus:     http.StatusUnprocessableEntity,
			wantErrMessage: "must contain at least 1 items",
		},
		{
			name:           "should fail when seat list exceeds the maximum",
			showtimeID:     "1",
			input:          api.CreateHoldRequest{SeatIdList: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}},
			wantStatus:     http.StatusUnprocessableEntity,
			wantErrMessage: "must contain at most 10 items",
		},
		{
			name:           "should fail when seat list contains duplicates",
			showtimeID:     "1",
			input:          api.CreateHoldRequest{SeatIdList: []int64{1, 1, 2}},
			wantStatus:     http.StatusUnprocessableEntity,
			wantErrMessage: "must not contain duplicates",
		},
		{
			name:       "should fail when session already has an active hold",
			showtimeID: "1",
			input:      api.CreateHoldRequest{SeatIdList: testSeatIDs},
			setupMocks: func() {
				s.redisClient.On("Get", mock.Anything, holdSessionKey("")).
					Return(redis.NewStringResult("existing-hold-id", nil))
				s.redisClient.On("Exists", mock.Anything, []string{holdKey("existing-hold-id")}).
					Return(redis.NewIntResult(1, nil))
			},
			wantStatus:     http.StatusConflict,
			wantErrMessage: "An active hold already exists for this session. Release it before creating a new one.",
		},
		{
			name:       "should fail when requested seats do not all exist",
			showtimeID: "1",
			input:      api.CreateHoldRequest{SeatIdList: testSeatIDs},
			setupMocks: func() {
				s.expectNoActiveHold()

				partial := futureSeatMap()
				partial.Seats = partial.Seats[:1]
				s.seatRepo.On("GetSeatsByShowtimeAndSeatIds", mock.Anything, testShowtimeID, testSeatIDs).
					Return(partial, nil)
			},
			wantStatus:     http.StatusNotFound,
			wantErrMessage: "one or more requested seats do not exist for this showtime",
		},
		{
			name:       "should fail when the showtime has already started",
			showtimeID: "1",
			input:      api.CreateHoldRequest{SeatIdList: testSeatIDs},
			setupMocks: func() {
				s.expectNoActiveHold()

				started := futureSeatMap()
				started.StartsAt = time.Now().Add(-time.Minute)
				s.seatRepo.On("GetSeatsByShowtimeAndSeatIds", mock.Anything, testShowtimeID, testSeatIDs).
					Return(started, nil)
			},
			wantStatus:     http.StatusConflict,
			wantErrMessage: "The showtime has already started",
		},
		{
			name:       "should report seats already taken by active bookings",
			showtimeID: "1",
			input:      api.CreateHoldRequest{SeatIdList: testSeatIDs},
			setupMocks: func() {
				s.expectNoActiveHold()
				s.seatRepo.On("GetSeatsByShowtimeAndSeatIds", mock.Anything, testShowtimeID, testSeatIDs).
					Return(futureSeatMap(), nil)
				s.bookingRepo.On("GetActiveSeatsByShowtimeId", mock.Anything, testShowtimeID).
					Return([]int64{2}, nil)
			},
			wantStatus:    http.StatusConflict,
			wantConflicts: []int64{2},
		},
		{
			name:       "should report seats locked by another customer",
			showtimeID: "1",
			input:      api.CreateHoldRequest{SeatIdList: testSeatIDs},
			setupMocks: func() {
				s.expectNoActiveHold()
				s.seatRepo.On("GetSeatsByShowtimeAndSeatIds", mock.Anything, testShowtimeID, testSeatIDs).
					Return(futureSeatMap(), nil)
				s.bookingRepo.On("GetActiveSeatsByShowtimeId", mock.Anything, testShowtimeID).
					Return([]int64{}, nil)
				s.redisClient.On("EvalSha", mock.Anything, mock.Anything, s.lockKeys(),
					mock.Anything, holdTTLSeconds, int64(1), int64(2), int64(3)).
					Return(redis.NewCmdResult([]interface{}{"3"}, nil))
			},
			wantStatus:    http.StatusConflict,
			wantConflicts: []int64{3},
		},
		{
			name:       "should roll back seat locks when the hold write fails",
			showtimeID: "1",
			input:      api.CreateHoldRequest{SeatIdList: testSeatIDs},
			setupMocks: func() {
				s.expectNoActiveHold()
				s.seatRepo.On("GetSeatsByShowtimeAndSeatIds", mock.Anything, testShowtimeID, testSeatIDs).
					Return(futureSeatMap(), nil)
				s.bookingRepo.On("GetActiveSeatsByShowtimeId", mock.Anything, testShowtimeID).
					Return([]int64{}, nil)
				s.redisClient.On("EvalSha", mock.Anything, mock.Anything, s.lockKeys(),
					mock.Anything, holdTTLSeconds, int64(1), int64(2), int64(3)).
					Return(redis.NewCmdResult([]interface{}{}, nil))

				s.redisClient.On("TxPipeline").Return(s.redisPipeline)
				s.redisPipeline.On("SAdd", mock.Anything, seatSetKey(testShowtimeID), mock.Anything).
					Return(redis.NewIntResult(3, nil))
				s.redisPipeline.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(redis.NewStatusResult("OK", nil))
				s.redisPipeline.On("Exec", mock.Anything).
					Return(nil, fmt.Errorf("redis pipeline execution failed"))

				// Rollback runs the release script.
				s.redisClient.On("EvalSha", mock.Anything, mock.Anything, mock.Anything,
					mock.Anything, int64(1), int64(2), int64(3)).
					Return(redis.NewCmdResult(int64(3), nil))
			},
			wantStatus:     http.StatusInternalServerError,
			wantErrMessage: ErrInternalServer,
		},
		{
			name:       "should create hold with valid input",
			showtimeID: "1",
			input:      api.CreateHoldRequest{SeatIdList: testSeatIDs},
			setupMocks: func() {
				s.expectNoActiveHold()
				s.seatRepo.On("GetSeatsByShowtimeAndSeatIds", mock.Anything, testShowtimeID, testSeatIDs).
					Return(futureSeatMap(), nil)
				s.bookingRepo.On("GetActiveSeatsByShowtimeId", mock.Anything, testShowtimeID).
					Return([]int64{}, nil)
				s.redisClient.On("EvalSha", mock.Anything, mock.Anything, s.lockKeys(),
					mock.Anything, holdTTLSeconds, int64(1), int64(2), int64(3)).
					Return(redis.NewCmdResult([]interface{}{}, nil))

				s.redisClient.On("TxPipeline").Return(s.redisPipeline)
				s.redisPipeline.On("SAdd", mock.Anything, seatSetKey(testShowtimeID), mock.Anything).
					Return(redis.NewIntResult(3, nil))
				s.redisPipeline.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
					Return(redis.NewStatusResult("OK", nil))
				s.redisPipeline.On("Exec", mock.Anything).Return([]redis.Cmder{}, nil)
			},
			wantStatus: http.StatusCreated,
			wantResponse: &api.HoldResponse{
				ShowtimeId: testShowtimeID,
				Seats: []api.HeldSeat{
					{Id: 1, Row: "A", Number: 1, Category: "standard", Price: decimal.NewFromInt(10)},
					{Id: 2, Row: "A", Number: 2, Category: "standard", Price: decimal.NewFromInt(10)},
					{Id: 3, Row: "A", Number: 3, Category: "vip", Price: decimal.NewFromInt(18)},
				},
				Subtotal: decimal.NewFromInt(38),
				HoldTime: holdTTLSeconds,
			},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()

			defer s.seatRepo.AssertExpectations(s.T())
			defer s.bookingRepo.AssertExpectations(s.T())
			defer s.redisClient.AssertExpectations(s.T())
			defer s.redisPipeline.AssertExpectations(s.T())

			if tt.setupMocks != nil {
				tt.setupMocks()
			}

			w, r := executeRequest(s.T(), http.MethodPost, fmt.Sprintf("/showtimes/%s/holds", tt.showtimeID), tt.input)
			r = withURLParams(r, map[string]string{"showtimeID": tt.showtimeID})

			withSession(s.app, s.app.CreateHoldHandler).ServeHTTP(w, r)

			s.Equal(tt.wantStatus, w.Code)

			if tt.wantConflicts != nil {
				var conflictResp api.SeatConflictResponse
				err := json.NewDecoder(w.Body).Decode(&conflictResp)
				s.Require().NoError(err, "Failed to decode conflict response")
				s.Equal(tt.wantConflicts, conflictResp.ConflictingSeatIds)
				return
			}

			if tt.wantResponse != nil {
				var response api.HoldResponse
				err := json.NewDecoder(w.Body).Decode(&response)
				s.Require().NoError(err, "Failed to decode response")

				cmpOpts := cmpopts.IgnoreFields(api.HoldResponse{}, "HoldId", "ExpiresAt")
				diff := cmp.Diff(tt.wantResponse, &response, cmpOpts)
				s.Empty(diff, "Response mismatch (-want +got):\n%s", diff)
			}

			checkErrorResponse(s.T(), w, struct {
				wantStatus     int
				wantErrMessage string
			}{
				wantStatus:     tt.wantStatus,
				wantErrMessage: tt.wantErrMessage,
			})
		})
	}
}

func (s *HoldsTestSuite) TestReleaseHoldHandler() {
	holdID := "a3bb189e-8bf9-4c8b-9f6e-2f5c1b1a9d01"

	ownedHold := func(holderID string) string {
		hold := domain.Hold{
			ShowtimeID: testShowtimeID,
			HolderID:   holderID,
			Seats: []domain.HeldSeat{
				{SeatID: 1, Row: "A", Number: 1, Category: domain.SeatCategoryStandard, Price: decimal.NewFromInt(10)},
			},
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(5 * time.Minute),
		}

		data, err := json.Marshal(hold)
		s.Require().NoError(err)

		return string(data)
	}

	tests := []struct {
		name           string
		holdID         string
		setupMocks     func()
		wantStatus     int
		wantErrMessage string
	}{
		{
			name:           "should fail when hold ID is not a UUID",
			holdID:         "not-a-uuid",
			wantStatus:     http.StatusBadRequest,
			wantErrMessage: "invalid holdID parameter",
		},
		{
			name:   "should acknowledge a release when the hold is already gone",
			holdID: holdID,
			setupMocks: func() {
				s.redisClient.On("Get", mock.Anything, holdKey(holdID)).
					Return(redis.NewStringResult("", redis.Nil))
			},
			wantStatus: http.StatusNoContent,
		},
		{
			name:   "should fail when hold belongs to another session",
			holdID: holdID,
			setupMocks: func() {
				s.redisClient.On("Get", mock.Anything, holdKey(holdID)).
					Return(redis.NewStringResult(ownedHold("other-session-token"), nil))
			},
			wantStatus:     http.StatusNotFound,
			wantErrMessage: ErrNotFound,
		},
		{
			name:   "should release an owned hold",
			holdID: holdID,
			setupMocks: func() {
				s.redisClient.On("Get", mock.Anything, holdKey(holdID)).
					Return(redis.NewStringResult(ownedHold(""), nil))
				s.redisClient.On("EvalSha", mock.Anything, mock.Anything, mock.Anything,
					holdID, int64(1)).
					Return(redis.NewCmdResult(int64(1), nil))
			},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()

			defer s.redisClient.AssertExpectations(s.T())

			if tt.setupMocks != nil {
				tt.setupMocks()
			}

			w, r := executeRequest(s.T(), http.MethodDelete, fmt.Sprintf("/holds/%s", tt.holdID), nil)
			r = withURLParams(r, map[string]string{"holdID": tt.holdID})

			withSession(s.app, s.app.ReleaseHoldHandler).ServeHTTP(w, r)

			s.Equal(tt.wantStatus, w.Code)

			checkErrorResponse(s.T(), w, struct {
				wantStatus     int
				wantErrMessage string
			}{
				wantStatus:     tt.wantStatus,
				wantErrMessage: tt.wantErrMessage,
			})
		})
	}
}

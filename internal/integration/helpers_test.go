package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var keysToIgnore = map[string]struct{}{
	"timestamp": {},
	"requestId": {},
	"createdAt": {},
}

func prepareRequest(method, path string, body io.Reader, headers map[string]string, cookies []http.Cookie) (*http.Request, error) {
	req := httptest.NewRequest(method, path, body)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	for _, c := range cookies {
		req.AddCookie(&c)
	}

	return req, nil
}

func compareResponse(t *testing.T, body io.Reader, expectedResponse string) {
	var actual map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&actual))

	cleanMap(actual)

	var expected map[string]any
	require.NoError(t, json.Unmarshal([]byte(expectedResponse), &expected))

	opts := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		_, ok := keysToIgnore[k]
		return ok
	})

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func cleanMap(m map[string]any) {
	for k := range m {
		if _, ok := keysToIgnore[k]; ok {
			delete(m, k)
			continue
		}
		if nested, ok := m[k].(map[string]any); ok {
			cleanMap(nested)
		}
	}
}

// authenticatedUserCookies commits a session carrying the given user id and
// returns the cookie that selects it. Authentication itself lives in an
// upstream identity service, so tests plant the session directly.
func (app *TestApp) authenticatedUserCookies(t testing.TB, userID int64) []http.Cookie {
	ctx, err := app.Sessions.Load(context.Background(), "")
	require.NoError(t, err)

	app.Sessions.Put(ctx, "userID", userID)

	token, _, err := app.Sessions.Commit(ctx)
	require.NoError(t, err)

	return []http.Cookie{{Name: "session_id", Value: token}}
}

// seedCinemaFixtures resets all state and inserts one theater with a
// four-seat screen and a showtime two hours out. IDs are fixed so tests can
// reference them directly.
func seedCinemaFixtures(t testing.TB, app *TestApp) {
	truncateAll(t, app)

	ctx := context.Background()

	_, err := app.DB.Exec(ctx, `
		INSERT INTO theaters (id, name, address, city, latitude, longitude)
		VALUES
			(1, 'Grand Cinema', '1 Main St', 'Springfield', 40.0, 29.0),
			(2, 'Riverside Movies', '2 River Rd', 'Springfield', 41.0, 29.0),
			(3, 'No Map Hall', '3 Side St', 'Shelbyville', NULL, NULL)
	`)
	require.NoError(t, err)

	_, err = app.DB.Exec(ctx, `
		INSERT INTO screens (id, theater_id, name) VALUES (1, 1, 'Screen 1')
	`)
	require.NoError(t, err)

	_, err = app.DB.Exec(ctx, `
		INSERT INTO seats (id, screen_id, seat_row, seat_number, category, base_price)
		VALUES
			(1, 1, 'A', 1, 'standard', 10.00),
			(2, 1, 'A', 2, 'standard', 10.00),
			(3, 1, 'B', 1, 'vip', 18.00),
			(4, 1, 'B', 2, 'vip', 18.00)
	`)
	require.NoError(t, err)

	_, err = app.DB.Exec(ctx, `
		INSERT INTO showtimes (id, screen_id, movie_title, starts_at, price_multiplier)
		VALUES (1, 1, 'Arrival', $1, 1.00)
	`, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
}

func truncateAll(t testing.TB, app *TestApp) {
	ctx := context.Background()

	_, err := app.DB.Exec(ctx, `
		TRUNCATE refunds, payments, booking_seats, bookings, showtimes, seats, screens, theaters
		RESTART IDENTITY CASCADE
	`)
	require.NoError(t, err)

	require.NoError(t, app.RedisClient.FlushDB(ctx).Err())
}

// forceBookingExpiry backdates a pending booking so reads and the sweeper
// treat it as overdue.
func forceBookingExpiry(t testing.TB, app *TestApp, bookingID int64) {
	_, err := app.DB.Exec(context.Background(),
		`UPDATE bookings SET expires_at = NOW() - INTERVAL '1 minute' WHERE id = $1`, bookingID)
	require.NoError(t, err)
}

func decodeBody[T any](t testing.TB, body io.Reader) T {
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

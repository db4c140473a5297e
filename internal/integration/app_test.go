package integration_test

import (
	"io"
	"log/slog"

	"github.com/alexedwards/scs/v2"
	"github.com/cinetix/booking-engine/internal/app"
	"github.com/cinetix/booking-engine/internal/mailer"
	"github.com/cinetix/booking-engine/internal/payment"
	"github.com/cinetix/booking-engine/internal/repository"
	appvalidator "github.com/cinetix/booking-engine/internal/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type TestApp struct {
	App         *app.Application
	DB          *pgxpool.Pool
	RedisClient *redis.Client
	Sessions    *scs.SessionManager
	Mailer      *mailer.MockMailer
	Provider    *payment.Simulator
}

func newTestApp(cfg app.Config) (*TestApp, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	validator := appvalidator.NewValidator()
	mockMailer := &mailer.MockMailer{}

	db, err := app.NewDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := app.NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	sessionManager := app.NewSessionManager(redisClient)

	provider := payment.NewSimulator()

	application := app.NewApp(
		cfg,
		logger,
		db,
		redisClient,
		validator,
		mockMailer,
		sessionManager,
		repository.NewPostgresSeatRepository(db),
		repository.NewPostgresBookingRepository(db),
		repository.NewPostgresTheaterRepository(db),
		provider,
	)

	return &TestApp{
		App:         application,
		DB:          db,
		RedisClient: redisClient,
		Sessions:    sessionManager,
		Mailer:      mockMailer,
		Provider:    provider,
	}, nil
}

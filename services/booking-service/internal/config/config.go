// Package config loads booking-service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	envcfg "github.com/timfee/scheduler/libs/config"
	"github.com/timfee/scheduler/services/booking-service/internal/availability"
	"github.com/timfee/scheduler/services/booking-service/internal/booking"
	"github.com/timfee/scheduler/services/booking-service/internal/interval"
	"github.com/timfee/scheduler/services/booking-service/internal/ratelimit"
	"github.com/timfee/scheduler/services/booking-service/internal/scheduling"
)

type Config struct {
	ServiceName string
	HTTPPort    string
	GRPCPort    string
	LogLevel    string

	// DatabaseURL selects the Postgres calendar; empty runs in memory.
	DatabaseURL      string
	DBAutoMigrate    bool
	AppointmentTypes string

	BusinessHours availability.BusinessHours
	BusinessDays  []string

	BookingCooldown time.Duration
	LockWaitTimeout time.Duration
	ProviderTimeout time.Duration
	MeetingLocation string

	KafkaBrokers string

	RedisAddr         string
	RedisPassword     string
	IPRateLimit       int
	IPRateWindow      time.Duration
	RateLimitFailOpen bool

	OperatorJWTSecret string
	CORSOrigins       []string
	BodyLimitBytes    int
	RequestTimeout    time.Duration
}

// Load reads the environment, after merging an optional .env file, and
// validates the result. All problems are reported together.
func Load() (Config, error) {
	if err := envcfg.LoadDotEnv(); err != nil {
		return Config{}, err
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		ServiceName:      envcfg.String("SERVICE_NAME", "booking-service"),
		LogLevel:         envcfg.String("LOG_LEVEL", "info"),
		DatabaseURL:      envcfg.String("DATABASE_URL", ""),
		AppointmentTypes: envcfg.String("APPOINTMENT_TYPES", "intro:Intro call:30,consult:Consultation:60"),
		BusinessHours: availability.BusinessHours{
			Start:    envcfg.String("BUSINESS_HOURS_START", "09:00"),
			End:      envcfg.String("BUSINESS_HOURS_END", "17:00"),
			TimeZone: envcfg.String("BUSINESS_TIMEZONE", interval.DefaultTimeZone),
		},
		BusinessDays:      envcfg.List("BUSINESS_DAYS", nil),
		MeetingLocation:   envcfg.String("MEETING_LOCATION", ""),
		KafkaBrokers:      envcfg.String("KAFKA_BROKERS", ""),
		RedisAddr:         envcfg.String("REDIS_ADDR", ""),
		RedisPassword:     envcfg.String("REDIS_PASSWORD", ""),
		OperatorJWTSecret: envcfg.String("OPERATOR_JWT_SECRET", ""),
		CORSOrigins:       envcfg.List("CORS_ALLOWED_ORIGINS", nil),
	}

	var err error
	cfg.HTTPPort, err = envcfg.Port("PORT", "8083")
	collect(err)
	cfg.GRPCPort, err = envcfg.Port("GRPC_PORT", "9083")
	collect(err)
	cfg.DBAutoMigrate, err = envcfg.Bool("DB_AUTO_MIGRATE", true)
	collect(err)
	cfg.BookingCooldown, err = envcfg.Duration("BOOKING_COOLDOWN", ratelimit.DefaultCooldown)
	collect(err)
	cfg.LockWaitTimeout, err = envcfg.Duration("BOOKING_LOCK_WAIT_TIMEOUT", booking.DefaultLockWaitTimeout)
	collect(err)
	cfg.ProviderTimeout, err = envcfg.Duration("BOOKING_PROVIDER_TIMEOUT", booking.DefaultProviderTimeout)
	collect(err)
	cfg.IPRateLimit, err = envcfg.Int("IP_RATE_LIMIT", 30)
	collect(err)
	cfg.IPRateWindow, err = envcfg.Duration("IP_RATE_WINDOW", time.Minute)
	collect(err)
	cfg.RateLimitFailOpen, err = envcfg.Bool("RATE_LIMIT_FAIL_OPEN", true)
	collect(err)
	cfg.BodyLimitBytes, err = envcfg.Int("HTTP_BODY_LIMIT_BYTES", 64<<10)
	collect(err)
	cfg.RequestTimeout, err = envcfg.Duration("HTTP_REQUEST_TIMEOUT", time.Minute)
	collect(err)

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := scheduling.ParseDays(c.BusinessDays); err != nil {
		errs = append(errs, fmt.Errorf("BUSINESS_DAYS: %w", err))
	}
	if _, err := scheduling.NewWeekly(c.BusinessHours, nil); err != nil {
		errs = append(errs, fmt.Errorf("business hours: %w", err))
	}
	if c.IPRateLimit <= 0 {
		errs = append(errs, errors.New("IP_RATE_LIMIT must be positive"))
	}
	if c.BodyLimitBytes <= 0 {
		errs = append(errs, errors.New("HTTP_BODY_LIMIT_BYTES must be positive"))
	}
	if c.RequestTimeout <= c.LockWaitTimeout+c.ProviderTimeout {
		errs = append(errs, fmt.Errorf("HTTP_REQUEST_TIMEOUT (%s) must exceed lock wait plus provider timeout (%s)",
			c.RequestTimeout, c.LockWaitTimeout+c.ProviderTimeout))
	}
	if c.OperatorJWTSecret != "" && len(c.OperatorJWTSecret) < 32 {
		errs = append(errs, errors.New("OPERATOR_JWT_SECRET must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}

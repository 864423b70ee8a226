// Package booking serializes booking attempts per slot so that concurrent
// requests for the same window produce at most one appointment.
package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/timfee/scheduler/services/booking-service/internal/apptypes"
	"github.com/timfee/scheduler/services/booking-service/internal/availability"
	"github.com/timfee/scheduler/services/booking-service/internal/calendar"
	"github.com/timfee/scheduler/services/booking-service/internal/interval"
	"github.com/timfee/scheduler/services/booking-service/internal/ratelimit"
	"github.com/timfee/scheduler/services/booking-service/internal/scheduling"
)

const (
	DefaultLockWaitTimeout = 30 * time.Second
	DefaultProviderTimeout = 15 * time.Second

	publishTimeout = 5 * time.Second
)

// Publisher is notified after an appointment has been created.
type Publisher interface {
	PublishBooked(ctx context.Context, b calendar.ConfirmedBooking) error
}

type Config struct {
	// LockWaitTimeout bounds how long an attempt waits for another attempt
	// holding the same slot.
	LockWaitTimeout time.Duration
	// ProviderTimeout bounds the calendar calls made while holding a slot.
	ProviderTimeout time.Duration
	// Location is copied onto every created appointment.
	Location string
}

type Deps struct {
	Calendar  calendar.Provider
	Types     apptypes.Lookup
	Hours     scheduling.Provider
	Limiter   *ratelimit.Cooldown
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

type Controller struct {
	calendar  calendar.Provider
	types     apptypes.Lookup
	hours     scheduling.Provider
	limiter   *ratelimit.Cooldown
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time

	cfg      Config
	validate *validator.Validate
	inflight *registry
	tracer   trace.Tracer
}

func NewController(deps Deps, cfg Config) *Controller {
	if cfg.LockWaitTimeout <= 0 {
		cfg.LockWaitTimeout = DefaultLockWaitTimeout
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	c := &Controller{
		calendar:  deps.Calendar,
		types:     deps.Types,
		hours:     deps.Hours,
		limiter:   deps.Limiter,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		now:       deps.Now,
		cfg:       cfg,
		validate:  newValidator(),
		inflight:  newRegistry(),
		tracer:    otel.Tracer("github.com/timfee/scheduler/booking"),
	}
	if c.limiter == nil {
		c.limiter = ratelimit.NewCooldown(ratelimit.DefaultCooldown)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// resolved is a request after validation, pinned to one UTC window.
type resolved struct {
	apptType apptypes.AppointmentType
	hours    availability.BusinessHours
	slot     interval.Interval
	key      SlotKey
}

// AttemptBooking books req if its slot is still free. Failures are always
// *Error; the slot lock is released before it returns in every case.
func (c *Controller) AttemptBooking(ctx context.Context, req Request) (calendar.ConfirmedBooking, error) {
	ctx, span := c.tracer.Start(ctx, "booking.attempt",
		trace.WithAttributes(attribute.String("booking.appointment_type_id", req.AppointmentTypeID)))
	defer span.End()

	booking, err := c.attempt(ctx, req)
	if err != nil {
		kind := KindOf(err)
		span.SetAttributes(attribute.String("booking.error_kind", string(kind)))
		span.SetStatus(codes.Error, string(kind))
		if kind == KindProviderFailure || kind == KindLockTimeout {
			c.logger.Warn("booking attempt failed", "kind", kind, "err", err)
		}
		return calendar.ConfirmedBooking{}, err
	}
	span.SetAttributes(attribute.String("booking.id", booking.ID))
	return booking, nil
}

func (c *Controller) attempt(ctx context.Context, req Request) (calendar.ConfirmedBooking, error) {
	res, err := c.resolve(ctx, req)
	if err != nil {
		return calendar.ConfirmedBooking{}, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("booking.slot_key", string(res.key)))

	// Recorded before any lock so failed attempts still count.
	if !c.limiter.CheckAndRecord(req.Email) {
		return calendar.ConfirmedBooking{}, rateLimitedError()
	}

	booking, err := c.book(ctx, req, res)
	if err != nil {
		return calendar.ConfirmedBooking{}, err
	}

	c.logger.Info("booking confirmed",
		"booking_id", booking.ID,
		"slot_key", string(res.key),
		"appointment_type_id", res.apptType.ID,
	)
	c.publish(ctx, booking)
	return booking, nil
}

func (c *Controller) resolve(ctx context.Context, req Request) (resolved, error) {
	if err := c.validate.Struct(req); err != nil {
		return resolved{}, validationError(formatValidation(err), err)
	}

	at, ok, err := c.types.Get(ctx, req.AppointmentTypeID)
	if err != nil {
		return resolved{}, providerFailure(fmt.Errorf("appointment type lookup: %w", err))
	}
	if !ok {
		return resolved{}, validationError("unknown appointment type", nil)
	}
	if at.DurationMinutes <= 0 {
		return resolved{}, validationError("appointment type has an invalid duration", availability.ErrInvalidDuration)
	}

	hours, working, err := c.hours.HoursFor(ctx, req.Date)
	if err != nil {
		if errors.Is(err, interval.ErrInvalidDate) {
			return resolved{}, validationError("date has an invalid format", err)
		}
		return resolved{}, providerFailure(fmt.Errorf("business hours lookup: %w", err))
	}
	if !working {
		return resolved{}, validationError("no bookings are taken on this date", nil)
	}

	window, loc, err := availability.BusinessWindow(req.Date, hours)
	if err != nil {
		return resolved{}, providerFailure(fmt.Errorf("business window: %w", err))
	}
	start, err := interval.LocalWallClockToUTC(req.Date, req.Time, loc)
	if err != nil {
		return resolved{}, validationError("time has an invalid format", err)
	}

	d := time.Duration(at.DurationMinutes) * time.Minute
	slot := interval.Interval{Start: start, End: start.Add(d)}
	if !availability.OnGrid(window, slot, d) {
		return resolved{}, validationError("requested time is not an offered slot", nil)
	}
	if slot.Start.Before(c.now()) {
		return resolved{}, validationError("requested time is in the past", nil)
	}

	return resolved{apptType: at, hours: hours, slot: slot, key: NewSlotKey(slot)}, nil
}

// book takes the slot lock, waiting behind any attempt already holding it.
// After each wait the provider is asked again whether the slot is still
// free; if it is, registration is retried and any waiter may win.
func (c *Controller) book(ctx context.Context, req Request, res resolved) (calendar.ConfirmedBooking, error) {
	timer := time.NewTimer(c.cfg.LockWaitTimeout)
	defer timer.Stop()

	for {
		release, wait := c.inflight.acquire(res.key, c.now())
		if release != nil {
			return c.createHolding(ctx, release, req, res)
		}

		select {
		case <-wait:
		case <-timer.C:
			return calendar.ConfirmedBooking{}, lockTimeoutError(fmt.Errorf("slot %s held longer than %s", res.key, c.cfg.LockWaitTimeout))
		case <-ctx.Done():
			return calendar.ConfirmedBooking{}, lockTimeoutError(ctx.Err())
		}

		taken, err := c.recheck(ctx, res.slot)
		if err != nil {
			return calendar.ConfirmedBooking{}, err
		}
		if taken {
			return calendar.ConfirmedBooking{}, slotUnavailableError(nil)
		}
	}
}

func (c *Controller) recheck(ctx context.Context, slot interval.Interval) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProviderTimeout)
	defer cancel()
	return c.slotTaken(ctx, slot)
}

func (c *Controller) createHolding(ctx context.Context, release func(), req Request, res resolved) (calendar.ConfirmedBooking, error) {
	defer release()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProviderTimeout)
	defer cancel()

	taken, err := c.slotTaken(ctx, res.slot)
	if err != nil {
		return calendar.ConfirmedBooking{}, err
	}
	if taken {
		return calendar.ConfirmedBooking{}, slotUnavailableError(nil)
	}

	booking, err := c.calendar.CreateAppointment(ctx, calendar.AppointmentInput{
		AppointmentTypeID: res.apptType.ID,
		Title:             fmt.Sprintf("%s with %s", res.apptType.Name, req.Name),
		Description:       req.Notes,
		Location:          c.cfg.Location,
		RequesterName:     req.Name,
		RequesterEmail:    req.Email,
		StartUTC:          res.slot.Start,
		EndUTC:            res.slot.End,
		OwnerTimeZone:     res.hours.TimeZone,
	})
	if errors.Is(err, calendar.ErrSlotTaken) {
		return calendar.ConfirmedBooking{}, slotUnavailableError(err)
	}
	if err != nil {
		return calendar.ConfirmedBooking{}, providerFailure(fmt.Errorf("create appointment: %w", err))
	}
	return booking, nil
}

func (c *Controller) slotTaken(ctx context.Context, slot interval.Interval) (bool, error) {
	busy, err := c.calendar.ListBusyTimes(ctx, slot.Start, slot.End)
	if err != nil {
		return false, providerFailure(fmt.Errorf("list busy times: %w", err))
	}
	return interval.OverlapsAny(slot, busy), nil
}

func (c *Controller) publish(ctx context.Context, b calendar.ConfirmedBooking) {
	if c.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.publisher.PublishBooked(ctx, b); err != nil {
		c.logger.Warn("publish booking event failed", "booking_id", b.ID, "err", err)
	}
}

// InFlight lists the slots currently held by an attempt.
func (c *Controller) InFlight() []InFlightEntry {
	return c.inflight.snapshot()
}

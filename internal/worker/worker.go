// Package worker runs the background side of the service: it audits
// reservation events from Kafka, keeps the shared availability cache fresh
// and periodically reports lot occupancy.
package worker

import (
	"context"
	"time"

	"github.com/Domenick1991/parking/internal/clock"
	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/kafka"
	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Recorder interface {
	Record(ctx context.Context, event kafka.ReservationEvent) error
}

type Cache interface {
	InvalidateAvailability(ctx context.Context) error
}

type OccupancyReader interface {
	Occupancy(ctx context.Context, at time.Time) (domain.Occupancy, error)
}

// EventSource delivers events to handler until ctx ends.
type EventSource interface {
	Consume(ctx context.Context, handler func(context.Context, kafka.ReservationEvent) error) error
}

type Worker struct {
	recorder  Recorder
	cache     Cache
	occupancy OccupancyReader
	clock     clock.Clock
	log       *zap.Logger
}

// New builds a worker. cache may be nil when Redis is not configured.
func New(recorder Recorder, cache Cache, occupancy OccupancyReader, clk clock.Clock, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &Worker{recorder: recorder, cache: cache, occupancy: occupancy, clock: clk, log: log}
}

// HandleEvent audits one event and drops cached availability pages.
func (w *Worker) HandleEvent(ctx context.Context, event kafka.ReservationEvent) error {
	if err := w.recorder.Record(ctx, event); err != nil {
		return errors.Wrapf(err, "record event %s", event.ID)
	}
	if w.cache != nil {
		if err := w.cache.InvalidateAvailability(ctx); err != nil {
			w.log.Warn("availability cache invalidation failed",
				zap.Int64("reservation_id", event.ReservationID),
				zap.Error(err))
		}
	}
	return nil
}

// ReportOccupancy logs how many reservations are in progress right now.
func (w *Worker) ReportOccupancy(ctx context.Context) {
	at := w.clock.Now()
	occupancy, err := w.occupancy.Occupancy(ctx, at)
	if err != nil {
		w.log.Error("occupancy report failed", zap.Error(err))
		return
	}

	fields := []zap.Field{zap.Time("at", at)}
	for _, vt := range domain.VehicleTypes() {
		fields = append(fields, zap.Int(vt.String(), occupancy[vt]))
	}
	w.log.Info("occupancy report", fields...)
}

// Run consumes events from source (if any) and reports occupancy on the
// cron schedule until ctx is canceled or the consumer fails.
func (w *Worker) Run(ctx context.Context, source EventSource, schedule string) error {
	scheduler := cron.New(cron.WithChain(
		cron.Recover(cronLogger{w.log.Sugar()}),
		cron.SkipIfStillRunning(cronLogger{w.log.Sugar()}),
	))

	g, ctx := errgroup.WithContext(ctx)
	if _, err := scheduler.AddFunc(schedule, func() { w.ReportOccupancy(ctx) }); err != nil {
		return errors.Wrapf(err, "invalid occupancy schedule %q", schedule)
	}

	g.Go(func() error {
		scheduler.Start()
		<-ctx.Done()
		<-scheduler.Stop().Done()
		return nil
	})

	if source != nil {
		g.Go(func() error {
			return source.Consume(ctx, w.HandleEvent)
		})
	}

	return g.Wait()
}

// cronLogger routes scheduler messages into zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Package audit records reservation lifecycle events consumed by the worker.
package audit

import (
	"context"

	"github.com/Domenick1991/parking/internal/kafka"
	"go.uber.org/zap"
)

type Recorder struct {
	log *zap.Logger
}

func NewRecorder(log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{log: log.Named("audit")}
}

func (r *Recorder) Record(_ context.Context, event kafka.ReservationEvent) error {
	r.log.Info(event.Type,
		zap.Stringer("event_id", event.ID),
		zap.Int64("reservation_id", event.ReservationID),
		zap.Int64("slot_id", event.SlotID),
		zap.String("vehicle_number", event.VehicleNumber),
		zap.Time("start_time", event.StartTime),
		zap.Time("end_time", event.EndTime),
		zap.Int64("cost", event.Cost),
		zap.String("status", event.Status),
		zap.Time("occurred_at", event.OccurredAt),
	)
	return nil
}

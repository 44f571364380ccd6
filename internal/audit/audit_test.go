package audit

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/parking/internal/kafka"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecorder_Record(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	recorder := NewRecorder(zap.New(core))

	event := kafka.ReservationEvent{
		ID:            uuid.New(),
		Type:          kafka.EventReservationCancelled,
		ReservationID: 11,
		SlotID:        4,
		VehicleNumber: "KA05MH1234",
		Cost:          60,
		Status:        "CANCELLED",
		OccurredAt:    time.Now(),
	}
	require.NoError(t, recorder.Record(context.Background(), event))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "reservation.cancelled", entry.Message)
	assert.Equal(t, "audit", entry.LoggerName)

	fields := entry.ContextMap()
	assert.Equal(t, int64(11), fields["reservation_id"])
	assert.Equal(t, int64(4), fields["slot_id"])
	assert.Equal(t, "CANCELLED", fields["status"])
	assert.Equal(t, event.ID.String(), fields["event_id"])
}

package events

import (
	"fmt"

	"github.com/benmeehan/sensor-alert-engine/internal/constants"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// StatisticsObserver keeps aggregate counters; the query API reads them while
// the bus worker writes them.
type StatisticsObserver struct {
	byKind   cmap.ConcurrentMap[string, int64]
	byDevice cmap.ConcurrentMap[string, int64]
}

// EventStats is a point-in-time copy of the counters.
type EventStats struct {
	EventsByKind     map[string]int64 `json:"events_by_kind"`
	ReadingsByDevice map[string]int64 `json:"readings_by_device"`
}

// NewStatisticsObserver creates an empty StatisticsObserver.
func NewStatisticsObserver() *StatisticsObserver {
	return &StatisticsObserver{
		byKind:   cmap.New[int64](),
		byDevice: cmap.New[int64](),
	}
}

func (o *StatisticsObserver) Name() string {
	return "statistics"
}

func (o *StatisticsObserver) OnEvent(kind string, payload map[string]any) error {
	o.byKind.Upsert(kind, 1, increment)

	if kind != constants.EventNewReading {
		return nil
	}
	deviceID, ok := payload["device_id"]
	if !ok {
		return fmt.Errorf("reading event without device_id")
	}
	o.byDevice.Upsert(fmt.Sprint(deviceID), 1, increment)
	return nil
}

// Snapshot copies the current counters.
func (o *StatisticsObserver) Snapshot() EventStats {
	return EventStats{
		EventsByKind:     o.byKind.Items(),
		ReadingsByDevice: o.byDevice.Items(),
	}
}

func increment(exists bool, current int64, delta int64) int64 {
	if !exists {
		return delta
	}
	return current + delta
}

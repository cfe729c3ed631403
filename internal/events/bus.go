package events

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/benmeehan/sensor-alert-engine/internal/metrics"
	"github.com/benmeehan/sensor-alert-engine/internal/models"
	"github.com/rs/zerolog"
)

// Observer receives events from the bus.
type Observer interface {
	Name() string
	OnEvent(kind string, payload map[string]any) error
}

// Publisher is the producer side of the bus.
type Publisher interface {
	Publish(kind string, payload map[string]any)
}

// Bus fans events out to observers from a single delivery goroutine.
// Publish only appends to an unbounded queue, so producers never wait on observers.
type Bus struct {
	logger zerolog.Logger

	mu        sync.Mutex
	queue     []models.Event
	observers []Observer
	running   bool
	stopped   bool

	wake   chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewBus creates a bus. Events published before Start are delivered once it runs.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Subscribe appends an observer; delivery follows subscription order.
func (b *Bus) Subscribe(observer Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, observer)
	b.logger.Debug().Str("observer", observer.Name()).Msg("Observer subscribed")
}

// Publish enqueues an event for asynchronous delivery.
func (b *Bus) Publish(kind string, payload map[string]any) {
	event := models.NewEvent(kind, payload)

	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		b.logger.Warn().Str("kind", kind).Msg("Event bus stopped, dropping event")
		return
	}
	b.queue = append(b.queue, event)
	metrics.EventQueueSize.Set(float64(len(b.queue)))
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of events not yet delivered.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Start launches the delivery goroutine.
func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		b.logger.Warn().Msg("Event bus is already running")
		return errors.New("event bus is already running")
	}
	if b.stopped {
		return errors.New("event bus has been stopped")
	}

	b.running = true
	b.stopCh = make(chan struct{})
	b.wg.Add(1)
	go b.run()

	b.logger.Info().Int("observers", len(b.observers)).Msg("Event bus started successfully")
	return nil
}

// Stop delivers everything still queued, then stops the worker.
func (b *Bus) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		b.logger.Warn().Msg("Event bus is not running")
		return errors.New("event bus is not running")
	}
	b.running = false
	b.stopped = true
	close(b.stopCh)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info().Msg("Event bus stopped successfully")
	return nil
}

func (b *Bus) run() {
	defer b.wg.Done()

	for {
		if event, ok := b.next(); ok {
			b.deliver(event)
			continue
		}

		select {
		case <-b.wake:
		case <-b.stopCh:
			for {
				event, ok := b.next()
				if !ok {
					return
				}
				b.deliver(event)
			}
		}
	}
}

func (b *Bus) next() (models.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return models.Event{}, false
	}
	event := b.queue[0]
	b.queue[0] = models.Event{}
	b.queue = b.queue[1:]
	metrics.EventQueueSize.Set(float64(len(b.queue)))
	return event, true
}

func (b *Bus) deliver(event models.Event) {
	b.mu.Lock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mu.Unlock()

	for _, observer := range observers {
		if err := b.notify(observer, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("observer", observer.Name()).
				Str("kind", event.Kind).
				Str("event_id", event.ID.String()).
				Msg("Observer failed to handle event")
			metrics.ObserverFailuresTotal.WithLabelValues(observer.Name()).Inc()
		}
	}
	metrics.EventsDeliveredTotal.WithLabelValues(event.Kind).Inc()
}

// notify shields the worker from observer panics.
func (b *Bus) notify(observer Observer, event models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Str("observer", observer.Name()).
				Msg("Observer panic recovered")
			metrics.PanicsRecovered.WithLabelValues("event_bus").Inc()
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return observer.OnEvent(event.Kind, event.Payload)
}

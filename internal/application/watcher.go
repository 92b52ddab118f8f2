package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"telegram-bot-fleet/internal/domain"
	"telegram-bot-fleet/internal/domain/model"
	"telegram-bot-fleet/internal/domain/ports/repository"
	"telegram-bot-fleet/internal/infra/metrics"
)

// WatcherState is the feed watcher's lifecycle state.
type WatcherState int32

const (
	WatcherStopped WatcherState = iota
	WatcherConnecting
	WatcherWatching
	WatcherReconnecting
)

func (s WatcherState) String() string {
	switch s {
	case WatcherConnecting:
		return "connecting"
	case WatcherWatching:
		return "watching"
	case WatcherReconnecting:
		return "reconnecting"
	default:
		return "stopped"
	}
}

// Watcher consumes the credential store's change feed and applies each event
// synchronously, preserving per-customer delivery order. Feed-level failures
// trigger bounded-backoff reconnects and never give up; the periodic full
// sync bounds the damage of prolonged feed unavailability.
type Watcher struct {
	store repository.CustomerRepository
	apply func(ctx context.Context, ev model.ChangeEvent)
	bus   *EventBus
	log   *zerolog.Logger

	backoffMin time.Duration
	backoffMax time.Duration

	state atomic.Int32

	mu     sync.Mutex
	stream repository.CustomerStream
}

func NewWatcher(
	store repository.CustomerRepository,
	apply func(ctx context.Context, ev model.ChangeEvent),
	bus *EventBus,
	backoffMin, backoffMax time.Duration,
	logger *zerolog.Logger,
) *Watcher {
	if backoffMin <= 0 {
		backoffMin = time.Second
	}
	if backoffMax < backoffMin {
		backoffMax = backoffMin
	}
	wLog := logger.With().Str("component", "Watcher").Logger()
	return &Watcher{
		store:      store,
		apply:      apply,
		bus:        bus,
		log:        &wLog,
		backoffMin: backoffMin,
		backoffMax: backoffMax,
	}
}

// State returns the current lifecycle state.
func (w *Watcher) State() WatcherState {
	return WatcherState(w.state.Load())
}

// IsWatching reports whether the feed subscription is currently live.
func (w *Watcher) IsWatching() bool {
	return w.State() == WatcherWatching
}

// Run drives the watcher until ctx is canceled or Stop is called.
func (w *Watcher) Run(ctx context.Context) {
	defer w.state.Store(int32(WatcherStopped))

	backoff := w.backoffMin
	for {
		if ctx.Err() != nil {
			return
		}
		w.state.Store(int32(WatcherConnecting))
		stream, err := w.store.Watch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.feedFailure(err)
			if !w.sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, w.backoffMax)
			continue
		}

		w.setStream(stream)
		w.state.Store(int32(WatcherWatching))
		w.log.Info().Msg("change feed connected")
		backoff = w.backoffMin

		if !w.consume(ctx, stream) {
			return
		}
		if !w.sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, w.backoffMax)
	}
}

// consume reads the stream until it fails. Returns false when the watcher
// should exit instead of reconnecting.
func (w *Watcher) consume(ctx context.Context, stream repository.CustomerStream) bool {
	defer func() {
		stream.Close()
		w.setStream(nil)
	}()

	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || w.State() == WatcherStopped {
				return false
			}
			if errors.Is(err, domain.ErrMalformedEvent) {
				w.log.Warn().Err(err).Msg("skipping malformed feed event")
				continue
			}
			w.feedFailure(err)
			return true
		}
		// Applied synchronously before the next read: events for one
		// customer land in feed order.
		w.apply(ctx, ev)
	}
}

// Stop transitions to stopped from any state and closes an open subscription,
// which unblocks a concurrent Next. Safe to call repeatedly.
func (w *Watcher) Stop() {
	w.state.Store(int32(WatcherStopped))
	w.mu.Lock()
	stream := w.stream
	w.stream = nil
	w.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
}

func (w *Watcher) setStream(s repository.CustomerStream) {
	w.mu.Lock()
	w.stream = s
	w.mu.Unlock()
}

func (w *Watcher) feedFailure(err error) {
	w.state.Store(int32(WatcherReconnecting))
	w.log.Warn().Err(err).Msg("change feed failure, will reconnect")
	metrics.IncFeedReconnect()
	w.bus.Publish(Event{Type: EventStreamError, Err: err.Error()})
}

// sleep waits the backoff interval; returns false when ctx was canceled.
func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

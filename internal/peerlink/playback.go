package peerlink

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/couchsync/server/internal/domain"
)

// DefaultSeekTolerance is how far the local position may drift from an
// incoming seek before the receiver corrects it. Polling-induced drift stays
// below it, which breaks seek feedback loops.
const DefaultSeekTolerance = 1.0

// PlayerControl is the local video player surface.
type PlayerControl interface {
	Play()
	Pause()
	SeekTo(position float64)
	Position() float64
	IsPlaying() bool
}

// PlaybackReconciler applies incoming playback events to the local player.
// All operations are idempotent against the current player state, so
// duplicate or reordered events converge.
type PlaybackReconciler struct {
	localId   string
	player    PlayerControl
	tolerance float64
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
}

func NewPlaybackReconciler(localId string, player PlayerControl, tolerance float64, logger *slog.Logger) *PlaybackReconciler {
	if tolerance <= 0 {
		tolerance = DefaultSeekTolerance
	}

	return &PlaybackReconciler{
		localId:   localId,
		player:    player,
		tolerance: tolerance,
		logger:    logger,
	}
}

// Apply reconciles one incoming event. Events originating from the local
// participant are ignored: the local player already acted.
func (r *PlaybackReconciler) Apply(event domain.PlaybackEvent) {
	if event.Source == r.localId {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch event.Kind {
	case domain.PlaybackPlay:
		if !r.player.IsPlaying() {
			r.player.Play()
		}
	case domain.PlaybackPause:
		if r.player.IsPlaying() {
			r.player.Pause()
		}
	case domain.PlaybackSeek:
		if math.Abs(r.player.Position()-event.Time) > r.tolerance {
			r.player.SeekTo(event.Time)
		}
	default:
		r.logger.Debug("dropped unknown playback event", "kind", event.Kind)
	}
}

// ApplyReady processes a readiness update. The gate is one-way: once the
// room started, controls stay unlocked.
func (r *PlaybackReconciler) ApplyReady(update domain.ReadyUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if update.Started {
		r.started = true
	}
}

// ControlsEnabled reports whether local playback controls are unlocked.
// They stay disabled until every participant signaled ready.
func (r *PlaybackReconciler) ControlsEnabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.started
}

// EventSink receives outgoing playback events, typically forwarding them to
// the room's sync channel.
type EventSink func(event domain.PlaybackEvent)

// SeekDebouncer rate-limits outgoing seek events during continuous
// seek-bar dragging. Intermediate positions are coalesced; Flush guarantees
// the final position is sent on release. Sink invocations are serialized:
// the interval timer fires on its own goroutine, and its send must not
// interleave with a pass-through send, so the sink itself does not need to
// be safe for concurrent use.
type SeekDebouncer struct {
	interval time.Duration
	sink     EventSink

	mu      sync.Mutex
	pending *domain.PlaybackEvent
	timer   *time.Timer
	// held only around sink calls, never while mu is held
	sendMu sync.Mutex
}

func NewSeekDebouncer(interval time.Duration, sink EventSink) *SeekDebouncer {
	return &SeekDebouncer{
		interval: interval,
		sink:     sink,
	}
}

// Offer submits an event. Play and pause pass through immediately; seeks
// are held back and coalesced until the interval elapses or Flush is
// called.
func (d *SeekDebouncer) Offer(event domain.PlaybackEvent) {
	if event.Kind != domain.PlaybackSeek {
		d.Flush()

		d.sendMu.Lock()
		d.sink(event)
		d.sendMu.Unlock()
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = &event
	if d.timer == nil {
		d.timer = time.AfterFunc(d.interval, d.Flush)
	}
}

// Flush sends the pending seek, if any, immediately. Called on seek-bar
// release and before any pass-through event so ordering is preserved.
func (d *SeekDebouncer) Flush() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	if pending != nil {
		d.sendMu.Lock()
		d.sink(*pending)
		d.sendMu.Unlock()
	}
}

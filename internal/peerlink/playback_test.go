package peerlink

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchsync/server/internal/domain"
)

type fakePlayer struct {
	playing  bool
	position float64
	plays    int
	pauses   int
	seeks    []float64
}

func (p *fakePlayer) Play() {
	p.playing = true
	p.plays++
}

func (p *fakePlayer) Pause() {
	p.playing = false
	p.pauses++
}

func (p *fakePlayer) SeekTo(position float64) {
	p.position = position
	p.seeks = append(p.seeks, position)
}

func (p *fakePlayer) Position() float64 { return p.position }
func (p *fakePlayer) IsPlaying() bool   { return p.playing }

func TestReconcilerIgnoresOwnEvents(t *testing.T) {
	player := &fakePlayer{}
	r := NewPlaybackReconciler("alice", player, 0, slog.Default())

	r.Apply(domain.PlaybackEvent{Kind: domain.PlaybackPlay, Source: "alice"})

	assert.False(t, player.playing)
	assert.Zero(t, player.plays)
}

func TestReconcilerPlayPauseIdempotent(t *testing.T) {
	player := &fakePlayer{}
	r := NewPlaybackReconciler("alice", player, 0, slog.Default())

	r.Apply(domain.PlaybackEvent{Kind: domain.PlaybackPlay, Source: "bob"})
	r.Apply(domain.PlaybackEvent{Kind: domain.PlaybackPlay, Source: "bob"})
	assert.True(t, player.playing)
	assert.Equal(t, 1, player.plays)

	r.Apply(domain.PlaybackEvent{Kind: domain.PlaybackPause, Time: 30, Source: "bob"})
	r.Apply(domain.PlaybackEvent{Kind: domain.PlaybackPause, Time: 30, Source: "bob"})
	assert.False(t, player.playing)
	assert.Equal(t, 1, player.pauses)
}

func TestReconcilerSeekTolerance(t *testing.T) {
	player := &fakePlayer{position: 10.0}
	r := NewPlaybackReconciler("alice", player, 0, slog.Default())

	// within tolerance: no correction, no feedback loop
	r.Apply(domain.PlaybackEvent{Kind: domain.PlaybackSeek, Time: 10.4, Source: "bob"})
	assert.Empty(t, player.seeks)

	// outside tolerance: corrected
	r.Apply(domain.PlaybackEvent{Kind: domain.PlaybackSeek, Time: 12.0, Source: "bob"})
	assert.Equal(t, []float64{12.0}, player.seeks)
	assert.Equal(t, 12.0, player.position)
}

func TestControlsGateIsOneWay(t *testing.T) {
	r := NewPlaybackReconciler("alice", &fakePlayer{}, 0, slog.Default())

	assert.False(t, r.ControlsEnabled())

	r.ApplyReady(domain.ReadyUpdate{Source: "bob", StartedCount: 1, Started: false})
	assert.False(t, r.ControlsEnabled())

	r.ApplyReady(domain.ReadyUpdate{Source: "carol", StartedCount: 2, Started: true})
	assert.True(t, r.ControlsEnabled())

	// later updates never re-lock the controls
	r.ApplyReady(domain.ReadyUpdate{Source: "bob", StartedCount: 1, Started: false})
	assert.True(t, r.ControlsEnabled())
}

func TestSeekDebouncerCoalesces(t *testing.T) {
	var sent []domain.PlaybackEvent
	d := NewSeekDebouncer(time.Hour, func(event domain.PlaybackEvent) {
		sent = append(sent, event)
	})

	// a drag across the seek bar
	d.Offer(domain.PlaybackEvent{Kind: domain.PlaybackSeek, Time: 10, Source: "alice"})
	d.Offer(domain.PlaybackEvent{Kind: domain.PlaybackSeek, Time: 20, Source: "alice"})
	d.Offer(domain.PlaybackEvent{Kind: domain.PlaybackSeek, Time: 30, Source: "alice"})
	assert.Empty(t, sent)

	// release
	d.Flush()
	require.Len(t, sent, 1)
	assert.Equal(t, float64(30), sent[0].Time)

	// nothing pending anymore
	d.Flush()
	assert.Len(t, sent, 1)
}

func TestSeekDebouncerPassThroughPreservesOrder(t *testing.T) {
	var sent []domain.PlaybackEvent
	d := NewSeekDebouncer(time.Hour, func(event domain.PlaybackEvent) {
		sent = append(sent, event)
	})

	d.Offer(domain.PlaybackEvent{Kind: domain.PlaybackSeek, Time: 15, Source: "alice"})
	d.Offer(domain.PlaybackEvent{Kind: domain.PlaybackPause, Time: 15, Source: "alice"})

	// the held seek goes out before the pause
	require.Len(t, sent, 2)
	assert.Equal(t, domain.PlaybackSeek, sent[0].Kind)
	assert.Equal(t, domain.PlaybackPause, sent[1].Kind)
}

func TestSeekDebouncerSerializesSink(t *testing.T) {
	// the sink is deliberately not synchronized: the debouncer guarantees
	// its invocations never interleave, timer goroutine included
	var sent []domain.PlaybackEvent
	d := NewSeekDebouncer(time.Millisecond, func(event domain.PlaybackEvent) {
		sent = append(sent, event)
	})

	d.Offer(domain.PlaybackEvent{Kind: domain.PlaybackSeek, Time: 5, Source: "alice"})

	const passThroughs = 8
	var wg sync.WaitGroup
	for i := 0; i < passThroughs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Offer(domain.PlaybackEvent{Kind: domain.PlaybackPause, Time: 5, Source: "alice"})
		}()
	}
	wg.Wait()

	// the timer goroutine may still hold the pending seek; wait for it
	require.Eventually(t, func() bool {
		d.sendMu.Lock()
		defer d.sendMu.Unlock()
		return len(sent) == passThroughs+1
	}, time.Second, time.Millisecond)

	// the seek went out exactly once, every pass-through arrived
	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	seeks := 0
	for _, event := range sent {
		if event.Kind == domain.PlaybackSeek {
			seeks++
		}
	}
	assert.Equal(t, 1, seeks)
}

func TestSeekDebouncerFiresOnInterval(t *testing.T) {
	sent := make(chan domain.PlaybackEvent, 1)
	d := NewSeekDebouncer(5*time.Millisecond, func(event domain.PlaybackEvent) {
		sent <- event
	})

	d.Offer(domain.PlaybackEvent{Kind: domain.PlaybackSeek, Time: 45, Source: "alice"})

	select {
	case event := <-sent:
		assert.Equal(t, float64(45), event.Time)
	case <-time.After(time.Second):
		t.Fatal("debounced seek never fired")
	}
}

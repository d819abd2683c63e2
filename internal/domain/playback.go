package domain

type PlaybackEventKind string

const (
	PlaybackPlay  PlaybackEventKind = "play"
	PlaybackPause PlaybackEventKind = "pause"
	PlaybackSeek  PlaybackEventKind = "seek"
)

// PlaybackEvent steers the shared player. There is no leader: any
// participant's events are rebroadcast to the whole room and receivers
// reconcile against their own player state.
type PlaybackEvent struct {
	Kind   PlaybackEventKind `json:"event"`
	Time   float64           `json:"time,omitempty"`
	Source string            `json:"source"`
}

func (e *PlaybackEvent) Validate() error {
	switch e.Kind {
	case PlaybackPlay, PlaybackPause, PlaybackSeek:
	default:
		return ErrMalformedSignal
	}

	if e.Source == "" {
		return ErrMalformedSignal
	}

	return nil
}

// MembershipUpdate carries the full current participant list, not a delta.
// Full-state snapshots are self-healing over a relay without delivery
// guarantees.
type MembershipUpdate struct {
	Source       string   `json:"source"`
	CurrentUsers []string `json:"current_users"`
}

// ReadyUpdate carries the authoritative ready count for the room.
type ReadyUpdate struct {
	Source       string `json:"source"`
	StartedCount int    `json:"started_count"`
	Started      bool   `json:"started"`
}

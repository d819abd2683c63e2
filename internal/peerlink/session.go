package peerlink

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/couchsync/server/internal/domain"
)

// Session is one participant's client-side room state: the signaling
// orchestrator, the playback reconciler and the media controller, driven by
// the envelopes arriving from the room's channels.
type Session struct {
	LocalId      string
	Orchestrator *Orchestrator
	Reconciler   *PlaybackReconciler
	Media        *MediaController
	logger       *slog.Logger
	leave        func(ctx context.Context)
}

type SessionConfig struct {
	LocalId       string
	Sender        SignalSender
	NewConn       ConnFactory
	Player        PlayerControl
	Device        MediaDevice
	SeekTolerance float64
	// Leave notifies the registry on room exit; best-effort
	Leave func(ctx context.Context)
}

func NewSession(cfg *SessionConfig, logger *slog.Logger) *Session {
	return &Session{
		LocalId:      cfg.LocalId,
		Orchestrator: NewOrchestrator(cfg.LocalId, cfg.Sender, cfg.NewConn, logger),
		Reconciler:   NewPlaybackReconciler(cfg.LocalId, cfg.Player, cfg.SeekTolerance, logger),
		Media:        NewMediaController(cfg.Device, logger),
		logger:       logger,
		leave:        cfg.Leave,
	}
}

// HandleEvent dispatches one inbound room envelope by event name. Unknown
// or malformed payloads are dropped with a log entry.
func (s *Session) HandleEvent(ctx context.Context, event string, payload json.RawMessage) {
	switch event {
	case "sync":
		var e domain.PlaybackEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			s.logger.DebugContext(ctx, "dropped malformed sync event", "error", err)
			return
		}
		s.Reconciler.Apply(e)
	case "user-started":
		var u domain.ReadyUpdate
		if err := json.Unmarshal(payload, &u); err != nil {
			s.logger.DebugContext(ctx, "dropped malformed ready update", "error", err)
			return
		}
		s.Reconciler.ApplyReady(u)
	case "user-joined", "user-left":
		var u domain.MembershipUpdate
		if err := json.Unmarshal(payload, &u); err != nil {
			s.logger.DebugContext(ctx, "dropped malformed membership update", "error", err)
			return
		}
		s.Orchestrator.ReconcileMembership(ctx, u.CurrentUsers)
	case "webrtc-signal":
		var e domain.SignalEnvelope
		if err := json.Unmarshal(payload, &e); err != nil {
			s.logger.DebugContext(ctx, "dropped malformed signal", "error", err)
			return
		}
		s.Orchestrator.HandleSignal(ctx, e)
	default:
		s.logger.DebugContext(ctx, "dropped unknown event", "event", event)
	}
}

// ToggleMedia serializes the device toggle and renegotiates links. On
// acquisition failure the toggle rolls back and the error surfaces as a
// status string via Media.Status.
func (s *Session) ToggleMedia(ctx context.Context, enabled bool) error {
	if err := s.Media.SetEnabled(ctx, enabled); err != nil {
		return err
	}

	s.Orchestrator.SetMediaEnabled(ctx, enabled)
	return nil
}

// Leave tears the session down: registry notified, media stopped, every
// link closed. Each step is attempted regardless of earlier failures.
func (s *Session) Leave(ctx context.Context) {
	if s.leave != nil {
		s.leave(ctx)
	}

	s.Media.Stop()
	s.Orchestrator.Close(ctx)
}

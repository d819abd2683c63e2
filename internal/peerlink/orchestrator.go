package peerlink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"
	"golang.org/x/exp/slices"

	"github.com/couchsync/server/internal/domain"
)

// Orchestrator owns the links of one local participant. All entry points
// serialize on one mutex, modeling the client's single-threaded event loop:
// callbacks may arrive in any interleaving relative to local actions, but
// never run concurrently. Entry points are idempotent reactions to a
// snapshot of shared state, so re-entrant invocation for the same underlying
// condition is a safe no-op.
type Orchestrator struct {
	localId string
	sender  SignalSender
	newConn ConnFactory
	logger  *slog.Logger

	mu      sync.Mutex
	links   map[string]*link
	members []string
	mediaOn bool
	closed  bool
}

func NewOrchestrator(localId string, sender SignalSender, newConn ConnFactory, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		localId: localId,
		sender:  sender,
		newConn: newConn,
		logger:  logger,
		links:   make(map[string]*link),
	}
}

// ReconcileMembership aligns the link set with the current full participant
// list. With local media active, every remote participant without a link
// gets one with the local side as initiator; links to departed participants
// are torn down. Calling it twice with the same snapshot changes nothing.
func (o *Orchestrator) ReconcileMembership(ctx context.Context, currentUsers []string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	o.members = currentUsers
	o.reconcileLocked(ctx)
}

func (o *Orchestrator) reconcileLocked(ctx context.Context) {
	for _, remoteId := range o.members {
		if remoteId == o.localId {
			continue
		}

		if _, exists := o.links[remoteId]; !exists && o.mediaOn {
			o.initiate(ctx, remoteId)
		}
	}

	for remoteId := range o.links {
		if !slices.Contains(o.members, remoteId) {
			o.closeLink(ctx, remoteId)
		}
	}
}

// HandleSignal processes one inbound envelope. Duplicates, stale answers
// and out-of-order candidates are tolerated; a failure during negotiation
// closes only the affected link.
func (o *Orchestrator) HandleSignal(ctx context.Context, envelope domain.SignalEnvelope) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	if err := envelope.Validate(); err != nil {
		o.logger.DebugContext(ctx, "dropped malformed signal", "error", err)
		return
	}

	if envelope.Target != o.localId || envelope.Source == o.localId {
		return
	}

	var err error
	switch envelope.Type {
	case domain.SignalTypeOffer:
		err = o.handleOffer(ctx, envelope.Source, *envelope.Description)
	case domain.SignalTypeAnswer:
		err = o.handleAnswer(ctx, envelope.Source, *envelope.Description)
	case domain.SignalTypeICECandidate:
		err = o.handleCandidate(ctx, envelope.Source, *envelope.Candidate)
	}

	if err != nil {
		o.logger.WarnContext(ctx, "negotiation failed, closing link",
			"remote_id", envelope.Source, "signal_type", envelope.Type, "error", err)
		o.closeLink(ctx, envelope.Source)
	}
}

func (o *Orchestrator) handleOffer(ctx context.Context, remoteId string, desc webrtc.SessionDescription) error {
	l, exists := o.links[remoteId]
	if !exists {
		// responder: first contact from the remote side
		pc, err := o.newConn()
		if err != nil {
			return fmt.Errorf("failed to create connection: %w", err)
		}

		l = newLink(remoteId, pc)
		l.state = stateAnswering
		o.links[remoteId] = l

		return o.answer(ctx, l, desc)
	}

	switch l.state {
	case stateOffering:
		// glare: both sides offered. The lexically larger id is polite and
		// rolls back its own offer; the smaller id discards the incoming
		// one and keeps its pending offer. Exactly one side rolls back.
		if o.localId < remoteId {
			o.logger.DebugContext(ctx, "glare: discarding incoming offer", "remote_id", remoteId)
			return nil
		}

		o.logger.DebugContext(ctx, "glare: rolling back local offer", "remote_id", remoteId)
		if err := l.pc.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeRollback}); err != nil {
			return fmt.Errorf("failed to rollback: %w", err)
		}

		l.state = stateAnswering
		return o.answer(ctx, l, desc)
	case stateStable:
		// renegotiation started by the remote side
		l.state = stateAnswering
		return o.answer(ctx, l, desc)
	default:
		// duplicate or stale offer
		o.logger.DebugContext(ctx, "dropped stale offer", "remote_id", remoteId, "state", l.state)
		return nil
	}
}

func (o *Orchestrator) answer(ctx context.Context, l *link, offer webrtc.SessionDescription) error {
	if err := l.setRemoteDescription(offer); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	if err := l.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	l.state = stateStable

	if err := o.sender.SendSignal(ctx, domain.SignalEnvelope{
		Type:        domain.SignalTypeAnswer,
		Description: &answer,
		Source:      o.localId,
		Target:      l.remoteId,
	}); err != nil {
		// soft: the remote side will re-offer if the answer is lost
		o.logger.WarnContext(ctx, "failed to send answer", "remote_id", l.remoteId, "error", err)
	}

	return nil
}

func (o *Orchestrator) handleAnswer(ctx context.Context, remoteId string, desc webrtc.SessionDescription) error {
	l, exists := o.links[remoteId]
	if !exists || l.state != stateOffering {
		// stale answer: no link awaiting one
		o.logger.DebugContext(ctx, "dropped stale answer", "remote_id", remoteId)
		return nil
	}

	if err := l.setRemoteDescription(desc); err != nil {
		return fmt.Errorf("failed to set remote description: %w", err)
	}

	l.state = stateStable
	return nil
}

func (o *Orchestrator) handleCandidate(ctx context.Context, remoteId string, candidate webrtc.ICECandidateInit) error {
	l, exists := o.links[remoteId]
	if !exists {
		o.logger.DebugContext(ctx, "dropped candidate without link", "remote_id", remoteId)
		return nil
	}

	if err := l.addCandidate(candidate); err != nil {
		return fmt.Errorf("failed to add candidate: %w", err)
	}

	return nil
}

func (o *Orchestrator) initiate(ctx context.Context, remoteId string) {
	pc, err := o.newConn()
	if err != nil {
		o.logger.WarnContext(ctx, "failed to create connection", "remote_id", remoteId, "error", err)
		return
	}

	l := newLink(remoteId, pc)
	l.state = stateOffering
	o.links[remoteId] = l

	if err := o.sendOffer(ctx, l, nil); err != nil {
		o.logger.WarnContext(ctx, "failed to send offer", "remote_id", remoteId, "error", err)
		o.closeLink(ctx, remoteId)
	}
}

func (o *Orchestrator) sendOffer(ctx context.Context, l *link, options *webrtc.OfferOptions) error {
	offer, err := l.pc.CreateOffer(options)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}

	if err := l.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	l.state = stateOffering
	l.remoteDescSet = false

	if err := o.sender.SendSignal(ctx, domain.SignalEnvelope{
		Type:        domain.SignalTypeOffer,
		Description: &offer,
		Source:      o.localId,
		Target:      l.remoteId,
	}); err != nil {
		return fmt.Errorf("failed to send offer: %w", err)
	}

	return nil
}

// SetMediaEnabled flips local media and renegotiates every link that is
// currently stable. Links mid-negotiation are skipped: renegotiating them
// now would collide with the in-flight handshake, and the track change is
// picked up by their next reconcile.
func (o *Orchestrator) SetMediaEnabled(ctx context.Context, enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || o.mediaOn == enabled {
		return
	}

	o.mediaOn = enabled

	for remoteId, l := range o.links {
		if l.state != stateStable {
			continue
		}

		if err := o.sendOffer(ctx, l, nil); err != nil {
			o.logger.WarnContext(ctx, "renegotiation failed", "remote_id", remoteId, "error", err)
			o.closeLink(ctx, remoteId)
		}
	}

	// media coming up may entitle links to remotes that joined before it
	if enabled {
		o.reconcileLocked(ctx)
	}
}

// MediaEnabled reports whether local media is currently active.
func (o *Orchestrator) MediaEnabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.mediaOn
}

// HandleICEFailure restarts ICE once per link before giving up and tearing
// the link down.
func (o *Orchestrator) HandleICEFailure(ctx context.Context, remoteId string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	l, exists := o.links[remoteId]
	if !exists || l.state == stateClosed {
		return
	}

	if l.iceRestarted {
		o.logger.WarnContext(ctx, "ice restart already attempted, closing link", "remote_id", remoteId)
		o.closeLink(ctx, remoteId)
		return
	}

	l.iceRestarted = true
	if err := o.sendOffer(ctx, l, &webrtc.OfferOptions{ICERestart: true}); err != nil {
		o.logger.WarnContext(ctx, "ice restart failed", "remote_id", remoteId, "error", err)
		o.closeLink(ctx, remoteId)
	}
}

func (o *Orchestrator) closeLink(ctx context.Context, remoteId string) {
	l, exists := o.links[remoteId]
	if !exists {
		return
	}

	l.close()
	delete(o.links, remoteId)
	o.logger.DebugContext(ctx, "link closed", "remote_id", remoteId)
}

// LinkCount reports the number of live links.
func (o *Orchestrator) LinkCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.links)
}

// LinkStable reports whether the link to the given remote exists and has
// completed negotiation.
func (o *Orchestrator) LinkStable(remoteId string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	l, exists := o.links[remoteId]
	return exists && l.state == stateStable
}

// Close tears down every link. Cleanup is best-effort and never fails.
func (o *Orchestrator) Close(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}

	o.closed = true
	for remoteId := range o.links {
		o.closeLink(ctx, remoteId)
	}
}

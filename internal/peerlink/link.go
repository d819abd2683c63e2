package peerlink

import (
	"github.com/pion/webrtc/v3"
)

type linkState string

const (
	stateOffering  linkState = "offering"
	stateAnswering linkState = "answering"
	stateStable    linkState = "stable"
	stateClosed    linkState = "closed"
)

// link is one negotiation state machine per remote participant. The
// direction (who offered first) is decided once per link; only track
// changes renegotiate, and only from the stable state.
type link struct {
	remoteId      string
	pc            PeerConnection
	state         linkState
	remoteDescSet bool
	// candidates arriving before the remote description are buffered and
	// flushed once it is set; duplicates are dropped by candidate string
	pendingCandidates []webrtc.ICECandidateInit
	seenCandidates    map[string]struct{}
	iceRestarted      bool
}

func newLink(remoteId string, pc PeerConnection) *link {
	return &link{
		remoteId:       remoteId,
		pc:             pc,
		seenCandidates: make(map[string]struct{}),
	}
}

func (l *link) setRemoteDescription(desc webrtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return err
	}

	l.remoteDescSet = true
	return l.flushCandidates()
}

func (l *link) addCandidate(candidate webrtc.ICECandidateInit) error {
	if _, seen := l.seenCandidates[candidate.Candidate]; seen {
		return nil
	}
	l.seenCandidates[candidate.Candidate] = struct{}{}

	if !l.remoteDescSet {
		l.pendingCandidates = append(l.pendingCandidates, candidate)
		return nil
	}

	return l.pc.AddICECandidate(candidate)
}

func (l *link) flushCandidates() error {
	for _, candidate := range l.pendingCandidates {
		if err := l.pc.AddICECandidate(candidate); err != nil {
			return err
		}
	}
	l.pendingCandidates = nil

	return nil
}

func (l *link) close() {
	if l.state == stateClosed {
		return
	}

	l.state = stateClosed
	l.pendingCandidates = nil
	l.pc.Close()
}

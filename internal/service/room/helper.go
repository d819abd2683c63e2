package room

import (
	"context"
	"fmt"
)

func (s service) getParticipants(ctx context.Context, roomId string) ([]string, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	return memberIds, nil
}

func (s service) checkMembership(ctx context.Context, roomId, memberId string) error {
	ok, err := s.roomRepo.IsMemberInRoom(ctx, roomId, memberId)
	if err != nil {
		return fmt.Errorf("failed to check member: %w", err)
	}

	if !ok {
		return ErrMemberNotFound
	}

	return nil
}

// allReady reports whether the start gate condition holds:
// participantsCount > 0 and readyCount >= participantsCount.
func (s service) allReady(participantsCount, readyCount int) bool {
	return participantsCount > 0 && readyCount >= participantsCount
}

// evaluateGate re-checks the gate condition and flips the started marker if
// it holds. The marker is monotonic: once set it is never cleared, even if
// membership later changes.
func (s service) evaluateGate(ctx context.Context, roomId string) (readyCount int, started bool, err error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get room: %w", err)
	}

	readyCount, err = s.roomRepo.GetReadyCount(ctx, roomId)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get ready count: %w", err)
	}

	if rm.Started {
		return readyCount, true, nil
	}

	participants, err := s.getParticipants(ctx, roomId)
	if err != nil {
		return 0, false, err
	}

	if !s.allReady(len(participants), readyCount) {
		return readyCount, false, nil
	}

	if err := s.roomRepo.SetRoomStarted(ctx, roomId); err != nil {
		return 0, false, fmt.Errorf("failed to set room started: %w", err)
	}

	return readyCount, true, nil
}

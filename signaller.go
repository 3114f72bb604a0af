package main

import (
	"encoding/json"
	"fmt"

	"examshare/pkg/share"
	sig "examshare/pkg/signal"
)

// transportSignaller adapts the relay transport to the share core's
// outbound signaling interface.
type transportSignaller struct {
	transport sig.Transport
}

func newTransportSignaller(transport sig.Transport) *transportSignaller {
	return &transportSignaller{transport: transport}
}

func (s *transportSignaller) Connected() bool {
	return s.transport.Connected()
}

func (s *transportSignaller) SendOffer(roomID, participantID string, generation uint64, offer share.Description) error {
	return s.transport.Send(sig.Message{
		Type:          sig.TypeScreenShareOffer,
		Room:          roomID,
		ParticipantID: participantID,
		Generation:    generation,
		SDPType:       offer.Type,
		SDP:           offer.SDP,
		From:          sig.EndpointPublisher,
		To:            sig.EndpointViewer,
	})
}

func (s *transportSignaller) SendAnswer(roomID, participantID string, generation uint64, answer share.Description) error {
	return s.transport.Send(sig.Message{
		Type:          sig.TypeScreenShareAnswer,
		Room:          roomID,
		ParticipantID: participantID,
		Generation:    generation,
		SDPType:       answer.Type,
		SDP:           answer.SDP,
		From:          sig.EndpointViewer,
		To:            sig.EndpointPublisher,
	})
}

func (s *transportSignaller) SendCandidate(roomID, participantID string, generation uint64, from share.Role, c share.ICECandidate) error {
	candidate, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode candidate: %w", err)
	}

	to := sig.EndpointViewer
	if from == share.RoleSubscriber {
		to = sig.EndpointPublisher
	}

	return s.transport.Send(sig.Message{
		Type:          sig.TypeICECandidate,
		Room:          roomID,
		ParticipantID: participantID,
		Generation:    generation,
		Candidate:     string(candidate),
		From:          string(from),
		To:            to,
	})
}

// parseCandidate decodes the wire form of an ICE candidate.
func parseCandidate(raw string) (share.ICECandidate, error) {
	var c share.ICECandidate
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return share.ICECandidate{}, fmt.Errorf("failed to parse ICE candidate: %w", err)
	}
	return c, nil
}

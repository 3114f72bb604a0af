package main

import (
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"examshare/pkg/share"
	sig "examshare/pkg/signal"
)

// runTeacher creates (or rejoins) a room, accepts student screen shares and
// runs the monitoring TUI until the teacher quits.
func runTeacher(config Config) error {
	client, err := sig.Dial(config.SignalURL)
	if err != nil {
		return err
	}
	defer client.Close()

	room, err := openRoom(client, config.Room)
	if err != nil {
		return err
	}

	aggregator := share.NewAggregator()
	registry := share.NewRegistry(
		share.NewPionFactory(iceConfigFromFlags(config)),
		newTransportSignaller(client),
		aggregator,
	)

	p := tea.NewProgram(newViewerModel(config, room, client, registry, aggregator), tea.WithAltScreen())

	aggregator.OnChange = func() { p.Send(tilesChangedMsg{}) }
	registry.OnParticipantState = func(id string, state share.State) {
		p.Send(participantStateMsg{participantID: id, state: state})
	}
	client.SetDisconnectHandler(func() { p.Send(relayLostMsg{}) })

	if config.TaskText != "" {
		err := client.Send(sig.Message{
			Type:      sig.TypeSendTask,
			Room:      room,
			TaskText:  config.TaskText,
			TimeLimit: config.TimeLimit,
		})
		if err != nil {
			log.Printf("send task: %v", err)
		}
	}

	go pumpRelay(client, registry, room, p)

	_, err = p.Run()
	registry.TeardownAll()
	return err
}

// openRoom creates a fresh room, or rejoins an existing one when a code was
// given, and returns the room code.
func openRoom(client *sig.Client, code string) (string, error) {
	if code != "" {
		room := sig.NormalizeRoomCode(code)
		if !sig.ValidateRoomCode(room) {
			return "", fmt.Errorf("invalid room code %q", code)
		}
		if err := client.Send(sig.Message{Type: sig.TypeJoinRoom, Room: room, Role: sig.RoleTeacher}); err != nil {
			return "", err
		}
	} else {
		if err := client.Send(sig.Message{Type: sig.TypeCreateRoom}); err != nil {
			return "", err
		}
	}

	deadline := time.After(joinTimeout)
	for {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				return "", fmt.Errorf("lost connection to relay")
			}
			switch msg.Type {
			case sig.TypeRoomCreated, sig.TypeJoined:
				return msg.Room, nil
			case sig.TypeSessionError:
				return "", fmt.Errorf("room setup failed: %s", msg.Error)
			}
		case <-deadline:
			return "", fmt.Errorf("timed out waiting for the relay")
		}
	}
}

// pumpRelay routes relay messages: signaling goes straight into the
// subscriber registry, everything else becomes a TUI message.
func pumpRelay(client *sig.Client, registry *share.Registry, room string, p *tea.Program) {
	for msg := range client.Messages() {
		switch msg.Type {
		case sig.TypeScreenShareOffer:
			registry.HandleOffer(room, msg.ParticipantID, msg.Generation, share.Description{
				Type: msg.SDPType,
				SDP:  msg.SDP,
			})

		case sig.TypeICECandidate:
			if msg.From != sig.EndpointPublisher {
				continue
			}
			candidate, err := parseCandidate(msg.Candidate)
			if err != nil {
				log.Printf("bad remote candidate from %s: %v", msg.ParticipantID, err)
				continue
			}
			registry.HandleCandidate(msg.ParticipantID, msg.Generation, candidate)

		case sig.TypeStudentJoined:
			p.Send(studentJoinedMsg{participantID: msg.ParticipantID, name: msg.Name})

		case sig.TypeStudentLeft:
			registry.RemoveParticipant(msg.ParticipantID)
			p.Send(studentLeftMsg{participantID: msg.ParticipantID, name: msg.Name})

		case sig.TypeSolutionSubmitted:
			p.Send(submissionMsg{participantID: msg.ParticipantID, name: msg.Name})

		case sig.TypeSessionError:
			p.Send(relayErrorMsg{err: msg.Error})
		}
	}
	p.Send(relayLostMsg{})
}

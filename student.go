package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"examshare/pkg/share"
	sig "examshare/pkg/signal"
)

const joinTimeout = 15 * time.Second

// runStudent joins a room, shares the screen and prints exam events until the
// room closes or the user interrupts.
func runStudent(config Config) error {
	room := sig.NormalizeRoomCode(config.Room)
	if !sig.ValidateRoomCode(room) {
		return fmt.Errorf("invalid room code %q", config.Room)
	}

	client, err := sig.Dial(config.SignalURL)
	if err != nil {
		return err
	}
	defer client.Close()

	name := config.Name
	if name == "" {
		name = "Student"
	}

	err = client.Send(sig.Message{
		Type:          sig.TypeJoinRoom,
		Room:          room,
		Name:          name,
		ParticipantID: config.StudentID,
	})
	if err != nil {
		return err
	}

	participantID, err := awaitJoin(client)
	if err != nil {
		return err
	}
	fmt.Printf("Joined room %s as %s (%s)\n", room, name, participantID)

	// Keep the id so a reconnect resumes the same seat.
	if config.StudentID == "" {
		config.StudentID = participantID
		rememberSettings(config)
	}

	publisher := share.NewPublisher(
		share.NewPionFactory(iceConfigFromFlags(config)),
		&share.DisplayCapture{},
		newTransportSignaller(client),
	)

	// A failed negotiation schedules one fresh attempt; the generation bump
	// in StartPublishing makes the old session's signaling harmless.
	retry := make(chan struct{}, 1)
	publisher.OnStateChange = func(state share.State) {
		log.Printf("screen share: %s", state)
		if state == share.StateFailed {
			select {
			case retry <- struct{}{}:
			default:
			}
		}
	}
	defer publisher.StopPublishing()

	if err := publisher.StartPublishing(room, participantID); err != nil {
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				return fmt.Errorf("lost connection to relay")
			}
			done, err := handleStudentMessage(publisher, msg)
			if err != nil {
				return err
			}
			if done {
				return nil
			}

		case <-retry:
			time.Sleep(2 * time.Second)
			if err := publisher.StartPublishing(room, participantID); err != nil {
				log.Printf("screen share restart: %v", err)
			}

		case <-interrupt:
			fmt.Println("\nLeaving room...")
			return nil
		}
	}
}

// awaitJoin waits for the relay to confirm the join and assign a stable id.
func awaitJoin(client *sig.Client) (string, error) {
	deadline := time.After(joinTimeout)
	for {
		select {
		case msg, ok := <-client.Messages():
			if !ok {
				return "", fmt.Errorf("lost connection to relay")
			}
			switch msg.Type {
			case sig.TypeJoined:
				return msg.ParticipantID, nil
			case sig.TypeSessionError:
				return "", fmt.Errorf("join refused: %s", msg.Error)
			}
		case <-deadline:
			return "", fmt.Errorf("timed out waiting to join")
		}
	}
}

func handleStudentMessage(publisher *share.Publisher, msg sig.Message) (done bool, err error) {
	switch msg.Type {
	case sig.TypeScreenShareAnswer:
		publisher.HandleAnswer(msg.Generation, share.Description{
			Type: msg.SDPType,
			SDP:  msg.SDP,
		})

	case sig.TypeICECandidate:
		if msg.From != sig.EndpointViewer {
			return false, nil
		}
		candidate, perr := parseCandidate(msg.Candidate)
		if perr != nil {
			log.Printf("bad remote candidate: %v", perr)
			return false, nil
		}
		publisher.HandleRemoteCandidate(msg.Generation, candidate)

	case sig.TypeNewTask:
		fmt.Println("\n=== New task ===")
		fmt.Println(msg.TaskText)
		if msg.TimeLimit > 0 {
			fmt.Printf("Time limit: %d minutes\n", msg.TimeLimit)
		}

	case sig.TypeExamEnded:
		fmt.Println("\nThe exam has ended. Submissions are closed.")

	case sig.TypeRoomClosed:
		fmt.Println("\nThe teacher closed the room.")
		return true, nil

	case sig.TypeSessionError:
		log.Printf("relay error: %s", msg.Error)
	}
	return false, nil
}

package signal

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"examshare/pkg/console"
	"examshare/pkg/exam"
)

// readPump reads messages from the WebSocket
func (c *clientConn) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("signal server: read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("signal server: invalid message: %v", err)
			continue
		}

		c.handleMessage(msg)
	}
}

// writePump sends messages to the WebSocket
func (c *clientConn) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("signal server: write error: %v", err)
			return
		}
	}
}

// handleMessage routes one incoming relay message.
func (c *clientConn) handleMessage(msg Message) {
	switch msg.Type {
	case TypeCreateRoom:
		c.handleCreateRoom()
	case TypeJoinRoom:
		c.handleJoinRoom(msg)
	case TypeSendTask:
		c.handleSendTask(msg)
	case TypeEndExam:
		c.handleEndExam()
	case TypeCloseRoom:
		c.handleCloseRoom()
	case TypeSubmitSolution:
		c.handleSubmitSolution(msg)
	case TypeScreenShareOffer:
		c.forwardToTeacher(msg)
	case TypeScreenShareAnswer:
		c.forwardToStudent(msg)
	case TypeICECandidate:
		c.forwardCandidate(msg)
	case TypeStartSession:
		c.handleStartSession(msg)
	case TypeSendInput:
		c.server.console.Input(c.id, msg.Line)
	case TypeDisconnectSession:
		c.handleDisconnectSession()
	default:
		log.Printf("signal server: unknown message type: %s", msg.Type)
	}
}

// handleCreateRoom makes this client the teacher of a fresh room.
func (c *clientConn) handleCreateRoom() {
	room := c.server.createRoom()

	room.mu.Lock()
	room.teacher = c
	room.mu.Unlock()

	c.role = RoleTeacher
	c.room = room.code

	log.Printf("signal server: room %s created", room.code)
	c.enqueue(Message{Type: TypeRoomCreated, Room: room.code})
}

// handleJoinRoom registers a client in an existing room. Students without a
// participant id get one assigned; a returning student keeps theirs, which
// is what lets the teacher side treat the new offer as a reconnect.
func (c *clientConn) handleJoinRoom(msg Message) {
	room := c.server.getRoom(msg.Room)
	if room == nil {
		c.enqueue(Message{Type: TypeSessionError, Error: "Room " + msg.Room + " not found"})
		return
	}

	if msg.Role == RoleTeacher {
		room.mu.Lock()
		room.teacher = c
		room.mu.Unlock()

		c.role = RoleTeacher
		c.room = room.code
		c.enqueue(Message{Type: TypeJoined, Room: room.code, Role: RoleTeacher})
		return
	}

	participantID := msg.ParticipantID
	if participantID == "" {
		participantID = uuid.NewString()
	}

	c.role = RoleStudent
	c.room = room.code
	c.participantID = participantID
	c.name = msg.Name

	room.mu.Lock()
	if old, ok := room.students[participantID]; ok && old != c {
		old.closeSend()
	}
	room.students[participantID] = c
	room.exam.AddStudent(participantID, msg.Name)
	taskText, timeLimit := room.exam.Task()
	room.mu.Unlock()

	c.enqueue(Message{Type: TypeJoined, Room: room.code, Role: RoleStudent, ParticipantID: participantID})

	// Late joiners still get the current task.
	if taskText != "" {
		c.enqueue(Message{Type: TypeNewTask, TaskText: taskText, TimeLimit: timeLimit})
	}

	c.server.BroadcastToRoom(room.code, Message{
		Type:          TypeStudentJoined,
		ParticipantID: participantID,
		Name:          msg.Name,
	})
	log.Printf("signal server: student %s (%s) joined room %s", msg.Name, participantID, room.code)
}

// handleSendTask broadcasts a new task and resets the exam state.
func (c *clientConn) handleSendTask(msg Message) {
	room := c.teacherRoom()
	if room == nil {
		return
	}

	room.exam.SetTask(msg.TaskText, msg.TimeLimit)
	c.server.BroadcastToRoom(room.code, Message{
		Type:      TypeNewTask,
		TaskText:  msg.TaskText,
		TimeLimit: msg.TimeLimit,
	})
}

// handleEndExam marks the exam over; submissions stop being accepted.
func (c *clientConn) handleEndExam() {
	room := c.teacherRoom()
	if room == nil {
		return
	}

	room.exam.End()
	c.server.BroadcastToRoom(room.code, Message{Type: TypeExamEnded})
}

// handleCloseRoom tells everyone the room is gone and drops it.
func (c *clientConn) handleCloseRoom() {
	room := c.teacherRoom()
	if room == nil {
		return
	}

	c.server.BroadcastToRoom(room.code, Message{Type: TypeRoomClosed})
	c.server.deleteRoom(room.code)
	log.Printf("signal server: room %s closed", room.code)
}

// handleSubmitSolution validates, broadcasts and optionally persists one
// submission. A second submission by the same student is quietly ignored.
func (c *clientConn) handleSubmitSolution(msg Message) {
	room := c.server.getRoom(c.room)
	if room == nil || c.role != RoleStudent {
		c.enqueue(Message{Type: TypeSessionError, Error: "Room " + msg.Room + " not found"})
		return
	}

	if err := room.exam.Submit(c.participantID); err != nil {
		if errors.Is(err, exam.ErrExamEnded) {
			c.enqueue(Message{Type: TypeSessionError, Error: "Exam ended. No more submissions."})
		}
		return
	}

	c.server.BroadcastToRoom(room.code, Message{
		Type:          TypeSolutionSubmitted,
		ParticipantID: c.participantID,
		Name:          c.name,
		Code:          msg.Code,
		Language:      msg.Language,
		TaskID:        msg.TaskID,
	})

	if store := c.server.store; store != nil {
		sub := exam.Submission{
			RoomCode:    room.code,
			StudentID:   c.participantID,
			StudentName: c.name,
			Language:    msg.Language,
			TaskID:      msg.TaskID,
			Code:        msg.Code,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := store.SaveSubmission(ctx, sub); err != nil {
				log.Printf("signal server: save submission: %v", err)
			}
		}()
	}
}

// forwardToTeacher relays a student's offer to the room's teacher. The
// sender's registered participant id is authoritative.
func (c *clientConn) forwardToTeacher(msg Message) {
	room := c.server.getRoom(c.room)
	if room == nil || c.role != RoleStudent {
		return
	}
	msg.Room = room.code
	msg.ParticipantID = c.participantID

	room.mu.RLock()
	teacher := room.teacher
	room.mu.RUnlock()

	if teacher == nil {
		c.enqueue(Message{Type: TypeSessionError, Error: "No teacher in room"})
		return
	}
	teacher.enqueue(msg)
}

// forwardToStudent relays the teacher's answer to one student.
func (c *clientConn) forwardToStudent(msg Message) {
	room := c.server.getRoom(c.room)
	if room == nil || c.role != RoleTeacher {
		return
	}

	room.mu.RLock()
	student := room.students[msg.ParticipantID]
	room.mu.RUnlock()

	if student == nil {
		log.Printf("signal server: no student %s for answer in room %s", msg.ParticipantID, room.code)
		return
	}
	student.enqueue(msg)
}

// forwardCandidate routes an ICE candidate by its from field. Both
// directions share one event name, so the message carries the routing.
func (c *clientConn) forwardCandidate(msg Message) {
	switch msg.From {
	case EndpointPublisher:
		c.forwardToTeacher(msg)
	case EndpointViewer:
		c.forwardToStudent(msg)
	default:
		log.Printf("signal server: candidate without routing from %s", c.id)
	}
}

// handleStartSession launches a console session for this client.
func (c *clientConn) handleStartSession(msg Message) {
	err := c.server.console.Start(c.id, msg.Code, msg.Language, func(ev console.Event) {
		switch ev.Type {
		case console.EventStarted:
			c.enqueue(Message{Type: TypeSessionStarted})
		case console.EventOutput:
			c.enqueue(Message{Type: TypeConsoleOutput, Data: ev.Data})
		case console.EventEnded:
			c.enqueue(Message{Type: TypeProcessEnded})
		case console.EventError:
			c.enqueue(Message{Type: TypeSessionError, Error: ev.Data})
		}
	})
	if err != nil {
		c.enqueue(Message{Type: TypeSessionError, Error: err.Error()})
	}
}

// handleDisconnectSession kills the client's console session on request.
func (c *clientConn) handleDisconnectSession() {
	if c.server.console.Active(c.id) {
		c.enqueue(Message{Type: TypeConsoleOutput, Data: "[Session killed by user]\n"})
	}
	c.server.console.Stop(c.id)
	c.enqueue(Message{Type: TypeProcessEnded})
}

// teacherRoom returns the client's room when the client is its teacher.
func (c *clientConn) teacherRoom() *Room {
	room := c.server.getRoom(c.room)
	if room == nil || c.role != RoleTeacher {
		return nil
	}
	return room
}

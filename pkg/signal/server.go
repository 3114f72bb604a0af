package signal

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"examshare/pkg/console"
	"examshare/pkg/exam"
)

// clientConn is one connected relay client, teacher or student
type clientConn struct {
	conn          *websocket.Conn
	id            string // connection id, keys the console session
	room          string
	role          string // teacher or student
	participantID string
	name          string
	send          chan []byte
	server        *Server

	// sendMu guards closed and the close of send. Forwarders and console
	// emit closures hold clientConn pointers past replacement, so enqueue
	// must stay safe against a concurrently closed channel.
	sendMu sync.Mutex
	closed bool
}

// Room holds connected clients for one exam session
type Room struct {
	code     string
	teacher  *clientConn
	students map[string]*clientConn // participantID -> client
	exam     *exam.Room
	mu       sync.RWMutex
}

// SubmissionStore is the optional persistence hook for solutions.
type SubmissionStore interface {
	SaveSubmission(ctx context.Context, sub exam.Submission) error
}

// Server is the room relay: it owns the rooms, routes screen-share signaling
// between each student and the room's teacher, broadcasts exam events, and
// runs the per-client code console.
type Server struct {
	rooms    map[string]*Room
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	console  *console.Manager
	store    SubmissionStore
}

// NewServer creates a new relay server.
func NewServer() *Server {
	return &Server{
		rooms: make(map[string]*Room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		console: console.NewManager(),
	}
}

// SetSubmissionStore wires persistence for submitted solutions. Optional.
func (s *Server) SetSubmissionStore(store SubmissionStore) {
	s.store = store
}

// createRoom allocates a room with a fresh code.
func (s *Server) createRoom() *Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		code := GenerateRoomCode()
		if _, exists := s.rooms[code]; exists {
			continue
		}
		room := &Room{
			code:     code,
			students: make(map[string]*clientConn),
			exam:     exam.NewRoom(),
		}
		s.rooms[code] = room
		return room
	}
}

// getRoom returns the room for a code, or nil.
func (s *Server) getRoom(code string) *Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[NormalizeRoomCode(code)]
}

// deleteRoom drops a room from the map.
func (s *Server) deleteRoom(code string) {
	s.mu.Lock()
	delete(s.rooms, code)
	s.mu.Unlock()
}

// removeClient removes a client from its room on disconnect.
func (s *Server) removeClient(client *clientConn) {
	s.console.Stop(client.id)
	client.closeSend()

	room := s.getRoom(client.room)
	if room == nil {
		return
	}

	room.mu.Lock()
	if client.role == RoleTeacher && room.teacher == client {
		// The room is over without its teacher; students get told and
		// the room goes away.
		room.teacher = nil
		for _, student := range room.students {
			student.enqueue(Message{Type: TypeRoomClosed})
		}
		room.mu.Unlock()

		s.deleteRoom(room.code)
		log.Printf("signal server: teacher left, room %s closed", room.code)
		return
	}

	if client.role == RoleStudent && room.students[client.participantID] == client {
		delete(room.students, client.participantID)
		room.exam.RemoveStudent(client.participantID)
		teacher := room.teacher
		empty := room.teacher == nil && len(room.students) == 0
		room.mu.Unlock()

		if teacher != nil {
			teacher.enqueue(Message{
				Type:          TypeStudentLeft,
				ParticipantID: client.participantID,
				Name:          client.name,
			})
		}
		if empty {
			s.deleteRoom(room.code)
		}
		log.Printf("signal server: student %s left room %s", client.participantID, room.code)
		return
	}
	room.mu.Unlock()
}

// HandleWebSocket upgrades and registers a relay connection.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("signal server: upgrade failed: %v", err)
		return
	}

	client := &clientConn{
		conn:   conn,
		id:     uuid.NewString(),
		send:   make(chan []byte, 256),
		server: s,
	}

	go client.writePump()
	go client.readPump()
}

// StartServer starts the relay HTTP server.
func (s *Server) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)

	log.Printf("signal server: starting on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// StudentCount returns the number of students in a room.
func (s *Server) StudentCount(roomCode string) int {
	room := s.getRoom(roomCode)
	if room == nil {
		return 0
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.students)
}

// BroadcastToRoom sends a message to every client in a room.
func (s *Server) BroadcastToRoom(roomCode string, msg Message) {
	room := s.getRoom(roomCode)
	if room == nil {
		return
	}

	room.mu.RLock()
	defer room.mu.RUnlock()

	if room.teacher != nil {
		room.teacher.enqueue(msg)
	}
	for _, student := range room.students {
		student.enqueue(msg)
	}
}

// Close stops all console sessions. Rooms die with their connections.
func (s *Server) Close() {
	s.console.CloseAll()
}

// enqueue queues a message without blocking; a slow client loses messages
// rather than stalling the room, and a departed one drops them.
func (c *clientConn) enqueue(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("signal server: marshal: %v", err)
		return
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// closeSend closes the send queue exactly once, which ends the write pump.
// Safe to call while other goroutines enqueue.
func (c *clientConn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

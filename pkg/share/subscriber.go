package share

import (
	"log"
	"sync"
)

// Registry is the viewer-side owner of subscriber sessions, keyed by
// participant id. At most one live session exists per participant; a new
// offer from the same id closes the stale session first. The registry is the
// only writer of both its session map and the aggregator — session callbacks
// report back into it instead of mutating shared state.
type Registry struct {
	factory    PeerFactory
	signaller  Signaller
	aggregator *Aggregator

	mu          sync.Mutex
	sessions    map[string]*Session
	generations map[string]uint64

	// OnParticipantState, if set, is called when a participant's session
	// reaches Connected, Failed or is removed. UI only; may be nil.
	OnParticipantState func(participantID string, state State)
}

// NewRegistry creates a subscriber registry feeding the given aggregator.
func NewRegistry(factory PeerFactory, signaller Signaller, aggregator *Aggregator) *Registry {
	return &Registry{
		factory:     factory,
		signaller:   signaller,
		aggregator:  aggregator,
		sessions:    make(map[string]*Session),
		generations: make(map[string]uint64),
	}
}

// HandleOffer starts (or restarts) the negotiation for a publishing student.
// The offer's generation becomes the participant's current one; anything
// tagged older is discarded from here on.
func (r *Registry) HandleOffer(roomID, participantID string, generation uint64, offer Description) {
	r.mu.Lock()

	if current, ok := r.generations[participantID]; ok && generation < current {
		r.mu.Unlock()
		log.Printf("registry: discarding stale offer from %s (generation %d < %d)", participantID, generation, current)
		return
	}

	// A stale session for the same student is closed before the
	// replacement exists, so a given id never owns two peer connections.
	if stale, ok := r.sessions[participantID]; ok {
		delete(r.sessions, participantID)
		stale.Close()
	}
	r.generations[participantID] = generation

	pc, err := r.factory.NewPeerConnection()
	if err != nil {
		r.mu.Unlock()
		log.Printf("registry: failed to create peer connection for %s: %v", participantID, err)
		return
	}

	session := newSession(RoleSubscriber, participantID, generation, pc)
	session.onConnected = func(s *Session) { r.notifyParticipant(s.PeerID(), StateConnected) }
	session.onFailed = func(s *Session, err error) { r.sessionFailed(s, err) }

	pc.OnTrack(func(track RemoteTrack) {
		r.trackReceived(session, track)
	})
	pc.OnICECandidate(func(c ICECandidate) {
		if err := r.signaller.SendCandidate(roomID, participantID, generation, RoleSubscriber, c); err != nil {
			log.Printf("registry: send candidate to %s: %v", participantID, err)
		}
	})

	r.sessions[participantID] = session
	r.mu.Unlock()

	if err := session.applyOffer(offer); err != nil {
		log.Printf("registry: rejected offer from %s: %v", participantID, err)
		session.fail(newError("apply offer", ErrNegotiation))
		return
	}

	answer, err := session.createAnswer()
	if err != nil {
		log.Printf("registry: failed to answer %s: %v", participantID, err)
		session.fail(newError("create answer", ErrNegotiation))
		return
	}

	if err := r.signaller.SendAnswer(roomID, participantID, generation, answer); err != nil {
		log.Printf("registry: failed to send answer to %s: %v", participantID, err)
		session.fail(newError("send answer", ErrTransportUnavailable))
		return
	}
	session.markAnswerSent()
}

// HandleCandidate routes a publisher candidate into the matching session,
// queueing it when the remote description is not set yet. A candidate with
// no session (student already gone) or a stale generation is dropped.
func (r *Registry) HandleCandidate(participantID string, generation uint64, c ICECandidate) {
	r.mu.Lock()
	session, ok := r.sessions[participantID]
	r.mu.Unlock()

	if !ok {
		log.Printf("registry: dropping candidate for unknown participant %s", participantID)
		return
	}
	if session.Generation() != generation {
		log.Printf("registry: dropping stale candidate for %s (generation %d)", participantID, generation)
		return
	}
	session.addRemoteCandidate(c)
}

// RemoveParticipant closes and discards the session and tile for one
// student. Idempotent.
func (r *Registry) RemoveParticipant(participantID string) {
	r.mu.Lock()
	session, ok := r.sessions[participantID]
	if ok {
		delete(r.sessions, participantID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	session.Close()
	r.aggregator.Remove(participantID)
	r.notifyParticipant(participantID, StateClosed)
}

// TeardownAll closes every live session. Called once when the viewer leaves
// the room or the signaling transport disconnects.
func (r *Registry) TeardownAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for participantID, session := range sessions {
		session.Close()
		r.aggregator.Remove(participantID)
	}
}

// SessionCount returns the number of live sessions.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ParticipantState returns the session state for one student, or StateClosed
// when no session exists.
func (r *Registry) ParticipantState(participantID string) State {
	r.mu.Lock()
	session, ok := r.sessions[participantID]
	r.mu.Unlock()
	if !ok {
		return StateClosed
	}
	return session.State()
}

// trackReceived is the session's report of inbound media. The registry
// verifies the session is still the current one for its participant before
// touching the aggregator.
func (r *Registry) trackReceived(session *Session, track RemoteTrack) {
	r.mu.Lock()
	current := r.sessions[session.PeerID()] == session
	r.mu.Unlock()

	if !current {
		return
	}
	session.noteTrack()
	r.aggregator.Upsert(session.PeerID(), track)
}

// sessionFailed removes a failed session and its tile. One student's failure
// never touches another's session. No automatic retry: the student re-offers
// if they want back in.
func (r *Registry) sessionFailed(failed *Session, err error) {
	participantID := failed.PeerID()

	r.mu.Lock()
	if r.sessions[participantID] != failed {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, participantID)
	r.mu.Unlock()

	failed.Close()
	r.aggregator.Remove(participantID)
	log.Printf("registry: session for %s failed: %v", participantID, err)
	r.notifyParticipant(participantID, StateFailed)
}

func (r *Registry) notifyParticipant(participantID string, state State) {
	if r.OnParticipantState != nil {
		r.OnParticipantState(participantID, state)
	}
}

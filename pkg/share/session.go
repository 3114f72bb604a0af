package share

import (
	"log"
	"sync"
	"time"
)

// State is the negotiation state of a session. Transitions only move
// forward; renegotiation takes a fresh session.
type State int

const (
	StateIdle State = iota
	StateOfferCreated
	StateOfferSent
	StateAnswerPending
	StateConnected
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferCreated:
		return "offer-created"
	case StateOfferSent:
		return "offer-sent"
	case StateAnswerPending:
		return "answer-pending"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (s State) terminal() bool {
	return s == StateClosed || s == StateFailed
}

// DefaultDisconnectGrace is how long a session tolerates the transport
// reporting disconnected before giving up.
const DefaultDisconnectGrace = 10 * time.Second

// Session drives one peer-connection negotiation between a publisher and the
// viewer. Both roles share the same state machine; they differ only in which
// methods their owner calls and in what gates Connected (a publisher needs
// its tracks attached, a subscriber needs a track flowing).
type Session struct {
	role       Role
	peerID     string
	generation uint64
	pc         PeerConnection

	mu              sync.Mutex
	state           State
	localDesc       *Description
	remoteDesc      *Description
	pendingRemote   []ICECandidate
	trackSeen       bool
	tracksAttached  bool
	transportUp     bool
	graceTimer      *time.Timer
	disconnectGrace time.Duration

	// Owner notifications. Set once before any signaling is processed;
	// invoked outside the session lock.
	onConnected func(*Session)
	onFailed    func(*Session, error)
}

func newSession(role Role, peerID string, generation uint64, pc PeerConnection) *Session {
	s := &Session{
		role:            role,
		peerID:          peerID,
		generation:      generation,
		pc:              pc,
		state:           StateIdle,
		disconnectGrace: DefaultDisconnectGrace,
	}
	pc.OnConnectionStateChange(s.observeConnectionState)
	return s
}

func (s *Session) Role() Role         { return s.role }
func (s *Session) PeerID() string     { return s.peerID }
func (s *Session) Generation() uint64 { return s.generation }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// setStateLocked advances the state machine. Backward transitions are
// ignored, which is what makes duplicate signaling messages harmless.
func (s *Session) setStateLocked(next State) bool {
	if s.state.terminal() || next <= s.state {
		return false
	}
	s.state = next
	return true
}

// attachTracks adds the outbound tracks to the peer connection. Publisher
// side only, before the offer is created.
func (s *Session) attachTracks(tracks []LocalTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return ErrSessionClosed
	}
	for _, t := range tracks {
		if err := s.pc.AddTrack(t); err != nil {
			return err
		}
	}
	s.tracksAttached = true
	return nil
}

// createOffer generates the local offer and records it. Idle -> OfferCreated.
func (s *Session) createOffer() (Description, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return Description{}, ErrSessionClosed
	}

	offer, err := s.pc.CreateOffer()
	if err != nil {
		return Description{}, err
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		return Description{}, err
	}
	s.localDesc = &offer
	s.setStateLocked(StateOfferCreated)
	return offer, nil
}

// markOfferSent records that the offer went out on the transport.
func (s *Session) markOfferSent() {
	s.mu.Lock()
	s.setStateLocked(StateOfferSent)
	s.mu.Unlock()
}

// applyAnswer sets the remote answer and flushes queued candidates.
// Only valid in OfferSent; anything else is a stale or duplicate answer and
// is reported as not applied.
func (s *Session) applyAnswer(answer Description) (bool, error) {
	s.mu.Lock()
	if s.state != StateOfferSent {
		s.mu.Unlock()
		return false, nil
	}
	if err := s.pc.SetRemoteDescription(answer); err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.remoteDesc = &answer
	s.flushPendingLocked()
	s.setStateLocked(StateAnswerPending)
	notify := s.maybeConnectedLocked()
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
	return true, nil
}

// applyOffer sets the remote offer on a fresh subscriber session and flushes
// anything that trickled in before it. Idle -> OfferCreated.
func (s *Session) applyOffer(offer Description) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrSessionClosed
	}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return err
	}
	s.remoteDesc = &offer
	s.flushPendingLocked()
	s.setStateLocked(StateOfferCreated)
	return nil
}

// createAnswer generates the local answer. OfferCreated -> OfferSent once
// markAnswerSent confirms the emit.
func (s *Session) createAnswer() (Description, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOfferCreated {
		return Description{}, ErrSessionClosed
	}

	answer, err := s.pc.CreateAnswer()
	if err != nil {
		return Description{}, err
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return Description{}, err
	}
	s.localDesc = &answer
	s.setStateLocked(StateOfferSent)
	return answer, nil
}

// markAnswerSent records that the answer went out. Both descriptions are in
// place now, so the session waits for media.
func (s *Session) markAnswerSent() {
	s.mu.Lock()
	s.setStateLocked(StateAnswerPending)
	notify := s.maybeConnectedLocked()
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// addRemoteCandidate applies a candidate immediately when the remote
// description is set, otherwise queues it for the flush. A candidate the
// transport rejects is logged and dropped; one bad candidate must not kill a
// negotiation that can still succeed via the others.
func (s *Session) addRemoteCandidate(c ICECandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.terminal() {
		return
	}
	if s.remoteDesc == nil {
		s.pendingRemote = append(s.pendingRemote, c)
		return
	}
	if err := s.pc.AddICECandidate(c); err != nil {
		log.Printf("session %s: dropping candidate: %v", s.peerID, err)
	}
}

// flushPendingLocked applies queued candidates in arrival order, exactly once.
func (s *Session) flushPendingLocked() {
	for _, c := range s.pendingRemote {
		if err := s.pc.AddICECandidate(c); err != nil {
			log.Printf("session %s: dropping queued candidate: %v", s.peerID, err)
		}
	}
	s.pendingRemote = nil
}

// noteTrack records that inbound media arrived (subscriber side).
func (s *Session) noteTrack() {
	s.mu.Lock()
	s.trackSeen = true
	notify := s.maybeConnectedLocked()
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// maybeConnectedLocked promotes the session to Connected once every gate is
// open: both descriptions set, the transport up, and media attached (for a
// publisher) or flowing (for a subscriber). Returns the owner notification
// to run outside the lock, or nil.
func (s *Session) maybeConnectedLocked() func() {
	if s.state != StateAnswerPending || !s.transportUp {
		return nil
	}
	if s.localDesc == nil || s.remoteDesc == nil {
		return nil
	}
	if s.role == RolePublisher && !s.tracksAttached {
		return nil
	}
	if s.role == RoleSubscriber && !s.trackSeen {
		return nil
	}
	if !s.setStateLocked(StateConnected) {
		return nil
	}

	log.Printf("session %s (%s): connected", s.peerID, s.role)
	if cb := s.onConnected; cb != nil {
		return func() { cb(s) }
	}
	return nil
}

// observeConnectionState reacts to the peer transport's lifecycle events.
func (s *Session) observeConnectionState(state ConnectionState) {
	var notify func()

	s.mu.Lock()
	switch state {
	case ConnectionStateConnected:
		s.transportUp = true
		s.stopGraceTimerLocked()
		notify = s.maybeConnectedLocked()

	case ConnectionStateDisconnected:
		s.transportUp = false
		if !s.state.terminal() && s.graceTimer == nil {
			s.graceTimer = time.AfterFunc(s.disconnectGrace, s.graceExpired)
		}

	case ConnectionStateFailed:
		s.transportUp = false
		notify = s.failLocked(ErrConnectionFailed)

	case ConnectionStateClosed:
		s.transportUp = false
	}
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (s *Session) graceExpired() {
	s.mu.Lock()
	s.graceTimer = nil
	var notify func()
	if !s.transportUp {
		notify = s.failLocked(ErrConnectionFailed)
	}
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (s *Session) stopGraceTimerLocked() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

// failLocked marks the session failed and returns the owner notification to
// run outside the lock.
func (s *Session) failLocked(err error) func() {
	if s.state.terminal() {
		return nil
	}
	s.state = StateFailed
	s.pendingRemote = nil
	s.stopGraceTimerLocked()

	log.Printf("session %s (%s): failed: %v", s.peerID, s.role, err)
	if cb := s.onFailed; cb != nil {
		return func() { cb(s, err) }
	}
	return nil
}

// fail marks the session failed on an unrecoverable negotiation error.
func (s *Session) fail(err error) {
	s.mu.Lock()
	notify := s.failLocked(err)
	s.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Close releases the peer connection and freezes the session. Idempotent.
// Queued candidates are discarded; late signaling for this session becomes a
// no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	if !s.state.terminal() {
		s.state = StateClosed
	}
	s.pendingRemote = nil
	s.stopGraceTimerLocked()
	s.mu.Unlock()

	if err := s.pc.Close(); err != nil {
		log.Printf("session %s: close: %v", s.peerID, err)
	}
}

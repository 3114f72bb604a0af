package share

import (
	"log"
	"sync"
)

// Publisher is the student-side manager: it owns the capture source and at
// most one outbound negotiation session.
type Publisher struct {
	factory   PeerFactory
	capture   Capture
	signaller Signaller

	mu            sync.Mutex
	session       *Session
	source        CaptureSource
	roomID        string
	participantID string
	generation    uint64
	errMsg        string

	// OnStateChange, if set, is called with every negotiation state the
	// active session reaches. UI only; may be nil.
	OnStateChange func(State)
}

// NewPublisher creates a publisher manager.
func NewPublisher(factory PeerFactory, capture Capture, signaller Signaller) *Publisher {
	return &Publisher{
		factory:   factory,
		capture:   capture,
		signaller: signaller,
	}
}

// StartPublishing acquires a display capture, negotiates a fresh session and
// emits the offer. It returns once the offer has been sent; reaching
// Connected is reported asynchronously. Each call bumps the negotiation
// generation so signaling for an earlier attempt is discarded.
func (p *Publisher) StartPublishing(roomID, participantID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errMsg = ""

	if roomID == "" || participantID == "" {
		return p.setErrLocked(newError("start publishing", ErrMissingIdentity))
	}
	if p.signaller == nil || !p.signaller.Connected() {
		return p.setErrLocked(newError("start publishing", ErrTransportUnavailable))
	}

	// Replace any previous attempt before touching the platform.
	p.stopLocked()

	source, err := p.capture.Acquire(CaptureKindDisplay)
	if err != nil {
		return p.setErrLocked(newError("acquire capture", ErrCaptureDenied))
	}
	if err := validateDisplayScope(source); err != nil {
		source.Stop()
		return p.setErrLocked(newError("validate capture", err))
	}

	pc, err := p.factory.NewPeerConnection()
	if err != nil {
		source.Stop()
		return p.setErrLocked(newError("create peer connection", err))
	}

	p.generation++
	generation := p.generation
	session := newSession(RolePublisher, participantID, generation, pc)
	session.onConnected = func(*Session) { p.notifyState(StateConnected) }
	session.onFailed = func(s *Session, err error) { p.sessionFailed(s, err) }

	pc.OnICECandidate(func(c ICECandidate) {
		if err := p.signaller.SendCandidate(roomID, participantID, generation, RolePublisher, c); err != nil {
			log.Printf("publisher %s: send candidate: %v", participantID, err)
		}
	})

	if err := session.attachTracks(source.Tracks()); err != nil {
		session.Close()
		source.Stop()
		return p.setErrLocked(newError("attach tracks", err))
	}

	offer, err := session.createOffer()
	if err != nil {
		session.Close()
		source.Stop()
		return p.setErrLocked(newError("create offer", ErrNegotiation))
	}

	if err := p.signaller.SendOffer(roomID, participantID, generation, offer); err != nil {
		session.Close()
		source.Stop()
		return p.setErrLocked(newError("send offer", ErrTransportUnavailable))
	}
	session.markOfferSent()

	p.session = session
	p.source = source
	p.roomID = roomID
	p.participantID = participantID

	p.notifyStateLocked(StateOfferSent)
	return nil
}

// HandleAnswer applies the viewer's answer. A no-op unless a session exists,
// the generation matches and the session is still waiting for an answer, so
// stale or duplicate answers after StopPublishing cannot disturb anything.
func (p *Publisher) HandleAnswer(generation uint64, answer Description) {
	p.mu.Lock()
	session := p.session
	p.mu.Unlock()

	if session == nil || session.Generation() != generation {
		return
	}

	applied, err := session.applyAnswer(answer)
	if err != nil {
		session.fail(newError("apply answer", ErrNegotiation))
		return
	}
	if applied {
		p.notifyState(StateAnswerPending)
	}
}

// HandleRemoteCandidate routes a viewer candidate into the active session.
// Candidates for a stale generation are discarded.
func (p *Publisher) HandleRemoteCandidate(generation uint64, c ICECandidate) {
	p.mu.Lock()
	session := p.session
	p.mu.Unlock()

	if session == nil || session.Generation() != generation {
		return
	}
	session.addRemoteCandidate(c)
}

// StopPublishing stops the local tracks, closes the peer connection and
// discards the session. Idempotent.
func (p *Publisher) StopPublishing() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Publisher) stopLocked() {
	if p.source != nil {
		p.source.Stop()
		p.source = nil
	}
	if p.session != nil {
		p.session.Close()
		p.session = nil
	}
}

// State returns the active session's state, or StateIdle when none exists.
func (p *Publisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return StateIdle
	}
	return p.session.State()
}

// ErrorMessage returns the current error message for the UI. Cleared on the
// next StartPublishing attempt.
func (p *Publisher) ErrorMessage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errMsg
}

func (p *Publisher) setErrLocked(err error) error {
	p.errMsg = err.Error()
	return err
}

// sessionFailed cleans up after a terminal negotiation failure. Whether to
// retry is the caller's decision via a fresh StartPublishing.
func (p *Publisher) sessionFailed(failed *Session, err error) {
	p.mu.Lock()
	if p.session == failed {
		p.errMsg = err.Error()
		p.stopLocked()
	}
	p.mu.Unlock()

	p.notifyState(StateFailed)
}

func (p *Publisher) notifyState(state State) {
	if p.OnStateChange != nil {
		p.OnStateChange(state)
	}
}

func (p *Publisher) notifyStateLocked(state State) {
	cb := p.OnStateChange
	if cb != nil {
		// Callback runs without the lock; callers may call back in.
		go cb(state)
	}
}

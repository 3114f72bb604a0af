package share

import (
	"sync"
)

// fakePC is an in-process PeerConnection for negotiation tests.
type fakePC struct {
	mu         sync.Mutex
	tracks     []LocalTrack
	localDesc  *Description
	remoteDesc *Description
	candidates []ICECandidate
	closed     bool

	offerErr        error
	answerErr       error
	setRemoteErr    error
	addCandidateErr error

	onICE   func(ICECandidate)
	onTrack func(RemoteTrack)
	onState func(ConnectionState)
}

func (f *fakePC) AddTrack(t LocalTrack) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks = append(f.tracks, t)
	return nil
}

func (f *fakePC) CreateOffer() (Description, error) {
	if f.offerErr != nil {
		return Description{}, f.offerErr
	}
	return Description{Type: "offer", SDP: "v=0 fake-offer"}, nil
}

func (f *fakePC) CreateAnswer() (Description, error) {
	if f.answerErr != nil {
		return Description{}, f.answerErr
	}
	return Description{Type: "answer", SDP: "v=0 fake-answer"}, nil
}

func (f *fakePC) SetLocalDescription(d Description) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.localDesc = &d
	return nil
}

func (f *fakePC) SetRemoteDescription(d Description) error {
	if f.setRemoteErr != nil {
		return f.setRemoteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remoteDesc = &d
	return nil
}

func (f *fakePC) AddICECandidate(c ICECandidate) error {
	if f.addCandidateErr != nil {
		return f.addCandidateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, c)
	return nil
}

func (f *fakePC) OnICECandidate(fn func(ICECandidate))          { f.onICE = fn }
func (f *fakePC) OnTrack(fn func(RemoteTrack))                  { f.onTrack = fn }
func (f *fakePC) OnConnectionStateChange(fn func(ConnectionState)) { f.onState = fn }

func (f *fakePC) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePC) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakePC) appliedCandidates() []ICECandidate {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ICECandidate, len(f.candidates))
	copy(out, f.candidates)
	return out
}

// transportUp simulates the ICE transport coming up.
func (f *fakePC) transportUp() {
	if f.onState != nil {
		f.onState(ConnectionStateConnected)
	}
}

func (f *fakePC) transportState(s ConnectionState) {
	if f.onState != nil {
		f.onState(s)
	}
}

// emitTrack simulates inbound media arriving.
func (f *fakePC) emitTrack(t RemoteTrack) {
	if f.onTrack != nil {
		f.onTrack(t)
	}
}

// fakeFactory hands out fakePCs and keeps them for inspection.
type fakeFactory struct {
	mu      sync.Mutex
	pcs     []*fakePC
	nextPC  *fakePC
	nextErr error
}

func (f *fakeFactory) NewPeerConnection() (PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nextErr != nil {
		return nil, f.nextErr
	}
	pc := f.nextPC
	f.nextPC = nil
	if pc == nil {
		pc = &fakePC{}
	}
	f.pcs = append(f.pcs, pc)
	return pc, nil
}

func (f *fakeFactory) last() *fakePC {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pcs) == 0 {
		return nil
	}
	return f.pcs[len(f.pcs)-1]
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pcs)
}

// fakeLocalTrack is a LocalTrack with a fixed kind and label.
type fakeLocalTrack struct {
	id    string
	kind  string
	label string
}

func (t *fakeLocalTrack) ID() string    { return t.id }
func (t *fakeLocalTrack) Kind() string  { return t.kind }
func (t *fakeLocalTrack) Label() string { return t.label }

func displayTrack() *fakeLocalTrack {
	return &fakeLocalTrack{id: "video0", kind: "video", label: "display:main"}
}

func windowTrack() *fakeLocalTrack {
	return &fakeLocalTrack{id: "video0", kind: "video", label: "window:editor"}
}

// fakeRemoteTrack is a RemoteTrack for subscriber tests.
type fakeRemoteTrack struct {
	id       string
	streamID string
}

func (t *fakeRemoteTrack) ID() string       { return t.id }
func (t *fakeRemoteTrack) Kind() string     { return "video" }
func (t *fakeRemoteTrack) StreamID() string { return t.streamID }

// fakeSource is a CaptureSource over fixed tracks.
type fakeSource struct {
	mu      sync.Mutex
	tracks  []LocalTrack
	stopped int
}

func (s *fakeSource) Tracks() []LocalTrack {
	return s.tracks
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
}

func (s *fakeSource) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// fakeCapture grants or denies capture requests.
type fakeCapture struct {
	mu      sync.Mutex
	source  *fakeSource
	denied  bool
	acquire int
}

func (c *fakeCapture) Acquire(kind string) (CaptureSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquire++
	if c.denied {
		return nil, ErrCaptureDenied
	}
	if c.source == nil {
		c.source = &fakeSource{tracks: []LocalTrack{displayTrack()}}
	}
	return c.source, nil
}

type sentOffer struct {
	roomID        string
	participantID string
	generation    uint64
	offer         Description
}

type sentAnswer struct {
	roomID        string
	participantID string
	generation    uint64
	answer        Description
}

type sentCandidate struct {
	roomID        string
	participantID string
	generation    uint64
	from          Role
	candidate     ICECandidate
}

// fakeSignaller records outgoing signaling.
type fakeSignaller struct {
	mu         sync.Mutex
	down       bool
	offers     []sentOffer
	answers    []sentAnswer
	candidates []sentCandidate
	sendErr    error
}

func (s *fakeSignaller) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.down
}

func (s *fakeSignaller) SendOffer(roomID, participantID string, generation uint64, offer Description) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.offers = append(s.offers, sentOffer{roomID, participantID, generation, offer})
	return nil
}

func (s *fakeSignaller) SendAnswer(roomID, participantID string, generation uint64, answer Description) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.answers = append(s.answers, sentAnswer{roomID, participantID, generation, answer})
	return nil
}

func (s *fakeSignaller) SendCandidate(roomID, participantID string, generation uint64, from Role, c ICECandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.candidates = append(s.candidates, sentCandidate{roomID, participantID, generation, from, c})
	return nil
}

func (s *fakeSignaller) offerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.offers)
}

func (s *fakeSignaller) answerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

func (s *fakeSignaller) lastOffer() sentOffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.offers) == 0 {
		panic("no offers sent")
	}
	return s.offers[len(s.offers)-1]
}

func (s *fakeSignaller) lastAnswer() sentAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.answers) == 0 {
		panic("no answers sent")
	}
	return s.answers[len(s.answers)-1]
}

package share

// Role identifies which side of a negotiation a session belongs to.
type Role string

const (
	RolePublisher  Role = "publisher"
	RoleSubscriber Role = "viewer"
)

// Description is a session description (SDP offer or answer).
type Description struct {
	Type string `json:"type"` // "offer" or "answer"
	SDP  string `json:"sdp"`
}

// ICECandidate is a trickled connectivity candidate.
type ICECandidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// ConnectionState mirrors the underlying transport's connection lifecycle.
type ConnectionState int

const (
	ConnectionStateNew ConnectionState = iota
	ConnectionStateConnecting
	ConnectionStateConnected
	ConnectionStateDisconnected
	ConnectionStateFailed
	ConnectionStateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionStateNew:
		return "new"
	case ConnectionStateConnecting:
		return "connecting"
	case ConnectionStateConnected:
		return "connected"
	case ConnectionStateDisconnected:
		return "disconnected"
	case ConnectionStateFailed:
		return "failed"
	case ConnectionStateClosed:
		return "closed"
	}
	return "unknown"
}

// LocalTrack is an outbound media track produced by a capture source.
type LocalTrack interface {
	ID() string
	Kind() string // "video" or "audio"
	// Label describes what is being captured, e.g. "display:main" or
	// "window:Terminal". Used to validate full-display scope.
	Label() string
}

// RemoteTrack is an inbound media track. It doubles as the stream handle the
// aggregator hands to the rendering layer.
type RemoteTrack interface {
	ID() string
	Kind() string
	StreamID() string
}

// PeerConnection abstracts the real-time peer primitive. The production
// implementation wraps pion; tests use an in-process fake.
type PeerConnection interface {
	AddTrack(t LocalTrack) error
	CreateOffer() (Description, error)
	CreateAnswer() (Description, error)
	SetLocalDescription(d Description) error
	SetRemoteDescription(d Description) error
	AddICECandidate(c ICECandidate) error

	OnICECandidate(func(ICECandidate))
	OnTrack(func(RemoteTrack))
	OnConnectionStateChange(func(ConnectionState))

	Close() error
}

// PeerFactory creates peer connections with the configured ICE servers.
type PeerFactory interface {
	NewPeerConnection() (PeerConnection, error)
}

// Signaller is the outbound half of the signaling transport, scoped to the
// three screen-share events. The inbound half is whatever message loop the
// owner runs; it feeds HandleAnswer/HandleOffer/HandleCandidate.
type Signaller interface {
	// Connected reports whether the transport is usable right now.
	Connected() bool

	SendOffer(roomID, participantID string, generation uint64, offer Description) error
	SendAnswer(roomID, participantID string, generation uint64, answer Description) error
	SendCandidate(roomID, participantID string, generation uint64, from Role, c ICECandidate) error
}

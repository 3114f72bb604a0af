package share

import (
	"fmt"

	"github.com/pion/webrtc/v3"
)

// Default STUN servers used when no TURN server is configured.
var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
	{URLs: []string{"stun:stun1.l.google.com:19302"}},
}

// ICEConfig holds ICE server configuration for the peer factory.
type ICEConfig struct {
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// PionFactory creates pion-backed peer connections.
type PionFactory struct {
	config webrtc.Configuration
}

// NewPionFactory builds a factory from the ICE configuration.
func NewPionFactory(iceConfig ICEConfig) *PionFactory {
	iceServers := make([]webrtc.ICEServer, 0)

	if !iceConfig.ForceRelay {
		iceServers = append(iceServers, defaultICEServers...)
	}

	if iceConfig.TURNServer != "" {
		turnServer := webrtc.ICEServer{
			URLs: []string{iceConfig.TURNServer},
		}
		if iceConfig.TURNUser != "" {
			turnServer.Username = iceConfig.TURNUser
			turnServer.Credential = iceConfig.TURNPass
			turnServer.CredentialType = webrtc.ICECredentialTypePassword
		}
		iceServers = append(iceServers, turnServer)
	}

	iceTransportPolicy := webrtc.ICETransportPolicyAll
	if iceConfig.ForceRelay {
		iceTransportPolicy = webrtc.ICETransportPolicyRelay
	}

	return &PionFactory{
		config: webrtc.Configuration{
			ICEServers:         iceServers,
			ICETransportPolicy: iceTransportPolicy,
		},
	}
}

// NewPeerConnection creates a wrapped pion peer connection.
func (f *PionFactory) NewPeerConnection() (PeerConnection, error) {
	pc, err := webrtc.NewPeerConnection(f.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}
	return &pionConn{pc: pc}, nil
}

type pionConn struct {
	pc *webrtc.PeerConnection
}

func (c *pionConn) AddTrack(t LocalTrack) error {
	st, ok := t.(*SampleTrack)
	if !ok {
		return fmt.Errorf("unsupported local track type %T", t)
	}
	if _, err := c.pc.AddTrack(st.track); err != nil {
		return fmt.Errorf("failed to add track %s: %w", t.ID(), err)
	}
	return nil
}

func (c *pionConn) CreateOffer() (Description, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return Description{}, fmt.Errorf("failed to create offer: %w", err)
	}
	return Description{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

func (c *pionConn) CreateAnswer() (Description, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return Description{}, fmt.Errorf("failed to create answer: %w", err)
	}
	return Description{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

func (c *pionConn) SetLocalDescription(d Description) error {
	return c.pc.SetLocalDescription(toPionDescription(d))
}

func (c *pionConn) SetRemoteDescription(d Description) error {
	return c.pc.SetRemoteDescription(toPionDescription(d))
}

func (c *pionConn) AddICECandidate(cand ICECandidate) error {
	return c.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	})
}

func (c *pionConn) OnICECandidate(handler func(ICECandidate)) {
	c.pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		init := candidate.ToJSON()
		handler(ICECandidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})
}

func (c *pionConn) OnTrack(handler func(RemoteTrack)) {
	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		handler(&pionRemoteTrack{track: track})
	})
}

func (c *pionConn) OnConnectionStateChange(handler func(ConnectionState)) {
	c.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		handler(fromPionState(state))
	})
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}

func toPionDescription(d Description) webrtc.SessionDescription {
	return webrtc.SessionDescription{
		Type: webrtc.NewSDPType(d.Type),
		SDP:  d.SDP,
	}
}

func fromPionState(state webrtc.PeerConnectionState) ConnectionState {
	switch state {
	case webrtc.PeerConnectionStateNew:
		return ConnectionStateNew
	case webrtc.PeerConnectionStateConnecting:
		return ConnectionStateConnecting
	case webrtc.PeerConnectionStateConnected:
		return ConnectionStateConnected
	case webrtc.PeerConnectionStateDisconnected:
		return ConnectionStateDisconnected
	case webrtc.PeerConnectionStateFailed:
		return ConnectionStateFailed
	case webrtc.PeerConnectionStateClosed:
		return ConnectionStateClosed
	}
	return ConnectionStateNew
}

type pionRemoteTrack struct {
	track *webrtc.TrackRemote
}

func (t *pionRemoteTrack) ID() string       { return t.track.ID() }
func (t *pionRemoteTrack) Kind() string     { return t.track.Kind().String() }
func (t *pionRemoteTrack) StreamID() string { return t.track.StreamID() }

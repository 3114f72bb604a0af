package share

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPublisherHappyPath(t *testing.T) {
	pc := &fakePC{}
	s := newSession(RolePublisher, "student-1", 1, pc)

	var connected bool
	s.onConnected = func(*Session) { connected = true }

	require.NoError(t, s.attachTracks([]LocalTrack{displayTrack()}))

	offer, err := s.createOffer()
	require.NoError(t, err)
	assert.Equal(t, "offer", offer.Type)
	assert.Equal(t, StateOfferCreated, s.State())

	s.markOfferSent()
	assert.Equal(t, StateOfferSent, s.State())

	applied, err := s.applyAnswer(Description{Type: "answer", SDP: "v=0 a"})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, StateAnswerPending, s.State())
	assert.False(t, connected)

	pc.transportUp()
	assert.Equal(t, StateConnected, s.State())
	assert.True(t, connected)
}

func TestSessionSubscriberHappyPath(t *testing.T) {
	pc := &fakePC{}
	s := newSession(RoleSubscriber, "student-1", 1, pc)

	var connected bool
	s.onConnected = func(*Session) { connected = true }

	require.NoError(t, s.applyOffer(Description{Type: "offer", SDP: "v=0 o"}))
	assert.Equal(t, StateOfferCreated, s.State())

	answer, err := s.createAnswer()
	require.NoError(t, err)
	assert.Equal(t, "answer", answer.Type)

	s.markAnswerSent()
	assert.Equal(t, StateAnswerPending, s.State())

	// Connected needs both the transport and inbound media.
	pc.transportUp()
	assert.Equal(t, StateAnswerPending, s.State())
	assert.False(t, connected)

	s.noteTrack()
	assert.Equal(t, StateConnected, s.State())
	assert.True(t, connected)
}

func TestSessionDuplicateAnswerIsNoOp(t *testing.T) {
	pc := &fakePC{}
	s := newSession(RolePublisher, "student-1", 1, pc)

	require.NoError(t, s.attachTracks([]LocalTrack{displayTrack()}))
	_, err := s.createOffer()
	require.NoError(t, err)
	s.markOfferSent()

	applied, err := s.applyAnswer(Description{Type: "answer", SDP: "v=0 a"})
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = s.applyAnswer(Description{Type: "answer", SDP: "v=0 dup"})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "v=0 a", pc.remoteDesc.SDP)
}

func TestSessionCandidatesQueuedUntilRemoteDescription(t *testing.T) {
	pc := &fakePC{}
	s := newSession(RolePublisher, "student-1", 1, pc)

	require.NoError(t, s.attachTracks([]LocalTrack{displayTrack()}))
	_, err := s.createOffer()
	require.NoError(t, err)
	s.markOfferSent()

	first := ICECandidate{Candidate: "candidate:1"}
	second := ICECandidate{Candidate: "candidate:2"}
	s.addRemoteCandidate(first)
	s.addRemoteCandidate(second)
	assert.Empty(t, pc.appliedCandidates())

	_, err = s.applyAnswer(Description{Type: "answer", SDP: "v=0 a"})
	require.NoError(t, err)

	applied := pc.appliedCandidates()
	require.Len(t, applied, 2)
	assert.Equal(t, "candidate:1", applied[0].Candidate)
	assert.Equal(t, "candidate:2", applied[1].Candidate)

	// Later candidates go straight through.
	s.addRemoteCandidate(ICECandidate{Candidate: "candidate:3"})
	assert.Len(t, pc.appliedCandidates(), 3)
}

func TestSessionBadCandidateDoesNotFail(t *testing.T) {
	pc := &fakePC{addCandidateErr: errors.New("parse error")}
	s := newSession(RolePublisher, "student-1", 1, pc)

	require.NoError(t, s.attachTracks([]LocalTrack{displayTrack()}))
	_, err := s.createOffer()
	require.NoError(t, err)
	s.markOfferSent()

	_, err = s.applyAnswer(Description{Type: "answer", SDP: "v=0 a"})
	require.NoError(t, err)

	s.addRemoteCandidate(ICECandidate{Candidate: "garbage"})
	assert.Equal(t, StateAnswerPending, s.State())
}

func TestSessionDisconnectGrace(t *testing.T) {
	pc := &fakePC{}
	s := newSession(RolePublisher, "student-1", 1, pc)
	s.disconnectGrace = 20 * time.Millisecond

	failed := make(chan error, 1)
	s.onFailed = func(_ *Session, err error) { failed <- err }

	require.NoError(t, s.attachTracks([]LocalTrack{displayTrack()}))
	_, err := s.createOffer()
	require.NoError(t, err)
	s.markOfferSent()
	_, err = s.applyAnswer(Description{Type: "answer", SDP: "v=0 a"})
	require.NoError(t, err)
	pc.transportUp()
	require.Equal(t, StateConnected, s.State())

	// A blip shorter than the grace period is tolerated.
	pc.transportState(ConnectionStateDisconnected)
	pc.transportUp()
	select {
	case err := <-failed:
		t.Fatalf("session failed after recovered blip: %v", err)
	case <-time.After(60 * time.Millisecond):
	}
	assert.Equal(t, StateConnected, s.State())

	// One that outlives the grace period is not.
	pc.transportState(ConnectionStateDisconnected)
	select {
	case err := <-failed:
		assert.ErrorIs(t, err, ErrConnectionFailed)
	case <-time.After(time.Second):
		t.Fatal("session did not fail after grace period")
	}
	assert.Equal(t, StateFailed, s.State())
}

func TestSessionTransportFailure(t *testing.T) {
	pc := &fakePC{}
	s := newSession(RoleSubscriber, "student-1", 1, pc)

	var failed error
	s.onFailed = func(_ *Session, err error) { failed = err }

	require.NoError(t, s.applyOffer(Description{Type: "offer", SDP: "v=0 o"}))

	pc.transportState(ConnectionStateFailed)
	assert.Equal(t, StateFailed, s.State())
	assert.ErrorIs(t, failed, ErrConnectionFailed)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	pc := &fakePC{}
	s := newSession(RolePublisher, "student-1", 1, pc)

	s.Close()
	s.Close()
	assert.Equal(t, StateClosed, s.State())
	assert.True(t, pc.isClosed())

	// Late signaling against a closed session is a no-op.
	applied, err := s.applyAnswer(Description{Type: "answer", SDP: "v=0 a"})
	assert.NoError(t, err)
	assert.False(t, applied)
	s.addRemoteCandidate(ICECandidate{Candidate: "candidate:1"})
	assert.Empty(t, pc.appliedCandidates())
}

func TestSessionNoBackwardTransitions(t *testing.T) {
	pc := &fakePC{}
	s := newSession(RolePublisher, "student-1", 1, pc)

	require.NoError(t, s.attachTracks([]LocalTrack{displayTrack()}))
	_, err := s.createOffer()
	require.NoError(t, err)
	s.markOfferSent()

	// A second offer attempt on the same session is refused.
	_, err = s.createOffer()
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, StateOfferSent, s.State())
}

func TestShareErrorWrapsSentinel(t *testing.T) {
	err := newError("acquire capture", ErrCaptureDenied)
	assert.ErrorIs(t, err, ErrCaptureDenied)
	assert.Contains(t, err.Error(), "acquire capture")
}

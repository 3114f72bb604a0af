package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() (*Registry, *fakeFactory, *fakeSignaller, *Aggregator) {
	factory := &fakeFactory{}
	signaller := &fakeSignaller{}
	aggregator := NewAggregator()
	return NewRegistry(factory, signaller, aggregator), factory, signaller, aggregator
}

func testOffer() Description {
	return Description{Type: "offer", SDP: "v=0 o"}
}

func TestHandleOfferAnswersAndAddsTile(t *testing.T) {
	r, factory, signaller, aggregator := newTestRegistry()

	r.HandleOffer("ROOM01", "student-1", 1, testOffer())

	require.Equal(t, 1, signaller.answerCount())
	answer := signaller.lastAnswer()
	assert.Equal(t, "ROOM01", answer.roomID)
	assert.Equal(t, "student-1", answer.participantID)
	assert.Equal(t, uint64(1), answer.generation)

	assert.Equal(t, 1, r.SessionCount())
	assert.Equal(t, StateAnswerPending, r.ParticipantState("student-1"))

	pc := factory.last()
	pc.transportUp()
	pc.emitTrack(&fakeRemoteTrack{id: "video0", streamID: "student-1"})

	assert.Equal(t, StateConnected, r.ParticipantState("student-1"))
	require.Equal(t, 1, aggregator.Len())
	assert.Equal(t, "student-1", aggregator.List()[0].ParticipantID)
}

func TestHandleOfferOnePerParticipant(t *testing.T) {
	r, factory, signaller, aggregator := newTestRegistry()

	r.HandleOffer("ROOM01", "student-1", 1, testOffer())
	first := factory.last()
	first.transportUp()
	first.emitTrack(&fakeRemoteTrack{id: "video0", streamID: "student-1"})
	require.Equal(t, 1, aggregator.Len())

	// A reconnect offer with the same generation replaces the session.
	r.HandleOffer("ROOM01", "student-1", 1, testOffer())
	second := factory.last()

	assert.True(t, first.isClosed())
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, r.SessionCount())
	assert.Equal(t, 2, signaller.answerCount())

	// A track surfacing on the dead session must not resurrect it.
	first.emitTrack(&fakeRemoteTrack{id: "video0", streamID: "stale"})
	second.transportUp()
	second.emitTrack(&fakeRemoteTrack{id: "video0", streamID: "student-1"})
	assert.Equal(t, 1, aggregator.Len())
	assert.Equal(t, StateConnected, r.ParticipantState("student-1"))
}

func TestHandleOfferDiscardsStaleGeneration(t *testing.T) {
	r, factory, signaller, _ := newTestRegistry()

	r.HandleOffer("ROOM01", "student-1", 3, testOffer())
	current := factory.last()

	r.HandleOffer("ROOM01", "student-1", 2, testOffer())

	assert.Equal(t, 1, signaller.answerCount())
	assert.Equal(t, 1, factory.count())
	assert.False(t, current.isClosed())
}

func TestHandleCandidateRouting(t *testing.T) {
	r, factory, _, _ := newTestRegistry()

	// No session yet: dropped, not queued anywhere.
	r.HandleCandidate("student-1", 1, ICECandidate{Candidate: "candidate:early"})

	r.HandleOffer("ROOM01", "student-1", 2, testOffer())
	pc := factory.last()

	r.HandleCandidate("student-1", 2, ICECandidate{Candidate: "candidate:ok"})
	r.HandleCandidate("student-1", 1, ICECandidate{Candidate: "candidate:stale"})

	applied := pc.appliedCandidates()
	require.Len(t, applied, 1)
	assert.Equal(t, "candidate:ok", applied[0].Candidate)
}

func TestRemoveParticipant(t *testing.T) {
	r, factory, _, aggregator := newTestRegistry()

	var gone []string
	r.OnParticipantState = func(id string, state State) {
		if state == StateClosed {
			gone = append(gone, id)
		}
	}

	r.HandleOffer("ROOM01", "student-1", 1, testOffer())
	r.HandleOffer("ROOM01", "student-2", 1, testOffer())
	pc := factory.pcs[0]
	pc.transportUp()
	pc.emitTrack(&fakeRemoteTrack{id: "video0", streamID: "student-1"})
	require.Equal(t, 1, aggregator.Len())

	r.RemoveParticipant("student-1")
	r.RemoveParticipant("student-1")

	assert.True(t, pc.isClosed())
	assert.Equal(t, 0, aggregator.Len())
	assert.Equal(t, 1, r.SessionCount())
	assert.Equal(t, []string{"student-1"}, gone)
	assert.Equal(t, StateClosed, r.ParticipantState("student-1"))

	// The other student is untouched.
	assert.Equal(t, StateAnswerPending, r.ParticipantState("student-2"))
}

func TestSessionFailureIsIsolated(t *testing.T) {
	r, factory, _, aggregator := newTestRegistry()

	r.HandleOffer("ROOM01", "student-1", 1, testOffer())
	r.HandleOffer("ROOM01", "student-2", 1, testOffer())
	first := factory.pcs[0]
	second := factory.pcs[1]

	first.transportUp()
	first.emitTrack(&fakeRemoteTrack{id: "video0", streamID: "student-1"})
	second.transportUp()
	second.emitTrack(&fakeRemoteTrack{id: "video0", streamID: "student-2"})
	require.Equal(t, 2, aggregator.Len())

	first.transportState(ConnectionStateFailed)

	assert.Equal(t, 1, r.SessionCount())
	assert.Equal(t, StateClosed, r.ParticipantState("student-1"))
	assert.Equal(t, StateConnected, r.ParticipantState("student-2"))

	require.Equal(t, 1, aggregator.Len())
	assert.Equal(t, "student-2", aggregator.List()[0].ParticipantID)
}

func TestTeardownAll(t *testing.T) {
	r, factory, _, aggregator := newTestRegistry()

	r.HandleOffer("ROOM01", "student-1", 1, testOffer())
	r.HandleOffer("ROOM01", "student-2", 1, testOffer())
	for _, pc := range factory.pcs {
		pc.transportUp()
	}

	r.TeardownAll()

	assert.Equal(t, 0, r.SessionCount())
	assert.Equal(t, 0, aggregator.Len())
	for _, pc := range factory.pcs {
		assert.True(t, pc.isClosed())
	}
}

func TestHandleOfferRejectedByPeer(t *testing.T) {
	r, factory, signaller, aggregator := newTestRegistry()

	var failed []string
	r.OnParticipantState = func(id string, state State) {
		if state == StateFailed {
			failed = append(failed, id)
		}
	}

	factory.nextPC = &fakePC{setRemoteErr: assert.AnError}
	r.HandleOffer("ROOM01", "student-1", 1, testOffer())

	// The broken session is discarded, no answer goes out.
	assert.Equal(t, 0, signaller.answerCount())
	assert.Equal(t, 0, r.SessionCount())
	assert.Equal(t, 0, aggregator.Len())
	assert.Equal(t, []string{"student-1"}, failed)
	assert.True(t, factory.last().isClosed())

	// The same student can offer again afterwards.
	r.HandleOffer("ROOM01", "student-1", 2, testOffer())
	assert.Equal(t, 1, signaller.answerCount())
	assert.Equal(t, 1, r.SessionCount())
}

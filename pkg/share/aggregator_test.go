package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregatorOrderIsStable(t *testing.T) {
	a := NewAggregator()

	a.Upsert("alice", &fakeRemoteTrack{id: "v0", streamID: "alice"})
	a.Upsert("bob", &fakeRemoteTrack{id: "v0", streamID: "bob"})
	a.Upsert("carol", &fakeRemoteTrack{id: "v0", streamID: "carol"})

	// Replacing a stream keeps the original position.
	a.Upsert("alice", &fakeRemoteTrack{id: "v1", streamID: "alice"})

	entries := a.List()
	require.Len(t, entries, 3)
	assert.Equal(t, "alice", entries[0].ParticipantID)
	assert.Equal(t, "bob", entries[1].ParticipantID)
	assert.Equal(t, "carol", entries[2].ParticipantID)
	assert.Equal(t, "v1", entries[0].Stream.ID())
}

func TestAggregatorRemove(t *testing.T) {
	a := NewAggregator()

	a.Upsert("alice", &fakeRemoteTrack{id: "v0", streamID: "alice"})
	a.Upsert("bob", &fakeRemoteTrack{id: "v0", streamID: "bob"})

	a.Remove("alice")
	a.Remove("alice")
	a.Remove("nobody")

	entries := a.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].ParticipantID)

	// Rejoining goes to the back of the grid.
	a.Upsert("alice", &fakeRemoteTrack{id: "v2", streamID: "alice"})
	entries = a.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[1].ParticipantID)
}

func TestAggregatorOnChange(t *testing.T) {
	a := NewAggregator()

	changes := 0
	a.OnChange = func() { changes++ }

	a.Upsert("alice", &fakeRemoteTrack{id: "v0", streamID: "alice"})
	a.Remove("alice")
	a.Remove("alice")

	// The no-op removal does not fire a refresh.
	assert.Equal(t, 2, changes)
	assert.Equal(t, 0, a.Len())
}

func TestAggregatorListIsSnapshot(t *testing.T) {
	a := NewAggregator()
	a.Upsert("alice", &fakeRemoteTrack{id: "v0", streamID: "alice"})

	entries := a.List()
	a.Remove("alice")

	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].ParticipantID)
}

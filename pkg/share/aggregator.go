package share

import "sync"

// StreamEntry is one render-ready tile: a publisher and its live stream.
type StreamEntry struct {
	ParticipantID string
	Stream        RemoteTrack
}

// Aggregator keeps the most recent live stream per publisher. Ordering is
// insertion order of first appearance and survives replacement, so the
// viewer's layout does not jitter when a student reconnects.
type Aggregator struct {
	mu      sync.RWMutex
	entries map[string]RemoteTrack
	order   []string

	// OnChange, if set, is called after every mutation. UI refresh hook.
	OnChange func()
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		entries: make(map[string]RemoteTrack),
	}
}

// Upsert replaces any existing entry for the participant. Last write wins; a
// reconnect must not leave two tiles for the same student.
func (a *Aggregator) Upsert(participantID string, stream RemoteTrack) {
	a.mu.Lock()
	if _, exists := a.entries[participantID]; !exists {
		a.order = append(a.order, participantID)
	}
	a.entries[participantID] = stream
	a.mu.Unlock()

	a.notify()
}

// Remove deletes the entry. No-op if absent.
func (a *Aggregator) Remove(participantID string) {
	a.mu.Lock()
	if _, exists := a.entries[participantID]; !exists {
		a.mu.Unlock()
		return
	}
	delete(a.entries, participantID)
	for i, id := range a.order {
		if id == participantID {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	a.mu.Unlock()

	a.notify()
}

// List returns a stable snapshot in first-appearance order.
func (a *Aggregator) List() []StreamEntry {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]StreamEntry, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, StreamEntry{ParticipantID: id, Stream: a.entries[id]})
	}
	return out
}

// Len returns the number of live tiles.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

func (a *Aggregator) notify() {
	if a.OnChange != nil {
		a.OnChange()
	}
}

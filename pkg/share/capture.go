package share

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// CaptureKindDisplay requests a full-display capture source.
const CaptureKindDisplay = "display"

// CaptureSource is an acquired set of outbound media tracks.
type CaptureSource interface {
	Tracks() []LocalTrack
	// Stop releases the underlying capture. Safe to call more than once.
	Stop()
}

// Capture acquires media sources from the platform. The platform decides
// whether to grant the request at all and what exactly gets captured; the
// publisher validates the result against the requested kind.
type Capture interface {
	Acquire(kind string) (CaptureSource, error)
}

// isFullDisplay reports whether a track label declares a full-display
// capture. Platform captures label tracks "display:<name>"; window and tab
// captures use other prefixes.
func isFullDisplay(t LocalTrack) bool {
	return t.Kind() == "video" && strings.HasPrefix(t.Label(), CaptureKindDisplay)
}

// validateDisplayScope checks that the source carries at least one video
// track and that every video track is display-scoped.
func validateDisplayScope(source CaptureSource) error {
	video := 0
	for _, t := range source.Tracks() {
		if t.Kind() != "video" {
			continue
		}
		video++
		if !isFullDisplay(t) {
			return ErrCaptureScopeInvalid
		}
	}
	if video == 0 {
		return ErrCaptureScopeInvalid
	}
	return nil
}

// SampleTrack wraps a pion sample track with a capture label.
type SampleTrack struct {
	track *webrtc.TrackLocalStaticSample
	label string

	mu      sync.Mutex
	stopped bool
}

// NewSampleTrack creates a local video track for the given capture label.
func NewSampleTrack(mimeType, id, streamID, label string) (*SampleTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: mimeType},
		id,
		streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create video track: %w", err)
	}
	return &SampleTrack{track: track, label: label}, nil
}

func (t *SampleTrack) ID() string    { return t.track.ID() }
func (t *SampleTrack) Kind() string  { return t.track.Kind().String() }
func (t *SampleTrack) Label() string { return t.label }

// WriteSample feeds one encoded frame into the track. Frames written after
// Stop are dropped.
func (t *SampleTrack) WriteSample(sample media.Sample) error {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped {
		return nil
	}
	return t.track.WriteSample(sample)
}

func (t *SampleTrack) stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// DisplayCapture is a Capture producing one display-scoped sample track per
// acquisition. The encoded frames come from whatever pipeline the platform
// wires into the returned track; this type only owns track lifecycle.
type DisplayCapture struct {
	MimeType string // defaults to VP8
	Display  string // defaults to "main"
}

// Acquire creates the display track. Requests for anything other than a
// display capture are refused.
func (c *DisplayCapture) Acquire(kind string) (CaptureSource, error) {
	if kind != CaptureKindDisplay {
		return nil, ErrCaptureDenied
	}

	mimeType := c.MimeType
	if mimeType == "" {
		mimeType = webrtc.MimeTypeVP8
	}
	display := c.Display
	if display == "" {
		display = "main"
	}

	track, err := NewSampleTrack(mimeType, "video0", "examshare-display", CaptureKindDisplay+":"+display)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureDenied, err)
	}
	return &sampleSource{tracks: []*SampleTrack{track}}, nil
}

type sampleSource struct {
	tracks []*SampleTrack
}

func (s *sampleSource) Tracks() []LocalTrack {
	out := make([]LocalTrack, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *sampleSource) Stop() {
	for _, t := range s.tracks {
		t.stop()
	}
}

package exam

import (
	"errors"
	"sync"
)

var (
	// ErrExamEnded is returned for submissions after the exam ended.
	ErrExamEnded = errors.New("exam ended, no more submissions")

	// ErrAlreadySubmitted is returned for a second submission by the same
	// student. The first one stands.
	ErrAlreadySubmitted = errors.New("solution already submitted")
)

// Room holds the exam state for one room: the current task, the countdown,
// and who has submitted. The relay owns one per room code.
type Room struct {
	mu        sync.Mutex
	taskText  string
	timeLimit int // seconds, 0 means no limit
	ended     bool
	submitted map[string]bool
	students  map[string]string // participantID -> display name
}

// NewRoom creates an empty exam room.
func NewRoom() *Room {
	return &Room{
		submitted: make(map[string]bool),
		students:  make(map[string]string),
	}
}

// SetTask replaces the current task and resets the exam: the ended flag and
// the submission set are cleared.
func (r *Room) SetTask(taskText string, timeLimit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskText = taskText
	r.timeLimit = timeLimit
	r.ended = false
	r.submitted = make(map[string]bool)
}

// Task returns the current task and time limit.
func (r *Room) Task() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.taskText, r.timeLimit
}

// End marks the exam ended.
func (r *Room) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ended = true
}

// Ended reports whether the exam has ended.
func (r *Room) Ended() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ended
}

// Submit records one submission. The exam-ended guard and the
// one-submission-per-student guard both apply.
func (r *Room) Submit(participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return ErrExamEnded
	}
	if r.submitted[participantID] {
		return ErrAlreadySubmitted
	}
	r.submitted[participantID] = true
	return nil
}

// AddStudent registers a student in the roster.
func (r *Room) AddStudent(participantID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students[participantID] = name
}

// RemoveStudent drops a student from the roster. No-op if absent.
func (r *Room) RemoveStudent(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.students, participantID)
}

// StudentName returns the display name for a participant id.
func (r *Room) StudentName(participantID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.students[participantID]
}

// StudentCount returns the roster size.
func (r *Room) StudentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.students)
}

package signal

// Message is a wire message on the room relay. One flat JSON shape covers
// room lifecycle, exam events, screen-share signaling and the console; the
// relay has no ordering or delivery guarantees across types, so everything a
// handler needs rides in the message itself.
type Message struct {
	Type string `json:"type"`
	Room string `json:"room,omitempty"` // room code
	Role string `json:"role,omitempty"` // teacher or student

	// Identity
	ParticipantID string `json:"participantId,omitempty"`
	Name          string `json:"name,omitempty"`

	// Screen-share negotiation
	Generation uint64 `json:"generation,omitempty"` // negotiation attempt tag
	SDPType    string `json:"sdpType,omitempty"`    // offer or answer
	SDP        string `json:"sdp,omitempty"`
	Candidate  string `json:"candidate,omitempty"` // ICE candidate JSON
	From       string `json:"from,omitempty"`      // publisher or viewer
	To         string `json:"to,omitempty"`

	// Exam events
	TaskText  string `json:"taskText,omitempty"`
	TimeLimit int    `json:"timeLimit,omitempty"`
	Code      string `json:"code,omitempty"`
	Language  string `json:"language,omitempty"`
	TaskID    string `json:"taskId,omitempty"`

	// Console
	Data string `json:"data,omitempty"` // output chunk
	Line string `json:"line,omitempty"` // input line

	Error string `json:"error,omitempty"`
}

// Roles on the relay.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Screen-share routing values for Message.From / Message.To.
const (
	EndpointPublisher = "publisher"
	EndpointViewer    = "viewer"
)

// Message types.
const (
	// Room lifecycle
	TypeCreateRoom    = "create_room"
	TypeRoomCreated   = "room_created"
	TypeJoinRoom      = "join_room"
	TypeJoined        = "joined"
	TypeStudentJoined = "student_joined"
	TypeStudentLeft   = "student_left"
	TypeCloseRoom     = "close_room"
	TypeRoomClosed    = "room_closed"

	// Exam
	TypeSendTask          = "send_task"
	TypeNewTask           = "new_task"
	TypeEndExam           = "end_exam"
	TypeExamEnded         = "exam_ended"
	TypeSubmitSolution    = "submit_solution"
	TypeSolutionSubmitted = "solution_submitted"

	// Screen share
	TypeScreenShareOffer  = "screen_share_offer"
	TypeScreenShareAnswer = "screen_share_answer"
	TypeICECandidate      = "ice_candidate"

	// Console. Output keeps its historical event name for client
	// compatibility regardless of language.
	TypeStartSession      = "start_session"
	TypeSessionStarted    = "session_started"
	TypeConsoleOutput     = "python_output"
	TypeSendInput         = "send_input"
	TypeProcessEnded      = "process_ended"
	TypeDisconnectSession = "disconnect_session"

	TypeSessionError = "session_error"
)

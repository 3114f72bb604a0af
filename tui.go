package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"examshare/pkg/share"
	sig "examshare/pkg/signal"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10"))

	normalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("7"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	roomStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("13"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14"))

	liveBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("10")).
			Padding(0, 1)

	idleBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	failedBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(0, 1)
)

// Messages
type studentJoinedMsg struct {
	participantID string
	name          string
}

type studentLeftMsg struct {
	participantID string
	name          string
}

type submissionMsg struct {
	participantID string
	name          string
}

type participantStateMsg struct {
	participantID string
	state         share.State
}

type tilesChangedMsg struct{}

type relayErrorMsg struct {
	err string
}

type relayLostMsg struct{}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// studentInfo is what the grid shows per student.
type studentInfo struct {
	name      string
	submitted bool
}

// viewerModel is the teacher's monitoring TUI.
type viewerModel struct {
	config     Config
	room       string
	client     *sig.Client
	registry   *share.Registry
	aggregator *share.Aggregator

	students map[string]studentInfo
	joined   []string // participant ids in join order

	taskText  string
	timeLimit int
	examEnded bool

	lastError string
	relayLost bool
	startTime time.Time

	width  int
	height int
}

func newViewerModel(config Config, room string, client *sig.Client, registry *share.Registry, aggregator *share.Aggregator) viewerModel {
	return viewerModel{
		config:     config,
		room:       room,
		client:     client,
		registry:   registry,
		aggregator: aggregator,
		students:   make(map[string]studentInfo),
		taskText:   config.TaskText,
		timeLimit:  config.TimeLimit,
		startTime:  time.Now(),
	}
}

func (m viewerModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.SetWindowTitle("ExamShare - Room "+m.room),
	)
}

func (m viewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tickCmd()

	case studentJoinedMsg:
		if _, known := m.students[msg.participantID]; !known {
			m.joined = append(m.joined, msg.participantID)
		}
		info := m.students[msg.participantID]
		info.name = msg.name
		m.students[msg.participantID] = info
		return m, nil

	case studentLeftMsg:
		delete(m.students, msg.participantID)
		for i, id := range m.joined {
			if id == msg.participantID {
				m.joined = append(m.joined[:i], m.joined[i+1:]...)
				break
			}
		}
		return m, nil

	case submissionMsg:
		info := m.students[msg.participantID]
		if info.name == "" {
			info.name = msg.name
		}
		info.submitted = true
		m.students[msg.participantID] = info
		return m, nil

	case participantStateMsg, tilesChangedMsg:
		// The grid reads the registry and aggregator directly; the message
		// only forces a repaint.
		return m, nil

	case relayErrorMsg:
		m.lastError = msg.err
		return m, nil

	case relayLostMsg:
		m.relayLost = true
		m.lastError = "lost connection to relay"
		return m, nil
	}

	return m, nil
}

func (m viewerModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "e":
		if !m.examEnded && !m.relayLost {
			if err := m.client.Send(sig.Message{Type: sig.TypeEndExam, Room: m.room}); err != nil {
				m.lastError = err.Error()
			} else {
				m.examEnded = true
			}
		}
		return m, nil

	case "x", "q", "ctrl+c":
		if !m.relayLost {
			if err := m.client.Send(sig.Message{Type: sig.TypeCloseRoom, Room: m.room}); err != nil {
				m.lastError = err.Error()
			}
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m viewerModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ExamShare"))
	b.WriteString(dimStyle.Render(" - Exam Monitoring"))
	b.WriteString("\n\n")

	b.WriteString(m.renderStatus())
	b.WriteString("\n")

	b.WriteString(m.renderGrid())

	if m.taskText != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render("Task: "))
		b.WriteString(normalStyle.Render(truncate(m.taskText, 70)))
		b.WriteString("\n")
	}

	if m.lastError != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.lastError))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())

	return b.String()
}

func (m viewerModel) renderStatus() string {
	var b strings.Builder

	if m.relayLost {
		b.WriteString(errorStyle.Render("[OFFLINE]"))
	} else if m.examEnded {
		b.WriteString(errorStyle.Render("[EXAM ENDED]"))
	} else {
		b.WriteString(selectedStyle.Render("[LIVE]"))
	}
	b.WriteString("  ")

	b.WriteString(statusStyle.Render("Room: "))
	b.WriteString(roomStyle.Render(m.room))
	b.WriteString("  ")

	b.WriteString(statusStyle.Render("Students: "))
	b.WriteString(normalStyle.Render(fmt.Sprintf("%d", len(m.students))))
	b.WriteString("  ")

	b.WriteString(statusStyle.Render("Sharing: "))
	b.WriteString(normalStyle.Render(fmt.Sprintf("%d", m.aggregator.Len())))
	b.WriteString("  ")

	elapsed := time.Since(m.startTime).Round(time.Second)
	b.WriteString(dimStyle.Render(elapsed.String()))
	b.WriteString("\n")

	return b.String()
}

// renderGrid draws one tile per joined student, ordered by join time, with
// the live screen-share state from the registry.
func (m viewerModel) renderGrid() string {
	if len(m.joined) == 0 {
		return dimStyle.Render("Waiting for students to join room " + m.room + "...")
	}

	perRow := m.width / 24
	if perRow < 1 {
		perRow = 1
	}

	var rows []string
	var row []string
	for _, id := range m.joined {
		row = append(row, m.renderTile(id))
		if len(row) == perRow {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}

	return strings.Join(rows, "\n")
}

func (m viewerModel) renderTile(participantID string) string {
	info := m.students[participantID]
	name := info.name
	if name == "" {
		name = participantID
	}

	state := m.registry.ParticipantState(participantID)

	var body strings.Builder
	body.WriteString(normalStyle.Render(truncate(name, 18)))
	body.WriteString("\n")

	switch state {
	case share.StateConnected:
		body.WriteString(selectedStyle.Render("sharing"))
	case share.StateFailed:
		body.WriteString(errorStyle.Render("failed"))
	case share.StateClosed, share.StateIdle:
		body.WriteString(dimStyle.Render("no stream"))
	default:
		body.WriteString(statusStyle.Render("connecting"))
	}

	if info.submitted {
		body.WriteString(dimStyle.Render("  "))
		body.WriteString(selectedStyle.Render("✓ submitted"))
	}

	switch state {
	case share.StateConnected:
		return liveBoxStyle.Render(body.String())
	case share.StateFailed:
		return failedBoxStyle.Render(body.String())
	default:
		return idleBoxStyle.Render(body.String())
	}
}

func (m viewerModel) renderHelp() string {
	sep := dimStyle.Render(" | ")
	return helpStyle.Render("") +
		keyStyle.Render("e") + dimStyle.Render(" end exam") + sep +
		keyStyle.Render("x") + dimStyle.Render(" close room") + sep +
		keyStyle.Render("q") + dimStyle.Render(" quit")
}

// truncate shortens a string to maxLen, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

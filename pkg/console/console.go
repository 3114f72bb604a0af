// Package console runs short-lived interactive code-execution sessions, one
// per connected client: the submitted source goes into a scratch directory,
// the language's toolchain runs it, and output streams back in chunks while
// the client can feed stdin lines.
package console

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Event is one report from a running session.
type Event struct {
	Type string // EventStarted, EventOutput, EventEnded or EventError
	Data string
}

const (
	EventStarted = "started"
	EventOutput  = "output"
	EventEnded   = "ended"
	EventError   = "error"
)

var (
	ErrNoCode              = errors.New("no code provided")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// PrepopulateSQL is the path of an optional SQL script loaded into every sql
// session's database before the user's code runs.
var PrepopulateSQL = "prepopulate.sql"

// Manager owns all live sessions, keyed by client id. Starting a new session
// for an id tears down the previous one first.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*session)}
}

// Start launches a session for the client. Events stream through emit from a
// background goroutine until the process ends or the session is stopped.
func (m *Manager) Start(id, code, language string, emit func(Event)) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrNoCode
	}
	language = strings.ToLower(strings.TrimSpace(language))
	if !Supported(language) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}

	m.Stop(id)

	s, err := newSession(id, code, language, emit, func() { m.remove(id) })
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	emit(Event{Type: EventStarted})
	return nil
}

// Input writes one line to the session's stdin. Reports through the
// session's emit when there is nothing to write to.
func (m *Manager) Input(id, line string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	s.input(line)
}

// Active reports whether the client has a running session.
func (m *Manager) Active(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

// Stop kills the session and releases its scratch directory. Idempotent.
func (m *Manager) Stop(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.stop()
	}
}

// CloseAll stops every session. Called on relay shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

type session struct {
	id      string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	tempDir string
	emit    func(Event)
	cleanup func()

	mu      sync.Mutex
	closing bool
}

func newSession(id, code, language string, emit func(Event), cleanup func()) (*session, error) {
	prefix := "user_session_"
	if language == "sql" {
		prefix = "sql_session_"
	}
	tempDir, err := os.MkdirTemp("", prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}

	runCmd, err := prepareCode(tempDir, code, language)
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, err
	}

	shellCmd := fmt.Sprintf("cd %q && env TERM=dumb %s", tempDir, runCmd)
	cmd := exec.Command("/bin/bash", "-c", shellCmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to open stdin: %w", err)
	}

	// stdout and stderr share one pipe so the client sees output
	// interleaved the way a terminal would.
	pr, pw, err := os.Pipe()
	if err != nil {
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to open output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		os.RemoveAll(tempDir)
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	pw.Close()

	s := &session{
		id:      id,
		cmd:     cmd,
		stdin:   stdin,
		tempDir: tempDir,
		emit:    emit,
		cleanup: cleanup,
	}
	go s.readOutput(pr)
	return s, nil
}

// prepareCode writes the source file and returns the run command.
func prepareCode(dir, code, language string) (string, error) {
	if language == "sql" {
		if _, err := os.Stat(PrepopulateSQL); err == nil {
			seed := exec.Command("/bin/bash", "-c",
				fmt.Sprintf("cd %q && sqlite3 ephemeral.db < %q", dir, PrepopulateSQL))
			if err := seed.Run(); err != nil {
				log.Printf("console: sql prepopulate failed: %v", err)
			}
		}
		if err := os.WriteFile(filepath.Join(dir, "user_code.sql"), []byte(code), 0644); err != nil {
			return "", fmt.Errorf("failed to write code: %w", err)
		}
		return "sqlite3 ephemeral.db < user_code.sql", nil
	}

	fileName := "user_code." + langExtensions[language]
	runCmd := langCommands[language]

	if language == "java" {
		if cname := findPublicClassName(code); cname != "" {
			fileName = cname + ".java"
			runCmd = fmt.Sprintf("javac %q && java %q", fileName, cname)
		} else {
			runCmd = "javac user_code.java && java user_code"
		}
	}

	if err := os.WriteFile(filepath.Join(dir, fileName), []byte(code), 0644); err != nil {
		return "", fmt.Errorf("failed to write code: %w", err)
	}
	return runCmd, nil
}

func (s *session) readOutput(pr *os.File) {
	buf := make([]byte, 1024)
	for {
		n, err := pr.Read(buf)
		if n > 0 && !s.isClosing() {
			s.emit(Event{Type: EventOutput, Data: string(buf[:n])})
		}
		if err != nil {
			break
		}
	}
	pr.Close()
	s.cmd.Wait()

	if !s.isClosing() {
		s.emit(Event{Type: EventEnded})
	}
	s.stop()
	s.cleanup()
}

func (s *session) input(line string) {
	if s.isClosing() {
		return
	}
	if _, err := io.WriteString(s.stdin, line+"\n"); err != nil {
		log.Printf("console %s: input: %v", s.id, err)
	}
}

func (s *session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// stop kills the process and removes the scratch directory. Safe to call
// from any goroutine, any number of times.
func (s *session) stop() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	s.mu.Unlock()

	s.stdin.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	os.RemoveAll(s.tempDir)
}

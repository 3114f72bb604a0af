package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"examshare/pkg/exam"
	"examshare/pkg/share"
	sig "examshare/pkg/signal"
)

// DefaultSignalServer is the default relay for room signaling
const DefaultSignalServer = "ws://localhost:8000/ws"

// Config holds runtime configuration
type Config struct {
	ServeMode bool
	WatchMode bool
	ShareMode bool
	Port      int

	Room      string
	Name      string
	StudentID string
	SignalURL string

	TaskText  string
	TimeLimit int

	// TURN server configuration
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	Help bool
}

func parseFlags(saved UserSettings) Config {
	config := Config{}

	flag.BoolVar(&config.ServeMode, "serve", false, "Run the signal relay server")
	flag.BoolVar(&config.ServeMode, "s", false, "Run the signal relay server (shorthand)")

	flag.IntVar(&config.Port, "port", 8000, "Relay server port")
	flag.IntVar(&config.Port, "p", 8000, "Relay server port (shorthand)")

	flag.BoolVar(&config.WatchMode, "watch", false, "Watch a room as the teacher")
	flag.BoolVar(&config.ShareMode, "share", false, "Share your screen as a student")

	flag.StringVar(&config.Room, "room", "", "Room code (students; teachers rejoin an existing room)")
	flag.StringVar(&config.Name, "name", saved.Name, "Display name")
	flag.StringVar(&config.StudentID, "id", saved.StudentID, "Stable student id (assigned by the relay when empty)")
	flag.StringVar(&config.SignalURL, "signal", saved.SignalURL, "Relay server URL")

	flag.StringVar(&config.TaskText, "task", "", "Task to broadcast when watching starts")
	flag.IntVar(&config.TimeLimit, "time", 0, "Task time limit in seconds")

	flag.StringVar(&config.TURNServer, "turn", "", "TURN server URL (e.g., turn:turn.example.com:3478)")
	flag.StringVar(&config.TURNUser, "turn-user", "", "TURN server username")
	flag.StringVar(&config.TURNPass, "turn-pass", "", "TURN server password")
	flag.BoolVar(&config.ForceRelay, "force-relay", false, "Force TURN relay (disable direct P2P)")

	flag.BoolVar(&config.Help, "help", false, "Show help")
	flag.BoolVar(&config.Help, "h", false, "Show help (shorthand)")

	flag.Parse()

	if config.SignalURL == "" {
		config.SignalURL = DefaultSignalServer
	}

	return config
}

func printHelp() {
	fmt.Println(`examshare - live exam rooms with student screen sharing

Usage: examshare [options]

Modes:
  --serve, -s            Run the signal relay server
  --watch                Watch a room as the teacher (creates one by default)
  --share                Share your screen as a student (requires --room)

Options:
  --port, -p <port>      Relay server port (default: 8000)
  --room <code>          Room code to join
  --name <name>          Display name
  --id <id>              Stable student id; keep it across reconnects
  --signal <url>         Relay server URL (default: ` + DefaultSignalServer + `)
  --task <text>          Task to broadcast when watching starts
  --time <seconds>       Task time limit
  --help, -h             Show help

Network Options:
  --turn <url>           TURN server URL (e.g., turn:turn.example.com:3478)
  --turn-user <user>     TURN server username
  --turn-pass <pass>     TURN server password
  --force-relay          Force TURN relay (disable direct P2P connections)

Environment:
  DATABASE_URL           Postgres DSN; when set, --serve persists submissions

Teacher TUI Controls:
  e              End the exam
  x              Close the room
  q              Quit (closes the room)`)
}

func main() {
	// Optional .env next to the binary; absence is fine.
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("skipping .env: %v", err)
	}

	settings, err := LoadSettings()
	if err != nil {
		log.Printf("settings unavailable: %v", err)
	}

	config := parseFlags(settings)

	if config.Help {
		printHelp()
		return
	}

	switch {
	case config.ServeMode:
		runSignalServer(config.Port)

	case config.ShareMode:
		if config.Room == "" {
			log.Fatal("--share requires --room")
		}
		rememberSettings(config)
		if err := runStudent(config); err != nil {
			log.Fatalf("share error: %v", err)
		}

	case config.WatchMode:
		rememberSettings(config)
		if err := runTeacher(config); err != nil {
			log.Fatalf("watch error: %v", err)
		}

	default:
		printHelp()
	}
}

func runSignalServer(port int) {
	server := sig.NewServer()
	defer server.Close()

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		store, err := exam.OpenStore(context.Background(), dsn)
		if err != nil {
			log.Fatalf("Failed to open submission store: %v", err)
		}
		defer store.Close()
		server.SetSubmissionStore(store)
		log.Printf("Submission persistence enabled")
	}

	addr := fmt.Sprintf(":%d", port)
	fmt.Printf("Starting signal relay on http://localhost%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.StartServer(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func iceConfigFromFlags(config Config) share.ICEConfig {
	return share.ICEConfig{
		TURNServer: config.TURNServer,
		TURNUser:   config.TURNUser,
		TURNPass:   config.TURNPass,
		ForceRelay: config.ForceRelay,
	}
}

func rememberSettings(config Config) {
	err := SaveSettings(UserSettings{
		SignalURL: config.SignalURL,
		Name:      config.Name,
		StudentID: config.StudentID,
	})
	if err != nil {
		log.Printf("failed to save settings: %v", err)
	}
}

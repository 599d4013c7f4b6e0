// Command client is a terminal session for pairlink: it opens a WebSocket
// to the server, prints every pushed event, and sends each stdin line as a
// message to the configured peer.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"

	"pairlink/auth"
	"pairlink/domain"
	"pairlink/ws"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
// The token is self-issued from the shared secret, which keeps the lab
// setup to a single .env file.
type Config struct {
	ServerAddress string        `env:"PAIRLINK_SERVER_ADDR,default=localhost:8080"`
	Username      string        `env:"PAIRLINK_USERNAME,required=true"`
	Peer          string        `env:"PAIRLINK_PEER,required=true"`
	TokenSecret   string        `env:"TOKEN_SECRET,required=true"`
	TokenDuration time.Duration `env:"TOKEN_DURATION,default=24h"`
	LogLevel      string        `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run handles the WebSocket client lifecycle, configuration loading, and
// the two pump loops (stdin out, events in).
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Self-issue a session token and dial the server.
	token, err := auth.NewTokens(config.TokenSecret, config.TokenDuration).Generate(config.Username)
	if err != nil {
		return exitConfig, fmt.Errorf("token error: %w", err)
	}

	endpoint := url.URL{
		Scheme:   "ws",
		Host:     config.ServerAddress,
		Path:     "/ws",
		RawQuery: url.Values{"user": {config.Peer}, "token": {token}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	color.Green.Printf(">>> Connected as %s, talking to %s (Ctrl+C to quit)\n",
		config.Username, config.Peer)

	// 4. Event reception loop.
	received := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				received <- err
				return
			}
			printFrame(raw)
		}
	}()

	// 5. Stdin loop: every line becomes a sendMessage frame.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopping client...")
			return exitOK, nil
		case err := <-received:
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("stream error: %w", err)
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			frame, _ := json.Marshal(map[string]string{
				"type":              ws.MsgTypeSendMessage,
				"recipientUsername": config.Peer,
				"content":           line,
			})
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return exitRuntime, fmt.Errorf("write error: %w", err)
			}
		}
	}
}

// printFrame renders one pushed event, colored by type.
func printFrame(raw []byte) {
	var frame struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		color.Red.Printf("?? %s\n", raw)
		return
	}

	switch frame.Type {
	case "newMessage":
		var payload struct {
			Message domain.Message `json:"message"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err == nil {
			color.White.Printf("[%s] %s: %s\n",
				payload.Message.CreatedAt.Format(time.TimeOnly),
				payload.Message.SenderUsername,
				payload.Message.Content)
			return
		}
	case "messageThread":
		var payload struct {
			Messages []domain.Message `json:"messages"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err == nil {
			for _, m := range payload.Messages {
				color.Gray.Printf("[%s] %s: %s\n",
					m.CreatedAt.Format(time.TimeOnly), m.SenderUsername, m.Content)
			}
			return
		}
	case "userIsOnline":
		color.Green.Printf("* %s is online\n", username(frame.Payload))
		return
	case "userIsOffline":
		color.Yellow.Printf("* %s went offline\n", username(frame.Payload))
		return
	case "newMessageAlert":
		var payload struct {
			SenderUsername    string `json:"senderUsername"`
			SenderDisplayName string `json:"senderDisplayName"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err == nil {
			color.Cyan.Printf("* new message from %s (%s)\n",
				payload.SenderDisplayName, payload.SenderUsername)
			return
		}
	case "error":
		var payload struct {
			Reason string `json:"reason"`
		}
		if err := json.Unmarshal(frame.Payload, &payload); err == nil {
			color.Red.Printf("!! %s\n", payload.Reason)
			return
		}
	}
	color.Gray.Printf("%s %s\n", frame.Type, frame.Payload)
}

func username(payload json.RawMessage) string {
	var p struct {
		Username string `json:"username"`
	}
	_ = json.Unmarshal(payload, &p)
	return p.Username
}

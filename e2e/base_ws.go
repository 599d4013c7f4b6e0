package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"

	"pairlink/auth"
	"pairlink/repositories"
	"pairlink/runtime"
	"pairlink/runtime/workers"
	"pairlink/services"
	"pairlink/ws"
)

// BaseWsSuite boots the whole stack in-process for each test: an in-memory
// BadgerDB, the runtime, the supervised delivery worker, and an HTTP server
// carrying the WebSocket endpoint. Scenarios talk to it exactly like a real
// client would, through dialed sockets and JSON frames.
type BaseWsSuite struct {
	suite.Suite
	Config Config

	server *httptest.Server
	db     *badger.DB
	sup    *workers.Supervisor
	tokens auth.Tokens
	conns  []*websocket.Conn
}

// rawFrame is the wire envelope as seen from the client side.
type rawFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

// SetupTest starts a fresh server so scenarios never see each other's state.
func (s *BaseWsSuite) SetupTest() {
	log := logs.GetLoggerFromString("ERROR")

	// 1. In-memory database, wiped with the test
	db, err := badger.Open(badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
	s.db = db

	// 2. Repositories and the seeded directory
	groupRepository := repositories.NewGroupRepository(db, log)
	messageRepository := repositories.NewMessageRepository(db, log)
	userRepository := repositories.NewUserRepository(db)
	s.Require().NoError(groupRepository.WipeConnections())
	for username, knownAs := range map[string]string{
		"alice": "Alice",
		"bob":   "Bob",
		"carol": "Carol",
	} {
		s.Require().NoError(userRepository.CreateUser(username, knownAs))
	}

	// 3. Runtime and the supervised delivery worker
	presence := runtime.NewPresence()
	router := runtime.NewRouter(log, 256)
	s.sup = workers.NewSupervisor(log)
	s.sup.Add(workers.NewDelivery(log, router, 2*time.Second))
	go s.sup.Run(context.Background())

	// 4. Services and transport
	messageService := services.NewMessageService(log, userRepository,
		groupRepository, messageRepository, presence, router)
	sessionService := services.NewSessionService(log, presence,
		groupRepository, messageRepository, router)
	s.tokens = auth.NewTokens(s.Config.TokenSecret, time.Hour)
	handler := ws.NewHandler(log, s.tokens, sessionService, messageService,
		router, 128)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.HandleWS)
	s.server = httptest.NewServer(mux)
}

func (s *BaseWsSuite) TearDownTest() {
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
	s.server.Close()
	s.sup.Stop()
	s.Require().NoError(s.db.Close())
}

// wsSession is one dialed client socket with its pushed frames drained into
// a channel by a dedicated reader goroutine.
type wsSession struct {
	name   string
	conn   *websocket.Conn
	frames chan rawFrame
}

// Dial opens a live session for username viewing the conversation with peer.
func (s *BaseWsSuite) Dial(name, username, peer string) *wsSession {
	// Print a colorized header for the connection step in logs
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)

	token, err := s.tokens.Generate(username)
	s.Require().NoError(err)

	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") +
		"/ws?user=" + url.QueryEscape(peer) + "&token=" + url.QueryEscape(token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	s.Require().NoError(err, "Failed to dial WebSocket at "+wsURL)

	sess := &wsSession{name: name, conn: conn, frames: make(chan rawFrame, 64)}
	go func() {
		defer close(sess.frames)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame rawFrame
			if json.Unmarshal(raw, &frame) == nil {
				sess.frames <- frame
			}
		}
	}()
	// Close at test teardown, not via s.T().Cleanup: inside s.Run the suite's
	// T is the subtest's, which would close the socket when the step ends even
	// though later steps still use the session.
	s.conns = append(s.conns, conn)
	return sess
}

// SendFrame pushes one client-to-server frame on the session.
func (s *BaseWsSuite) SendFrame(sess *wsSession, frame interface{}) {
	s.Require().NoError(sess.conn.WriteJSON(frame))
}

// WaitFor blocks until a frame of the wanted type arrives, skipping (and
// logging) every other frame in between.
func (s *BaseWsSuite) WaitFor(sess *wsSession, frameType string) rawFrame {
	deadline := time.After(s.Config.FrameTimeout)
	for {
		select {
		case frame, ok := <-sess.frames:
			s.Require().True(ok, "%s: socket closed while waiting for %q", sess.name, frameType)
			if s.Config.DebugJSON {
				s.T().Logf("%s << %s %s", sess.name, frame.Type, frame.Payload)
			}
			if frame.Type == frameType {
				return frame
			}
			s.T().Logf("%s: skipping %q while waiting for %q", sess.name, frame.Type, frameType)
		case <-deadline:
			s.FailNowf("Frame timeout", "%s never received %q within %v", sess.name, frameType, s.Config.FrameTimeout)
			return rawFrame{}
		}
	}
}

// ExpectSilence asserts no frame of the given type arrives for a short
// window. Used for the negative half of the alert and broadcast rules.
func (s *BaseWsSuite) ExpectSilence(sess *wsSession, frameType string, window time.Duration) {
	deadline := time.After(window)
	for {
		select {
		case frame, ok := <-sess.frames:
			if !ok {
				return
			}
			s.Require().NotEqual(frameType, frame.Type,
				"%s received %q while none was expected", sess.name, frameType)
		case <-deadline:
			return
		}
	}
}

// Decode unmarshals the frame payload into target.
func (s *BaseWsSuite) Decode(frame rawFrame, target interface{}) {
	s.Require().NoError(json.Unmarshal(frame.Payload, target),
		"payload of %q did not decode", frame.Type)
}

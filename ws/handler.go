package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"pairlink/auth"
	"pairlink/contract"
	"pairlink/services"
)

// Client-to-server frame types.
const (
	MsgTypeSendMessage   = "sendMessage"
	MsgTypeDeleteMessage = "deleteMessage"
	MsgTypeError         = "error"
)

type baseFrame struct {
	Type string `json:"type"`
}

type sendMessageFrame struct {
	Type              string `json:"type"`
	RecipientUsername string `json:"recipientUsername"`
	Content           string `json:"content"`
}

type deleteMessageFrame struct {
	Type      string `json:"type"`
	MessageID string `json:"messageId"`
}

type errorPayload struct {
	Reason string `json:"reason"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests into live sessions. The peer's username
// travels in the "user" query parameter, the session token in "token";
// connect and disconnect are implicit in the socket lifecycle.
type Handler struct {
	log        *slog.Logger
	tokens     auth.Tokens
	sessions   services.ISessionService
	messages   services.IMessageService
	router     contract.IRouter
	bufferSize int
}

func NewHandler(log *slog.Logger, tokens auth.Tokens,
	sessions services.ISessionService, messages services.IMessageService,
	router contract.IRouter, bufferSize int) *Handler {
	return &Handler{
		log:        log,
		tokens:     tokens,
		sessions:   sessions,
		messages:   messages,
		router:     router,
		bufferSize: bufferSize,
	}
}

func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.Validate(bearerToken(r))
	if err != nil {
		http.Error(w, "invalid or expired token", http.StatusUnauthorized)
		return
	}
	otherUsername := r.URL.Query().Get("user")
	if strings.TrimSpace(otherUsername) == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}

	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(strings.ToLower(claims.Username), socket, h.bufferSize)
	conn.Start()
	h.router.Register(conn.ID, conn)

	if err = h.sessions.Connect(conn.ID, conn.Username, otherUsername); err != nil {
		h.log.Error("Session connect failed",
			"session_id", conn.ID,
			"username", conn.Username,
			"error", err)
		h.sendError(conn, err)
		h.teardown(conn)
		conn.Close(websocket.CloseInternalServerErr, "connect failed")
		return
	}

	h.log.Info("Session connected",
		"session_id", conn.ID,
		"username", conn.Username,
		"peer", otherUsername)

	h.readLoop(conn)

	// Best-effort cleanup sequence: group leave, presence removal, offline
	// broadcast. Never re-driven; a vanished transport gets nothing more.
	h.teardown(conn)
	conn.Close(websocket.CloseNormalClosure, "bye")
	h.log.Info("Session disconnected", "session_id", conn.ID, "username", conn.Username)
}

func (h *Handler) readLoop(conn *Connection) {
	for {
		_, raw, err := conn.ws.ReadMessage()
		if err != nil {
			return
		}
		h.handleFrame(conn, raw)
	}
}

func (h *Handler) handleFrame(conn *Connection, raw []byte) {
	var base baseFrame
	if err := json.Unmarshal(raw, &base); err != nil {
		h.sendError(conn, fmt.Errorf("invalid frame"))
		return
	}

	switch base.Type {
	case MsgTypeSendMessage:
		var frame sendMessageFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.sendError(conn, fmt.Errorf("invalid sendMessage frame"))
			return
		}
		if _, err := h.messages.Send(conn.Username, frame.RecipientUsername, frame.Content); err != nil {
			// Validation and not-found failures echo back to the caller only
			h.sendError(conn, err)
		}

	case MsgTypeDeleteMessage:
		var frame deleteMessageFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			h.sendError(conn, fmt.Errorf("invalid deleteMessage frame"))
			return
		}
		id, err := uuid.Parse(frame.MessageID)
		if err != nil {
			h.sendError(conn, fmt.Errorf("invalid message id"))
			return
		}
		if _, err = h.messages.Delete(id, conn.Username); err != nil {
			h.sendError(conn, err)
		}

	default:
		h.sendError(conn, fmt.Errorf("unknown frame type %q", base.Type))
	}
}

func (h *Handler) teardown(conn *Connection) {
	h.sessions.Disconnect(conn.ID, conn.Username)
	h.router.Unregister(conn.ID)
}

func (h *Handler) sendError(conn *Connection, cause error) {
	payload, err := json.Marshal(Frame{Type: MsgTypeError, Payload: errorPayload{Reason: cause.Error()}})
	if err != nil {
		return
	}
	// Fire-and-forget, like every other push
	_ = conn.Send(payload)
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

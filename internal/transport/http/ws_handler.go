package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"wedding-quiz/internal/app"
	"wedding-quiz/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

type WSHandler struct {
	gateway  *app.Gateway
	upgrader websocket.Upgrader
}

func NewWSHandler(gateway *app.Gateway) *WSHandler {
	return &WSHandler{
		gateway: gateway,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string          `json:"type"`
	ID      json.RawMessage `json:"id,omitempty"`
	Payload T               `json:"payload"`
}

type ackPayload struct {
	OK    bool             `json:"ok"`
	Error string           `json:"error,omitempty"`
	Room  *domain.Snapshot `json:"room,omitempty"`
}

// commandPayload is the union of every client command's fields.
type commandPayload struct {
	Code        string                 `json:"code"`
	AdminKey    string                 `json:"adminKey"`
	SetID       string                 `json:"setId"`
	Questions   []domain.QuestionInput `json:"questions"`
	DurationMs  int                    `json:"durationMs"`
	UserID      string                 `json:"userId"`
	Name        string                 `json:"name"`
	ChoiceIndex *int                   `json:"choiceIndex"`
}

// connSink hands room events to the connection's writer without ever blocking past its lifetime.
type connSink struct {
	send chan<- outboundMessage[any]
	done <-chan struct{}
}

func (s connSink) Deliver(ev domain.Event) {
	select {
	case s.send <- outboundMessage[any]{Type: ev.Type, Payload: ev.Payload}:
	case <-s.done:
	}
}

// ServeWS upgrades HTTP requests to websockets and runs client commands through the gateway.
// Every inbound message gets exactly one ack carrying its id; room events arrive on the same socket.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	connID := uuid.NewString()
	send := make(chan outboundMessage[any], sendBuffer)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	// done closes when either side of the connection stops.
	done := make(chan struct{})
	go func() {
		select {
		case <-closeSignals:
		case <-writerDone:
		}
		close(done)
	}()

	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					log.Debug().Err(err).Str("conn", connID).Msg("ws write error")
					_ = conn.Close()
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	h.gateway.Connect(connID, connSink{send: send, done: done})
	log.Info().Str("conn", connID).Str("remote", r.RemoteAddr).Msg("ws connected")

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		ack := h.dispatch(r.Context(), connID, inbound)
		select {
		case send <- outboundMessage[any]{Type: "ack", ID: inbound.ID, Payload: ack}:
		case <-done:
		}
	}

	close(closeSignals)
	h.gateway.Disconnect(connID)
	<-writerDone
	log.Info().Str("conn", connID).Msg("ws disconnected")
}

func (h *WSHandler) dispatch(ctx context.Context, connID string, in inboundMessage) ackPayload {
	var p commandPayload
	if len(in.Payload) > 0 {
		if err := json.Unmarshal(in.Payload, &p); err != nil {
			return ackPayload{Error: "invalid payload"}
		}
	}

	var (
		snap domain.Snapshot
		err  error
	)
	switch in.Type {
	case "host:create":
		snap, err = h.gateway.CreateRoom(ctx, connID, p.AdminKey, p.SetID)
	case "host:join":
		snap, err = h.gateway.JoinHost(connID, p.Code, p.AdminKey)
	case "host:setQuestions":
		snap, err = h.gateway.SetQuestions(connID, p.Code, p.AdminKey, p.Questions)
	case "host:start":
		snap, err = h.gateway.Start(connID, p.Code, p.AdminKey, p.DurationMs)
	case "host:reveal":
		snap, err = h.gateway.Reveal(connID, p.Code, p.AdminKey)
	case "host:next":
		snap, err = h.gateway.Next(connID, p.Code, p.AdminKey)
	case "display:join":
		snap, err = h.gateway.JoinDisplay(connID, p.Code)
	case "player:join":
		snap, err = h.gateway.JoinPlayer(connID, p.Code, p.UserID, p.Name)
	case "player:answer":
		choice := -1
		if p.ChoiceIndex != nil {
			choice = *p.ChoiceIndex
		}
		if _, err := h.gateway.SubmitAnswer(connID, p.Code, p.UserID, choice); err != nil {
			return ackPayload{Error: err.Error()}
		}
		return ackPayload{OK: true}
	default:
		return ackPayload{Error: "unsupported message type"}
	}
	if err != nil {
		return ackPayload{Error: err.Error()}
	}
	return ackPayload{OK: true, Room: &snap}
}
